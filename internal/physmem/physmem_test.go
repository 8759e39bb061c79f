package physmem

import (
	"testing"

	"github.com/kernelcore/gokernel/internal/bootabi"
	"github.com/kernelcore/gokernel/internal/constants"
)

func TestAllocateWalksUsableRangesInOrder(t *testing.T) {
	var info bootabi.BootInfo
	info.AddRegion(0, constants.PageSize*2, bootabi.RegionUsable)

	m := NewManager(&info)
	f1, err := m.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	f2, err := m.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if f1 == f2 {
		t.Error("successive allocations must return distinct frames")
	}
}

func TestAllocateExhausted(t *testing.T) {
	var info bootabi.BootInfo
	info.AddRegion(0, constants.PageSize, bootabi.RegionUsable)

	m := NewManager(&info)
	if _, err := m.Allocate(); err != nil {
		t.Fatalf("first Allocate: %v", err)
	}
	if _, err := m.Allocate(); err != ErrExhausted {
		t.Errorf("second Allocate: got %v, want ErrExhausted", err)
	}
}

func TestAllocateIgnoresNonUsableRegions(t *testing.T) {
	var info bootabi.BootInfo
	info.AddRegion(0, constants.PageSize, bootabi.RegionReserved)

	m := NewManager(&info)
	if _, err := m.Allocate(); err != ErrExhausted {
		t.Errorf("Allocate against a reserved-only map: got %v, want ErrExhausted", err)
	}
}

func TestAllocateBacksFrameWithZeroedBuffer(t *testing.T) {
	var info bootabi.BootInfo
	info.AddRegion(0, constants.PageSize, bootabi.RegionUsable)

	m := NewManager(&info)
	frame, err := m.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	buf, ok := m.Backing(frame)
	if !ok {
		t.Fatal("Backing: expected a buffer for an allocated frame")
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("Backing(frame)[%d] = %d, want 0", i, b)
		}
	}
}

func TestAllocateAlignsPartialRanges(t *testing.T) {
	var info bootabi.BootInfo
	// Not page-aligned on either end, but wide enough for exactly one
	// aligned page once rounded.
	info.AddRegion(100, constants.PageSize*2+50, bootabi.RegionUsable)

	m := NewManager(&info)
	if _, err := m.Allocate(); err != nil {
		t.Fatalf("Allocate over a misaligned range: %v", err)
	}
	if _, err := m.Allocate(); err != ErrExhausted {
		t.Error("a range narrower than two aligned pages should only yield one frame")
	}
}
