// Package physmem implements the Physical Memory Manager (C2): a frame
// allocator fed by the boot memory map's Usable ranges.
//
// Grounded on internal/ctrl/types.go's defaults-from-params constructor
// shape (a plain struct built once from an external contract, then
// walked by value thereafter) and backed by internal/kpool for the
// per-frame buffer pooling idiom.
package physmem

import (
	"errors"

	"github.com/kernelcore/gokernel/internal/addrspace"
	"github.com/kernelcore/gokernel/internal/bootabi"
	"github.com/kernelcore/gokernel/internal/constants"
	"github.com/kernelcore/gokernel/internal/kpool"
)

// ErrExhausted is returned by Allocate once every usable range has been
// consumed.
var ErrExhausted = errors.New("physmem: frame allocator exhausted")

type usableRange struct {
	next uint64 // next page-aligned address to hand out
	end  uint64 // exclusive
}

// Manager hands out 4 KiB-aligned physical frames from the boot memory
// map's Usable ranges, in range order. Frames are never freed in this
// prototype (spec.md carries no Free operation), matching the
// never-reaped task lifecycle C5 also follows.
type Manager struct {
	ranges  []usableRange
	cursor  int
	backing map[addrspace.PhysFrame][]byte
}

// NewManager builds a Manager from a BootInfo's Usable regions, aligning
// each range up to the next page boundary.
func NewManager(info *bootabi.BootInfo) *Manager {
	m := &Manager{backing: make(map[addrspace.PhysFrame][]byte)}
	for _, r := range info.UsableRegions() {
		start := alignUp(r.Start, constants.PageSize)
		end := alignDown(r.End, constants.PageSize)
		if start < end {
			m.ranges = append(m.ranges, usableRange{next: start, end: end})
		}
	}
	return m
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) / align * align
}

func alignDown(v, align uint64) uint64 {
	return v / align * align
}

// Allocate returns the next free frame, backed by a zeroed page buffer
// drawn from internal/kpool, or ErrExhausted when every usable range has
// been consumed.
func (m *Manager) Allocate() (addrspace.PhysFrame, error) {
	for m.cursor < len(m.ranges) {
		r := &m.ranges[m.cursor]
		if r.next >= r.end {
			m.cursor++
			continue
		}
		frame := addrspace.PhysFrame(r.next / constants.PageSize)
		r.next += constants.PageSize

		buf := kpool.Get()
		kpool.Zero(buf)
		m.backing[frame] = buf

		return frame, nil
	}
	return 0, ErrExhausted
}

// Backing returns the zeroed page buffer allocated for frame, for tests
// and dump tooling that want to inspect frame contents.
func (m *Manager) Backing(frame addrspace.PhysFrame) ([]byte, bool) {
	buf, ok := m.backing[frame]
	return buf, ok
}

// FrameSource is the external collaborator contract from spec.md §6:
// allocate_frame() -> Option<PhysFrame>.
type FrameSource interface {
	Allocate() (addrspace.PhysFrame, error)
}

var _ FrameSource = (*Manager)(nil)
