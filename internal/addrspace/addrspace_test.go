package addrspace

import "testing"

func TestMapThenTranslate(t *testing.T) {
	as := New(4)
	if err := as.Map(1, 100, Present|Writable); err != nil {
		t.Fatalf("Map: %v", err)
	}
	frame, flags, ok := as.Translate(1)
	if !ok {
		t.Fatal("Translate: expected mapping to be found")
	}
	if frame != 100 || flags != Present|Writable {
		t.Errorf("Translate(1) = (%d, %d), want (100, Present|Writable)", frame, flags)
	}
}

func TestMapAlreadyMapped(t *testing.T) {
	as := New(4)
	as.Map(1, 100, Present)
	if err := as.Map(1, 200, Present); err != ErrAlreadyMapped {
		t.Errorf("second Map: got %v, want ErrAlreadyMapped", err)
	}
}

func TestUnmapNotMapped(t *testing.T) {
	as := New(4)
	if err := as.Unmap(1); err != ErrNotMapped {
		t.Errorf("Unmap of unmapped page: got %v, want ErrNotMapped", err)
	}
}

func TestUnmapThenTranslateMisses(t *testing.T) {
	as := New(4)
	as.Map(1, 100, Present)
	if err := as.Unmap(1); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if _, _, ok := as.Translate(1); ok {
		t.Error("Translate after Unmap should miss")
	}
}

func TestMapCapacityExceeded(t *testing.T) {
	as := New(2)
	as.Map(1, 1, Present)
	as.Map(2, 2, Present)
	if err := as.Map(3, 3, Present); err != ErrCapacityExceeded {
		t.Errorf("Map past capacity: got %v, want ErrCapacityExceeded", err)
	}
}

func TestMappingsSortedByPage(t *testing.T) {
	as := New(4)
	as.Map(5, 50, Present)
	as.Map(1, 10, Present)
	as.Map(3, 30, Present)
	got := as.Mappings()
	want := []VirtPage{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("Mappings() len = %d, want %d", len(got), len(want))
	}
	for i, page := range want {
		if got[i].Page != page {
			t.Errorf("Mappings()[%d].Page = %d, want %d", i, got[i].Page, page)
		}
	}
}

func TestCopyHighHalfCopiesOnlyAtOrAboveBoundary(t *testing.T) {
	src := New(4)
	src.Map(5, 50, Present)               // below the boundary: must not copy
	src.Map(HighHalfBoundary, 60, Present) // at the boundary: must copy
	src.Map(HighHalfBoundary+1, 70, Present)

	dst := New(4)
	dst.CopyHighHalf(src)

	if _, _, ok := dst.Translate(5); ok {
		t.Error("low-half page should not be copied into the new address space")
	}
	if frame, _, ok := dst.Translate(HighHalfBoundary); !ok || frame != 60 {
		t.Errorf("Translate(HighHalfBoundary) = (%d, %v), want (60, true)", frame, ok)
	}
	if frame, _, ok := dst.Translate(HighHalfBoundary + 1); !ok || frame != 70 {
		t.Errorf("Translate(HighHalfBoundary+1) = (%d, %v), want (70, true)", frame, ok)
	}
	if dst.Len() != 2 {
		t.Errorf("dst.Len() = %d, want 2", dst.Len())
	}
}

func TestRootPageFrame(t *testing.T) {
	as := New(4)
	if _, ok := as.RootPageFrame(); ok {
		t.Error("fresh AddressSpace should have no root page frame")
	}
	as.SetRootPageFrame(7)
	root, ok := as.RootPageFrame()
	if !ok || root != 7 {
		t.Errorf("RootPageFrame() = (%d, %v), want (7, true)", root, ok)
	}
}
