// Package addrspace implements the logical per-task address space (C3):
// a capacity-bounded set of VirtPage -> (PhysFrame, Flags) mappings.
//
// Grounded on the same safety-before-mutation discipline
// internal/ctrl/control.go applies to device state transitions (validate
// first, mutate only on the validated path); here map/unmap validate
// against the existing mapping set before touching it.
package addrspace

import (
	"errors"

	"github.com/kernelcore/gokernel/internal/constants"
)

// ErrAlreadyMapped is returned by Map when the page already has a
// mapping. Fail-stop in product builds (spec.md §4.3, §7).
var ErrAlreadyMapped = errors.New("addrspace: page already mapped")

// ErrNotMapped is returned by Unmap when the page has no mapping.
// Fail-stop in product builds.
var ErrNotMapped = errors.New("addrspace: page not mapped")

// ErrCapacityExceeded is returned by Map when the address space is
// already holding N_MAP mappings. Fail-stop in product builds.
var ErrCapacityExceeded = errors.New("addrspace: capacity exceeded")

// VirtPage is a page-aligned virtual address, expressed in page units
// for simplicity of equality/hashing.
type VirtPage uint64

// PhysFrame is a page-aligned physical address, in page units.
type PhysFrame uint64

// Flags carries page permission bits. Additional bits beyond the three
// named here may be set but do not affect logical equality (spec.md §3).
type Flags uint8

const (
	Present Flags = 1 << iota
	Writable
	UserAccessible
)

// HighHalfBoundary is the first VirtPage belonging to the shared kernel
// high half: PML4 entries 256..512 of a real table, expressed here as a
// page-number cutoff since AddressSpace models the flat mapping set
// those entries ultimately resolve to, not the table levels themselves.
var HighHalfBoundary = VirtPage(constants.KernelSpaceStart / constants.PageSize)

// Mapping is one (page, frame, flags) triple.
type Mapping struct {
	Page  VirtPage
	Frame PhysFrame
	Flags Flags
}

// AddressSpace is the per-task mapping set plus an optional root page
// frame for tasks that own a real PML4 (spec.md §3).
type AddressSpace struct {
	mappings map[VirtPage]Mapping
	capacity int

	rootPageFrame   PhysFrame
	hasRootPageFrame bool
}

// New creates an empty address space bounded at the given capacity
// (N_MAP).
func New(capacity int) *AddressSpace {
	return &AddressSpace{
		mappings: make(map[VirtPage]Mapping, capacity),
		capacity: capacity,
	}
}

// Map inserts a new (page, frame, flags) mapping.
func (a *AddressSpace) Map(page VirtPage, frame PhysFrame, flags Flags) error {
	if _, exists := a.mappings[page]; exists {
		return ErrAlreadyMapped
	}
	if len(a.mappings) >= a.capacity {
		return ErrCapacityExceeded
	}
	a.mappings[page] = Mapping{Page: page, Frame: frame, Flags: flags}
	return nil
}

// Unmap removes the mapping at page.
func (a *AddressSpace) Unmap(page VirtPage) error {
	if _, exists := a.mappings[page]; !exists {
		return ErrNotMapped
	}
	delete(a.mappings, page)
	return nil
}

// Translate looks up the current mapping for page.
func (a *AddressSpace) Translate(page VirtPage) (frame PhysFrame, flags Flags, ok bool) {
	m, exists := a.mappings[page]
	if !exists {
		return 0, 0, false
	}
	return m.Frame, m.Flags, true
}

// Len returns the number of live mappings.
func (a *AddressSpace) Len() int {
	return len(a.mappings)
}

// SetRootPageFrame records the PML4 root frame backing this address
// space, for tasks that own a real page table (kernel task 0 by
// default).
func (a *AddressSpace) SetRootPageFrame(f PhysFrame) {
	a.rootPageFrame = f
	a.hasRootPageFrame = true
}

// RootPageFrame returns the PML4 root frame, if this address space owns
// one.
func (a *AddressSpace) RootPageFrame() (PhysFrame, bool) {
	return a.rootPageFrame, a.hasRootPageFrame
}

// CopyHighHalf copies every mapping at or above HighHalfBoundary from src
// into a, the way a fresh user PML4 has the kernel's entries 256..512
// copied in while its own 0..256 start empty (spec.md §4.3). Mappings
// below the boundary in src are never copied.
func (a *AddressSpace) CopyHighHalf(src *AddressSpace) {
	for _, m := range src.Mappings() {
		if m.Page >= HighHalfBoundary {
			a.mappings[m.Page] = m
		}
	}
}

// Mappings returns a copy of all live mappings, sorted by page, for
// deterministic dumping and testing.
func (a *AddressSpace) Mappings() []Mapping {
	out := make([]Mapping, 0, len(a.mappings))
	for _, m := range a.mappings {
		out = append(out, m)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Page > out[j].Page; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
