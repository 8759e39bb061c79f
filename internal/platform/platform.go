// Package platform implements the Page Table Backend (C4): applying
// logical Map/Unmap to a given PML4 root, verifying the edit via
// translation, and gating real CR3 writes.
//
// Grounded on internal/uring's Ring interface with a pure-Go default
// implementation (NewMinimalRing) plus a build-tag-gated real backend
// (iouring.go under `giouring`, iouring_stub.go under `!giouring`): here
// SimBackend is the pure-Go default every test and the simulation binary
// run against, and HWBackend is the amd64hw-tagged real-register variant
// dispatched the same way NewRing picks between ring implementations.
package platform

import (
	"errors"

	"github.com/kernelcore/gokernel/internal/addrspace"
	"github.com/kernelcore/gokernel/internal/constants"
)

// ErrTranslationMismatch is fail-stop: after a real page-table edit, the
// backend re-walked the table and the result didn't match what the
// logical edit intended.
var ErrTranslationMismatch = errors.New("platform: translation verification failed after edit")

// PageTableBackend applies logical memory actions to a given PML4 root
// and verifies them.
type PageTableBackend interface {
	// Map installs page->frame with flags under the page table rooted at
	// root, then verifies the edit by translating page back.
	Map(root addrspace.PhysFrame, page addrspace.VirtPage, frame addrspace.PhysFrame, flags addrspace.Flags) error

	// Unmap removes page's mapping under root, then verifies it no
	// longer translates. Neither backend here keeps or invalidates a
	// translation cache.
	Unmap(root addrspace.PhysFrame, page addrspace.VirtPage) error

	// Translate walks the table rooted at root for page.
	Translate(root addrspace.PhysFrame, page addrspace.VirtPage) (addrspace.PhysFrame, addrspace.Flags, bool)

	// ConfigureCR3SwitchSafety reports whether a CR3 write to switch into
	// the address space whose code/stack live at the given virtual
	// addresses is safe: both must lie in the shared high-half.
	ConfigureCR3SwitchSafety(codeAddr, stackAddr uint64) bool
}

// Kind selects which PageTableBackend implementation NewBackend builds.
type Kind int

const (
	// Sim is the pure-Go simulation backend: every test and the default
	// simulation binary use this.
	Sim Kind = iota
	// HW is the real-hardware backend; only buildable with the amd64hw
	// tag. It keeps SimBackend's bookkeeping and writes no registers.
	HW
)

// NewBackend builds the requested backend kind.
func NewBackend(kind Kind) (PageTableBackend, error) {
	switch kind {
	case Sim:
		return NewSimBackend(), nil
	case HW:
		return newHWBackend()
	default:
		return nil, errors.New("platform: unknown backend kind")
	}
}

// SimBackend is a pure-Go page table simulation: one logical page table
// per root, with translation verification performed against the same
// in-memory map (so a verification mismatch here would indicate a bug in
// this package, not a hardware fault — but the check runs regardless,
// exactly mirroring what the hardware backend must do).
type SimBackend struct {
	tables map[addrspace.PhysFrame]map[addrspace.VirtPage]addrspace.Mapping
}

// NewSimBackend creates an empty simulation backend.
func NewSimBackend() *SimBackend {
	return &SimBackend{tables: make(map[addrspace.PhysFrame]map[addrspace.VirtPage]addrspace.Mapping)}
}

func (s *SimBackend) tableFor(root addrspace.PhysFrame) map[addrspace.VirtPage]addrspace.Mapping {
	t, ok := s.tables[root]
	if !ok {
		t = make(map[addrspace.VirtPage]addrspace.Mapping)
		s.tables[root] = t
	}
	return t
}

func (s *SimBackend) Map(root addrspace.PhysFrame, page addrspace.VirtPage, frame addrspace.PhysFrame, flags addrspace.Flags) error {
	t := s.tableFor(root)
	t[page] = addrspace.Mapping{Page: page, Frame: frame, Flags: flags}

	gotFrame, gotFlags, ok := s.Translate(root, page)
	if !ok || gotFrame != frame || gotFlags != flags {
		return ErrTranslationMismatch
	}
	return nil
}

func (s *SimBackend) Unmap(root addrspace.PhysFrame, page addrspace.VirtPage) error {
	t := s.tableFor(root)
	delete(t, page)

	if _, _, ok := s.Translate(root, page); ok {
		return ErrTranslationMismatch
	}
	return nil
}

func (s *SimBackend) Translate(root addrspace.PhysFrame, page addrspace.VirtPage) (addrspace.PhysFrame, addrspace.Flags, bool) {
	t, ok := s.tables[root]
	if !ok {
		return 0, 0, false
	}
	m, ok := t[page]
	if !ok {
		return 0, 0, false
	}
	return m.Frame, m.Flags, true
}

func (s *SimBackend) ConfigureCR3SwitchSafety(codeAddr, stackAddr uint64) bool {
	return codeAddr >= constants.KernelSpaceStart && stackAddr >= constants.KernelSpaceStart
}

var _ PageTableBackend = (*SimBackend)(nil)
