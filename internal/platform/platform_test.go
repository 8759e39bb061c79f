package platform

import (
	"testing"

	"github.com/kernelcore/gokernel/internal/addrspace"
	"github.com/kernelcore/gokernel/internal/constants"
)

func TestSimBackendMapThenTranslate(t *testing.T) {
	b := NewSimBackend()
	if err := b.Map(1, 10, 100, addrspace.Present); err != nil {
		t.Fatalf("Map: %v", err)
	}
	frame, flags, ok := b.Translate(1, 10)
	if !ok || frame != 100 || flags != addrspace.Present {
		t.Errorf("Translate(1, 10) = (%d, %d, %v), want (100, Present, true)", frame, flags, ok)
	}
}

func TestSimBackendUnmapClearsTranslation(t *testing.T) {
	b := NewSimBackend()
	b.Map(1, 10, 100, addrspace.Present)
	if err := b.Unmap(1, 10); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if _, _, ok := b.Translate(1, 10); ok {
		t.Error("Translate after Unmap should miss")
	}
}

func TestSimBackendRootsAreIsolated(t *testing.T) {
	b := NewSimBackend()
	b.Map(1, 10, 100, addrspace.Present)
	if _, _, ok := b.Translate(2, 10); ok {
		t.Error("page mapped under root 1 must not translate under root 2")
	}
}

func TestConfigureCR3SwitchSafety(t *testing.T) {
	b := NewSimBackend()
	if !b.ConfigureCR3SwitchSafety(constants.KernelSpaceStart, constants.KernelSpaceStart+0x1000) {
		t.Error("two high-half addresses should be a safe CR3 switch")
	}
	if b.ConfigureCR3SwitchSafety(0x1000, constants.KernelSpaceStart) {
		t.Error("a low-half code address should be unsafe")
	}
}

func TestNewBackendDispatchesByKind(t *testing.T) {
	b, err := NewBackend(Sim)
	if err != nil {
		t.Fatalf("NewBackend(Sim): %v", err)
	}
	if _, ok := b.(*SimBackend); !ok {
		t.Errorf("NewBackend(Sim) = %T, want *SimBackend", b)
	}

	if _, err := NewBackend(HW); err == nil {
		t.Error("NewBackend(HW) without the amd64hw build tag should fail")
	}
}
