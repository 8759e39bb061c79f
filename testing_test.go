package gokernel

import "testing"

func TestRunUnknownScenarioReturnsInvalidIPCError(t *testing.T) {
	h, err := NewHarness(nil)
	if err != nil {
		t.Fatalf("NewHarness: %v", err)
	}
	if err := h.Run(Scenario("not-a-real-scenario")); err == nil || !IsCode(err, CodeInvalidIPC) {
		t.Errorf("Run(unknown scenario) = %v, want a CodeInvalidIPC error", err)
	}
}

func TestIPCTracePathsScenarioHitsBothPaths(t *testing.T) {
	h, err := NewHarness(nil)
	if err != nil {
		t.Fatalf("NewHarness: %v", err)
	}
	if err := h.Run(ScenarioIPCTracePaths); err != nil {
		t.Fatalf("Run(ipc_trace_paths): %v", err)
	}
	snap := h.Kernel.Metrics.Snapshot()
	if snap.IPCFastpathTotal == 0 || snap.IPCSlowpathTotal == 0 {
		t.Errorf("expected both IPC paths exercised, got %+v", snap)
	}
}

func TestEndpointCloseTestScenarioCompletesWithoutPanicking(t *testing.T) {
	h, err := NewHarness(nil)
	if err != nil {
		t.Fatalf("NewHarness: %v", err)
	}
	if err := h.Run(ScenarioEndpointCloseTest); err != nil {
		t.Fatalf("Run(endpoint_close_test): %v", err)
	}
}
