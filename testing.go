package gokernel

import (
	"fmt"

	"github.com/kernelcore/gokernel/internal/addrspace"
	"github.com/kernelcore/gokernel/internal/bootabi"
	"github.com/kernelcore/gokernel/internal/logging"
	"github.com/kernelcore/gokernel/internal/platform"
	"github.com/kernelcore/gokernel/internal/task"
)

// Scenario names one of the demo/evil runs spec.md §6 names as the
// kernel's external interface: a caller picks a Scenario, runs it
// against a fresh Harness, and inspects the resulting Dump() or the
// panic it produced.
type Scenario string

const (
	// ScenarioIPCTracePaths exercises both IPC paths: a slow send
	// followed by a late recv, then a fast send against a waiting
	// receiver, so both ipc_trace_paths log lines appear.
	ScenarioIPCTracePaths Scenario = "ipc_trace_paths"

	// ScenarioIPCDemoSingleSlow runs a single slow-path send/recv/reply
	// round trip to completion.
	ScenarioIPCDemoSingleSlow Scenario = "ipc_demo_single_slow"

	// ScenarioPageFaultDemo triggers a translation lookup on an unmapped
	// page, which the harness reports via an Exception marker rather
	// than a panic (spec.md §7's fatal row: "#PF unguarded").
	ScenarioPageFaultDemo Scenario = "pf_demo"

	// ScenarioEvilDoubleMap maps the same page twice, expected to
	// fail-stop (invariant 6 / ErrAlreadyMapped).
	ScenarioEvilDoubleMap Scenario = "evil_double_map"

	// ScenarioEvilUnmapNotMapped unmaps a page with no mapping, expected
	// to fail-stop (ErrNotMapped).
	ScenarioEvilUnmapNotMapped Scenario = "evil_unmap_not_mapped"

	// ScenarioDoubleRecvSameEndpoint calls ipc_recv twice on the same
	// endpoint without an intervening send, expected to fail-stop
	// (invariant 4, ErrRecvWaiterAlreadySet).
	ScenarioDoubleRecvSameEndpoint Scenario = "double_recv_same_endpoint"

	// ScenarioEvilIPC issues ipc_send/ipc_recv/ipc_reply against an
	// out-of-range endpoint handle. Per spec.md §4.4/§8 scenario 6 this
	// must never mutate state or panic: ep == nil is the fail-safe
	// invalid-endpoint guard, not a fail-stop condition.
	ScenarioEvilIPC Scenario = "evil_ipc"

	// ScenarioEndpointCloseTest marks a recv_waiter Dead and then runs a
	// send against its endpoint, exercising the lazy dead-waiter
	// clearing path (fastpath falls through to slowpath).
	ScenarioEndpointCloseTest Scenario = "endpoint_close_test"

	// ScenarioDeadPartnerTest marks a reply_queue member Dead before
	// Reply is called, exercising invariant 5's fail-safe logging path.
	ScenarioDeadPartnerTest Scenario = "dead_partner_test"
)

// Harness wires a fresh KernelState with a Sim backend and a small
// usable memory map, the way CreateAndServe once wired a Device from a
// Backend and DeviceParams. It is the entry point test code and the
// demo binary both drive scenarios through.
type Harness struct {
	Kernel *KernelState
}

// NewHarness builds a Harness with 16 MiB of simulated usable memory.
func NewHarness(logger *logging.Logger) (*Harness, error) {
	if logger == nil {
		logger = logging.Default()
	}

	info := &bootabi.BootInfo{}
	info.AddRegion(0, 16<<20, bootabi.RegionUsable)

	backend, err := platform.NewBackend(platform.Sim)
	if err != nil {
		return nil, WrapError("gokernel.NewHarness", CodeInvariantViolation, err)
	}

	k, err := NewKernelState(info, backend, logger)
	if err != nil {
		return nil, err
	}
	return &Harness{Kernel: k}, nil
}

// Run dispatches to the named scenario. A fail-stop scenario panics
// from within the call, exactly as a product build would; callers that
// want to observe the panic (rather than let it propagate) should
// recover around Run themselves, the way a test does.
func (h *Harness) Run(scenario Scenario) error {
	switch scenario {
	case ScenarioIPCTracePaths:
		return h.runIPCTracePaths()
	case ScenarioIPCDemoSingleSlow:
		return h.runIPCDemoSingleSlow()
	case ScenarioPageFaultDemo:
		return h.runPageFaultDemo()
	case ScenarioEvilDoubleMap:
		return h.runEvilDoubleMap()
	case ScenarioEvilUnmapNotMapped:
		return h.runEvilUnmapNotMapped()
	case ScenarioDoubleRecvSameEndpoint:
		return h.runDoubleRecvSameEndpoint()
	case ScenarioEvilIPC:
		return h.runEvilIPC()
	case ScenarioEndpointCloseTest:
		return h.runEndpointCloseTest()
	case ScenarioDeadPartnerTest:
		return h.runDeadPartnerTest()
	default:
		return NewError("gokernel.Harness.Run", CodeInvalidIPC, fmt.Sprintf("unknown scenario %q", scenario))
	}
}

func (h *Harness) runIPCTracePaths() error {
	k := h.Kernel
	ep, err := k.AddEndpoint()
	if err != nil {
		return err
	}
	sender, err := k.AddTask(5)
	if err != nil {
		return err
	}
	receiver, err := k.AddTask(5)
	if err != nil {
		return err
	}

	// Slow path: sender posts before anyone is recv-waiting.
	k.PendingIPC = append(k.PendingIPC, IPCRequest{Kind: IPCRequestSend, TaskIdx: sender, Endpoint: ep, Msg: 7})
	k.Tick()
	k.PendingIPC = append(k.PendingIPC, IPCRequest{Kind: IPCRequestRecv, TaskIdx: receiver, Endpoint: ep})
	k.Tick()
	k.PendingIPC = append(k.PendingIPC, IPCRequest{Kind: IPCRequestReply, TaskIdx: receiver, Endpoint: ep, Msg: 8})
	k.Tick()

	// Fast path: a second sender posts while receiver is already
	// recv-waiting on a fresh endpoint.
	ep2, err := k.AddEndpoint()
	if err != nil {
		return err
	}
	sender2, err := k.AddTask(5)
	if err != nil {
		return err
	}
	k.PendingIPC = append(k.PendingIPC, IPCRequest{Kind: IPCRequestRecv, TaskIdx: receiver, Endpoint: ep2})
	k.Tick()
	k.PendingIPC = append(k.PendingIPC, IPCRequest{Kind: IPCRequestSend, TaskIdx: sender2, Endpoint: ep2, Msg: 9})
	k.Tick()
	return nil
}

func (h *Harness) runIPCDemoSingleSlow() error {
	k := h.Kernel
	ep, err := k.AddEndpoint()
	if err != nil {
		return err
	}
	sender, err := k.AddTask(5)
	if err != nil {
		return err
	}
	receiver, err := k.AddTask(5)
	if err != nil {
		return err
	}

	k.PendingIPC = append(k.PendingIPC, IPCRequest{Kind: IPCRequestSend, TaskIdx: sender, Endpoint: ep, Msg: 42})
	k.Tick()
	k.PendingIPC = append(k.PendingIPC, IPCRequest{Kind: IPCRequestRecv, TaskIdx: receiver, Endpoint: ep})
	k.Tick()
	k.PendingIPC = append(k.PendingIPC, IPCRequest{Kind: IPCRequestReply, TaskIdx: receiver, Endpoint: ep, Msg: 43})
	k.Tick()
	return nil
}

// runPageFaultDemo looks up a page nobody ever mapped. Translate itself
// never panics (it is a pure query); the #PF marker is the caller's
// responsibility to emit once it decides the fault is unguarded, which
// this scenario does directly to demonstrate the log line's exact text.
func (h *Harness) runPageFaultDemo() error {
	k := h.Kernel
	as := k.AddrSpaces[k.Current.Index()]
	if _, _, ok := as.Translate(addrspace.VirtPage(0xDEAD)); !ok {
		k.Logger.Exception("#PF unguarded")
		return NewError("gokernel.runPageFaultDemo", CodeExceptionUnguarded, "translate miss on unmapped page")
	}
	return nil
}

func (h *Harness) runEvilDoubleMap() error {
	k := h.Kernel
	idx := k.Current.Index()
	mem := MemAction{Kind: MemMap, Page: 1, Frame: 1, Flags: addrspace.Present}
	k.applyMemAction(idx, mem)
	k.applyMemAction(idx, mem) // second Map of the same page: fail-stop
	return nil
}

func (h *Harness) runEvilUnmapNotMapped() error {
	k := h.Kernel
	idx := k.Current.Index()
	k.applyMemAction(idx, MemAction{Kind: MemUnmap, Page: 99})
	return nil
}

func (h *Harness) runDoubleRecvSameEndpoint() error {
	k := h.Kernel
	ep, err := k.AddEndpoint()
	if err != nil {
		return err
	}
	receiver, err := k.AddTask(5)
	if err != nil {
		return err
	}
	k.PendingIPC = append(k.PendingIPC, IPCRequest{Kind: IPCRequestRecv, TaskIdx: receiver, Endpoint: ep})
	k.Tick()
	k.PendingIPC = append(k.PendingIPC, IPCRequest{Kind: IPCRequestRecv, TaskIdx: receiver, Endpoint: ep})
	k.Tick() // second recv_waiter on same endpoint: fail-stop
	return nil
}

// runEvilIPC drives send/recv/reply against an endpoint handle that was
// never created. ipc.Send/Recv/Reply's ep == nil guard makes this a
// fail-safe no-op (a warning log line, no state mutation, no panic),
// never invariant-4's fail-stop.
func (h *Harness) runEvilIPC() error {
	k := h.Kernel
	const badEndpoint = 9999
	task1, err := k.AddTask(5)
	if err != nil {
		return err
	}

	k.PendingIPC = append(k.PendingIPC, IPCRequest{Kind: IPCRequestSend, TaskIdx: task1, Endpoint: badEndpoint, Msg: 1})
	k.Tick()
	k.PendingIPC = append(k.PendingIPC, IPCRequest{Kind: IPCRequestRecv, TaskIdx: task1, Endpoint: badEndpoint})
	k.Tick()
	k.PendingIPC = append(k.PendingIPC, IPCRequest{Kind: IPCRequestReply, TaskIdx: task1, Endpoint: badEndpoint, Msg: 2})
	k.Tick()
	return nil
}

func (h *Harness) runEndpointCloseTest() error {
	k := h.Kernel
	ep, err := k.AddEndpoint()
	if err != nil {
		return err
	}
	receiver, err := k.AddTask(5)
	if err != nil {
		return err
	}
	sender, err := k.AddTask(5)
	if err != nil {
		return err
	}

	k.PendingIPC = append(k.PendingIPC, IPCRequest{Kind: IPCRequestRecv, TaskIdx: receiver, Endpoint: ep})
	k.Tick()

	k.Tasks.Get(receiver).State = task.Dead
	k.Tasks.Wait.Remove(receiver)

	k.PendingIPC = append(k.PendingIPC, IPCRequest{Kind: IPCRequestSend, TaskIdx: sender, Endpoint: ep, Msg: 1})
	k.Tick()
	return nil
}

func (h *Harness) runDeadPartnerTest() error {
	k := h.Kernel
	ep, err := k.AddEndpoint()
	if err != nil {
		return err
	}
	sender, err := k.AddTask(5)
	if err != nil {
		return err
	}
	receiver, err := k.AddTask(5)
	if err != nil {
		return err
	}

	k.PendingIPC = append(k.PendingIPC, IPCRequest{Kind: IPCRequestSend, TaskIdx: sender, Endpoint: ep, Msg: 1})
	k.Tick()
	k.PendingIPC = append(k.PendingIPC, IPCRequest{Kind: IPCRequestRecv, TaskIdx: receiver, Endpoint: ep})
	k.Tick()

	k.Tasks.Get(sender).State = task.Dead
	k.Tasks.Wait.Remove(sender)

	k.PendingIPC = append(k.PendingIPC, IPCRequest{Kind: IPCRequestReply, TaskIdx: receiver, Endpoint: ep, Msg: 2})
	k.Tick()
	return nil
}
