// Package gokernel implements the core of a pre-formal-verification
// x86_64 microkernel prototype: a pure state transition function paired
// with an effectful tick step governing a priority round-robin
// scheduler, a per-task logical address space layer backed by real
// page tables for the kernel task, and a synchronous endpoint IPC
// protocol.
//
// Grounded on the teacher's backend.go: CreateAndServe builds one Device
// aggregate wiring a control plane, queue runners, metrics and an
// observer, then drives it through its lifecycle; KernelState plays the
// same aggregate role here, generalized from "one block device" to "one
// kernel tick."
package gokernel

import (
	"errors"
	"fmt"

	"github.com/kernelcore/gokernel/internal/addrspace"
	"github.com/kernelcore/gokernel/internal/bootabi"
	"github.com/kernelcore/gokernel/internal/constants"
	"github.com/kernelcore/gokernel/internal/evlog"
	"github.com/kernelcore/gokernel/internal/ipc"
	"github.com/kernelcore/gokernel/internal/logging"
	"github.com/kernelcore/gokernel/internal/physmem"
	"github.com/kernelcore/gokernel/internal/platform"
	"github.com/kernelcore/gokernel/internal/sched"
	"github.com/kernelcore/gokernel/internal/task"
)

// IPCRequestKind tags the operation an IPCRequest describes.
type IPCRequestKind int

const (
	IPCRequestSend IPCRequestKind = iota
	IPCRequestRecv
	IPCRequestReply
)

// IPCRequest is one queued IPC call a task issues during a tick. The
// tick loop drains these after applying the tick's KernelAction, exactly
// as spec.md §4.1 describes ("applies any IPC side effects queued
// during this tick").
type IPCRequest struct {
	Kind     IPCRequestKind
	TaskIdx  task.Index
	Endpoint int
	Msg      uint64
}

// KernelState is the single aggregate owning every subsystem (C1-C9);
// tick() is the only mutator.
type KernelState struct {
	Tasks     *task.Table
	Endpoints *ipc.Table
	Events    *evlog.Log
	AddrSpaces [constants.MaxTasks]*addrspace.AddressSpace

	Platform platform.PageTableBackend
	PhysMem  *physmem.Manager
	Metrics  *Metrics
	Logger   *logging.Logger

	TickCount uint64
	Current   sched.Current

	// PendingFrameRequest and PendingDemoMemAction are set by a harness
	// or demo driver ahead of a Tick call to request the corresponding
	// transition branch; tick() clears them once applied.
	PendingFrameRequest  bool
	PendingDemoMemAction *MemAction

	// PendingIPC holds this tick's queued send/recv/reply calls.
	PendingIPC []IPCRequest
}

// NewKernelState builds a fresh kernel: one kernel task (TaskId 0,
// highest default priority, Running), the kernel's own address space
// with a PML4 root drawn from the physical memory manager, and empty
// event/endpoint tables.
func NewKernelState(info *bootabi.BootInfo, backend platform.PageTableBackend, logger *logging.Logger) (*KernelState, error) {
	if logger == nil {
		logger = logging.Default()
	}

	k := &KernelState{
		Tasks:     task.NewTable(),
		Endpoints: ipc.NewTable(),
		Events:    evlog.New(constants.EventLogCapacity),
		Platform:  backend,
		PhysMem:   physmem.NewManager(info),
		Metrics:   NewMetrics(),
		Logger:    logger,
	}

	kernelIdx, err := k.Tasks.Add(task.Id(constants.KernelTaskID), 10)
	if err != nil {
		return nil, WrapError("kernel.NewKernelState", CodeCapacityExceeded, err)
	}
	kernelTask := k.Tasks.Get(kernelIdx)
	kernelTask.State = task.Running
	kernelTask.QuantumRemaining = constants.QuantumDefault
	k.Current = sched.Of(kernelIdx)

	kernelSpace := addrspace.New(constants.NMap)
	root, err := k.PhysMem.Allocate()
	if err != nil {
		return nil, WrapError("kernel.NewKernelState", CodeCapacityExceeded, err)
	}
	kernelSpace.SetRootPageFrame(root)
	k.AddrSpaces[kernelIdx] = kernelSpace

	return k, nil
}

// AddTask creates a new task Ready to run, with its own address space:
// a fresh PML4 root drawn from the physical memory manager, with the
// kernel's high-half entries (256..512) copied in and the low half
// (0..256) left empty, per spec.md §4.3.
func (k *KernelState) AddTask(priority uint8) (task.Index, error) {
	idx, err := k.Tasks.Add(task.Id(uint64(k.Tasks.Count())), priority)
	if err != nil {
		return 0, WrapError("kernel.AddTask", CodeCapacityExceeded, err)
	}
	k.Tasks.Ready.Add(idx)

	as := addrspace.New(constants.NMap)
	root, err := k.PhysMem.Allocate()
	if err != nil {
		return 0, WrapError("kernel.AddTask", CodeCapacityExceeded, err)
	}
	as.SetRootPageFrame(root)
	if kernelSpace := k.AddrSpaces[constants.KernelTaskIndex]; kernelSpace != nil {
		as.CopyHighHalf(kernelSpace)
	}
	k.AddrSpaces[idx] = as
	return idx, nil
}

// AddEndpoint creates a new endpoint.
func (k *KernelState) AddEndpoint() (int, error) {
	idx, err := k.Endpoints.Add(uint64(k.Endpoints.Count()))
	if err != nil {
		return 0, WrapError("kernel.AddEndpoint", CodeCapacityExceeded, err)
	}
	return idx, nil
}

// Tick performs exactly one logical step of the kernel state machine
// (spec.md §4.1): emit TickStarted, compute the pure transition, apply
// its action, drain any IPC requests queued this tick, run the
// scheduler, and check every cross-cutting invariant before returning.
func (k *KernelState) Tick() {
	k.Events.Append(evlog.Event{Kind: evlog.TickStarted, Tick: k.TickCount})
	k.Logger.Infof("KernelState::tick() tick=%d", k.TickCount)

	activity, action := nextActivityAndAction(k)
	k.applyAction(activity, action)

	k.drainPendingIPC()

	next, switched := sched.PickNext(k.Tasks, k.Current, constants.QuantumDefault, k.Events)
	if switched {
		// The switch routine itself always runs out of the shared
		// high-half, so its own code/stack addresses gate every CR3
		// write regardless of which task is being switched to.
		if !k.Platform.ConfigureCR3SwitchSafety(constants.KernelSpaceStart, constants.KernelSpaceStart) {
			k.failStop("platform.ConfigureCR3SwitchSafety", CodeMemorySafety, errors.New("cr3 switch unsafe: switch routine not resident in shared high half"))
		}
		k.Metrics.SchedulerSwitchesTotal.Add(1)
	}
	k.Current = next

	k.checkInvariants()

	k.Metrics.TicksTotal.Add(1)
	k.TickCount++
}

func (k *KernelState) applyAction(activity Activity, action Action) {
	_ = activity
	switch action.Kind {
	case ActionIncrementTimer:
		k.Events.Append(evlog.Event{Kind: evlog.TimerUpdated, Tick: k.TickCount})
	case ActionAllocFrame:
		if _, err := k.PhysMem.Allocate(); err != nil {
			k.Logger.Warn("frame allocation failed", "error", err)
		} else {
			k.Metrics.FramesAllocatedTotal.Add(1)
			k.Events.Append(evlog.Event{Kind: evlog.FrameAllocated})
		}
		k.PendingFrameRequest = false
	case ActionApplyMem:
		k.applyMemAction(task.Index(action.Task), action.Mem)
		k.PendingDemoMemAction = nil
	case ActionSchedule, ActionNone:
		// Scheduling itself happens unconditionally after every action
		// in Tick; nothing further to do here.
	}
}

func (k *KernelState) applyMemAction(idx task.Index, mem MemAction) {
	as := k.AddrSpaces[idx]
	t := k.Tasks.Get(idx)
	if as == nil || t == nil {
		k.invariantViolation(fmt.Sprintf("ApplyMem targets unknown task %d", idx))
		return
	}

	switch mem.Kind {
	case MemMap:
		if err := as.Map(mem.Page, mem.Frame, mem.Flags); err != nil {
			k.failStop("kernel.ApplyMem", CodeMemorySafety, err)
		}
		if root, ok := as.RootPageFrame(); ok {
			if err := k.Platform.Map(root, mem.Page, mem.Frame, mem.Flags); err != nil {
				k.failStop("platform.Map", CodeMemorySafety, err)
			}
		}
	case MemUnmap:
		if err := as.Unmap(mem.Page); err != nil {
			k.failStop("kernel.ApplyMem", CodeMemorySafety, err)
		}
		if root, ok := as.RootPageFrame(); ok {
			if err := k.Platform.Unmap(root, mem.Page); err != nil {
				k.failStop("platform.Unmap", CodeMemorySafety, err)
			}
		}
	}

	k.Events.Append(evlog.Event{Kind: evlog.MemActionApplied, TaskID: t.ID.Raw(), MemOp: mem.Kind.String()})
}

func (k *KernelState) drainPendingIPC() {
	reqs := k.PendingIPC
	k.PendingIPC = nil

	for _, r := range reqs {
		switch r.Kind {
		case IPCRequestSend:
			path, err := ipc.Send(k.Tasks, k.Endpoints, k.Events, k.Logger, r.TaskIdx, r.Endpoint, r.Msg)
			if err != nil {
				k.failStop("ipc.Send", CodeInvariantViolation, err)
				continue
			}
			k.Metrics.IPCSendTotal.Add(1)
			k.bumpIPCPath(path)
		case IPCRequestRecv:
			path, err := ipc.Recv(k.Tasks, k.Endpoints, k.Events, k.Logger, r.TaskIdx, r.Endpoint)
			if err != nil {
				k.failStop("ipc.Recv", CodeInvariantViolation, err)
				continue
			}
			k.bumpIPCPath(path)
		case IPCRequestReply:
			_ = ipc.Reply(k.Tasks, k.Endpoints, k.Events, k.Logger, r.TaskIdx, r.Endpoint, r.Msg)
		}
	}
}

func (k *KernelState) bumpIPCPath(path string) {
	switch path {
	case "fast":
		k.Metrics.IPCFastpathTotal.Add(1)
	case "slow":
		k.Metrics.IPCSlowpathTotal.Add(1)
	}
}

func (k *KernelState) failStop(op string, code ErrorCode, cause error) {
	desc := fmt.Sprintf("%s: %v", op, cause)
	k.Logger.Fatal(desc)
	panic(WrapError(op, code, cause))
}

func (k *KernelState) invariantViolation(desc string) {
	k.Logger.Fatal(desc)
	panic(NewError("kernel.checkInvariants", CodeInvariantViolation, desc))
}

// checkInvariants runs every cross-cutting check from spec.md §3 after
// every tick. Violations of invariants 1-4, 6, 7 are fail-stop; a
// violation of invariant 5 (a Dead task referenced by an endpoint queue)
// is fail-safe: logged and skipped, never panicked.
func (k *KernelState) checkInvariants() {
	k.Metrics.InvariantChecksTotal.Add(1)

	k.checkExactlyOneRunning()
	k.checkQueueConsistency()
	k.checkEndpointConsistency()
	k.checkNoDeadDeliveryTargets()
	k.checkAddressSpaceCapacity()
	k.checkPendingSendInvariant()
}

func (k *KernelState) checkExactlyOneRunning() {
	running := 0
	anyReady := false
	for _, t := range k.Tasks.All() {
		if t.State == task.Running {
			running++
		}
		if t.State == task.Ready {
			anyReady = true
		}
	}
	if running > 1 {
		k.invariantViolation("more than one task Running")
	}
	if running == 0 && anyReady {
		k.invariantViolation("no task Running while a Ready task exists")
	}
}

func (k *KernelState) checkQueueConsistency() {
	for _, t := range k.Tasks.All() {
		inReady := k.Tasks.Ready.Contains(t.Index)
		inWait := k.Tasks.Wait.Contains(t.Index)
		if inReady && inWait {
			k.invariantViolation(fmt.Sprintf("task %d present in both ready_queue and wait_queue", t.Index))
		}
		if inReady != (t.State == task.Ready) {
			k.invariantViolation(fmt.Sprintf("task %d ready_queue membership disagrees with state %s", t.Index, t.State))
		}
		if inWait != (t.State == task.Blocked) {
			k.invariantViolation(fmt.Sprintf("task %d wait_queue membership disagrees with state %s", t.Index, t.State))
		}
	}
}

func (k *KernelState) checkEndpointConsistency() {
	for i := 0; i < k.Endpoints.Count(); i++ {
		ep := k.Endpoints.Get(i)
		if waiterIdx, ok := ep.HasRecvWaiter(); ok {
			t := k.Tasks.Get(waiterIdx)
			if t == nil || t.State != task.Blocked || t.Blocked.Kind != task.KindIPCRecv || t.Blocked.Endpoint != ep.ID {
				k.invariantViolation(fmt.Sprintf("endpoint %d recv_waiter inconsistent with task %d", i, waiterIdx))
			}
		}
		for _, idx := range ep.SendQueue.Indices() {
			t := k.Tasks.Get(idx)
			if t == nil || t.State != task.Blocked || t.Blocked.Kind != task.KindIPCSend || t.Blocked.Endpoint != ep.ID {
				k.invariantViolation(fmt.Sprintf("endpoint %d send_queue inconsistent with task %d", i, idx))
			}
		}
		for _, idx := range ep.ReplyQueue.Indices() {
			t := k.Tasks.Get(idx)
			if t == nil || t.State != task.Blocked || t.Blocked.Kind != task.KindIPCReply || t.Blocked.Endpoint != ep.ID {
				k.invariantViolation(fmt.Sprintf("endpoint %d reply_queue inconsistent with task %d", i, idx))
			}
		}
	}
}

// checkNoDeadDeliveryTargets is invariant 5's fail-safe check: it only
// logs, it never panics.
func (k *KernelState) checkNoDeadDeliveryTargets() {
	for i := 0; i < k.Endpoints.Count(); i++ {
		ep := k.Endpoints.Get(i)
		if waiterIdx, ok := ep.HasRecvWaiter(); ok {
			if t := k.Tasks.Get(waiterIdx); t != nil && t.State == task.Dead {
				k.Logger.Warn("dead task referenced as recv_waiter", "endpoint", i, "task", waiterIdx)
			}
		}
		for _, idx := range ep.SendQueue.Indices() {
			if t := k.Tasks.Get(idx); t != nil && t.State == task.Dead {
				k.Logger.Warn("dead task referenced in send_queue", "endpoint", i, "task", idx)
			}
		}
		for _, idx := range ep.ReplyQueue.Indices() {
			if t := k.Tasks.Get(idx); t != nil && t.State == task.Dead {
				k.Logger.Warn("dead task referenced in reply_queue", "endpoint", i, "task", idx)
			}
		}
	}
}

func (k *KernelState) checkAddressSpaceCapacity() {
	seen := make(map[addrspace.VirtPage]bool, constants.NMap)
	for i := 0; i < k.Tasks.Count(); i++ {
		as := k.AddrSpaces[i]
		if as == nil {
			continue
		}
		if as.Len() > constants.NMap {
			k.invariantViolation(fmt.Sprintf("task %d address space exceeds NMap", i))
		}
		for k := range seen {
			delete(seen, k)
		}
		for _, m := range as.Mappings() {
			if seen[m.Page] {
				k.invariantViolation(fmt.Sprintf("task %d has duplicate mapping for page %d", i, m.Page))
			}
			seen[m.Page] = true
		}
	}
}

func (k *KernelState) checkPendingSendInvariant() {
	for _, t := range k.Tasks.All() {
		hasPending := t.PendingSendMsg != nil
		isBlockedSend := t.State == task.Blocked && t.Blocked.Kind == task.KindIPCSend
		if hasPending != isBlockedSend {
			k.invariantViolation(fmt.Sprintf("task %d pending_send_msg inconsistent with blocked reason", t.Index))
		}
	}
}

// Dump renders the three dump sections spec.md §6 names, in order:
// the event log, the per-task address space dump, and the endpoint
// dump.
func (k *KernelState) Dump() []string {
	out := k.Events.Dump()
	out = append(out, k.dumpAddressSpaces()...)
	out = append(out, k.dumpEndpoints()...)
	return out
}

func (k *KernelState) dumpAddressSpaces() []string {
	out := []string{"=== AddressSpace Dump (per task) ==="}
	for i := 0; i < k.Tasks.Count(); i++ {
		as := k.AddrSpaces[i]
		if as == nil {
			continue
		}
		for _, m := range as.Mappings() {
			out = append(out, fmt.Sprintf("task=%d page=%d frame=%d flags=%d", i, m.Page, m.Frame, m.Flags))
		}
	}
	return out
}

func (k *KernelState) dumpEndpoints() []string {
	out := []string{"=== Endpoint Dump ==="}
	for i := 0; i < k.Endpoints.Count(); i++ {
		ep := k.Endpoints.Get(i)
		waiter := "none"
		if idx, ok := ep.HasRecvWaiter(); ok {
			waiter = fmt.Sprintf("%d", idx)
		}
		out = append(out, fmt.Sprintf("endpoint=%d recv_waiter=%s send_queue=%v reply_queue=%v",
			i, waiter, ep.SendQueue.Indices(), ep.ReplyQueue.Indices()))
	}
	return out
}
