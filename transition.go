package gokernel

import (
	"github.com/kernelcore/gokernel/internal/addrspace"
	"github.com/kernelcore/gokernel/internal/constants"
)

// Activity is the kernel's current intended activity (spec.md §3's
// KernelActivity). Exactly one is active per tick.
type Activity int

const (
	Idle Activity = iota
	UpdatingTimer
	AllocatingFrame
	MappingDemoPage
)

func (a Activity) String() string {
	switch a {
	case Idle:
		return "Idle"
	case UpdatingTimer:
		return "UpdatingTimer"
	case AllocatingFrame:
		return "AllocatingFrame"
	case MappingDemoPage:
		return "MappingDemoPage"
	default:
		return "Unknown"
	}
}

// ActionKind tags which effectful step tick() should perform next.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionIncrementTimer
	ActionAllocFrame
	ActionApplyMem
	ActionSchedule
)

// MemActionKind distinguishes the two operations a MemAction can carry.
type MemActionKind int

const (
	MemMap MemActionKind = iota
	MemUnmap
)

func (k MemActionKind) String() string {
	if k == MemUnmap {
		return "Unmap"
	}
	return "Map"
}

// MemAction is spec.md §3's MemAction: Map{page,frame,flags} | Unmap{page}.
type MemAction struct {
	Kind  MemActionKind
	Page  addrspace.VirtPage
	Frame addrspace.PhysFrame
	Flags addrspace.Flags
}

// Action is spec.md §3's KernelAction: what the effectful step should
// perform. Task/Mem are only meaningful when Kind == ActionApplyMem.
type Action struct {
	Kind ActionKind
	Task int
	Mem  MemAction
}

// nextActivityAndAction is the pure half of C10: same state, same
// result, always. It only reads state; tick() performs the mutation the
// returned Action describes.
//
// Transition policy, fixed order (spec.md §4.1):
//  1. timer tick due
//  2. a demo frame allocation is pending
//  3. the current task has a pending synthetic MemAction
//  4. otherwise, schedule
func nextActivityAndAction(s *KernelState) (Activity, Action) {
	if s.TickCount%constants.TimerPeriod == 0 {
		return UpdatingTimer, Action{Kind: ActionIncrementTimer}
	}
	if s.PendingFrameRequest {
		return AllocatingFrame, Action{Kind: ActionAllocFrame}
	}
	if s.PendingDemoMemAction != nil && s.Current.Valid() {
		return MappingDemoPage, Action{
			Kind: ActionApplyMem,
			Task: int(s.Current.Index()),
			Mem:  *s.PendingDemoMemAction,
		}
	}
	return Idle, Action{Kind: ActionSchedule}
}
