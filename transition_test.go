package gokernel

import (
	"testing"

	"github.com/kernelcore/gokernel/internal/constants"
	"github.com/kernelcore/gokernel/internal/sched"
)

func TestNextActivityTimerTakesPriority(t *testing.T) {
	s := &KernelState{TickCount: 0, PendingFrameRequest: true}
	activity, action := nextActivityAndAction(s)
	if activity != UpdatingTimer {
		t.Errorf("activity = %v, want UpdatingTimer at a timer-due tick even with a frame request pending", activity)
	}
	if action.Kind != ActionIncrementTimer {
		t.Errorf("action.Kind = %v, want ActionIncrementTimer", action.Kind)
	}
}

func TestNextActivityFrameRequestBeatsMemAction(t *testing.T) {
	s := &KernelState{
		TickCount:            1,
		PendingFrameRequest:  true,
		PendingDemoMemAction: &MemAction{Kind: MemMap, Page: 1, Frame: 1},
		Current:              sched.Of(0),
	}
	activity, action := nextActivityAndAction(s)
	if activity != AllocatingFrame {
		t.Errorf("activity = %v, want AllocatingFrame", activity)
	}
	if action.Kind != ActionAllocFrame {
		t.Errorf("action.Kind = %v, want ActionAllocFrame", action.Kind)
	}
}

func TestNextActivityMemActionRequiresValidCurrent(t *testing.T) {
	s := &KernelState{
		TickCount:            1,
		PendingDemoMemAction: &MemAction{Kind: MemMap, Page: 1, Frame: 1},
	}
	activity, action := nextActivityAndAction(s)
	if activity != Idle {
		t.Errorf("activity = %v, want Idle when no task is Current", activity)
	}
	if action.Kind != ActionSchedule {
		t.Errorf("action.Kind = %v, want ActionSchedule", action.Kind)
	}
}

func TestNextActivityMemActionWhenCurrentValid(t *testing.T) {
	mem := MemAction{Kind: MemUnmap, Page: 5}
	s := &KernelState{
		TickCount:            1,
		PendingDemoMemAction: &mem,
		Current:              sched.Of(3),
	}
	activity, action := nextActivityAndAction(s)
	if activity != MappingDemoPage {
		t.Errorf("activity = %v, want MappingDemoPage", activity)
	}
	if action.Kind != ActionApplyMem || action.Task != 3 || action.Mem != mem {
		t.Errorf("action = %+v, want ActionApplyMem{Task: 3, Mem: %+v}", action, mem)
	}
}

func TestNextActivityIdleWhenNothingPending(t *testing.T) {
	s := &KernelState{TickCount: 1}
	activity, action := nextActivityAndAction(s)
	if activity != Idle {
		t.Errorf("activity = %v, want Idle", activity)
	}
	if action.Kind != ActionSchedule {
		t.Errorf("action.Kind = %v, want ActionSchedule", action.Kind)
	}
}

func TestTimerPeriodModulus(t *testing.T) {
	s := &KernelState{TickCount: constants.TimerPeriod}
	activity, _ := nextActivityAndAction(s)
	if activity != UpdatingTimer {
		t.Errorf("activity at tick %d = %v, want UpdatingTimer", constants.TimerPeriod, activity)
	}

	s2 := &KernelState{TickCount: constants.TimerPeriod + 1}
	activity2, _ := nextActivityAndAction(s2)
	if activity2 != Idle {
		t.Errorf("activity at tick %d = %v, want Idle", constants.TimerPeriod+1, activity2)
	}
}
