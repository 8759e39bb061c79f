package sched

import (
	"testing"

	"github.com/kernelcore/gokernel/internal/evlog"
	"github.com/kernelcore/gokernel/internal/task"
)

func TestPickNextPicksHighestPriorityReady(t *testing.T) {
	tasks := task.NewTable()
	low, _ := tasks.Add(task.Id(1), 1)
	high, _ := tasks.Add(task.Id(2), 9)
	tasks.Ready.Add(low)
	tasks.Ready.Add(high)

	log := evlog.New(16)
	next, switched := PickNext(tasks, None(), 5, log)
	if !switched {
		t.Fatal("expected a switch from no current task")
	}
	if next.Index() != high {
		t.Errorf("picked index %d, want the higher-priority task %d", next.Index(), high)
	}
	if tasks.Get(high).State != task.Running {
		t.Errorf("picked task state = %v, want Running", tasks.Get(high).State)
	}
}

func TestPickNextTieBreaksByLowestIndex(t *testing.T) {
	tasks := task.NewTable()
	a, _ := tasks.Add(task.Id(1), 5)
	b, _ := tasks.Add(task.Id(2), 5)
	tasks.Ready.Add(b)
	tasks.Ready.Add(a)

	log := evlog.New(16)
	next, _ := PickNext(tasks, None(), 5, log)
	if next.Index() != a {
		t.Errorf("picked index %d, want the lower index %d on a priority tie", next.Index(), a)
	}
}

func TestPickNextKeepsRunningTaskWhileQuantumRemains(t *testing.T) {
	tasks := task.NewTable()
	idx, _ := tasks.Add(task.Id(1), 5)
	tasks.Ready.Remove(idx)
	tasks.Get(idx).State = task.Running
	tasks.Get(idx).QuantumRemaining = 3

	log := evlog.New(16)
	current := Of(idx)
	next, switched := PickNext(tasks, current, 5, log)
	if switched {
		t.Error("expected no switch while quantum remains and no higher-priority task is ready")
	}
	if next.Index() != idx {
		t.Errorf("current task changed to %d, want %d", next.Index(), idx)
	}
	if tasks.Get(idx).QuantumRemaining != 2 {
		t.Errorf("QuantumRemaining = %d, want 2 after decrement", tasks.Get(idx).QuantumRemaining)
	}
}

func TestPickNextPreemptsForHigherPriorityReady(t *testing.T) {
	tasks := task.NewTable()
	running, _ := tasks.Add(task.Id(1), 5)
	tasks.Ready.Remove(running)
	tasks.Get(running).State = task.Running
	tasks.Get(running).QuantumRemaining = 10

	higher, _ := tasks.Add(task.Id(2), 9)
	tasks.Ready.Add(higher)

	log := evlog.New(16)
	next, switched := PickNext(tasks, Of(running), 5, log)
	if !switched {
		t.Fatal("expected a preemptive switch to the higher-priority Ready task")
	}
	if next.Index() != higher {
		t.Errorf("picked %d, want %d", next.Index(), higher)
	}
	if tasks.Get(running).State != task.Ready {
		t.Errorf("preempted task state = %v, want Ready", tasks.Get(running).State)
	}
}

func TestPickNextNoneWhenNoReadyTasks(t *testing.T) {
	tasks := task.NewTable()
	log := evlog.New(16)
	next, switched := PickNext(tasks, None(), 5, log)
	if switched {
		t.Error("expected no switch with an empty ready queue")
	}
	if next.Valid() {
		t.Error("expected None() when no Ready task exists")
	}
}
