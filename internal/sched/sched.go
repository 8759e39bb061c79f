// Package sched implements the priority round-robin Scheduler (C9):
// picking the next Running task from ready_queue, with deterministic
// priority + index tie-breaking.
//
// Grounded on internal/ctrl/control.go's lifecycle-driven control shape
// (advance an aggregate through states on demand, not on a timer of its
// own) — the scheduler here is called by the tick loop, never runs a
// goroutine of its own, exactly like Controller.StartDevice et al. only
// act when invoked.
package sched

import (
	"github.com/kernelcore/gokernel/internal/evlog"
	"github.com/kernelcore/gokernel/internal/task"
)

// Current tracks which task index is Running, if any.
type Current struct {
	idx   task.Index
	valid bool
}

// None is the zero Current: no task Running.
func None() Current {
	return Current{}
}

// Of wraps idx as the current Running task.
func Of(idx task.Index) Current {
	return Current{idx: idx, valid: true}
}

// Index and Valid expose the wrapped state.
func (c Current) Index() task.Index { return c.idx }
func (c Current) Valid() bool       { return c.valid }

// PickNext runs the spec.md §4.2 selection algorithm once, called
// whenever action=Schedule or after any state change that adds to or
// removes from ready_queue/wait_queue. Returns the new Current and
// whether a TaskSwitched event was emitted. switched is true whenever a
// task is taken from ready_queue, including when the task whose quantum
// ran out is picked again.
func PickNext(tasks *task.Table, current Current, quantumDefault uint32, log *evlog.Log) (Current, bool) {
	if current.Valid() {
		t := tasks.Get(current.idx)
		if t != nil && t.State == task.Running {
			if t.QuantumRemaining > 0 && !higherPriorityReadyExists(tasks, t.Priority) {
				t.QuantumRemaining--
				return current, false
			}
			t.State = task.Ready
			tasks.Ready.Add(current.idx)
			log.Append(evlog.Event{Kind: evlog.TaskStateChanged, TaskID: t.ID.Raw(), State: task.Ready.String()})
			log.Append(evlog.Event{Kind: evlog.ReadyQueued, TaskID: t.ID.Raw()})
		}
	}

	nextIdx, ok := pickHighestPriorityReady(tasks)
	if !ok {
		return None(), false
	}

	tasks.Ready.Remove(nextIdx)
	next := tasks.Get(nextIdx)
	next.State = task.Running
	next.QuantumRemaining = quantumDefault

	log.Append(evlog.Event{Kind: evlog.ReadyDequeued, TaskID: next.ID.Raw()})
	log.Append(evlog.Event{Kind: evlog.TaskSwitched, TaskID: next.ID.Raw()})

	return Of(nextIdx), true
}

// higherPriorityReadyExists reports whether any Ready task strictly
// outranks priority.
func higherPriorityReadyExists(tasks *task.Table, priority uint8) bool {
	for _, idx := range tasks.Ready.Indices() {
		if t := tasks.Get(idx); t != nil && t.Priority > priority {
			return true
		}
	}
	return false
}

// pickHighestPriorityReady selects the Ready task with the highest
// priority, ties broken by lowest index (task.Queue.Indices already
// returns members in ascending index order).
func pickHighestPriorityReady(tasks *task.Table) (task.Index, bool) {
	indices := tasks.Ready.Indices()
	if len(indices) == 0 {
		return 0, false
	}
	best := indices[0]
	bestPriority := tasks.Get(best).Priority
	for _, idx := range indices[1:] {
		if p := tasks.Get(idx).Priority; p > bestPriority {
			best = idx
			bestPriority = p
		}
	}
	return best, true
}
