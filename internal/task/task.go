// Package task implements the fixed-capacity Task Table (C5) and the
// Ready/Wait queue sets (C6).
//
// Grounded on internal/queue/runner.go's per-tag TagState state machine
// (TagStateInFlightFetch / TagStateOwned / TagStateInFlightCommit): there,
// a small fixed array of tags each carry one state drawn from a closed
// enum and a mutex-free single-owner discipline because only the runner's
// own goroutine touches them. Here the same shape, one array slot per
// task, one state drawn from {Running, Ready, Blocked, Dead}, mutated only
// by the single tick loop.
package task

import (
	"errors"

	"github.com/kernelcore/gokernel/internal/constants"
)

// ErrCapacityExceeded is returned by Table.Add once MaxTasks slots are in
// use, and by Queue.Add once a queue is at capacity.
var ErrCapacityExceeded = errors.New("task: capacity exceeded")

// Id is the stable, opaque identifier handed out at creation. Distinct
// from Index, which is the task's slot in the fixed array and is never
// exposed in events except translated back to an Id.
type Id uint64

// Raw returns the underlying integer value, for embedding in evlog
// events and log lines that only want a plain uint64.
func (id Id) Raw() uint64 {
	return uint64(id)
}

// Index is the 0-based slot of a task in the fixed task array.
type Index uint32

// State is one of the four states spec.md §3 names. At most one task may
// be Running at any instant (invariant 1).
//
// The original distillation left the exact vocabulary as an open
// question; the four-state set here is spec.md's own, not a reduced
// three-state alternative some loader-generation READMEs describe.
type State int

const (
	Running State = iota
	Ready
	Blocked
	Dead
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Ready:
		return "Ready"
	case Blocked:
		return "Blocked"
	case Dead:
		return "Dead"
	default:
		return "Unknown"
	}
}

// BlockedKind tags which of the four BlockedReason variants a Task
// carries. Zero value (KindNone) is only valid when State != Blocked.
type BlockedKind int

const (
	KindNone BlockedKind = iota
	KindSleep
	KindIPCRecv
	KindIPCSend
	KindIPCReply
)

// BlockedReason is the tagged variant from spec.md §3. Only the fields
// relevant to Kind are meaningful.
type BlockedReason struct {
	Kind     BlockedKind
	WakeTick uint64 // Sleep
	Endpoint uint64 // IpcRecv, IpcSend, IpcReply
	Partner  Id     // IpcReply
}

// Task is one row of the task table.
type Task struct {
	ID               Id
	Index            Index
	State            State
	Priority         uint8
	QuantumRemaining uint32
	Blocked          BlockedReason

	// PendingSendMsg is present iff State == Blocked and Blocked.Kind ==
	// KindIPCSend (invariant 7).
	PendingSendMsg *uint64

	LastMsg   uint64
	LastReply uint64
}

// Table is the fixed-capacity task array (C5) plus its Ready/Wait queue
// sets (C6).
type Table struct {
	tasks [constants.MaxTasks]Task
	count int

	Ready *Queue
	Wait  *Queue
}

// NewTable creates an empty table with its Ready/Wait queues.
func NewTable() *Table {
	return &Table{
		Ready: NewQueue(),
		Wait:  NewQueue(),
	}
}

// Add creates a new task at the next free index, Ready by construction
// (the caller schedules it in or leaves it parked). Returns
// ErrCapacityExceeded once MaxTasks tasks exist; tasks are never reaped
// in this prototype so this is a true hard ceiling.
func (t *Table) Add(id Id, priority uint8) (Index, error) {
	if t.count >= constants.MaxTasks {
		return 0, ErrCapacityExceeded
	}
	idx := Index(t.count)
	t.tasks[idx] = Task{
		ID:       id,
		Index:    idx,
		State:    Ready,
		Priority: priority,
	}
	t.count++
	return idx, nil
}

// Get returns a pointer into the fixed array for the given index, or nil
// if idx is out of range of the tasks created so far.
func (t *Table) Get(idx Index) *Task {
	if int(idx) >= t.count {
		return nil
	}
	return &t.tasks[idx]
}

// Count returns the number of tasks created so far.
func (t *Table) Count() int {
	return t.count
}

// All returns the live task slots in index order.
func (t *Table) All() []*Task {
	out := make([]*Task, 0, t.count)
	for i := 0; i < t.count; i++ {
		out = append(out, &t.tasks[i])
	}
	return out
}

// Queue is a fixed-size set of task indices, used for both ready_queue
// and wait_queue. Membership order is deliberately abstracted (spec.md
// §2, C6): callers that need deterministic selection order (the
// scheduler) derive it from priority + index, not queue insertion order.
type Queue struct {
	present [constants.MaxTasks]bool
	count   int
}

// NewQueue creates an empty queue bounded at MaxTasks members.
func NewQueue() *Queue {
	return &Queue{}
}

// Add inserts idx, or is a no-op if idx is already a member.
func (q *Queue) Add(idx Index) error {
	if int(idx) >= constants.MaxTasks {
		return ErrCapacityExceeded
	}
	if q.present[idx] {
		return nil
	}
	if q.count >= constants.MaxTasks {
		return ErrCapacityExceeded
	}
	q.present[idx] = true
	q.count++
	return nil
}

// Remove deletes idx from the set; a no-op if idx is not a member.
func (q *Queue) Remove(idx Index) {
	if int(idx) < constants.MaxTasks && q.present[idx] {
		q.present[idx] = false
		q.count--
	}
}

// Contains reports set membership.
func (q *Queue) Contains(idx Index) bool {
	return int(idx) < constants.MaxTasks && q.present[idx]
}

// Len returns the number of members.
func (q *Queue) Len() int {
	return q.count
}

// Indices returns the members in ascending index order, the stable
// iteration order the scheduler's tie-break (priority, then index)
// depends on.
func (q *Queue) Indices() []Index {
	out := make([]Index, 0, q.count)
	for i := 0; i < constants.MaxTasks; i++ {
		if q.present[i] {
			out = append(out, Index(i))
		}
	}
	return out
}
