// Package ipc implements the Endpoint Table (C7) and the synchronous
// send/recv/reply protocol over it (C8 IPC Engine).
//
// Grounded on internal/ctrl/control.go's structured-logger call style
// (c.logger.Debug("msg", "key", val, ...)) for the [INFO] ipc_trace lines
// spec.md §6 requires bit-exact, and on internal/queue/runner.go's
// single-owner, lock-free table discipline: like the runner's per-tag
// array, the endpoint table here is touched only by the single tick
// loop, so no mutex is needed despite the shared fixed arrays.
package ipc

import (
	"errors"

	"github.com/kernelcore/gokernel/internal/constants"
	"github.com/kernelcore/gokernel/internal/evlog"
	"github.com/kernelcore/gokernel/internal/logging"
	"github.com/kernelcore/gokernel/internal/task"
)

// ErrCapacityExceeded is returned by Table.Add once MaxEndpoints
// endpoints exist.
var ErrCapacityExceeded = errors.New("ipc: endpoint capacity exceeded")

// ErrRecvWaiterAlreadySet is fail-stop (invariant 4): Recv was called on
// an endpoint that already has a recv_waiter.
var ErrRecvWaiterAlreadySet = errors.New("ipc: recv_waiter already set")

// Endpoint is one row of the Endpoint Table (C7): at most one
// recv_waiter, plus bounded send_queue/reply_queue sets of blocked task
// indices.
type Endpoint struct {
	ID         uint64
	recvWaiter *task.Index
	SendQueue  *task.Queue
	ReplyQueue *task.Queue
}

// HasRecvWaiter reports whether a task is currently parked as this
// endpoint's recv_waiter.
func (e *Endpoint) HasRecvWaiter() (task.Index, bool) {
	if e.recvWaiter == nil {
		return 0, false
	}
	return *e.recvWaiter, true
}

// Table is the fixed-capacity endpoint array.
type Table struct {
	endpoints [constants.MaxEndpoints]Endpoint
	count     int
}

// NewTable creates an empty endpoint table.
func NewTable() *Table {
	return &Table{}
}

// Add creates a new endpoint at the next free slot.
func (t *Table) Add(id uint64) (int, error) {
	if t.count >= constants.MaxEndpoints {
		return 0, ErrCapacityExceeded
	}
	idx := t.count
	t.endpoints[idx] = Endpoint{
		ID:         id,
		SendQueue:  task.NewQueue(),
		ReplyQueue: task.NewQueue(),
	}
	t.count++
	return idx, nil
}

// Get returns the endpoint at idx, or nil if idx was never created.
func (t *Table) Get(idx int) *Endpoint {
	if idx < 0 || idx >= t.count {
		return nil
	}
	return &t.endpoints[idx]
}

// Count returns the number of endpoints created so far.
func (t *Table) Count() int {
	return t.count
}

func logIPCTrace(logger *logging.Logger, kind string, taskID uint64, epID uint64, msg *uint64) {
	logger.Infof("ipc_trace kind=%s", kind)
	logger.Infof("task_id_hash = %d", taskID)
	logger.Infof("ep_id_hash = %d", epID)
	if msg != nil {
		logger.Infof("msg = %d", *msg)
	}
}

// Send implements ipc_send (spec.md §4.4). It returns the path taken
// ("fast" or "slow") so the caller can bump the matching metric. An
// invalid endpoint or sender is fail-safe: a warning is logged and
// ("", nil) is returned with no mutation. A non-nil error only comes from
// a full send_queue.
func Send(tasks *task.Table, eps *Table, log *evlog.Log, logger *logging.Logger, senderIdx task.Index, epIdx int, msg uint64) (path string, err error) {
	ep := eps.Get(epIdx)
	sender := tasks.Get(senderIdx)
	if ep == nil || sender == nil {
		logger.Warn("ipc_send on invalid endpoint or sender", "ep", epIdx, "sender", senderIdx)
		return "", nil
	}

	if waiterIdx, ok := ep.HasRecvWaiter(); ok {
		receiver := tasks.Get(waiterIdx)
		if receiver != nil && receiver.State != task.Dead {
			// Fastpath: deliver directly to the waiting receiver.
			receiver.LastMsg = msg
			receiver.State = task.Ready
			receiver.Blocked = task.BlockedReason{}
			tasks.Wait.Remove(waiterIdx)
			tasks.Ready.Add(waiterIdx)
			ep.recvWaiter = nil

			sender.State = task.Blocked
			sender.Blocked = task.BlockedReason{Kind: task.KindIPCReply, Partner: receiver.ID, Endpoint: ep.ID}
			tasks.Ready.Remove(senderIdx)
			tasks.Wait.Add(senderIdx)
			ep.ReplyQueue.Add(senderIdx)

			logIPCTrace(logger, "ipc_send", sender.ID.Raw(), ep.ID, &msg)
			logger.Infof("ipc_trace_paths send=fast")
			log.Append(evlog.Event{Kind: evlog.IPCSend, TaskID: sender.ID.Raw(), Endpoint: ep.ID, Path: "fast"})
			log.Append(evlog.Event{Kind: evlog.TaskStateChanged, TaskID: receiver.ID.Raw(), State: task.Ready.String()})
			log.Append(evlog.Event{Kind: evlog.ReadyQueued, TaskID: receiver.ID.Raw()})
			log.Append(evlog.Event{Kind: evlog.TaskStateChanged, TaskID: sender.ID.Raw(), State: task.Blocked.String()})
			return "fast", nil
		}
		// recv_waiter is Dead: cleared lazily, treated as absent.
		ep.recvWaiter = nil
	}

	// Slowpath: no live recv_waiter.
	m := msg
	sender.PendingSendMsg = &m
	sender.State = task.Blocked
	sender.Blocked = task.BlockedReason{Kind: task.KindIPCSend, Endpoint: ep.ID}
	tasks.Ready.Remove(senderIdx)
	tasks.Wait.Add(senderIdx)
	if err := ep.SendQueue.Add(senderIdx); err != nil {
		return "", err
	}

	logIPCTrace(logger, "ipc_send", sender.ID.Raw(), ep.ID, &msg)
	logger.Infof("ipc_trace_paths send=slow")
	log.Append(evlog.Event{Kind: evlog.IPCSend, TaskID: sender.ID.Raw(), Endpoint: ep.ID, Path: "slow"})
	return "slow", nil
}

// Recv implements ipc_recv (spec.md §4.4). Returns ErrRecvWaiterAlreadySet
// as the one fail-stop condition (invariant 4); all other outcomes are
// nil-error.
func Recv(tasks *task.Table, eps *Table, log *evlog.Log, logger *logging.Logger, receiverIdx task.Index, epIdx int) (path string, err error) {
	ep := eps.Get(epIdx)
	receiver := tasks.Get(receiverIdx)
	if ep == nil || receiver == nil {
		logger.Warn("ipc_recv on invalid endpoint or receiver", "ep", epIdx, "receiver", receiverIdx)
		return "", nil
	}

	for {
		indices := ep.SendQueue.Indices()
		if len(indices) == 0 {
			break
		}
		senderIdx := indices[0]
		sender := tasks.Get(senderIdx)
		if sender == nil || sender.State == task.Dead {
			ep.SendQueue.Remove(senderIdx)
			logger.Warn("ipc_recv found dead sender in send_queue, skipping", "task", senderIdx)
			continue
		}

		// Fastpath: deliver the queued sender's pending message.
		msg := uint64(0)
		if sender.PendingSendMsg != nil {
			msg = *sender.PendingSendMsg
		}
		receiver.LastMsg = msg
		sender.PendingSendMsg = nil
		sender.Blocked = task.BlockedReason{Kind: task.KindIPCReply, Partner: receiver.ID, Endpoint: ep.ID}
		ep.SendQueue.Remove(senderIdx)
		ep.ReplyQueue.Add(senderIdx)

		logIPCTrace(logger, "ipc_recv", receiver.ID.Raw(), ep.ID, nil)
		logger.Infof("ipc_trace_paths recv=fast")
		log.Append(evlog.Event{Kind: evlog.IPCRecv, TaskID: receiver.ID.Raw(), Endpoint: ep.ID, Path: "fast"})
		return "fast", nil
	}

	// Slowpath: no sender queued.
	if _, already := ep.HasRecvWaiter(); already {
		return "", ErrRecvWaiterAlreadySet
	}
	idx := receiverIdx
	ep.recvWaiter = &idx
	receiver.State = task.Blocked
	receiver.Blocked = task.BlockedReason{Kind: task.KindIPCRecv, Endpoint: ep.ID}
	tasks.Ready.Remove(receiverIdx)
	tasks.Wait.Add(receiverIdx)

	logIPCTrace(logger, "ipc_recv", receiver.ID.Raw(), ep.ID, nil)
	logger.Infof("ipc_trace_paths recv=slow")
	log.Append(evlog.Event{Kind: evlog.IPCRecv, TaskID: receiver.ID.Raw(), Endpoint: ep.ID, Path: "slow"})
	log.Append(evlog.Event{Kind: evlog.TaskStateChanged, TaskID: receiver.ID.Raw(), State: task.Blocked.String()})
	return "slow", nil
}

// Reply implements ipc_reply (spec.md §4.4). Never fails: an absent
// partner is a fail-safe no-op, logged and reported via
// Delivered=false.
func Reply(tasks *task.Table, eps *Table, log *evlog.Log, logger *logging.Logger, currentIdx task.Index, epIdx int, msg uint64) error {
	ep := eps.Get(epIdx)
	current := tasks.Get(currentIdx)
	if ep == nil || current == nil {
		logger.Warn("ipc_reply on invalid endpoint or caller", "ep", epIdx, "task", currentIdx)
		return nil
	}

	for _, candidateIdx := range ep.ReplyQueue.Indices() {
		candidate := tasks.Get(candidateIdx)
		if candidate == nil {
			continue
		}
		if candidate.State == task.Dead {
			ep.ReplyQueue.Remove(candidateIdx)
			logger.Warn("ipc_reply found dead candidate in reply_queue, skipping", "task", candidateIdx)
			continue
		}
		if candidate.Blocked.Kind != task.KindIPCReply || candidate.Blocked.Partner != current.ID || candidate.Blocked.Endpoint != ep.ID {
			continue
		}

		candidate.LastReply = msg
		candidate.State = task.Ready
		candidate.Blocked = task.BlockedReason{}
		tasks.Wait.Remove(candidateIdx)
		tasks.Ready.Add(candidateIdx)
		ep.ReplyQueue.Remove(candidateIdx)

		log.Append(evlog.Event{Kind: evlog.IPCReply, TaskID: current.ID.Raw(), Endpoint: ep.ID, Delivered: true})
		log.Append(evlog.Event{Kind: evlog.TaskStateChanged, TaskID: candidate.ID.Raw(), State: task.Ready.String()})
		log.Append(evlog.Event{Kind: evlog.ReadyQueued, TaskID: candidate.ID.Raw()})
		logger.Infof("ipc_trace_paths reply=delivered")
		return nil
	}

	logger.Warn("ipc_reply found no matching partner in reply_queue", "task", currentIdx, "ep", epIdx)
	log.Append(evlog.Event{Kind: evlog.IPCReply, TaskID: current.ID.Raw(), Endpoint: ep.ID, Delivered: false})
	return nil
}
