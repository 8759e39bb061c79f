package gokernel

import "sync/atomic"

// Metrics tracks kernel-wide tick and IPC counters. Grounded on the same
// sync/atomic-counter shape as the original device metrics, recast for
// tick/scheduling/IPC activity instead of block I/O.
type Metrics struct {
	TicksTotal             atomic.Uint64
	IPCSendTotal            atomic.Uint64
	IPCFastpathTotal        atomic.Uint64
	IPCSlowpathTotal        atomic.Uint64
	InvariantChecksTotal    atomic.Uint64
	SchedulerSwitchesTotal  atomic.Uint64
	FramesAllocatedTotal    atomic.Uint64
	EventsTruncatedTotal    atomic.Uint64
}

// NewMetrics creates a zeroed metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// MetricsSnapshot is a point-in-time copy, safe to read without further
// synchronization.
type MetricsSnapshot struct {
	TicksTotal             uint64
	IPCSendTotal           uint64
	IPCFastpathTotal       uint64
	IPCSlowpathTotal       uint64
	InvariantChecksTotal   uint64
	SchedulerSwitchesTotal uint64
	FramesAllocatedTotal   uint64
	EventsTruncatedTotal   uint64
}

// Snapshot copies all counters atomically with respect to each other's
// Load, though not as one atomic transaction across fields.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		TicksTotal:             m.TicksTotal.Load(),
		IPCSendTotal:           m.IPCSendTotal.Load(),
		IPCFastpathTotal:       m.IPCFastpathTotal.Load(),
		IPCSlowpathTotal:       m.IPCSlowpathTotal.Load(),
		InvariantChecksTotal:   m.InvariantChecksTotal.Load(),
		SchedulerSwitchesTotal: m.SchedulerSwitchesTotal.Load(),
		FramesAllocatedTotal:   m.FramesAllocatedTotal.Load(),
		EventsTruncatedTotal:   m.EventsTruncatedTotal.Load(),
	}
}

// Reset zeroes all counters. Used by tests that run several scenarios
// against one Metrics instance.
func (m *Metrics) Reset() {
	m.TicksTotal.Store(0)
	m.IPCSendTotal.Store(0)
	m.IPCFastpathTotal.Store(0)
	m.IPCSlowpathTotal.Store(0)
	m.InvariantChecksTotal.Store(0)
	m.SchedulerSwitchesTotal.Store(0)
	m.FramesAllocatedTotal.Store(0)
	m.EventsTruncatedTotal.Store(0)
}
