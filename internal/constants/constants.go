// Package constants holds the numeric tunables shared by every kernel
// subsystem. Keeping them in one leaf package avoids import cycles between
// the task table, scheduler, address space, and IPC engine, all of which
// need to agree on the same capacities.
package constants

const (
	// MaxTasks is the fixed capacity of the task table (C5). Tasks are
	// never reaped in this prototype, so this also bounds the number of
	// tasks that can ever exist.
	MaxTasks = 16

	// MaxEndpoints is the fixed capacity of the endpoint table (C7).
	MaxEndpoints = 8

	// EndpointQueueCapacity bounds each endpoint's send_queue and
	// reply_queue. An endpoint can never have more waiters than there are
	// tasks, so this is pinned to MaxTasks.
	EndpointQueueCapacity = MaxTasks

	// NMap is the per-task AddressSpace mapping capacity (spec.md §9
	// requires >= 16).
	NMap = 32

	// EventLogCapacity is the Event Log's bounded size (spec.md §9
	// requires >= 128).
	EventLogCapacity = 256

	// TimerPeriod is the tick modulus at which the timer activity fires.
	TimerPeriod = 8

	// QuantumDefault is the number of ticks a task runs before the
	// scheduler requeues it and picks again; only a Ready task of equal
	// priority and lower index can then take over (a higher-priority
	// Ready task preempts at once, a lower-priority one never does).
	QuantumDefault = 5

	// PageSize is the size in bytes of one physical frame / virtual page.
	PageSize = 4096

	// KernelSpaceStart is the first virtual address of the shared
	// high-half. Addresses below this are low-half (per-task, isolated);
	// addresses at or above it are high-half (shared kernel mappings).
	KernelSpaceStart = uint64(0xFFFF_8000_0000_0000)

	// PML4EntryCount is the number of entries in one page-table level.
	PML4EntryCount = 512

	// KernelTaskID is the TaskId of the always-present kernel task, the
	// only task that owns a real PML4 by default.
	KernelTaskID = 0

	// KernelTaskIndex is the TaskIndex of the kernel task.
	KernelTaskIndex = 0
)
