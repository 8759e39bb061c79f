package gokernel

import "github.com/kernelcore/gokernel/internal/constants"

// Re-exported tunables, so callers outside internal/ don't need to import
// internal/constants directly.
const (
	MaxTasks              = constants.MaxTasks
	MaxEndpoints          = constants.MaxEndpoints
	EndpointQueueCapacity = constants.EndpointQueueCapacity
	NMap                  = constants.NMap
	EventLogCapacity      = constants.EventLogCapacity
	TimerPeriod           = constants.TimerPeriod
	QuantumDefault        = constants.QuantumDefault
	PageSize              = constants.PageSize
	KernelTaskID          = constants.KernelTaskID
	KernelTaskIndex       = constants.KernelTaskIndex
)
