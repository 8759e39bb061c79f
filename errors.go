package gokernel

import (
	"errors"
	"fmt"
)

// Error is the kernel's structured error: every fail-stop path in
// kernel.go panics one of these (wrapping the internal package's sentinel
// error as Inner), so a test harness can errors.As it. The internal/*
// packages themselves return plain sentinel errors, and fail-safe paths
// only log.
type Error struct {
	Op    string    // operation that failed, e.g. "ipc.Send", "addrspace.Map"
	Code  ErrorCode // high-level category from spec.md §7's taxonomy
	Msg   string    // human-readable detail
	Inner error     // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("gokernel: %s: %s (%s)", e.Op, e.Msg, e.Code)
	}
	return fmt.Sprintf("gokernel: %s (%s)", e.Msg, e.Code)
}

// Unwrap supports errors.Is/As over the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is compares by Code, matching either a *Error or a bare ErrorCode.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if code, ok := target.(ErrorCode); ok {
		return e.Code == code
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode is the closed taxonomy from spec.md §7.
type ErrorCode string

// Error makes a bare ErrorCode usable as an errors.Is target.
func (c ErrorCode) Error() string {
	return string(c)
}

const (
	// CodeInvariantViolation: fail-stop, two tasks Running, etc. — the
	// caller panics immediately after logging.Fatal.
	CodeInvariantViolation ErrorCode = "invariant violation"

	// CodeMemorySafety: fail-stop, AlreadyMapped / NotMapped.
	CodeMemorySafety ErrorCode = "memory safety violation"

	// CodeCapacityExceeded: fail-stop, address space or queue full.
	CodeCapacityExceeded ErrorCode = "capacity exceeded"

	// CodeInvalidIPC: fail-safe, unknown endpoint or missing partner.
	// Callers log and return without mutating state.
	CodeInvalidIPC ErrorCode = "invalid IPC"

	// CodeDeadTarget: fail-safe, IPC peer already Dead.
	CodeDeadTarget ErrorCode = "dead deliver target"

	// CodeLogTruncated: silent except for one LogTruncated marker event.
	CodeLogTruncated ErrorCode = "log capacity reached"

	// CodeExceptionUnguarded: fatal, reported as `[EXC] <marker>`.
	CodeExceptionUnguarded ErrorCode = "CPU exception not guarded"
)

// NewError builds a structured error with no wrapped cause.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// WrapError attaches op/code context to an existing error, preserving a
// structured cause if inner already is one.
func WrapError(op string, code ErrorCode, inner error) *Error {
	if inner == nil {
		return nil
	}
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err carries the given ErrorCode anywhere in its
// chain.
func IsCode(err error, code ErrorCode) bool {
	return errors.Is(err, code)
}
