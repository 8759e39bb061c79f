package gokernel

import (
	"errors"
	"testing"
)

func TestNewErrorFields(t *testing.T) {
	err := NewError("ipc.Send", CodeInvalidIPC, "endpoint not found")
	if err.Op != "ipc.Send" || err.Code != CodeInvalidIPC || err.Msg != "endpoint not found" {
		t.Errorf("NewError produced %+v, unexpected fields", err)
	}
	if err.Inner != nil {
		t.Error("NewError should not set Inner")
	}
}

func TestWrapErrorPreservesCause(t *testing.T) {
	cause := errors.New("underlying failure")
	wrapped := WrapError("addrspace.Map", CodeMemorySafety, cause)
	if !errors.Is(wrapped, cause) {
		t.Error("WrapError should preserve the cause for errors.Is")
	}
	if wrapped.Code != CodeMemorySafety {
		t.Errorf("wrapped.Code = %v, want CodeMemorySafety", wrapped.Code)
	}
}

func TestWrapErrorNilIsNil(t *testing.T) {
	if WrapError("op", CodeInvalidIPC, nil) != nil {
		t.Error("WrapError(nil) should return nil, not a non-nil *Error wrapping nothing")
	}
}

func TestIsCodeMatchesAcrossWrap(t *testing.T) {
	err := WrapError("op", CodeCapacityExceeded, errors.New("full"))
	if !IsCode(err, CodeCapacityExceeded) {
		t.Error("IsCode should match the wrapped error's code")
	}
	if IsCode(err, CodeDeadTarget) {
		t.Error("IsCode should not match an unrelated code")
	}
}

func TestErrorStringIncludesOpAndCode(t *testing.T) {
	err := NewError("sched.PickNext", CodeInvariantViolation, "two tasks running")
	msg := err.Error()
	if msg == "" {
		t.Fatal("Error() should not be empty")
	}
	want := "gokernel: sched.PickNext: two tasks running (invariant violation)"
	if msg != want {
		t.Errorf("Error() = %q, want %q", msg, want)
	}
}
