package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewError(ErrUpstreamError, "call failed").WithCause(cause).WithProvider("openai")

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	if err.Provider != "openai" {
		t.Errorf("Provider = %q, want openai", err.Provider)
	}
	msg := err.Error()
	if want := "[UPSTREAM_ERROR] call failed: connection refused"; msg != want {
		t.Errorf("Error() = %q, want %q", msg, want)
	}
}

func TestErrorWithoutCause(t *testing.T) {
	err := NewError(ErrRateLimited, "slow down")
	if got, want := err.Error(), "[RATE_LIMITED] slow down"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(NewError(ErrInvalidRequest, "bad")) {
		t.Error("errors are not retryable by default")
	}
	if !IsRetryable(NewError(ErrRateLimited, "wait").WithRetryable(true)) {
		t.Error("WithRetryable(true) should mark the error retryable")
	}
	if IsRetryable(fmt.Errorf("plain")) {
		t.Error("plain errors are never retryable")
	}
}

func TestGetErrorCode(t *testing.T) {
	if got := GetErrorCode(NewError(ErrForbidden, "no")); got != ErrForbidden {
		t.Errorf("GetErrorCode = %q, want %q", got, ErrForbidden)
	}
	if got := GetErrorCode(errors.New("plain")); got != "" {
		t.Errorf("GetErrorCode on plain error = %q, want empty", got)
	}
}
