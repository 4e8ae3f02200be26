package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew_RetryableDetection(t *testing.T) {
	tests := []struct {
		code      ErrorCode
		retryable bool
	}{
		{ErrCodePersistence, true},
		{ErrCodeServiceUnavailable, true},
		{ErrCodeStageTransient, true},
		{ErrCodeCaptureEmpty, false},
		{ErrCodeStageBlocking, false},
		{ErrCodeNotFound, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			err := New(tc.code, "msg")
			if err.Retryable != tc.retryable {
				t.Errorf("expected retryable=%v for %s", tc.retryable, tc.code)
			}
		})
	}
}

func TestAppError_ErrorString(t *testing.T) {
	err := CaptureEmpty()
	if !strings.HasPrefix(err.Error(), "CAPTURE_EMPTY: ") {
		t.Errorf("unexpected error string %q", err.Error())
	}

	cause := fmt.Errorf("disk full")
	withCause := Persistence("update_results", cause)
	if !strings.Contains(withCause.Error(), "disk full") {
		t.Errorf("expected cause in error string, got %q", withCause.Error())
	}
	if !stderrors.Is(withCause, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
}

func TestAppError_IsMatchesCode(t *testing.T) {
	wrapped := fmt.Errorf("export: %w", CaptureEmpty())
	if !stderrors.Is(wrapped, CaptureEmpty()) {
		t.Error("expected wrapped capture error to match by code")
	}
	if stderrors.Is(wrapped, Persistence("x", nil)) {
		t.Error("different codes must not match")
	}
}

func TestStageErrors(t *testing.T) {
	transient := StageTransient("enhancement", fmt.Errorf("boom"))
	if transient.Details["stage"] != "enhancement" {
		t.Errorf("expected stage detail, got %v", transient.Details)
	}
	if transient.UserVisible() {
		t.Error("stage errors must not be user visible")
	}

	blocking := StageBlocking("diarization", nil)
	if blocking.Code != ErrCodeStageBlocking {
		t.Errorf("expected STAGE_BLOCKING, got %s", blocking.Code)
	}
	if blocking.Retryable {
		t.Error("blocking stage errors are not retryable")
	}
}

func TestIsUserVisible(t *testing.T) {
	if !IsUserVisible(Persistence("create", nil)) {
		t.Error("persistence errors are user visible")
	}
	if !IsUserVisible(HardwareUnavailable("default", nil)) {
		t.Error("hardware warnings are user visible")
	}
	if IsUserVisible(CaptureEmpty()) {
		t.Error("capture empty is recovered by the caller")
	}
	if IsUserVisible(fmt.Errorf("plain")) {
		t.Error("plain errors are not user visible")
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil is not retryable")
	}
	if !IsRetryable(fmt.Errorf("driver error")) {
		t.Error("plain errors default to retryable")
	}
	if IsRetryable(InvalidInput("tier", "unknown")) {
		t.Error("invalid input is not retryable")
	}
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NotFound("recording", "abc"))
	if !IsCode(err, ErrCodeNotFound) {
		t.Error("expected NOT_FOUND")
	}
	if IsCode(err, ErrCodeInternal) {
		t.Error("unexpected INTERNAL match")
	}
}

func TestWithDetail(t *testing.T) {
	err := Internal(nil).WithDetail("handle", "h1")
	if err.Details["handle"] != "h1" {
		t.Errorf("expected handle detail, got %v", err.Details)
	}
}
