package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// Is reports whether target is an AppError with the same code, so callers can
// match with errors.Is(err, errors.CaptureEmpty()).
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// UserVisible reports whether the interaction layer should render this error.
func (e *AppError) UserVisible() bool {
	return userVisibleCodes[e.Code]
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// CaptureEmpty is returned when the pre-roll ring holds no complete chunk.
func CaptureEmpty() *AppError {
	return New(ErrCodeCaptureEmpty, "The pre-roll buffer has no audio yet.")
}

// HardwareUnavailable wraps a capture device failure.
func HardwareUnavailable(device string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeHardwareUnavailable, Message: "The microphone is unavailable. Recording continues without pre-roll.",
		Details: map[string]any{"device": device}, Cause: cause,
	}
}

// DeviceBusy is returned when the capture device is held by another owner.
func DeviceBusy(holder string) *AppError {
	return &AppError{
		Code: ErrCodeDeviceBusy, Message: fmt.Sprintf("The capture device is in use by %s.", holder),
		Details: map[string]any{"holder": holder},
	}
}

// StageTransient reports a stage failure the pipeline recovers from by
// continuing with the best available input.
func StageTransient(stage string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeStageTransient, Message: fmt.Sprintf("The %s stage did not apply.", stage),
		Retryable: true, Details: map[string]any{"stage": stage}, Cause: cause,
	}
}

// StageBlocking reports a stage failure that ends the remaining chain.
func StageBlocking(stage string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeStageBlocking, Message: fmt.Sprintf("The %s stage failed; dependent stages were skipped.", stage),
		Details: map[string]any{"stage": stage}, Cause: cause,
	}
}

// Persistence reports a write the durable store rejected.
func Persistence(operation string, cause error) *AppError {
	return &AppError{
		Code: ErrCodePersistence, Message: "Your recording could not be saved. Please try again.",
		Retryable: true, Details: map[string]any{"operation": operation}, Cause: cause,
	}
}

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		Details: details,
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		Details: details,
	}
}

// Validation creates a new AppError for struct validation failures.
func Validation(message string) *AppError {
	return New(ErrCodeInvalidInput, message)
}

// InvalidTransition reports a state change that is not allowed, such as a tier downgrade.
func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidTransition, Message: fmt.Sprintf("Cannot change from %s to %s.", from, to),
		Details: map[string]any{"from": from, "to": to},
	}
}

// ServiceUnavailable creates a new AppError for a local backend that is not reachable.
func ServiceUnavailable(service string) *AppError {
	return &AppError{
		Code: ErrCodeServiceUnavailable, Message: fmt.Sprintf("The %s is temporarily unavailable.", service),
		Retryable: true, Details: map[string]any{"service": service},
	}
}

// Internal creates a new AppError for an unexpected failure.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		Cause: cause,
	}
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether err is an AppError carrying code.
func IsCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// IsRetryable reports whether err is an AppError marked retryable. Plain
// errors are treated as retryable since they usually come from drivers.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr.Retryable
	}
	return true
}

// IsUserVisible reports whether err should be shown to the user.
func IsUserVisible(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.UserVisible()
}
