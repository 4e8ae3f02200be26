package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Capture errors
const (
	// ErrCodeCaptureEmpty indicates a pre-roll export was attempted with no buffered audio.
	ErrCodeCaptureEmpty ErrorCode = "CAPTURE_EMPTY"
	// ErrCodeHardwareUnavailable indicates the capture device could not be opened or read.
	ErrCodeHardwareUnavailable ErrorCode = "HARDWARE_UNAVAILABLE"
	// ErrCodeDeviceBusy indicates another owner holds the capture device.
	ErrCodeDeviceBusy ErrorCode = "DEVICE_BUSY"
)

// Pipeline stage errors
const (
	// ErrCodeStageTransient indicates a stage failed but later stages may still run.
	ErrCodeStageTransient ErrorCode = "STAGE_TRANSIENT"
	// ErrCodeStageBlocking indicates a stage failure that ends the remaining chain.
	ErrCodeStageBlocking ErrorCode = "STAGE_BLOCKING"
)

// Storage errors
const (
	// ErrCodePersistence indicates the durable store rejected a write.
	ErrCodePersistence ErrorCode = "PERSISTENCE"
	ErrCodeNotFound    ErrorCode = "NOT_FOUND"
)

// Request errors
const (
	ErrCodeInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
)

// Infrastructure errors
const (
	// ErrCodeServiceUnavailable indicates a local sidecar or backend is not reachable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodePersistence:        true,
	ErrCodeServiceUnavailable: true,
	ErrCodeStageTransient:     true,
}

// userVisibleCodes lists the codes the interaction layer renders. Everything
// else is absorbed by the component that produced it.
var userVisibleCodes = map[ErrorCode]bool{
	ErrCodePersistence:         true,
	ErrCodeHardwareUnavailable: true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
