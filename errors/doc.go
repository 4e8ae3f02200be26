// Package errors provides the application error type shared by every
// voicememo package. Errors carry a machine-readable code, a retryable flag
// and optional details, and they map onto the few cases the UI is allowed
// to see.
package errors
