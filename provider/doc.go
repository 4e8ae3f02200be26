// Package provider defines the small set of interfaces every pluggable backend
// in voicememo implements: audio transformers, diarization and transcription
// backends, notification sinks and typed state stores.
//
// Cross-cutting behavior (logging, tracing, retry, concurrency limits) is added
// by wrapping a RequestResponse with Middleware rather than inside backends.
package provider
