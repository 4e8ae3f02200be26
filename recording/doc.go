// Package recording defines the store contract the processing pipeline
// writes results through, plus in-memory and sqlite implementations.
//
// Every update is an idempotent upsert keyed by Handle: applying the same
// update twice leaves the recording in the same state as applying it once.
// Optional fields use nil for "leave unchanged".
package recording
