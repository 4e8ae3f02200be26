// Package processing runs the post-capture pipeline over a finalized audio
// artifact: enhancement, noise reduction, diarization, transcription and
// analytics, in that fixed order.
//
// A stage runs only when the tier grants its capability and the user
// setting enables it (see Plan). Stage failures never abort the run:
// transforms fall back to their input artifact, diarization and
// transcription failures skip the stages that depend on them. Results are
// committed to the recording store as each stage completes, so a later
// failure never discards earlier output. A store write that still fails
// after retries is the only error Run returns.
//
// Run is strictly sequential and ignores cancellation of its context:
// stage N+1 starts only after stage N resolved, and outstanding work runs
// to completion. Submit runs a job in the background, bounded by a
// bulkhead.
package processing
