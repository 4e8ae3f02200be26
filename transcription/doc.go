// Package transcription turns recordings into text and aligns transcript
// segments with diarized speakers.
//
// Backends:
//
//   - transcription/whisper: a faster-whisper HTTP sidecar on localhost
package transcription
