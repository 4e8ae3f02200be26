// Package diarization segments a recording by speaker.
//
// Backends:
//
//   - diarization/energy: offline voice-activity segmentation with feature
//     clustering, always available
//   - diarization/pyannote: a pyannote HTTP sidecar on localhost
package diarization
