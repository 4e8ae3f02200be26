// Package preroll keeps the most recent seconds of microphone audio while
// armed, so a recording can start with the audio from just before the user
// pressed record.
//
// Capture runs on a background goroutine into a fixed slab of chunks
// addressed by a write cursor modulo capacity. Once full, each new chunk
// overwrites the oldest one.
package preroll
