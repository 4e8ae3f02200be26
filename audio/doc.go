// Package audio holds the PCM primitives shared by capture, storage and
// processing: 16-bit interleaved buffers, the WAV codec, crossfading and the
// capture hardware lease.
package audio
