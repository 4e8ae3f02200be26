package audio

import "time"

// Buffer is interleaved 16-bit PCM in a known format.
type Buffer struct {
	Format  Format
	Samples []int16
}

// NewBuffer allocates a zeroed buffer of frames.
func NewBuffer(f Format, frames int) *Buffer {
	return &Buffer{Format: f, Samples: make([]int16, frames*f.Channels)}
}

// Frames returns the number of sample frames.
func (b *Buffer) Frames() int {
	if b == nil || b.Format.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Format.Channels
}

// Duration returns the playback time.
func (b *Buffer) Duration() time.Duration {
	if b == nil {
		return 0
	}
	return b.Format.DurationOf(b.Frames())
}

// Empty reports whether the buffer has no frames.
func (b *Buffer) Empty() bool {
	return b.Frames() == 0
}

// Slice returns frames [from, to) sharing the underlying samples. Bounds are
// clamped to the buffer.
func (b *Buffer) Slice(from, to int) *Buffer {
	n := b.Frames()
	from = clamp(from, 0, n)
	to = clamp(to, from, n)
	ch := b.Format.Channels
	return &Buffer{Format: b.Format, Samples: b.Samples[from*ch : to*ch]}
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{Format: b.Format, Samples: make([]int16, len(b.Samples))}
	copy(out.Samples, b.Samples)
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
