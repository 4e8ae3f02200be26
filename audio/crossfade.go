package audio

import (
	"fmt"
	"time"
)

// Crossfade joins a and b, overlapping the tail of a with the head of b for
// overlap using linear gain ramps. The overlap is clamped to the shorter
// input, so the result has Frames(a)+Frames(b)-overlapFrames frames.
func Crossfade(a, b *Buffer, overlap time.Duration) (*Buffer, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("crossfade: nil buffer")
	}
	if a.Format != b.Format {
		return nil, fmt.Errorf("crossfade: format mismatch %s vs %s", a.Format, b.Format)
	}
	if err := a.Format.Validate(); err != nil {
		return nil, fmt.Errorf("crossfade: %w", err)
	}

	ch := a.Format.Channels
	fa, fb := a.Frames(), b.Frames()
	n := a.Format.FramesFor(overlap)
	n = clamp(n, 0, min(fa, fb))

	out := NewBuffer(a.Format, fa+fb-n)
	copy(out.Samples, a.Samples[:(fa-n)*ch])

	base := (fa - n) * ch
	for i := 0; i < n; i++ {
		g := (float64(i) + 0.5) / float64(n)
		for c := 0; c < ch; c++ {
			x := float64(a.Samples[(fa-n+i)*ch+c])*(1-g) + float64(b.Samples[i*ch+c])*g
			out.Samples[base+i*ch+c] = saturate(x)
		}
	}
	copy(out.Samples[base+n*ch:], b.Samples[n*ch:])
	return out, nil
}

func saturate(x float64) int16 {
	switch {
	case x > 32767:
		return 32767
	case x < -32768:
		return -32768
	case x >= 0:
		return int16(x + 0.5)
	default:
		return int16(x - 0.5)
	}
}
