package dsp

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/voicememo/audio"
)

// span is a frame range [from, to).
type span struct{ from, to int }

func spans(frames, size int) []span {
	if size <= 0 {
		size = frames
	}
	var out []span
	for from := 0; from < frames; from += size {
		out = append(out, span{from, min(from+size, frames)})
	}
	return out
}

// forEach runs fn for every span with at most workers in flight.
func forEach(ctx context.Context, workers int, ss []span, fn func(i int, s span) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, s := range ss {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(i, s)
		})
	}
	return g.Wait()
}

func samplesOf(b *audio.Buffer, s span) []int16 {
	ch := b.Format.Channels
	return b.Samples[s.from*ch : s.to*ch]
}

func scale(v int16, gain float64) int16 {
	x := float64(v) * gain
	switch {
	case x > 32767:
		return 32767
	case x < -32768:
		return -32768
	default:
		return int16(x)
	}
}
