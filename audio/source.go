package audio

import (
	"context"
	"io"
	"math"
	"time"

	"github.com/kbukum/voicememo/errors"
)

// Source opens capture streams. The portaudio subpackage provides the
// hardware implementation.
type Source interface {
	Open(ctx context.Context, f Format, chunkFrames int) (Stream, error)
}

// Stream delivers fixed-size chunks of interleaved samples.
type Stream interface {
	// Read fills buf with the next chunk. It returns io.EOF when the stream
	// is exhausted.
	Read(buf []int16) error
	Close() error
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, f Format, chunkFrames int) (Stream, error)

func (fn SourceFunc) Open(ctx context.Context, f Format, chunkFrames int) (Stream, error) {
	return fn(ctx, f, chunkFrames)
}

// Generator produces synthetic audio. Limit bounds the stream length (0 is
// unbounded) and Realtime paces reads at the sample rate.
type Generator struct {
	// Wave returns the sample for frame i and channel c.
	Wave     func(i, c int, f Format) int16
	Limit    time.Duration
	Realtime bool
}

// SilenceSource returns a generator of digital silence.
func SilenceSource(limit time.Duration) *Generator {
	return &Generator{Wave: func(int, int, Format) int16 { return 0 }, Limit: limit}
}

// ToneSource returns a generator of a sine tone.
func ToneSource(freq float64, amplitude int16, limit time.Duration) *Generator {
	return &Generator{
		Wave: func(i, _ int, f Format) int16 {
			return int16(float64(amplitude) * math.Sin(2*math.Pi*freq*float64(i)/float64(f.SampleRate)))
		},
		Limit: limit,
	}
}

// RampSource returns a generator whose sample value is the frame index
// modulo 32768. Tests use it to check chronological order.
func RampSource(limit time.Duration) *Generator {
	return &Generator{Wave: func(i, _ int, _ Format) int16 { return int16(i % 32768) }, Limit: limit}
}

func (g *Generator) Open(_ context.Context, f Format, chunkFrames int) (Stream, error) {
	if err := f.Validate(); err != nil {
		return nil, errors.InvalidInput("format", err.Error())
	}
	limit := -1
	if g.Limit > 0 {
		limit = f.FramesFor(g.Limit)
	}
	return &genStream{gen: g, format: f, limit: limit, chunk: chunkFrames}, nil
}

type genStream struct {
	gen    *Generator
	format Format
	limit  int
	chunk  int
	frame  int
	closed bool
}

func (s *genStream) Read(buf []int16) error {
	if s.closed {
		return io.ErrClosedPipe
	}
	ch := s.format.Channels
	frames := len(buf) / ch
	if s.limit >= 0 && s.frame+frames > s.limit {
		return io.EOF
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < ch; c++ {
			buf[i*ch+c] = s.gen.Wave(s.frame+i, c, s.format)
		}
	}
	s.frame += frames
	if s.gen.Realtime {
		time.Sleep(s.format.DurationOf(frames))
	}
	return nil
}

func (s *genStream) Close() error {
	s.closed = true
	return nil
}

// Record reads from stream until maxDuration is captured, the stream ends
// or ctx is done. A stream that ends early is not an error.
func Record(ctx context.Context, stream Stream, f Format, chunkFrames int, maxDuration time.Duration) (*Buffer, error) {
	out := &Buffer{Format: f}
	limit := f.FramesFor(maxDuration)
	chunk := make([]int16, chunkFrames*f.Channels)
	for out.Frames() < limit {
		if err := ctx.Err(); err != nil {
			break
		}
		if err := stream.Read(chunk); err != nil {
			if err == io.EOF {
				break
			}
			return out, errors.HardwareUnavailable("capture", err)
		}
		remaining := (limit - out.Frames()) * f.Channels
		out.Samples = append(out.Samples, chunk[:min(len(chunk), remaining)]...)
	}
	return out, nil
}
