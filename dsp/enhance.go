package dsp

import (
	"context"
	"fmt"

	"github.com/kbukum/voicememo/audio"
	"github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/provider"
)

// Enhancer normalizes the recording peak toward Config.TargetPeak.
type Enhancer struct {
	cfg Config
}

// NewEnhancer creates an Enhancer.
func NewEnhancer(cfg Config) *Enhancer {
	cfg.ApplyDefaults()
	return &Enhancer{cfg: cfg}
}

var _ provider.RequestResponse[*audio.Buffer, *audio.Buffer] = (*Enhancer)(nil)

func (e *Enhancer) Name() string                     { return "peak-normalize" }
func (e *Enhancer) IsAvailable(context.Context) bool { return true }

// Execute returns a normalized copy of in. Empty and silent input fail.
func (e *Enhancer) Execute(ctx context.Context, in *audio.Buffer) (*audio.Buffer, error) {
	if in.Empty() {
		return nil, errors.InvalidInput("audio", "nothing to enhance")
	}
	ss := spans(in.Frames(), in.Format.FramesFor(e.cfg.ChunkDuration))

	peaks := make([]int, len(ss))
	err := forEach(ctx, e.cfg.Workers, ss, func(i int, s span) error {
		for _, v := range samplesOf(in, s) {
			a := abs(int(v))
			if a > peaks[i] {
				peaks[i] = a
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	peak := 0
	for _, p := range peaks {
		peak = max(peak, p)
	}
	if peak == 0 {
		return nil, fmt.Errorf("enhance: input is silent")
	}

	gain := min(e.cfg.TargetPeak*32767/float64(peak), e.cfg.MaxGain)
	out := audio.NewBuffer(in.Format, in.Frames())
	err = forEach(ctx, e.cfg.Workers, ss, func(_ int, s span) error {
		src, dst := samplesOf(in, s), samplesOf(out, s)
		for j, v := range src {
			dst[j] = scale(v, gain)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
