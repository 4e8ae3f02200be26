package dsp

import (
	"context"
	"math"
	"sort"

	"github.com/kbukum/voicememo/audio"
	"github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/provider"
)

// NoiseGate attenuates windows whose energy stays near the noise floor. The
// floor is the 10th percentile of window RMS across the recording.
type NoiseGate struct {
	cfg Config
}

// NewNoiseGate creates a NoiseGate.
func NewNoiseGate(cfg Config) *NoiseGate {
	cfg.ApplyDefaults()
	return &NoiseGate{cfg: cfg}
}

var _ provider.RequestResponse[*audio.Buffer, *audio.Buffer] = (*NoiseGate)(nil)

func (g *NoiseGate) Name() string                     { return "noise-gate" }
func (g *NoiseGate) IsAvailable(context.Context) bool { return true }

func (g *NoiseGate) Execute(ctx context.Context, in *audio.Buffer) (*audio.Buffer, error) {
	if in.Empty() {
		return nil, errors.InvalidInput("audio", "nothing to denoise")
	}
	windows := spans(in.Frames(), max(1, in.Format.FramesFor(g.cfg.GateWindow)))

	rms := make([]float64, len(windows))
	// windows are tiny, so analysis batches them per worker chunk
	batch := max(1, len(windows)/max(1, g.cfg.Workers*4))
	batches := spans(len(windows), batch)
	err := forEach(ctx, g.cfg.Workers, batches, func(_ int, b span) error {
		for w := b.from; w < b.to; w++ {
			rms[w] = RMS(samplesOf(in, windows[w]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	threshold := noiseFloor(rms) * g.cfg.GateRatio
	out := audio.NewBuffer(in.Format, in.Frames())
	err = forEach(ctx, g.cfg.Workers, batches, func(_ int, b span) error {
		for w := b.from; w < b.to; w++ {
			gain := 1.0
			if rms[w] < threshold {
				gain = g.cfg.GateAttenuation
			}
			src, dst := samplesOf(in, windows[w]), samplesOf(out, windows[w])
			for j, v := range src {
				dst[j] = scale(v, gain)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func noiseFloor(rms []float64) float64 {
	sorted := append([]float64(nil), rms...)
	sort.Float64s(sorted)
	return sorted[len(sorted)/10]
}

// RMS returns the root mean square of samples.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		f := float64(v)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}
