// Package energy is an offline diarization backend. It finds voiced regions
// by frame energy and groups them into speakers by agglomerative clustering
// on loudness and zero-crossing rate.
package energy

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kbukum/voicememo/audio"
	"github.com/kbukum/voicememo/diarization"
	"github.com/kbukum/voicememo/errors"
)

// ProviderName is the registry name.
const ProviderName = "energy"

func init() {
	diarization.Registry.Register(ProviderName, func(map[string]any) (diarization.Provider, error) {
		return New(), nil
	})
}

// params are the tuning knobs of one mode.
type params struct {
	frame       time.Duration
	bridgeGap   time.Duration
	minSegment  time.Duration
	mergeDist   float64
	maxSpeakers int
}

var (
	standard = params{frame: 30 * time.Millisecond, bridgeGap: 300 * time.Millisecond, minSegment: 200 * time.Millisecond, mergeDist: 0.5, maxSpeakers: 4}
	advanced = params{frame: 15 * time.Millisecond, bridgeGap: 150 * time.Millisecond, minSegment: 120 * time.Millisecond, mergeDist: 0.35, maxSpeakers: 6}
)

// minVoiceRMS keeps digital silence and faint hiss out of the voiced set.
const minVoiceRMS = 100.0

// Provider implements diarization.Provider.
type Provider struct{}

// New returns the energy backend.
func New() *Provider { return &Provider{} }

func (p *Provider) Name() string                     { return ProviderName }
func (p *Provider) IsAvailable(context.Context) bool { return true }

// Diarize segments req.Audio. Audio without speech yields no segments.
func (p *Provider) Diarize(ctx context.Context, req diarization.Request) (*diarization.Response, error) {
	if req.Audio.Empty() {
		return nil, errors.InvalidInput("audio", "nothing to diarize")
	}
	prm := standard
	if req.Advanced {
		prm = advanced
	}

	frames := analyze(req.Audio, prm.frame)
	regions := voicedRegions(frames, prm, req.Audio.Format)
	if len(regions) == 0 {
		return &diarization.Response{Segments: []diarization.Segment{}}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	minK, maxK := bounds(req, prm, len(regions))
	labels := cluster(regions, minK, maxK, prm.mergeDist)

	frameSec := prm.frame.Seconds()
	segments := make([]diarization.Segment, 0, len(regions))
	for i, r := range regions {
		seg := diarization.Segment{
			Speaker: fmt.Sprintf("SPEAKER_%02d", labels[i]),
			Start:   float64(r.from) * frameSec,
			End:     math.Min(float64(r.to)*frameSec, req.Audio.Duration().Seconds()),
		}
		if n := len(segments); n > 0 && segments[n-1].Speaker == seg.Speaker {
			segments[n-1].End = seg.End
			continue
		}
		segments = append(segments, seg)
	}
	return &diarization.Response{Segments: segments, NumSpeakers: len(diarization.Speakers(segments))}, nil
}

func bounds(req diarization.Request, prm params, n int) (int, int) {
	if req.NumSpeakers > 0 {
		k := min(req.NumSpeakers, n)
		return k, k
	}
	minK := max(1, req.MinSpeakers)
	maxK := prm.maxSpeakers
	if req.MaxSpeakers > 0 {
		maxK = req.MaxSpeakers
	}
	maxK = max(minK, min(maxK, n))
	return min(minK, n), maxK
}

type frameStat struct {
	rms float64
	zcr float64
}

func analyze(b *audio.Buffer, frame time.Duration) []frameStat {
	size := max(1, b.Format.FramesFor(frame))
	ch := b.Format.Channels
	n := b.Frames() / size
	out := make([]frameStat, n)
	for i := 0; i < n; i++ {
		var sum float64
		crossings := 0
		prev := int16(0)
		for j := 0; j < size; j++ {
			// mix down to mono
			var acc int
			for c := 0; c < ch; c++ {
				acc += int(b.Samples[((i*size)+j)*ch+c])
			}
			v := int16(acc / ch)
			f := float64(v)
			sum += f * f
			if j > 0 && (v >= 0) != (prev >= 0) {
				crossings++
			}
			prev = v
		}
		out[i] = frameStat{rms: math.Sqrt(sum / float64(size)), zcr: float64(crossings) / float64(size)}
	}
	return out
}

// region is a voiced frame range [from, to) with its mean features.
type region struct {
	from, to int
	logRMS   float64
	zcr      float64
}

func voicedRegions(frames []frameStat, prm params, f audio.Format) []region {
	if len(frames) == 0 {
		return nil
	}
	levels := make([]float64, len(frames))
	for i, fr := range frames {
		levels[i] = fr.rms
	}
	sort.Float64s(levels)
	threshold := math.Max(levels[len(levels)/10]*3, minVoiceRMS)

	frameDur := prm.frame
	bridge := int(prm.bridgeGap / frameDur)
	minLen := int(prm.minSegment / frameDur)

	var out []region
	start, lastVoiced := -1, -1
	flush := func() {
		if start >= 0 && lastVoiced-start+1 >= minLen {
			out = append(out, summarize(frames, start, lastVoiced+1))
		}
		start = -1
	}
	for i, fr := range frames {
		if fr.rms < threshold {
			if start >= 0 && i-lastVoiced > bridge {
				flush()
			}
			continue
		}
		if start < 0 {
			start = i
		}
		lastVoiced = i
	}
	flush()
	return out
}

func summarize(frames []frameStat, from, to int) region {
	r := region{from: from, to: to}
	n := 0
	for _, fr := range frames[from:to] {
		if fr.rms <= 0 {
			continue
		}
		r.logRMS += math.Log(fr.rms)
		r.zcr += fr.zcr
		n++
	}
	if n > 0 {
		r.logRMS /= float64(n)
		r.zcr /= float64(n)
	}
	return r
}
