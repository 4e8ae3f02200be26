// Package pyannote diarizes through a pyannote.audio HTTP sidecar running on
// localhost.
package pyannote

import (
	"bytes"
	"context"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kbukum/voicememo/audio"
	"github.com/kbukum/voicememo/diarization"
	"github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/version"
)

const (
	// ProviderName is the registry name.
	ProviderName = "pyannote"

	defaultURL     = "http://127.0.0.1:8388"
	defaultTimeout = 300 * time.Second
)

func init() {
	diarization.Registry.Register(ProviderName, func(cfg map[string]any) (diarization.Provider, error) {
		c := Config{}
		if v, ok := cfg["url"].(string); ok {
			c.URL = v
		}
		if v, ok := cfg["timeout"].(time.Duration); ok {
			c.Timeout = v
		}
		if v, ok := cfg["advanced_model"].(string); ok {
			c.AdvancedModel = v
		}
		return New(c), nil
	})
}

// Config configures the sidecar client.
type Config struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// AdvancedModel is sent as "model" when the request asks for advanced
	// diarization.
	AdvancedModel string `yaml:"advanced_model" mapstructure:"advanced_model"`
}

// Provider implements diarization.Provider.
type Provider struct {
	cfg    Config
	client *resty.Client
}

// New creates a sidecar client.
func New(cfg Config) *Provider {
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.AdvancedModel == "" {
		cfg.AdvancedModel = "pyannote/speaker-diarization-3.1"
	}
	client := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", version.UserAgent())
	return &Provider{cfg: cfg, client: client}
}

func (p *Provider) Name() string { return ProviderName }

// IsAvailable probes GET /health.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	resp, err := p.client.R().SetContext(ctx).Get("/health")
	return err == nil && resp.StatusCode() == 200
}

// Diarize uploads the audio as WAV to POST /diarize.
func (p *Provider) Diarize(ctx context.Context, req diarization.Request) (*diarization.Response, error) {
	if req.Audio.Empty() {
		return nil, errors.InvalidInput("audio", "nothing to diarize")
	}
	data, err := audio.EncodeWAV(req.Audio)
	if err != nil {
		return nil, err
	}

	form := map[string]string{}
	if req.NumSpeakers > 0 {
		form["num_speakers"] = strconv.Itoa(req.NumSpeakers)
	}
	if req.MinSpeakers > 0 {
		form["min_speakers"] = strconv.Itoa(req.MinSpeakers)
	}
	if req.MaxSpeakers > 0 {
		form["max_speakers"] = strconv.Itoa(req.MaxSpeakers)
	}
	if req.Language != "" {
		form["language"] = req.Language
	}
	if req.Advanced {
		form["model"] = p.cfg.AdvancedModel
	}

	var result response
	resp, err := p.client.R().
		SetContext(ctx).
		SetFileReader("audio", "audio.wav", bytes.NewReader(data)).
		SetFormData(form).
		SetResult(&result).
		Post("/diarize")
	if err != nil {
		return nil, errors.ServiceUnavailable("pyannote sidecar").WithCause(err)
	}
	if resp.IsError() {
		e := errors.New(errors.ErrCodeServiceUnavailable, "pyannote sidecar rejected the request").
			WithDetail("status", resp.StatusCode()).
			WithDetail("body", resp.String())
		e.Retryable = resp.StatusCode() >= 500
		return nil, e
	}
	if result.Error != "" {
		return nil, errors.New(errors.ErrCodeInternal, "pyannote: "+result.Error)
	}
	return result.toResponse(), nil
}

type response struct {
	Segments    []segment `json:"segments"`
	NumSpeakers int       `json:"num_speakers"`
	Error       string    `json:"error,omitempty"`
}

type segment struct {
	SpeakerID string  `json:"speaker_id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

func (r *response) toResponse() *diarization.Response {
	segs := make([]diarization.Segment, len(r.Segments))
	for i, s := range r.Segments {
		segs[i] = diarization.Segment{Speaker: s.SpeakerID, Start: s.StartTime, End: s.EndTime}
	}
	segs = diarization.Normalize(segs)
	n := r.NumSpeakers
	if n == 0 {
		n = len(diarization.Speakers(segs))
	}
	return &diarization.Response{Segments: segs, NumSpeakers: n}
}
