// Package whisper transcribes through a faster-whisper HTTP sidecar running
// on localhost.
package whisper

import (
	"bytes"
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kbukum/voicememo/audio"
	"github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/transcription"
	"github.com/kbukum/voicememo/version"
)

const (
	// ProviderName is the registry name.
	ProviderName = "whisper"

	defaultURL     = "http://127.0.0.1:8387"
	defaultModel   = "base"
	defaultTimeout = 120 * time.Second
)

func init() {
	transcription.Registry.Register(ProviderName, func(cfg map[string]any) (transcription.Provider, error) {
		c := Config{}
		if v, ok := cfg["url"].(string); ok {
			c.URL = v
		}
		if v, ok := cfg["model"].(string); ok {
			c.Model = v
		}
		if v, ok := cfg["language"].(string); ok {
			c.Language = v
		}
		if v, ok := cfg["timeout"].(time.Duration); ok {
			c.Timeout = v
		}
		return New(c), nil
	})
}

// Config configures the sidecar client.
type Config struct {
	URL      string        `yaml:"url" mapstructure:"url"`
	Model    string        `yaml:"model" mapstructure:"model"`
	Language string        `yaml:"language" mapstructure:"language"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Provider implements transcription.Provider.
type Provider struct {
	cfg    Config
	client *resty.Client
}

// New creates a sidecar client.
func New(cfg Config) *Provider {
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
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

// Transcribe uploads the audio as WAV to POST /transcribe.
func (p *Provider) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Response, error) {
	if req.Audio.Empty() {
		return nil, errors.InvalidInput("audio", "nothing to transcribe")
	}
	data, err := audio.EncodeWAV(req.Audio)
	if err != nil {
		return nil, err
	}

	form := map[string]string{"model": p.cfg.Model}
	if req.Model != "" {
		form["model"] = req.Model
	}
	if lang := firstNonEmpty(req.Language, p.cfg.Language); lang != "" {
		form["language"] = lang
	}

	var result response
	resp, err := p.client.R().
		SetContext(ctx).
		SetFileReader("audio", "audio.wav", bytes.NewReader(data)).
		SetFormData(form).
		SetResult(&result).
		Post("/transcribe")
	if err != nil {
		return nil, errors.ServiceUnavailable("whisper sidecar").WithCause(err)
	}
	if resp.IsError() {
		e := errors.New(errors.ErrCodeServiceUnavailable, "whisper sidecar rejected the request").
			WithDetail("status", resp.StatusCode()).
			WithDetail("body", resp.String())
		e.Retryable = resp.StatusCode() >= 500
		return nil, e
	}

	out := &transcription.Response{Text: result.Text, Language: result.Language}
	for _, s := range result.Segments {
		out.Segments = append(out.Segments, transcription.Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	return out, nil
}

type response struct {
	Text     string    `json:"text"`
	Segments []segment `json:"segments"`
	Language string    `json:"language"`
}

type segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
