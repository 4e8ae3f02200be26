package processing

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/voicememo/analytics"
	"github.com/kbukum/voicememo/artifact"
	"github.com/kbukum/voicememo/audio"
	"github.com/kbukum/voicememo/diarization"
	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/observability"
	"github.com/kbukum/voicememo/provider"
	"github.com/kbukum/voicememo/recording"
	"github.com/kbukum/voicememo/resilience"
	"github.com/kbukum/voicememo/transcription"
)

// Transform turns one audio buffer into a new one.
type Transform = provider.RequestResponse[*audio.Buffer, *audio.Buffer]

// ArtifactStore is the subset of artifact.Store the pipeline uses.
type ArtifactStore interface {
	Put(ctx context.Context, buf *audio.Buffer) (artifact.Artifact, error)
	Load(ctx context.Context, ref string) (*audio.Buffer, error)
	Delete(ctx context.Context, ref string) error
}

// Config tunes the pipeline.
type Config struct {
	// Crossfade is the overlap used when merging pre-roll and live audio.
	Crossfade time.Duration `yaml:"crossfade" mapstructure:"crossfade"`
	// ContinueAfterDiarizationFailure runs speaker-independent
	// transcription when diarization fails instead of skipping it.
	ContinueAfterDiarizationFailure bool `yaml:"continue_after_diarization_failure" mapstructure:"continue_after_diarization_failure"`
	// MaxConcurrentRuns bounds background runs started by Submit.
	MaxConcurrentRuns int `yaml:"max_concurrent_runs" mapstructure:"max_concurrent_runs" validate:"gte=0,lte=16"`
	// QueueWait is how long Submit waits for a free slot.
	QueueWait time.Duration `yaml:"queue_wait" mapstructure:"queue_wait"`
	// StoreRetry governs recording store and artifact writes.
	StoreRetry resilience.RetryConfig `yaml:"store_retry" mapstructure:"store_retry"`
	// ProviderRetry governs diarization and transcription backend calls.
	ProviderRetry resilience.RetryConfig `yaml:"provider_retry" mapstructure:"provider_retry"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Crossfade <= 0 {
		c.Crossfade = 100 * time.Millisecond
	}
	if c.MaxConcurrentRuns <= 0 {
		c.MaxConcurrentRuns = 2
	}
	if c.QueueWait == 0 {
		c.QueueWait = 30 * time.Second
	}
	c.StoreRetry.ApplyDefaults()
	if c.ProviderRetry.MaxAttempts <= 0 {
		c.ProviderRetry.MaxAttempts = 2
	}
	c.ProviderRetry.ApplyDefaults()
}

// Pipeline runs the stage chain for saved recordings.
type Pipeline struct {
	artifacts   ArtifactStore
	store       recording.Store
	enhancer    Transform
	denoiser    Transform
	diarizer    provider.RequestResponse[diarization.Request, *diarization.Response]
	transcriber provider.RequestResponse[transcription.Request, *transcription.Response]
	analyzer    *analytics.Analyzer

	cfg      Config
	log      *logger.Logger
	metrics  *observability.Metrics
	bulkhead *resilience.Bulkhead
	wg       sync.WaitGroup
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(p *Pipeline) { p.cfg = cfg }
}

// WithEnhancer sets the enhancement transform.
func WithEnhancer(t Transform) Option {
	return func(p *Pipeline) { p.enhancer = t }
}

// WithNoiseReducer sets the noise reduction transform.
func WithNoiseReducer(t Transform) Option {
	return func(p *Pipeline) { p.denoiser = t }
}

// WithDiarizer sets the diarization backend.
func WithDiarizer(d diarization.Provider) Option {
	return func(p *Pipeline) {
		if d != nil {
			p.diarizer = diarization.AsRequestResponse(d)
		}
	}
}

// WithTranscriber sets the transcription backend.
func WithTranscriber(t transcription.Provider) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.transcriber = transcription.AsRequestResponse(t)
		}
	}
}

// WithAnalyzer replaces the default analytics analyzer.
func WithAnalyzer(a *analytics.Analyzer) Option {
	return func(p *Pipeline) { p.analyzer = a }
}

func WithLogger(l *logger.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a pipeline writing artifacts to artifacts and results to store.
// Backend calls are wrapped with logging, tracing and retry middleware.
func New(artifacts ArtifactStore, store recording.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		artifacts: artifacts,
		store:     store,
		analyzer:  analytics.New(nil),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.cfg.ApplyDefaults()
	if p.log == nil {
		p.log = logger.WithComponent("pipeline")
	}
	p.bulkhead = resilience.NewBulkhead(resilience.BulkheadConfig{
		Name:          "pipeline",
		MaxConcurrent: p.cfg.MaxConcurrentRuns,
		MaxWait:       p.cfg.QueueWait,
	})

	if p.enhancer != nil {
		p.enhancer = wrapTransform(p.enhancer, p.log)
	}
	if p.denoiser != nil {
		p.denoiser = wrapTransform(p.denoiser, p.log)
	}
	if p.diarizer != nil {
		p.diarizer = provider.Chain(
			provider.WithTracing[diarization.Request, *diarization.Response]("diarization"),
			provider.WithLogging[diarization.Request, *diarization.Response](p.log),
			provider.WithRetry[diarization.Request, *diarization.Response](p.cfg.ProviderRetry),
		)(p.diarizer)
	}
	if p.transcriber != nil {
		p.transcriber = provider.Chain(
			provider.WithTracing[transcription.Request, *transcription.Response]("transcription"),
			provider.WithLogging[transcription.Request, *transcription.Response](p.log),
			provider.WithRetry[transcription.Request, *transcription.Response](p.cfg.ProviderRetry),
		)(p.transcriber)
	}
	return p
}

// Local transforms are deterministic, so they are not retried.
func wrapTransform(t Transform, log *logger.Logger) Transform {
	return provider.Chain(
		provider.WithTracing[*audio.Buffer, *audio.Buffer]("transform"),
		provider.WithLogging[*audio.Buffer, *audio.Buffer](log),
	)(t)
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Wait blocks until all runs started by Submit have finished.
func (p *Pipeline) Wait() { p.wg.Wait() }
