package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kbukum/voicememo/analytics"
	"github.com/kbukum/voicememo/artifact"
	"github.com/kbukum/voicememo/audio"
	"github.com/kbukum/voicememo/audio/portaudio"
	"github.com/kbukum/voicememo/bootstrap"
	"github.com/kbukum/voicememo/component"
	"github.com/kbukum/voicememo/database"
	"github.com/kbukum/voicememo/diarization"
	"github.com/kbukum/voicememo/dsp"
	"github.com/kbukum/voicememo/entitlement"
	"github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/notify"
	"github.com/kbukum/voicememo/observability"
	"github.com/kbukum/voicememo/preroll"
	"github.com/kbukum/voicememo/processing"
	"github.com/kbukum/voicememo/prompt"
	"github.com/kbukum/voicememo/provider"
	"github.com/kbukum/voicememo/recording"
	"github.com/kbukum/voicememo/redis"
	"github.com/kbukum/voicememo/server"
	"github.com/kbukum/voicememo/storage"
	"github.com/kbukum/voicememo/transcription"

	// Backends register themselves with their registries.
	_ "github.com/kbukum/voicememo/diarization/energy"
	_ "github.com/kbukum/voicememo/diarization/pyannote"
	_ "github.com/kbukum/voicememo/storage/local"
	_ "github.com/kbukum/voicememo/storage/s3"
	_ "github.com/kbukum/voicememo/transcription/whisper"
)

// Services are the wired core services, available once the configure phase
// has run.
type Services struct {
	Cfg          *Config
	Log          *logger.Logger
	Format       audio.Format
	Device       *audio.Device
	Artifacts    *artifact.Store
	Recordings   recording.Store
	Entitlements *entitlement.Service
	Prompts      *prompt.Engine
	Preroll      *preroll.Buffer
	Pipeline     *processing.Pipeline
	Upseller     *notify.Upseller
	Notifier     notify.Notifier
	Metrics      *observability.Metrics

	now func() time.Time
}

// App is a bootstrap app with the voicememo services attached.
type App struct {
	*bootstrap.App[*Config]
	Services *Services

	opts options
	db   *database.Component
	rc   *redis.Component
}

type options struct {
	serve     bool
	source    audio.Source
	notifier  notify.Notifier
	now       func() time.Time
	bootstrap []bootstrap.Option
}

// Option configures New.
type Option func(*options)

// WithControlAPI starts the loopback control API.
func WithControlAPI() Option {
	return func(o *options) { o.serve = true }
}

// WithSource overrides the capture source chosen by audio.source.
func WithSource(src audio.Source) Option {
	return func(o *options) { o.source = src }
}

// WithNotifier overrides the notifier chosen by notify.desktop.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithClock overrides time.Now for the entitlement service and prompt
// engine.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithBootstrap passes options to bootstrap.NewApp.
func WithBootstrap(opts ...bootstrap.Option) Option {
	return func(o *options) { o.bootstrap = append(o.bootstrap, opts...) }
}

// New validates cfg, registers the infrastructure components and schedules
// service wiring for the configure phase.
func New(cfg *Config, opts ...Option) (*App, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	ba, err := bootstrap.NewApp(cfg, o.bootstrap...)
	if err != nil {
		return nil, err
	}
	a := &App{App: ba, opts: o}

	var shutdownTelemetry observability.ShutdownFunc
	if err := a.RegisterComponent(&component.Hook{
		ID: "telemetry",
		StartFn: func(ctx context.Context) error {
			fn, err := observability.Init(ctx, cfg.Observability, cfg.Name, cfg.Version)
			shutdownTelemetry = fn
			return err
		},
		StopFn: func(ctx context.Context) error {
			if shutdownTelemetry == nil {
				return nil
			}
			return shutdownTelemetry(ctx)
		},
	}); err != nil {
		return nil, err
	}

	if cfg.usesDatabase() {
		a.db = database.NewComponent(cfg.Database, a.Logger.WithComponent("database"))
		if err := a.RegisterComponent(a.db); err != nil {
			return nil, err
		}
	}
	if cfg.State.Backend == BackendRedis {
		a.rc = redis.NewComponent(cfg.Redis, a.Logger.WithComponent("redis"))
		if err := a.RegisterComponent(a.rc); err != nil {
			return nil, err
		}
	}

	a.OnConfigure(func(ctx context.Context, _ *bootstrap.App[*Config]) error {
		return a.configure(ctx)
	})
	if o.serve && cfg.Preroll.ArmOnStart && cfg.Preroll.WindowSeconds > 0 {
		a.OnReady("preroll", func(context.Context) error {
			return a.Services.Preroll.Arm(cfg.Preroll.WindowSeconds)
		})
	}
	return a, nil
}

func (a *App) configure(ctx context.Context) error {
	cfg := a.Cfg
	log := a.Logger
	s := &Services{Cfg: cfg, Log: log, Format: cfg.Audio.Format, now: a.opts.now}

	metrics, err := observability.NewMetrics(nil)
	if err != nil {
		return err
	}
	s.Metrics = metrics

	backend, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("artifact storage: %w", err)
	}
	s.Artifacts = artifact.NewStore(backend)

	if s.Recordings, err = a.recordingStore(); err != nil {
		return err
	}

	tierStore, err := contextStore[entitlement.State](cfg.State.Backend, a.db, a.rc)
	if err != nil {
		return err
	}
	s.Entitlements, err = entitlement.NewService(ctx, tierStore,
		entitlement.WithClock(a.opts.now),
		entitlement.WithLogger(log.WithComponent("entitlement")))
	if err != nil {
		return err
	}

	promptStore, err := contextStore[prompt.CounterState](cfg.State.Backend, a.db, a.rc)
	if err != nil {
		return err
	}
	s.Prompts, err = prompt.NewEngine(ctx, promptStore,
		prompt.WithThresholds(cfg.Prompts),
		prompt.WithClock(a.opts.now),
		prompt.WithLogger(log.WithComponent("prompt")),
		prompt.WithMetrics(metrics))
	if err != nil {
		return err
	}

	s.Notifier = a.opts.notifier
	if s.Notifier == nil {
		s.Notifier = notify.NewWriter(os.Stderr)
		if cfg.Notify.Desktop {
			s.Notifier = notify.Fallback{Primary: notify.Desktop{Icon: cfg.Notify.Icon}, Secondary: s.Notifier}
		}
	}
	s.Upseller = &notify.Upseller{Engine: s.Prompts, Notifier: s.Notifier, Log: log.WithComponent("notify")}

	src := a.opts.source
	if src == nil {
		src = captureSource(cfg.Audio)
	}
	s.Device = audio.NewDevice(cfg.Audio.Device, src)
	s.Preroll = preroll.New(s.Device, cfg.Audio.Format,
		preroll.WithChunkDuration(cfg.Audio.ChunkDuration),
		preroll.WithLogger(log.WithComponent("preroll")),
		preroll.WithMetrics(metrics),
		preroll.WithWarningHandler(notify.Warnings(s.Notifier, log)))

	if s.Pipeline, err = a.pipeline(s); err != nil {
		return err
	}
	a.Services = s

	late := []component.Component{
		&component.Hook{
			ID: "preroll",
			StopFn: func(context.Context) error {
				s.Preroll.Disarm()
				return nil
			},
			HealthFn: func(context.Context) component.Health {
				st := s.Preroll.Status()
				if st.Warning != nil {
					return component.Health{Name: "preroll", Status: component.StatusDegraded, Message: st.Warning.Message, Code: string(st.Warning.Code)}
				}
				return component.Health{Name: "preroll", Status: component.StatusHealthy, Message: string(st.State)}
			},
		},
		&component.Hook{ID: "pipeline", StopFn: func(context.Context) error {
			s.Pipeline.Wait()
			return nil
		}},
	}
	if a.opts.serve {
		srv := server.New(cfg.Server, log)
		srv.RegisterDefaultEndpoints(cfg.Name, a.Components.HealthAll)
		api := &server.API{
			Entitlements: s.Entitlements,
			Prompts:      s.Prompts,
			Usage:        s.Usage,
			Preroll:      s.Preroll,
			Recordings:   s.Recordings,
			Reprocess:    s.Reprocess,
			Now:          a.opts.now,
		}
		api.Register(srv)
		late = append(late, server.NewComponent(srv))
	}
	for _, c := range late {
		if err := a.RegisterComponent(c); err != nil {
			return err
		}
	}
	return a.Components.StartAll(ctx)
}

func (a *App) recordingStore() (recording.Store, error) {
	switch a.Cfg.State.Recordings {
	case BackendMemory:
		return recording.NewMemoryStore(), nil
	case BackendDatabase:
		return recording.NewGormStore(a.db.DB()), nil
	}
	return nil, fmt.Errorf("unsupported recordings backend %q", a.Cfg.State.Recordings)
}

func (a *App) pipeline(s *Services) (*processing.Pipeline, error) {
	cfg := a.Cfg
	opts := []processing.Option{
		processing.WithConfig(cfg.Pipeline),
		processing.WithEnhancer(dsp.NewEnhancer(cfg.DSP)),
		processing.WithNoiseReducer(dsp.NewNoiseGate(cfg.DSP)),
		processing.WithAnalyzer(analytics.New(cfg.Processing.FillerWords)),
		processing.WithLogger(a.Logger.WithComponent("pipeline")),
		processing.WithMetrics(s.Metrics),
	}

	if p := cfg.Diarization.Provider; p != "none" {
		d, err := diarization.Registry.Create(p, map[string]any{
			"url":            cfg.Diarization.URL,
			"timeout":        cfg.Diarization.Timeout,
			"advanced_model": cfg.Diarization.AdvancedModel,
		})
		if err != nil {
			return nil, fmt.Errorf("diarization: %w", err)
		}
		opts = append(opts, processing.WithDiarizer(d))
	}
	if p := cfg.Transcription.Provider; p != "none" {
		t, err := transcription.Registry.Create(p, map[string]any{
			"url":      cfg.Transcription.URL,
			"model":    cfg.Transcription.Model,
			"language": cfg.Transcription.Language,
			"timeout":  cfg.Transcription.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("transcription: %w", err)
		}
		opts = append(opts, processing.WithTranscriber(t))
	}
	return processing.New(s.Artifacts, s.Recordings, opts...), nil
}

// contextStore picks the persistence for one kind of small state.
func contextStore[C any](backend string, db *database.Component, rc *redis.Component) (provider.ContextStore[C], error) {
	switch backend {
	case BackendMemory:
		return provider.NewMemoryStore[C](), nil
	case BackendDatabase:
		return database.NewKVStore[C](db.DB()), nil
	case BackendRedis:
		return redis.NewTypedStore[C](rc.Client(), ""), nil
	}
	return nil, fmt.Errorf("unsupported state backend %q", backend)
}

func captureSource(cfg AudioConfig) audio.Source {
	switch cfg.Source {
	case SourceSilence:
		g := audio.SilenceSource(0)
		g.Realtime = true
		return g
	case SourceTone:
		g := audio.ToneSource(cfg.ToneHz, 8000, 0)
		g.Realtime = true
		return g
	default:
		return portaudio.New()
	}
}

// Usage returns the prompt usage snapshot: recording counts from the store
// and whole months on the current paid tier.
func (s *Services) Usage(ctx context.Context) (prompt.Usage, error) {
	stats, err := s.Recordings.Stats(ctx)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodePersistence) {
			return prompt.Usage{}, err
		}
		return prompt.Usage{}, errors.Persistence("recording stats", err)
	}
	return prompt.Usage{
		MultiSpeakerRecordings: stats.MultiSpeaker,
		TotalRecordings:        stats.Total,
		MonthsSubscribed:       s.Entitlements.MonthsSubscribed(s.now()),
	}, nil
}

// CheckUpsells evaluates every prompt at a trigger point (app launch or a
// finished recording) and notifies for the ones that fire.
func (s *Services) CheckUpsells(ctx context.Context) ([]prompt.Kind, error) {
	usage, err := s.Usage(ctx)
	if err != nil {
		return nil, err
	}
	return s.Upseller.Check(ctx, s.Entitlements.Tier(), usage)
}
