package app

import (
	"fmt"
	"slices"
	"time"

	"github.com/kbukum/voicememo/audio"
	"github.com/kbukum/voicememo/config"
	"github.com/kbukum/voicememo/database"
	"github.com/kbukum/voicememo/dsp"
	"github.com/kbukum/voicememo/observability"
	"github.com/kbukum/voicememo/processing"
	"github.com/kbukum/voicememo/prompt"
	"github.com/kbukum/voicememo/redis"
	"github.com/kbukum/voicememo/server"
	"github.com/kbukum/voicememo/storage"
	"github.com/kbukum/voicememo/validation"
)

// State and recording backends.
const (
	BackendMemory   = "memory"
	BackendDatabase = "database"
	BackendRedis    = "redis"
)

// Capture sources.
const (
	SourcePortAudio = "portaudio"
	SourceSilence   = "silence"
	SourceTone      = "tone"
)

// Config is the full voicememo configuration, loaded from voicememo.yml,
// .env and VOICEMEMO_* environment variables.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
	Database      database.Config      `yaml:"database" mapstructure:"database"`
	Redis         redis.Config         `yaml:"redis" mapstructure:"redis"`
	Storage       storage.Config       `yaml:"storage" mapstructure:"storage"`
	State         StateConfig          `yaml:"state" mapstructure:"state"`
	Audio         AudioConfig          `yaml:"audio" mapstructure:"audio"`
	Preroll       PrerollConfig        `yaml:"preroll" mapstructure:"preroll"`
	Pipeline      processing.Config    `yaml:"pipeline" mapstructure:"pipeline"`
	Processing    ProcessingConfig     `yaml:"processing" mapstructure:"processing"`
	DSP           dsp.Config           `yaml:"dsp" mapstructure:"dsp"`
	Prompts       prompt.Thresholds    `yaml:"prompts" mapstructure:"prompts"`
	Diarization   DiarizationConfig    `yaml:"diarization" mapstructure:"diarization"`
	Transcription TranscriptionConfig  `yaml:"transcription" mapstructure:"transcription"`
	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Notify        NotifyConfig         `yaml:"notify" mapstructure:"notify"`
}

// StateConfig selects where the tier and prompt counters live and where
// recordings are stored.
type StateConfig struct {
	Backend    string `yaml:"backend" mapstructure:"backend" validate:"omitempty,oneof=memory database redis"`
	Recordings string `yaml:"recordings" mapstructure:"recordings" validate:"omitempty,oneof=memory database"`
}

// AudioConfig selects the capture source.
type AudioConfig struct {
	Source        string        `yaml:"source" mapstructure:"source" validate:"omitempty,oneof=portaudio silence tone"`
	Device        string        `yaml:"device" mapstructure:"device"`
	Format        audio.Format  `yaml:"format" mapstructure:"format"`
	ChunkDuration time.Duration `yaml:"chunk_duration" mapstructure:"chunk_duration"`
	// ToneHz is the frequency of the synthetic tone source.
	ToneHz float64 `yaml:"tone_hz" mapstructure:"tone_hz" validate:"gte=0"`
}

// PrerollConfig configures the rolling capture window.
type PrerollConfig struct {
	// WindowSeconds is the pre-roll length. 0 disables pre-roll.
	WindowSeconds int `yaml:"window_seconds" mapstructure:"window_seconds" validate:"gte=0,lte=300"`
	// ArmOnStart arms the buffer when the control API starts.
	ArmOnStart bool `yaml:"arm_on_start" mapstructure:"arm_on_start"`
}

// ProcessingConfig holds the user's stage toggles. Stages are on unless
// listed in Disabled.
type ProcessingConfig struct {
	Disabled    []string `yaml:"disabled" mapstructure:"disabled"`
	Language    string   `yaml:"language" mapstructure:"language"`
	NumSpeakers int      `yaml:"num_speakers" mapstructure:"num_speakers" validate:"gte=0,lte=16"`
	// FillerWords replaces the built-in filler list used by analytics.
	FillerWords []string `yaml:"filler_words" mapstructure:"filler_words"`
}

// DiarizationConfig selects the diarization backend. "none" disables the
// stage.
type DiarizationConfig struct {
	Provider      string        `yaml:"provider" mapstructure:"provider" validate:"omitempty,oneof=energy pyannote none"`
	URL           string        `yaml:"url" mapstructure:"url"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	AdvancedModel string        `yaml:"advanced_model" mapstructure:"advanced_model"`
}

// TranscriptionConfig selects the transcription backend. "none" disables
// the stage.
type TranscriptionConfig struct {
	Provider string        `yaml:"provider" mapstructure:"provider" validate:"omitempty,oneof=whisper none"`
	URL      string        `yaml:"url" mapstructure:"url"`
	Model    string        `yaml:"model" mapstructure:"model"`
	Language string        `yaml:"language" mapstructure:"language"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// NotifyConfig controls how prompts and warnings reach the user.
type NotifyConfig struct {
	Desktop bool   `yaml:"desktop" mapstructure:"desktop"`
	Icon    string `yaml:"icon" mapstructure:"icon"`
}

// ApplyDefaults fills every section.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	if c.Database.Path == "" {
		c.Database.Path = c.DataPath("voicememo.db")
	}
	if c.Storage.Local.BasePath == "" {
		c.Storage.Local.BasePath = c.DataPath("artifacts")
	}
	c.Observability.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Storage.ApplyDefaults()
	c.Pipeline.ApplyDefaults()
	c.DSP.ApplyDefaults()
	c.Prompts.ApplyDefaults()
	c.Server.ApplyDefaults()

	if c.State.Backend == "" {
		c.State.Backend = BackendDatabase
	}
	if c.State.Recordings == "" {
		c.State.Recordings = BackendDatabase
	}
	if c.Audio.Source == "" {
		c.Audio.Source = SourcePortAudio
	}
	if c.Audio.Device == "" {
		c.Audio.Device = "default"
	}
	if c.Audio.Format.SampleRate == 0 {
		c.Audio.Format.SampleRate = audio.DefaultFormat.SampleRate
	}
	if c.Audio.Format.Channels == 0 {
		c.Audio.Format.Channels = audio.DefaultFormat.Channels
	}
	if c.Audio.ChunkDuration <= 0 {
		c.Audio.ChunkDuration = 100 * time.Millisecond
	}
	if c.Audio.ToneHz == 0 {
		c.Audio.ToneHz = 440
	}
	if c.Diarization.Provider == "" {
		c.Diarization.Provider = "energy"
	}
	if c.Transcription.Provider == "" {
		c.Transcription.Provider = "none"
	}
}

// Validate checks struct tags first, then cross-field rules.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(c); err != nil {
		return err
	}
	if err := c.Audio.Format.Validate(); err != nil {
		return fmt.Errorf("audio.format: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if c.State.Backend == BackendRedis {
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Prompts.Validate(); err != nil {
		return fmt.Errorf("prompts: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	for _, name := range c.Processing.Disabled {
		if !slices.Contains(processing.Stages(), processing.Stage(name)) {
			return fmt.Errorf("processing.disabled: unknown stage %q", name)
		}
	}
	return nil
}

// Settings builds the pipeline toggles.
func (c *Config) Settings() processing.Settings {
	s := processing.DefaultSettings()
	for _, name := range c.Processing.Disabled {
		switch processing.Stage(name) {
		case processing.StageEnhancement:
			s.Enhancement = false
		case processing.StageNoiseReduction:
			s.NoiseReduction = false
		case processing.StageDiarization:
			s.Diarization = false
		case processing.StageTranscription:
			s.Transcription = false
		case processing.StageAnalytics:
			s.Analytics = false
		}
	}
	s.Language = c.Processing.Language
	s.NumSpeakers = c.Processing.NumSpeakers
	return s
}

// usesDatabase reports whether any store lives in sqlite.
func (c *Config) usesDatabase() bool {
	return c.State.Backend == BackendDatabase || c.State.Recordings == BackendDatabase
}
