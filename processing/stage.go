package processing

import (
	"slices"
	"time"

	"github.com/kbukum/voicememo/entitlement"
)

// Stage names one step of the pipeline.
type Stage string

const (
	StageEnhancement    Stage = "enhancement"
	StageNoiseReduction Stage = "noise_reduction"
	StageDiarization    Stage = "diarization"
	StageTranscription  Stage = "transcription"
	StageAnalytics      Stage = "analytics"
)

// Stages returns every stage in execution order.
func Stages() []Stage {
	return []Stage{StageEnhancement, StageNoiseReduction, StageDiarization, StageTranscription, StageAnalytics}
}

// Transform reports whether the stage produces a new audio artifact.
func (s Stage) Transform() bool {
	return s == StageEnhancement || s == StageNoiseReduction
}

// Capability returns the entitlement that gates the stage.
func (s Stage) Capability() entitlement.Capability {
	switch s {
	case StageEnhancement:
		return entitlement.AudioEnhancement
	case StageNoiseReduction:
		return entitlement.AINoiseReduction
	case StageDiarization:
		return entitlement.SpeakerDiarization
	default:
		// transcription and analytics only exist in terms of transcript text
		return entitlement.AISummaries
	}
}

// Outcome is the resolution of one stage in a run.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// StageReport records how a planned stage resolved.
type StageReport struct {
	Stage    Stage         `json:"stage"`
	Outcome  Outcome       `json:"outcome"`
	Duration time.Duration `json:"duration"`
	// Reason explains a skip.
	Reason string `json:"reason,omitempty"`
	// Err is a STAGE_TRANSIENT or STAGE_BLOCKING AppError for failed stages.
	Err error `json:"-"`
}

// Settings are the user toggles for each stage.
type Settings struct {
	Enhancement    bool `yaml:"enhancement" mapstructure:"enhancement" json:"enhancement"`
	NoiseReduction bool `yaml:"noise_reduction" mapstructure:"noise_reduction" json:"noise_reduction"`
	Diarization    bool `yaml:"diarization" mapstructure:"diarization" json:"diarization"`
	Transcription  bool `yaml:"transcription" mapstructure:"transcription" json:"transcription"`
	Analytics      bool `yaml:"analytics" mapstructure:"analytics" json:"analytics"`

	// Language hints the transcription and diarization backends.
	Language string `yaml:"language" mapstructure:"language" json:"language,omitempty"`
	// NumSpeakers fixes the speaker count for diarization (0 = detect).
	NumSpeakers int `yaml:"num_speakers" mapstructure:"num_speakers" json:"num_speakers,omitempty" validate:"gte=0,lte=16"`
}

// DefaultSettings enables every stage.
func DefaultSettings() Settings {
	return Settings{Enhancement: true, NoiseReduction: true, Diarization: true, Transcription: true, Analytics: true}
}

// Enabled reports the user toggle for s.
func (s Settings) Enabled(st Stage) bool {
	switch st {
	case StageEnhancement:
		return s.Enhancement
	case StageNoiseReduction:
		return s.NoiseReduction
	case StageDiarization:
		return s.Diarization
	case StageTranscription:
		return s.Transcription
	case StageAnalytics:
		return s.Analytics
	}
	return false
}

// Plan returns the stages that will run for caps and settings, in order.
// It is pure, so callers can use it to decide which affordances to show.
func Plan(caps entitlement.Set, s Settings) []Stage {
	var out []Stage
	for _, st := range Stages() {
		if !caps.Has(st.Capability()) || !s.Enabled(st) {
			continue
		}
		if st == StageAnalytics && !slices.Contains(out, StageTranscription) {
			continue
		}
		out = append(out, st)
	}
	return out
}
