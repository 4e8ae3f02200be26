package dsp

import (
	"runtime"
	"time"
)

// Config tunes the transforms.
type Config struct {
	// Workers bounds chunk concurrency. 0 uses GOMAXPROCS.
	Workers int `yaml:"workers" mapstructure:"workers" validate:"gte=0"`
	// ChunkDuration is the unit of parallel work.
	ChunkDuration time.Duration `yaml:"chunk_duration" mapstructure:"chunk_duration"`
	// TargetPeak is the normalized peak as a fraction of full scale.
	TargetPeak float64 `yaml:"target_peak" mapstructure:"target_peak" validate:"gte=0,lte=1"`
	// MaxGain caps amplification of quiet recordings.
	MaxGain float64 `yaml:"max_gain" mapstructure:"max_gain" validate:"gte=0"`
	// GateWindow is the analysis window of the noise gate.
	GateWindow time.Duration `yaml:"gate_window" mapstructure:"gate_window"`
	// GateRatio sets the threshold as a multiple of the noise floor.
	GateRatio float64 `yaml:"gate_ratio" mapstructure:"gate_ratio" validate:"gte=0"`
	// GateAttenuation is the gain applied to gated windows.
	GateAttenuation float64 `yaml:"gate_attenuation" mapstructure:"gate_attenuation" validate:"gte=0,lte=1"`
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.ChunkDuration <= 0 {
		c.ChunkDuration = time.Second
	}
	if c.TargetPeak <= 0 {
		c.TargetPeak = 0.89
	}
	if c.MaxGain <= 0 {
		c.MaxGain = 20
	}
	if c.GateWindow <= 0 {
		c.GateWindow = 20 * time.Millisecond
	}
	if c.GateRatio <= 0 {
		c.GateRatio = 2.0
	}
	if c.GateAttenuation <= 0 {
		c.GateAttenuation = 0.1
	}
}
