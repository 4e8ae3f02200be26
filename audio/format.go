package audio

import (
	"fmt"
	"time"
)

// BitDepth is the only sample width the core works in.
const BitDepth = 16

// Format describes interleaved signed 16-bit PCM.
type Format struct {
	SampleRate int `json:"sample_rate" yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0"`
	Channels   int `json:"channels" yaml:"channels" mapstructure:"channels" validate:"gte=0,lte=8"`
}

// DefaultFormat is 16 kHz mono, what the speech backends expect.
var DefaultFormat = Format{SampleRate: 16000, Channels: 1}

// Validate checks that the format is usable.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", f.Channels)
	}
	return nil
}

// FramesFor returns the number of frames covering d, rounded down.
func (f Format) FramesFor(d time.Duration) int {
	return int(int64(d) * int64(f.SampleRate) / int64(time.Second))
}

// DurationOf returns the playback time of frames.
func (f Format) DurationOf(frames int) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(frames) * int64(time.Second) / int64(f.SampleRate))
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/s16", f.SampleRate, f.Channels)
}
