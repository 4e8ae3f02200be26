package diarization

import (
	"sort"

	"github.com/kbukum/voicememo/audio"
)

// Request holds parameters for a diarization call.
type Request struct {
	Audio *audio.Buffer `json:"-"`
	// NumSpeakers is the exact number of speakers (0 = auto-detect).
	NumSpeakers int    `json:"num_speakers,omitempty"`
	MinSpeakers int    `json:"min_speakers,omitempty"`
	MaxSpeakers int    `json:"max_speakers,omitempty"`
	Language    string `json:"language,omitempty"`
	// Advanced requests the finer-grained model where the backend has one.
	Advanced bool `json:"advanced,omitempty"`
}

// Response holds the result of a diarization call.
type Response struct {
	Segments    []Segment `json:"segments"`
	NumSpeakers int       `json:"num_speakers"`
}

// Segment is a speaker-attributed time range in seconds.
type Segment struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Duration returns End-Start.
func (s Segment) Duration() float64 { return s.End - s.Start }

// Speakers returns the distinct speaker labels in order of first appearance.
func Speakers(segments []Segment) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range segments {
		if !seen[s.Speaker] {
			seen[s.Speaker] = true
			out = append(out, s.Speaker)
		}
	}
	return out
}

// Normalize sorts segments by start time and drops empty ranges.
func Normalize(segments []Segment) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, s := range segments {
		if s.End > s.Start {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
