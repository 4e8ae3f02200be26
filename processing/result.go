package processing

import (
	"github.com/kbukum/voicememo/analytics"
	"github.com/kbukum/voicememo/artifact"
	"github.com/kbukum/voicememo/diarization"
	"github.com/kbukum/voicememo/recording"
)

// Result accumulates the output of one run. Every field past FinalArtifact
// is nil when its stage was skipped or failed.
type Result struct {
	Handle                recording.Handle      `json:"handle"`
	FinalArtifact         artifact.Artifact     `json:"final_artifact"`
	SpeakerSegments       []diarization.Segment `json:"speaker_segments,omitempty"`
	Transcript            *string               `json:"transcript,omitempty"`
	PerSegmentTranscripts map[int]string        `json:"per_segment_transcripts,omitempty"`
	Analytics             *analytics.Report     `json:"analytics,omitempty"`
	Stages                []StageReport         `json:"stages"`
}

// Report returns the report for s, if s was planned.
func (r *Result) Report(s Stage) (StageReport, bool) {
	for _, rep := range r.Stages {
		if rep.Stage == s {
			return rep, true
		}
	}
	return StageReport{}, false
}

// Outcome returns the outcome of s, or "" when s was not planned.
func (r *Result) Outcome(s Stage) Outcome {
	rep, _ := r.Report(s)
	return rep.Outcome
}

// Failed returns the reports of failed stages.
func (r *Result) Failed() []StageReport {
	var out []StageReport
	for _, rep := range r.Stages {
		if rep.Outcome == OutcomeFailed {
			out = append(out, rep)
		}
	}
	return out
}
