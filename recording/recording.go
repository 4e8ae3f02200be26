package recording

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/kbukum/voicememo/diarization"
)

// Handle is the opaque identifier of a stored recording.
type Handle string

// Recording is the durable entity pipeline results are written into.
type Recording struct {
	Handle   Handle `json:"handle"`
	Title    string `json:"title"`
	AudioRef string `json:"audio_ref"`
	// OriginalRef is the audio as saved, before any transform.
	OriginalRef        string                `json:"original_ref"`
	Duration           time.Duration         `json:"duration"`
	SpeakerSegments    []diarization.Segment `json:"speaker_segments,omitempty"`
	SpeakerCount       int                   `json:"speaker_count"`
	Transcript         *string               `json:"transcript,omitempty"`
	SegmentTranscripts map[int]string        `json:"segment_transcripts,omitempty"`
	WordCount          *int                  `json:"word_count,omitempty"`
	FillerWordCount    *int                  `json:"filler_word_count,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// MultiSpeaker reports whether diarization found more than one speaker.
func (r *Recording) MultiSpeaker() bool { return r.SpeakerCount > 1 }

func (r *Recording) clone() *Recording {
	c := *r
	c.SpeakerSegments = slices.Clone(r.SpeakerSegments)
	c.SegmentTranscripts = maps.Clone(r.SegmentTranscripts)
	if r.Transcript != nil {
		s := *r.Transcript
		c.Transcript = &s
	}
	if r.WordCount != nil {
		n := *r.WordCount
		c.WordCount = &n
	}
	if r.FillerWordCount != nil {
		n := *r.FillerWordCount
		c.FillerWordCount = &n
	}
	return &c
}

// Results carries analysis output. Nil fields are left unchanged; a
// non-nil empty SpeakerSegments clears the stored segments.
type Results struct {
	SpeakerSegments    []diarization.Segment
	Transcript         *string
	SegmentTranscripts map[int]string
}

// Empty reports whether the update would change nothing.
func (r Results) Empty() bool {
	return r.SpeakerSegments == nil && r.Transcript == nil && r.SegmentTranscripts == nil
}

// Analytics carries transcript statistics. Nil fields are left unchanged.
type Analytics struct {
	WordCount       *int
	FillerWordCount *int
}

// Stats summarizes stored recordings for usage snapshots.
type Stats struct {
	Total        int
	MultiSpeaker int
}

// Store is the contract between the pipeline and durable storage.
type Store interface {
	Create(ctx context.Context, title, audioRef string, duration time.Duration) (Handle, error)
	UpdateResults(ctx context.Context, h Handle, res Results) error
	UpdateAnalytics(ctx context.Context, h Handle, a Analytics) error
	UpdateAudioRef(ctx context.Context, h Handle, ref string) error
	Get(ctx context.Context, h Handle) (*Recording, error)
	Stats(ctx context.Context) (Stats, error)
}

// apply merges res into rec.
func (res Results) apply(rec *Recording) {
	if res.SpeakerSegments != nil {
		rec.SpeakerSegments = slices.Clone(res.SpeakerSegments)
		rec.SpeakerCount = len(diarization.Speakers(res.SpeakerSegments))
	}
	if res.Transcript != nil {
		s := *res.Transcript
		rec.Transcript = &s
	}
	if res.SegmentTranscripts != nil {
		rec.SegmentTranscripts = maps.Clone(res.SegmentTranscripts)
	}
}

func (a Analytics) apply(rec *Recording) {
	if a.WordCount != nil {
		n := *a.WordCount
		rec.WordCount = &n
	}
	if a.FillerWordCount != nil {
		n := *a.FillerWordCount
		rec.FillerWordCount = &n
	}
}
