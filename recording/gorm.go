package recording

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/voicememo/database"
	"github.com/kbukum/voicememo/diarization"
	"github.com/kbukum/voicememo/errors"
)

// row mirrors the recordings table. JSON columns hold segments and
// per-segment transcripts.
type row struct {
	Handle             string  `gorm:"column:handle;primaryKey"`
	Title              string  `gorm:"column:title"`
	AudioRef           string  `gorm:"column:audio_ref"`
	OriginalRef        string  `gorm:"column:original_ref"`
	DurationMS         int64   `gorm:"column:duration_ms"`
	SpeakerSegments    *string `gorm:"column:speaker_segments"`
	SpeakerCount       int     `gorm:"column:speaker_count"`
	Transcript         *string `gorm:"column:transcript"`
	SegmentTranscripts *string `gorm:"column:segment_transcripts"`
	WordCount          *int    `gorm:"column:word_count"`
	FillerWordCount    *int    `gorm:"column:filler_word_count"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (row) TableName() string { return "recordings" }

func (r *row) toRecording() (*Recording, error) {
	rec := &Recording{
		Handle:          Handle(r.Handle),
		Title:           r.Title,
		AudioRef:        r.AudioRef,
		OriginalRef:     r.OriginalRef,
		Duration:        time.Duration(r.DurationMS) * time.Millisecond,
		SpeakerCount:    r.SpeakerCount,
		Transcript:      r.Transcript,
		WordCount:       r.WordCount,
		FillerWordCount: r.FillerWordCount,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.SpeakerSegments != nil {
		if err := json.Unmarshal([]byte(*r.SpeakerSegments), &rec.SpeakerSegments); err != nil {
			return nil, fmt.Errorf("decode speaker segments: %w", err)
		}
	}
	if r.SegmentTranscripts != nil {
		if err := json.Unmarshal([]byte(*r.SegmentTranscripts), &rec.SegmentTranscripts); err != nil {
			return nil, fmt.Errorf("decode segment transcripts: %w", err)
		}
	}
	return rec, nil
}

// GormStore is a Store over the sqlite state database. The schema comes
// from the database package migrations.
type GormStore struct {
	db  *database.DB
	now func() time.Time
}

var _ Store = (*GormStore)(nil)

// NewGormStore creates a store over a migrated database.
func NewGormStore(db *database.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

func (s *GormStore) Create(ctx context.Context, title, audioRef string, duration time.Duration) (Handle, error) {
	if audioRef == "" {
		return "", errors.InvalidInput("audio_ref", "is required")
	}
	now := s.now()
	r := row{
		Handle:      uuid.NewString(),
		Title:       title,
		AudioRef:    audioRef,
		OriginalRef: audioRef,
		DurationMS:  duration.Milliseconds(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		return "", errors.Persistence("create recording", err)
	}
	return Handle(r.Handle), nil
}

func (s *GormStore) update(ctx context.Context, op string, h Handle, cols map[string]any) error {
	cols["updated_at"] = s.now()
	res := s.db.WithContext(ctx).Model(&row{}).Where("handle = ?", string(h)).Updates(cols)
	if res.Error != nil {
		return errors.Persistence(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NotFound("recording", string(h))
	}
	return nil
}

func (s *GormStore) UpdateResults(ctx context.Context, h Handle, res Results) error {
	cols := map[string]any{}
	if res.SpeakerSegments != nil {
		data, err := json.Marshal(res.SpeakerSegments)
		if err != nil {
			return errors.Internal(err)
		}
		cols["speaker_segments"] = string(data)
		cols["speaker_count"] = len(diarization.Speakers(res.SpeakerSegments))
	}
	if res.Transcript != nil {
		cols["transcript"] = *res.Transcript
	}
	if res.SegmentTranscripts != nil {
		data, err := json.Marshal(res.SegmentTranscripts)
		if err != nil {
			return errors.Internal(err)
		}
		cols["segment_transcripts"] = string(data)
	}
	return s.update(ctx, "update results", h, cols)
}

func (s *GormStore) UpdateAnalytics(ctx context.Context, h Handle, a Analytics) error {
	cols := map[string]any{}
	if a.WordCount != nil {
		cols["word_count"] = *a.WordCount
	}
	if a.FillerWordCount != nil {
		cols["filler_word_count"] = *a.FillerWordCount
	}
	return s.update(ctx, "update analytics", h, cols)
}

func (s *GormStore) UpdateAudioRef(ctx context.Context, h Handle, ref string) error {
	if ref == "" {
		return errors.InvalidInput("audio_ref", "is required")
	}
	return s.update(ctx, "update audio ref", h, map[string]any{"audio_ref": ref})
}

func (s *GormStore) Get(ctx context.Context, h Handle) (*Recording, error) {
	var r row
	err := s.db.WithContext(ctx).Where("handle = ?", string(h)).Take(&r).Error
	if err != nil {
		return nil, database.FromGormError(err, "get recording", "recording", string(h))
	}
	rec, err := r.toRecording()
	if err != nil {
		return nil, errors.Internal(err)
	}
	return rec, nil
}

func (s *GormStore) Stats(ctx context.Context) (Stats, error) {
	var total, multi int64
	q := s.db.WithContext(ctx).Model(&row{})
	if err := q.Count(&total).Error; err != nil {
		return Stats{}, errors.Persistence("recording stats", err)
	}
	if err := s.db.WithContext(ctx).Model(&row{}).Where("speaker_count > ?", 1).Count(&multi).Error; err != nil {
		return Stats{}, errors.Persistence("recording stats", err)
	}
	return Stats{Total: int(total), MultiSpeaker: int(multi)}, nil
}
