package recording

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/voicememo/errors"
)

// MemoryStore is an in-process Store for tests and dry runs.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[Handle]*Recording
	now   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[Handle]*Recording), now: time.Now}
}

func (s *MemoryStore) Create(_ context.Context, title, audioRef string, duration time.Duration) (Handle, error) {
	if audioRef == "" {
		return "", errors.InvalidInput("audio_ref", "is required")
	}
	now := s.now()
	h := Handle(uuid.NewString())
	s.mu.Lock()
	s.items[h] = &Recording{
		Handle:      h,
		Title:       title,
		AudioRef:    audioRef,
		OriginalRef: audioRef,
		Duration:    duration,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.mu.Unlock()
	return h, nil
}

func (s *MemoryStore) update(h Handle, fn func(*Recording)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[h]
	if !ok {
		return errors.NotFound("recording", string(h))
	}
	fn(rec)
	rec.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) UpdateResults(_ context.Context, h Handle, res Results) error {
	return s.update(h, res.apply)
}

func (s *MemoryStore) UpdateAnalytics(_ context.Context, h Handle, a Analytics) error {
	return s.update(h, a.apply)
}

func (s *MemoryStore) UpdateAudioRef(_ context.Context, h Handle, ref string) error {
	if ref == "" {
		return errors.InvalidInput("audio_ref", "is required")
	}
	return s.update(h, func(r *Recording) { r.AudioRef = ref })
}

func (s *MemoryStore) Get(_ context.Context, h Handle) (*Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[h]
	if !ok {
		return nil, errors.NotFound("recording", string(h))
	}
	return rec.clone(), nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Total: len(s.items)}
	for _, rec := range s.items {
		if rec.MultiSpeaker() {
			st.MultiSpeaker++
		}
	}
	return st, nil
}
