package provider

import (
	"context"
	"sync"
	"time"
)

// ContextStore persists typed state under opaque keys. Backends live in the
// redis and database packages; MemoryStore serves tests and ephemeral runs.
type ContextStore[C any] interface {
	// Load returns (nil, nil) when key is absent.
	Load(ctx context.Context, key string) (*C, error)
	// Save stores val under key. A ttl of 0 never expires.
	Save(ctx context.Context, key string, val *C, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore is an in-process ContextStore. Values are copied on Save and
// Load so callers cannot mutate stored state through a returned pointer.
type MemoryStore[C any] struct {
	mu    sync.RWMutex
	items map[string]memEntry[C]
	now   func() time.Time
}

type memEntry[C any] struct {
	val       C
	expiresAt time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore[C any]() *MemoryStore[C] {
	return &MemoryStore[C]{items: make(map[string]memEntry[C]), now: time.Now}
}

func (s *MemoryStore[C]) Load(_ context.Context, key string) (*C, error) {
	s.mu.RLock()
	entry, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.items, key)
		s.mu.Unlock()
		return nil, nil
	}
	v := entry.val
	return &v, nil
}

func (s *MemoryStore[C]) Save(_ context.Context, key string, val *C, ttl time.Duration) error {
	if val == nil {
		return s.Delete(context.Background(), key)
	}
	entry := memEntry[C]{val: *val}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.items[key] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore[C]) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore[C]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

var _ ContextStore[any] = (*MemoryStore[any])(nil)
