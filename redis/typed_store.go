package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/provider"
)

// TypedStore stores JSON-encoded values in redis and implements
// provider.ContextStore[C].
type TypedStore[C any] struct {
	client    *Client
	keyPrefix string
}

var _ provider.ContextStore[struct{}] = (*TypedStore[struct{}])(nil)

// NewTypedStore creates a TypedStore backed by client. Keys are written as
// "<prefix>:<key>"; an empty prefix uses the client's configured one.
func NewTypedStore[C any](client *Client, keyPrefix string) *TypedStore[C] {
	if keyPrefix == "" {
		keyPrefix = client.KeyPrefix()
	}
	return &TypedStore[C]{client: client, keyPrefix: keyPrefix}
}

func (s *TypedStore[C]) fullKey(key string) string {
	if s.keyPrefix == "" {
		return key
	}
	return s.keyPrefix + ":" + key
}

// Load returns (nil, nil) when the key does not exist.
func (s *TypedStore[C]) Load(ctx context.Context, key string) (*C, error) {
	raw, err := s.client.Get(ctx, s.fullKey(key))
	if stderrors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Persistence("redis load", err)
	}

	var val C
	if err := json.Unmarshal(raw, &val); err != nil {
		return nil, errors.Internal(fmt.Errorf("decode %s: %w", key, err))
	}
	return &val, nil
}

// Save stores val with ttl. A nil val deletes the key.
func (s *TypedStore[C]) Save(ctx context.Context, key string, val *C, ttl time.Duration) error {
	if val == nil {
		return s.Delete(ctx, key)
	}
	data, err := json.Marshal(val)
	if err != nil {
		return errors.Internal(fmt.Errorf("encode %s: %w", key, err))
	}
	if err := s.client.Set(ctx, s.fullKey(key), data, ttl); err != nil {
		return errors.Persistence("redis save", err)
	}
	return nil
}

func (s *TypedStore[C]) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.fullKey(key)); err != nil {
		return errors.Persistence("redis delete", err)
	}
	return nil
}
