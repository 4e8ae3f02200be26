package database

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/provider"
)

// kvRow is one row of the kv_state table.
type kvRow struct {
	Key       string `gorm:"column:state_key;primaryKey"`
	Value     []byte `gorm:"column:value"`
	ExpiresAt *time.Time
	UpdatedAt time.Time
}

func (kvRow) TableName() string { return "kv_state" }

// KVStore is a provider.ContextStore backed by the kv_state table.
// Values are stored as JSON.
type KVStore[C any] struct {
	db  *DB
	now func() time.Time
}

var _ provider.ContextStore[struct{}] = (*KVStore[struct{}])(nil)

// NewKVStore creates a typed store over db. The schema must be migrated.
func NewKVStore[C any](db *DB) *KVStore[C] {
	return &KVStore[C]{db: db, now: time.Now}
}

func (s *KVStore[C]) Load(ctx context.Context, key string) (*C, error) {
	var row kvRow
	err := s.db.WithContext(ctx).Where("state_key = ?", key).Take(&row).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Persistence("kv load", err)
	}
	if row.ExpiresAt != nil && s.now().After(*row.ExpiresAt) {
		if err := s.Delete(ctx, key); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var val C
	if err := json.Unmarshal(row.Value, &val); err != nil {
		return nil, errors.Internal(fmt.Errorf("decode %s: %w", key, err))
	}
	return &val, nil
}

func (s *KVStore[C]) Save(ctx context.Context, key string, val *C, ttl time.Duration) error {
	if val == nil {
		return s.Delete(ctx, key)
	}
	data, err := json.Marshal(val)
	if err != nil {
		return errors.Internal(fmt.Errorf("encode %s: %w", key, err))
	}
	now := s.now()
	row := kvRow{Key: key, Value: data, UpdatedAt: now}
	if ttl > 0 {
		exp := now.Add(ttl)
		row.ExpiresAt = &exp
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "state_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return errors.Persistence("kv save", err)
	}
	return nil
}

func (s *KVStore[C]) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("state_key = ?", key).Delete(&kvRow{}).Error; err != nil {
		return errors.Persistence("kv delete", err)
	}
	return nil
}
