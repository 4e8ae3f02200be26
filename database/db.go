package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/resilience"
)

// DB wraps a GORM sqlite database with service logging.
type DB struct {
	GormDB *gorm.DB
	log    *logger.Logger
	cfg    Config
	closed bool
	mu     sync.Mutex
}

// Open creates the database file if needed, connects with retry and, when
// cfg.Migrate is set, applies the embedded migrations.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (*DB, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.WithComponent("database")
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	gormCfg := &gorm.Config{
		Logger: newGormLogger(log, cfg.SlowQueryThreshold, parseLogLevel(cfg.LogLevel)),
	}

	retry := resilience.RetryConfig{MaxAttempts: cfg.MaxRetries}
	attempt := 0
	gdb, err := resilience.Retry(ctx, retry, func() (*gorm.DB, error) {
		attempt++
		gdb, err := gorm.Open(sqlite.Open(cfg.DSN()), gormCfg)
		if err != nil {
			log.Warn("Database open failed", logger.Fields("attempt", attempt, logger.FieldError, err.Error()))
			return nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			log.Warn("Database ping failed", logger.Fields("attempt", attempt, logger.FieldError, err.Error()))
			_ = sqlDB.Close()
			return nil, err
		}
		// sqlite serializes writers; one connection avoids SQLITE_BUSY churn.
		sqlDB.SetMaxOpenConns(1)
		return gdb, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database after %d attempts: %w", attempt, err)
	}

	db := &DB{GormDB: gdb, log: log, cfg: cfg}
	log.Info("Database opened", logger.Fields("path", cfg.Path, "attempt", attempt))

	if cfg.Migrate {
		if err := db.Migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

// Close closes the underlying connection pool. Safe to call multiple times.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	sqlDB, err := d.GormDB.DB()
	if err != nil {
		return err
	}
	d.closed = true
	d.log.Info("Closing database")
	return sqlDB.Close()
}

// PingContext verifies the database connection is alive.
func (d *DB) PingContext(ctx context.Context) error {
	sqlDB, err := d.GormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// WithContext returns a GORM session scoped to ctx.
func (d *DB) WithContext(ctx context.Context) *gorm.DB {
	return d.GormDB.WithContext(ctx)
}

// Path returns the database file path.
func (d *DB) Path() string { return d.cfg.Path }
