package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kbukum/voicememo/validation"
)

// Config holds the sqlite state database configuration.
type Config struct {
	// Path is the sqlite database file. Defaults to the user config dir.
	Path string `yaml:"path" mapstructure:"path"`

	// BusyTimeout is how long sqlite waits on a locked database.
	BusyTimeout time.Duration `yaml:"busy_timeout" mapstructure:"busy_timeout"`

	// MaxRetries is the number of connection attempts before giving up.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0,lte=20"`

	// Migrate applies the embedded schema migrations on open.
	Migrate bool `yaml:"migrate" mapstructure:"migrate"`

	// SlowQueryThreshold is the duration above which queries are logged as slow.
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold" mapstructure:"slow_query_threshold"`

	// LogLevel is the GORM log level: silent, error, warn or info.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=silent error warn info"`
}

// ApplyDefaults sets defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = os.TempDir()
		}
		c.Path = filepath.Join(dir, "voicememo", "voicememo.db")
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 5 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.SlowQueryThreshold <= 0 {
		c.SlowQueryThreshold = 200 * time.Millisecond
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("database path is required")
	}
	return validation.Validate(c)
}

// DSN returns the go-sqlite3 connection string for the configured file.
func (c *Config) DSN() string {
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_foreign_keys=on",
		c.Path, c.BusyTimeout.Milliseconds())
}
