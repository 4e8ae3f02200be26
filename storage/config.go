package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Backend names.
const (
	ProviderLocal = "local"
	ProviderS3    = "s3"
)

// Config selects and configures the artifact storage backend.
type Config struct {
	Provider string      `yaml:"provider" mapstructure:"provider" validate:"omitempty,oneof=local s3"`
	Local    LocalConfig `yaml:"local" mapstructure:"local"`
	S3       S3Config    `yaml:"s3" mapstructure:"s3"`
}

// LocalConfig configures the filesystem backend.
type LocalConfig struct {
	BasePath string `yaml:"base_path" mapstructure:"base_path"`
}

// S3Config configures the S3 backend. Endpoint points at S3-compatible
// servers such as MinIO.
type S3Config struct {
	Bucket         string `yaml:"bucket" mapstructure:"bucket"`
	Region         string `yaml:"region" mapstructure:"region"`
	Endpoint       string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey      string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey      string `yaml:"secret_key" mapstructure:"secret_key"`
	Prefix         string `yaml:"prefix" mapstructure:"prefix"`
	ForcePathStyle bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
}

// ApplyDefaults stores artifacts under the user data directory by default.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderLocal
	}
	if c.Local.BasePath == "" {
		c.Local.BasePath = defaultBasePath()
	}
	if c.S3.Region == "" {
		c.S3.Region = "us-east-1"
	}
}

// Validate checks the selected backend's settings.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderLocal:
		if c.Local.BasePath == "" {
			return fmt.Errorf("storage.local.base_path is required")
		}
	case ProviderS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required")
		}
	default:
		return fmt.Errorf("unsupported storage provider %q", c.Provider)
	}
	return nil
}

func defaultBasePath() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "voicememo", "artifacts")
	}
	return filepath.Join(os.TempDir(), "voicememo", "artifacts")
}
