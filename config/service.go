package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kbukum/voicememo/logger"
)

// ServiceConfig contains the fields every voicememo binary needs.
// Application configs embed it:
//
//	type Config struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Preroll preroll.Config `yaml:"preroll" mapstructure:"preroll"`
//	}
type ServiceConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	// DataDir holds local state. The database and local artifacts default
	// to paths under it.
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`
	// Debug forces debug logging regardless of logging.level.
	Debug   bool          `yaml:"debug" mapstructure:"debug"`
	Logging logger.Config `yaml:"logging" mapstructure:"logging"`
}

// GetServiceConfig returns the base ServiceConfig. When embedded, the method
// is promoted so the outer struct satisfies bootstrap.Config.
func (c *ServiceConfig) GetServiceConfig() *ServiceConfig {
	return c
}

// ApplyDefaults names the service voicememo and places DataDir in the
// user config directory.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "voicememo"
	}
	if c.DataDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = os.TempDir()
		}
		c.DataDir = filepath.Join(dir, c.Name)
	}
	if c.Debug {
		c.Logging.Level = "debug"
	}
	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = c.Name
	}
	c.Logging.ApplyDefaults()
}

// DataPath joins elem onto DataDir.
func (c *ServiceConfig) DataPath(elem ...string) string {
	return filepath.Join(append([]string{c.DataDir}, elem...)...)
}

// Validate validates the base configuration fields.
func (c *ServiceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config.name is required")
	}
	if strings.ContainsAny(c.Name, `/\`) {
		return fmt.Errorf("config.name must not contain path separators (got: %s)", c.Name)
	}
	if c.DataDir == "" {
		return fmt.Errorf("config.data_dir is required")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	return nil
}
