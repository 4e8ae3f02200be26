package server

import (
	"fmt"
	"net"
	"time"

	"github.com/kbukum/voicememo/validation"
)

// Config holds control API configuration.
type Config struct {
	Host         string        `yaml:"host" mapstructure:"host" validate:"required"`
	Port         int           `yaml:"port" mapstructure:"port" validate:"gte=0,lte=65535"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" validate:"gte=0"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" validate:"gte=0"`
	MaxBodySize  string        `yaml:"max_body_size" mapstructure:"max_body_size"` // e.g. "64KB"
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 7717
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "64KB"
	}
}

// Validate rejects anything but a loopback host.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	if !isLoopback(c.Host) {
		return fmt.Errorf("server.host must be a loopback address (got: %s)", c.Host)
	}
	return nil
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
