package server

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/kbukum/meetingflow/server/middleware"
)

// Config is the admin HTTP server section.
type Config struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Host    string `yaml:"host" mapstructure:"host"`
	Port    int    `yaml:"port" mapstructure:"port"`

	ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	// WriteTimeout of zero leaves writes unbounded, which the job event
	// stream relies on.
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`

	MaxBodySize string `yaml:"max_body_size" mapstructure:"max_body_size"`
	// RateLimit is requests per minute per client IP; 0 disables it.
	RateLimit int                   `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      middleware.CORSConfig `yaml:"cors" mapstructure:"cors"`
}

func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = time.Minute
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "1MB"
	}
	if c.CORS.AllowedMethods == nil {
		c.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if c.CORS.AllowedHeaders == nil {
		c.CORS.AllowedHeaders = []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader}
	}
}

// Addr is host:port as passed to the listener.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch {
	case c.Port < 0 || c.Port > 65535:
		return fmt.Errorf("server.port %d out of range", c.Port)
	case c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0:
		return fmt.Errorf("server timeouts must not be negative")
	case c.RateLimit < 0:
		return fmt.Errorf("server.rate_limit must not be negative")
	}
	return nil
}
