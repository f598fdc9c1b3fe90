package httpclient

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kbukum/meetingflow/resilience"
)

// Config is assembled by each backend from its own section. Only the
// tagged fields are ever read from a file.
type Config struct {
	BaseURL string            `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration     `yaml:"timeout" mapstructure:"timeout"`
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`
	// MaxResponseBytes caps how much of a body is buffered.
	MaxResponseBytes int64 `yaml:"max_response_bytes" mapstructure:"max_response_bytes"`

	Auth  Auth                    `yaml:"-" mapstructure:"-"`
	Retry *resilience.RetryConfig `yaml:"-" mapstructure:"-"`
}

func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = 32 << 20
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("httpclient: timeout must be positive")
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil {
			return fmt.Errorf("httpclient: base_url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("httpclient: base_url %q needs an http(s) scheme", c.BaseURL)
		}
	}
	return nil
}

// DefaultRetryConfig retries what IsRetryable accepts, honouring
// Retry-After.
func DefaultRetryConfig() *resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.RetryIf, cfg.RetryAfter = IsRetryable, RetryAfterOf
	return &cfg
}
