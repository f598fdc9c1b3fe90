package keyquota

import (
	"fmt"
	"time"

	"github.com/kbukum/meetingflow/validation"
)

// CredentialConfig is one configured API key.
type CredentialConfig struct {
	ID     string `yaml:"id" mapstructure:"id"`
	Secret string `yaml:"secret" mapstructure:"secret"`
}

// Config holds pool policy and the configured credentials per provider.
type Config struct {
	// DefaultRateLimitCooldown applies when a provider gives no retry-after hint.
	DefaultRateLimitCooldown time.Duration `yaml:"default_rate_limit_cooldown" mapstructure:"default_rate_limit_cooldown"`
	// QuotaCooldown is how long an exhausted credential is parked.
	QuotaCooldown time.Duration `yaml:"quota_cooldown" mapstructure:"quota_cooldown"`
	// CircuitThreshold is the consecutive-failure count that opens a credential's circuit.
	CircuitThreshold int `yaml:"circuit_threshold" mapstructure:"circuit_threshold"`
	// CircuitCooldown is how long an open circuit stays open.
	CircuitCooldown time.Duration `yaml:"circuit_cooldown" mapstructure:"circuit_cooldown"`
	// Providers maps provider name to credentials in registration order.
	Providers map[string][]CredentialConfig `yaml:"providers" mapstructure:"providers"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.DefaultRateLimitCooldown <= 0 {
		c.DefaultRateLimitCooldown = 60 * time.Second
	}
	if c.QuotaCooldown <= 0 {
		c.QuotaCooldown = 30 * 24 * time.Hour
	}
	if c.CircuitThreshold <= 0 {
		c.CircuitThreshold = 5
	}
	if c.CircuitCooldown <= 0 {
		c.CircuitCooldown = 60 * time.Second
	}
}

// Validate checks every configured credential has an id and a secret.
func (c *Config) Validate() error {
	v := validation.New()
	for provider, creds := range c.Providers {
		for i, cred := range creds {
			v.Required(fmt.Sprintf("keyquota.providers.%s[%d].id", provider, i), cred.ID)
			v.Required(fmt.Sprintf("keyquota.providers.%s[%d].secret", provider, i), cred.Secret)
		}
	}
	return v.Err()
}
