package database

import (
	"fmt"
	"slices"
	"time"
)

// DriverSQLite is the only supported driver.
const DriverSQLite = "sqlite"

var logLevels = []string{"silent", "error", "warn", "info"}

// Config is the database section of the service config.
type Config struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Driver  string `yaml:"driver" mapstructure:"driver"`
	// DSN for sqlite, e.g. "file:meetingflow.db?_pragma=busy_timeout(5000)".
	DSN string `yaml:"dsn" mapstructure:"dsn"`

	// SQLite allows a single writer; keep the pool at one unless the DSN
	// is read-only.
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`

	// MaxRetries is the number of connect attempts.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`
	// AutoMigrate creates the job tables on start. The migrate command does
	// the same explicitly.
	AutoMigrate bool `yaml:"auto_migrate" mapstructure:"auto_migrate"`

	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold" mapstructure:"slow_query_threshold"`
	// LogLevel is one of silent, error, warn, info.
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

func (c *Config) ApplyDefaults() {
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	if c.DSN == "" {
		c.DSN = "file:meetingflow.db?_pragma=busy_timeout(5000)"
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 1
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 1
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.SlowQueryThreshold == 0 {
		c.SlowQueryThreshold = 200 * time.Millisecond
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
}

// Validate skips a disabled section.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch {
	case c.Driver != DriverSQLite:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	case c.DSN == "":
		return fmt.Errorf("dsn is required")
	case c.MaxIdleConns > c.MaxOpenConns:
		return fmt.Errorf("max_idle_conns (%d) must be <= max_open_conns (%d)", c.MaxIdleConns, c.MaxOpenConns)
	case c.ConnMaxLifetime < 0 || c.ConnMaxIdleTime < 0 || c.SlowQueryThreshold < 0:
		return fmt.Errorf("durations must not be negative")
	case !slices.Contains(logLevels, c.LogLevel):
		return fmt.Errorf("log_level must be one of %v, got %q", logLevels, c.LogLevel)
	}
	return nil
}
