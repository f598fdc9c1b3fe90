package storage

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProviderLocal = "local"
	ProviderS3    = "s3"
)

// Config selects and configures the blob backend.
type Config struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
	// BasePath is the root directory of the local provider.
	BasePath     string        `yaml:"base_path" mapstructure:"base_path"`
	SignedURLTTL time.Duration `yaml:"signed_url_ttl" mapstructure:"signed_url_ttl"`

	S3 S3Config `yaml:"s3" mapstructure:"s3"`
}

// S3Config also covers S3-compatible services such as MinIO via Endpoint
// and PathStyle.
type S3Config struct {
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	Region    string `yaml:"region" mapstructure:"region"`
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	PathStyle bool   `yaml:"path_style" mapstructure:"path_style"`
	// Prefix is prepended to every object key.
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
	// Static credentials; empty falls back to the default AWS chain.
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
}

func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderLocal
	}
	if c.BasePath == "" {
		c.BasePath = "/tmp/meetingflow/blobs"
	}
	if c.SignedURLTTL <= 0 {
		c.SignedURLTTL = time.Hour
	}
	if c.S3.Region == "" {
		c.S3.Region = "us-east-1"
	}
	c.S3.Prefix = strings.Trim(c.S3.Prefix, "/")
}

func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderLocal:
		if c.BasePath == "" {
			return fmt.Errorf("storage: base_path is required for the local provider")
		}
	case ProviderS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("storage: s3.bucket is required")
		}
		if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
			return fmt.Errorf("storage: s3.access_key and s3.secret_key go together")
		}
	default:
		return fmt.Errorf("storage: unsupported provider %q", c.Provider)
	}
	return nil
}
