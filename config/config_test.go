package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/meetingflow/logger"
)

type testConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Pipeline      struct {
		OutlierThreshold float64       `mapstructure:"outlier_threshold"`
		PollDeadline     time.Duration `mapstructure:"poll_deadline"`
	} `mapstructure:"pipeline"`
}

type fakeFS struct {
	files  map[string]bool
	loaded []string
}

func (f *fakeFS) Exists(path string) bool { return f.files[path] }
func (f *fakeFS) LoadEnv(path string) error {
	f.loaded = append(f.loaded, path)
	return nil
}

func TestServiceConfig_ApplyDefaults(t *testing.T) {
	t.Run("empty environment defaults to development", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc"}
		cfg.ApplyDefaults()
		if cfg.Environment != "development" || !cfg.Debug {
			t.Errorf("expected development+debug, got %q debug=%v", cfg.Environment, cfg.Debug)
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("debug should lower the log level, got %q", cfg.Logging.Level)
		}
	})

	t.Run("explicit level wins over debug", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc", Debug: true, Logging: logger.Config{Level: "warn"}}
		cfg.ApplyDefaults()
		if cfg.Logging.Level != "warn" {
			t.Errorf("level = %q", cfg.Logging.Level)
		}
	})

	t.Run("production keeps debug false", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc", Environment: "production"}
		cfg.ApplyDefaults()
		if cfg.Debug || cfg.Logging.Level != "info" {
			t.Errorf("production: debug=%v level=%q", cfg.Debug, cfg.Logging.Level)
		}
	})
}

func TestServiceConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		cfg    ServiceConfig
		errMsg string
	}{
		{"valid", ServiceConfig{Name: "svc", Environment: "staging"}, ""},
		{"missing name", ServiceConfig{Environment: "production"}, "config.name is required"},
		{"invalid environment", ServiceConfig{Name: "svc", Environment: "qa"}, "config.environment must be one of"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.Logging.ApplyDefaults()
			err := tc.cfg.Validate()
			if tc.errMsg == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.errMsg) {
				t.Errorf("expected error containing %q, got %v", tc.errMsg, err)
			}
		})
	}
}

func TestLoadConfig_YAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	yaml := `
name: meetingworker
environment: staging
pipeline:
  outlier_threshold: 0.3
  poll_deadline: 300s
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PIPELINE_OUTLIER_THRESHOLD", "0.25")

	var cfg testConfig
	if err := LoadConfig("meetingworker", &cfg, WithConfigFile(path)); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Name != "meetingworker" || cfg.Environment != "staging" {
		t.Errorf("unexpected service fields: %+v", cfg.ServiceConfig)
	}
	if cfg.Pipeline.OutlierThreshold != 0.25 {
		t.Errorf("expected env override 0.25, got %v", cfg.Pipeline.OutlierThreshold)
	}
	if cfg.Pipeline.PollDeadline != 300*time.Second {
		t.Errorf("expected 300s, got %v", cfg.Pipeline.PollDeadline)
	}
}

func TestLoadConfig_SearchesEnvFile(t *testing.T) {
	fs := &fakeFS{files: map[string]bool{".env": true}}
	var cfg testConfig
	if err := LoadConfig("meetingworker", &cfg, WithFileSystem(fs)); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(fs.loaded) != 1 || fs.loaded[0] != ".env" {
		t.Errorf("expected .env to be loaded, got %v", fs.loaded)
	}
}

func TestEnvKeyVariants(t *testing.T) {
	got := envKeyVariants("KEYQUOTA_QUOTA_COOLDOWN")
	want := []string{
		"keyquota_quota_cooldown",
		"keyquota.quota.cooldown",
		"keyquota.quota_cooldown",
		"keyquota_quota.cooldown",
	}
	for _, w := range want {
		found := false
		for _, g := range got {
			if g == w {
				found = true
			}
		}
		if !found {
			t.Errorf("missing variant %q in %v", w, got)
		}
	}
	if len(envKeyVariants("PATH")) != 1 {
		t.Error("single-part keys have one variant")
	}
}
