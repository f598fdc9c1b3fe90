package main

import (
	"fmt"
	"slices"
	"time"

	"github.com/kbukum/meetingflow/config"
	"github.com/kbukum/meetingflow/database"
	"github.com/kbukum/meetingflow/diarization"
	"github.com/kbukum/meetingflow/kafka"
	"github.com/kbukum/meetingflow/keyquota"
	"github.com/kbukum/meetingflow/llm"
	"github.com/kbukum/meetingflow/llm/gemini"
	"github.com/kbukum/meetingflow/llm/openai"
	"github.com/kbukum/meetingflow/media"
	"github.com/kbukum/meetingflow/observability"
	"github.com/kbukum/meetingflow/redis"
	"github.com/kbukum/meetingflow/server"
	"github.com/kbukum/meetingflow/speaker"
	"github.com/kbukum/meetingflow/speaker/voiceprint"
	"github.com/kbukum/meetingflow/storage"
	"github.com/kbukum/meetingflow/transcription"
	"github.com/kbukum/meetingflow/transcription/assembly"
	"github.com/kbukum/meetingflow/transcription/whisper"
	"github.com/kbukum/meetingflow/validation"
	"github.com/kbukum/meetingflow/worker"
)

const serviceName = "meetingworker"

// Queue backends.
const (
	QueueRedis = "redis"
	QueueKafka = "kafka"
)

// Config is the worker's configuration, loaded from config.yml and the
// environment.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Database      database.Config      `yaml:"database" mapstructure:"database"`
	Redis         redis.Config         `yaml:"redis" mapstructure:"redis"`
	Kafka         KafkaConfig          `yaml:"kafka" mapstructure:"kafka"`
	Queue         QueueConfig          `yaml:"queue" mapstructure:"queue"`
	Storage       storage.Config       `yaml:"storage" mapstructure:"storage"`
	Media         media.Config         `yaml:"media" mapstructure:"media"`
	Transcription TranscriptionConfig  `yaml:"transcription" mapstructure:"transcription"`
	Speaker       SpeakerConfig        `yaml:"speaker" mapstructure:"speaker"`
	Diarization   diarization.Config   `yaml:"diarization" mapstructure:"diarization"`
	LLM           LLMConfig            `yaml:"llm" mapstructure:"llm"`
	KeyQuota      keyquota.Config      `yaml:"keyquota" mapstructure:"keyquota"`
	Worker        worker.Config        `yaml:"worker" mapstructure:"worker"`
	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// KafkaConfig adds topic names to the connection settings.
type KafkaConfig struct {
	kafka.Config `yaml:",inline" mapstructure:",squash"`
	// JobsTopic carries job descriptors when the queue backend is kafka.
	JobsTopic string `yaml:"jobs_topic" mapstructure:"jobs_topic"`
	// EventsTopic receives job status events. Empty disables publishing.
	EventsTopic string `yaml:"events_topic" mapstructure:"events_topic"`
}

// QueueConfig selects the job queue and the redis key layout.
type QueueConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"`
	// Key is the redis list holding descriptors.
	Key string `yaml:"key" mapstructure:"key"`
	// CancelPrefix namespaces cancellation flags.
	CancelPrefix string        `yaml:"cancel_prefix" mapstructure:"cancel_prefix"`
	CancelTTL    time.Duration `yaml:"cancel_ttl" mapstructure:"cancel_ttl"`
	// CachePrefix namespaces cached job records.
	CachePrefix string        `yaml:"cache_prefix" mapstructure:"cache_prefix"`
	CacheTTL    time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// TranscriptionConfig is the gateway config plus its backends, tried in
// Backends order.
type TranscriptionConfig struct {
	transcription.Config `yaml:",inline" mapstructure:",squash"`
	Backends             []string        `yaml:"backends" mapstructure:"backends"`
	Assembly             assembly.Config `yaml:"assembly" mapstructure:"assembly"`
	Whisper              whisper.Config  `yaml:"whisper" mapstructure:"whisper"`
}

// SpeakerConfig configures identification. Without a voiceprint base URL
// identification is skipped for every job.
type SpeakerConfig struct {
	speaker.Config `yaml:",inline" mapstructure:",squash"`
	Voiceprint     voiceprint.Config `yaml:"voiceprint" mapstructure:"voiceprint"`
}

// LLMConfig is the generator config plus its backends, tried in Backends order.
type LLMConfig struct {
	llm.Config `yaml:",inline" mapstructure:",squash"`
	Backends   []string      `yaml:"backends" mapstructure:"backends"`
	OpenAI     openai.Config `yaml:"openai" mapstructure:"openai"`
	Gemini     gemini.Config `yaml:"gemini" mapstructure:"gemini"`
}

// IdentificationEnabled reports whether a voiceprint service is configured.
func (c *SpeakerConfig) IdentificationEnabled() bool {
	return c.Voiceprint.BaseURL != ""
}

// ApplyDefaults fills every section.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	if c.Name == "" {
		c.Name = serviceName
	}

	c.Database.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Kafka.Config.ApplyDefaults()
	if c.Kafka.JobsTopic == "" {
		c.Kafka.JobsTopic = "meetingflow.jobs"
	}

	if c.Queue.Backend == "" {
		c.Queue.Backend = QueueRedis
	}
	if c.Queue.Key == "" {
		c.Queue.Key = "meetingflow:jobs"
	}
	if c.Queue.CancelPrefix == "" {
		c.Queue.CancelPrefix = "meetingflow:cancel"
	}
	if c.Queue.CancelTTL <= 0 {
		c.Queue.CancelTTL = redis.DefaultCancelTTL
	}
	if c.Queue.CachePrefix == "" {
		c.Queue.CachePrefix = "meetingflow:job"
	}

	c.Storage.ApplyDefaults()
	c.Media.ApplyDefaults()

	c.Transcription.Config.ApplyDefaults()
	if len(c.Transcription.Backends) == 0 {
		c.Transcription.Backends = []string{assembly.ProviderName, whisper.ProviderName}
	}
	c.Transcription.Assembly.ApplyDefaults()
	c.Transcription.Whisper.ApplyDefaults()

	c.Speaker.Config.ApplyDefaults()
	c.Speaker.Voiceprint.ApplyDefaults()
	c.Diarization.ApplyDefaults()

	c.LLM.Config.ApplyDefaults()
	if len(c.LLM.Backends) == 0 {
		c.LLM.Backends = []string{openai.ProviderName, gemini.ProviderName}
	}
	c.LLM.OpenAI.ApplyDefaults()
	c.LLM.Gemini.ApplyDefaults()

	c.KeyQuota.ApplyDefaults()
	c.Worker.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate checks every section. The worker needs the database and redis
// regardless of the queue backend.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	err := validation.New().
		Custom(c.Database.Enabled, "database.enabled", "must be true").
		Custom(c.Redis.Enabled, "redis.enabled", "must be true").
		OneOf("queue.backend", c.Queue.Backend, []string{QueueRedis, QueueKafka}).
		Custom(c.Queue.Backend != QueueKafka || c.Kafka.Enabled, "kafka.enabled", "must be true for the kafka queue").
		Custom(c.Kafka.EventsTopic == "" || c.Kafka.Enabled, "kafka.events_topic", "requires kafka.enabled").
		Custom(knownBackends(c.Transcription.Backends, assembly.ProviderName, whisper.ProviderName), "transcription.backends", "must name assembly or whisper").
		Custom(knownBackends(c.LLM.Backends, openai.ProviderName, gemini.ProviderName), "llm.backends", "must name openai or gemini").
		Err()
	if err != nil {
		return err
	}

	sections := []section{
		{"database", c.Database.Validate},
		{"redis", c.Redis.Validate},
		{"kafka", c.Kafka.Config.Validate},
		{"storage", c.Storage.Validate},
		{"keyquota", c.KeyQuota.Validate},
		{"server", c.Server.Validate},
		{"diarization", func() error { return validation.Validate(c.Diarization) }},
		{"speaker", func() error { return validation.Validate(c.Speaker.Config) }},
	}
	if c.Speaker.IdentificationEnabled() {
		sections = append(sections, section{"speaker.voiceprint", func() error { return validation.Validate(c.Speaker.Voiceprint) }})
	}
	for _, s := range sections {
		if err := s.fn(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

type section struct {
	name string
	fn   func() error
}

func knownBackends(names []string, known ...string) bool {
	if len(names) == 0 {
		return false
	}
	for _, n := range names {
		if !slices.Contains(known, n) {
			return false
		}
	}
	return true
}
