package main

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/meetingflow/bootstrap"
	"github.com/kbukum/meetingflow/database"
	"github.com/kbukum/meetingflow/diarization"
	"github.com/kbukum/meetingflow/errors"
	"github.com/kbukum/meetingflow/jobqueue"
	"github.com/kbukum/meetingflow/jobstore"
	"github.com/kbukum/meetingflow/kafka"
	"github.com/kbukum/meetingflow/kafka/consumer"
	"github.com/kbukum/meetingflow/kafka/producer"
	"github.com/kbukum/meetingflow/keyquota"
	"github.com/kbukum/meetingflow/llm"
	"github.com/kbukum/meetingflow/llm/gemini"
	"github.com/kbukum/meetingflow/llm/openai"
	"github.com/kbukum/meetingflow/logger"
	"github.com/kbukum/meetingflow/media"
	"github.com/kbukum/meetingflow/observability"
	"github.com/kbukum/meetingflow/pipeline"
	"github.com/kbukum/meetingflow/process"
	"github.com/kbukum/meetingflow/provider"
	"github.com/kbukum/meetingflow/redis"
	"github.com/kbukum/meetingflow/speaker"
	"github.com/kbukum/meetingflow/speaker/voiceprint"
	"github.com/kbukum/meetingflow/storage"
	"github.com/kbukum/meetingflow/transcription"
	"github.com/kbukum/meetingflow/transcription/assembly"
	"github.com/kbukum/meetingflow/transcription/whisper"

	_ "github.com/kbukum/meetingflow/storage/local"
	_ "github.com/kbukum/meetingflow/storage/s3"
)

// infra holds the connection components. They are registered before
// startup; their clients exist once the registry has started them.
type infra struct {
	db       *database.Component
	redis    *redis.Component
	kafka    *kafka.Component
	producer *producer.Producer
}

// registerInfra registers redis, kafka when enabled, and the database when
// withDatabase is set.
func registerInfra(app *bootstrap.App[*Config], withDatabase bool) (*infra, error) {
	cfg, log := app.Cfg, app.Logger
	in := &infra{redis: redis.NewComponent(cfg.Redis, log)}
	if withDatabase {
		in.db = database.NewComponent(cfg.Database, log).WithAutoMigrate(jobstore.Models()...)
		if err := app.RegisterComponent(in.db); err != nil {
			return nil, err
		}
	}
	if err := app.RegisterComponent(in.redis); err != nil {
		return nil, err
	}
	if !cfg.Kafka.Enabled {
		return in, nil
	}

	in.kafka = kafka.NewComponent(cfg.Kafka.Config, log)
	p, err := producer.NewProducer(cfg.Kafka.Config, log)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	in.producer = p
	in.kafka.SetProducer(p)
	if err := app.RegisterComponent(in.kafka); err != nil {
		return nil, err
	}
	return in, nil
}

// enqueuer returns the submission side of the configured queue.
func (in *infra) enqueuer(cfg *Config) jobqueue.Enqueuer {
	if cfg.Queue.Backend == QueueKafka {
		return jobqueue.NewKafkaEnqueuer(in.producer, cfg.Kafka.JobsTopic, cfg.Name)
	}
	return jobqueue.NewRedisQueue(in.redis.Client(), cfg.Queue.Key)
}

// queue returns the consuming side of the configured queue and the source
// it reads from.
func (in *infra) queue(cfg *Config, log *logger.Logger) (jobqueue.Queue, string, error) {
	if cfg.Queue.Backend != QueueKafka {
		return jobqueue.NewRedisQueue(in.redis.Client(), cfg.Queue.Key), "redis:" + cfg.Queue.Key, nil
	}
	c, err := consumer.NewConsumer(cfg.Kafka.Config, cfg.Kafka.JobsTopic, log)
	if err != nil {
		return nil, "", fmt.Errorf("kafka consumer: %w", err)
	}
	in.kafka.AddConsumer(c)
	return jobqueue.NewKafkaQueue(c, in.producer, cfg.Name), "kafka:" + cfg.Kafka.JobsTopic, nil
}

// services is everything the worker and the admin API share.
type services struct {
	jobs         *jobstore.GormJobRepository
	jobView      pipeline.JobRepository
	artifacts    *jobstore.GormArtifactRepository
	identities   *jobstore.IdentityDirectory
	flags        *redis.CancellationFlags
	keys         *keyquota.Manager
	orchestrator *pipeline.Orchestrator
}

func buildServices(ctx context.Context, cfg *Config, in *infra, metrics *observability.PipelineMetrics, log *logger.Logger) (*services, error) {
	if in.db == nil || in.db.DB() == nil || in.redis.Client() == nil {
		return nil, fmt.Errorf("database and redis must be started first")
	}

	db, client := in.db.DB(), in.redis.Client()
	s := &services{
		jobs:       jobstore.NewJobRepository(db),
		artifacts:  jobstore.NewArtifactRepository(db),
		identities: jobstore.NewIdentityDirectory(db),
		flags:      redis.NewCancellationFlags(client, cfg.Queue.CancelPrefix, cfg.Queue.CancelTTL),
	}

	var jobs pipeline.JobRepository = jobstore.NewCachedJobRepository(s.jobs, client, cfg.Queue.CachePrefix, cfg.Queue.CacheTTL, log)
	if in.producer != nil && cfg.Kafka.EventsTopic != "" {
		jobs = jobstore.NewEventingJobRepository(jobs, in.producer, cfg.Kafka.EventsTopic, cfg.Name, log)
	}
	s.jobView = jobs

	s.keys = keyquota.NewManager(cfg.KeyQuota,
		keyquota.WithLogger(logger.Get("keyquota")),
		keyquota.WithUnavailableHook(func(ctx context.Context, provider string, err error) {
			metrics.RecordCredentialUnavailable(ctx, provider, string(errors.CodeOf(err)))
		}),
	)

	store, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		return nil, err
	}
	transcoder := media.NewFFmpeg(cfg.Media, process.Exec{GracePeriod: 5 * time.Second})
	if err := transcoder.CheckTools(); err != nil {
		return nil, err
	}

	transcribers, err := transcriptionBackends(cfg, s.keys, log)
	if err != nil {
		return nil, err
	}
	gateway := transcription.NewGateway(cfg.Transcription.Config, store, transcoder, transcribers,
		transcription.WithLogger(log),
		transcription.WithFallbackHook(func(ctx context.Context, from string) {
			metrics.RecordFallback(ctx, "transcription", from)
		}),
	)

	generators, err := llmBackends(cfg, s.keys, log)
	if err != nil {
		return nil, err
	}
	generator := llm.NewGenerator(cfg.LLM.Config, s.keys, generators,
		llm.WithLogger(log),
		llm.WithFallbackHook(func(ctx context.Context, from string) {
			metrics.RecordFallback(ctx, "llm", from)
		}),
	)

	deps := pipeline.Dependencies{
		Jobs:        jobs,
		Artifacts:   s.artifacts,
		Cancel:      s.flags,
		Transcriber: gateway,
		Corrector:   diarization.NewCorrector(cfg.Diarization),
		Generator:   generator,
	}
	if cfg.Speaker.IdentificationEnabled() {
		searcher, err := voiceprint.New(cfg.Speaker.Voiceprint, s.keys, log)
		if err != nil {
			return nil, err
		}
		deps.Identifier = speaker.NewIdentifier(cfg.Speaker.Config, store, transcoder, searcher, log)
		deps.Directory = s.identities
	} else {
		log.Warn("no voiceprint service configured, speaker identification disabled")
	}

	s.orchestrator, err = pipeline.NewOrchestrator(deps, pipeline.WithLogger(log), pipeline.WithMetrics(metrics))
	if err != nil {
		return nil, err
	}
	return s, nil
}

func transcriptionBackends(cfg *Config, keys *keyquota.Manager, log *logger.Logger) ([]transcription.Backend, error) {
	reg := provider.NewRegistry[transcription.Backend]()
	reg.RegisterFactory(assembly.ProviderName, assembly.Factory(keys, log))
	reg.RegisterFactory(whisper.ProviderName, whisper.Factory(keys, log))

	settings := map[string]provider.Settings{
		assembly.ProviderName: {
			"base_url":     cfg.Transcription.Assembly.BaseURL,
			"timeout":      cfg.Transcription.Assembly.Timeout,
			"speech_model": cfg.Transcription.Assembly.SpeechModel,
		},
		whisper.ProviderName: {
			"base_url": cfg.Transcription.Whisper.BaseURL,
			"model":    cfg.Transcription.Whisper.Model,
			"timeout":  cfg.Transcription.Whisper.Timeout,
		},
	}
	return reg.Build(cfg.Transcription.Backends, settings)
}

func llmBackends(cfg *Config, keys *keyquota.Manager, log *logger.Logger) ([]llm.Backend, error) {
	reg := provider.NewRegistry[llm.Backend]()
	reg.RegisterFactory(openai.ProviderName, openai.Factory(keys, log))
	reg.RegisterFactory(gemini.ProviderName, gemini.Factory(keys, log))

	settings := map[string]provider.Settings{
		openai.ProviderName: {
			"base_url": cfg.LLM.OpenAI.BaseURL,
			"model":    cfg.LLM.OpenAI.Model,
			"timeout":  cfg.LLM.OpenAI.Timeout,
		},
		gemini.ProviderName: {
			"base_url": cfg.LLM.Gemini.BaseURL,
			"model":    cfg.LLM.Gemini.Model,
			"timeout":  cfg.LLM.Gemini.Timeout,
		},
	}
	return reg.Build(cfg.LLM.Backends, settings)
}

// initObservability installs the OTLP providers when enabled and returns
// their shutdown.
func initObservability(ctx context.Context, cfg *Config) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Observability.Enabled {
		return noop, nil
	}
	oc := cfg.Observability
	oc.ServiceName, oc.ServiceVersion, oc.Environment = cfg.Name, cfg.Version, cfg.Environment

	tp, err := observability.InitTracer(ctx, oc)
	if err != nil {
		return noop, err
	}
	mp, err := observability.InitMeter(ctx, oc)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return noop, err
	}
	return func(ctx context.Context) error {
		terr := tp.Shutdown(ctx)
		if merr := mp.Shutdown(ctx); merr != nil {
			return merr
		}
		return terr
	}, nil
}
