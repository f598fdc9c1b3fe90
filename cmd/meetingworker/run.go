package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/meetingflow/bootstrap"
	"github.com/kbukum/meetingflow/logger"
	"github.com/kbukum/meetingflow/observability"
	"github.com/kbukum/meetingflow/server"
	"github.com/kbukum/meetingflow/server/admin"
	"github.com/kbukum/meetingflow/worker"
)

// shutdownGrace is added to the worker's drain window for the remaining
// components.
const shutdownGrace = 30 * time.Second

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the worker and the admin API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			cfg.Worker.ApplyDefaults()
			app, err := bootstrap.NewApp(cfg, bootstrap.WithGracefulTimeout(cfg.Worker.MaxShutdownWait+shutdownGrace))
			if err != nil {
				return err
			}
			return serve(cmd.Context(), app)
		},
	}
}

func serve(ctx context.Context, app *bootstrap.App[*Config]) error {
	cfg, log := app.Cfg, app.Logger

	shutdownTelemetry, err := initObservability(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			log.Warn("telemetry shutdown failed", logger.Fields(logger.FieldError, err.Error()))
		}
	}()

	metrics, err := observability.NewPipelineMetrics(observability.Meter(serviceName))
	if err != nil {
		return err
	}

	in, err := registerInfra(app, true)
	if err != nil {
		return err
	}

	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
		svc, err := buildServices(ctx, cfg, in, metrics, log)
		if err != nil {
			return err
		}

		queue, source, err := in.queue(cfg, log)
		if err != nil {
			return err
		}
		w := worker.New(cfg.Worker, queue, svc.orchestrator,
			worker.WithLogger(log),
			worker.WithRegistrar(svc.jobs),
		)
		if err := a.RegisterComponent(worker.NewComponent(w)); err != nil {
			return err
		}
		group := ""
		if cfg.Queue.Backend == QueueKafka {
			group = cfg.Kafka.GroupID
		}
		a.Summary.TrackConsumer("worker", source, group)

		if !cfg.Server.Enabled {
			return nil
		}
		return registerServer(a, svc, in.enqueuer(cfg))
	})

	return app.Run(ctx)
}

func registerServer(a *bootstrap.App[*Config], svc *services, queue admin.Enqueuer) error {
	srv := server.New(a.Cfg.Server, a.Logger)
	srv.ApplyDefaults(a.Name, a.Components.HealthAll)

	handler, err := admin.NewHandler(admin.Deps{
		Jobs:        svc.jobView,
		Canceller:   svc.flags,
		Artifacts:   svc.artifacts,
		Identities:  svc.identities,
		Credentials: svc.keys,
		Queue:       queue,
	}, a.Logger)
	if err != nil {
		return err
	}
	handler.Register(srv.GinEngine().Group("/api/v1"))
	srv.TrackRoutes(a.Summary)
	return a.RegisterComponent(server.NewComponent(srv))
}
