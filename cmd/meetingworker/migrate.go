package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kbukum/meetingflow/bootstrap"
	"github.com/kbukum/meetingflow/database"
	"github.com/kbukum/meetingflow/jobstore"
	"github.com/kbukum/meetingflow/logger"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the job, artifact and identity tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			app, err := bootstrap.NewApp(cfg, bootstrap.WithSummaryOutput(io.Discard))
			if err != nil {
				return err
			}
			db := database.NewComponent(cfg.Database, app.Logger)
			if err := app.RegisterComponent(db); err != nil {
				return err
			}
			return app.RunTask(cmd.Context(), func(context.Context) error {
				models := jobstore.Models()
				if err := db.DB().AutoMigrate(models...); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				app.Logger.Info("schema migrated", logger.Fields("tables", len(models)))
				return nil
			})
		},
	}
}
