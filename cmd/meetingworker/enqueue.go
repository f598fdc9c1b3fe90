package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kbukum/meetingflow/bootstrap"
	"github.com/kbukum/meetingflow/llm"
	"github.com/kbukum/meetingflow/logger"
	"github.com/kbukum/meetingflow/pipeline"
)

type enqueueOptions struct {
	file          string
	jobID         string
	tenantID      string
	ownerID       string
	sources       []string
	order         []int
	language      string
	hotwords      []string
	artifactTypes []string
	instructions  string
	skipSpeakers  bool
}

func newEnqueueCmd(root *rootOptions) *cobra.Command {
	opts := &enqueueOptions{}
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Submit a job descriptor to the queue",
		Long: `Submit a job descriptor to the configured queue. The descriptor is read
from --file ("-" for stdin) or assembled from flags; a missing job id is
generated.`,
		Example: `  meetingworker enqueue --tenant acme --source uploads/a.wav --source uploads/b.wav
  meetingworker enqueue --file job.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := opts.descriptor(cmd.InOrStdin())
			if err != nil {
				return err
			}
			cfg, err := root.load()
			if err != nil {
				return err
			}
			app, err := bootstrap.NewApp(cfg, bootstrap.WithSummaryOutput(io.Discard))
			if err != nil {
				return err
			}
			in, err := registerInfra(app, false)
			if err != nil {
				return err
			}
			return app.RunTask(cmd.Context(), func(ctx context.Context) error {
				if err := in.enqueuer(cfg).Enqueue(ctx, d); err != nil {
					return err
				}
				app.Logger.Info("job enqueued", logger.Fields(
					logger.FieldJobID, d.JobID,
					logger.FieldTenantID, d.TenantID,
					"queue", cfg.Queue.Backend,
				))
				fmt.Fprintln(cmd.OutOrStdout(), d.JobID)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "JSON descriptor file, - for stdin")
	f.StringVar(&opts.jobID, "job-id", "", "job id (generated when empty)")
	f.StringVar(&opts.tenantID, "tenant", "", "tenant id")
	f.StringVar(&opts.ownerID, "owner", "", "owner id")
	f.StringArrayVarP(&opts.sources, "source", "s", nil, "blob path of an audio file, repeatable")
	f.IntSliceVar(&opts.order, "order", nil, "concatenation order as source indexes")
	f.StringVar(&opts.language, "language", "", "spoken language hint")
	f.StringSliceVar(&opts.hotwords, "hotword", nil, "vocabulary hint, repeatable")
	f.StringSliceVar(&opts.artifactTypes, "artifact", nil, "artifact types to generate: minutes, action_items")
	f.StringVar(&opts.instructions, "instructions", "", "extra generation instructions")
	f.BoolVar(&opts.skipSpeakers, "skip-speaker-identification", false, "leave speaker labels unresolved")
	return cmd
}

// descriptor builds and validates the descriptor to submit.
func (o *enqueueOptions) descriptor(stdin io.Reader) (pipeline.JobDescriptor, error) {
	var d pipeline.JobDescriptor
	if o.file != "" {
		data, err := o.read(stdin)
		if err != nil {
			return d, err
		}
		if err := json.Unmarshal(data, &d); err != nil {
			return d, fmt.Errorf("parse %s: %w", o.file, err)
		}
	} else {
		d = pipeline.JobDescriptor{
			JobID:                     o.jobID,
			TenantID:                  o.tenantID,
			OwnerID:                   o.ownerID,
			Sources:                   o.sources,
			Order:                     o.order,
			Language:                  o.language,
			Hotwords:                  o.hotwords,
			Instructions:              o.instructions,
			SkipSpeakerIdentification: o.skipSpeakers,
		}
		for _, t := range o.artifactTypes {
			d.ArtifactTypes = append(d.ArtifactTypes, llm.ArtifactType(t))
		}
	}

	if d.JobID == "" {
		d.JobID = uuid.NewString()
	}
	d.ApplyDefaults()
	return d, d.Validate()
}

func (o *enqueueOptions) read(stdin io.Reader) ([]byte, error) {
	if o.file == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(o.file)
}
