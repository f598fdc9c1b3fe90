// Command meetingworker runs the meeting-processing pipeline: it pulls job
// descriptors from the queue, transcribes and summarises them, and serves
// the admin API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kbukum/meetingflow/config"
	"github.com/kbukum/meetingflow/version"
)

type rootOptions struct {
	configFile string
	envFile    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Meeting transcription and minutes worker",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Get().Version,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default: search ./cmd/meetingworker, ./config, .)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", ".env file to load before reading the environment")

	root.AddCommand(
		newRunCmd(opts),
		newEnqueueCmd(opts),
		newMigrateCmd(opts),
		newVersionCmd(),
	)
	return root
}

// load reads the configuration. Defaults and validation are applied by
// bootstrap.NewApp.
func (o *rootOptions) load() (*Config, error) {
	var loaderOpts []config.LoaderOption
	if o.configFile != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(o.configFile))
	}
	if o.envFile != "" {
		loaderOpts = append(loaderOpts, config.WithEnvFile(o.envFile))
	}
	cfg := &Config{}
	if err := config.LoadConfig(serviceName, cfg, loaderOpts...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
		},
	}
}
