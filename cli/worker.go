package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/datahub/config"
	"github.com/jonwraymond/datahub/dispatch"
	"github.com/jonwraymond/datahub/observe"
)

func (a *App) newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "worker",
		Short:  "Run one query read from stdin (started by serve)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			return a.runWorker(cmd.Context(), path)
		},
	}
}

// stderrLogger logs to stderr, which the parent keeps for diagnostics.
func (a *App) stderrLogger(cfg *config.Config) observe.Logger {
	if !cfg.Observe.Logging.Enabled {
		return observe.NopLogger()
	}
	return observe.NewLoggerWithWriter(cfg.Observe.Logging.Level, a.stderr)
}

func (a *App) runWorker(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return err
	}
	// Query metrics are recorded by the serving process.
	reg, err := buildRegistry(cfg, a.stderrLogger(cfg), observe.NopMetrics())
	if err != nil {
		return err
	}
	runner, err := dispatch.NewRunner(reg)
	if err != nil {
		return err
	}
	if code := dispatch.ServeWorker(ctx, runner, a.stdin, a.stdout, a.stderr); code != dispatch.ExitOK {
		return &ExitError{Code: code}
	}
	return nil
}
