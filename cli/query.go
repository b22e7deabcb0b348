package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/datahub/config"
	"github.com/jonwraymond/datahub/dispatch"
	"github.com/jonwraymond/datahub/query"
)

func (a *App) newQueryCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "query <module> <qid> [name=value...]",
		Short: "Run one query in this process and print the result",
		Example: `  datahub query example/example random_data rows=5 cols=2
  datahub query example/example random_data_date_cached start_date=2024-01-01 end_date=2024-01-31 --output json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			params, err := parseAssignments(args[2:])
			if err != nil {
				return err
			}
			params[query.ParamQueryID] = args[1]
			params[query.ParamOutput] = format
			return a.runQuery(cmd.Context(), path, args[0], params)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "csv", "csv, json, pickle, binary, html or fast_cache")
	return cmd
}

// parseAssignments turns name=value arguments into parameters. A later
// assignment of the same name wins.
func parseAssignments(args []string) (query.Params, error) {
	params := make(query.Params, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid parameter %q: want name=value", arg)
		}
		params[name] = value
	}
	return params, nil
}

func (a *App) runQuery(ctx context.Context, configPath, module string, params query.Params) error {
	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return err
	}
	cfg.Isolation.Mode = config.ModeInProcess

	logger := a.stderrLogger(cfg)
	reg, err := buildRegistry(cfg, logger, nil)
	if err != nil {
		return err
	}
	isolator, err := buildIsolator(cfg, reg, nil, logger)
	if err != nil {
		return err
	}
	d, err := dispatch.New(reg, dispatch.Config{Isolator: isolator, Logger: logger})
	if err != nil {
		return err
	}

	res, err := d.Dispatch(ctx, module, params)
	if err != nil {
		return err
	}
	_, err = a.stdout.Write(res.Body)
	return err
}
