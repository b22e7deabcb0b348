package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/datahub/config"
	"github.com/jonwraymond/datahub/dispatch"
	"github.com/jonwraymond/datahub/health"
	"github.com/jonwraymond/datahub/observe"
	"github.com/jonwraymond/datahub/server"
)

type serveOptions struct {
	addr  string
	port  int
	debug bool
}

func (a *App) newServeCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve queries over HTTP",
		Example: `  datahub serve
  datahub serve --port 8080
  datahub serve --config /etc/datahub.yaml --debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			return a.runServe(cmd.Context(), path, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from config, "+config.DefaultAddr+")")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "listen port, keeping the configured host")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "show cache paths in error responses")
	return cmd
}

// applyServeFlags lets command line flags override the configuration file.
func applyServeFlags(cfg *config.Config, opts serveOptions) error {
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	if opts.port != 0 {
		if opts.port < 0 || opts.port > 65535 {
			return fmt.Errorf("%w: port %d out of range", config.ErrInvalidConfig, opts.port)
		}
		host, _, err := net.SplitHostPort(cfg.Server.Addr)
		if err != nil {
			return fmt.Errorf("%w: server.addr: %v", config.ErrInvalidConfig, err)
		}
		cfg.Server.Addr = net.JoinHostPort(host, strconv.Itoa(opts.port))
	}
	if opts.debug {
		cfg.Server.Debug = true
	}
	return nil
}

// stack is everything the serve command starts.
type stack struct {
	handler *server.Server
	obs     observe.Observer
	logger  observe.Logger
}

// buildStack wires the configuration into a ready HTTP handler.
func buildStack(ctx context.Context, cfg *config.Config, configPath string) (*stack, error) {
	cfg.Observe.Version = Version
	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return nil, err
	}
	logger := obs.Logger()

	metrics, err := observe.NewMetrics(obs.Meter())
	if err != nil {
		return nil, errors.Join(err, obs.Shutdown(ctx))
	}
	mw := observe.NewMiddleware(observe.NewTracer(obs.Tracer()), metrics, logger)

	reg, err := buildRegistry(cfg, logger, metrics)
	if err != nil {
		return nil, errors.Join(err, obs.Shutdown(ctx))
	}

	agg := health.NewAggregator(health.AggregatorConfig{})
	agg.Register(health.NewCacheRootChecker(cacheRoots(reg)...))

	var command []string
	if cfg.Isolation.Mode == config.ModeSubprocess {
		command, err = workerCommand(cfg, configPath)
		if err != nil {
			return nil, errors.Join(err, obs.Shutdown(ctx))
		}
		agg.Register(health.NewWorkerChecker(command[0]))
	}
	isolator, err := buildIsolator(cfg, reg, command, logger)
	if err != nil {
		return nil, errors.Join(err, obs.Shutdown(ctx))
	}

	bulkhead := buildBulkhead(cfg)
	if bulkhead != nil {
		agg.Register(health.NewCapacityChecker(bulkhead))
	}

	d, err := dispatch.New(reg, dispatch.Config{
		Isolator:   isolator,
		Bulkhead:   bulkhead,
		Middleware: mw,
		Logger:     logger,
	})
	if err != nil {
		return nil, errors.Join(err, obs.Shutdown(ctx))
	}

	authCfg, authorizer := buildAuth(cfg)
	srv, err := server.New(server.Config{
		Registry:   reg,
		Dispatcher: d,
		Health:     agg,
		Metrics:    obs.MetricsHandler(),
		Auth:       authCfg,
		Authorizer: authorizer,
		Logger:     logger,
		Debug:      cfg.Server.Debug,
	})
	if err != nil {
		return nil, errors.Join(err, obs.Shutdown(ctx))
	}
	return &stack{handler: srv, obs: obs, logger: logger}, nil
}

func (a *App) runServe(ctx context.Context, configPath string, opts serveOptions) (err error) {
	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return err
	}
	if err := applyServeFlags(cfg, opts); err != nil {
		return err
	}

	st, err := buildStack(ctx, cfg, configPath)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		err = errors.Join(err, st.obs.Shutdown(shutdownCtx))
	}()

	st.logger.Info(ctx, "datahub starting",
		observe.F("addr", cfg.Server.Addr),
		observe.F("isolation", cfg.Isolation.Mode),
		observe.F("auth", cfg.Auth.Enabled()),
		observe.F("version", Version))

	return server.Run(ctx, st.handler, server.RunConfig{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Logger:          st.logger,
	})
}
