package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/jonwraymond/datahub/auth"
	"github.com/jonwraymond/datahub/config"
	"github.com/jonwraymond/datahub/dispatch"
	"github.com/jonwraymond/datahub/observe"
	"github.com/jonwraymond/datahub/providers/example"
	"github.com/jonwraymond/datahub/query"
	"github.com/jonwraymond/datahub/resilience"
)

// loadConfig reads path, or returns the defaults when path is empty.
func loadConfig(ctx context.Context, path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(ctx, path)
}

// buildRegistry registers every provider compiled into the binary.
func buildRegistry(cfg *config.Config, logger observe.Logger, metrics observe.Metrics) (*query.Registry, error) {
	reg := query.NewRegistry()
	err := example.Register(reg, example.Options{
		CacheRoot: cfg.Cache.Root,
		Secrets:   cfg.ModuleSecrets(example.ModulePath),
		Logger:    logger,
		Metrics:   metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", example.ModulePath, err)
	}
	return reg, nil
}

// cacheRoots lists the roots the health check probes.
func cacheRoots(reg *query.Registry) []string {
	var roots []string
	for _, m := range reg.Modules() {
		roots = append(roots, m.CacheRoot)
	}
	return roots
}

// workerCommand is the configured worker command, or this executable
// re-invoked as a worker with the same configuration file.
func workerCommand(cfg *config.Config, configPath string) ([]string, error) {
	if len(cfg.Isolation.WorkerCommand) > 0 {
		return cfg.Isolation.WorkerCommand, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate worker executable: %w", err)
	}
	cmd := []string{exe, "worker"}
	if configPath != "" {
		cmd = append(cmd, "--config", configPath)
	}
	return cmd, nil
}

// buildIsolator picks the execution strategy from the isolation mode.
func buildIsolator(cfg *config.Config, reg *query.Registry, command []string, logger observe.Logger) (dispatch.Isolator, error) {
	if cfg.Isolation.Mode == config.ModeInProcess {
		runner, err := dispatch.NewRunner(reg)
		if err != nil {
			return nil, err
		}
		return dispatch.NewInProcess(runner, cfg.Isolation.Timeout), nil
	}
	sub, err := dispatch.NewSubprocess(dispatch.SubprocessConfig{
		Command: command,
		Timeout: cfg.Isolation.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// buildBulkhead returns nil when concurrency is unbounded.
func buildBulkhead(cfg *config.Config) *resilience.Bulkhead {
	if cfg.Isolation.MaxConcurrent <= 0 {
		return nil
	}
	return resilience.NewBulkhead(resilience.BulkheadConfig{
		MaxConcurrent: cfg.Isolation.MaxConcurrent,
		MaxWait:       cfg.Isolation.MaxWait,
	})
}

// buildAuth turns the auth section into the middleware config and the
// module authorizer. Without credentials every caller is anonymous.
func buildAuth(cfg *config.Config) (auth.MiddlewareConfig, auth.Authorizer) {
	mw := auth.MiddlewareConfig{AllowAnonymous: cfg.Server.AllowAnonymous}
	var authorizer auth.Authorizer = auth.AllowAllAuthorizer{}
	if len(cfg.Auth.Grants) > 0 {
		authorizer = auth.NewGrantAuthorizer(cfg.Auth.Grants)
	}
	if !cfg.Auth.Enabled() {
		mw.AllowAnonymous = true
		return mw, authorizer
	}

	var authenticators []auth.Authenticator
	if len(cfg.Auth.Tokens) > 0 {
		store := auth.NewMemoryTokenStore()
		for _, t := range cfg.Auth.Tokens {
			store.Add(t.Token, auth.TokenInfo{
				ID:        t.ID,
				Hash:      t.Hash,
				User:      t.User,
				Roles:     t.Roles,
				ExpiresAt: t.ExpiresAt,
			})
		}
		authenticators = append(authenticators, auth.NewTokenAuthenticator(auth.TokenConfig{}, store))
	}
	if jwtCfg := cfg.Auth.JWT; jwtCfg.Secret != "" {
		authenticators = append(authenticators, auth.NewJWTAuthenticator(auth.JWTConfig{
			Issuer:   jwtCfg.Issuer,
			Audience: jwtCfg.Audience,
			Leeway:   jwtCfg.Leeway,
		}, auth.NewStaticKeyProvider([]byte(jwtCfg.Secret))))
	}
	mw.Authenticator = auth.NewChain(authenticators...)
	return mw, authorizer
}
