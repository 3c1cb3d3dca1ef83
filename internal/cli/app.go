// Package cli assembles the application from a configuration file for the turnstile commands.
package cli

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aretw0/turnstile"
	"github.com/aretw0/turnstile/pkg/config"
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/persistence/middleware"
	"github.com/aretw0/turnstile/pkg/platforms/core"
	"github.com/aretw0/turnstile/pkg/plugins/logging"
	"github.com/aretw0/turnstile/pkg/plugins/metrics"
	"github.com/aretw0/turnstile/pkg/plugins/nlu/keyword"
	sentryplugin "github.com/aretw0/turnstile/pkg/plugins/sentry"
	"github.com/aretw0/turnstile/pkg/plugins/tracing"
	"github.com/aretw0/turnstile/pkg/plugins/user"
	"github.com/aretw0/turnstile/pkg/ports"
	"github.com/aretw0/turnstile/pkg/session"
)

// KeywordKey is the plugins entry configuring the keyword NLU plugin on the core platform.
// Plugin names containing dots cannot be used as keys since the loader nests on ".".
const KeywordKey = "keyword"

// SessionOptions is the "session" entry of the plugins section.
type SessionOptions struct {
	// Mask lists regular expressions of data keys masked before sessions are stored.
	Mask []string `mapstructure:"mask"`
	// EncryptionKey is a base64 AES-256 key sealing stored session data.
	EncryptionKey string `mapstructure:"encryptionKey"`
	// FallbackKeys still open sessions sealed with rotated keys.
	FallbackKeys []string `mapstructure:"fallbackKeys"`
}

// Runtime is the assembled application and the resources its commands share.
type Runtime struct {
	App      *turnstile.App
	Sessions *session.Manager
	Store    Store
	Registry *prometheus.Registry
	Logger   *slog.Logger

	closers []func() error
}

// BuildOption configures Build.
type BuildOption func(*buildSettings)

type buildSettings struct {
	traceOutput io.Writer
	intents     map[string]func(context.Context, *domain.Turn) error
}

// WithTraceOutput sets where spans are exported when telemetry.tracing is on.
func WithTraceOutput(w io.Writer) BuildOption {
	return func(s *buildSettings) {
		s.traceOutput = w
	}
}

// WithIntent registers dialogue logic on the built app.
func WithIntent(route string, fn func(context.Context, *domain.Turn) error) BuildOption {
	return func(s *buildSettings) {
		s.intents[route] = fn
	}
}

// Build wires the core platform, the configured store and the plugins into an App.
// Platforms are installed first so the session and user plugins run after their shims.
func Build(ctx context.Context, cfg *config.File, logger *slog.Logger, opts ...BuildOption) (*Runtime, error) {
	s := &buildSettings{traceOutput: io.Discard, intents: map[string]func(context.Context, *domain.Turn) error{}}
	for _, opt := range opts {
		opt(s)
	}

	rt := &Runtime{Logger: logger, Registry: prometheus.NewRegistry()}
	rt.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := rt.build(ctx, cfg, s); err != nil {
		return nil, errors.Join(err, rt.Close())
	}
	return rt, nil
}

func (rt *Runtime) build(ctx context.Context, cfg *config.File, s *buildSettings) error {
	app := turnstile.New(turnstile.WithLogger(rt.Logger), turnstile.WithConfig(cfg.PluginConfig("app")))
	rt.App = app
	for route, fn := range s.intents {
		app.Intent(route, fn)
	}

	b, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	rt.closers = append(rt.closers, b.close)
	rt.Store = b.store
	if b.plugin != nil {
		if err := app.Use(ctx, b.plugin); err != nil {
			return err
		}
	}

	var coreCfg core.Config
	if err := config.Decode(cfg.PluginConfig(core.ID), &coreCfg); err != nil {
		return fmt.Errorf("invalid %s platform config: %w", core.ID, err)
	}
	platform := core.New(coreCfg)
	if raw, ok := cfg.Plugins[KeywordKey]; ok {
		kwCfg, err := keyword.DecodeConfig(raw)
		if err != nil {
			return fmt.Errorf("invalid %s config: %w", keyword.PluginName, err)
		}
		if err := platform.Use(ctx, keyword.NewPlugin(kwCfg)); err != nil {
			return err
		}
	}
	if err := app.Use(ctx, platform); err != nil {
		return err
	}

	sessions, err := sessionStore(b, cfg.PluginConfig(session.PluginName))
	if err != nil {
		return err
	}
	managerOpts := []session.Option{session.WithLogger(rt.Logger)}
	if b.locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(b.locker))
	}
	rt.Sessions = session.NewManager(sessions, managerOpts...)

	logCfg, err := logging.DecodeConfig(cfg.PluginConfig(logging.PluginName))
	if err != nil {
		return fmt.Errorf("invalid %s config: %w", logging.PluginName, err)
	}

	if err := app.Use(ctx, session.NewPlugin(rt.Sessions)); err != nil {
		return err
	}
	if err := app.Use(ctx, user.NewPlugin(b.store)); err != nil {
		return err
	}
	if err := app.Use(ctx, logging.NewPlugin(nil, logCfg)); err != nil {
		return err
	}
	if err := app.Use(ctx, metrics.NewPlugin(metrics.WithRegisterer(rt.Registry), metrics.WithRoutes(app.Intents()))); err != nil {
		return err
	}

	if cfg.Telemetry.Tracing {
		shutdown, err := tracing.InitStdout("turnstile", s.traceOutput, rt.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		rt.closers = append(rt.closers, func() error { return shutdown(context.Background()) })
		if err := app.Use(ctx, tracing.NewPlugin()); err != nil {
			return err
		}
	}

	if cfg.Sentry.DSN != "" {
		if err := app.Use(ctx, sentryplugin.NewPlugin(sentry.CurrentHub())); err != nil {
			return err
		}
	}
	return nil
}

func sessionStore(b *backend, raw map[string]any) (ports.SessionStore, error) {
	var opts SessionOptions
	if err := config.Decode(raw, &opts); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", session.PluginName, err)
	}

	var mws []middleware.Middleware
	if len(opts.Mask) > 0 {
		pii, err := middleware.NewPIIMiddleware(opts.Mask)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	if opts.EncryptionKey != "" {
		encCfg, err := decodeKeys(opts)
		if err != nil {
			return nil, err
		}
		enc, err := middleware.NewEncryptionMiddleware(encCfg)
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return middleware.Chain(b.store, mws...), nil
}

func decodeKeys(opts SessionOptions) (middleware.EncryptionConfig, error) {
	active, err := base64.StdEncoding.DecodeString(opts.EncryptionKey)
	if err != nil {
		return middleware.EncryptionConfig{}, fmt.Errorf("%w: encryptionKey is not base64", domain.ErrConfiguration)
	}
	cfg := middleware.EncryptionConfig{ActiveKey: active}
	for _, k := range opts.FallbackKeys {
		key, err := base64.StdEncoding.DecodeString(k)
		if err != nil {
			return middleware.EncryptionConfig{}, fmt.Errorf("%w: fallback key is not base64", domain.ErrConfiguration)
		}
		cfg.FallbackKeys = append(cfg.FallbackKeys, key)
	}
	return cfg, nil
}

// Close releases the store and flushes exporters, in reverse order of acquisition.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
