// Package logging logs each turn's request and response through slog.
package logging

import (
	"context"
	"log/slog"

	"github.com/aretw0/turnstile/pkg/config"
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/extensible"
	"github.com/aretw0/turnstile/pkg/stage"
)

// PluginName is the name the logging plugin installs under.
const PluginName = "logging"

// Objects that can be attached to the log records.
const (
	ObjectRaw      = "raw"
	ObjectRequest  = "request"
	ObjectType     = "type"
	ObjectNLU      = "nlu"
	ObjectInputs   = "inputs"
	ObjectSession  = "session"
	ObjectUser     = "user"
	ObjectOutput   = "output"
	ObjectResponse = "response"
)

// Config selects what gets logged.
type Config struct {
	RequestLogging         bool     `mapstructure:"requestLogging"`
	ResponseLogging        bool     `mapstructure:"responseLogging"`
	RequestLoggingObjects  []string `mapstructure:"requestLoggingObjects"`
	ResponseLoggingObjects []string `mapstructure:"responseLoggingObjects"`
}

// DefaultConfig logs both directions with the routing-relevant objects.
func DefaultConfig() Config {
	return Config{
		RequestLogging:         true,
		ResponseLogging:        true,
		RequestLoggingObjects:  []string{ObjectType, ObjectNLU, ObjectInputs},
		ResponseLoggingObjects: []string{ObjectOutput},
	}
}

// DecodeConfig decodes raw options on top of DefaultConfig. Object lists are replaced, not merged.
func DecodeConfig(raw map[string]any) (Config, error) {
	d := DefaultConfig()
	defaults := map[string]any{
		"requestLogging":         d.RequestLogging,
		"responseLogging":        d.ResponseLogging,
		"requestLoggingObjects":  d.RequestLoggingObjects,
		"responseLoggingObjects": d.ResponseLoggingObjects,
	}
	var cfg Config
	if err := config.Decode(config.Overlay(defaults, raw), &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Plugin logs at request, response.flush and fail.
type Plugin struct {
	logger *slog.Logger
	cfg    Config
	remove stage.RemoveFunc
}

// NewPlugin creates a logging plugin writing to logger.
func NewPlugin(logger *slog.Logger, cfg Config) *Plugin {
	return &Plugin{logger: logger, cfg: cfg}
}

func (p *Plugin) Name() string { return PluginName }

func (p *Plugin) Install(_ context.Context, parent *extensible.Node) error {
	if p.logger == nil {
		p.logger = parent.Logger()
	}
	remove, err := parent.Bind(
		extensible.On(domain.StageRequest, p.logRequest),
		extensible.On(domain.StageFlush, p.logResponse),
		extensible.On(domain.StageFail, p.logFailure),
	)
	if err != nil {
		return err
	}
	p.remove = remove
	return nil
}

func (p *Plugin) Uninstall(context.Context, *extensible.Node) error {
	if p.remove != nil {
		p.remove()
		p.remove = nil
	}
	return nil
}

func (p *Plugin) logRequest(ctx context.Context, turn *domain.Turn, _ ...any) error {
	if !p.cfg.RequestLogging {
		return nil
	}
	attrs := append(base(turn), objects(turn, p.cfg.RequestLoggingObjects)...)
	p.logger.LogAttrs(ctx, slog.LevelInfo, "Turn request", attrs...)
	return nil
}

func (p *Plugin) logResponse(ctx context.Context, turn *domain.Turn, _ ...any) error {
	if !p.cfg.ResponseLogging {
		return nil
	}
	attrs := append(base(turn), slog.String("route", turn.Route), slog.Duration("duration", turn.Elapsed()))
	attrs = append(attrs, objects(turn, p.cfg.ResponseLoggingObjects)...)
	p.logger.LogAttrs(ctx, slog.LevelInfo, "Turn response", attrs...)
	return nil
}

func (p *Plugin) logFailure(ctx context.Context, turn *domain.Turn, args ...any) error {
	attrs := append(base(turn), slog.String("route", turn.Route), slog.Duration("duration", turn.Elapsed()))
	if len(args) > 0 {
		if err, ok := args[0].(error); ok {
			attrs = append(attrs, slog.Any("err", err))
		}
	}
	p.logger.LogAttrs(ctx, slog.LevelWarn, "Turn failed", attrs...)
	return nil
}

func base(turn *domain.Turn) []slog.Attr {
	return []slog.Attr{
		slog.String("turn_id", turn.ID),
		slog.String("platform", turn.Platform),
	}
}

func objects(turn *domain.Turn, names []string) []slog.Attr {
	var attrs []slog.Attr
	for _, name := range names {
		switch name {
		case ObjectRaw:
			attrs = append(attrs, slog.Any(name, turn.Raw))
		case ObjectRequest:
			attrs = append(attrs, slog.Any(name, turn.Request))
		case ObjectType:
			attrs = append(attrs, slog.String(name, string(turn.Type)))
		case ObjectNLU:
			attrs = append(attrs, slog.Any(name, turn.NLU))
		case ObjectInputs:
			attrs = append(attrs, slog.Any(name, turn.Inputs))
		case ObjectSession:
			if turn.Session != nil {
				attrs = append(attrs, slog.String("session_id", turn.Session.ID), slog.Any(name, turn.Session.Data))
			}
		case ObjectUser:
			if turn.User != nil {
				attrs = append(attrs, slog.String("user_id", turn.User.ID))
			}
		case ObjectOutput:
			attrs = append(attrs, slog.Any(name, turn.Output))
		case ObjectResponse:
			attrs = append(attrs, slog.Any(name, turn.Response))
		}
	}
	return attrs
}

