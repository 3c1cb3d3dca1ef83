// Package metrics exports Prometheus counters and latency histograms per turn.
package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/extensible"
	"github.com/aretw0/turnstile/pkg/registry"
	"github.com/aretw0/turnstile/pkg/stage"
)

// PluginName is the name the metrics plugin installs under.
const PluginName = "metrics"

// RouteUnhandled labels routes that have no registered handler.
const RouteUnhandled = "unhandled"

// Turn outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Plugin counts turns at response.flush and fail.
// Unclaimed and ambiguous turns never reach the fail stage and are not counted.
type Plugin struct {
	registerer prometheus.Registerer
	routes     *registry.Registry

	ownsTurns, ownsDuration bool

	turns    *prometheus.CounterVec
	duration *prometheus.HistogramVec

	remove stage.RemoveFunc
}

// Option configures the Plugin.
type Option func(*Plugin)

// WithRegisterer registers collectors on r instead of the default registry.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(p *Plugin) {
		p.registerer = r
	}
}

// WithRoutes labels turns with their route only when r has a handler for it.
// Without it every non-empty route is labelled RouteUnhandled, so clients cannot
// grow the series set by posting arbitrary intents.
func WithRoutes(r *registry.Registry) Option {
	return func(p *Plugin) {
		p.routes = r
	}
}

// NewPlugin creates the metrics plugin. Collectors are registered on Install.
func NewPlugin(opts ...Option) *Plugin {
	p := &Plugin{
		registerer: prometheus.DefaultRegisterer,
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnstile_turns_total",
				Help: "Total number of handled turns",
			},
			[]string{"platform", "route", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "turnstile_turn_duration_seconds",
				Help:    "Duration of turns from request to flush",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"platform", "outcome"},
		),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Plugin) Name() string { return PluginName }

func (p *Plugin) Install(_ context.Context, parent *extensible.Node) error {
	if err := p.register(); err != nil {
		return err
	}

	remove, err := parent.Bind(
		extensible.On(domain.StageFlush, p.observe(OutcomeOK)),
		extensible.On(domain.StageFail, p.observe(OutcomeError)),
	)
	if err != nil {
		p.unregister()
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
	p.unregister()
	return nil
}

// register adopts collectors another plugin instance already registered under the same names.
// Adopted collectors stay registered when this instance uninstalls.
func (p *Plugin) register() error {
	p.ownsTurns, p.ownsDuration = true, true
	if err := p.registerer.Register(p.turns); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			p.ownsTurns = false
			return err
		}
		p.turns = already.ExistingCollector.(*prometheus.CounterVec)
		p.ownsTurns = false
	}
	if err := p.registerer.Register(p.duration); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			p.ownsDuration = false
			p.unregister()
			return err
		}
		p.duration = already.ExistingCollector.(*prometheus.HistogramVec)
		p.ownsDuration = false
	}
	return nil
}

func (p *Plugin) unregister() {
	if p.ownsTurns {
		p.registerer.Unregister(p.turns)
	}
	if p.ownsDuration {
		p.registerer.Unregister(p.duration)
	}
	p.ownsTurns, p.ownsDuration = false, false
}

func (p *Plugin) routeLabel(route string) string {
	if route == "" {
		return ""
	}
	if p.routes != nil {
		if _, ok := p.routes.Lookup(route); ok {
			return route
		}
	}
	return RouteUnhandled
}

func (p *Plugin) observe(outcome string) stage.Handler {
	return func(_ context.Context, turn *domain.Turn, _ ...any) error {
		p.turns.WithLabelValues(turn.Platform, p.routeLabel(turn.Route), outcome).Inc()
		p.duration.WithLabelValues(turn.Platform, outcome).Observe(turn.Elapsed().Seconds())
		return nil
	}
}
