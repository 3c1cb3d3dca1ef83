package turnstile

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/turnstile/internal/logging"
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/extensible"
	"github.com/aretw0/turnstile/pkg/ports"
	"github.com/aretw0/turnstile/pkg/registry"
)

// DefaultStackSize is the maximum stack trace captured for a recovered handler panic.
const DefaultStackSize = 4096

// App is the Application Root: the single process-wide node of the plugin tree.
// It fires the global stage sequence once per inbound request.
//
// Plugins and platforms are installed once, before the first request, and are then
// shared by every in-flight turn.
type App struct {
	*extensible.Node

	intents   *registry.Registry
	logger    *slog.Logger
	stackSize int

	setupOnce sync.Once
	setupErr  error
}

var _ ports.Engine = (*App)(nil)

type settings struct {
	name      string
	logger    *slog.Logger
	config    map[string]any
	intents   *registry.Registry
	stackSize int
}

// Option defines a functional option for configuring the App.
type Option func(*settings)

// WithName sets the root node name (default: "app").
func WithName(name string) Option {
	return func(s *settings) {
		s.name = name
	}
}

// WithLogger sets a custom structured logger for the app and its root node.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithConfig overlays options onto the root configuration.
func WithConfig(cfg map[string]any) Option {
	return func(s *settings) {
		s.config = cfg
	}
}

// WithRegistry injects the route handler registry used by the dialogue.logic stage.
func WithRegistry(r *registry.Registry) Option {
	return func(s *settings) {
		s.intents = r
	}
}

// WithStackSize sets the maximum stack trace size captured for handler panics.
func WithStackSize(size int) Option {
	return func(s *settings) {
		s.stackSize = size
	}
}

// New creates the application root with its fixed global stage set.
func New(opts ...Option) *App {
	s := &settings{
		name:      "app",
		logger:    logging.NewNop(),
		stackSize: DefaultStackSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.intents == nil {
		s.intents = registry.NewRegistry()
	}

	a := &App{
		Node: extensible.New(s.name, domain.GlobalStages(),
			extensible.WithConfig(s.config),
			extensible.WithLogger(s.logger),
		),
		intents:   s.intents,
		logger:    s.logger,
		stackSize: s.stackSize,
	}
	a.registerDialogue()
	return a
}

// Intents returns the route handler registry.
func (a *App) Intents() *registry.Registry {
	return a.intents
}

// Intent registers the dialogue logic for a route (usually an intent name).
func (a *App) Intent(route string, fn registry.HandlerFunc) {
	a.intents.Register(route, fn)
}

// Setup dispatches the setup stage exactly once. Handle calls it implicitly;
// calling it explicitly surfaces setup failures before serving traffic.
// The result is shared by every caller, so setup runs detached from the
// first caller's cancellation and deadline; ctx values are kept.
func (a *App) Setup(ctx context.Context) error {
	a.setupOnce.Do(func() {
		a.setupErr = a.Dispatch(context.WithoutCancel(ctx), domain.StageSetup, nil)
		if a.setupErr != nil {
			a.logger.Error("Setup failed", "err", a.setupErr)
		}
	})
	return a.setupErr
}
