package extensible

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/turnstile/internal/logging"
	"github.com/aretw0/turnstile/pkg/config"
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/stage"
)

// Plugin is anything that can be installed into a Node.
// Install runs synchronously with the hosting node as argument.
type Plugin interface {
	Name() string
	Install(ctx context.Context, parent *Node) error
}

// Uninstaller is implemented by plugins that need to undo their installation.
type Uninstaller interface {
	Uninstall(ctx context.Context, parent *Node) error
}

// Node is a tree node owning configuration, an insertion-ordered plugin registry
// and its own scoped Stage Registry.
type Node struct {
	name   string
	stages *stage.Registry
	logger *slog.Logger

	mu      sync.RWMutex
	config  map[string]any
	plugins map[string]Plugin
	pending map[string]struct{}
	order   []string
}

// Option configures a Node.
type Option func(*Node)

// WithConfig overlays the given options onto the node configuration.
func WithConfig(cfg map[string]any) Option {
	return func(n *Node) {
		n.config = config.Overlay(n.config, cfg)
	}
}

// WithLogger configures a logger for the Node.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// New creates a node whose Stage Registry is fixed to the given stages.
func New(name string, stages []domain.Stage, opts ...Option) *Node {
	n := &Node{
		name:    name,
		stages:  stage.New(stages...),
		logger:  logging.NewNop(),
		config:  make(map[string]any),
		plugins: make(map[string]Plugin),
		pending: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Name returns the node name.
func (n *Node) Name() string {
	return n.name
}

// Stages returns the node's own Stage Registry.
func (n *Node) Stages() *stage.Registry {
	return n.stages
}

// Logger returns the node logger.
func (n *Node) Logger() *slog.Logger {
	return n.logger
}

// On is shorthand for registering a handler on the node's own registry.
func (n *Node) On(s domain.Stage, h stage.Handler) (stage.RemoveFunc, error) {
	return n.stages.Use(s, h)
}

// Dispatch runs a stage of the node's own registry.
func (n *Node) Dispatch(ctx context.Context, s domain.Stage, turn *domain.Turn, args ...any) error {
	return n.stages.Dispatch(ctx, s, turn, args...)
}

// Use installs plugins in order. A name that is already installed is rejected
// with domain.ErrPluginConflict; a failed Install leaves nothing recorded.
func (n *Node) Use(ctx context.Context, plugins ...Plugin) error {
	for _, p := range plugins {
		if err := n.install(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) install(ctx context.Context, p Plugin) error {
	name := p.Name()
	if name == "" {
		return fmt.Errorf("%w: plugin with empty name on %s", domain.ErrConfiguration, n.name)
	}

	// The name stays reserved while Install runs so a concurrent Use of the same
	// name fails before installing anything
	n.mu.Lock()
	_, installed := n.plugins[name]
	_, reserved := n.pending[name]
	if installed || reserved {
		n.mu.Unlock()
		return fmt.Errorf("%w: %s on %s", domain.ErrPluginConflict, name, n.name)
	}
	n.pending[name] = struct{}{}
	n.mu.Unlock()

	// Install may recurse into this node (e.g. Plugins()), so no lock is held here
	if err := p.Install(ctx, n); err != nil {
		n.mu.Lock()
		delete(n.pending, name)
		n.mu.Unlock()
		return fmt.Errorf("failed to install plugin %s on %s: %w", name, n.name, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.pending, name)
	n.plugins[name] = p
	n.order = append(n.order, name)

	n.logger.Debug("Plugin installed", "node", n.name, "plugin", name)
	return nil
}

// Remove uninstalls a plugin by name. Unknown names fail with domain.ErrPluginNotFound.
func (n *Node) Remove(ctx context.Context, name string) error {
	n.mu.RLock()
	p, ok := n.plugins[name]
	n.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s on %s", domain.ErrPluginNotFound, name, n.name)
	}

	if u, ok := p.(Uninstaller); ok {
		if err := u.Uninstall(ctx, n); err != nil {
			return fmt.Errorf("failed to uninstall plugin %s from %s: %w", name, n.name, err)
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.plugins, name)
	for i, v := range n.order {
		if v == name {
			n.order = append(n.order[:i:i], n.order[i+1:]...)
			break
		}
	}

	n.logger.Debug("Plugin removed", "node", n.name, "plugin", name)
	return nil
}

// Plugin looks up an installed plugin by name.
func (n *Node) Plugin(name string) (Plugin, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	p, ok := n.plugins[name]
	return p, ok
}

// Plugins returns installed plugins in insertion order.
func (n *Node) Plugins() []Plugin {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Plugin, 0, len(n.order))
	for _, name := range n.order {
		out = append(out, n.plugins[name])
	}
	return out
}

// Config returns a copy of the node configuration.
func (n *Node) Config() map[string]any {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return config.Overlay(n.config)
}

// Configure overlays options onto the node configuration (later wins per key).
func (n *Node) Configure(cfg map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.config = config.Overlay(n.config, cfg)
}

// Decode maps the node configuration onto a typed struct.
func (n *Node) Decode(target any) error {
	return config.Decode(n.Config(), target)
}

// Close uninstalls every plugin in reverse insertion order.
// It keeps going on failure and returns the first error.
func (n *Node) Close(ctx context.Context) error {
	names := make([]string, 0)
	n.mu.RLock()
	names = append(names, n.order...)
	n.mu.RUnlock()

	var first error
	for i := len(names) - 1; i >= 0; i-- {
		if err := n.Remove(ctx, names[i]); err != nil && first == nil {
			first = err
		}
	}
	return first
}
