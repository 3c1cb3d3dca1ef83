package session

import (
	"context"
	"fmt"

	"github.com/aretw0/turnstile/pkg/config"
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/extensible"
	"github.com/aretw0/turnstile/pkg/stage"
)

// PluginName is the name the session plugin installs under.
const PluginName = "session"

// IDFunc resolves the session ID of a turn. An empty ID makes the turn stateless.
type IDFunc func(turn *domain.Turn) string

// Plugin persists session data between turns.
//
// At the session stage it loads (or starts) the stored session and overlays the data
// the platform resolved from the request; at response.flush it saves the session, or
// deletes it when the turn's output ends the conversation. Install it after the
// platforms so their $session stage has populated turn.Session first.
type Plugin struct {
	manager *Manager
	idFunc  IDFunc

	removers []stage.RemoveFunc
}

// PluginOption configures the Plugin.
type PluginOption func(*Plugin)

// WithIDFunc overrides how session IDs are resolved (default: turn.Session.ID).
func WithIDFunc(fn IDFunc) PluginOption {
	return func(p *Plugin) {
		p.idFunc = fn
	}
}

// NewPlugin creates a session persistence plugin backed by the manager.
func NewPlugin(manager *Manager, opts ...PluginOption) *Plugin {
	p := &Plugin{manager: manager, idFunc: sessionID}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func sessionID(turn *domain.Turn) string {
	if turn.Session == nil {
		return ""
	}
	return turn.Session.ID
}

func (p *Plugin) Name() string { return PluginName }

func (p *Plugin) Install(_ context.Context, parent *extensible.Node) error {
	load, err := parent.On(domain.StageSession, p.load)
	if err != nil {
		return err
	}
	save, err := parent.On(domain.StageFlush, p.save)
	if err != nil {
		load()
		return err
	}
	p.removers = []stage.RemoveFunc{load, save}
	return nil
}

func (p *Plugin) Uninstall(_ context.Context, _ *extensible.Node) error {
	for _, remove := range p.removers {
		remove()
	}
	p.removers = nil
	return nil
}

func (p *Plugin) load(ctx context.Context, turn *domain.Turn, _ ...any) error {
	id := p.idFunc(turn)
	if id == "" {
		return nil
	}

	stored, err := p.manager.LoadOrStart(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", id, err)
	}
	if turn.Session != nil {
		stored.Data = config.Overlay(stored.Data, turn.Session.Data)
	}
	turn.Session = stored
	return nil
}

func (p *Plugin) save(ctx context.Context, turn *domain.Turn, _ ...any) error {
	id := p.idFunc(turn)
	if id == "" || turn.Session == nil {
		return nil
	}

	if turn.EndsSession() {
		if err := p.manager.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete session %s: %w", id, err)
		}
		return nil
	}

	turn.Session.ID = id
	if err := p.manager.Save(ctx, turn.Session); err != nil {
		return fmt.Errorf("failed to save session %s: %w", id, err)
	}
	return nil
}
