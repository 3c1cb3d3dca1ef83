package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/extensible"
	"github.com/aretw0/turnstile/pkg/ports"
	"github.com/aretw0/turnstile/pkg/stage"
)

// PluginName is the name the postgres plugin installs under.
const PluginName = "postgres"

// ErrNotConnected is returned by store calls made before the setup stage ran.
var ErrNotConnected = errors.New("postgres store is not connected")

// Plugin opens the database at the setup stage and closes it on Uninstall.
// It is a store itself: calls are delegated to the connected Store, so it can be handed
// to the session manager or the user plugin before the first request.
type Plugin struct {
	cfg Config

	mu     sync.RWMutex
	store  *Store
	remove stage.RemoveFunc
}

var (
	_ ports.SessionStore = (*Plugin)(nil)
	_ ports.UserStore    = (*Plugin)(nil)
)

// NewPlugin creates a postgres plugin for cfg.
func NewPlugin(cfg Config) *Plugin {
	return &Plugin{cfg: cfg}
}

func (p *Plugin) Name() string { return PluginName }

func (p *Plugin) Install(_ context.Context, parent *extensible.Node) error {
	if p.cfg.DSN == "" {
		return fmt.Errorf("%w: postgres plugin requires a DSN", domain.ErrConfiguration)
	}
	remove, err := parent.On(domain.StageSetup, p.connect)
	if err != nil {
		return err
	}
	p.remove = remove
	return nil
}

func (p *Plugin) Uninstall(_ context.Context, _ *extensible.Node) error {
	if p.remove != nil {
		p.remove()
		p.remove = nil
	}
	return p.Close()
}

func (p *Plugin) connect(ctx context.Context, _ *domain.Turn, _ ...any) error {
	return p.Open(ctx)
}

// Open connects outside the setup stage. It is a no-op once connected.
func (p *Plugin) Open(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.store != nil {
		return nil
	}
	store, err := Open(ctx, p.cfg)
	if err != nil {
		return err
	}
	p.store = store
	return nil
}

func (p *Plugin) connected() (*Store, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.store == nil {
		return nil, ErrNotConnected
	}
	return p.store, nil
}

func (p *Plugin) Save(ctx context.Context, session *domain.Session) error {
	s, err := p.connected()
	if err != nil {
		return err
	}
	return s.Save(ctx, session)
}

func (p *Plugin) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	s, err := p.connected()
	if err != nil {
		return nil, err
	}
	return s.Load(ctx, sessionID)
}

func (p *Plugin) Delete(ctx context.Context, sessionID string) error {
	s, err := p.connected()
	if err != nil {
		return err
	}
	return s.Delete(ctx, sessionID)
}

func (p *Plugin) List(ctx context.Context) ([]string, error) {
	s, err := p.connected()
	if err != nil {
		return nil, err
	}
	return s.List(ctx)
}

func (p *Plugin) SaveUser(ctx context.Context, user *domain.User) error {
	s, err := p.connected()
	if err != nil {
		return err
	}
	return s.SaveUser(ctx, user)
}

func (p *Plugin) LoadUser(ctx context.Context, userID string) (*domain.User, error) {
	s, err := p.connected()
	if err != nil {
		return nil, err
	}
	return s.LoadUser(ctx, userID)
}

func (p *Plugin) DeleteUser(ctx context.Context, userID string) error {
	s, err := p.connected()
	if err != nil {
		return err
	}
	return s.DeleteUser(ctx, userID)
}

// Close closes the pool if it was opened. It is safe to call more than once.
func (p *Plugin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.store == nil {
		return nil
	}
	err := p.store.Close()
	p.store = nil
	return err
}
