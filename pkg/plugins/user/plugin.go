// Package user persists user data across sessions in a ports.UserStore.
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/turnstile/pkg/config"
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/extensible"
	"github.com/aretw0/turnstile/pkg/ports"
	"github.com/aretw0/turnstile/pkg/stage"
)

// PluginName is the name the user plugin installs under.
const PluginName = "user"

// Plugin loads the stored user at the user stage and saves it at response.flush.
//
// The platform's $user stage resolves the user ID first, so install this plugin after
// the platforms. Turns without a user ID are left alone.
type Plugin struct {
	store  ports.UserStore
	remove stage.RemoveFunc
}

// NewPlugin creates a user plugin backed by store.
func NewPlugin(store ports.UserStore) *Plugin {
	return &Plugin{store: store}
}

func (p *Plugin) Name() string { return PluginName }

func (p *Plugin) Install(_ context.Context, parent *extensible.Node) error {
	if p.store == nil {
		return fmt.Errorf("%w: user plugin requires a store", domain.ErrConfiguration)
	}
	remove, err := parent.Bind(
		extensible.On(domain.StageUser, p.load),
		extensible.On(domain.StageFlush, p.save),
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

func (p *Plugin) load(ctx context.Context, turn *domain.Turn, _ ...any) error {
	if turn.User == nil || turn.User.ID == "" {
		return nil
	}

	stored, err := p.store.LoadUser(ctx, turn.User.ID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", turn.User.ID, err)
	}

	// Request-supplied data wins over what was stored
	stored.Data = config.Overlay(stored.Data, turn.User.Data)
	turn.User = stored
	return nil
}

func (p *Plugin) save(ctx context.Context, turn *domain.Turn, _ ...any) error {
	if turn.User == nil || turn.User.ID == "" {
		return nil
	}
	turn.User.UpdatedAt = time.Now()
	if err := p.store.SaveUser(ctx, turn.User); err != nil {
		return fmt.Errorf("failed to save user %s: %w", turn.User.ID, err)
	}
	return nil
}
