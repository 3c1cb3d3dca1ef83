// Package sentry reports failed turns to Sentry.
package sentry

import (
	"context"
	"errors"

	"github.com/getsentry/sentry-go"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/extensible"
	"github.com/aretw0/turnstile/pkg/stage"
)

// PluginName is the name the sentry plugin installs under.
const PluginName = "sentry"

// Plugin captures the cause of every failed turn as a Sentry exception.
// Panics recovered by the engine carry their stack in the event extras.
type Plugin struct {
	hub    *sentry.Hub
	remove stage.RemoveFunc
}

// NewPlugin reports through hub. A nil hub uses sentry.CurrentHub().
func NewPlugin(hub *sentry.Hub) *Plugin {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &Plugin{hub: hub}
}

func (p *Plugin) Name() string { return PluginName }

func (p *Plugin) Install(_ context.Context, parent *extensible.Node) error {
	remove, err := parent.On(domain.StageFail, p.capture)
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

func (p *Plugin) capture(_ context.Context, turn *domain.Turn, args ...any) error {
	if len(args) == 0 {
		return nil
	}
	cause, ok := args[0].(error)
	if !ok {
		return nil
	}

	// Concurrent turns share p.hub; each capture pushes onto its own clone's scope stack
	hub := p.hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("turn_id", turn.ID)
		scope.SetTag("platform", turn.Platform)
		scope.SetTag("route", turn.Route)

		var se *domain.StageError
		if errors.As(cause, &se) {
			scope.SetTag("stage", string(se.Stage))
		}
		var pe *domain.PanicError
		if errors.As(cause, &pe) {
			scope.SetExtra("stack", string(pe.Stack))
		}
		if turn.Session != nil {
			scope.SetExtra("session_id", turn.Session.ID)
		}
		if turn.User != nil {
			scope.SetUser(sentry.User{ID: turn.User.ID})
		}

		hub.CaptureException(cause)
	})
	return nil
}
