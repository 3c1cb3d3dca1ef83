package turnstile

import (
	"context"

	"github.com/aretw0/turnstile/pkg/domain"
)

// Reserved routes resolved when no intent is present.
const (
	RouteLaunch    = "LAUNCH"
	RouteEnd       = "END"
	RouteUnhandled = "Unhandled"
)

func (a *App) registerDialogue() {
	// Global stages are fixed at construction, so registration cannot fail
	if _, err := a.On(domain.StageRouter, a.route); err != nil {
		panic(err)
	}
	if _, err := a.On(domain.StageLogic, a.logic); err != nil {
		panic(err)
	}
}

// route resolves turn.Route from the understood intent or the request type.
// Handlers registered later on dialogue.router may override it.
func (a *App) route(_ context.Context, turn *domain.Turn, _ ...any) error {
	if turn.Route != "" {
		return nil
	}
	switch {
	case turn.NLU.Intent != "":
		turn.Route = turn.NLU.Intent
	case turn.Type == domain.TypeLaunch:
		turn.Route = RouteLaunch
	case turn.Type == domain.TypeEnd:
		turn.Route = RouteEnd
	}
	return nil
}

// logic runs the route handler, falling back to RouteUnhandled when one is registered.
func (a *App) logic(ctx context.Context, turn *domain.Turn, _ ...any) error {
	if fn, ok := a.intents.Lookup(turn.Route); ok {
		return fn(ctx, turn)
	}
	if fn, ok := a.intents.Lookup(RouteUnhandled); ok && turn.Route != "" {
		return fn(ctx, turn)
	}
	return nil
}
