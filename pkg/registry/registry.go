package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/turnstile/pkg/domain"
)

// ErrHandlerNotFound is returned when executing a route with no registered handler.
var ErrHandlerNotFound = errors.New("handler not found")

// HandlerFunc implements the dialogue logic for one route (usually an intent).
// It reads the turn and queues output through turn.Tell / turn.Ask.
type HandlerFunc func(ctx context.Context, turn *domain.Turn) error

// Registry manages the available route handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
	}
}

// Register adds a handler to the registry.
// If a handler with the same route exists, it is overwritten.
func (r *Registry) Register(route string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[route] = fn
}

// Lookup returns the handler registered for a route.
func (r *Registry) Lookup(route string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[route]
	return fn, ok
}

// Routes returns the registered routes, sorted.
func (r *Registry) Routes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	routes := make([]string, 0, len(r.handlers))
	for route := range r.handlers {
		routes = append(routes, route)
	}
	sort.Strings(routes)
	return routes
}

// Execute looks up a handler by route and executes it.
// Returns ErrHandlerNotFound if the route has no handler.
func (r *Registry) Execute(ctx context.Context, route string, turn *domain.Turn) error {
	fn, ok := r.Lookup(route)
	if !ok {
		return fmt.Errorf("%w: %s", ErrHandlerNotFound, route)
	}
	return fn(ctx, turn)
}
