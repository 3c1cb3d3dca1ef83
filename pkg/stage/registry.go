package stage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/turnstile/pkg/domain"
)

// Handler is a callback registered against exactly one stage.
// Extra args are stage-specific (e.g. the captured error on the fail stage).
type Handler func(ctx context.Context, turn *domain.Turn, args ...any) error

// RemoveFunc unregisters the handler it was returned for. Calling it twice is a no-op.
type RemoveFunc func()

type entry struct {
	id uint64
	fn Handler
}

// Registry owns a fixed set of stages and, per stage, an ordered handler list.
type Registry struct {
	mu       sync.RWMutex
	order    []domain.Stage
	handlers map[domain.Stage][]entry
	seq      uint64
}

// New creates a registry whose legal stage set is fixed to the given identifiers.
func New(stages ...domain.Stage) *Registry {
	r := &Registry{
		order:    make([]domain.Stage, 0, len(stages)),
		handlers: make(map[domain.Stage][]entry, len(stages)),
	}
	for _, s := range stages {
		if _, exists := r.handlers[s]; exists {
			continue
		}
		r.order = append(r.order, s)
		r.handlers[s] = nil
	}
	return r
}

// Use registers a handler against a stage. Handlers run in registration order.
func (r *Registry) Use(s domain.Stage, h Handler) (RemoveFunc, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: nil handler for stage %s", domain.ErrConfiguration, s)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list, ok := r.handlers[s]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownStage, s)
	}
	r.seq++
	id := r.seq
	r.handlers[s] = append(list, entry{id: id, fn: h})

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(s, id) })
	}, nil
}

func (r *Registry) remove(s domain.Stage, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.handlers[s]
	for i, e := range list {
		if e.id == id {
			// Copy so that in-flight dispatch snapshots stay intact
			next := make([]entry, 0, len(list)-1)
			next = append(next, list[:i]...)
			r.handlers[s] = append(next, list[i+1:]...)
			return
		}
	}
}

// Has reports whether the stage is part of the legal set.
func (r *Registry) Has(s domain.Stage) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[s]
	return ok
}

// Stages returns the legal stage set in construction order.
func (r *Registry) Stages() []domain.Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Stage, len(r.order))
	copy(out, r.order)
	return out
}

// Handlers returns the number of handlers registered for a stage.
func (r *Registry) Handlers(s domain.Stage) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[s])
}

// Dispatch runs every handler registered for the stage, sequentially and in order.
// It stops at the first error, which is returned wrapped in a *domain.StageError.
// Dispatching a stage with no handlers is a no-op; an unknown stage always fails.
func (r *Registry) Dispatch(ctx context.Context, s domain.Stage, turn *domain.Turn, args ...any) error {
	r.mu.RLock()
	list, ok := r.handlers[s]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownStage, s)
	}

	for _, e := range list {
		if err := e.fn(ctx, turn, args...); err != nil {
			var stageErr *domain.StageError
			if errors.As(err, &stageErr) {
				return err
			}
			return &domain.StageError{Stage: s, Err: err}
		}
	}
	return nil
}
