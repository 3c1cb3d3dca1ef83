package platform

import "github.com/aretw0/turnstile/pkg/domain"

// Hooks are the factory hooks a concrete platform supplies. The engine never
// names a platform's concrete types; it only calls these.
type Hooks struct {
	// Claims is the claim predicate over the raw inbound payload.
	Claims func(raw map[string]any) bool

	// NewRequest returns a pointer to a fresh request view (defaults pre-filled).
	NewRequest func() any

	// NewContext builds the platform capability attached to the turn at $init.
	NewContext func(turn *domain.Turn) any

	// NewUser builds the user holder when no plugin resolved one.
	NewUser func(turn *domain.Turn) *domain.User

	// Converter renders queued outputs into platform payloads.
	Converter OutputConverter

	// Finalize collapses pending payloads into the single response. Defaults to FinalizeLast.
	Finalize func(turn *domain.Turn, responses []any) (any, error)
}

// OutputConverter renders queued outputs into outbound payloads.
type OutputConverter interface {
	Convert(turn *domain.Turn, outputs []domain.Output) ([]any, error)
}

// ConverterFunc adapts a function to OutputConverter.
type ConverterFunc func(turn *domain.Turn, outputs []domain.Output) ([]any, error)

func (f ConverterFunc) Convert(turn *domain.Turn, outputs []domain.Output) ([]any, error) {
	return f(turn, outputs)
}

// FinalizeLast keeps the most recent payload, or nil when there is none.
func FinalizeLast(_ *domain.Turn, responses []any) (any, error) {
	if len(responses) == 0 {
		return nil, nil
	}
	return responses[len(responses)-1], nil
}
