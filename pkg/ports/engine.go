package ports

import (
	"context"

	"github.com/aretw0/turnstile/pkg/domain"
)

// Engine is the interface transports (HTTP, MCP, CLI) drive.
// One call serves exactly one inbound request.
type Engine interface {
	// Handle runs one full turn against the host and returns the completed Turn.
	// The response (or the failure) has already been reported to the host on return.
	Handle(ctx context.Context, host Host) (*domain.Turn, error)
}
