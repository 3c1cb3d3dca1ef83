package ports

import "context"

// Host is the transport collaborator for one inbound request.
// The engine never parses the wire protocol; it only consumes this interface.
type Host interface {
	// RequestObject returns the decoded inbound payload.
	RequestObject() (map[string]any, error)

	// Headers returns the inbound transport headers (may be empty).
	Headers() map[string][]string

	// SetResponse delivers the finalized payload.
	SetResponse(ctx context.Context, payload any) error

	// Fail reports an unhandled failure, yielding a generic user-visible error.
	Fail(ctx context.Context, err error)
}
