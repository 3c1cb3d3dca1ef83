package ports

import (
	"context"

	"github.com/aretw0/turnstile/pkg/domain"
)

// SessionStore defines the interface for persisting session-scoped data between turns.
type SessionStore interface {
	// Save persists the session under its ID.
	Save(ctx context.Context, session *domain.Session) error

	// Load retrieves the session for a given ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Session, error)

	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all stored sessions.
	List(ctx context.Context) ([]string, error)
}

// UserStore defines the interface for persisting user-scoped data across sessions.
type UserStore interface {
	// SaveUser persists the user under its ID.
	SaveUser(ctx context.Context, user *domain.User) error

	// LoadUser retrieves the user for a given ID.
	// Returns domain.ErrUserNotFound if the user does not exist.
	LoadUser(ctx context.Context, userID string) (*domain.User, error)

	// DeleteUser removes the user. Deleting a missing user is not an error.
	DeleteUser(ctx context.Context, userID string) error
}
