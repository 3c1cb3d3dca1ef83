package memory

import (
	"context"
	"sync"

	"github.com/aretw0/turnstile/pkg/config"
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/ports"
)

var (
	_ ports.SessionStore = (*Store)(nil)
	_ ports.UserStore    = (*Store)(nil)
)

// Store implements ports.SessionStore and ports.UserStore in memory.
// Safe for concurrent use.
type Store struct {
	sessions map[string]*domain.Session
	users    map[string]*domain.User
	mu       sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*domain.Session),
		users:    make(map[string]*domain.User),
	}
}

// Save persists the session in memory.
func (s *Store) Save(ctx context.Context, session *domain.Session) error {
	// Deep copy to ensure isolation, similar to serialization
	copied := *session
	copied.Data = config.Overlay(session.Data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = &copied
	return nil
}

// Load retrieves the session from memory.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	// Create a copy on read so caller can't mutate store state directly by pointer
	ret := *session
	ret.Data = config.Overlay(session.Data)
	return &ret, nil
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// List returns stored session IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		sessions = append(sessions, id)
	}
	return sessions, nil
}

// SaveUser persists the user in memory.
func (s *Store) SaveUser(ctx context.Context, user *domain.User) error {
	copied := *user
	copied.Data = config.Overlay(user.Data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = &copied
	return nil
}

// LoadUser retrieves the user from memory.
func (s *Store) LoadUser(ctx context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	ret := *user
	ret.Data = config.Overlay(user.Data)
	return &ret, nil
}

// DeleteUser removes the user.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
	return nil
}
