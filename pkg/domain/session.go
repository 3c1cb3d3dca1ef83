package domain

import "time"

// Output is one queued utterance, rendered by the claiming platform's converter.
type Output struct {
	Speech   string `json:"speech,omitempty"`
	Reprompt string `json:"reprompt,omitempty"`
	End      bool   `json:"end,omitempty"`
}

// Session holds session-scoped data for a conversation.
type Session struct {
	ID        string         `json:"id"`
	New       bool           `json:"new"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewSession creates a clean session.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		New:       true,
		Data:      make(map[string]any),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// User holds user-scoped data that outlives a single session.
type User struct {
	ID        string         `json:"id"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewUser creates a clean user holder.
func NewUser(id string) *User {
	now := time.Now()
	return &User{
		ID:        id,
		Data:      make(map[string]any),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
