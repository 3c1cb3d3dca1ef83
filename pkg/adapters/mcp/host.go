package mcp

import (
	"context"
	"sync"
)

// turnHost carries one tool call through the engine.
type turnHost struct {
	payload map[string]any
	headers map[string][]string

	mu       sync.Mutex
	response any
	answered bool
	failure  error
}

func (h *turnHost) RequestObject() (map[string]any, error) {
	return h.payload, nil
}

func (h *turnHost) Headers() map[string][]string {
	return h.headers
}

func (h *turnHost) SetResponse(_ context.Context, payload any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.response = payload
	h.answered = true
	return nil
}

func (h *turnHost) Fail(_ context.Context, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failure = err
}
