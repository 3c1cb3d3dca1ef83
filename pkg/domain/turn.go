package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RequestType classifies an inbound turn.
type RequestType string

const (
	TypeLaunch    RequestType = "LAUNCH"
	TypeIntent    RequestType = "INTENT"
	TypeText      RequestType = "TEXT"
	TypeEnd       RequestType = "END"
	TypeUnhandled RequestType = "UNHANDLED"
)

// ASR holds the speech recognition result for a turn.
type ASR struct {
	Text       string  `json:"text,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// NLU holds the understanding result for a turn.
type NLU struct {
	Intent     string         `json:"intent,omitempty"`
	Entities   map[string]any `json:"entities,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
}

// Turn is the Request Context: the mutable per-request state threaded by reference
// through every stage of one inbound request.
//
// A Turn belongs to exactly one request. It is not safe for concurrent use, and
// plugins must not retain it once the request completes.
type Turn struct {
	// ID uniquely identifies this turn (for correlation in logs and traces).
	ID        string
	StartedAt time.Time

	// Raw is the inbound payload as handed over by the transport.
	Raw     map[string]any
	Headers map[string][]string

	// Request is the typed request view built by the claiming platform.
	Request any
	Type    RequestType

	ASR    ASR
	NLU    NLU
	Inputs map[string]any

	// Route is the resolved dialogue route (usually the intent name).
	Route string

	Session *Session
	User    *User

	// Data is free-form scratch space for plugins.
	Data map[string]any

	// Output queues utterances produced by dialogue logic.
	Output []Output
	// Responses holds the platform-rendered outbound payloads.
	Responses []any
	// Response is the finalized payload handed to the transport.
	Response any

	// Platform is the identity of the platform that claimed this turn.
	Platform string

	// Err captures the error that moved the turn into the failure path.
	Err error

	capabilities map[string]any
}

// NewTurn creates a fresh Turn for one inbound request.
func NewTurn(raw map[string]any, headers map[string][]string) *Turn {
	if raw == nil {
		raw = make(map[string]any)
	}
	if headers == nil {
		headers = make(map[string][]string)
	}
	return &Turn{
		ID:           uuid.NewString(),
		StartedAt:    time.Now(),
		Raw:          raw,
		Headers:      headers,
		Inputs:       make(map[string]any),
		Data:         make(map[string]any),
		capabilities: make(map[string]any),
	}
}

// SetPlatform assigns the platform identity. It may be set exactly once;
// re-asserting the same identity is a no-op, a different one is ambiguous.
func (t *Turn) SetPlatform(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty platform identity", ErrConfiguration)
	}
	if t.Platform == "" {
		t.Platform = id
		return nil
	}
	if t.Platform == id {
		return nil
	}
	return fmt.Errorf("%w: claimed by %q and %q", ErrAmbiguousDispatch, t.Platform, id)
}

// Claimed reports whether a platform identity has been resolved.
func (t *Turn) Claimed() bool {
	return t.Platform != ""
}

// SetCapability attaches a platform-specific typed reference, keyed by platform identity.
func (t *Turn) SetCapability(id string, v any) {
	if t.capabilities == nil {
		t.capabilities = make(map[string]any)
	}
	t.capabilities[id] = v
}

// Capability returns the reference attached by the given platform, if any.
func (t *Turn) Capability(id string) (any, bool) {
	v, ok := t.capabilities[id]
	return v, ok
}

// CapabilityOf resolves a platform capability with its concrete type.
func CapabilityOf[T any](t *Turn, id string) (T, bool) {
	var zero T
	v, ok := t.Capability(id)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Tell queues a final utterance; the session ends after this turn.
func (t *Turn) Tell(speech string) {
	t.Output = append(t.Output, Output{Speech: speech, End: true})
}

// Ask queues an utterance and keeps the session open for a reply.
func (t *Turn) Ask(speech, reprompt string) {
	t.Output = append(t.Output, Output{Speech: speech, Reprompt: reprompt})
}

// EndsSession reports whether any queued output closes the session.
func (t *Turn) EndsSession() bool {
	for _, o := range t.Output {
		if o.End {
			return true
		}
	}
	return false
}

// Elapsed returns the time spent since the turn started.
func (t *Turn) Elapsed() time.Duration {
	return time.Since(t.StartedAt)
}
