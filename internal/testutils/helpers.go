package testutils

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/platform"
	"github.com/stretchr/testify/require"
)

// Host is an in-memory ports.Host recording what the engine reported.
type Host struct {
	Payload     map[string]any
	Header      map[string][]string
	RequestErr  error
	ResponseErr error

	mu        sync.Mutex
	responses []any
	failures  []error
}

// NewHost creates a host serving the given payload.
func NewHost(payload map[string]any) *Host {
	return &Host{Payload: payload, Header: map[string][]string{}}
}

func (h *Host) RequestObject() (map[string]any, error) {
	if h.RequestErr != nil {
		return nil, h.RequestErr
	}
	return h.Payload, nil
}

func (h *Host) Headers() map[string][]string {
	return h.Header
}

func (h *Host) SetResponse(_ context.Context, payload any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ResponseErr != nil {
		return h.ResponseErr
	}
	h.responses = append(h.responses, payload)
	return nil
}

func (h *Host) Fail(_ context.Context, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures = append(h.failures, err)
}

// Responses returns every payload handed to SetResponse.
func (h *Host) Responses() []any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]any(nil), h.responses...)
}

// Failures returns every error handed to Fail.
func (h *Host) Failures() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.failures...)
}

// Probe records the order of local stage invocations of a test platform.
type Probe struct {
	mu    sync.Mutex
	calls []domain.Stage
}

func (p *Probe) record(s domain.Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, s)
}

// Calls returns the recorded stages in invocation order.
func (p *Probe) Calls() []domain.Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Stage(nil), p.calls...)
}

// Reset forgets every recorded invocation.
func (p *Probe) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}

// Count returns the number of invocations of one stage.
func (p *Probe) Count(s domain.Stage) int {
	n := 0
	for _, c := range p.Calls() {
		if c == s {
			n++
		}
	}
	return n
}

// NewPlatform builds a platform claiming payloads whose "platform" key equals id.
// Every local stage records into the returned Probe, and the converter renders
// speech outputs as strings.
func NewPlatform(t *testing.T, id string) (*platform.Platform, *Probe) {
	t.Helper()
	probe := &Probe{}
	p := platform.New(id, platform.Hooks{
		Claims: func(raw map[string]any) bool { return raw["platform"] == id },
		Converter: platform.ConverterFunc(func(_ *domain.Turn, outs []domain.Output) ([]any, error) {
			rendered := make([]any, 0, len(outs))
			for _, o := range outs {
				rendered = append(rendered, o.Speech)
			}
			return rendered, nil
		}),
	})
	for _, s := range platform.LocalStages() {
		_, err := p.On(s, func(context.Context, *domain.Turn, ...any) error {
			probe.record(s)
			return nil
		})
		require.NoError(t, err)
	}
	// Request carries an intent the way an NLU-enabled platform would deliver it
	_, err := p.On(platform.StageNLU, func(_ context.Context, turn *domain.Turn, _ ...any) error {
		if intent, ok := turn.Raw["intent"].(string); ok {
			turn.NLU.Intent = intent
		}
		return nil
	})
	require.NoError(t, err)
	return p, probe
}
