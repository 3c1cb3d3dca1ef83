package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"unicode/utf8"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/platforms/core"
	"github.com/aretw0/turnstile/pkg/ports"
)

var (
	ErrBodyTooLarge = errors.New("request body too large")
	ErrInvalidJSON  = errors.New("request body is not a JSON object")
)

// ErrorBody is the JSON shape of every error reply.
type ErrorBody struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Host adapts one HTTP exchange to ports.Host. It answers exactly once.
type Host struct {
	w       http.ResponseWriter
	r       *http.Request
	maxBody int64
	logger  *slog.Logger

	mu      sync.Mutex
	written bool
}

var _ ports.Host = (*Host)(nil)

// NewHost wraps a request/response pair. Bodies larger than maxBody bytes are rejected.
func NewHost(w http.ResponseWriter, r *http.Request, maxBody int64, logger *slog.Logger) *Host {
	return &Host{w: w, r: r, maxBody: maxBody, logger: logger}
}

// RequestObject decodes the body as a JSON object.
// Bodies with invalid UTF-8 are rejected before decoding, which would otherwise
// replace the bad bytes with U+FFFD.
func (h *Host) RequestObject() (map[string]any, error) {
	body := http.MaxBytesReader(h.w, h.r.Body, h.maxBody)
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: limit=%d", ErrBodyTooLarge, tooLarge.Limit)
		}
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, core.ErrInvalidUTF8
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if payload == nil {
		return nil, ErrInvalidJSON
	}
	return payload, nil
}

// Headers returns the request headers.
func (h *Host) Headers() map[string][]string {
	return h.r.Header
}

// SetResponse writes payload as a 200 JSON reply.
func (h *Host) SetResponse(_ context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	return h.write(http.StatusOK, data)
}

// Fail writes an error reply whose status is derived from err.
func (h *Host) Fail(_ context.Context, err error) {
	status := StatusOf(err)
	msg := http.StatusText(status)
	if status < http.StatusInternalServerError {
		msg = err.Error()
	}
	data, _ := json.Marshal(ErrorBody{Code: status, Msg: msg})
	if werr := h.write(status, data); werr != nil {
		h.logger.Warn("Failed to write error reply", "status", status, "err", werr)
	}
}

// Written reports whether a reply has been sent.
func (h *Host) Written() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.written
}

func (h *Host) write(status int, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.written {
		return errors.New("response already written")
	}
	h.written = true

	h.w.Header().Set("Content-Type", "application/json")
	h.w.WriteHeader(status)
	_, err := h.w.Write(data)
	return err
}

// StatusOf maps an engine error onto an HTTP status code.
// Server-side errors never leak their message to the client.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, ErrBodyTooLarge), errors.Is(err, core.ErrInputTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrInvalidJSON), errors.Is(err, core.ErrInvalidUTF8):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnclaimed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
