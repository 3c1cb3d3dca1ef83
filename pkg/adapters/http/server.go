package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aretw0/turnstile/internal/logging"
	"github.com/aretw0/turnstile/pkg/ports"
)

// DefaultMaxBodyBytes bounds webhook payloads (1 MiB).
const DefaultMaxBodyBytes int64 = 1 << 20

// HealthFunc reports whether a dependency is healthy.
type HealthFunc func(ctx context.Context) error

type options struct {
	logger      *slog.Logger
	maxBody     int64
	middlewares []func(http.Handler) http.Handler
	checks      map[string]HealthFunc
	version     string
	cors        bool
}

// Option configures the handler.
type Option func(*options)

// WithLogger sets the logger for transport events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMaxBodyBytes bounds webhook request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBody = n
		}
	}
}

// WithMiddleware appends router middleware (e.g. tracing instrumentation).
func WithMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(o *options) {
		o.middlewares = append(o.middlewares, mw...)
	}
}

// WithHealthCheck adds a named dependency check to GET /health.
func WithHealthCheck(name string, fn HealthFunc) Option {
	return func(o *options) {
		o.checks[name] = fn
	}
}

// WithVersion sets the version reported by GET /health.
func WithVersion(v string) Option {
	return func(o *options) {
		o.version = v
	}
}

// WithCORS allows cross-origin browser clients.
func WithCORS() Option {
	return func(o *options) {
		o.cors = true
	}
}

// NewHandler exposes the engine over HTTP:
//
//	POST /webhook  one turn per request
//	GET  /health   liveness plus dependency checks
func NewHandler(engine ports.Engine, opts ...Option) http.Handler {
	o := &options{
		logger:  logging.NewNop(),
		maxBody: DefaultMaxBodyBytes,
		checks:  make(map[string]HealthFunc),
		version: "dev",
	}
	for _, opt := range opts {
		opt(o)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if o.cors {
		r.Use(enableCORS)
	}
	for _, mw := range o.middlewares {
		r.Use(mw)
	}

	r.Post("/webhook", func(w http.ResponseWriter, r *http.Request) {
		host := NewHost(w, r, o.maxBody, o.logger)
		turn, err := engine.Handle(r.Context(), host)
		if err != nil {
			attrs := []any{"request_id", middleware.GetReqID(r.Context()), "err", err}
			if turn != nil {
				attrs = append(attrs, "turn_id", turn.ID, "platform", turn.Platform)
			}
			o.logger.Warn("Webhook turn failed", attrs...)
		}
		if !host.Written() {
			// SetResponse itself failed; nothing reached the client yet
			host.Fail(r.Context(), err)
		}
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		resp := map[string]any{"status": "ok", "version": o.version}
		failed := map[string]string{}
		for name, check := range o.checks {
			if err := check(r.Context()); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			status = http.StatusServiceUnavailable
			resp["status"] = "degraded"
			resp["checks"] = failed
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			o.logger.Warn("Failed to encode health reply", "err", err)
		}
	})

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
