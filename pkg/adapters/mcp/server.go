package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/turnstile/internal/logging"
	"github.com/aretw0/turnstile/pkg/platforms/core"
	"github.com/aretw0/turnstile/pkg/ports"
)

// SessionsURI lists stored session IDs.
const SessionsURI = "turnstile://sessions"

// TurnResult is the structured output of the handle_turn tool.
type TurnResult struct {
	Response any    `json:"response,omitempty" jsonschema_description:"The finalized platform response"`
	TurnID   string `json:"turn_id" jsonschema_description:"Correlation ID of the turn"`
	Platform string `json:"platform,omitempty" jsonschema_description:"Identity of the platform that claimed the request"`
	Route    string `json:"route,omitempty" jsonschema_description:"Resolved dialogue route"`
	Error    string `json:"error,omitempty" jsonschema_description:"Failure reason when no response was produced"`
}

// Server exposes the engine as an MCP server.
type Server struct {
	engine    ports.Engine
	sessions  ports.SessionStore
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithSessionStore publishes stored session IDs as a resource.
func WithSessionStore(store ports.SessionStore) Option {
	return func(s *Server) {
		s.sessions = store
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine ports.Engine, version string, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("turnstile-mcp", version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	if s.sessions != nil {
		s.registerResources()
	}
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	tool := mcp.NewTool("handle_turn",
		mcp.WithDescription("Run one conversational turn. The payload is the JSON request a platform would receive."),
		mcp.WithString("payload", mcp.Required(), mcp.Description("JSON object, e.g. {\"platform\":\"core\",\"body\":{\"text\":\"hi\"}}")),
		mcp.WithOutputSchema[TurnResult](),
	)
	s.mcpServer.AddTool(tool, mcp.NewStructuredToolHandler(s.handleTurn))
}

func (s *Server) handleTurn(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (TurnResult, error) {
	raw, _ := args["payload"].(string)
	if !utf8.ValidString(raw) {
		return TurnResult{}, fmt.Errorf("payload rejected: %w", core.ErrInvalidUTF8)
	}
	payload := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return TurnResult{}, fmt.Errorf("payload is not a JSON object: %w", err)
	}

	host := &turnHost{payload: payload, headers: map[string][]string{}}
	turn, err := s.engine.Handle(ctx, host)

	result := TurnResult{Response: host.response}
	if turn != nil {
		result.TurnID = turn.ID
		result.Platform = turn.Platform
		result.Route = turn.Route
	}
	if host.failure != nil {
		err = host.failure
	}
	if !host.answered && err != nil {
		s.logger.Warn("MCP turn failed", "turn_id", result.TurnID, "err", err)
		result.Error = err.Error()
	}
	return result, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(SessionsURI, "Stored Sessions",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.sessions.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}
		if ids == nil {
			ids = []string{}
		}
		jsonBytes, _ := json.Marshal(ids)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      SessionsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
