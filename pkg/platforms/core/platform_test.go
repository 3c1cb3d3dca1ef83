package core_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/turnstile"
	"github.com/aretw0/turnstile/internal/testutils"
	"github.com/aretw0/turnstile/pkg/adapters/memory"
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/platforms/core"
	"github.com/aretw0/turnstile/pkg/session"
)

func newApp(t *testing.T) *turnstile.App {
	t.Helper()
	app := turnstile.New()
	require.NoError(t, app.Use(context.Background(), core.New(core.Config{MaxInputSize: 64})))
	return app
}

func handle(t *testing.T, app *turnstile.App, payload map[string]any) (*domain.Turn, core.Response) {
	t.Helper()
	host := testutils.NewHost(payload)
	turn, err := app.Handle(context.Background(), host)
	require.NoError(t, err)
	require.Len(t, host.Responses(), 1)
	resp, ok := host.Responses()[0].(core.Response)
	require.True(t, ok, "response is a core.Response")
	return turn, resp
}

func TestClaims(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want bool
	}{
		{"explicit", map[string]any{"platform": "core"}, true},
		{"body text", map[string]any{"body": map[string]any{"text": "hi"}}, true},
		{"other platform with text", map[string]any{"platform": "alexa", "body": map[string]any{"text": "hi"}}, false},
		{"body without text", map[string]any{"body": map[string]any{"audio": "x"}}, false},
		{"empty", map[string]any{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, core.Claims(tt.raw))
		})
	}
}

func TestPlatform_IntentRoundTrip(t *testing.T) {
	app := newApp(t)
	app.Intent("Greet", func(_ context.Context, turn *domain.Turn) error {
		c, ok := core.From(turn)
		require.True(t, ok)
		turn.Ask("Hi "+turn.Inputs["name"].(string)+".", "Anything else?")
		turn.Ask("Version "+c.Request.Version+".", "")
		return nil
	})

	turn, resp := handle(t, app, map[string]any{
		"platform": "core",
		"nlu":      map[string]any{"intent": "Greet", "inputs": map[string]any{"name": "Ada"}},
		"session":  map[string]any{"id": "s-1", "data": map[string]any{"step": 1}},
		"user":     map[string]any{"id": "u-1"},
	})

	assert.Equal(t, core.ID, turn.Platform)
	assert.Equal(t, domain.TypeIntent, turn.Type)
	assert.Equal(t, "Greet", turn.Route)
	assert.Equal(t, "u-1", turn.User.ID)

	assert.Equal(t, core.Version, resp.Version)
	assert.Equal(t, "Hi Ada. Version 1.0.", resp.Response.Output.Speech)
	assert.Equal(t, "Anything else?", resp.Response.Output.Reprompt)
	assert.False(t, resp.Response.ShouldEndSession)
	assert.Equal(t, 1, resp.SessionData["step"])
}

func TestPlatform_TypeClassification(t *testing.T) {
	app := newApp(t)

	tests := []struct {
		name    string
		payload map[string]any
		want    domain.RequestType
	}{
		{"launch by default", map[string]any{"platform": "core"}, domain.TypeLaunch},
		{"text body", map[string]any{"body": map[string]any{"text": "hello"}}, domain.TypeText},
		{"explicit end", map[string]any{"platform": "core", "type": "end"}, domain.TypeEnd},
		{"unknown type", map[string]any{"platform": "core", "type": "SWIPE"}, domain.TypeUnhandled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turn, _ := handle(t, app, tt.payload)
			assert.Equal(t, tt.want, turn.Type)
		})
	}
}

func TestPlatform_TellEndsSession(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	app := newApp(t)
	require.NoError(t, app.Use(ctx, session.NewPlugin(session.NewManager(store))))

	app.Intent(turnstile.RouteLaunch, func(_ context.Context, turn *domain.Turn) error {
		turn.Session.Data["seen"] = true
		turn.Ask("Welcome.", "")
		return nil
	})
	app.Intent("Stop", func(_ context.Context, turn *domain.Turn) error {
		turn.Tell("Bye.")
		return nil
	})

	_, resp := handle(t, app, map[string]any{"platform": "core", "session": map[string]any{"id": "s-9", "new": true}})
	assert.Equal(t, true, resp.SessionData["seen"])

	_, err := store.Load(ctx, "s-9")
	require.NoError(t, err)

	_, resp = handle(t, app, map[string]any{"platform": "core", "nlu": map[string]any{"intent": "Stop"}, "session": map[string]any{"id": "s-9"}})
	assert.True(t, resp.Response.ShouldEndSession)
	assert.Nil(t, resp.SessionData)

	_, err = store.Load(ctx, "s-9")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestPlatform_SanitizesText(t *testing.T) {
	app := newApp(t)

	turn, _ := handle(t, app, map[string]any{"body": map[string]any{"text": "<i>hello</i>\x1b"}})
	assert.Equal(t, "hello", turn.ASR.Text)

	host := testutils.NewHost(map[string]any{"body": map[string]any{"text": strings.Repeat("a", 65)}})
	_, err := app.Handle(context.Background(), host)
	assert.ErrorIs(t, err, core.ErrInputTooLarge)
	require.Len(t, host.Failures(), 1)
}

func TestPlatform_EmptyOutput(t *testing.T) {
	_, resp := handle(t, newApp(t), map[string]any{"platform": "core"})
	assert.Equal(t, "", resp.Response.Output.Speech)
	assert.Equal(t, core.Version, resp.Version)
}
