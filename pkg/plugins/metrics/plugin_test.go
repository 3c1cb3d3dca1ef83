package metrics_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/turnstile"
	"github.com/aretw0/turnstile/internal/testutils"
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/plugins/metrics"
)

func TestPlugin_CountsOutcomes(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()

	app := turnstile.New()
	p, _ := testutils.NewPlatform(t, "test")
	require.NoError(t, app.Use(ctx, p, metrics.NewPlugin(metrics.WithRegisterer(reg), metrics.WithRoutes(app.Intents()))))

	app.Intent("Hello", func(_ context.Context, turn *domain.Turn) error {
		turn.Tell("hi")
		return nil
	})
	app.Intent("Boom", func(context.Context, *domain.Turn) error {
		return errors.New("boom")
	})

	for range 3 {
		_, err := app.Handle(ctx, testutils.NewHost(map[string]any{"platform": "test", "intent": "Hello"}))
		require.NoError(t, err)
	}
	_, err := app.Handle(ctx, testutils.NewHost(map[string]any{"platform": "test", "intent": "Boom"}))
	require.Error(t, err)
	_, err = app.Handle(ctx, testutils.NewHost(map[string]any{"platform": "nobody"}))
	require.ErrorIs(t, err, domain.ErrUnclaimed)

	series, err := testutil.GatherAndCount(reg, "turnstile_turns_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series, "one series per platform/route/outcome; the unclaimed turn is not counted")

	expected := `
# HELP turnstile_turns_total Total number of handled turns
# TYPE turnstile_turns_total counter
turnstile_turns_total{outcome="error",platform="test",route="Boom"} 1
turnstile_turns_total{outcome="ok",platform="test",route="Hello"} 3
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "turnstile_turns_total"))

	histograms, err := testutil.GatherAndCount(reg, "turnstile_turn_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, histograms)
}

func TestPlugin_UnknownRoutesShareOneSeries(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()

	app := turnstile.New()
	p, _ := testutils.NewPlatform(t, "test")
	require.NoError(t, app.Use(ctx, p, metrics.NewPlugin(metrics.WithRegisterer(reg), metrics.WithRoutes(app.Intents()))))
	app.Intent("Hello", func(_ context.Context, turn *domain.Turn) error {
		turn.Tell("hi")
		return nil
	})

	for i := range 50 {
		intent := fmt.Sprintf("Random%d", i)
		_, err := app.Handle(ctx, testutils.NewHost(map[string]any{"platform": "test", "intent": intent}))
		require.NoError(t, err)
	}
	_, err := app.Handle(ctx, testutils.NewHost(map[string]any{"platform": "test", "intent": "Hello"}))
	require.NoError(t, err)

	series, err := testutil.GatherAndCount(reg, "turnstile_turns_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)

	expected := `
# HELP turnstile_turns_total Total number of handled turns
# TYPE turnstile_turns_total counter
turnstile_turns_total{outcome="ok",platform="test",route="Hello"} 1
turnstile_turns_total{outcome="ok",platform="test",route="unhandled"} 50
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "turnstile_turns_total"))
}

func TestPlugin_UninstallKeepsAdoptedCollectors(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()

	owner := turnstile.New()
	p, _ := testutils.NewPlatform(t, "test")
	require.NoError(t, owner.Use(ctx, p, metrics.NewPlugin(metrics.WithRegisterer(reg))))

	other := turnstile.New()
	require.NoError(t, other.Use(ctx, metrics.NewPlugin(metrics.WithRegisterer(reg))))
	require.NoError(t, other.Remove(ctx, metrics.PluginName))

	_, err := owner.Handle(ctx, testutils.NewHost(map[string]any{"platform": "test"}))
	require.NoError(t, err)

	series, err := testutil.GatherAndCount(reg, "turnstile_turns_total")
	require.NoError(t, err)
	assert.Equal(t, 1, series, "the owner's collectors survive the adopter's uninstall")
	histograms, err := testutil.GatherAndCount(reg, "turnstile_turn_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, histograms)

	require.NoError(t, owner.Remove(ctx, metrics.PluginName))
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Empty(t, families)
}

func TestPlugin_UninstallUnregisters(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	app := turnstile.New()
	plugin := metrics.NewPlugin(metrics.WithRegisterer(reg))

	require.NoError(t, app.Use(ctx, plugin))
	require.NoError(t, app.Remove(ctx, metrics.PluginName))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Empty(t, families)

	require.NoError(t, app.Use(ctx, plugin), "reinstall registers again")
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	app := turnstile.New()
	p, _ := testutils.NewPlatform(t, "test")
	require.NoError(t, app.Use(context.Background(), p, metrics.NewPlugin(metrics.WithRegisterer(reg))))
	_, err := app.Handle(context.Background(), testutils.NewHost(map[string]any{"platform": "test"}))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `turnstile_turns_total{outcome="ok",platform="test",route=""} 1`)
}
