package tracing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/aretw0/turnstile"
	"github.com/aretw0/turnstile/internal/testutils"
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/plugins/tracing"
)

func newApp(t *testing.T) (*turnstile.App, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	app := turnstile.New()
	p, _ := testutils.NewPlatform(t, "test")
	require.NoError(t, app.Use(context.Background(), p, tracing.NewPlugin(tracing.WithTracerProvider(tp))))
	return app, recorder
}

func attr(attrs []attribute.KeyValue, key string) string {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value.AsString()
		}
	}
	return ""
}

func TestPlugin_SpanPerTurn(t *testing.T) {
	app, recorder := newApp(t)
	app.Intent("Hello", func(_ context.Context, turn *domain.Turn) error {
		turn.Ask("hi", "still there?")
		return nil
	})

	turn, err := app.Handle(context.Background(), testutils.NewHost(map[string]any{"platform": "test", "intent": "Hello"}))
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, "turnstile.turn", span.Name())
	assert.Equal(t, codes.Ok, span.Status().Code)
	assert.Equal(t, turn.ID, attr(span.Attributes(), "turnstile.turn_id"))
	assert.Equal(t, "test", attr(span.Attributes(), "turnstile.platform"))
	assert.Equal(t, "Hello", attr(span.Attributes(), "turnstile.route"))

	var events []string
	for _, e := range span.Events() {
		events = append(events, e.Name)
	}
	assert.Len(t, events, len(domain.Pipeline), "every pipeline stage adds an event")
	assert.Contains(t, events, string(domain.StageLogic))

	_, ok := tracing.SpanOf(turn)
	assert.False(t, ok, "span is detached from the turn once ended")
}

func TestPlugin_FailedTurnRecordsError(t *testing.T) {
	app, recorder := newApp(t)
	app.Intent("Boom", func(context.Context, *domain.Turn) error {
		return errors.New("kaboom")
	})

	_, err := app.Handle(context.Background(), testutils.NewHost(map[string]any{"platform": "test", "intent": "Boom"}))
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Status().Description, "kaboom")

	var exception bool
	for _, e := range spans[0].Events() {
		if e.Name == "exception" {
			exception = true
		}
	}
	assert.True(t, exception, "RecordError adds an exception event")
}

func TestContextWithSpan_ParentsHandlerSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	app := turnstile.New()
	p, _ := testutils.NewPlatform(t, "test")
	require.NoError(t, app.Use(context.Background(), p, tracing.NewPlugin(tracing.WithTracerProvider(tp))))
	app.Intent("Lookup", func(ctx context.Context, turn *domain.Turn) error {
		_, child := tp.Tracer("handler").Start(tracing.ContextWithSpan(ctx, turn), "lookup")
		child.End()
		turn.Tell("done")
		return nil
	})

	_, err := app.Handle(context.Background(), testutils.NewHost(map[string]any{"platform": "test", "intent": "Lookup"}))
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	child, parent := spans[0], spans[1]
	assert.Equal(t, "lookup", child.Name())
	assert.Equal(t, "turnstile.turn", parent.Name())
	assert.Equal(t, parent.SpanContext().TraceID(), child.SpanContext().TraceID())
	assert.Equal(t, parent.SpanContext().SpanID(), child.Parent().SpanID())
}

func TestContextWithSpan_NoSpan(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, tracing.ContextWithSpan(ctx, domain.NewTurn(nil, nil)))
	assert.Equal(t, ctx, tracing.ContextWithSpan(ctx, nil))
}
