// Package tracing records one OpenTelemetry span per turn, with an event per pipeline stage.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/extensible"
	"github.com/aretw0/turnstile/pkg/stage"
)

// PluginName is the name the tracing plugin installs under.
const PluginName = "tracing"

const (
	instrumentation = "github.com/aretw0/turnstile/pkg/plugins/tracing"
	spanKey         = "tracing.span"
)

// Plugin starts the turn span at platform.init and ends it at response.flush or fail.
type Plugin struct {
	provider trace.TracerProvider
	tracer   trace.Tracer
	remove   stage.RemoveFunc
}

// Option configures the Plugin.
type Option func(*Plugin)

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Plugin) {
		p.provider = tp
	}
}

// NewPlugin creates the tracing plugin.
func NewPlugin(opts ...Option) *Plugin {
	p := &Plugin{}
	for _, opt := range opts {
		opt(p)
	}
	if p.provider == nil {
		p.provider = otel.GetTracerProvider()
	}
	p.tracer = p.provider.Tracer(instrumentation)
	return p
}

func (p *Plugin) Name() string { return PluginName }

func (p *Plugin) Install(_ context.Context, parent *extensible.Node) error {
	bindings := []extensible.Binding{extensible.On(domain.StagePlatformInit, p.start)}
	for _, s := range domain.Pipeline {
		bindings = append(bindings, extensible.On(s, p.event(s)))
	}
	bindings = append(bindings,
		extensible.On(domain.StageFlush, p.end),
		extensible.On(domain.StageFail, p.fail),
	)

	remove, err := parent.Bind(bindings...)
	if err != nil {
		return err
	}
	p.remove = remove
	return nil
}

func (p *Plugin) Uninstall(context.Context, *extensible.Node) error {
	if p.remove != nil {
		p.remove()
		p.remove = nil
	}
	return nil
}

// SpanOf returns the span recording the turn, if one was started.
func SpanOf(turn *domain.Turn) (trace.Span, bool) {
	if turn == nil || turn.Data == nil {
		return nil, false
	}
	span, ok := turn.Data[spanKey].(trace.Span)
	return span, ok
}

// ContextWithSpan returns ctx carrying the turn span, so spans started from it
// become children of the turn. Without a turn span ctx is returned unchanged.
func ContextWithSpan(ctx context.Context, turn *domain.Turn) context.Context {
	span, ok := SpanOf(turn)
	if !ok {
		return ctx
	}
	return trace.ContextWithSpan(ctx, span)
}

// Stage handlers share the Handle context, so the span travels on the turn
// instead. Use ContextWithSpan to parent work under it.
func (p *Plugin) start(ctx context.Context, turn *domain.Turn, _ ...any) error {
	_, span := p.tracer.Start(ctx, "turnstile.turn",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("turnstile.turn_id", turn.ID),
			attribute.String("turnstile.platform", turn.Platform),
		),
	)
	turn.Data[spanKey] = span
	return nil
}

func (p *Plugin) event(s domain.Stage) stage.Handler {
	return func(_ context.Context, turn *domain.Turn, _ ...any) error {
		if span, ok := SpanOf(turn); ok {
			span.AddEvent(string(s))
		}
		return nil
	}
}

func (p *Plugin) end(_ context.Context, turn *domain.Turn, _ ...any) error {
	span, ok := SpanOf(turn)
	if !ok {
		return nil
	}
	annotate(span, turn)
	span.SetStatus(codes.Ok, "")
	span.End()
	delete(turn.Data, spanKey)
	return nil
}

func (p *Plugin) fail(ctx context.Context, turn *domain.Turn, args ...any) error {
	span, ok := SpanOf(turn)
	if !ok {
		// Failed before platform.init: record a span covering just the failure
		_, span = p.tracer.Start(ctx, "turnstile.turn",
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithTimestamp(turn.StartedAt),
			trace.WithAttributes(attribute.String("turnstile.turn_id", turn.ID)),
		)
	}
	annotate(span, turn)
	if len(args) > 0 {
		if err, ok := args[0].(error); ok {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
	delete(turn.Data, spanKey)
	return nil
}

func annotate(span trace.Span, turn *domain.Turn) {
	span.SetAttributes(
		attribute.String("turnstile.route", turn.Route),
		attribute.String("turnstile.type", string(turn.Type)),
		attribute.String("turnstile.intent", turn.NLU.Intent),
	)
	if turn.Session != nil {
		span.SetAttributes(attribute.String("turnstile.session_id", turn.Session.ID))
	}
}
