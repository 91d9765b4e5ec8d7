package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// CheckMeta identifies a health check for telemetry purposes.
type CheckMeta struct {
	Name      string // Checker name (required)
	Component string // Owning component, e.g. "agent" (optional)
}

// SpanName returns the deterministic span name for this check.
// Format: health.check.<component>.<name> or health.check.<name>
func (m CheckMeta) SpanName() string {
	if m.Component != "" {
		return "health.check." + m.Component + "." + m.Name
	}
	return "health.check." + m.Name
}

// Tracer wraps OpenTelemetry tracing with check-specific span management.
type Tracer interface {
	// StartSpan starts a new span for a check evaluation.
	StartSpan(ctx context.Context, meta CheckMeta) (context.Context, trace.Span)

	// EndSpan ends the span. A non-empty reason marks the span as failed.
	EndSpan(span trace.Span, healthy bool, reason string)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		return newNoopTracer()
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta CheckMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("check.name", meta.Name),
	}
	if meta.Component != "" {
		attrs = append(attrs, attribute.String("check.component", meta.Component))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, healthy bool, reason string) {
	span.SetAttributes(attribute.Bool("check.healthy", healthy))
	if healthy {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetAttributes(attribute.String("check.reason", reason))
		span.SetStatus(codes.Error, reason)
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

func newNoopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta CheckMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, healthy bool, reason string) {
	span.End()
}
