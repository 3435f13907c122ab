// Package otelspan is a minimal OpenTelemetry span helper: a
// TracerProvider-backed tracer when one is configured, otherwise the
// SDK's no-op implementation, so instrumented code costs nothing by
// default. Trimmed down to the one thing lockprof actually needs —
// wrapping pkg/aggregator's Reduce call in a span — since no exporter
// is wired in this repo (see DESIGN.md).
package otelspan

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Manager holds a single named tracer, falling back to the global
// no-op tracer when no provider has been installed.
type Manager struct {
	tracer oteltrace.Tracer
}

// NewNoop returns a Manager backed by the global OpenTelemetry tracer,
// which is a no-op unless the process installs a global TracerProvider.
// This is the default: lockprof never registers a TracerProvider or
// exporter on its own.
func NewNoop(instrumentationName string) *Manager {
	return &Manager{tracer: otel.Tracer(instrumentationName)}
}

// NewWithProvider returns a Manager backed by an already-configured
// SDK TracerProvider, for embedders that want spans to reach a real
// collector.
func NewWithProvider(provider *sdktrace.TracerProvider, instrumentationName string) *Manager {
	return &Manager{tracer: provider.Tracer(instrumentationName)}
}

// StartSpan starts a span named name with the given attributes. The
// caller must call the returned end func exactly once, passing the
// error (if any) the wrapped operation returned.
func (m *Manager) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	ctx, span := m.tracer.Start(ctx, name, oteltrace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
