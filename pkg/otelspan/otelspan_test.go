package otelspan

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewNoopStartSpanNeverPanicsWithoutAProvider(t *testing.T) {
	m := NewNoop("lockprof-test")
	ctx, end := m.StartSpan(context.Background(), "op")
	require.NotNil(t, ctx)
	end(nil)
}

func TestStartSpanRecordsErrorStatusOnFailure(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	m := NewWithProvider(provider, "lockprof-test")

	_, end := m.StartSpan(context.Background(), "failing-op")
	end(errors.New("boom"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "failing-op", spans[0].Name())
}

func TestStartSpanWithoutErrorEndsCleanly(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	m := NewWithProvider(provider, "lockprof-test")

	_, end := m.StartSpan(context.Background(), "ok-op")
	end(nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Empty(t, spans[0].Status().Description)
}
