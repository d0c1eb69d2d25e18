package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracerProvider_ExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	tp, err := InitTracerProvider(Config{ServiceName: "tracing-test", Writer: &buf})
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	_, span := Tracer.Start(context.Background(), "unit-span")
	span.End()

	require.NoError(t, tp.ForceFlush(context.Background()))
	assert.Contains(t, buf.String(), "unit-span")
	assert.Contains(t, buf.String(), "tracing-test")
	assert.NotNil(t, otel.GetTextMapPropagator())
}

func TestInitTracerProvider_WithoutWriter(t *testing.T) {
	tp, err := InitTracerProvider(Config{})
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	_, span := Tracer.Start(context.Background(), "silent")
	defer span.End()
	assert.True(t, span.SpanContext().IsValid())
}
