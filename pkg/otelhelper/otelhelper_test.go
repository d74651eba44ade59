package otelhelper_test

import (
	"errors"
	"testing"

	"github.com/dukex/sqlgems/pkg/otelhelper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpanAndSetError(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := provider.Tracer("test")

	_, span := otelhelper.StartSpan(t.Context(), tracer, "component.compile",
		attribute.String(otelhelper.PipelineIDKey, "p1"),
		attribute.String(otelhelper.NodeIDKey, "rule"),
	)
	err := otelhelper.SetError(span, errors.New("boom"), attribute.String(otelhelper.GemNameKey, "BRE_SQL_Gem_basic"))
	assert.EqualError(t, err, "boom")
	assert.NoError(t, otelhelper.SetError(span, nil))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	ended := spans[0]
	assert.Equal(t, "component.compile", ended.Name())
	assert.Equal(t, codes.Error, ended.Status().Code)
	assert.Equal(t, "boom", ended.Status().Description)
	assert.Contains(t, ended.Attributes(), attribute.String(otelhelper.PipelineIDKey, "p1"))

	eventNames := make([]string, 0, len(ended.Events()))
	for _, event := range ended.Events() {
		eventNames = append(eventNames, event.Name)
	}

	assert.Contains(t, eventNames, "error_occurred")
}
