package services

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/dukex/sqlgems/pkg/eventbus"
	"github.com/dukex/sqlgems/pkg/models"
	"github.com/dukex/sqlgems/pkg/persistence"
	"github.com/dukex/sqlgems/pkg/persistence/file"
	"github.com/dukex/sqlgems/pkg/registry"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type publishedEvent struct {
	key   string
	event eventbus.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}

	p.events = append(p.events, publishedEvent{key: key, event: event})

	return nil
}

func (p *recordingPublisher) published() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]publishedEvent(nil), p.events...)
}

func testTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("sqlgems-test")
}

func testRegistry() *registry.Registry {
	reg := registry.NewRegistry(slog.Default())
	reg.RegisterDefaultGems()

	return reg
}

func setupServices(t *testing.T) (persistence.Persistence, *Pipeline, *Component, *recordingPublisher) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	publisher := &recordingPublisher{}

	return store,
		NewPipeline(store, publisher, testTracer(), slog.Default()),
		NewComponent(store, testRegistry(), publisher, testTracer(), slog.Default()),
		publisher
}

func savePipeline(t *testing.T, store persistence.Persistence, pipeline *models.Pipeline) *models.Pipeline {
	t.Helper()

	require.NoError(t, store.SavePipeline(t.Context(), pipeline))

	return pipeline
}
