package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/dukex/sqlgems/pkg/eventbus"
	"github.com/dukex/sqlgems/pkg/events"
	"github.com/dukex/sqlgems/pkg/otelhelper"
	"github.com/dukex/sqlgems/pkg/persistence"
	"github.com/dukex/sqlgems/pkg/services"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// WorkerManager reconciles pipelines when their graph changes and on a periodic sweep.
type WorkerManager struct {
	id          string
	logger      *slog.Logger
	persistence persistence.Persistence
	components  *services.Component
	eventBus    eventbus.EventBus
	tracer      trace.Tracer
	schedule    string
	concurrency int
	cron        *cron.Cron
}

func NewWorkerManager(
	id string,
	persistence persistence.Persistence,
	components *services.Component,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
	logger *slog.Logger,
	schedule string,
	concurrency int,
) *WorkerManager {
	if concurrency < 1 {
		concurrency = 1
	}

	return &WorkerManager{
		id:          id,
		logger:      logger.With("module", "sqlgems-worker", "worker_id", id),
		persistence: persistence,
		components:  components,
		eventBus:    eventBus,
		tracer:      tracer,
		schedule:    schedule,
		concurrency: concurrency,
	}
}

// Start subscribes to graph changes and schedules the sweep, then blocks until ctx is done or
// the process is signalled.
func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager", "schedule", w.schedule, "concurrency", w.concurrency)

	err := w.eventBus.Handle(events.PipelineGraphChangedEvent, w.handlePipelineGraphChanged)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	err = w.startSweep(ctx)
	if err != nil {
		return err
	}

	if w.cron != nil {
		defer w.cron.Stop()
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

func (w *WorkerManager) startSweep(ctx context.Context) error {
	if w.schedule == "" {
		return nil
	}

	if _, err := cron.ParseStandard(w.schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule '%s': %w", w.schedule, err)
	}

	w.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	entryID, err := w.cron.AddFunc(w.schedule, func() {
		if _, err := w.Sweep(ctx); err != nil {
			w.logger.ErrorContext(ctx, "Sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	w.cron.Start()
	w.logger.InfoContext(ctx, "Scheduled reconciliation sweep", "schedule", w.schedule, "entry_id", entryID)

	return nil
}

// Sweep reconciles every stored pipeline with at most w.concurrency pipelines in flight and
// returns the number of components that changed. A pipeline that fails is logged and skipped.
func (w *WorkerManager) Sweep(ctx context.Context) (int, error) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "worker.sweep",
		attribute.String(otelhelper.WorkerIDKey, w.id),
	)
	defer span.End()

	pipelines, err := w.persistence.Pipelines(ctx)
	if err != nil {
		return 0, otelhelper.SetError(span, fmt.Errorf("failed to list pipelines: %w", err))
	}

	var changedCount atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	for _, pipeline := range pipelines {
		g.Go(func() error {
			changed, err := w.components.ReconcilePipeline(gctx, pipeline.ID)
			if err != nil {
				w.logger.ErrorContext(gctx, "Failed to reconcile pipeline", "pipeline_id", pipeline.ID, "error", err)

				return nil
			}

			changedCount.Add(int64(len(changed)))

			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		return 0, otelhelper.SetError(span, err)
	}

	w.logger.InfoContext(ctx, "Sweep finished", "pipelines", len(pipelines), "changed", changedCount.Load())

	return int(changedCount.Load()), nil
}

func (w *WorkerManager) handlePipelineGraphChanged(ctx context.Context, event any) error {
	graphChanged, ok := event.(*events.PipelineGraphChanged)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for PipelineGraphChanged")

		return nil
	}

	logger := w.logger.With(
		"pipeline_id", graphChanged.PipelineID,
		"event_id", graphChanged.ID,
	)
	logger.InfoContext(ctx, "Processing pipeline graph changed event")

	changed, err := w.components.ReconcilePipeline(ctx, graphChanged.PipelineID)
	if err != nil {
		if services.IsNotFoundError(err) {
			logger.WarnContext(ctx, "Pipeline no longer exists")

			return nil
		}

		logger.ErrorContext(ctx, "Failed to reconcile pipeline", "error", err)

		return err
	}

	logger.InfoContext(ctx, "Pipeline reconciled", "changed", changed)

	return nil
}
