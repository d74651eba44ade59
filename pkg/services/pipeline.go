package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/dukex/sqlgems/pkg/eventbus"
	"github.com/dukex/sqlgems/pkg/events"
	"github.com/dukex/sqlgems/pkg/models"
	"github.com/dukex/sqlgems/pkg/otelhelper"
	"github.com/dukex/sqlgems/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Pipeline handles pipeline-related business operations.
type Pipeline struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
	validate    *validator.Validate
}

// NewPipeline creates a new pipeline service. publisher may be nil, in which case graph changes
// are not announced.
func NewPipeline(
	persistence persistence.Persistence,
	publisher eventbus.EventPublisher,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		persistence: persistence,
		publisher:   publisher,
		tracer:      tracer,
		logger:      logger,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// HealthCheck checks the health of the persistence layer.
func (p *Pipeline) HealthCheck(ctx context.Context) (string, bool) {
	if p.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := p.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListPipelinesRequest contains options for listing pipelines.
type ListPipelinesRequest struct {
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

// ListPipelinesResponse contains the result of listing pipelines.
type ListPipelinesResponse struct {
	Pipelines   []*models.Pipeline `json:"pipelines"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

// List returns pipelines sorted and paginated.
func (p *Pipeline) List(ctx context.Context, req ListPipelinesRequest) (*ListPipelinesResponse, error) {
	if err := p.validateListPipelinesRequest(&req); err != nil {
		return nil, err
	}

	pipelines, err := p.persistence.Pipelines(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipelines: %w", err)
	}

	sortPipelines(pipelines, req.SortBy, req.SortOrder)

	total := len(pipelines)
	start := min(req.Offset, total)
	end := min(req.Offset+req.Limit, total)

	return &ListPipelinesResponse{
		Pipelines:   pipelines[start:end],
		TotalCount:  int64(total),
		HasNextPage: end < total,
	}, nil
}

func (p *Pipeline) validateListPipelinesRequest(req *ListPipelinesRequest) error {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	if req.Limit > 100 {
		req.Limit = 100
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	if req.SortBy == "" {
		req.SortBy = "created_at"
	}

	if req.SortOrder == "" {
		req.SortOrder = "desc"
	}

	allowedSorts := []string{"created_at", "updated_at", "name"}

	if !slices.Contains(allowedSorts, req.SortBy) {
		return NewValidationError(
			"validateListPipelinesRequest",
			"INVALID_SORT_FIELD",
			fmt.Sprintf("invalid sort field '%s', allowed: %s", req.SortBy, strings.Join(allowedSorts, ", ")),
			ErrInvalidSortField,
		)
	}

	if req.SortOrder != "asc" && req.SortOrder != "desc" {
		return NewValidationError(
			"validateListPipelinesRequest",
			"INVALID_SORT_ORDER",
			fmt.Sprintf("invalid sort order '%s', allowed: asc, desc", req.SortOrder),
			ErrInvalidSortOrder,
		)
	}

	return nil
}

func sortPipelines(pipelines []*models.Pipeline, sortBy, sortOrder string) {
	sort.SliceStable(pipelines, func(i, j int) bool {
		a, b := pipelines[i], pipelines[j]
		if sortOrder == "desc" {
			a, b = b, a
		}

		switch sortBy {
		case "updated_at":
			return a.UpdatedAt.Before(b.UpdatedAt)
		case "name":
			return a.Name < b.Name
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	})
}

// FetchByID retrieves a pipeline by its ID.
func (p *Pipeline) FetchByID(ctx context.Context, id string) (*models.Pipeline, error) {
	pipeline, err := p.persistence.PipelineByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if pipeline == nil {
		return nil, persistence.NewPipelineError("FetchByID", id, ErrPipelineNotFound)
	}

	return pipeline, nil
}

// Create stores a new pipeline under a fresh ID. Components are dropped: they are added
// through the component service so that they are validated and reconciled.
func (p *Pipeline) Create(ctx context.Context, pipeline *models.Pipeline) (*models.Pipeline, error) {
	ctx, span := otelhelper.StartSpan(ctx, p.tracer, "pipeline.create")
	defer span.End()

	if pipeline == nil {
		return nil, ErrPipelineNil
	}

	if strings.TrimSpace(pipeline.Name) == "" {
		return nil, ErrPipelineNameRequired
	}

	if err := p.validateGraph("Create", &pipeline.Graph); err != nil {
		return nil, otelhelper.SetError(span, err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, otelhelper.SetError(span, fmt.Errorf("failed to generate pipeline ID: %w", err))
	}

	pipeline.ID = id.String()
	pipeline.Components = map[string]*models.ComponentRecord{}

	span.SetAttributes(
		attribute.String(otelhelper.PipelineIDKey, pipeline.ID),
		attribute.String(otelhelper.PipelineNameKey, pipeline.Name),
	)

	err = p.persistence.SavePipeline(ctx, pipeline)
	if err != nil {
		return nil, otelhelper.SetError(span, fmt.Errorf("failed to create pipeline: %w", err))
	}

	p.logger.InfoContext(ctx, "Pipeline created", "pipeline_id", pipeline.ID, "nodes", len(pipeline.Graph.Nodes))

	return pipeline, nil
}

// UpdateGraph replaces the nodes and connections of a pipeline. Components of nodes that no
// longer exist are removed; the rest are reconciled asynchronously after the graph change event.
func (p *Pipeline) UpdateGraph(ctx context.Context, id string, graph models.Graph) (*models.Pipeline, error) {
	ctx, span := otelhelper.StartSpan(ctx, p.tracer, "pipeline.update_graph",
		attribute.String(otelhelper.PipelineIDKey, id),
	)
	defer span.End()

	pipeline, err := p.FetchByID(ctx, id)
	if err != nil {
		return nil, otelhelper.SetError(span, err)
	}

	if err := p.validateGraph("UpdateGraph", &graph); err != nil {
		return nil, otelhelper.SetError(span, err)
	}

	pipeline.Graph = graph

	for nodeID := range pipeline.Components {
		if graph.Node(nodeID) == nil {
			delete(pipeline.Components, nodeID)
		}
	}

	err = p.persistence.SavePipeline(ctx, pipeline)
	if err != nil {
		return nil, otelhelper.SetError(span, fmt.Errorf("failed to update pipeline graph: %w", err))
	}

	p.publish(ctx, pipeline.ID, events.PipelineGraphChanged{
		BaseEvent:       events.NewBaseEvent(events.PipelineGraphChangedEvent, pipeline.ID),
		NodeCount:       len(graph.Nodes),
		ConnectionCount: len(graph.Connections),
	})

	return pipeline, nil
}

// Delete removes a pipeline by its ID.
func (p *Pipeline) Delete(ctx context.Context, id string) error {
	if _, err := p.FetchByID(ctx, id); err != nil {
		return err
	}

	err := p.persistence.DeletePipeline(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete pipeline: %w", err)
	}

	p.logger.InfoContext(ctx, "Pipeline deleted", "pipeline_id", id)

	return nil
}

// validateGraph checks struct tags, that nodes are keyed by their own ID and that every
// connection joins known nodes.
func (p *Pipeline) validateGraph(op string, graph *models.Graph) error {
	if err := p.validate.Struct(graph); err != nil {
		return NewValidationError(op, "INVALID_GRAPH", err.Error(), ErrInvalidGraph)
	}

	for key, node := range graph.Nodes {
		if node == nil || node.ID != key {
			return NewValidationError(op, "INVALID_GRAPH",
				fmt.Sprintf("node under key '%s' must have id '%s'", key, key), ErrInvalidGraph)
		}
	}

	for _, connection := range graph.Connections {
		if connection == nil {
			return NewValidationError(op, "INVALID_GRAPH", "connection cannot be null", ErrInvalidGraph)
		}

		if graph.Node(connection.Source) == nil {
			return NewValidationError(op, "INVALID_GRAPH",
				fmt.Sprintf("connection '%s' references unknown source node '%s'", connection.ID, connection.Source), ErrInvalidGraph)
		}

		if connection.Target != "" && graph.Node(connection.Target) == nil {
			return NewValidationError(op, "INVALID_GRAPH",
				fmt.Sprintf("connection '%s' references unknown target node '%s'", connection.ID, connection.Target), ErrInvalidGraph)
		}

		if connection.ID == "" {
			connection.ID = uuid.New().String()
		}
	}

	return nil
}

func (p *Pipeline) publish(ctx context.Context, key string, event eventbus.Event) {
	publish(ctx, p.publisher, p.logger, key, event)
}

// publish announces event when a publisher is configured. A failed publish is logged only: the
// change is already stored and the worker sweep reconciles it later.
func publish(ctx context.Context, publisher eventbus.EventPublisher, logger *slog.Logger, key string, event eventbus.Event) {
	if publisher == nil {
		return
	}

	if err := publisher.Publish(ctx, key, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "key", key, "error", err)
	}
}
