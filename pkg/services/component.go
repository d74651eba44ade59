package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dukex/sqlgems/pkg/eventbus"
	"github.com/dukex/sqlgems/pkg/events"
	"github.com/dukex/sqlgems/pkg/models"
	"github.com/dukex/sqlgems/pkg/otelhelper"
	"github.com/dukex/sqlgems/pkg/persistence"
	"github.com/dukex/sqlgems/pkg/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PutComponentRequest configures the component of a node.
type PutComponentRequest struct {
	Gem        string                  `json:"gem"`
	Ports      models.Ports            `json:"ports"`
	Parameters []models.MacroParameter `json:"parameters"`
	// IfMatch, when set, must equal the fingerprint of the stored parameters.
	IfMatch string `json:"-"`
}

// Component handles the components configured on pipeline nodes.
type Component struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	compiler    *Compiler
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
}

// NewComponent creates a new component service. publisher may be nil.
func NewComponent(
	persistence persistence.Persistence,
	registry *registry.Registry,
	publisher eventbus.EventPublisher,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Component {
	return &Component{
		persistence: persistence,
		registry:    registry,
		compiler:    NewCompiler(registry, tracer),
		publisher:   publisher,
		tracer:      tracer,
		logger:      logger,
	}
}

// Put stores the component of a node. The parameters are validated against the gem's parameter
// schema and the component is reconciled against the pipeline graph before it is saved.
func (c *Component) Put(ctx context.Context, pipelineID, nodeID string, req PutComponentRequest) (*models.ComponentRecord, error) {
	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "component.put",
		attribute.String(otelhelper.PipelineIDKey, pipelineID),
		attribute.String(otelhelper.NodeIDKey, nodeID),
		attribute.String(otelhelper.GemNameKey, req.Gem),
	)
	defer span.End()

	pipeline, err := c.pipeline(ctx, "Put", pipelineID)
	if err != nil {
		return nil, otelhelper.SetError(span, err)
	}

	node := pipeline.Graph.Node(nodeID)
	if node == nil {
		return nil, otelhelper.SetError(span, fmt.Errorf("node '%s': %w", nodeID, ErrNodeNotFound))
	}

	gem, err := c.registry.Gem(req.Gem)
	if err != nil {
		return nil, otelhelper.SetError(span, err)
	}

	if node.Gem != "" && node.Gem != gem.Name() {
		return nil, otelhelper.SetError(span, NewValidationError("Put", "GEM_MISMATCH",
			fmt.Sprintf("node '%s' uses gem '%s', got '%s'", nodeID, node.Gem, gem.Name()), ErrGemMismatch))
	}

	err = c.registry.ValidateParameters(gem.Name(), req.Parameters)
	if err != nil {
		return nil, otelhelper.SetError(span, err)
	}

	existing := pipeline.Component(nodeID)

	if req.IfMatch != "" {
		if existing == nil || existing.Properties.Fingerprint() != req.IfMatch {
			return nil, otelhelper.SetError(span, fmt.Errorf("component '%s': %w", nodeID, ErrFingerprintMismatch))
		}
	}

	current := models.ComponentRecord{
		ID:    nodeID,
		Gem:   gem.Name(),
		Ports: req.Ports,
		Properties: models.MacroProperties{
			MacroName:   gem.Name(),
			ProjectName: gem.ProjectName(),
			Parameters:  req.Parameters,
		},
	}

	previous := current
	if existing != nil {
		previous = *existing
	}

	reconciled, err := gem.OnChange(&pipeline.Graph, previous, current)
	if err != nil {
		return nil, otelhelper.SetError(span, err)
	}

	if pipeline.Components == nil {
		pipeline.Components = map[string]*models.ComponentRecord{}
	}

	pipeline.Components[nodeID] = &reconciled

	err = c.persistence.SavePipeline(ctx, pipeline)
	if err != nil {
		return nil, otelhelper.SetError(span, fmt.Errorf("failed to save component: %w", err))
	}

	span.SetAttributes(attribute.String(otelhelper.FingerprintKey, reconciled.Properties.Fingerprint()))
	c.logger.InfoContext(ctx, "Component saved", "pipeline_id", pipelineID, "node_id", nodeID, "gem", gem.Name())

	return &reconciled, nil
}

// Get returns the component configured on a node.
func (c *Component) Get(ctx context.Context, pipelineID, nodeID string) (*models.ComponentRecord, error) {
	pipeline, err := c.pipeline(ctx, "Get", pipelineID)
	if err != nil {
		return nil, err
	}

	return component(pipeline, "Get", nodeID)
}

// maxSaveAttempts bounds how often a reconcile re-reads a pipeline that changed under it.
const maxSaveAttempts = 3

// Reconcile refreshes the component of a node against the current graph and saves it when its
// parameters changed. A concurrent write to the pipeline makes it start over from a fresh read.
func (c *Component) Reconcile(ctx context.Context, pipelineID, nodeID string) (*models.ComponentRecord, bool, error) {
	var (
		reconciled *models.ComponentRecord
		changed    bool
	)

	err := c.retryOnConflict(ctx, pipelineID, func() error {
		var err error

		reconciled, changed, err = c.reconcile(ctx, pipelineID, nodeID)

		return err
	})
	if err != nil {
		return nil, false, err
	}

	return reconciled, changed, nil
}

func (c *Component) reconcile(ctx context.Context, pipelineID, nodeID string) (*models.ComponentRecord, bool, error) {
	pipeline, err := c.pipeline(ctx, "Reconcile", pipelineID)
	if err != nil {
		return nil, false, err
	}

	existing, err := component(pipeline, "Reconcile", nodeID)
	if err != nil {
		return nil, false, err
	}

	previousFingerprint := existing.Properties.Fingerprint()

	reconciled, changed, err := c.compiler.Reconcile(ctx, Document{Graph: pipeline.Graph, Component: *existing})
	if err != nil {
		return nil, false, err
	}

	if !changed {
		return existing, false, nil
	}

	pipeline.Components[nodeID] = &reconciled

	err = c.persistence.SavePipeline(ctx, pipeline)
	if err != nil {
		return nil, false, fmt.Errorf("failed to save reconciled component: %w", err)
	}

	c.publishReconciled(ctx, pipeline.ID, reconciled, previousFingerprint)

	return &reconciled, true, nil
}

// ReconcilePipeline reconciles every component of a pipeline and saves the pipeline once. It
// returns the sorted node IDs whose parameters changed. Components that fail to reconcile are
// logged and left as stored. A concurrent write to the pipeline makes it start over.
func (c *Component) ReconcilePipeline(ctx context.Context, pipelineID string) ([]string, error) {
	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "component.reconcile_pipeline",
		attribute.String(otelhelper.PipelineIDKey, pipelineID),
	)
	defer span.End()

	var changed []string

	err := c.retryOnConflict(ctx, pipelineID, func() error {
		var err error

		changed, err = c.reconcilePipeline(ctx, pipelineID)

		return err
	})
	if err != nil {
		return nil, otelhelper.SetError(span, err)
	}

	return changed, nil
}

func (c *Component) reconcilePipeline(ctx context.Context, pipelineID string) ([]string, error) {
	pipeline, err := c.pipeline(ctx, "ReconcilePipeline", pipelineID)
	if err != nil {
		return nil, err
	}

	changed := []string{}
	previous := map[string]string{}

	for nodeID, existing := range pipeline.Components {
		if existing == nil {
			continue
		}

		reconciled, ok, err := c.compiler.Reconcile(ctx, Document{Graph: pipeline.Graph, Component: *existing})
		if err != nil {
			c.logger.WarnContext(ctx, "Skipping component that cannot be reconciled",
				"pipeline_id", pipelineID, "node_id", nodeID, "error", err)

			continue
		}

		if !ok {
			continue
		}

		previous[nodeID] = existing.Properties.Fingerprint()
		pipeline.Components[nodeID] = &reconciled
		changed = append(changed, nodeID)
	}

	sort.Strings(changed)

	if len(changed) == 0 {
		return changed, nil
	}

	err = c.persistence.SavePipeline(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to save reconciled pipeline: %w", err)
	}

	for _, nodeID := range changed {
		c.publishReconciled(ctx, pipeline.ID, *pipeline.Components[nodeID], previous[nodeID])
	}

	c.logger.InfoContext(ctx, "Pipeline reconciled", "pipeline_id", pipelineID, "changed", changed)

	return changed, nil
}

// retryOnConflict runs attempt until it succeeds, fails with anything but a version conflict,
// or maxSaveAttempts is reached. attempt must re-read the pipeline it saves.
func (c *Component) retryOnConflict(ctx context.Context, pipelineID string, attempt func() error) error {
	var err error

	for i := 1; i <= maxSaveAttempts; i++ {
		err = attempt()
		if !persistence.IsVersionConflict(err) {
			return err
		}

		c.logger.DebugContext(ctx, "Pipeline changed during reconcile, retrying",
			"pipeline_id", pipelineID, "attempt", i)
	}

	return err
}

// Diagnostics validates the component of a node.
func (c *Component) Diagnostics(ctx context.Context, pipelineID, nodeID string) ([]models.Diagnostic, error) {
	pipeline, err := c.pipeline(ctx, "Diagnostics", pipelineID)
	if err != nil {
		return nil, err
	}

	existing, err := component(pipeline, "Diagnostics", nodeID)
	if err != nil {
		return nil, err
	}

	return c.compiler.Diagnostics(ctx, *existing)
}

// Compile renders the component of a node. It refuses with an InvalidComponentError when the
// component has Error diagnostics.
func (c *Component) Compile(ctx context.Context, pipelineID, nodeID string) (string, error) {
	pipeline, err := c.pipeline(ctx, "Compile", pipelineID)
	if err != nil {
		return "", err
	}

	existing, err := component(pipeline, "Compile", nodeID)
	if err != nil {
		return "", err
	}

	return c.compiler.Emit(ctx, *existing)
}

func (c *Component) pipeline(ctx context.Context, op, pipelineID string) (*models.Pipeline, error) {
	pipeline, err := c.persistence.PipelineByID(ctx, pipelineID)
	if err != nil {
		return nil, err
	}

	if pipeline == nil {
		return nil, persistence.NewPipelineError(op, pipelineID, ErrPipelineNotFound)
	}

	return pipeline, nil
}

func component(pipeline *models.Pipeline, op, nodeID string) (*models.ComponentRecord, error) {
	existing := pipeline.Component(nodeID)
	if existing == nil {
		return nil, persistence.NewComponentError(op, pipeline.ID, nodeID, ErrComponentNotFound)
	}

	return existing, nil
}

func (c *Component) publishReconciled(ctx context.Context, pipelineID string, reconciled models.ComponentRecord, previousFingerprint string) {
	publish(ctx, c.publisher, c.logger, pipelineID, events.ComponentReconciled{
		BaseEvent:           events.NewBaseEvent(events.ComponentReconciledEvent, pipelineID),
		NodeID:              reconciled.ID,
		Gem:                 reconciled.Gem,
		PreviousFingerprint: previousFingerprint,
		Fingerprint:         reconciled.Properties.Fingerprint(),
	})
}
