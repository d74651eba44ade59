package services

import (
	"context"
	"fmt"

	"github.com/dukex/sqlgems/pkg/models"
	"github.com/dukex/sqlgems/pkg/otelhelper"
	"github.com/dukex/sqlgems/pkg/protocol"
	"github.com/dukex/sqlgems/pkg/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Document is a self-contained compile request: the graph around a component, the component
// itself and optionally its previous version.
type Document struct {
	Graph     models.Graph            `json:"graph"`
	Component models.ComponentRecord  `json:"component"`
	Previous  *models.ComponentRecord `json:"previous,omitempty"`
}

// Result is the outcome of compiling a Document. Code is empty when any Error diagnostic exists.
type Result struct {
	Component   models.ComponentRecord `json:"component"`
	Changed     bool                   `json:"changed"`
	Diagnostics []models.Diagnostic    `json:"diagnostics"`
	Code        string                 `json:"code,omitempty"`
}

// Compiler runs gems against components without touching storage.
type Compiler struct {
	registry *registry.Registry
	tracer   trace.Tracer
}

// NewCompiler creates a compiler over the gems of reg.
func NewCompiler(reg *registry.Registry, tracer trace.Tracer) *Compiler {
	return &Compiler{
		registry: reg,
		tracer:   tracer,
	}
}

func (c *Compiler) gem(component models.ComponentRecord) (protocol.Gem, error) {
	return c.registry.Gem(component.Gem)
}

// Reconcile refreshes the derived properties of doc.Component against doc.Graph and reports
// whether its persisted parameters changed.
func (c *Compiler) Reconcile(ctx context.Context, doc Document) (models.ComponentRecord, bool, error) {
	_, span := otelhelper.StartSpan(ctx, c.tracer, "compiler.reconcile",
		attribute.String(otelhelper.NodeIDKey, doc.Component.ID),
		attribute.String(otelhelper.GemNameKey, doc.Component.Gem),
	)
	defer span.End()

	gem, err := c.gem(doc.Component)
	if err != nil {
		return doc.Component, false, otelhelper.SetError(span, err)
	}

	previous := doc.Component
	if doc.Previous != nil {
		previous = *doc.Previous
	}

	reconciled, err := gem.OnChange(&doc.Graph, previous, doc.Component)
	if err != nil {
		return doc.Component, false, otelhelper.SetError(span, err)
	}

	changed := reconciled.Properties.Fingerprint() != doc.Component.Properties.Fingerprint()
	span.SetAttributes(
		attribute.Bool(otelhelper.ChangedKey, changed),
		attribute.String(otelhelper.FingerprintKey, reconciled.Properties.Fingerprint()),
	)

	return reconciled, changed, nil
}

// Diagnostics validates component with its gem. The result is never nil.
func (c *Compiler) Diagnostics(ctx context.Context, component models.ComponentRecord) ([]models.Diagnostic, error) {
	_, span := otelhelper.StartSpan(ctx, c.tracer, "compiler.diagnostics",
		attribute.String(otelhelper.NodeIDKey, component.ID),
		attribute.String(otelhelper.GemNameKey, component.Gem),
	)
	defer span.End()

	gem, err := c.gem(component)
	if err != nil {
		return nil, otelhelper.SetError(span, err)
	}

	diagnostics, err := gem.Validate(component)
	if err != nil {
		return nil, otelhelper.SetError(span, err)
	}

	if diagnostics == nil {
		diagnostics = []models.Diagnostic{}
	}

	span.SetAttributes(attribute.Int(otelhelper.DiagnosticsKey, len(diagnostics)))

	return diagnostics, nil
}

// Emit renders component after checking it has no Error diagnostics.
func (c *Compiler) Emit(ctx context.Context, component models.ComponentRecord) (string, error) {
	diagnostics, err := c.Diagnostics(ctx, component)
	if err != nil {
		return "", err
	}

	if models.HasErrors(diagnostics) {
		return "", &InvalidComponentError{NodeID: component.ID, Diagnostics: diagnostics}
	}

	return c.apply(ctx, component)
}

func (c *Compiler) apply(ctx context.Context, component models.ComponentRecord) (string, error) {
	_, span := otelhelper.StartSpan(ctx, c.tracer, "compiler.apply",
		attribute.String(otelhelper.NodeIDKey, component.ID),
		attribute.String(otelhelper.GemNameKey, component.Gem),
	)
	defer span.End()

	gem, err := c.gem(component)
	if err != nil {
		return "", otelhelper.SetError(span, err)
	}

	code, err := gem.Apply(component)
	if err != nil {
		return "", otelhelper.SetError(span, fmt.Errorf("apply %s: %w", component.ID, err))
	}

	return code, nil
}

// Compile reconciles doc, validates the result and renders it when it has no Error diagnostics.
func (c *Compiler) Compile(ctx context.Context, doc Document) (*Result, error) {
	reconciled, changed, err := c.Reconcile(ctx, doc)
	if err != nil {
		return nil, err
	}

	diagnostics, err := c.Diagnostics(ctx, reconciled)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Component:   reconciled,
		Changed:     changed,
		Diagnostics: diagnostics,
	}

	if models.HasErrors(diagnostics) {
		return result, nil
	}

	result.Code, err = c.apply(ctx, reconciled)
	if err != nil {
		return nil, err
	}

	return result, nil
}
