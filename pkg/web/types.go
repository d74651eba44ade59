// Package web provides HTTP request and response types for the pipeline API.
package web

import (
	"strings"

	"github.com/dukex/sqlgems/pkg/models"
	"github.com/dukex/sqlgems/pkg/services"
)

// CreatePipelineRequest represents the request body for creating a new pipeline.
type CreatePipelineRequest struct {
	Name        string       `json:"name"        validate:"required,min=1"`
	Description string       `json:"description"`
	Graph       models.Graph `json:"graph"`
}

// UpdateGraphRequest represents the request body for replacing a pipeline graph.
type UpdateGraphRequest struct {
	Nodes       map[string]*models.Node `json:"nodes"       validate:"required,dive"`
	Connections []*models.Connection    `json:"connections" validate:"dive"`
}

// Graph returns the graph carried by the request.
func (r UpdateGraphRequest) Graph() models.Graph {
	return models.Graph{Nodes: r.Nodes, Connections: r.Connections}
}

// PutComponentRequest represents the request body for configuring the component of a node.
type PutComponentRequest struct {
	Gem        string                  `json:"gem"        validate:"required"`
	Ports      models.Ports            `json:"ports"`
	Parameters []models.MacroParameter `json:"parameters" validate:"dive"`
}

// CompileRequest represents the request body of a stateless compile.
type CompileRequest struct {
	Graph     models.Graph            `json:"graph"`
	Component models.ComponentRecord  `json:"component"`
	Previous  *models.ComponentRecord `json:"previous,omitempty"`
}

// Document converts the request into a compile document for the named gem. A component that
// names no gem is bound to it.
func (r CompileRequest) Document(gem string) services.Document {
	doc := services.Document{Graph: r.Graph, Component: r.Component, Previous: r.Previous}
	if doc.Component.Gem == "" {
		doc.Component.Gem = gem
	}

	return doc
}

// ComponentResponse represents a component together with the fingerprint of its parameters.
type ComponentResponse struct {
	Component   models.ComponentRecord `json:"component"`
	Fingerprint string                 `json:"fingerprint"`
}

// NewComponentResponse wraps a component record.
func NewComponentResponse(component *models.ComponentRecord) ComponentResponse {
	return ComponentResponse{
		Component:   *component,
		Fingerprint: component.Properties.Fingerprint(),
	}
}

// ReconcileResponse represents the outcome of reconciling one component.
type ReconcileResponse struct {
	ComponentResponse

	Changed bool `json:"changed"`
}

// DiagnosticsResponse lists the diagnostics of a component.
type DiagnosticsResponse struct {
	Diagnostics []models.Diagnostic `json:"diagnostics"`
}

// CodeResponse carries the code emitted for a component.
type CodeResponse struct {
	Code string `json:"code"`
}

// ETag renders a fingerprint as a strong entity tag.
func ETag(fingerprint string) string {
	return `"` + fingerprint + `"`
}

// ParseIfMatch extracts the fingerprint from an If-Match header. Weak tags are accepted.
func ParseIfMatch(header string) string {
	value := strings.TrimSpace(header)
	value = strings.TrimPrefix(value, "W/")

	return strings.Trim(value, `"`)
}
