// Package protocol defines the interfaces and contracts for pluggable gems.
package protocol

import (
	"github.com/dukex/sqlgems/pkg/models"
)

// Gem compiles one kind of pipeline component. Implementations are stateless: every method
// takes the component snapshot it works on and returns new values.
type Gem interface {
	// Name returns the unique identifier for this gem, also the macro it emits
	Name() string

	// ProjectName returns the macro project the gem belongs to
	ProjectName() string

	// Category returns the palette category, e.g. "Transform"
	Category() string

	// Description returns a description of what this gem does
	Description() string

	// ParameterSchema returns the JSON schema for the gem's persisted parameters
	ParameterSchema() *models.JSONSchema

	// Validate reports configuration problems as diagnostics. Malformed persisted state is an error.
	Validate(component models.ComponentRecord) ([]models.Diagnostic, error)

	// OnChange re-derives state that depends on the graph after any edit
	OnChange(graph *models.Graph, previous, current models.ComponentRecord) (models.ComponentRecord, error)

	// Apply renders the component into the code consumed by the macro engine
	Apply(component models.ComponentRecord) (string, error)
}
