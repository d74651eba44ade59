package bre

import (
	"errors"
	"fmt"

	"github.com/dukex/sqlgems/pkg/models"
	"github.com/dukex/sqlgems/pkg/relation"
	"github.com/dukex/sqlgems/pkg/schema"
)

// ErrNoInputPort indicates a component without the input port the gem reads from.
var ErrNoInputPort = errors.New("component has no input port")

// Reconcile re-derives the cached schema and input table of current from its first input port
// and the graph. The result depends only on current and graph; previous is part of the host's
// change contract and does not influence it. A port without a schema descriptor yields an
// unknown ("") schema; a malformed descriptor is returned as a *schema.FormatError.
func Reconcile(previous, current Component, graph *models.Graph) (Component, error) {
	if len(current.Ports.Inputs) == 0 {
		return current, fmt.Errorf("reconcile %s: %w", current.ID, ErrNoInputPort)
	}

	schemaOpt := WithUnknownSchema()

	if descriptor := current.Ports.Inputs[0].Schema; descriptor != nil {
		fields, err := schema.ExtractFields(descriptor)
		if err != nil {
			return current, fmt.Errorf("reconcile %s: %w", current.ID, err)
		}

		schemaOpt = WithSchemaFields(fields)
	}

	props, err := current.Properties.With(
		schemaOpt,
		WithInputTable(relation.First(current.Ports.Inputs, graph)),
	)
	if err != nil {
		return current, fmt.Errorf("reconcile %s: %w", current.ID, err)
	}

	return current.BindProperties(props), nil
}
