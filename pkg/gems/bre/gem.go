package bre

import (
	"fmt"

	"github.com/dukex/sqlgems/pkg/models"
	"github.com/dukex/sqlgems/pkg/protocol"
)

const (
	projectName        = "SQLGems"
	category           = "Transform"
	minNumOfInputPorts = 1
	maxNumOfInputPorts = 1
	maxNumOfOutputPort = 1
)

// Gem is the business rule gem.
type Gem struct{}

// NewGem creates the business rule gem.
func NewGem() protocol.Gem {
	return &Gem{}
}

// Name returns the gem name, which is also the emitted macro.
func (g *Gem) Name() string {
	return MacroName
}

// ProjectName returns the macro project.
func (g *Gem) ProjectName() string {
	return projectName
}

// Category returns the gem category.
func (g *Gem) Category() string {
	return category
}

// Description returns the gem description.
func (g *Gem) Description() string {
	return "Applies a business rule: when the condition holds for a row, the output column receives the output value."
}

// ParameterSchema returns the JSON schema for the persisted parameters.
func (g *Gem) ParameterSchema() *models.JSONSchema {
	closed := false

	return &models.JSONSchema{
		Type:                 "object",
		Title:                MacroName,
		AdditionalProperties: &closed,
		Properties: map[string]*models.Property{
			ParamInputColumn: {
				Type:        "string",
				Description: "Select an existing column from the input dataset to apply the business rule on.",
			},
			ParamOutputColumn: {
				Type:        "string",
				Description: "Name of the output column that stores the result. An existing column is updated.",
			},
			ParamRuleCondition: {
				Type:        "string",
				Description: "Condition to evaluate, e.g. Input_Column > 100",
			},
			ParamRuleOutputValue: {
				Type:        "string",
				Description: "Value to assign when the condition is met, e.g. 'Value is High'",
			},
			ParamSchema: {
				Type:        "string",
				Description: "Cached input schema as a JSON array of {name, dataType}. Maintained by the gem.",
			},
			ParamInputTable: {
				Type:        "string",
				Description: "Resolved upstream relation name. Maintained by the gem.",
			},
		},
	}
}

// LoadProperties converts persisted macro properties into typed Properties.
func (g *Gem) LoadProperties(props models.MacroProperties) (Properties, error) {
	return FromParameters(props.Parameters)
}

// UnloadProperties converts typed Properties into persisted macro properties.
func (g *Gem) UnloadProperties(props Properties) models.MacroProperties {
	return models.MacroProperties{
		MacroName:   MacroName,
		ProjectName: projectName,
		Parameters:  ToParameters(props),
	}
}

// Validate checks port arity, then the properties, then that an upstream relation is resolved.
func (g *Gem) Validate(component models.ComponentRecord) ([]models.Diagnostic, error) {
	diagnostics := g.validatePorts(component.Ports)

	props, err := g.LoadProperties(component.Properties)
	if err != nil {
		return nil, err
	}

	propDiagnostics, err := Validate(props)
	if err != nil {
		return nil, err
	}

	diagnostics = append(diagnostics, propDiagnostics...)

	if len(component.Ports.Inputs) > 0 && props.InputTable() == "" {
		diagnostics = append(diagnostics, models.NewError(PathInputTable,
			"Input port is not connected to an upstream relation."))
	}

	return diagnostics, nil
}

// OnChange refreshes the cached schema and input table of current.
func (g *Gem) OnChange(graph *models.Graph, previous, current models.ComponentRecord) (models.ComponentRecord, error) {
	currentProps, err := g.LoadProperties(current.Properties)
	if err != nil {
		return current, err
	}

	// previous never influences the result, so a malformed previous snapshot is tolerated.
	previousProps, _ := g.LoadProperties(previous.Properties)

	reconciled, err := Reconcile(
		models.Component[Properties]{ID: previous.ID, Gem: previous.Gem, Ports: previous.Ports, Properties: previousProps},
		models.Component[Properties]{ID: current.ID, Gem: current.Gem, Ports: current.Ports, Properties: currentProps},
		graph,
	)
	if err != nil {
		return current, err
	}

	return current.BindProperties(g.UnloadProperties(reconciled.Properties)), nil
}

// Apply renders the component as a macro invocation.
func (g *Gem) Apply(component models.ComponentRecord) (string, error) {
	props, err := g.LoadProperties(component.Properties)
	if err != nil {
		return "", err
	}

	return Emit(props), nil
}

func (g *Gem) validatePorts(ports models.Ports) []models.Diagnostic {
	var diagnostics []models.Diagnostic

	if n := len(ports.Inputs); n < minNumOfInputPorts {
		diagnostics = append(diagnostics, models.NewError(PathInputPorts,
			fmt.Sprintf("At least %d input port(s) required, found %d.", minNumOfInputPorts, n)))
	} else if n > maxNumOfInputPorts {
		diagnostics = append(diagnostics, models.NewError(PathInputPorts,
			fmt.Sprintf("At most %d input port(s) allowed, found %d.", maxNumOfInputPorts, n)))
	}

	if n := len(ports.Outputs); n > maxNumOfOutputPort {
		diagnostics = append(diagnostics, models.NewError(PathOutputPorts,
			fmt.Sprintf("At most %d output port(s) allowed, found %d.", maxNumOfOutputPort, n)))
	}

	return diagnostics
}
