package bre

import (
	"fmt"
	"slices"

	"github.com/dukex/sqlgems/pkg/models"
	"github.com/dukex/sqlgems/pkg/schema"
)

// Diagnostic paths.
const (
	PathInputColumn     = "component.properties.input_column"
	PathOutputColumn    = "component.properties.output_column"
	PathRuleCondition   = "component.properties.rule_condition"
	PathRuleOutputValue = "component.properties.rule_output_value"
	PathInputTable      = "component.properties.input_table"
	PathInputPorts      = "component.ports.inputs"
	PathOutputPorts     = "component.ports.outputs"
)

// Validate checks p and reports every problem found, in a fixed order.
// A cached schema that cannot be decoded is returned as an error rather than a diagnostic.
func Validate(p Properties) ([]models.Diagnostic, error) {
	var diagnostics []models.Diagnostic

	if !p.inputColumn.Present() {
		diagnostics = append(diagnostics, models.NewError(PathInputColumn, "Please select an input column."))
	}

	if p.outputColumn == "" {
		diagnostics = append(diagnostics, models.NewError(PathOutputColumn, "Please provide an output column name."))
	}

	if p.ruleCondition == "" {
		diagnostics = append(diagnostics, models.NewError(PathRuleCondition, "Please provide the condition."))
	}

	if p.ruleOutputValue == "" {
		diagnostics = append(diagnostics, models.NewError(PathRuleOutputValue, "Please provide the output value."))
	}

	if p.inputColumn.Present() && p.schema != "" {
		fields, err := p.SchemaFields()
		if err != nil {
			return nil, err
		}

		name := p.inputColumn.ColumnName
		if !slices.Contains(schema.Names(fields), name) {
			diagnostics = append(diagnostics, models.NewError(PathInputColumn,
				fmt.Sprintf("Input column '%s' not found in the input schema.", name)))
		}
	}

	return diagnostics, nil
}
