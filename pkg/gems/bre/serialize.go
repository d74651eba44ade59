package bre

import "github.com/dukex/sqlgems/pkg/models"

// Parameter keys, in the order they are persisted.
const (
	ParamInputColumn     = "input_column"
	ParamOutputColumn    = "output_column"
	ParamRuleCondition   = "rule_condition"
	ParamRuleOutputValue = "rule_output_value"
	ParamSchema          = "schema"
	ParamInputTable      = "input_table"
)

// ParameterKeys lists every persisted key in order.
var ParameterKeys = []string{
	ParamInputColumn,
	ParamOutputColumn,
	ParamRuleCondition,
	ParamRuleOutputValue,
	ParamSchema,
	ParamInputTable,
}

// ToParameters flattens p into the ordered parameter list.
func ToParameters(p Properties) []models.MacroParameter {
	return []models.MacroParameter{
		{Name: ParamInputColumn, Value: p.inputColumn.ColumnName},
		{Name: ParamOutputColumn, Value: p.outputColumn},
		{Name: ParamRuleCondition, Value: p.ruleCondition},
		{Name: ParamRuleOutputValue, Value: p.ruleOutputValue},
		{Name: ParamSchema, Value: p.schema},
		{Name: ParamInputTable, Value: p.inputTable},
	}
}

// FromParameters rebuilds Properties by key lookup. Missing keys take their defaults and
// unknown keys are ignored. Only a malformed schema snapshot is rejected.
func FromParameters(params []models.MacroParameter) (Properties, error) {
	values := models.MacroProperties{Parameters: params}.ParameterMap()

	return NewProperties(
		WithInputColumn(values[ParamInputColumn]),
		WithOutputColumn(values[ParamOutputColumn]),
		WithRuleCondition(values[ParamRuleCondition]),
		WithRuleOutputValue(values[ParamRuleOutputValue]),
		WithSchemaJSON(values[ParamSchema]),
		WithInputTable(values[ParamInputTable]),
	)
}
