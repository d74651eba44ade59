package bre

import "fmt"

// MacroName is the macro invoked by the generated code.
const MacroName = "BRE_SQL_Gem_basic"

const macroTemplate = `{{ %s(input_table='%s', input_column='%s', output_column='%s', rule_condition="""%s""", rule_output_value="""%s""") }}`

// Emit renders p as a macro invocation. Identifiers are single-quoted; the two expressions are
// triple-double-quoted so embedded quotes and newlines pass through unescaped. Emit does not
// validate: callers run Validate first.
func Emit(p Properties) string {
	return fmt.Sprintf(macroTemplate,
		MacroName,
		p.inputTable,
		p.inputColumn.ColumnName,
		p.outputColumn,
		p.ruleCondition,
		p.ruleOutputValue,
	)
}
