package bre_test

import (
	"testing"

	"github.com/dukex/sqlgems/pkg/gems/bre"
	"github.com/dukex/sqlgems/pkg/models"
	"github.com/dukex/sqlgems/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToParameters_Order(t *testing.T) {
	t.Parallel()

	params := bre.ToParameters(completeProperties(t))

	names := make([]string, 0, len(params))
	for _, p := range params {
		names = append(names, p.Name)
	}

	assert.Equal(t, bre.ParameterKeys, names)
	assert.Equal(t, []models.MacroParameter{
		{Name: "input_column", Value: "age"},
		{Name: "output_column", Value: "flag"},
		{Name: "rule_condition", Value: "age > 100"},
		{Name: "rule_output_value", Value: "'old'"},
		{Name: "schema", Value: ageSchema},
		{Name: "input_table", Value: "raw_users"},
	}, params)
}

func TestFromParameters_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, props := range []bre.Properties{completeProperties(t), mustProperties(t)} {
		restored, err := bre.FromParameters(bre.ToParameters(props))
		require.NoError(t, err)
		assert.Equal(t, props, restored)
	}
}

func TestFromParameters_Lenient(t *testing.T) {
	t.Parallel()

	props, err := bre.FromParameters([]models.MacroParameter{
		{Name: "rule_condition", Value: "a > 1"},
		{Name: "unknown", Value: "ignored"},
		{Name: "output_column", Value: "first"},
		{Name: "output_column", Value: "second"},
	})
	require.NoError(t, err)

	assert.Equal(t, "a > 1", props.RuleCondition())
	assert.Equal(t, "second", props.OutputColumn())
	assert.False(t, props.InputColumn().Present())
	assert.Empty(t, props.Schema())
	assert.Empty(t, props.InputTable())
}

func TestFromParameters_MalformedSchema(t *testing.T) {
	t.Parallel()

	for _, snapshot := range []string{
		"[{",
		`[null]`,
		`[{}]`,
		`[{"dataType":"integer"}]`,
		`[{"name":"age"}]`,
		"[{\"name\":\"a\xffb\",\"dataType\":\"string\"}]",
	} {
		_, err := bre.FromParameters([]models.MacroParameter{
			{Name: bre.ParamInputColumn, Value: "age"},
			{Name: bre.ParamSchema, Value: snapshot},
		})
		require.Error(t, err, snapshot)
		assert.True(t, schema.IsFormatError(err), snapshot)

		_, err = bre.NewProperties(bre.WithSchemaJSON(snapshot))
		assert.True(t, schema.IsFormatError(err), snapshot)
	}
}
