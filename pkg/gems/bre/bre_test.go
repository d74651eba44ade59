package bre_test

import (
	"testing"

	"github.com/dukex/sqlgems/pkg/gems/bre"
	"github.com/dukex/sqlgems/pkg/models"
	"github.com/dukex/sqlgems/pkg/schema"
	"github.com/stretchr/testify/require"
)

const ageSchema = `[{"name":"age","dataType":"integer"}]`

func mustProperties(t *testing.T, opts ...bre.Option) bre.Properties {
	t.Helper()

	props, err := bre.NewProperties(opts...)
	require.NoError(t, err)

	return props
}

func completeProperties(t *testing.T) bre.Properties {
	t.Helper()

	return mustProperties(t,
		bre.WithInputColumn("age"),
		bre.WithOutputColumn("flag"),
		bre.WithRuleCondition("age > 100"),
		bre.WithRuleOutputValue("'old'"),
		bre.WithSchemaFields([]schema.Field{{Name: "age", DataType: "integer"}}),
		bre.WithInputTable("raw_users"),
	)
}

func label(s string) *string {
	return &s
}

func ageDescriptor() map[string]any {
	return map[string]any{
		"type": "struct",
		"fields": []any{
			map[string]any{"name": "age", "dataType": map[string]any{"type": "integer"}},
			map[string]any{"name": "name", "dataType": map[string]any{"type": "string"}},
		},
	}
}

// ruleComponent builds a business rule component on node "rule" with one input port "rule:in0".
func ruleComponent(props bre.Properties, descriptor map[string]any) bre.Component {
	return bre.Component{
		ID:  "rule",
		Gem: bre.MacroName,
		Ports: models.Ports{
			Inputs:  []models.InputPort{{Port: models.Port{ID: "rule:in0", NodeID: "rule", Name: "in0", Schema: descriptor}}},
			Outputs: []models.OutputPort{{Port: models.Port{ID: "rule:out", NodeID: "rule", Name: "out"}}},
		},
		Properties: props,
	}
}

func usersGraph() *models.Graph {
	return &models.Graph{
		Nodes: map[string]*models.Node{
			"users": {ID: "users", Gem: "Source", Label: label("raw_users")},
			"rule":  {ID: "rule", Gem: bre.MacroName, Label: label("flag_old")},
		},
		Connections: []*models.Connection{
			{ID: "c1", Source: "users", SourcePort: "users:out", Target: "rule", TargetPort: "rule:in0"},
		},
	}
}
