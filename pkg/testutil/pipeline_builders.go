// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/dukex/sqlgems/pkg/gems/bre"
	"github.com/dukex/sqlgems/pkg/models"
	"github.com/google/uuid"
)

// Node and port identifiers used by the default test pipeline.
const (
	SourceNodeID = "users"
	RuleNodeID   = "rule"
	RuleInputID  = "rule:in0"
	RuleOutputID = "rule:out"
)

// UsersDescriptor returns the port schema descriptor of the raw_users relation.
func UsersDescriptor() map[string]any {
	return map[string]any{
		"type": "struct",
		"fields": []any{
			map[string]any{"name": "age", "dataType": map[string]any{"type": "integer"}},
			map[string]any{"name": "name", "dataType": map[string]any{"type": "string"}},
		},
	}
}

// CreateTestGraph creates a graph where node "users" (label raw_users) feeds the rule node.
func CreateTestGraph(overrides ...func(*models.Graph)) *models.Graph {
	sourceLabel := "raw_users"
	ruleLabel := "flag_old"

	graph := &models.Graph{
		Nodes: map[string]*models.Node{
			SourceNodeID: {ID: SourceNodeID, Gem: "Source", Label: &sourceLabel},
			RuleNodeID:   {ID: RuleNodeID, Gem: bre.MacroName, Label: &ruleLabel},
		},
		Connections: []*models.Connection{
			{
				ID:         uuid.New().String(),
				Source:     SourceNodeID,
				SourcePort: models.MakePortID(SourceNodeID, "out"),
				Target:     RuleNodeID,
				TargetPort: RuleInputID,
			},
		},
	}

	for _, override := range overrides {
		override(graph)
	}

	return graph
}

// WithoutConnections removes every connection from the graph.
func WithoutConnections() func(*models.Graph) {
	return func(g *models.Graph) {
		g.Connections = nil
	}
}

// CreateTestComponent creates a business rule component record for the rule node with
// user-entered parameters only; schema and input_table are left for reconciliation.
func CreateTestComponent(overrides ...func(*models.ComponentRecord)) *models.ComponentRecord {
	component := &models.ComponentRecord{
		ID:  RuleNodeID,
		Gem: bre.MacroName,
		Ports: models.Ports{
			Inputs: []models.InputPort{{Port: models.Port{
				ID: RuleInputID, NodeID: RuleNodeID, Name: "in0", Schema: UsersDescriptor(),
			}}},
			Outputs: []models.OutputPort{{Port: models.Port{
				ID: RuleOutputID, NodeID: RuleNodeID, Name: "out",
			}}},
		},
		Properties: models.MacroProperties{
			MacroName:   bre.MacroName,
			ProjectName: "SQLGems",
			Parameters: []models.MacroParameter{
				{Name: bre.ParamInputColumn, Value: "age"},
				{Name: bre.ParamOutputColumn, Value: "flag"},
				{Name: bre.ParamRuleCondition, Value: "age > 100"},
				{Name: bre.ParamRuleOutputValue, Value: "'old'"},
			},
		},
	}

	for _, override := range overrides {
		override(component)
	}

	return component
}

// WithParameter sets or appends a parameter on the component.
func WithParameter(name, value string) func(*models.ComponentRecord) {
	return func(c *models.ComponentRecord) {
		params := make([]models.MacroParameter, 0, len(c.Properties.Parameters)+1)
		replaced := false

		for _, param := range c.Properties.Parameters {
			if param.Name == name {
				param.Value = value
				replaced = true
			}

			params = append(params, param)
		}

		if !replaced {
			params = append(params, models.MacroParameter{Name: name, Value: value})
		}

		c.Properties.Parameters = params
	}
}

// WithInputSchema replaces the schema descriptor of the first input port.
func WithInputSchema(descriptor map[string]any) func(*models.ComponentRecord) {
	return func(c *models.ComponentRecord) {
		if len(c.Ports.Inputs) > 0 {
			c.Ports.Inputs[0].Schema = descriptor
		}
	}
}

// CreateTestPipeline creates a pipeline holding the test graph and the rule component.
func CreateTestPipeline(overrides ...func(*models.Pipeline)) *models.Pipeline {
	pipeline := &models.Pipeline{
		ID:          uuid.New().String(),
		Name:        "Test Pipeline",
		Description: "Flags old users",
		Graph:       *CreateTestGraph(),
		Components: map[string]*models.ComponentRecord{
			RuleNodeID: CreateTestComponent(),
		},
	}

	for _, override := range overrides {
		override(pipeline)
	}

	return pipeline
}

// WithPipelineName sets the pipeline name.
func WithPipelineName(name string) func(*models.Pipeline) {
	return func(p *models.Pipeline) {
		p.Name = name
	}
}

// WithGraph replaces the pipeline graph.
func WithGraph(graph *models.Graph) func(*models.Pipeline) {
	return func(p *models.Pipeline) {
		p.Graph = *graph
	}
}

// WithComponent sets the component of its node.
func WithComponent(component *models.ComponentRecord) func(*models.Pipeline) {
	return func(p *models.Pipeline) {
		if p.Components == nil {
			p.Components = map[string]*models.ComponentRecord{}
		}

		p.Components[component.ID] = component
	}
}

// WithoutComponents removes every component from the pipeline.
func WithoutComponents() func(*models.Pipeline) {
	return func(p *models.Pipeline) {
		p.Components = map[string]*models.ComponentRecord{}
	}
}
