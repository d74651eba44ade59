// Package bre implements the business rule gem: it derives one output column from an input
// column whenever a rule condition holds, compiled to a single BRE_SQL_Gem_basic macro call.
package bre

import (
	"fmt"

	"github.com/dukex/sqlgems/pkg/models"
	"github.com/dukex/sqlgems/pkg/schema"
)

// Properties is the immutable configuration of a business rule component.
// Values are replaced wholesale through With, never mutated in place.
type Properties struct {
	inputColumn     models.ColumnRef
	outputColumn    string
	ruleCondition   string
	ruleOutputValue string
	schema          string
	inputTable      string
}

// Option sets one field while building Properties.
type Option func(*Properties) error

// NewProperties builds Properties from defaults plus opts.
func NewProperties(opts ...Option) (Properties, error) {
	return Properties{}.With(opts...)
}

// With returns a copy of p with opts applied. p itself is never modified.
func (p Properties) With(opts ...Option) (Properties, error) {
	next := p
	for _, opt := range opts {
		if err := opt(&next); err != nil {
			return p, err
		}
	}

	return next, nil
}

// WithInputColumn selects the source column. An empty name clears the selection.
func WithInputColumn(name string) Option {
	return func(p *Properties) error {
		p.inputColumn = models.ColumnRef{ColumnName: name}

		return nil
	}
}

// WithOutputColumn sets the name of the derived column.
func WithOutputColumn(name string) Option {
	return func(p *Properties) error {
		p.outputColumn = name

		return nil
	}
}

// WithRuleCondition sets the boolean expression text.
func WithRuleCondition(expr string) Option {
	return func(p *Properties) error {
		p.ruleCondition = expr

		return nil
	}
}

// WithRuleOutputValue sets the value expression used when the condition holds.
func WithRuleOutputValue(expr string) Option {
	return func(p *Properties) error {
		p.ruleOutputValue = expr

		return nil
	}
}

// WithSchemaFields caches the upstream schema.
func WithSchemaFields(fields []schema.Field) Option {
	return func(p *Properties) error {
		p.schema = schema.Encode(fields)

		return nil
	}
}

// WithUnknownSchema clears the cached upstream schema.
func WithUnknownSchema() Option {
	return func(p *Properties) error {
		p.schema = ""

		return nil
	}
}

// WithSchemaJSON caches an already serialized schema snapshot. It must be "" or a JSON array
// of {name, dataType} objects.
func WithSchemaJSON(snapshot string) Option {
	return func(p *Properties) error {
		if _, err := schema.Decode(snapshot); err != nil {
			return fmt.Errorf("schema property: %w", err)
		}

		p.schema = snapshot

		return nil
	}
}

// WithInputTable sets the resolved upstream relation name.
func WithInputTable(name string) Option {
	return func(p *Properties) error {
		p.inputTable = name

		return nil
	}
}

func (p Properties) InputColumn() models.ColumnRef { return p.inputColumn }
func (p Properties) OutputColumn() string          { return p.outputColumn }
func (p Properties) RuleCondition() string         { return p.ruleCondition }
func (p Properties) RuleOutputValue() string       { return p.ruleOutputValue }
func (p Properties) InputTable() string            { return p.inputTable }

// Schema returns the cached schema snapshot as stored, "" when unknown.
func (p Properties) Schema() string { return p.schema }

// SchemaFields decodes the cached schema snapshot. It returns nil when no schema is known.
func (p Properties) SchemaFields() ([]schema.Field, error) {
	return schema.Decode(p.schema)
}

// Component is a business rule component bound to typed properties.
type Component = models.Component[Properties]
