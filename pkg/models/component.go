package models

// ColumnRef references a column of the upstream relation. The zero value means no column is selected.
type ColumnRef struct {
	ColumnName string `json:"columnName"`
}

// Present reports whether a column is selected.
func (c ColumnRef) Present() bool {
	return c.ColumnName != ""
}

// Component is a gem instance with its ports and properties of type P.
type Component[P any] struct {
	ID         string `json:"id"         validate:"required"`
	Gem        string `json:"gem"        validate:"required"`
	Ports      Ports  `json:"ports"`
	Properties P      `json:"properties"`
}

// BindProperties returns a copy of the component bound to props. The receiver is left untouched.
func (c Component[P]) BindProperties(props P) Component[P] {
	c.Properties = props

	return c
}

// ComponentRecord is the persisted form of a component: properties travel as macro parameters.
type ComponentRecord = Component[MacroProperties]
