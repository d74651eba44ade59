// Package models defines the pipeline graph, component and gem configuration models.
package models

// Node is a component instance placed on a pipeline graph.
type Node struct {
	ID    string  `json:"id"              validate:"required"`
	Gem   string  `json:"gem,omitempty"`
	Label *string `json:"label,omitempty"` // Relation name exposed to downstream nodes
}

// LabelOrEmpty returns the node label, or "" when the node has none.
func (n *Node) LabelOrEmpty() string {
	if n == nil || n.Label == nil {
		return ""
	}

	return *n.Label
}

// Connection links an output port of one node to an input port of another.
type Connection struct {
	ID         string `json:"id"`
	Source     string `json:"source"      validate:"required"` // Upstream node ID
	SourcePort string `json:"source_port"`                     // References Port.ID: "{node_id}:{port_name}"
	Target     string `json:"target"`                          // Downstream node ID
	TargetPort string `json:"target_port" validate:"required"` // References Port.ID: "{node_id}:{port_name}"
}

// Graph is the read-only view of a pipeline the gems compile against.
type Graph struct {
	Nodes       map[string]*Node `json:"nodes"       validate:"dive"`
	Connections []*Connection    `json:"connections" validate:"dive"`
}

// Node returns the node registered under id, or nil.
func (g *Graph) Node(id string) *Node {
	if g == nil || g.Nodes == nil {
		return nil
	}

	return g.Nodes[id]
}
