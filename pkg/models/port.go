package models

// Port represents a connection point on a component.
type Port struct {
	ID     string         `json:"id"                validate:"required"` // Globally unique: "{nodeID}:{portName}"
	NodeID string         `json:"node_id,omitempty"`
	Name   string         `json:"name,omitempty"`
	Schema map[string]any `json:"schema,omitempty"` // Raw descriptor: {"fields": [{"name", "dataType": {"type"}}]}
}

// InputPort extends Port with input-specific properties.
type InputPort struct {
	Port
}

// OutputPort extends Port with output-specific properties.
type OutputPort struct {
	Port
}

// PortDirection represents the direction of data flow for a port.
type PortDirection string

const (
	PortDirectionInput  PortDirection = "input"
	PortDirectionOutput PortDirection = "output"
)

// GetDirection returns the direction of the port based on its type.
func (p InputPort) GetDirection() PortDirection {
	return PortDirectionInput
}

// GetDirection returns the direction of the port based on its type.
func (p OutputPort) GetDirection() PortDirection {
	return PortDirectionOutput
}

// Ports holds the ordered input and output ports of a component.
type Ports struct {
	Inputs  []InputPort  `json:"inputs"  validate:"dive"`
	Outputs []OutputPort `json:"outputs" validate:"dive"`
}

// ParsePortID parses a port ID in format "{node_id}:{port_name}" into components.
func ParsePortID(portID string) (string, string, bool) {
	for i := range len(portID) {
		if portID[i] == ':' {
			return portID[:i], portID[i+1:], true
		}
	}

	return "", "", false
}

// MakePortID creates a port ID from node ID and port name.
func MakePortID(nodeID, portName string) string {
	return nodeID + ":" + portName
}
