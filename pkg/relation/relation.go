// Package relation resolves the upstream relations feeding a component's input ports.
package relation

import "github.com/dukex/sqlgems/pkg/models"

// Names returns, for each input port in order, the label of the node feeding it.
// Every connection is scanned and the last one targeting a port wins, since the host does not
// guarantee single-producer ports. Unconnected ports and unlabelled or unknown nodes yield "".
func Names(inputs []models.InputPort, graph *models.Graph) []string {
	names := make([]string, 0, len(inputs))

	for _, port := range inputs {
		names = append(names, graph.Node(upstreamNodeID(port.ID, graph)).LabelOrEmpty())
	}

	return names
}

// First returns the relation feeding the first input port, or "".
func First(inputs []models.InputPort, graph *models.Graph) string {
	if len(inputs) == 0 {
		return ""
	}

	return Names(inputs[:1], graph)[0]
}

func upstreamNodeID(portID string, graph *models.Graph) string {
	if graph == nil {
		return ""
	}

	source := ""

	for _, connection := range graph.Connections {
		if connection != nil && connection.TargetPort == portID {
			source = connection.Source
		}
	}

	return source
}
