package models

import "time"

// Pipeline is a graph of nodes plus the gem components configured on them.
type Pipeline struct {
	ID          string                      `json:"id"`
	Name        string                      `json:"name"        validate:"required,min=1"`
	Description string                      `json:"description"`
	Graph       Graph                       `json:"graph"`
	Components  map[string]*ComponentRecord `json:"components"` // Keyed by node ID
	Version     int64                       `json:"version"`    // Stored revision, 0 before the first save
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

// Component returns the component configured on the node, or nil.
func (p *Pipeline) Component(nodeID string) *ComponentRecord {
	if p.Components == nil {
		return nil
	}

	return p.Components[nodeID]
}
