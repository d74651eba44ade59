// Package events defines the notifications emitted when pipelines and their components change.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every pipeline event.
const Topic = "sqlgems.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	PipelineGraphChangedEvent EventType = "pipeline.graph_changed"
	ComponentReconciledEvent  EventType = "component.reconciled"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	PipelineID string         `json:"pipeline_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent creates the common event envelope.
func NewBaseEvent(eventType EventType, pipelineID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		PipelineID: pipelineID,
		Metadata:   make(map[string]any),
	}
}

// PipelineGraphChanged is published after the nodes or connections of a pipeline are replaced.
// Every component of the pipeline needs reconciling afterwards.
type PipelineGraphChanged struct {
	BaseEvent

	NodeCount       int `json:"node_count"`
	ConnectionCount int `json:"connection_count"`
}

func (e PipelineGraphChanged) GetType() EventType {
	return PipelineGraphChangedEvent
}

// ComponentReconciled is published when reconciliation changed the properties of a component.
type ComponentReconciled struct {
	BaseEvent

	NodeID              string `json:"node_id"`
	Gem                 string `json:"gem"`
	PreviousFingerprint string `json:"previous_fingerprint"`
	Fingerprint         string `json:"fingerprint"`
}

func (e ComponentReconciled) GetType() EventType {
	return ComponentReconciledEvent
}
