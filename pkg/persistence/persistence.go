// Package persistence provides the storage abstraction for pipelines and their components.
package persistence

import (
	"context"

	"github.com/dukex/sqlgems/pkg/models"
)

// Persistence stores pipelines as whole documents. PipelineByID returns nil, nil when the
// pipeline does not exist, and DeletePipeline of a missing pipeline is not an error.
//
// SavePipeline is a compare-and-swap on Pipeline.Version: it writes only when the stored version
// equals pipeline.Version (0 for a pipeline that is not stored yet), then increments
// pipeline.Version. Otherwise it returns an error wrapping ErrVersionConflict.
type Persistence interface {
	Pipelines(ctx context.Context) ([]*models.Pipeline, error)
	SavePipeline(ctx context.Context, pipeline *models.Pipeline) error
	PipelineByID(ctx context.Context, id string) (*models.Pipeline, error)
	DeletePipeline(ctx context.Context, id string) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
