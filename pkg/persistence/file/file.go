// Package file provides file-based persistence for pipelines, one JSON document per pipeline.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/dukex/sqlgems/pkg/models"
	"github.com/dukex/sqlgems/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root         string
	pipelineRepo *PipelineRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		pipelineRepo: NewPipelineRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Pipelines returns every stored pipeline ordered by creation time.
func (fp *Persistence) Pipelines(ctx context.Context) ([]*models.Pipeline, error) {
	return fp.pipelineRepo.GetAll(ctx)
}

// PipelineByID returns the pipeline stored under id, or nil when it does not exist.
func (fp *Persistence) PipelineByID(ctx context.Context, id string) (*models.Pipeline, error) {
	return fp.pipelineRepo.GetByID(ctx, id)
}

// SavePipeline writes the pipeline document, stamping its timestamps.
func (fp *Persistence) SavePipeline(ctx context.Context, pipeline *models.Pipeline) error {
	return fp.pipelineRepo.Save(ctx, pipeline)
}

// DeletePipeline removes the pipeline document.
func (fp *Persistence) DeletePipeline(ctx context.Context, id string) error {
	return fp.pipelineRepo.Delete(ctx, id)
}
