package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dukex/sqlgems/pkg/models"
	"github.com/dukex/sqlgems/pkg/persistence"
)

const pipelinesDir = "pipelines"

// PipelineRepository handles pipeline-related file operations. Version checks are serialized
// in-process only; the file store is meant for a single process.
type PipelineRepository struct {
	root string // File system root for storing pipelines
	mu   sync.Mutex
}

// NewPipelineRepository creates a new pipeline repository.
func NewPipelineRepository(root string) *PipelineRepository {
	return &PipelineRepository{root: root}
}

// GetAll loads every pipeline document, oldest first.
func (pr *PipelineRepository) GetAll(ctx context.Context) ([]*models.Pipeline, error) {
	root := os.DirFS(filepath.Join(pr.root, pipelinesDir))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list pipeline files: %w", err)
	}

	pipelines := make([]*models.Pipeline, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		pipelineID := strings.TrimSuffix(file, ".json")

		pipeline, err := pr.GetByID(ctx, pipelineID)
		if err != nil {
			return nil, fmt.Errorf("failed to load pipeline %s: %w", pipelineID, err)
		}

		if pipeline != nil {
			pipelines = append(pipelines, pipeline)
		}
	}

	sort.SliceStable(pipelines, func(i, j int) bool {
		if pipelines[i].CreatedAt.Equal(pipelines[j].CreatedAt) {
			return pipelines[i].ID < pipelines[j].ID
		}

		return pipelines[i].CreatedAt.Before(pipelines[j].CreatedAt)
	})

	return pipelines, nil
}

// GetByID retrieves a pipeline by its ID from the file system.
func (pr *PipelineRepository) GetByID(_ context.Context, pipelineID string) (*models.Pipeline, error) {
	if err := persistence.ValidatePipelineID(pipelineID); err != nil {
		return nil, err
	}

	body, err := os.ReadFile(pr.path(pipelineID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch pipeline %s: %w", pipelineID, err)
	}

	var pipeline models.Pipeline

	err = json.Unmarshal(body, &pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal pipeline %s: %w", pipelineID, err)
	}

	return &pipeline, nil
}

// Save saves a pipeline to the file system when its version matches the stored one.
func (pr *PipelineRepository) Save(ctx context.Context, pipeline *models.Pipeline) error {
	if err := persistence.ValidatePipelineID(pipeline.ID); err != nil {
		return err
	}

	pr.mu.Lock()
	defer pr.mu.Unlock()

	stored, err := pr.GetByID(ctx, pipeline.ID)
	if err != nil {
		return err
	}

	var storedVersion int64
	if stored != nil {
		storedVersion = stored.Version
	}

	if storedVersion != pipeline.Version {
		return persistence.NewVersionConflictError("Save", pipeline.ID, pipeline.Version, storedVersion)
	}

	err = os.MkdirAll(filepath.Join(pr.root, pipelinesDir), 0750)
	if err != nil {
		return fmt.Errorf("failed to create pipelines directory: %w", err)
	}

	next := *pipeline

	now := time.Now().UTC()
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}

	next.UpdatedAt = now
	next.Version++

	data, err := json.MarshalIndent(&next, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal pipeline %s: %w", pipeline.ID, err)
	}

	err = os.WriteFile(pr.path(pipeline.ID), data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write pipeline %s: %w", pipeline.ID, err)
	}

	*pipeline = next

	return nil
}

// Delete removes a pipeline by its ID.
func (pr *PipelineRepository) Delete(_ context.Context, id string) error {
	if err := persistence.ValidatePipelineID(id); err != nil {
		return err
	}

	pr.mu.Lock()
	defer pr.mu.Unlock()

	err := os.Remove(pr.path(id))

	if err != nil && os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to delete pipeline %s: %w", id, err)
	}

	return nil
}

func (pr *PipelineRepository) path(id string) string {
	return filepath.Clean(filepath.Join(pr.root, pipelinesDir, id+".json"))
}
