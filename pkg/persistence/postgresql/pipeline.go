package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/sqlgems/pkg/models"
	"github.com/dukex/sqlgems/pkg/persistence"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// PipelineRepository handles pipeline-related database operations.
type PipelineRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPipelineRepository creates a new pipeline repository.
func NewPipelineRepository(db *sql.DB, logger *slog.Logger) *PipelineRepository {
	return &PipelineRepository{db: db, logger: logger}
}

// GetAll returns all pipelines, oldest first.
func (r *PipelineRepository) GetAll(ctx context.Context) ([]*models.Pipeline, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , graph
		  , created_at
		  , updated_at
		  , version
		FROM pipelines
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipelines: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	pipelines := make([]*models.Pipeline, 0)

	for rows.Next() {
		pipeline, err := r.scanPipeline(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pipeline: %w", err)
		}

		pipelines = append(pipelines, pipeline)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating pipelines: %w", err)
	}

	for _, pipeline := range pipelines {
		err := r.loadComponents(ctx, pipeline)
		if err != nil {
			return nil, err
		}
	}

	return pipelines, nil
}

// GetByID returns the pipeline with its components, or nil when it does not exist.
func (r *PipelineRepository) GetByID(ctx context.Context, id string) (*models.Pipeline, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , graph
		  , created_at
		  , updated_at
		  , version
		FROM pipelines
		WHERE id = $1
	`

	pipeline, err := r.scanPipeline(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan pipeline: %w", err)
	}

	err = r.loadComponents(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	return pipeline, nil
}

// Save writes the pipeline row and replaces its component rows in one transaction. A new
// pipeline (version 0) is inserted; a stored one is updated only while its version is unchanged.
func (r *PipelineRepository) Save(ctx context.Context, pipeline *models.Pipeline) (err error) {
	if err := persistence.ValidatePipelineID(pipeline.ID); err != nil {
		return err
	}

	next := *pipeline

	now := time.Now().UTC()
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}

	next.UpdatedAt = now
	next.Version++

	graphJSON, err := json.Marshal(next.Graph)
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var result sql.Result

	if pipeline.Version == 0 {
		insertQuery := `
			INSERT INTO pipelines (id, name, description, graph, created_at, updated_at, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`

		result, err = tx.ExecContext(ctx, insertQuery,
			next.ID,
			next.Name,
			next.Description,
			graphJSON,
			next.CreatedAt,
			next.UpdatedAt,
			next.Version,
		)
	} else {
		updateQuery := `
			UPDATE pipelines SET
				name = $2,
				description = $3,
				graph = $4,
				updated_at = $5,
				version = $6
			WHERE id = $1 AND version = $7
		`

		result, err = tx.ExecContext(ctx, updateQuery,
			next.ID,
			next.Name,
			next.Description,
			graphJSON,
			next.UpdatedAt,
			next.Version,
			pipeline.Version,
		)
	}

	if err != nil {
		return fmt.Errorf("failed to save pipeline: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save pipeline: %w", err)
	}

	if affected == 0 {
		err = r.versionConflict(ctx, tx, pipeline)

		return err
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM pipeline_components WHERE pipeline_id = $1", next.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing components: %w", err)
	}

	err = r.saveComponents(ctx, tx, &next)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	*pipeline = next

	return nil
}

// versionConflict builds the error for a save that matched no row.
func (r *PipelineRepository) versionConflict(ctx context.Context, tx *sql.Tx, pipeline *models.Pipeline) error {
	var stored int64

	err := tx.QueryRowContext(ctx, "SELECT version FROM pipelines WHERE id = $1", pipeline.ID).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read pipeline version: %w", err)
	}

	return persistence.NewVersionConflictError("Save", pipeline.ID, pipeline.Version, stored)
}

// Delete removes a pipeline. Deleting a missing pipeline is not an error.
func (r *PipelineRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM pipelines WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete pipeline: %w", err)
	}

	return nil
}

func (r *PipelineRepository) scanPipeline(row rowScanner) (*models.Pipeline, error) {
	var (
		pipeline  models.Pipeline
		graphJSON []byte
	)

	err := row.Scan(
		&pipeline.ID,
		&pipeline.Name,
		&pipeline.Description,
		&graphJSON,
		&pipeline.CreatedAt,
		&pipeline.UpdatedAt,
		&pipeline.Version,
	)
	if err != nil {
		return nil, err
	}

	if graphJSON != nil {
		err := json.Unmarshal(graphJSON, &pipeline.Graph)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal graph: %w", err)
		}
	}

	pipeline.CreatedAt = pipeline.CreatedAt.UTC()
	pipeline.UpdatedAt = pipeline.UpdatedAt.UTC()

	return &pipeline, nil
}

func (r *PipelineRepository) saveComponents(ctx context.Context, tx *sql.Tx, pipeline *models.Pipeline) error {
	query := `
		INSERT INTO pipeline_components (pipeline_id, node_id, gem, ports, properties, fingerprint)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for nodeID, component := range pipeline.Components {
		if component == nil {
			continue
		}

		portsJSON, err := json.Marshal(component.Ports)
		if err != nil {
			return fmt.Errorf("failed to marshal ports of %s: %w", nodeID, err)
		}

		propertiesJSON, err := json.Marshal(component.Properties)
		if err != nil {
			return fmt.Errorf("failed to marshal properties of %s: %w", nodeID, err)
		}

		_, err = tx.ExecContext(ctx, query,
			pipeline.ID,
			nodeID,
			component.Gem,
			portsJSON,
			propertiesJSON,
			component.Properties.Fingerprint(),
		)
		if err != nil {
			return fmt.Errorf("failed to save component %s: %w", nodeID, err)
		}
	}

	return nil
}

func (r *PipelineRepository) loadComponents(ctx context.Context, pipeline *models.Pipeline) error {
	query := `
		SELECT node_id, gem, ports, properties
		FROM pipeline_components
		WHERE pipeline_id = $1
		ORDER BY node_id
	`

	rows, err := r.db.QueryContext(ctx, query, pipeline.ID)
	if err != nil {
		return fmt.Errorf("failed to query components of pipeline %s: %w", pipeline.ID, err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	pipeline.Components = make(map[string]*models.ComponentRecord)

	for rows.Next() {
		var (
			component                 models.ComponentRecord
			portsJSON, propertiesJSON []byte
		)

		err := rows.Scan(&component.ID, &component.Gem, &portsJSON, &propertiesJSON)
		if err != nil {
			return fmt.Errorf("failed to scan component: %w", err)
		}

		err = json.Unmarshal(portsJSON, &component.Ports)
		if err != nil {
			return fmt.Errorf("failed to unmarshal ports of %s: %w", component.ID, err)
		}

		err = json.Unmarshal(propertiesJSON, &component.Properties)
		if err != nil {
			return fmt.Errorf("failed to unmarshal properties of %s: %w", component.ID, err)
		}

		pipeline.Components[component.ID] = &component
	}

	err = rows.Err()
	if err != nil {
		return fmt.Errorf("error iterating components: %w", err)
	}

	return nil
}
