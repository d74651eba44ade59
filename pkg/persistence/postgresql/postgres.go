// Package postgresql provides PostgreSQL persistence for pipelines and their components.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/sqlgems/pkg/models"
	"github.com/dukex/sqlgems/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db           *sql.DB
	logger       *slog.Logger
	pipelineRepo *PipelineRepository
}

// NewPersistence creates a new PostgreSQL persistence layer and migrates the schema.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:           database,
		logger:       logger,
		pipelineRepo: NewPipelineRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Pipelines returns all pipelines from the database.
func (p *Persistence) Pipelines(ctx context.Context) ([]*models.Pipeline, error) {
	return p.pipelineRepo.GetAll(ctx)
}

// PipelineByID returns a pipeline by its ID, or nil when it does not exist.
func (p *Persistence) PipelineByID(ctx context.Context, id string) (*models.Pipeline, error) {
	return p.pipelineRepo.GetByID(ctx, id)
}

// SavePipeline upserts a pipeline and replaces its components.
func (p *Persistence) SavePipeline(ctx context.Context, pipeline *models.Pipeline) error {
	return p.pipelineRepo.Save(ctx, pipeline)
}

// DeletePipeline deletes a pipeline; its components cascade.
func (p *Persistence) DeletePipeline(ctx context.Context, id string) error {
	return p.pipelineRepo.Delete(ctx, id)
}
