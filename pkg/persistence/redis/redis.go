// Package redis provides Redis persistence for pipelines: each pipeline is one JSON value
// plus a membership entry in an index set.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dukex/sqlgems/pkg/models"
	"github.com/dukex/sqlgems/pkg/persistence"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "sqlgems:pipeline:"
	indexKey  = "sqlgems:pipelines"
)

// Persistence implements the persistence layer on top of Redis.
type Persistence struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewPersistence connects to the Redis server addressed by redisURL (redis://host:port/db).
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL string) (*Persistence, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return NewPersistenceWithClient(ctx, logger, redis.NewClient(options))
}

// NewPersistenceWithClient wraps an existing client after checking it is reachable.
func NewPersistenceWithClient(ctx context.Context, logger *slog.Logger, client redis.UniversalClient) (*Persistence, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis")

	return &Persistence{client: client, logger: logger}, nil
}

func pipelineKey(id string) string {
	return keyPrefix + id
}

// Close closes the Redis client.
func (p *Persistence) Close(_ context.Context) error {
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	return nil
}

// HealthCheck pings the Redis server.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	return nil
}

// Pipelines returns every indexed pipeline, oldest first. Index entries whose value has
// disappeared are skipped.
func (p *Persistence) Pipelines(ctx context.Context) ([]*models.Pipeline, error) {
	ids, err := p.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline index: %w", err)
	}

	pipelines := make([]*models.Pipeline, 0, len(ids))
	if len(ids) == 0 {
		return pipelines, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, pipelineKey(id))
	}

	values, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read pipelines: %w", err)
	}

	for i, value := range values {
		body, ok := value.(string)
		if !ok {
			p.logger.WarnContext(ctx, "Pipeline indexed but missing", "pipeline_id", ids[i])

			continue
		}

		pipeline, err := decode(ids[i], []byte(body))
		if err != nil {
			return nil, err
		}

		pipelines = append(pipelines, pipeline)
	}

	sort.SliceStable(pipelines, func(i, j int) bool {
		if pipelines[i].CreatedAt.Equal(pipelines[j].CreatedAt) {
			return pipelines[i].ID < pipelines[j].ID
		}

		return pipelines[i].CreatedAt.Before(pipelines[j].CreatedAt)
	})

	return pipelines, nil
}

// PipelineByID returns the pipeline stored under id, or nil when it does not exist.
func (p *Persistence) PipelineByID(ctx context.Context, id string) (*models.Pipeline, error) {
	if err := persistence.ValidatePipelineID(id); err != nil {
		return nil, err
	}

	body, err := p.client.Get(ctx, pipelineKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch pipeline %s: %w", id, err)
	}

	return decode(id, body)
}

// SavePipeline writes the pipeline value and its index entry atomically. The key is watched so
// a write racing with another save fails with a version conflict.
func (p *Persistence) SavePipeline(ctx context.Context, pipeline *models.Pipeline) error {
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

	body, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to marshal pipeline %s: %w", pipeline.ID, err)
	}

	key := pipelineKey(pipeline.ID)

	err = p.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := storedVersion(ctx, tx, pipeline.ID)
		if err != nil {
			return err
		}

		if stored != pipeline.Version {
			return persistence.NewVersionConflictError("Save", pipeline.ID, pipeline.Version, stored)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, body, 0)
			pipe.SAdd(ctx, indexKey, pipeline.ID)

			return nil
		})

		return err
	}, key)

	switch {
	case errors.Is(err, redis.TxFailedErr):
		return &persistence.PipelineError{
			Op:         "Save",
			PipelineID: pipeline.ID,
			Err:        persistence.ErrVersionConflict,
			Message:    "pipeline changed during save",
		}
	case persistence.IsVersionConflict(err):
		return err
	case err != nil:
		return fmt.Errorf("failed to save pipeline %s: %w", pipeline.ID, err)
	}

	*pipeline = next

	return nil
}

func storedVersion(ctx context.Context, tx *redis.Tx, id string) (int64, error) {
	body, err := tx.Get(ctx, pipelineKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("failed to fetch pipeline %s: %w", id, err)
	}

	stored, err := decode(id, body)
	if err != nil {
		return 0, err
	}

	return stored.Version, nil
}

// DeletePipeline removes the pipeline value and its index entry.
func (p *Persistence) DeletePipeline(ctx context.Context, id string) error {
	if err := persistence.ValidatePipelineID(id); err != nil {
		return err
	}

	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, pipelineKey(id))
		pipe.SRem(ctx, indexKey, id)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete pipeline %s: %w", id, err)
	}

	return nil
}

func decode(id string, body []byte) (*models.Pipeline, error) {
	var pipeline models.Pipeline

	if err := json.Unmarshal(body, &pipeline); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pipeline %s: %w", id, err)
	}

	return &pipeline, nil
}
