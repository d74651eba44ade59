package redis_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/sqlgems/pkg/persistence"
	sqlgemsredis "github.com/dukex/sqlgems/pkg/persistence/redis"
	"github.com/dukex/sqlgems/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) (*sqlgemsredis.Persistence, context.Context) {
	t.Helper()

	if os.Getenv("SQLGEMS_INTEGRATION") != "1" {
		t.Skip("set SQLGEMS_INTEGRATION=1 to run Redis integration tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	t.Cleanup(cancel)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := sqlgemsredis.NewPersistence(ctx, logger, fmt.Sprintf("redis://%s/0", endpoint))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = store.Close(context.Background())
	})

	return store, ctx
}

func TestNewPersistence_InvalidURL(t *testing.T) {
	t.Parallel()

	_, err := sqlgemsredis.NewPersistence(t.Context(), slog.Default(), "http://not-redis")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Redis URL")
}

func TestPersistence_PipelineLifecycle(t *testing.T) {
	store, ctx := setupRedis(t)

	require.NoError(t, store.HealthCheck(ctx))

	first := testutil.CreateTestPipeline(testutil.WithPipelineName("first"))
	require.NoError(t, store.SavePipeline(ctx, first))

	second := testutil.CreateTestPipeline(testutil.WithPipelineName("second"))
	require.NoError(t, store.SavePipeline(ctx, second))

	loaded, err := store.PipelineByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first, loaded)

	all, err := store.Pipelines(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "first", all[0].Name)

	require.NoError(t, store.DeletePipeline(ctx, first.ID))

	loaded, err = store.PipelineByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	all, err = store.Pipelines(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, second.ID, all[0].ID)
}

func TestPersistence_RejectsInvalidID(t *testing.T) {
	store, ctx := setupRedis(t)

	_, err := store.PipelineByID(ctx, "a/b")
	assert.True(t, persistence.IsInvalidPipelineID(err))
}

func TestPersistence_StaleSaveConflicts(t *testing.T) {
	store, ctx := setupRedis(t)

	pipeline := testutil.CreateTestPipeline()
	require.NoError(t, store.SavePipeline(ctx, pipeline))
	assert.Equal(t, int64(1), pipeline.Version)

	stale, err := store.PipelineByID(ctx, pipeline.ID)
	require.NoError(t, err)

	pipeline.Name = "Renamed"
	require.NoError(t, store.SavePipeline(ctx, pipeline))

	stale.Name = "Stale"
	err = store.SavePipeline(ctx, stale)
	require.ErrorIs(t, err, persistence.ErrVersionConflict)
	assert.Equal(t, int64(1), stale.Version)

	loaded, err := store.PipelineByID(ctx, pipeline.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", loaded.Name)
	assert.Equal(t, int64(2), loaded.Version)
}
