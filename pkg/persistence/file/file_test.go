package file_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukex/sqlgems/pkg/models"
	"github.com/dukex/sqlgems/pkg/persistence"
	"github.com/dukex/sqlgems/pkg/persistence/file"
	"github.com/dukex/sqlgems/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistence_HealthCheck(t *testing.T) {
	t.Parallel()

	assert.NoError(t, file.NewPersistence(t.TempDir()).HealthCheck(t.Context()))
	assert.NoError(t, file.NewPersistence("file://"+t.TempDir()).HealthCheck(t.Context()))
	assert.ErrorIs(t, file.NewPersistence(filepath.Join(t.TempDir(), "missing")).HealthCheck(t.Context()), os.ErrNotExist)
}

func TestPersistence_Close(t *testing.T) {
	t.Parallel()

	assert.NoError(t, file.NewPersistence(t.TempDir()).Close(t.Context()))
}

func TestPersistence_SaveAndLoadPipeline(t *testing.T) {
	t.Parallel()

	testDir := t.TempDir()
	store := file.NewPersistence(testDir)
	pipeline := testutil.CreateTestPipeline()

	err := store.SavePipeline(t.Context(), pipeline)
	require.NoError(t, err)

	assert.False(t, pipeline.CreatedAt.IsZero())
	assert.False(t, pipeline.UpdatedAt.IsZero())
	assert.FileExists(t, filepath.Join(testDir, "pipelines", pipeline.ID+".json"))

	loaded, err := store.PipelineByID(t.Context(), pipeline.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline, loaded)
}

func TestPersistence_SaveKeepsCreatedAt(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	pipeline := testutil.CreateTestPipeline(func(p *models.Pipeline) { p.CreatedAt = created })

	require.NoError(t, store.SavePipeline(t.Context(), pipeline))

	assert.Equal(t, created, pipeline.CreatedAt)
	assert.True(t, pipeline.UpdatedAt.After(created))
}

func TestPersistence_PipelineByIDMissing(t *testing.T) {
	t.Parallel()

	pipeline, err := file.NewPersistence(t.TempDir()).PipelineByID(t.Context(), "missing")
	require.NoError(t, err)
	assert.Nil(t, pipeline)
}

func TestPersistence_Pipelines(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())

	pipelines, err := store.Pipelines(t.Context())
	require.NoError(t, err)
	assert.Empty(t, pipelines)

	first := testutil.CreateTestPipeline(testutil.WithPipelineName("first"), func(p *models.Pipeline) {
		p.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	})
	second := testutil.CreateTestPipeline(testutil.WithPipelineName("second"), func(p *models.Pipeline) {
		p.CreatedAt = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	})

	require.NoError(t, store.SavePipeline(t.Context(), second))
	require.NoError(t, store.SavePipeline(t.Context(), first))

	pipelines, err = store.Pipelines(t.Context())
	require.NoError(t, err)
	require.Len(t, pipelines, 2)
	assert.Equal(t, "first", pipelines[0].Name)
	assert.Equal(t, "second", pipelines[1].Name)
}

func TestPersistence_DeletePipeline(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	pipeline := testutil.CreateTestPipeline()

	require.NoError(t, store.SavePipeline(t.Context(), pipeline))
	require.NoError(t, store.DeletePipeline(t.Context(), pipeline.ID))

	loaded, err := store.PipelineByID(t.Context(), pipeline.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	assert.NoError(t, store.DeletePipeline(t.Context(), pipeline.ID), "deleting twice is not an error")
}

func TestPersistence_RejectsPathIDs(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())

	err := store.SavePipeline(t.Context(), testutil.CreateTestPipeline(func(p *models.Pipeline) { p.ID = "../escape" }))
	assert.True(t, persistence.IsInvalidPipelineID(err))

	_, err = store.PipelineByID(t.Context(), "../escape")
	assert.True(t, persistence.IsInvalidPipelineID(err))

	assert.True(t, persistence.IsInvalidPipelineID(store.DeletePipeline(t.Context(), "")))
}

func TestPersistence_CorruptDocument(t *testing.T) {
	t.Parallel()

	testDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(testDir, "pipelines"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(testDir, "pipelines", "broken.json"), []byte("{"), 0o600))

	store := file.NewPersistence(testDir)

	_, err := store.PipelineByID(t.Context(), "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	_, err = store.Pipelines(t.Context())
	require.Error(t, err)
}

func TestPersistence_SaveVersioning(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	pipeline := testutil.CreateTestPipeline()

	require.NoError(t, store.SavePipeline(t.Context(), pipeline))
	assert.Equal(t, int64(1), pipeline.Version)

	stale, err := store.PipelineByID(t.Context(), pipeline.ID)
	require.NoError(t, err)

	pipeline.Name = "Renamed"
	require.NoError(t, store.SavePipeline(t.Context(), pipeline))
	assert.Equal(t, int64(2), pipeline.Version)

	tests := []struct {
		name     string
		pipeline *models.Pipeline
	}{
		{name: "stale copy", pipeline: stale},
		{name: "new pipeline reusing an id", pipeline: testutil.CreateTestPipeline(func(p *models.Pipeline) { p.ID = pipeline.ID })},
		{name: "version ahead of store", pipeline: testutil.CreateTestPipeline(func(p *models.Pipeline) { p.Version = 7 })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version := tt.pipeline.Version

			err := store.SavePipeline(t.Context(), tt.pipeline)
			require.ErrorIs(t, err, persistence.ErrVersionConflict)
			assert.True(t, persistence.IsVersionConflict(err))
			assert.Equal(t, version, tt.pipeline.Version, "a rejected save leaves the version untouched")
		})
	}

	loaded, err := store.PipelineByID(t.Context(), pipeline.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", loaded.Name)
	assert.Equal(t, int64(2), loaded.Version)
}
