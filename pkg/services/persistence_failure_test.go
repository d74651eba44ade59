package services

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/dukex/sqlgems/pkg/mocks"
	"github.com/dukex/sqlgems/pkg/models"
	"github.com/dukex/sqlgems/pkg/persistence"
	"github.com/dukex/sqlgems/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store down")

func TestPipeline_HealthCheckUnhealthy(t *testing.T) {
	t.Parallel()

	store := mocks.NewMockPersistence()
	store.On("HealthCheck", mock.Anything).Return(errStoreDown)

	message, ok := NewPipeline(store, nil, testTracer(), slog.Default()).HealthCheck(t.Context())
	assert.False(t, ok)
	assert.Equal(t, "Persistence layer is unhealthy: store down", message)
	store.AssertExpectations(t)
}

func TestPipeline_ListPropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	store := mocks.NewMockPersistence()
	store.On("Pipelines", mock.Anything).Return(nil, errStoreDown)

	_, err := NewPipeline(store, nil, testTracer(), slog.Default()).List(t.Context(), ListPipelinesRequest{})
	require.ErrorIs(t, err, errStoreDown)
	assert.False(t, IsValidationError(err))
	assert.False(t, IsNotFoundError(err))
}

func TestPipeline_UpdateGraphSaveFailure(t *testing.T) {
	t.Parallel()

	pipeline := testutil.CreateTestPipeline()
	publisher := &recordingPublisher{}

	store := mocks.NewMockPersistence()
	store.On("PipelineByID", mock.Anything, pipeline.ID).Return(pipeline, nil)
	store.On("SavePipeline", mock.Anything, mock.AnythingOfType("*models.Pipeline")).Return(errStoreDown)

	_, err := NewPipeline(store, publisher, testTracer(), slog.Default()).
		UpdateGraph(t.Context(), pipeline.ID, *testutil.CreateTestGraph())
	require.ErrorIs(t, err, errStoreDown)
	assert.Empty(t, publisher.published(), "nothing is announced when the save fails")
}

func TestComponent_ReconcilePipelineSavesOnce(t *testing.T) {
	t.Parallel()

	second := testutil.CreateTestComponent(func(c *models.ComponentRecord) { c.ID = "another" })
	pipeline := testutil.CreateTestPipeline(testutil.WithComponent(second))

	store := mocks.NewMockPersistence()
	store.On("PipelineByID", mock.Anything, pipeline.ID).Return(pipeline, nil)
	store.On("SavePipeline", mock.Anything, pipeline).Return(nil).Once()

	changed, err := NewComponent(store, testRegistry(), nil, testTracer(), slog.Default()).
		ReconcilePipeline(t.Context(), pipeline.ID)
	require.NoError(t, err)
	assert.Len(t, changed, 2)
	store.AssertNumberOfCalls(t, "SavePipeline", 1)
}

func TestComponent_PutSaveFailure(t *testing.T) {
	t.Parallel()

	pipeline := testutil.CreateTestPipeline(testutil.WithoutComponents())

	store := mocks.NewMockPersistence()
	store.On("PipelineByID", mock.Anything, pipeline.ID).Return(pipeline, nil)
	store.On("SavePipeline", mock.Anything, pipeline).Return(errStoreDown)

	_, err := NewComponent(store, testRegistry(), nil, testTracer(), slog.Default()).
		Put(t.Context(), pipeline.ID, testutil.RuleNodeID, putRequest())
	require.ErrorIs(t, err, errStoreDown)
}

// twoComponentPipeline returns a fresh copy on every call, as a store would.
func twoComponentPipeline(id string) *models.Pipeline {
	second := testutil.CreateTestComponent(func(c *models.ComponentRecord) { c.ID = "another" })

	return testutil.CreateTestPipeline(testutil.WithComponent(second), func(p *models.Pipeline) {
		p.ID = id
		p.Version = 3
	})
}

func TestComponent_ReconcilePipelineRetriesOnConflict(t *testing.T) {
	t.Parallel()

	id := "pipeline-1"
	conflict := persistence.NewVersionConflictError("Save", id, 3, 4)
	publisher := &recordingPublisher{}

	store := mocks.NewMockPersistence()
	store.On("PipelineByID", mock.Anything, id).Return(twoComponentPipeline(id), nil).Once()
	store.On("PipelineByID", mock.Anything, id).Return(twoComponentPipeline(id), nil).Once()
	store.On("SavePipeline", mock.Anything, mock.AnythingOfType("*models.Pipeline")).Return(conflict).Once()
	store.On("SavePipeline", mock.Anything, mock.AnythingOfType("*models.Pipeline")).Return(nil).Once()

	changed, err := NewComponent(store, testRegistry(), publisher, testTracer(), slog.Default()).
		ReconcilePipeline(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, []string{"another", testutil.RuleNodeID}, changed)
	store.AssertNumberOfCalls(t, "PipelineByID", 2)
	store.AssertNumberOfCalls(t, "SavePipeline", 2)
	assert.Len(t, publisher.published(), 2, "only the successful save is announced")
}

func TestComponent_ReconcileGivesUpAfterRepeatedConflicts(t *testing.T) {
	t.Parallel()

	id := "pipeline-1"
	conflict := persistence.NewVersionConflictError("Save", id, 3, 4)

	store := mocks.NewMockPersistence()
	for range maxSaveAttempts {
		store.On("PipelineByID", mock.Anything, id).Return(twoComponentPipeline(id), nil).Once()
	}

	store.On("SavePipeline", mock.Anything, mock.AnythingOfType("*models.Pipeline")).Return(conflict)

	_, _, err := NewComponent(store, testRegistry(), nil, testTracer(), slog.Default()).
		Reconcile(t.Context(), id, testutil.RuleNodeID)
	require.ErrorIs(t, err, ErrVersionConflict)
	assert.True(t, IsConflictError(err))
	store.AssertNumberOfCalls(t, "SavePipeline", maxSaveAttempts)
}

func TestComponent_PutDoesNotRetryConflicts(t *testing.T) {
	t.Parallel()

	pipeline := testutil.CreateTestPipeline(testutil.WithoutComponents())

	store := mocks.NewMockPersistence()
	store.On("PipelineByID", mock.Anything, pipeline.ID).Return(pipeline, nil)
	store.On("SavePipeline", mock.Anything, pipeline).
		Return(persistence.NewVersionConflictError("Save", pipeline.ID, 0, 1))

	_, err := NewComponent(store, testRegistry(), nil, testTracer(), slog.Default()).
		Put(t.Context(), pipeline.ID, testutil.RuleNodeID, putRequest())
	require.Error(t, err)
	assert.True(t, IsConflictError(err))
	assert.False(t, IsValidationError(err))
	store.AssertNumberOfCalls(t, "SavePipeline", 1)
}
