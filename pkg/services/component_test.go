package services

import (
	"testing"

	"github.com/dukex/sqlgems/pkg/events"
	"github.com/dukex/sqlgems/pkg/gems/bre"
	"github.com/dukex/sqlgems/pkg/models"
	"github.com/dukex/sqlgems/pkg/registry"
	"github.com/dukex/sqlgems/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putRequest() PutComponentRequest {
	component := testutil.CreateTestComponent()

	return PutComponentRequest{
		Gem:        bre.MacroName,
		Ports:      component.Ports,
		Parameters: component.Properties.Parameters,
	}
}

func TestComponent_Put(t *testing.T) {
	t.Parallel()

	store, _, components, _ := setupServices(t)
	pipeline := savePipeline(t, store, testutil.CreateTestPipeline(testutil.WithoutComponents()))

	saved, err := components.Put(t.Context(), pipeline.ID, testutil.RuleNodeID, putRequest())
	require.NoError(t, err)

	params := saved.Properties.ParameterMap()
	assert.Equal(t, "raw_users", params[bre.ParamInputTable])
	assert.JSONEq(t, `[{"name":"age","dataType":"integer"},{"name":"name","dataType":"string"}]`, params[bre.ParamSchema])
	assert.Equal(t, bre.MacroName, saved.Properties.MacroName)
	assert.Equal(t, "SQLGems", saved.Properties.ProjectName)

	stored, err := components.Get(t.Context(), pipeline.ID, testutil.RuleNodeID)
	require.NoError(t, err)
	assert.Equal(t, saved.Properties.Fingerprint(), stored.Properties.Fingerprint())
}

func TestComponent_PutErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		nodeID    string
		modify    func(*PutComponentRequest)
		assertErr func(t *testing.T, err error)
	}{
		{
			name:   "unknown node",
			nodeID: "ghost",
			assertErr: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrNodeNotFound)
			},
		},
		{
			name:   "unknown gem",
			nodeID: testutil.RuleNodeID,
			modify: func(r *PutComponentRequest) { r.Gem = "Nope" },
			assertErr: func(t *testing.T, err error) {
				assert.True(t, registry.IsGemNotFound(err))
				assert.True(t, IsNotFoundError(err))
			},
		},
		{
			name:   "gem differs from node gem",
			nodeID: testutil.SourceNodeID,
			assertErr: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrGemMismatch)
			},
		},
		{
			name:   "parameter outside the schema",
			nodeID: testutil.RuleNodeID,
			modify: func(r *PutComponentRequest) {
				r.Parameters = append(r.Parameters, models.MacroParameter{Name: "unexpected", Value: "x"})
			},
			assertErr: func(t *testing.T, err error) {
				assert.True(t, registry.IsInvalidParameters(err))
				assert.True(t, IsValidationError(err))
			},
		},
		{
			name:   "if-match without stored component",
			nodeID: testutil.RuleNodeID,
			modify: func(r *PutComponentRequest) { r.IfMatch = "abc" },
			assertErr: func(t *testing.T, err error) {
				assert.True(t, IsPreconditionError(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store, _, components, _ := setupServices(t)
			pipeline := savePipeline(t, store, testutil.CreateTestPipeline(testutil.WithoutComponents()))

			req := putRequest()
			if tt.modify != nil {
				tt.modify(&req)
			}

			_, err := components.Put(t.Context(), pipeline.ID, tt.nodeID, req)
			require.Error(t, err)
			tt.assertErr(t, err)
		})
	}
}

func TestComponent_PutIfMatch(t *testing.T) {
	t.Parallel()

	store, _, components, _ := setupServices(t)
	pipeline := savePipeline(t, store, testutil.CreateTestPipeline(testutil.WithoutComponents()))

	first, err := components.Put(t.Context(), pipeline.ID, testutil.RuleNodeID, putRequest())
	require.NoError(t, err)

	req := putRequest()
	req.IfMatch = "stale"
	_, err = components.Put(t.Context(), pipeline.ID, testutil.RuleNodeID, req)
	require.ErrorIs(t, err, ErrFingerprintMismatch)

	req.IfMatch = first.Properties.Fingerprint()
	_, err = components.Put(t.Context(), pipeline.ID, testutil.RuleNodeID, req)
	require.NoError(t, err)
}

func TestComponent_GetMissing(t *testing.T) {
	t.Parallel()

	store, _, components, _ := setupServices(t)
	pipeline := savePipeline(t, store, testutil.CreateTestPipeline(testutil.WithoutComponents()))

	_, err := components.Get(t.Context(), pipeline.ID, testutil.RuleNodeID)
	require.ErrorIs(t, err, ErrComponentNotFound)

	_, err = components.Get(t.Context(), "missing", testutil.RuleNodeID)
	require.ErrorIs(t, err, ErrPipelineNotFound)
}

func TestComponent_Reconcile(t *testing.T) {
	t.Parallel()

	store, _, components, publisher := setupServices(t)
	pipeline := savePipeline(t, store, testutil.CreateTestPipeline())

	reconciled, changed, err := components.Reconcile(t.Context(), pipeline.ID, testutil.RuleNodeID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "raw_users", reconciled.Properties.ParameterMap()[bre.ParamInputTable])

	published := publisher.published()
	require.Len(t, published, 1)

	event, ok := published[0].event.(events.ComponentReconciled)
	require.True(t, ok)
	assert.Equal(t, testutil.RuleNodeID, event.NodeID)
	assert.Equal(t, bre.MacroName, event.Gem)
	assert.Equal(t, testutil.CreateTestComponent().Properties.Fingerprint(), event.PreviousFingerprint)
	assert.Equal(t, reconciled.Properties.Fingerprint(), event.Fingerprint)

	_, changed, err = components.Reconcile(t.Context(), pipeline.ID, testutil.RuleNodeID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, publisher.published(), 1)
}

func TestComponent_ReconcilePipeline(t *testing.T) {
	t.Parallel()

	store, _, components, publisher := setupServices(t)

	second := testutil.CreateTestComponent(func(c *models.ComponentRecord) { c.ID = "another" })
	pipeline := savePipeline(t, store, testutil.CreateTestPipeline(
		func(p *models.Pipeline) {
			label := "another_rule"
			p.Graph.Nodes["another"] = &models.Node{ID: "another", Gem: bre.MacroName, Label: &label}
		},
		testutil.WithComponent(second),
	))

	changed, err := components.ReconcilePipeline(t.Context(), pipeline.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"another", testutil.RuleNodeID}, changed)
	assert.Len(t, publisher.published(), 2)

	changed, err = components.ReconcilePipeline(t.Context(), pipeline.ID)
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestComponent_ReconcilePipelineSkipsBrokenComponents(t *testing.T) {
	t.Parallel()

	store, _, components, _ := setupServices(t)
	pipeline := savePipeline(t, store, testutil.CreateTestPipeline(
		testutil.WithComponent(testutil.CreateTestComponent(testutil.WithInputSchema(map[string]any{"fields": 1}))),
	))

	changed, err := components.ReconcilePipeline(t.Context(), pipeline.ID)
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestComponent_DiagnosticsAndCompile(t *testing.T) {
	t.Parallel()

	store, _, components, _ := setupServices(t)
	pipeline := savePipeline(t, store, testutil.CreateTestPipeline(testutil.WithoutComponents()))

	_, err := components.Put(t.Context(), pipeline.ID, testutil.RuleNodeID, putRequest())
	require.NoError(t, err)

	diagnostics, err := components.Diagnostics(t.Context(), pipeline.ID, testutil.RuleNodeID)
	require.NoError(t, err)
	assert.Empty(t, diagnostics)

	code, err := components.Compile(t.Context(), pipeline.ID, testutil.RuleNodeID)
	require.NoError(t, err)
	assert.Equal(t, expectedRawUsersCode, code)
}

func TestComponent_CompileRefusesUnconnectedComponent(t *testing.T) {
	t.Parallel()

	store, _, components, _ := setupServices(t)
	pipeline := savePipeline(t, store, testutil.CreateTestPipeline(
		testutil.WithGraph(testutil.CreateTestGraph(testutil.WithoutConnections())),
		testutil.WithoutComponents(),
	))

	_, err := components.Put(t.Context(), pipeline.ID, testutil.RuleNodeID, putRequest())
	require.NoError(t, err)

	diagnostics, err := components.Diagnostics(t.Context(), pipeline.ID, testutil.RuleNodeID)
	require.NoError(t, err)
	require.Len(t, diagnostics, 1)
	assert.Equal(t, bre.PathInputTable, diagnostics[0].Path)

	_, err = components.Compile(t.Context(), pipeline.ID, testutil.RuleNodeID)
	assert.True(t, IsComponentInvalid(err))
}
