package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dukex/sqlgems/pkg/gems/bre"
	"github.com/dukex/sqlgems/pkg/models"
	"github.com/dukex/sqlgems/pkg/schema"
	"github.com/dukex/sqlgems/pkg/services"
	"github.com/dukex/sqlgems/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDocument(t *testing.T, doc services.Document) string {
	t.Helper()

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(path, data, 0600))

	return path
}

func connectedDocument() services.Document {
	return services.Document{Graph: *testutil.CreateTestGraph(), Component: *testutil.CreateTestComponent()}
}

func unconnectedDocument() services.Document {
	return services.Document{
		Graph:     *testutil.CreateTestGraph(testutil.WithoutConnections()),
		Component: *testutil.CreateTestComponent(),
	}
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var stdout bytes.Buffer

	pluginsPath := filepath.Join(t.TempDir(), "plugins")
	args = append([]string{"sqlgems", "--plugins-path", pluginsPath}, args...)

	err := newCommand(strings.NewReader(stdin), &stdout).Run(t.Context(), args)

	return stdout.String(), err
}

func TestCommand_Gems(t *testing.T) {
	t.Parallel()

	output, err := run(t, "", "gems")
	require.NoError(t, err)

	var gems []models.RegisteredGem
	require.NoError(t, json.Unmarshal([]byte(output), &gems))
	require.Len(t, gems, 1)
	assert.Equal(t, bre.MacroName, gems[0].Name)
}

func TestCommand_Reconcile(t *testing.T) {
	t.Parallel()

	output, err := run(t, "", "reconcile", "--file", writeDocument(t, connectedDocument()))
	require.NoError(t, err)

	var result struct {
		Component models.ComponentRecord `json:"component"`
		Changed   bool                   `json:"changed"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &result))
	assert.True(t, result.Changed)
	assert.Equal(t, "raw_users", result.Component.Properties.ParameterMap()[bre.ParamInputTable])
}

func TestCommand_Validate(t *testing.T) {
	t.Parallel()

	output, err := run(t, "", "validate", "--file", writeDocument(t, connectedDocument()))
	require.NoError(t, err)
	assert.JSONEq(t, `{"diagnostics":[]}`, output)

	output, err = run(t, "", "validate", "--file", writeDocument(t, unconnectedDocument()))
	require.ErrorIs(t, err, ErrErrorDiagnostics)
	assert.Contains(t, output, bre.PathInputTable)
}

func TestCommand_Emit(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(connectedDocument())
	require.NoError(t, err)

	output, err := run(t, string(data), "emit", "--file", "-")
	require.NoError(t, err)

	var result services.Result
	require.NoError(t, json.Unmarshal([]byte(output), &result))
	assert.Equal(t, `{{ BRE_SQL_Gem_basic(input_table='raw_users', input_column='age', output_column='flag', rule_condition="""age > 100""", rule_output_value="""'old'""") }}`, result.Code)

	_, err = run(t, "", "emit", "--file", writeDocument(t, unconnectedDocument()))
	assert.True(t, services.IsComponentInvalid(err))
}

func TestCommand_Errors(t *testing.T) {
	t.Parallel()

	_, err := run(t, "", "emit", "--file", filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = run(t, `{"unknown": true}`, "emit", "--file", "-")
	require.Error(t, err)

	doc := connectedDocument()
	doc.Component.Ports.Inputs[0].Schema = map[string]any{"fields": "nope"}

	_, err = run(t, "", "reconcile", "--file", writeDocument(t, doc))
	require.ErrorIs(t, err, schema.ErrFormat)
}
