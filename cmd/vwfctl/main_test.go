package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/workflow-router/cmd/router/service"
)

func run(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	argv := append([]string{serviceName, "--store", "sqlite", "--sqlite-path", dbPath}, args...)
	err := app.Run(context.Background(), argv)
	return out.String(), err
}

func TestSeedThenExport(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "vwf.db")

	out, err := run(t, dbPath, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, `"Sample Workflow 1" (3 nodes, 2 edges)`)
	assert.Contains(t, out, `"Sample Workflow 2" (0 nodes, 0 edges)`)

	out, err = run(t, dbPath, "export", "1")
	require.NoError(t, err)

	var export service.WorkflowExport
	require.NoError(t, json.Unmarshal([]byte(out), &export))
	assert.Equal(t, "Sample Workflow 1", export.Workflow.Title)
	require.Len(t, export.Nodes, 3)
	require.Len(t, export.Edges, 2)

	byTitle := map[string]int64{}
	for _, n := range export.Nodes {
		byTitle[n.Title] = n.ID
	}
	assert.Equal(t, byTitle["Start"], export.Edges[0].FromNodeID)
	assert.Equal(t, byTitle["Process"], export.Edges[0].ToNodeID)
	assert.Equal(t, byTitle["End"], export.Edges[1].ToNodeID)
}

func TestImportFile(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "vwf.db")
	file := filepath.Join(dir, "wf.json")
	require.NoError(t, os.WriteFile(file, []byte(`{
  "title": "Refund approval",
  "nodes": [
    {"id": 1, "type": "action", "title": "Receive"},
    {"id": 2, "type": "decision", "title": "Over limit?"}
  ],
  "edges": [
    {"from_node_id": 1, "to_node_id": 2},
    {"from_node_id": 2, "to_node_id": 9}
  ]
}`), 0o600))

	out, err := run(t, dbPath, "import", file)
	require.NoError(t, err)

	var report service.ImportReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.NodesCreated)
	assert.Equal(t, 1, report.EdgesCreated)
	assert.Equal(t, 1, report.SkippedEdges)
	assert.Equal(t, "General", *report.Workflow.Domain)
}

func TestCommandErrors(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "vwf.db")

	_, err := run(t, dbPath, "export", "abc")
	assert.ErrorContains(t, err, "positive workflow id")

	_, err = run(t, dbPath, "export", "42")
	assert.ErrorContains(t, err, "failed to export workflow 42")

	_, err = run(t, dbPath, "import")
	assert.ErrorContains(t, err, "needs a file path")

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"nodes": []}`), 0o600))
	_, err = run(t, dbPath, "import", bad)
	assert.ErrorContains(t, err, "does not match schema")
}
