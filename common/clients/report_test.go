package clients

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/workflow-router/common/logger"
	"github.com/lyzr/workflow-router/common/models"
)

const sampleReport = `{
  "executive_summary": "Refunds are approved automatically below the limit.",
  "key_paths": "Receive request -> Over limit? -> Approve",
  "node_insights": [
    {"id": 7, "title": "Over limit?", "type": "decision", "insight": "Threshold is hard coded."},
    {"id": "8", "title": "Approve", "type": "action", "insight": "No audit trail."}
  ],
  "recommendations": ["Move the threshold into a rule", "Log approvals"]
}`

func reportFixture() (models.Workflow, []models.NodeRow, []models.EdgeRow) {
	domain := "Finance"
	label := "no"
	wf := models.Workflow{ID: 3, Title: "Refunds", Domain: &domain}
	nodes := []models.NodeRow{
		{ID: 7, WorkflowID: 3, Title: "Over limit?", Type: "decision", Details: map[string]any{"rules": []any{"$.amount > 500"}}},
		{ID: 8, WorkflowID: 3, Title: "Approve", Type: "action"},
	}
	edges := []models.EdgeRow{{ID: 1, WorkflowID: 3, FromNodeID: 7, ToNodeID: 8, Label: &label}}
	return wf, nodes, edges
}

func TestReport(t *testing.T) {
	var gotBody map[string]any
	g := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		_, _ = w.Write(messagesResponse("Report follows.\n```json\n" + sampleReport + "\n```"))
	})

	wf, nodes, edges := reportFixture()
	report, err := g.Report(context.Background(), wf, nodes, edges)
	require.NoError(t, err)

	assert.Equal(t, "Refunds are approved automatically below the limit.", report.ExecutiveSummary)
	assert.Equal(t, TextList{"Receive request -> Over limit? -> Approve"}, report.KeyPaths)
	require.Len(t, report.NodeInsights, 2)
	assert.Equal(t, ProviderID("7"), report.NodeInsights[0].ID)
	assert.Equal(t, ProviderID("8"), report.NodeInsights[1].ID)
	assert.Len(t, report.Recommendations, 2)

	assert.Contains(t, gotBody["system"], "expert technical writer")
	assert.EqualValues(t, reportMaxTokens, gotBody["max_tokens"])
	assert.InDelta(t, reportTemperature, gotBody["temperature"], 1e-9)
	messages := gotBody["messages"].([]any)
	require.Len(t, messages, 1)
	content := messages[0].(map[string]any)["content"].(string)
	assert.Contains(t, content, `"title": "Over limit?"`)
	assert.Contains(t, content, `"label": "no"`)
	assert.Contains(t, content, `"domain": "Finance"`)
}

func TestReport_Failures(t *testing.T) {
	wf, nodes, edges := reportFixture()

	t.Run("no summary", func(t *testing.T) {
		g := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(messagesResponse(`{"recommendations": ["x"]}`))
		})
		_, err := g.Report(context.Background(), wf, nodes, edges)
		var schemaErr *SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Equal(t, "workflow report", schemaErr.Subject)
	})

	t.Run("prose only", func(t *testing.T) {
		g := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(messagesResponse("The workflow looks fine."))
		})
		_, err := g.Report(context.Background(), wf, nodes, edges)
		assert.ErrorIs(t, err, ErrNoStructuredResult)
	})

	t.Run("disabled", func(t *testing.T) {
		g := NewGeneratorClient(NewHTTPClient(nil, logger.Nop()), GeneratorConfig{}, logger.Nop())
		_, err := g.Report(context.Background(), wf, nodes, edges)
		assert.ErrorIs(t, err, ErrGeneratorDisabled)
	})
}

func TestTextList(t *testing.T) {
	var l TextList
	require.NoError(t, json.Unmarshal([]byte(`"one"`), &l))
	assert.Equal(t, TextList{"one"}, l)
	require.NoError(t, json.Unmarshal([]byte(`["a","b"]`), &l))
	assert.Equal(t, TextList{"a", "b"}, l)
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &l))
}
