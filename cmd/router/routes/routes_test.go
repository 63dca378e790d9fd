package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/workflow-router/cmd/router/container"
	"github.com/lyzr/workflow-router/common/bootstrap"
	"github.com/lyzr/workflow-router/common/clients"
	"github.com/lyzr/workflow-router/common/config"
	"github.com/lyzr/workflow-router/common/editor"
	"github.com/lyzr/workflow-router/common/logger"
	"github.com/lyzr/workflow-router/common/models"
)

type app struct {
	e       *echo.Echo
	c       *container.Container
	cookies []*http.Cookie
}

func newApp(t *testing.T, mutate func(*config.Config)) *app {
	t.Helper()
	cfg := config.Defaults("test")
	cfg.Store.Backend = config.StoreMemory
	if mutate != nil {
		mutate(cfg)
	}

	ctx := context.Background()
	components, err := bootstrap.Setup(ctx, "test", bootstrap.WithCustomConfig(cfg), bootstrap.WithCustomLogger(logger.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() { components.Shutdown(ctx) })

	c, err := container.NewContainer(components)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	e := echo.New()
	RegisterAuthRoutes(e, c)
	RegisterWorkflowRoutes(e, c)
	RegisterCanvasRoutes(e, c)
	RegisterRecordRoutes(e, c)
	return &app{e: e, c: c}
}

func (a *app) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range a.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type nodeResp struct {
	Node   struct{ ID int64 } `json:"node"`
	Canvas editor.View        `json:"canvas"`
}

type edgeResp struct {
	Edge   struct{ ID string } `json:"edge"`
	Canvas editor.View         `json:"canvas"`
}

func TestCanvasFlow(t *testing.T) {
	a := newApp(t, nil)

	rec := a.do(t, http.MethodPost, "/api/v1/workflows", map[string]any{"title": "Refunds"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	wf := decode[models.Workflow](t, rec)
	base := fmt.Sprintf("/api/v1/workflows/%d/canvas", wf.ID)

	rec = a.do(t, http.MethodPost, base+"/nodes", map[string]any{"kind": "action"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[nodeResp](t, rec).Node.ID

	rec = a.do(t, http.MethodPost, base+"/nodes", map[string]any{"kind": "decision"})
	require.Equal(t, http.StatusCreated, rec.Code)
	added := decode[nodeResp](t, rec)
	second := added.Node.ID
	require.Len(t, added.Canvas.Edges, 1, "new node is linked from the previous one")

	rec = a.do(t, http.MethodPatch, fmt.Sprintf("%s/nodes/%d", base, second), map[string]any{
		"title":       "Over limit?",
		"golden_path": true,
		"details":     map[string]any{"rules": []string{"$.amount > 500", "ask a manager"}, "owner": "finance"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, fmt.Sprintf("%s/nodes/%d/rules", base, second), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rules := decode[map[string]any](t, rec)
	assert.EqualValues(t, 2, rules["total"])
	assert.EqualValues(t, 1, rules["valid"])

	rec = a.do(t, http.MethodPost, base+"/edges", map[string]any{"source": second, "target": first, "label": "retry"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	loop := decode[edgeResp](t, rec)
	assert.Len(t, loop.Canvas.Edges, 2)

	rec = a.do(t, http.MethodPost, base+"/edges", map[string]any{"source": second, "target": first})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodPost, base+"/undo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[editor.View](t, rec).Edges, 1)

	rec = a.do(t, http.MethodPost, base+"/redo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[editor.View](t, rec)
	assert.Len(t, view.Edges, 2)
	assert.True(t, view.CanUndo)

	rec = a.do(t, http.MethodPatch, base+"/edges/"+loop.Edge.ID, map[string]any{"label": "try again", "animated": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, base+"/save", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decode[struct {
		Report editor.SaveReport `json:"report"`
	}](t, rec)
	assert.Equal(t, 1, saved.Report.EdgesInserted)

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/workflows/%d/export", wf.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	export := decode[struct {
		Nodes []models.NodeRow `json:"nodes"`
		Edges []models.EdgeRow `json:"edges"`
	}](t, rec)
	require.Len(t, export.Nodes, 2)
	require.Len(t, export.Edges, 2)
	assert.Equal(t, "Over limit?", export.Nodes[1].Title)
	assert.Equal(t, "finance", export.Nodes[1].Details["owner"])
	assert.Equal(t, "try again", export.Edges[1].LabelValue())

	// Reload reflects the saved state
	rec = a.do(t, http.MethodPost, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reloaded := decode[editor.View](t, rec)
	assert.Len(t, reloaded.Nodes, 2)
	assert.Len(t, reloaded.Edges, 2)
	assert.False(t, reloaded.CanUndo)

	rec = a.do(t, http.MethodPatch, base+"/nodes/999", map[string]any{"title": "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = a.do(t, http.MethodDelete, base+"/edges/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = a.do(t, http.MethodPatch, fmt.Sprintf("%s/nodes/%d", base, first), map[string]any{"details": "not an object"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodDelete, fmt.Sprintf("%s/nodes/%d", base, first), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	afterDelete := decode[editor.View](t, rec)
	assert.Len(t, afterDelete.Nodes, 1)
	assert.Empty(t, afterDelete.Edges, "incident edges go with the node")
}

func TestCanvasSelfLoopAndPatchUndo(t *testing.T) {
	a := newApp(t, nil)

	rec := a.do(t, http.MethodPost, "/api/v1/workflows", map[string]any{"title": "Retries"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	wf := decode[models.Workflow](t, rec)
	base := fmt.Sprintf("/api/v1/workflows/%d/canvas", wf.ID)

	rec = a.do(t, http.MethodPost, base+"/nodes", map[string]any{"kind": "action"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	added := decode[nodeResp](t, rec)
	id := added.Node.ID
	original := added.Canvas.Nodes[0]

	rec = a.do(t, http.MethodPost, base+"/edges", map[string]any{"source": id, "target": id, "label": "poll"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Len(t, decode[edgeResp](t, rec).Canvas.Edges, 1)

	rec = a.do(t, http.MethodPatch, fmt.Sprintf("%s/nodes/%d", base, id), map[string]any{
		"title":       "Poll status",
		"kind":        "decision",
		"golden_path": true,
		"position":    map[string]any{"x": 10, "y": 20},
		"details":     map[string]any{"owner": "ops"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Poll status", decode[editor.View](t, rec).Nodes[0].Title)

	rec = a.do(t, http.MethodPost, base+"/undo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	undone := decode[editor.View](t, rec)
	assert.Equal(t, original.Title, undone.Nodes[0].Title)
	assert.Equal(t, original.Kind, undone.Nodes[0].Kind)
	assert.Equal(t, original.Position, undone.Nodes[0].Position)
	assert.Empty(t, undone.Nodes[0].Details.Owner)
	assert.Len(t, undone.Edges, 1, "the loop came before the patch")

	// a rejected patch changes nothing
	rec = a.do(t, http.MethodPatch, fmt.Sprintf("%s/nodes/%d", base, id), map[string]any{
		"title":       "Half applied",
		"details_ops": []map[string]any{{"op": "replace", "path": "/goldenPath", "value": "yes"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(t, http.MethodPost, base+"/redo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Poll status", decode[editor.View](t, rec).Nodes[0].Title, "the failed patch did not clear redo")
}

func TestWorkflowCRUDAndRecords(t *testing.T) {
	a := newApp(t, nil)

	rec := a.do(t, http.MethodPost, "/api/v1/workflows", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/v1/workflows", map[string]any{"title": "Onboarding", "domain": "HR"})
	require.Equal(t, http.StatusCreated, rec.Code)
	wf := decode[models.Workflow](t, rec)
	path := fmt.Sprintf("/api/v1/workflows/%d", wf.ID)

	rec = a.do(t, http.MethodPatch, path, map[string]any{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(t, http.MethodPatch, path, map[string]any{"status": "active"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.WorkflowActive, decode[models.Workflow](t, rec).Status)

	rec = a.do(t, http.MethodGet, "/api/v1/workflows", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["count"])

	rec = a.do(t, http.MethodPost, path+"/problems", map[string]any{"description": "handoffs are slow"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	problem := decode[map[string]any](t, rec)

	rec = a.do(t, http.MethodPatch, fmt.Sprintf("%s/problems/%v", path, problem["id"]), map[string]any{"is_solved": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decode[map[string]any](t, rec)["is_solved"])

	rec = a.do(t, http.MethodPost, path+"/nodes/7/errors", map[string]any{"description": "timeout"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = a.do(t, http.MethodGet, path+"/nodes/7/errors", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]any](t, rec)["errors"], 1)
	rec = a.do(t, http.MethodGet, path+"/nodes/8/errors", nil)
	assert.Empty(t, decode[map[string][]any](t, rec)["errors"])

	rec = a.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_found")

	rec = a.do(t, http.MethodGet, "/api/v1/workflows/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPasswordGate(t *testing.T) {
	a := newApp(t, func(c *config.Config) {
		c.Auth.Password = "open sesame"
		c.Auth.CookieSecret = "test-secret"
	})

	rec := a.do(t, http.MethodGet, "/api/v1/workflows", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/auth/pass", map[string]any{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/auth/pass", map[string]any{"password": "open sesame"})
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "vwf_access", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	a.cookies = cookies

	rec = a.do(t, http.MethodGet, "/api/v1/workflows", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/auth/status", nil)
	assert.Equal(t, true, decode[map[string]any](t, rec)["authenticated"])

	rec = a.do(t, http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Empty(t, cleared[0].Value)
}

func anthropicStub(t *testing.T, text string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": text}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateWithRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	stub := anthropicStub(t, "Here it is:\n```json\n"+`{
		"title": "Laptop refresh",
		"nodes": [{"id": "a", "title": "Request"}, {"id": "b", "title": "Approve", "type": "human"}],
		"edges": [{"from_node_id": "a", "to_node_id": "b"}, {"from_node_id": "b", "to_node_id": "zzz"}]
	}`+"\n```")

	a := newApp(t, func(c *config.Config) {
		c.Redis.Addr = mr.Addr()
		c.Generator.APIKey = "test"
		c.Generator.BaseURL = stub.URL
		c.Generator.RateLimit = 1
	})

	rec := a.do(t, http.MethodPost, "/api/v1/workflows/generate", map[string]any{"prompt": "replace laptops", "domain": "IT"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	report := decode[map[string]any](t, rec)
	assert.EqualValues(t, 2, report["nodes_created"])
	assert.EqualValues(t, 1, report["edges_created"])
	assert.EqualValues(t, 1, report["skipped_edges"])

	rec = a.do(t, http.MethodPost, "/api/v1/workflows/generate", map[string]any{"prompt": "again"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestGenerateDisabledAndBadOutput(t *testing.T) {
	a := newApp(t, nil)
	rec := a.do(t, http.MethodPost, "/api/v1/workflows/generate", map[string]any{"prompt": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	stub := anthropicStub(t, "Sorry, I cannot do that.")
	b := newApp(t, func(c *config.Config) {
		c.Generator.APIKey = "test"
		c.Generator.BaseURL = stub.URL
	})
	rec = b.do(t, http.MethodPost, "/api/v1/workflows/generate", map[string]any{"prompt": "x"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	rec = b.do(t, http.MethodPost, "/api/v1/workflows/generate", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportWorkflow(t *testing.T) {
	stub := anthropicStub(t, `{
		"executive_summary": "Requests are approved by a manager.",
		"key_paths": ["Request -> Approve"],
		"node_insights": [{"id": 1, "title": "Approve", "type": "human", "insight": "Single approver."}],
		"recommendations": ["Add a deputy approver"]
	}`)
	a := newApp(t, func(c *config.Config) {
		c.Generator.APIKey = "test"
		c.Generator.BaseURL = stub.URL
	})

	rec := a.do(t, http.MethodPost, "/api/v1/workflows", map[string]any{"title": "Approvals"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	wf := decode[models.Workflow](t, rec)

	rec = a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/workflows/%d/report", wf.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[struct {
		Result clients.WorkflowReport `json:"result"`
	}](t, rec)
	assert.Equal(t, "Requests are approved by a manager.", out.Result.ExecutiveSummary)
	assert.Equal(t, clients.TextList{"Request -> Approve"}, out.Result.KeyPaths)
	require.Len(t, out.Result.NodeInsights, 1)
	assert.Equal(t, clients.ProviderID("1"), out.Result.NodeInsights[0].ID)

	rec = a.do(t, http.MethodPost, "/api/v1/workflows/999/report", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	families, err := a.c.Components.Telemetry.Registry().Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["vwf_operation_duration_seconds"], "the report call was timed")
	assert.True(t, names["vwf_live_sessions"])

	b := newApp(t, nil)
	rec = b.do(t, http.MethodPost, fmt.Sprintf("/api/v1/workflows/%d/report", wf.ID), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEvaluateRule(t *testing.T) {
	a := newApp(t, nil)

	rec := a.do(t, http.MethodPost, "/api/v1/rules/evaluate", map[string]any{
		"rule":  "$.amount > 500",
		"input": map[string]any{"amount": 900},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decode[map[string]any](t, rec)["result"])

	rec = a.do(t, http.MethodPost, "/api/v1/rules/evaluate", map[string]any{"rule": "not valid ((("})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
