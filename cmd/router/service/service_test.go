package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/workflow-router/common/cache"
	"github.com/lyzr/workflow-router/common/clients"
	"github.com/lyzr/workflow-router/common/editor"
	"github.com/lyzr/workflow-router/common/logger"
	"github.com/lyzr/workflow-router/common/models"
	"github.com/lyzr/workflow-router/common/repository"
	"github.com/lyzr/workflow-router/common/store"
	"github.com/lyzr/workflow-router/common/store/memory"
)

type fixture struct {
	backend   store.Backend
	workflows *repository.WorkflowRepository
	nodes     *repository.NodeRepository
	edges     *repository.EdgeRepository
	records   *RecordService
	importer  *ImportService
	sessions  *SessionRegistry
	service   *WorkflowService
	cache     *cache.MemoryCache
	generator *fakeGenerator
	timer     *fakeTimer
}

type fakeGenerator struct {
	enabled bool
	result  *clients.GeneratedWorkflow
	report  *clients.WorkflowReport
	err     error
	calls   int

	reportedNodes []models.NodeRow
}

func (g *fakeGenerator) Enabled() bool { return g.enabled }

func (g *fakeGenerator) Generate(ctx context.Context, prompt, domain string) (*clients.GeneratedWorkflow, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

func (g *fakeGenerator) Report(ctx context.Context, wf models.Workflow, nodes []models.NodeRow, edges []models.EdgeRow) (*clients.WorkflowReport, error) {
	g.calls++
	g.reportedNodes = nodes
	if g.err != nil {
		return nil, g.err
	}
	return g.report, nil
}

type fakeTimer struct {
	ops []string
}

func (ft *fakeTimer) RecordDuration(operation string, start time.Time) {
	ft.ops = append(ft.ops, operation)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.Nop()
	f := &fixture{backend: memory.New(), generator: &fakeGenerator{enabled: true}, timer: &fakeTimer{}}
	f.workflows = repository.NewWorkflowRepository(f.backend)
	f.nodes = repository.NewNodeRepository(f.backend)
	f.edges = repository.NewEdgeRepository(f.backend)
	f.records = NewRecordService(f.backend, log)
	f.importer = NewImportService(f.workflows, f.nodes, f.edges, log)
	f.sessions = NewSessionRegistry(f.workflows, editor.SessionConfig{Nodes: f.nodes, Edges: f.edges, HistoryDepth: 10}, log)
	f.cache = cache.NewMemoryCache(log)
	t.Cleanup(func() { f.cache.Close() })
	f.service = NewWorkflowService(f.workflows, f.nodes, f.edges, f.records, f.importer, f.generator, f.sessions, f.cache, time.Minute, f.timer, log)
	return f
}

func ptr(v float64) *float64 { return &v }

func TestImport_MapsProviderIDsToStoreIDs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Pre-existing rows push the store ids away from the provider ids
	other, err := f.workflows.Create(ctx, models.Workflow{Title: "other"})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := f.nodes.Insert(ctx, models.NodeRow{WorkflowID: other.ID, Title: "filler"})
		require.NoError(t, err)
	}

	gen := &clients.GeneratedWorkflow{
		Title: "Refund approval",
		Nodes: []clients.GeneratedNode{
			{ID: "1", Type: "action", Title: "Receive", X: ptr(100), Y: ptr(100)},
			{ID: "2", Type: "decision", Title: "Over limit?"},
			{ID: "n-3", Type: "", Title: "Approve"},
		},
		Edges: []clients.GeneratedEdge{
			{ID: "e1", FromNodeID: "1", ToNodeID: "2", Label: "next"},
			{ID: "e2", FromNodeID: "2", ToNodeID: "n-3", Style: "dashed"},
			{ID: "e3", FromNodeID: "2", ToNodeID: "missing"},
		},
	}

	report, err := f.importer.Import(ctx, gen)
	require.NoError(t, err)
	assert.Equal(t, 3, report.NodesCreated)
	assert.Equal(t, 2, report.EdgesCreated)
	assert.Equal(t, 1, report.SkippedEdges)

	wf := report.Workflow
	assert.Equal(t, models.WorkflowDraft, wf.Status)
	assert.Equal(t, "1.0", wf.Version)
	require.NotNil(t, wf.Domain)
	assert.Equal(t, "General", *wf.Domain)

	nodes, err := f.nodes.ListByWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	byProvider := map[string]models.NodeRow{}
	for _, n := range nodes {
		require.NotNil(t, n.ProviderID)
		byProvider[*n.ProviderID] = n
		assert.Equal(t, "active", n.Status)
		assert.NotNil(t, n.Details)
	}
	assert.Equal(t, "action", byProvider["n-3"].Type, "empty type defaults to action")
	assert.NotEqual(t, int64(1), byProvider["1"].ID)

	edges, err := f.edges.ListByWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, byProvider["1"].ID, edges[0].FromNodeID)
	assert.Equal(t, byProvider["2"].ID, edges[0].ToNodeID)
	assert.Equal(t, "next", edges[0].LabelValue())
	assert.Equal(t, "solid", edges[0].StyleValue())
	assert.Equal(t, byProvider["2"].ID, edges[1].FromNodeID)
	assert.Equal(t, byProvider["n-3"].ID, edges[1].ToNodeID)
	assert.Equal(t, "dashed", edges[1].StyleValue())

	for pid, id := range report.IDMap {
		assert.Equal(t, byProvider[string(pid)].ID, id)
	}
}

func TestImport_DuplicateProviderIDKeepsFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	report, err := f.importer.Import(ctx, &clients.GeneratedWorkflow{
		Title:   "dup",
		Domain:  "HR",
		Version: "2.1",
		Nodes: []clients.GeneratedNode{
			{ID: "a", Title: "first"},
			{ID: "a", Title: "second"},
			{ID: "b", Title: "third"},
		},
		Edges: []clients.GeneratedEdge{{FromNodeID: "a", ToNodeID: "b"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, report.NodesCreated, "duplicates are still inserted")
	assert.Equal(t, "HR", *report.Workflow.Domain)
	assert.Equal(t, "2.1", report.Workflow.Version)

	nodes, err := f.nodes.ListByWorkflow(ctx, report.Workflow.ID)
	require.NoError(t, err)
	edges, err := f.edges.ListByWorkflow(ctx, report.Workflow.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, nodes[0].ID, edges[0].FromNodeID)
	assert.Equal(t, "first", nodes[0].Title)
}

func TestWorkflowService_ListIsCachedAndInvalidated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.service.Create(ctx, &CreateWorkflowRequest{Title: " Onboarding "})
	require.NoError(t, err)

	list, err := f.service.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Onboarding", list[0].Title)
	assert.Equal(t, "1.0", list[0].Version)

	// A write behind the service is invisible until the cache is invalidated
	_, err = f.workflows.Create(ctx, models.Workflow{Title: "sneaky"})
	require.NoError(t, err)
	list, err = f.service.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.service.Create(ctx, &CreateWorkflowRequest{Title: "Offboarding"})
	require.NoError(t, err)
	list, err = f.service.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestWorkflowService_DeleteRemovesEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	report, err := f.service.Import(ctx, &clients.GeneratedWorkflow{
		Title: "doomed",
		Nodes: []clients.GeneratedNode{{ID: "1", Title: "a"}, {ID: "2", Title: "b"}},
		Edges: []clients.GeneratedEdge{{FromNodeID: "1", ToNodeID: "2"}},
	})
	require.NoError(t, err)
	id := report.Workflow.ID
	nodeID := report.IDMap["1"]

	_, err = f.records.Problems().Create(ctx, id, store.Row{"description": "slow"})
	require.NoError(t, err)
	_, err = f.records.Errors().Create(ctx, NodeScope{WorkflowID: id, NodeID: nodeID}, store.Row{"description": "timeout"})
	require.NoError(t, err)

	_, err = f.sessions.Open(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 1, f.sessions.Len())

	require.NoError(t, f.service.Delete(ctx, id))
	assert.Equal(t, 0, f.sessions.Len())

	for _, table := range []string{store.TableWorkflow, store.TableNode, store.TableEdge, store.TableProblem, store.TableError} {
		rows, err := f.backend.Table(table).List(ctx, store.Query{})
		require.NoError(t, err)
		assert.Empty(t, rows, table)
	}

	err = f.service.Delete(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWorkflowService_Generate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.generator.result = &clients.GeneratedWorkflow{
		Title:  "Generated",
		Domain: "IT",
		Nodes:  []clients.GeneratedNode{{ID: "1", Title: "start"}},
	}
	report, err := f.service.Generate(ctx, &GenerateWorkflowRequest{Prompt: "reset a password", Domain: "IT"})
	require.NoError(t, err)
	assert.Equal(t, "Generated", report.Workflow.Title)
	assert.Equal(t, 1, report.NodesCreated)

	f.generator.err = clients.ErrNoStructuredResult
	_, err = f.service.Generate(ctx, &GenerateWorkflowRequest{Prompt: "x"})
	assert.ErrorIs(t, err, clients.ErrNoStructuredResult)

	f.generator.enabled = false
	calls := f.generator.calls
	_, err = f.service.Generate(ctx, &GenerateWorkflowRequest{Prompt: "x"})
	assert.ErrorIs(t, err, clients.ErrGeneratorDisabled)
	assert.Equal(t, calls, f.generator.calls)
	assert.Equal(t, []string{"generate", "generate"}, f.timer.ops, "disabled calls are not timed")
}

func TestWorkflowService_Report(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	imported, err := f.service.Import(ctx, &clients.GeneratedWorkflow{
		Title: "report me",
		Nodes: []clients.GeneratedNode{{ID: "1", Title: "a"}, {ID: "2", Title: "b"}},
		Edges: []clients.GeneratedEdge{{FromNodeID: "1", ToNodeID: "2"}},
	})
	require.NoError(t, err)
	id := imported.Workflow.ID

	f.generator.report = &clients.WorkflowReport{ExecutiveSummary: "two steps"}
	report, err := f.service.Report(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "two steps", report.ExecutiveSummary)
	assert.Len(t, f.generator.reportedNodes, 2)
	assert.Equal(t, []string{"report"}, f.timer.ops)

	_, err = f.service.Report(ctx, 404)
	assert.ErrorIs(t, err, store.ErrNotFound)

	f.generator.err = clients.ErrNoStructuredResult
	_, err = f.service.Report(ctx, id)
	assert.ErrorIs(t, err, clients.ErrNoStructuredResult)

	f.generator.enabled = false
	_, err = f.service.Report(ctx, id)
	assert.ErrorIs(t, err, clients.ErrGeneratorDisabled)
}

func TestWorkflowService_Export(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	report, err := f.service.Import(ctx, &clients.GeneratedWorkflow{
		Title: "export me",
		Nodes: []clients.GeneratedNode{{ID: "1", Title: "a"}, {ID: "2", Title: "b"}},
		Edges: []clients.GeneratedEdge{{FromNodeID: "1", ToNodeID: "2", Label: "go"}},
	})
	require.NoError(t, err)

	out, err := f.service.Export(ctx, report.Workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "export me", out.Workflow.Title)
	assert.Len(t, out.Nodes, 2)
	require.Len(t, out.Edges, 1)
	assert.Equal(t, "go", out.Edges[0].LabelValue())

	_, err = f.service.Export(ctx, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecordService_ScopesAndOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	errs := f.records.Errors()

	older := time.Now().Add(-time.Hour)
	scope := NodeScope{WorkflowID: 1, NodeID: 7}
	_, err := errs.Create(ctx, scope, store.Row{"description": "fixed", "is_fixed": true})
	require.NoError(t, err)
	_, err = errs.Create(ctx, scope, store.Row{"description": "old", "reported_at": older})
	require.NoError(t, err)
	_, err = errs.Create(ctx, scope, store.Row{"description": "new"})
	require.NoError(t, err)
	other, err := errs.Create(ctx, NodeScope{WorkflowID: 1, NodeID: 8}, store.Row{"description": "elsewhere"})
	require.NoError(t, err)

	rows, err := errs.List(ctx, scope)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "new", rows[0]["description"])
	assert.Equal(t, "old", rows[1]["description"])
	assert.Equal(t, "fixed", rows[2]["description"])

	err = errs.Delete(ctx, scope, other["id"])
	assert.ErrorIs(t, err, store.ErrNotFound, "rows outside the scope are not reachable")
}

func TestSessionRegistry_SharesOneLoad(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	wf, err := f.workflows.Create(ctx, models.Workflow{Title: "shared"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	got := make([]*editor.Session, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := f.sessions.Open(ctx, wf.ID)
			assert.NoError(t, err)
			got[i] = s
		}(i)
	}
	wg.Wait()
	for _, s := range got[1:] {
		assert.Same(t, got[0], s)
	}

	_, err = f.sessions.Open(ctx, 404)
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.Equal(t, 1, f.sessions.Len(), "failed opens are not kept")
}

func TestSessionRegistry_ReloadDiscardsLocalEdits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	wf, err := f.workflows.Create(ctx, models.Workflow{Title: "reload"})
	require.NoError(t, err)
	node, err := f.nodes.Insert(ctx, models.NodeRow{WorkflowID: wf.ID, Title: "persisted", X: ptr(0), Y: ptr(0)})
	require.NoError(t, err)

	s, err := f.sessions.Open(ctx, wf.ID)
	require.NoError(t, err)
	_, err = s.Mutate(func(c *editor.Canvas) error {
		c.RenameNode(node.ID, "local only")
		return nil
	})
	require.NoError(t, err)

	s2, err := f.sessions.Reload(ctx, wf.ID)
	require.NoError(t, err)
	assert.Same(t, s, s2)
	view := s2.View()
	require.Len(t, view.Nodes, 1)
	assert.Equal(t, "persisted", view.Nodes[0].Title)
}

func TestSessionRegistry_SweepEvictsOnlyIdleSavedSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.sessions.now = func() time.Time { return clock }

	clean, err := f.workflows.Create(ctx, models.Workflow{Title: "clean"})
	require.NoError(t, err)
	edited, err := f.workflows.Create(ctx, models.Workflow{Title: "edited"})
	require.NoError(t, err)
	node, err := f.nodes.Insert(ctx, models.NodeRow{WorkflowID: edited.ID, Title: "a", X: ptr(0), Y: ptr(0)})
	require.NoError(t, err)

	_, err = f.sessions.Open(ctx, clean.ID)
	require.NoError(t, err)
	s, err := f.sessions.Open(ctx, edited.ID)
	require.NoError(t, err)
	_, err = s.Mutate(func(c *editor.Canvas) error {
		c.RenameNode(node.ID, "unsaved")
		return nil
	})
	require.NoError(t, err)

	assert.Zero(t, f.sessions.Sweep(time.Hour), "nothing has been idle long enough")

	clock = clock.Add(2 * time.Hour)
	assert.Equal(t, 1, f.sessions.Sweep(time.Hour))
	assert.Equal(t, 1, f.sessions.Len(), "unsaved edits keep a session alive")

	_, err = s.Save(ctx)
	require.NoError(t, err)
	assert.True(t, s.Idle())

	// the save went through the session; reopening refreshes its use time
	again, err := f.sessions.Open(ctx, edited.ID)
	require.NoError(t, err)
	assert.Same(t, s, again)
	assert.Zero(t, f.sessions.Sweep(time.Hour))

	clock = clock.Add(2 * time.Hour)
	assert.Equal(t, 1, f.sessions.Sweep(time.Hour))
	assert.Zero(t, f.sessions.Len())

	// a dropped workflow opens fresh from the store
	reopened, err := f.sessions.Open(ctx, edited.ID)
	require.NoError(t, err)
	assert.NotSame(t, s, reopened)
	assert.Equal(t, "unsaved", reopened.View().Nodes[0].Title)
}
