package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lyzr/workflow-router/common/graph"
	"github.com/lyzr/workflow-router/common/logger"
	"github.com/lyzr/workflow-router/common/models"
)

var (
	// ErrSaveInProgress is returned when a save overlaps another one
	ErrSaveInProgress = errors.New("save already in progress")

	// ErrUnknownNode is returned when an operation names a node not on the canvas
	ErrUnknownNode = errors.New("unknown node")

	// ErrUnknownEdge is returned when an operation names an edge not on the canvas
	ErrUnknownEdge = errors.New("unknown edge")
)

// SaveLock extends the busy guard across processes
type SaveLock interface {
	// Acquire returns ok=false when another holder owns key
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// View is a read-only copy of a session for rendering
type View struct {
	WorkflowID int64        `json:"workflow_id"`
	Nodes      []graph.Node `json:"nodes"`
	Edges      []graph.Edge `json:"edges"`
	Pending    Pending      `json:"pending"`
	CanUndo    bool         `json:"can_undo"`
	CanRedo    bool         `json:"can_redo"`
	Saving     bool         `json:"saving"`
	LoadedAt   time.Time    `json:"loaded_at"`
}

// Session is the live editing state of one workflow: a canvas, its syncer,
// and the lock that serializes access to them. Mutations are synchronous;
// only Save and AddNode reach the store.
type Session struct {
	workflowID int64

	mu       sync.Mutex
	canvas   *Canvas
	saving   bool
	loadedAt time.Time

	nodes   NodeStore
	edges   EdgeStore
	syncer  *Syncer
	lock    SaveLock
	lockTTL time.Duration
	log     *logger.Logger
}

// SessionConfig carries the collaborators of a session
type SessionConfig struct {
	Nodes        NodeStore
	Edges        EdgeStore
	Logger       *logger.Logger
	Recorder     Recorder
	Lock         SaveLock
	LockTTL      time.Duration
	HistoryDepth int
}

// NewSession creates an unloaded session
func NewSession(workflowID int64, cfg SessionConfig) *Session {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Session{
		workflowID: workflowID,
		canvas:     NewCanvas(cfg.HistoryDepth),
		nodes:      cfg.Nodes,
		edges:      cfg.Edges,
		syncer:     NewSyncer(cfg.Nodes, cfg.Edges, log, cfg.Recorder),
		lock:       cfg.Lock,
		lockTTL:    ttl,
		log:        log.WithWorkflowID(workflowID),
	}
}

// WorkflowID returns the workflow this session edits
func (s *Session) WorkflowID() int64 {
	return s.workflowID
}

// Load replaces the canvas with the persisted graph
func (s *Session) Load(ctx context.Context) error {
	nodeRows, err := s.nodes.ListByWorkflow(ctx, s.workflowID)
	if err != nil {
		return fmt.Errorf("failed to load nodes: %w", err)
	}
	edgeRows, err := s.edges.ListByWorkflow(ctx, s.workflowID)
	if err != nil {
		return fmt.Errorf("failed to load edges: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	pruned := s.canvas.Load(nodeRows, edgeRows)
	for _, row := range pruned {
		s.log.Debug("pruned orphan edge", "edge_id", row.ID, "from", row.FromNodeID, "to", row.ToNodeID)
	}
	s.loadedAt = time.Now()
	s.log.Info("canvas loaded", "nodes", len(nodeRows), "edges", len(edgeRows)-len(pruned), "pruned", len(pruned))
	return nil
}

// View returns a copy of the canvas
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	snap := s.canvas.Snapshot()
	return View{
		WorkflowID: s.workflowID,
		Nodes:      snap.Nodes,
		Edges:      snap.Edges,
		Pending:    s.canvas.Pending(),
		CanUndo:    s.canvas.History().CanUndo(),
		CanRedo:    s.canvas.History().CanRedo(),
		Saving:     s.saving,
		LoadedAt:   s.loadedAt,
	}
}

// Idle reports whether dropping the session would lose nothing: no save is
// in flight, every edit has been saved and no deletion is buffered.
func (s *Session) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.canvas.Pending()
	return !s.saving && !s.canvas.Dirty() && len(p.Nodes) == 0 && len(p.Edges) == 0
}

// Mutate runs fn against the canvas under the session lock and returns the
// resulting view. Mutations keep working while a save is in flight.
func (s *Session) Mutate(fn func(c *Canvas) error) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.canvas); err != nil {
		return s.viewLocked(), err
	}
	return s.viewLocked(), nil
}

// AddNode inserts a node row immediately so it has a real id, then appends
// it to the canvas connected from the previous node. The connecting edge is
// inserted eagerly too; if that fails it stays local and the next save
// inserts it. A failed node insert leaves the canvas untouched.
func (s *Session) AddNode(ctx context.Context, kind graph.Kind) (graph.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, prev, hasPrev := s.canvas.DraftNode(kind)
	x, y := draft.Position.X, draft.Position.Y
	row, err := s.nodes.Insert(ctx, models.NodeRow{
		WorkflowID: s.workflowID,
		Title:      draft.Title,
		Type:       string(draft.Kind),
		X:          &x,
		Y:          &y,
		Details:    draft.Details.ToMap(),
		Status:     draft.Status,
	})
	if err != nil {
		return graph.Node{}, fmt.Errorf("failed to insert node: %w", err)
	}
	node := graph.NodeFromRow(row)

	var link *graph.Edge
	if hasPrev {
		e := s.canvas.LinkEdge(prev.ID, node.ID)
		if !prev.Synthetic() {
			created, err := s.edges.Insert(ctx, models.EdgeRow{
				WorkflowID: s.workflowID,
				FromNodeID: prev.ID,
				ToNodeID:   node.ID,
				Style:      models.EdgeStyleSolid,
			})
			if err != nil {
				s.log.Warn("failed to insert connecting edge, deferring to save", "from", prev.ID, "to", node.ID, "error", err)
			} else {
				e.RowID = created.ID
				e.ID = graph.RowEdgeID(created.ID)
			}
		}
		link = &e
	}

	s.canvas.AttachNode(node, link)
	added, _ := s.canvas.Node(node.ID)
	s.log.Debug("node added", "node_id", node.ID, "kind", node.Kind)
	return added, nil
}

// Save converges the store to the canvas. A second Save while one is in
// flight (here or, with a SaveLock, in another process) returns
// ErrSaveInProgress. Once started, a save is not cancelled by ctx.
func (s *Session) Save(ctx context.Context) (SaveReport, error) {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return SaveReport{}, ErrSaveInProgress
	}
	s.saving = true
	plan := s.canvas.Plan(s.workflowID)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.saving = false
		s.mu.Unlock()
	}()

	if s.lock != nil {
		release, ok, err := s.lock.Acquire(ctx, SaveLockKey(s.workflowID), s.lockTTL)
		if err != nil {
			return SaveReport{}, fmt.Errorf("failed to acquire save lock: %w", err)
		}
		if !ok {
			return SaveReport{}, ErrSaveInProgress
		}
		defer release()
	}

	report, err := s.syncer.Save(context.WithoutCancel(ctx), plan)
	if err != nil {
		return report, err
	}

	s.mu.Lock()
	s.canvas.Settle(plan, report)
	s.mu.Unlock()
	return report, nil
}

// SaveLockKey is the cross-process lock key of a workflow's save
func SaveLockKey(workflowID int64) string {
	return fmt.Sprintf("vwf:save:%d", workflowID)
}
