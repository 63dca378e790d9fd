// Package editor owns the live canvas of one workflow: the mutation surface
// over the graph model, the undo history, the deletion buffers, and the
// synchronization of all of it back to the store.
package editor

import (
	"github.com/google/uuid"

	"github.com/lyzr/workflow-router/common/graph"
	"github.com/lyzr/workflow-router/common/history"
	"github.com/lyzr/workflow-router/common/models"
)

// Placement of appended nodes
const (
	FirstNodeX   = 250.0
	FirstNodeY   = 250.0
	AppendOffset = 120.0
)

// Canvas is the local mutation surface. Every mutation records the
// pre-mutation state in history before touching the model. Mutations never
// fail: an unknown id is a no-op reported as false.
//
// Canvas is not safe for concurrent use; Session serializes access.
type Canvas struct {
	model   *graph.Model
	history *history.History
	labels  *LabelEditor

	deletedNodes idSet
	deletedEdges idSet

	nextSynthetic int64
	batch         *batch

	// revision counts edits; savedRevision is the revision the last
	// successful save captured
	revision      uint64
	savedRevision uint64
}

// batch is the state captured when a Batch opens
type batch struct {
	before       graph.Snapshot
	deletedNodes idSet
	deletedEdges idSet
	dirty        bool
}

// NewCanvas creates an empty canvas with the given history depth
func NewCanvas(historyDepth int) *Canvas {
	c := &Canvas{
		model:   graph.NewModel(),
		history: history.New(historyDepth),
	}
	c.labels = &LabelEditor{canvas: c}
	return c
}

// Load replaces the canvas with remote rows, dropping history and buffers.
// Edges whose endpoints are not in nodeRows are pruned and returned.
func (c *Canvas) Load(nodeRows []models.NodeRow, edgeRows []models.EdgeRow) []models.EdgeRow {
	pruned := c.model.LoadFrom(nodeRows, edgeRows)
	c.history.Reset()
	c.revision, c.savedRevision = 0, 0
	c.deletedNodes = idSet{}
	c.deletedEdges = idSet{}
	c.labels.Cancel()
	return pruned
}

// Snapshot returns a deep copy of the live state
func (c *Canvas) Snapshot() graph.Snapshot {
	return c.model.Snapshot()
}

// Node returns a copy of one node
func (c *Canvas) Node(id int64) (graph.Node, bool) {
	return c.model.Node(id)
}

// Edge returns a copy of one edge
func (c *Canvas) Edge(id string) (graph.Edge, bool) {
	return c.model.Edge(id)
}

// History exposes the undo log for inspection
func (c *Canvas) History() *history.History {
	return c.history
}

// Labels returns the inline edge-label editor
func (c *Canvas) Labels() *LabelEditor {
	return c.labels
}

func (c *Canvas) record() {
	if c.batch != nil {
		c.batch.dirty = true
		return
	}
	c.history.Record(c.model.Snapshot())
	c.revision++
}

// Dirty reports whether the canvas holds edits no save has captured
func (c *Canvas) Dirty() bool {
	return c.revision != c.savedRevision
}

// Batch runs fn as one undoable step: every mutation it makes is covered by
// a single history entry. When fn fails the canvas is put back as it was
// and nothing is recorded. Nested batches join the outer one.
func (c *Canvas) Batch(fn func() error) error {
	if c.batch != nil {
		return fn()
	}
	b := &batch{
		before:       c.model.Snapshot(),
		deletedNodes: c.deletedNodes.clone(),
		deletedEdges: c.deletedEdges.clone(),
	}
	c.batch = b
	err := fn()
	c.batch = nil

	if err != nil {
		c.model.Restore(b.before)
		c.deletedNodes, c.deletedEdges = b.deletedNodes, b.deletedEdges
		return err
	}
	if b.dirty {
		c.history.Record(b.before)
		c.revision++
	}
	return nil
}

// DraftNode builds the node AddNode would append, without touching the
// model. prev is the node it would be connected from.
func (c *Canvas) DraftNode(kind graph.Kind) (draft graph.Node, prev graph.Node, hasPrev bool) {
	if kind == "" {
		kind = graph.KindAction
	}
	draft = graph.Node{
		Title:    "New " + string(kind),
		Kind:     kind,
		Position: graph.Position{X: FirstNodeX, Y: FirstNodeY},
		Details:  graph.Details{GoldenPath: false},
		Status:   "active",
	}
	prev, hasPrev = c.model.LastNode()
	if hasPrev {
		draft.Position = graph.Position{X: prev.Position.X, Y: prev.Position.Y + AppendOffset}
	}
	return draft, prev, hasPrev
}

// AddNode appends a local-only node with a synthetic id and connects it
// from the previously added node. Session.AddNode is the persisted variant.
func (c *Canvas) AddNode(kind graph.Kind) graph.Node {
	draft, prev, hasPrev := c.DraftNode(kind)
	c.nextSynthetic--
	draft.ID = c.nextSynthetic

	var link *graph.Edge
	if hasPrev {
		e := c.LinkEdge(prev.ID, draft.ID)
		link = &e
	}
	c.AttachNode(draft, link)
	added, _ := c.model.Node(draft.ID)
	return added
}

// LinkEdge builds an unpersisted edge from source to target styled by the
// source kind. It does not add it to the model.
func (c *Canvas) LinkEdge(source, target int64) graph.Edge {
	return graph.Edge{
		ID:     "edge-" + uuid.NewString(),
		Source: source,
		Target: target,
		Style:  graph.EdgeStyleFor(c.model.KindOf(source)),
	}
}

// AttachNode records history once and adds n plus its optional link edge
func (c *Canvas) AttachNode(n graph.Node, link *graph.Edge) {
	c.record()
	c.model.AddNode(n)
	if link != nil {
		l := *link
		l.Style = graph.EdgeStyleFor(c.model.KindOf(l.Source))
		c.model.AddEdge(l)
	}
}

// Connect adds an edge between two existing nodes. A second edge between
// the same ordered pair is refused since reconciliation keys on the pair.
func (c *Canvas) Connect(source, target int64, label string) (graph.Edge, bool) {
	if _, ok := c.model.Node(source); !ok {
		return graph.Edge{}, false
	}
	if _, ok := c.model.Node(target); !ok {
		return graph.Edge{}, false
	}
	if _, dup := c.model.EdgeBetween(source, target); dup {
		return graph.Edge{}, false
	}

	e := c.LinkEdge(source, target)
	e.Label = label
	c.record()
	c.model.AddEdge(e)
	return e, true
}

func (c *Canvas) mutateNode(id int64, fn func(*graph.Node)) bool {
	if _, ok := c.model.Node(id); !ok {
		return false
	}
	c.record()
	return c.model.UpdateNode(id, fn)
}

// MoveNode sets a node position
func (c *Canvas) MoveNode(id int64, x, y float64) bool {
	return c.mutateNode(id, func(n *graph.Node) {
		n.Position = graph.Position{X: x, Y: y}
	})
}

// RenameNode sets a node title
func (c *Canvas) RenameNode(id int64, title string) bool {
	return c.mutateNode(id, func(n *graph.Node) {
		n.Title = title
	})
}

// SetNodeKind changes the kind and restyles the node and its outgoing edges
func (c *Canvas) SetNodeKind(id int64, kind graph.Kind) bool {
	ok := c.mutateNode(id, func(n *graph.Node) {
		n.Kind = kind
	})
	if ok {
		c.model.RestyleEdgesFrom(id)
	}
	return ok
}

// SetGoldenPath flags a node as part of the primary flow
func (c *Canvas) SetGoldenPath(id int64, golden bool) bool {
	return c.mutateNode(id, func(n *graph.Node) {
		n.Details.GoldenPath = golden
	})
}

// DeleteNode removes a node and every incident edge. The node id (when
// persisted) and the row ids of removed persisted edges are buffered for
// the next save.
func (c *Canvas) DeleteNode(id int64) bool {
	n, ok := c.model.Node(id)
	if !ok {
		return false
	}
	c.record()
	removed, _ := c.model.RemoveNode(id)
	if !n.Synthetic() {
		c.deletedNodes.add(id)
	}
	for _, e := range removed {
		if e.Persisted() {
			c.deletedEdges.add(e.RowID)
		}
	}
	if editing, _, active := c.labels.Editing(); active {
		if _, still := c.model.Edge(editing); !still {
			c.labels.Cancel()
		}
	}
	return true
}

// DeleteEdge removes one edge and buffers its row id when persisted
func (c *Canvas) DeleteEdge(id string) bool {
	if _, ok := c.model.Edge(id); !ok {
		return false
	}
	c.record()
	e, _ := c.model.RemoveEdge(id)
	if e.Persisted() {
		c.deletedEdges.add(e.RowID)
	}
	if editing, _, active := c.labels.Editing(); active && editing == id {
		c.labels.Cancel()
	}
	return true
}

// RelabelEdge sets an edge label
func (c *Canvas) RelabelEdge(id string, label string) bool {
	if _, ok := c.model.Edge(id); !ok {
		return false
	}
	c.record()
	return c.model.UpdateEdge(id, func(e *graph.Edge) {
		e.Label = label
	})
}

// SetAnimated toggles the dashed rendering of an edge
func (c *Canvas) SetAnimated(id string, animated bool) bool {
	if _, ok := c.model.Edge(id); !ok {
		return false
	}
	c.record()
	return c.model.UpdateEdge(id, func(e *graph.Edge) {
		e.Animated = animated
	})
}

// Undo restores the previous state. Persisted entities that vanish as a
// result are buffered for deletion like an explicit delete would.
func (c *Canvas) Undo() bool {
	current := c.model.Snapshot()
	prev, ok := c.history.Undo(current)
	if !ok {
		return false
	}
	c.apply(current, prev)
	return true
}

// Redo re-applies the next undone state
func (c *Canvas) Redo() bool {
	current := c.model.Snapshot()
	next, ok := c.history.Redo(current)
	if !ok {
		return false
	}
	c.apply(current, next)
	return true
}

func (c *Canvas) apply(from, to graph.Snapshot) {
	c.history.Apply(func() {
		c.model.Restore(to)
	})
	c.revision++
	c.bufferVanished(from)
	if editing, _, active := c.labels.Editing(); active {
		if _, still := c.model.Edge(editing); !still {
			c.labels.Cancel()
		}
	}
}

func (c *Canvas) bufferVanished(from graph.Snapshot) {
	for _, n := range from.Nodes {
		if _, still := c.model.Node(n.ID); !still && !n.Synthetic() {
			c.deletedNodes.add(n.ID)
		}
	}
	// an edge whose pair is still on the canvas is reconciled by key on save
	live := make(map[int64]bool)
	liveKeys := make(map[string]bool)
	for _, e := range c.model.Edges() {
		liveKeys[e.Key()] = true
		if e.Persisted() {
			live[e.RowID] = true
		}
	}
	for _, e := range from.Edges {
		if e.Persisted() && !live[e.RowID] && !liveKeys[e.Key()] {
			c.deletedEdges.add(e.RowID)
		}
	}
}

// Pending lists the buffered deletions
type Pending struct {
	Nodes []int64 `json:"nodes"`
	Edges []int64 `json:"edges"`
}

// Pending returns a copy of the deletion buffers
func (c *Canvas) Pending() Pending {
	return Pending{Nodes: c.deletedNodes.list(), Edges: c.deletedEdges.list()}
}

// idSet is an insertion-ordered set of row ids
type idSet struct {
	order []int64
	seen  map[int64]bool
}

func (s *idSet) add(id int64) {
	if s.seen == nil {
		s.seen = make(map[int64]bool)
	}
	if s.seen[id] {
		return
	}
	s.seen[id] = true
	s.order = append(s.order, id)
}

func (s *idSet) clone() idSet {
	out := idSet{order: append([]int64(nil), s.order...), seen: make(map[int64]bool, len(s.seen))}
	for id := range s.seen {
		out.seen[id] = true
	}
	return out
}

func (s *idSet) has(id int64) bool {
	return s.seen[id]
}

func (s *idSet) remove(ids []int64) {
	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := s.order[:0]
	for _, id := range s.order {
		if drop[id] {
			delete(s.seen, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

func (s *idSet) list() []int64 {
	out := make([]int64, len(s.order))
	copy(out, s.order)
	return out
}
