package graph

import (
	"github.com/lyzr/workflow-router/common/models"
)

// Fallback coordinate for rows persisted without a position
const DefaultCoordinate = 100.0

// Model is the single-writer arena holding one workflow's nodes and edges.
// Insertion order is kept so LastNode reflects the most recently added node.
// Model is not safe for concurrent use; the owning session serializes access.
type Model struct {
	nodes   []Node
	edges   []Edge
	nodeIdx map[int64]int
	edgeIdx map[string]int
}

// NewModel returns an empty model
func NewModel() *Model {
	return &Model{
		nodeIdx: make(map[int64]int),
		edgeIdx: make(map[string]int),
	}
}

// LoadFrom replaces the model contents with remote rows. Edges with an
// endpoint outside the loaded node set are pruned and returned.
func (m *Model) LoadFrom(nodeRows []models.NodeRow, edgeRows []models.EdgeRow) (pruned []models.EdgeRow) {
	nodes := make([]Node, 0, len(nodeRows))
	kinds := make(map[int64]Kind, len(nodeRows))
	for _, row := range nodeRows {
		n := NodeFromRow(row)
		kinds[n.ID] = n.Kind
		nodes = append(nodes, n)
	}

	edges := make([]Edge, 0, len(edgeRows))
	for _, row := range edgeRows {
		sourceKind, okSource := kinds[row.FromNodeID]
		_, okTarget := kinds[row.ToNodeID]
		if !okSource || !okTarget {
			pruned = append(pruned, row)
			continue
		}
		edges = append(edges, EdgeFromRow(row, sourceKind))
	}

	m.Restore(Snapshot{Nodes: nodes, Edges: edges})
	return pruned
}

// NodeFromRow maps a persisted node into its canvas form
func NodeFromRow(row models.NodeRow) Node {
	pos := Position{X: DefaultCoordinate, Y: DefaultCoordinate}
	if row.X != nil {
		pos.X = *row.X
	}
	if row.Y != nil {
		pos.Y = *row.Y
	}
	title := row.Title
	if title == "" {
		title = "Node"
	}
	n := Node{
		ID:       row.ID,
		Title:    title,
		Kind:     ParseKind(row.Type),
		Position: pos,
		Details:  DetailsFromMap(row.Details),
		Status:   row.Status,
	}
	n.restyle()
	return n
}

// EdgeFromRow maps a persisted edge into its canvas form
func EdgeFromRow(row models.EdgeRow, sourceKind Kind) Edge {
	return Edge{
		ID:       RowEdgeID(row.ID),
		RowID:    row.ID,
		Source:   row.FromNodeID,
		Target:   row.ToNodeID,
		Label:    row.LabelValue(),
		Animated: row.StyleValue() == models.EdgeStyleDashed,
		Style:    EdgeStyleFor(sourceKind),
	}
}

// Snapshot returns a deep copy of the current state
func (m *Model) Snapshot() Snapshot {
	return Snapshot{Nodes: m.nodes, Edges: m.edges}.Clone()
}

// Restore replaces the state with a deep copy of s
func (m *Model) Restore(s Snapshot) {
	c := s.Clone()
	m.nodes = c.Nodes
	m.edges = c.Edges
	m.reindex()
}

func (m *Model) reindex() {
	m.nodeIdx = make(map[int64]int, len(m.nodes))
	for i, n := range m.nodes {
		m.nodeIdx[n.ID] = i
	}
	m.edgeIdx = make(map[string]int, len(m.edges))
	for i, e := range m.edges {
		m.edgeIdx[e.ID] = i
	}
}

// Len returns the node and edge counts
func (m *Model) Len() (nodes, edges int) {
	return len(m.nodes), len(m.edges)
}

// Node returns a copy of the node with id
func (m *Model) Node(id int64) (Node, bool) {
	i, ok := m.nodeIdx[id]
	if !ok {
		return Node{}, false
	}
	return m.nodes[i].clone(), true
}

// Edge returns a copy of the edge with canvas id
func (m *Model) Edge(id string) (Edge, bool) {
	i, ok := m.edgeIdx[id]
	if !ok {
		return Edge{}, false
	}
	return m.edges[i], true
}

// EdgeBetween returns the edge from source to target, if any
func (m *Model) EdgeBetween(source, target int64) (Edge, bool) {
	for _, e := range m.edges {
		if e.Source == source && e.Target == target {
			return e, true
		}
	}
	return Edge{}, false
}

// Nodes returns copies of all nodes in insertion order
func (m *Model) Nodes() []Node {
	return m.Snapshot().Nodes
}

// Edges returns copies of all edges in insertion order
func (m *Model) Edges() []Edge {
	out := make([]Edge, len(m.edges))
	copy(out, m.edges)
	return out
}

// LastNode returns the most recently added node
func (m *Model) LastNode() (Node, bool) {
	if len(m.nodes) == 0 {
		return Node{}, false
	}
	return m.nodes[len(m.nodes)-1].clone(), true
}

// KindOf returns the kind of node id, defaulting to action
func (m *Model) KindOf(id int64) Kind {
	if i, ok := m.nodeIdx[id]; ok {
		return m.nodes[i].Kind
	}
	return KindAction
}

// AddNode appends n with its style derived
func (m *Model) AddNode(n Node) {
	n = n.clone()
	n.restyle()
	m.nodeIdx[n.ID] = len(m.nodes)
	m.nodes = append(m.nodes, n)
}

// AddEdge appends e
func (m *Model) AddEdge(e Edge) {
	m.edgeIdx[e.ID] = len(m.edges)
	m.edges = append(m.edges, e)
}

// UpdateNode applies fn to the node in place and restyles it
func (m *Model) UpdateNode(id int64, fn func(*Node)) bool {
	i, ok := m.nodeIdx[id]
	if !ok {
		return false
	}
	fn(&m.nodes[i])
	m.nodes[i].restyle()
	return true
}

// UpdateEdge applies fn to the edge in place. fn must not change the canvas id.
func (m *Model) UpdateEdge(id string, fn func(*Edge)) bool {
	i, ok := m.edgeIdx[id]
	if !ok {
		return false
	}
	fn(&m.edges[i])
	return true
}

// RestyleEdgesFrom re-derives the style of every edge leaving source
func (m *Model) RestyleEdgesFrom(source int64) int {
	kind := m.KindOf(source)
	count := 0
	for i := range m.edges {
		if m.edges[i].Source == source {
			m.edges[i].Style = EdgeStyleFor(kind)
			count++
		}
	}
	return count
}

// RemoveNode deletes the node and every incident edge, returning the removed edges
func (m *Model) RemoveNode(id int64) ([]Edge, bool) {
	i, ok := m.nodeIdx[id]
	if !ok {
		return nil, false
	}
	m.nodes = append(m.nodes[:i], m.nodes[i+1:]...)

	var removed []Edge
	kept := m.edges[:0]
	for _, e := range m.edges {
		if e.Touches(id) {
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}
	m.edges = kept
	m.reindex()
	return removed, true
}

// RemoveEdge deletes the edge with canvas id
func (m *Model) RemoveEdge(id string) (Edge, bool) {
	i, ok := m.edgeIdx[id]
	if !ok {
		return Edge{}, false
	}
	e := m.edges[i]
	m.edges = append(m.edges[:i], m.edges[i+1:]...)
	m.reindex()
	return e, true
}

// ReplaceEdgeID rekeys an edge after it has been persisted
func (m *Model) ReplaceEdgeID(oldID string, rowID int64) bool {
	i, ok := m.edgeIdx[oldID]
	if !ok {
		return false
	}
	m.edges[i].RowID = rowID
	m.edges[i].ID = RowEdgeID(rowID)
	m.reindex()
	return true
}
