package graph

import (
	"fmt"
	"strconv"
)

// Position is a canvas coordinate
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one step on the canvas. ID <= 0 marks a synthetic, local-only node.
type Node struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Kind     Kind      `json:"kind"`
	Position Position  `json:"position"`
	Details  Details   `json:"details"`
	Status   string    `json:"status,omitempty"`
	Style    NodeStyle `json:"style"`
}

// Synthetic reports whether the node has not been persisted yet
func (n Node) Synthetic() bool {
	return n.ID <= 0
}

// restyle recomputes the derived style from kind and golden path
func (n *Node) restyle() {
	n.Style = StyleFor(n.Kind, n.Details.GoldenPath)
}

func (n Node) clone() Node {
	c := n
	c.Details = n.Details.Clone()
	return c
}

// Edge is a directed connection. ID is the canvas id; RowID is the persisted
// surrogate key and is zero until the edge has been inserted remotely.
type Edge struct {
	ID       string    `json:"id"`
	RowID    int64     `json:"row_id,omitempty"`
	Source   int64     `json:"source"`
	Target   int64     `json:"target"`
	Label    string    `json:"label,omitempty"`
	Animated bool      `json:"animated,omitempty"`
	Style    EdgeStyle `json:"style"`
}

// Key is the reconciliation identity of the edge
func (e Edge) Key() string {
	return EdgeKey(e.Source, e.Target)
}

// Persisted reports whether the edge has a remote row
func (e Edge) Persisted() bool {
	return e.RowID > 0
}

// Touches reports whether nodeID is either endpoint
func (e Edge) Touches(nodeID int64) bool {
	return e.Source == nodeID || e.Target == nodeID
}

// EdgeKey builds the composite reconciliation key "<source>_<target>"
func EdgeKey(source, target int64) string {
	return fmt.Sprintf("%d_%d", source, target)
}

// RowEdgeID is the canvas id used for a persisted edge
func RowEdgeID(rowID int64) string {
	return strconv.FormatInt(rowID, 10)
}

// Snapshot is a plain value copy of the canvas used by history and sync
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Clone returns a deep copy that shares nothing with s
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Nodes: make([]Node, len(s.Nodes)),
		Edges: make([]Edge, len(s.Edges)),
	}
	for i, n := range s.Nodes {
		out.Nodes[i] = n.clone()
	}
	copy(out.Edges, s.Edges)
	return out
}
