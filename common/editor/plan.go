package editor

import (
	"github.com/lyzr/workflow-router/common/graph"
)

// SavePlan is the copy-on-read input of one save. It shares nothing with
// the live canvas, so edits made while the save is in flight are neither
// corrupted nor included.
type SavePlan struct {
	WorkflowID int64
	Nodes      []graph.Node
	Edges      []graph.Edge

	// DeletedNodes and DeletedEdges are the buffered ids still absent from
	// the canvas; an undone delete is not flushed.
	DeletedNodes []int64
	DeletedEdges []int64

	// captured buffer contents, cleared from the live buffers on success
	bufferedNodes []int64
	bufferedEdges []int64
	revision      uint64
}

// Plan captures the state a save will converge the store to
func (c *Canvas) Plan(workflowID int64) SavePlan {
	snap := c.model.Snapshot()
	plan := SavePlan{
		WorkflowID:    workflowID,
		Nodes:         snap.Nodes,
		Edges:         snap.Edges,
		bufferedNodes: c.deletedNodes.list(),
		bufferedEdges: c.deletedEdges.list(),
		revision:      c.revision,
	}

	liveNodes := make(map[int64]bool, len(snap.Nodes))
	for _, n := range snap.Nodes {
		liveNodes[n.ID] = true
	}
	liveEdges := make(map[int64]bool, len(snap.Edges))
	for _, e := range snap.Edges {
		if e.Persisted() {
			liveEdges[e.RowID] = true
		}
	}
	for _, id := range plan.bufferedNodes {
		if !liveNodes[id] {
			plan.DeletedNodes = append(plan.DeletedNodes, id)
		}
	}
	for _, id := range plan.bufferedEdges {
		if !liveEdges[id] {
			plan.DeletedEdges = append(plan.DeletedEdges, id)
		}
	}
	return plan
}

// Settle folds a successful save back into the canvas: the captured buffer
// ids are cleared (ids buffered during the save survive) and reconciled
// edges adopt their row ids, in the live model and in the history.
func (c *Canvas) Settle(plan SavePlan, report SaveReport) {
	c.deletedNodes.remove(plan.bufferedNodes)
	c.deletedEdges.remove(plan.bufferedEdges)
	c.savedRevision = plan.revision

	for canvasID, rowID := range report.Reconciled {
		e, ok := c.model.Edge(canvasID)
		if !ok || e.RowID == rowID {
			continue
		}
		if _, taken := c.model.Edge(graph.RowEdgeID(rowID)); taken {
			continue
		}
		c.model.ReplaceEdgeID(canvasID, rowID)
	}

	if len(report.Reconciled) > 0 {
		c.history.Rewrite(func(s *graph.Snapshot) {
			adoptRowIDs(s.Edges, report.Reconciled)
		})
	}
}

func adoptRowIDs(edges []graph.Edge, reconciled map[string]int64) {
	taken := make(map[string]bool, len(edges))
	for _, e := range edges {
		taken[e.ID] = true
	}
	for i, e := range edges {
		rowID, ok := reconciled[e.ID]
		if !ok || e.RowID == rowID || taken[graph.RowEdgeID(rowID)] {
			continue
		}
		edges[i].RowID = rowID
		edges[i].ID = graph.RowEdgeID(rowID)
		taken[edges[i].ID] = true
	}
}
