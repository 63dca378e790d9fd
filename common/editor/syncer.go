package editor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lyzr/workflow-router/common/graph"
	"github.com/lyzr/workflow-router/common/logger"
	"github.com/lyzr/workflow-router/common/models"
	"github.com/lyzr/workflow-router/common/store"
)

// Save steps, in execution order
const (
	StepUpdateNodes     = "update_nodes"
	StepDeleteEdges     = "delete_edges"
	StepDeleteNodeEdges = "delete_node_edges"
	StepDeleteNodes     = "delete_nodes"
	StepFetchEdges      = "fetch_edges"
	StepInsertEdge      = "insert_edge"
	StepUpdateEdge      = "update_edge"
	StepDeleteStale     = "delete_stale_edges"
)

// StepError reports the save step a failure aborted at. Remote effects of
// earlier steps are not rolled back; the next save converges them.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("save step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// NodeStore is the node table as the engine uses it
type NodeStore interface {
	ListByWorkflow(ctx context.Context, workflowID int64) ([]models.NodeRow, error)
	Insert(ctx context.Context, node models.NodeRow) (models.NodeRow, error)
	UpdatePlacement(ctx context.Context, id int64, patch models.NodePatch) error
	DeleteByIDs(ctx context.Context, ids []int64) error
}

// EdgeStore is the edge table as the engine uses it
type EdgeStore interface {
	ListByWorkflow(ctx context.Context, workflowID int64) ([]models.EdgeRow, error)
	Insert(ctx context.Context, edge models.EdgeRow) (models.EdgeRow, error)
	Update(ctx context.Context, id int64, label, style string) error
	DeleteByIDs(ctx context.Context, ids []int64) error
	DeleteBySources(ctx context.Context, nodeIDs []int64) error
	DeleteByTargets(ctx context.Context, nodeIDs []int64) error
}

// Recorder observes save outcomes
type Recorder interface {
	SaveCompleted(elapsed time.Duration, report SaveReport)
	SaveFailed(step string)
}

// SaveReport counts the remote operations a save issued
type SaveReport struct {
	NodesUpdated   int `json:"nodes_updated"`
	NodesMissing   int `json:"nodes_missing"`
	EdgesInserted  int `json:"edges_inserted"`
	EdgesUpdated   int `json:"edges_updated"`
	EdgesDeleted   int `json:"edges_deleted"`
	EdgesSkipped   int `json:"edges_skipped"`
	EdgeIDsDeleted int `json:"edge_ids_deleted"`
	NodeIDsDeleted int `json:"node_ids_deleted"`

	// Reconciled maps canvas edge ids to the row now backing them
	Reconciled map[string]int64 `json:"-"`
}

// Syncer converges the store to a SavePlan
type Syncer struct {
	nodes    NodeStore
	edges    EdgeStore
	log      *logger.Logger
	recorder Recorder
}

// NewSyncer creates a syncer. log and recorder may be nil.
func NewSyncer(nodes NodeStore, edges EdgeStore, log *logger.Logger, recorder Recorder) *Syncer {
	if log == nil {
		log = logger.Nop()
	}
	return &Syncer{nodes: nodes, edges: edges, log: log, recorder: recorder}
}

// Save runs the reconciliation. Node rows are update-only (creation is
// eager); deletions are flushed edges-first; edges are then diffed by their
// (source, target) key so an unchanged canvas issues no edge operations.
func (s *Syncer) Save(ctx context.Context, plan SavePlan) (SaveReport, error) {
	start := time.Now()
	log := s.log.WithContext(ctx).WithWorkflowID(plan.WorkflowID)
	report := SaveReport{Reconciled: make(map[string]int64)}

	step, err := s.save(ctx, log, plan, &report)
	if err != nil {
		if s.recorder != nil {
			s.recorder.SaveFailed(step)
		}
		log.Warn("save aborted", "step", step, "error", err)
		return report, &StepError{Step: step, Err: err}
	}

	if s.recorder != nil {
		s.recorder.SaveCompleted(time.Since(start), report)
	}
	log.Info("save completed",
		"nodes_updated", report.NodesUpdated,
		"edges_inserted", report.EdgesInserted,
		"edges_updated", report.EdgesUpdated,
		"edges_deleted", report.EdgesDeleted,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

func (s *Syncer) save(ctx context.Context, log *logger.Logger, plan SavePlan, report *SaveReport) (string, error) {
	// 1. node placement, keyed by id
	missing := make(map[int64]bool)
	for _, n := range plan.Nodes {
		if n.Synthetic() {
			continue
		}
		err := s.nodes.UpdatePlacement(ctx, n.ID, models.NodePatch{
			Title:   n.Title,
			Type:    string(n.Kind),
			X:       n.Position.X,
			Y:       n.Position.Y,
			Details: n.Details.ToMap(),
		})
		if errors.Is(err, store.ErrNotFound) {
			log.WithNodeID(n.ID).Warn("node no longer exists remotely, skipping")
			missing[n.ID] = true
			report.NodesMissing++
			continue
		}
		if err != nil {
			return StepUpdateNodes, err
		}
		report.NodesUpdated++
	}

	// 2. deletions, edges before the nodes they reference
	if err := s.edges.DeleteByIDs(ctx, plan.DeletedEdges); err != nil {
		return StepDeleteEdges, err
	}
	report.EdgeIDsDeleted = len(plan.DeletedEdges)
	if err := s.edges.DeleteBySources(ctx, plan.DeletedNodes); err != nil {
		return StepDeleteNodeEdges, err
	}
	if err := s.edges.DeleteByTargets(ctx, plan.DeletedNodes); err != nil {
		return StepDeleteNodeEdges, err
	}
	if err := s.nodes.DeleteByIDs(ctx, plan.DeletedNodes); err != nil {
		return StepDeleteNodes, err
	}
	report.NodeIDsDeleted = len(plan.DeletedNodes)

	// 3. remote edge set
	remoteRows, err := s.edges.ListByWorkflow(ctx, plan.WorkflowID)
	if err != nil {
		return StepFetchEdges, err
	}

	// 4. key maps; a repeated key collapses to its last entry
	remote := make(map[string]models.EdgeRow, len(remoteRows))
	var stale []int64
	for _, row := range remoteRows {
		key := graph.EdgeKey(row.FromNodeID, row.ToNodeID)
		if prev, dup := remote[key]; dup {
			stale = append(stale, prev.ID)
		}
		remote[key] = row
	}

	local := make(map[string]graph.Edge, len(plan.Edges))
	var keys []string
	for _, e := range plan.Edges {
		if e.Source <= 0 || e.Target <= 0 || missing[e.Source] || missing[e.Target] {
			log.Debug("edge endpoint not persisted, skipping", "edge_id", e.ID, "source", e.Source, "target", e.Target)
			report.EdgesSkipped++
			continue
		}
		key := e.Key()
		if _, seen := local[key]; !seen {
			keys = append(keys, key)
		}
		local[key] = e
	}

	// 5 and 6. insert what is new, update what drifted
	for _, key := range keys {
		e := local[key]
		style := styleOf(e)
		row, exists := remote[key]
		if !exists {
			edge := models.EdgeRow{
				WorkflowID: plan.WorkflowID,
				FromNodeID: e.Source,
				ToNodeID:   e.Target,
				Style:      style,
			}
			if e.Label != "" {
				label := e.Label
				edge.Label = &label
			}
			created, err := s.edges.Insert(ctx, edge)
			if err != nil {
				return StepInsertEdge, err
			}
			report.EdgesInserted++
			report.Reconciled[e.ID] = created.ID
			continue
		}

		if row.LabelValue() != e.Label || row.StyleValue() != style {
			if err := s.edges.Update(ctx, row.ID, e.Label, style); err != nil {
				return StepUpdateEdge, err
			}
			report.EdgesUpdated++
		}
		report.Reconciled[e.ID] = row.ID
		delete(remote, key)
	}

	// 7. whatever is left exists only remotely
	for _, row := range remoteRows {
		if r, ok := remote[graph.EdgeKey(row.FromNodeID, row.ToNodeID)]; ok && r.ID == row.ID {
			stale = append(stale, row.ID)
		}
	}
	if len(stale) > 0 {
		if err := s.edges.DeleteByIDs(ctx, stale); err != nil {
			return StepDeleteStale, err
		}
		report.EdgesDeleted = len(stale)
	}
	return "", nil
}

func styleOf(e graph.Edge) string {
	if e.Animated {
		return models.EdgeStyleDashed
	}
	return models.EdgeStyleSolid
}
