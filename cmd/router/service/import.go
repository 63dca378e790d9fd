package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/lyzr/workflow-router/common/clients"
	"github.com/lyzr/workflow-router/common/graph"
	"github.com/lyzr/workflow-router/common/logger"
	"github.com/lyzr/workflow-router/common/models"
	"github.com/lyzr/workflow-router/common/repository"
)

const (
	defaultDomain  = "General"
	defaultVersion = "1.0"
	nodeActive     = "active"
)

// ImportReport describes what an import wrote
type ImportReport struct {
	Workflow     *models.Workflow `json:"workflow"`
	NodesCreated int              `json:"nodes_created"`
	EdgesCreated int              `json:"edges_created"`
	SkippedEdges int              `json:"skipped_edges"`

	// IDMap maps provider node ids to the ids the store assigned
	IDMap map[clients.ProviderID]int64 `json:"id_map"`
}

// ImportService persists a generated workflow: the workflow row, then its
// nodes, then edges rewritten onto the ids the store assigned to the nodes
type ImportService struct {
	workflows *repository.WorkflowRepository
	nodes     *repository.NodeRepository
	edges     *repository.EdgeRepository
	log       *logger.Logger
}

// NewImportService creates a new import service
func NewImportService(
	workflows *repository.WorkflowRepository,
	nodes *repository.NodeRepository,
	edges *repository.EdgeRepository,
	log *logger.Logger,
) *ImportService {
	return &ImportService{workflows: workflows, nodes: nodes, edges: edges, log: log}
}

// Import writes gen to the store. Rows already written stay in place when a
// later insert fails; the error names the step that failed.
func (s *ImportService) Import(ctx context.Context, gen *clients.GeneratedWorkflow) (*ImportReport, error) {
	wf, err := s.workflows.Create(ctx, workflowFromGenerated(gen))
	if err != nil {
		return nil, fmt.Errorf("failed to import workflow: %w", err)
	}
	log := s.log.WithWorkflowID(wf.ID)

	report := &ImportReport{
		Workflow: wf,
		IDMap:    make(map[clients.ProviderID]int64, len(gen.Nodes)),
	}

	for i, n := range gen.Nodes {
		row := models.NodeRow{
			WorkflowID: wf.ID,
			Title:      n.Title,
			Type:       string(graph.ParseKind(n.Type)),
			X:          n.X,
			Y:          n.Y,
			Details:    n.Details,
			Status:     nodeActive,
		}
		if row.Details == nil {
			row.Details = map[string]any{}
		}
		if n.ID != "" {
			pid := string(n.ID)
			row.ProviderID = &pid
		}

		created, err := s.nodes.Insert(ctx, row)
		if err != nil {
			return report, fmt.Errorf("failed to import node %d (%q): %w", i, n.ID, err)
		}
		report.NodesCreated++

		if n.ID == "" {
			continue
		}
		if first, dup := report.IDMap[n.ID]; dup {
			log.Warn("duplicate provider node id, edges keep the first node",
				"provider_id", n.ID, "kept_node_id", first, "duplicate_node_id", created.ID)
			continue
		}
		report.IDMap[n.ID] = created.ID
	}

	for _, e := range gen.Edges {
		from, okFrom := report.IDMap[e.FromNodeID]
		to, okTo := report.IDMap[e.ToNodeID]
		if !okFrom || !okTo {
			log.Warn("skipping edge with unknown endpoint",
				"provider_edge_id", e.ID, "from", e.FromNodeID, "to", e.ToNodeID)
			report.SkippedEdges++
			continue
		}

		label := e.Label
		style := e.Style
		if style == "" {
			style = models.EdgeStyleSolid
		}
		if _, err := s.edges.Insert(ctx, models.EdgeRow{
			WorkflowID: wf.ID,
			FromNodeID: from,
			ToNodeID:   to,
			Label:      &label,
			Style:      style,
		}); err != nil {
			return report, fmt.Errorf("failed to import edge %q: %w", e.ID, err)
		}
		report.EdgesCreated++
	}

	log.Info("imported workflow",
		"title", wf.Title,
		"nodes", report.NodesCreated,
		"edges", report.EdgesCreated,
		"skipped_edges", report.SkippedEdges,
	)
	return report, nil
}

func workflowFromGenerated(gen *clients.GeneratedWorkflow) models.Workflow {
	domain := strings.TrimSpace(gen.Domain)
	if domain == "" {
		domain = defaultDomain
	}
	version := strings.TrimSpace(gen.Version)
	if version == "" {
		version = defaultVersion
	}

	wf := models.Workflow{
		Title:   gen.Title,
		Domain:  &domain,
		Status:  models.WorkflowDraft,
		Version: version,
	}
	if gen.Description != "" {
		desc := gen.Description
		wf.Description = &desc
	}
	return wf
}
