package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lyzr/workflow-router/common/cache"
	"github.com/lyzr/workflow-router/common/clients"
	"github.com/lyzr/workflow-router/common/logger"
	"github.com/lyzr/workflow-router/common/models"
	"github.com/lyzr/workflow-router/common/repository"
)

const workflowListKey = "workflows:list"

// Generator produces a workflow from a prose description and writes
// reports on existing ones
type Generator interface {
	Enabled() bool
	Generate(ctx context.Context, prompt, domain string) (*clients.GeneratedWorkflow, error)
	Report(ctx context.Context, wf models.Workflow, nodes []models.NodeRow, edges []models.EdgeRow) (*clients.WorkflowReport, error)
}

// Timer observes how long an operation took
type Timer interface {
	RecordDuration(operation string, start time.Time)
}

// CreateWorkflowRequest represents the input for creating a workflow
type CreateWorkflowRequest struct {
	Title       string  `json:"title" validate:"required"`
	Slug        *string `json:"slug,omitempty"`
	Description *string `json:"description,omitempty"`
	Domain      *string `json:"domain,omitempty"`
	Version     string  `json:"version,omitempty"`
}

// GenerateWorkflowRequest represents the input for generating a workflow
type GenerateWorkflowRequest struct {
	Prompt string `json:"prompt" validate:"required,max=8000"`
	Domain string `json:"domain,omitempty" validate:"max=100"`
}

// WorkflowService owns workflow rows and everything scoped to them
type WorkflowService struct {
	workflows *repository.WorkflowRepository
	nodes     *repository.NodeRepository
	edges     *repository.EdgeRepository
	records   *RecordService
	importer  *ImportService
	generator Generator
	sessions  *SessionRegistry
	cache     cache.Cache
	cacheTTL  time.Duration
	timer     Timer
	log       *logger.Logger
}

// NewWorkflowService creates a new workflow service
func NewWorkflowService(
	workflows *repository.WorkflowRepository,
	nodes *repository.NodeRepository,
	edges *repository.EdgeRepository,
	records *RecordService,
	importer *ImportService,
	generator Generator,
	sessions *SessionRegistry,
	c cache.Cache,
	cacheTTL time.Duration,
	timer Timer,
	log *logger.Logger,
) *WorkflowService {
	return &WorkflowService{
		workflows: workflows,
		nodes:     nodes,
		edges:     edges,
		records:   records,
		importer:  importer,
		generator: generator,
		sessions:  sessions,
		cache:     c,
		cacheTTL:  cacheTTL,
		timer:     timer,
		log:       log,
	}
}

// List returns every workflow, served from the cache while it is fresh
func (s *WorkflowService) List(ctx context.Context) ([]models.Workflow, error) {
	if data, ok, err := s.cache.Get(ctx, workflowListKey); err != nil {
		s.log.Warn("workflow list cache read failed", "error", err)
	} else if ok {
		var cached []models.Workflow
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
	}

	list, err := s.workflows.List(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(list); err == nil {
		if err := s.cache.Set(ctx, workflowListKey, data, s.cacheTTL); err != nil {
			s.log.Warn("workflow list cache write failed", "error", err)
		}
	}
	return list, nil
}

// Get returns one workflow
func (s *WorkflowService) Get(ctx context.Context, id int64) (*models.Workflow, error) {
	return s.workflows.Get(ctx, id)
}

// Create inserts an empty draft workflow
func (s *WorkflowService) Create(ctx context.Context, req *CreateWorkflowRequest) (*models.Workflow, error) {
	version := strings.TrimSpace(req.Version)
	if version == "" {
		version = defaultVersion
	}
	wf, err := s.workflows.Create(ctx, models.Workflow{
		Title:       strings.TrimSpace(req.Title),
		Slug:        req.Slug,
		Description: req.Description,
		Domain:      req.Domain,
		Status:      models.WorkflowDraft,
		Version:     version,
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.log.Info("created workflow", "workflow_id", wf.ID, "title", wf.Title)
	return wf, nil
}

// Update patches the workflow columns
func (s *WorkflowService) Update(ctx context.Context, id int64, patch models.WorkflowPatch) (*models.Workflow, error) {
	wf, err := s.workflows.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.log.Info("updated workflow", "workflow_id", id)
	return wf, nil
}

// Delete removes a workflow with its graph and sub-records. Dependent rows
// go first so stores without cascading foreign keys end up consistent.
func (s *WorkflowService) Delete(ctx context.Context, id int64) error {
	if _, err := s.workflows.Get(ctx, id); err != nil {
		return err
	}
	if err := s.edges.DeleteByWorkflow(ctx, id); err != nil {
		return err
	}
	if err := s.records.PurgeWorkflow(ctx, id); err != nil {
		return err
	}
	if err := s.nodes.DeleteByWorkflow(ctx, id); err != nil {
		return err
	}
	if err := s.workflows.Delete(ctx, id); err != nil {
		return err
	}

	s.sessions.Drop(id)
	s.invalidate(ctx)
	s.log.Info("deleted workflow", "workflow_id", id)
	return nil
}

// Generate asks the generator for a workflow and imports the result
func (s *WorkflowService) Generate(ctx context.Context, req *GenerateWorkflowRequest) (*ImportReport, error) {
	if s.generator == nil || !s.generator.Enabled() {
		return nil, clients.ErrGeneratorDisabled
	}

	start := time.Now()
	gen, err := s.generator.Generate(ctx, req.Prompt, strings.TrimSpace(req.Domain))
	s.observe("generate", start)
	if err != nil {
		return nil, fmt.Errorf("failed to generate workflow: %w", err)
	}

	report, err := s.importer.Import(ctx, gen)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.log.Info("generated workflow",
		"workflow_id", report.Workflow.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

// Import persists an already generated workflow
func (s *WorkflowService) Import(ctx context.Context, gen *clients.GeneratedWorkflow) (*ImportReport, error) {
	report, err := s.importer.Import(ctx, gen)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return report, nil
}

// WorkflowExport is a workflow with its persisted graph
type WorkflowExport struct {
	Workflow *models.Workflow `json:"workflow"`
	Nodes    []models.NodeRow `json:"nodes"`
	Edges    []models.EdgeRow `json:"edges"`
}

// Export reads a workflow and its rows as stored
func (s *WorkflowService) Export(ctx context.Context, id int64) (*WorkflowExport, error) {
	wf, err := s.workflows.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	nodes, err := s.nodes.ListByWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	edges, err := s.edges.ListByWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	return &WorkflowExport{Workflow: wf, Nodes: nodes, Edges: edges}, nil
}

// Report asks the generator for a stakeholder report on the saved graph of
// a workflow
func (s *WorkflowService) Report(ctx context.Context, id int64) (*clients.WorkflowReport, error) {
	if s.generator == nil || !s.generator.Enabled() {
		return nil, clients.ErrGeneratorDisabled
	}
	export, err := s.Export(ctx, id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	report, err := s.generator.Report(ctx, *export.Workflow, export.Nodes, export.Edges)
	s.observe("report", start)
	if err != nil {
		return nil, fmt.Errorf("failed to generate report: %w", err)
	}
	s.log.Info("generated workflow report",
		"workflow_id", id,
		"nodes", len(export.Nodes),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

func (s *WorkflowService) observe(operation string, start time.Time) {
	if s.timer != nil {
		s.timer.RecordDuration(operation, start)
	}
}

func (s *WorkflowService) invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, workflowListKey); err != nil {
		s.log.Warn("workflow list cache invalidation failed", "error", err)
	}
}
