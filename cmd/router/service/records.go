package service

import (
	"context"
	"fmt"

	"github.com/lyzr/workflow-router/common/logger"
	"github.com/lyzr/workflow-router/common/store"
)

// NodeScope addresses the error rows of one node
type NodeScope struct {
	WorkflowID int64
	NodeID     int64
}

// RecordService serves the problem and error sub-records of a workflow
type RecordService struct {
	problems *store.ListStore[int64]
	errors   *store.ListStore[NodeScope]
	backend  store.Backend
	log      *logger.Logger
}

// NewRecordService creates a new record service
func NewRecordService(backend store.Backend, log *logger.Logger) *RecordService {
	problems := store.NewListStore(backend.Table(store.TableProblem),
		func(workflowID int64) []store.Filter {
			return []store.Filter{store.Eq("workflow_id", workflowID)}
		},
		store.Asc("is_solved"), store.Desc("reported_at"),
	)
	errs := store.NewListStore(backend.Table(store.TableError),
		func(s NodeScope) []store.Filter {
			return []store.Filter{store.Eq("workflow_id", s.WorkflowID), store.Eq("node_id", s.NodeID)}
		},
		store.Asc("is_fixed"), store.Desc("reported_at"),
	)
	return &RecordService{problems: problems, errors: errs, backend: backend, log: log}
}

// Problems is the workflow-scoped problem list
func (s *RecordService) Problems() *store.ListStore[int64] {
	return s.problems
}

// Errors is the node-scoped error list
func (s *RecordService) Errors() *store.ListStore[NodeScope] {
	return s.errors
}

// PurgeWorkflow removes every sub-record of a workflow
func (s *RecordService) PurgeWorkflow(ctx context.Context, workflowID int64) error {
	for _, table := range []string{store.TableError, store.TableProblem} {
		if err := s.backend.Table(table).RemoveWhere(ctx, store.Eq("workflow_id", workflowID)); err != nil {
			return fmt.Errorf("failed to purge %s rows: %w", table, err)
		}
	}
	s.log.Debug("purged workflow records", "workflow_id", workflowID)
	return nil
}
