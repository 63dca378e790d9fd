package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lyzr/workflow-router/common/editor"
	"github.com/lyzr/workflow-router/common/logger"
	"github.com/lyzr/workflow-router/common/repository"
)

type sessionEntry struct {
	session  *editor.Session
	ready    chan struct{}
	err      error
	lastUsed time.Time
}

// SessionRegistry keeps one live editing session per workflow. Concurrent
// openers of the same workflow share a single load. Sessions with nothing
// left to save are dropped by Sweep once they sit unused.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[int64]*sessionEntry
	now      func() time.Time

	workflows *repository.WorkflowRepository
	cfg       editor.SessionConfig
	log       *logger.Logger
}

// NewSessionRegistry creates a registry whose sessions share cfg
func NewSessionRegistry(workflows *repository.WorkflowRepository, cfg editor.SessionConfig, log *logger.Logger) *SessionRegistry {
	if cfg.Logger == nil {
		cfg.Logger = log
	}
	return &SessionRegistry{
		sessions:  make(map[int64]*sessionEntry),
		now:       time.Now,
		workflows: workflows,
		cfg:       cfg,
		log:       log,
	}
}

// Open returns the session of a workflow, loading it on first use
func (r *SessionRegistry) Open(ctx context.Context, workflowID int64) (*editor.Session, error) {
	s, _, err := r.open(ctx, workflowID)
	return s, err
}

// Reload replaces the canvas of a workflow with the persisted graph. Local
// edits that were not saved are discarded.
func (r *SessionRegistry) Reload(ctx context.Context, workflowID int64) (*editor.Session, error) {
	s, fresh, err := r.open(ctx, workflowID)
	if err != nil || fresh {
		return s, err
	}
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Drop forgets the session of a workflow
func (r *SessionRegistry) Drop(workflowID int64) {
	r.mu.Lock()
	delete(r.sessions, workflowID)
	r.mu.Unlock()
}

// Len is the number of sessions held
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops the sessions unused for longer than idle that are idle in
// the editor sense too, and returns how many it dropped
func (r *SessionRegistry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := 0
	for id, e := range r.sessions {
		select {
		case <-e.ready:
		default:
			continue // still loading
		}
		if e.session == nil || e.lastUsed.After(cutoff) || !e.session.Idle() {
			continue
		}
		delete(r.sessions, id)
		dropped++
		r.log.Debug("evicted idle session", "workflow_id", id)
	}
	if dropped > 0 {
		r.log.Info("evicted idle sessions", "count", dropped, "remaining", len(r.sessions))
	}
	return dropped
}

// Run sweeps every half idle period until ctx is done. A non-positive idle
// disables eviction.
func (r *SessionRegistry) Run(ctx context.Context, idle time.Duration) {
	if idle <= 0 {
		return
	}
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(idle)
		}
	}
}

func (r *SessionRegistry) open(ctx context.Context, workflowID int64) (*editor.Session, bool, error) {
	r.mu.Lock()
	if e, ok := r.sessions[workflowID]; ok {
		e.lastUsed = r.now()
		r.mu.Unlock()
		select {
		case <-e.ready:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
		if e.err != nil {
			return nil, false, e.err
		}
		return e.session, false, nil
	}
	e := &sessionEntry{ready: make(chan struct{}), lastUsed: r.now()}
	r.sessions[workflowID] = e
	r.mu.Unlock()

	e.session, e.err = r.load(ctx, workflowID)
	if e.err != nil {
		r.mu.Lock()
		if r.sessions[workflowID] == e {
			delete(r.sessions, workflowID)
		}
		r.mu.Unlock()
	}
	close(e.ready)
	return e.session, true, e.err
}

func (r *SessionRegistry) load(ctx context.Context, workflowID int64) (*editor.Session, error) {
	if _, err := r.workflows.Get(ctx, workflowID); err != nil {
		return nil, err
	}
	s := editor.NewSession(workflowID, r.cfg)
	if err := s.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	r.log.Info("opened editing session", "workflow_id", workflowID)
	return s, nil
}
