package history

import (
	"github.com/lyzr/workflow-router/common/graph"
)

// DefaultCapacity is the depth of each stack when none is configured
const DefaultCapacity = 100

// History is a linear undo/redo log of canvas snapshots.
//
// past holds pre-mutation states with the most recent at the end. future
// holds undone states with the next redo at index 0. Both are capped at
// capacity: past evicts its oldest entry, future its farthest one, so the
// most recent N states survive on either side.
//
// Every snapshot is deep-copied on the way in and on the way out, so nothing
// in the log aliases live canvas state.
type History struct {
	capacity int
	past     []graph.Snapshot
	future   []graph.Snapshot
	applying bool
}

// New creates a history with the given capacity (DefaultCapacity if <= 0)
func New(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{capacity: capacity}
}

// Capacity returns the maximum depth of each stack
func (h *History) Capacity() int {
	return h.capacity
}

// Record pushes the pre-mutation state and invalidates the redo branch.
// It is suppressed while a history snapshot is being applied and reports
// whether an entry was recorded.
func (h *History) Record(current graph.Snapshot) bool {
	if h.applying {
		return false
	}
	h.past = pushBack(h.past, current.Clone(), h.capacity)
	h.future = nil
	return true
}

// Undo pops the most recent past state and parks current on the redo stack.
// The caller must apply the returned snapshot inside Apply.
func (h *History) Undo(current graph.Snapshot) (graph.Snapshot, bool) {
	if len(h.past) == 0 {
		return graph.Snapshot{}, false
	}
	last := h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	h.future = pushFront(h.future, current.Clone(), h.capacity)
	return last.Clone(), true
}

// Redo pops the next future state and parks current on the undo stack
func (h *History) Redo(current graph.Snapshot) (graph.Snapshot, bool) {
	if len(h.future) == 0 {
		return graph.Snapshot{}, false
	}
	next := h.future[0]
	h.future = h.future[1:]
	h.past = pushBack(h.past, current.Clone(), h.capacity)
	return next.Clone(), true
}

// Apply runs fn with recording suppressed
func (h *History) Apply(fn func()) {
	h.applying = true
	defer func() { h.applying = false }()
	fn()
}

// Applying reports whether a history snapshot is being applied
func (h *History) Applying() bool {
	return h.applying
}

// CanUndo reports whether Undo would do anything
func (h *History) CanUndo() bool { return len(h.past) > 0 }

// CanRedo reports whether Redo would do anything
func (h *History) CanRedo() bool { return len(h.future) > 0 }

// Len returns the depth of both stacks
func (h *History) Len() (past, future int) {
	return len(h.past), len(h.future)
}

// Rewrite runs fn on every stored snapshot in place. A save uses it so
// undone states refer to the rows it created.
func (h *History) Rewrite(fn func(*graph.Snapshot)) {
	for i := range h.past {
		fn(&h.past[i])
	}
	for i := range h.future {
		fn(&h.future[i])
	}
}

// Reset drops both stacks, e.g. after the canvas is reloaded
func (h *History) Reset() {
	h.past = nil
	h.future = nil
}

func pushBack(stack []graph.Snapshot, s graph.Snapshot, capacity int) []graph.Snapshot {
	stack = append(stack, s)
	if over := len(stack) - capacity; over > 0 {
		trimmed := make([]graph.Snapshot, capacity)
		copy(trimmed, stack[over:])
		stack = trimmed
	}
	return stack
}

func pushFront(stack []graph.Snapshot, s graph.Snapshot, capacity int) []graph.Snapshot {
	out := make([]graph.Snapshot, 0, min(len(stack)+1, capacity))
	out = append(out, s)
	for _, e := range stack {
		if len(out) == capacity {
			break
		}
		out = append(out, e)
	}
	return out
}
