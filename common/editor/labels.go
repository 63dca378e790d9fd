package editor

// LabelEditor is the inline edge-label editor. A draft is opened on an edge,
// edited freely, and either committed (confirm or focus loss) or discarded
// (escape). Only a commit that changes the label mutates the canvas.
type LabelEditor struct {
	canvas *Canvas
	edgeID string
	draft  string
	active bool
}

// BeginEdit opens the editor on an edge, seeding the draft with its label.
// Opening on another edge discards the previous draft.
func (l *LabelEditor) BeginEdit(edgeID string) bool {
	e, ok := l.canvas.model.Edge(edgeID)
	if !ok {
		return false
	}
	l.edgeID = edgeID
	l.draft = e.Label
	l.active = true
	return true
}

// SetDraft replaces the draft text
func (l *LabelEditor) SetDraft(text string) bool {
	if !l.active {
		return false
	}
	l.draft = text
	return true
}

// Editing reports the edge under edit and the current draft
func (l *LabelEditor) Editing() (edgeID, draft string, active bool) {
	return l.edgeID, l.draft, l.active
}

// Commit applies the draft and closes the editor. It reports whether the
// label changed.
func (l *LabelEditor) Commit() bool {
	if !l.active {
		return false
	}
	edgeID, draft := l.edgeID, l.draft
	l.Cancel()

	e, ok := l.canvas.model.Edge(edgeID)
	if !ok || e.Label == draft {
		return false
	}
	return l.canvas.RelabelEdge(edgeID, draft)
}

// Blur commits on focus loss
func (l *LabelEditor) Blur() bool {
	return l.Commit()
}

// Cancel discards the draft without touching the canvas
func (l *LabelEditor) Cancel() {
	l.edgeID = ""
	l.draft = ""
	l.active = false
}
