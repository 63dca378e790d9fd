package models

// Edge row styles as persisted
const (
	EdgeStyleSolid  = "solid"
	EdgeStyleDashed = "dashed"
)

// NodeRow is a persisted workflow step.
// Maps to: node table
type NodeRow struct {
	ID         int64          `json:"id"`
	WorkflowID int64          `json:"workflow_id"`
	ProviderID *string        `json:"provider_id,omitempty"`
	Title      string         `json:"title"`
	Type       string         `json:"type"`
	X          *float64       `json:"x,omitempty"`
	Y          *float64       `json:"y,omitempty"`
	Details    map[string]any `json:"details"`
	Status     string         `json:"status,omitempty"`
}

// NodePatch is the position/title/metadata update issued by a save
type NodePatch struct {
	Title   string
	Type    string
	X       float64
	Y       float64
	Details map[string]any
}

// EdgeRow is a persisted transition between two nodes.
// Maps to: edge table
type EdgeRow struct {
	ID         int64          `json:"id"`
	WorkflowID int64          `json:"workflow_id"`
	FromNodeID int64          `json:"from_node_id"`
	ToNodeID   int64          `json:"to_node_id"`
	Label      *string        `json:"label,omitempty"`
	Style      string         `json:"style,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// LabelValue returns the label with NULL folded into ""
func (e EdgeRow) LabelValue() string {
	if e.Label == nil {
		return ""
	}
	return *e.Label
}

// StyleValue returns the style with an empty column read as solid
func (e EdgeRow) StyleValue() string {
	if e.Style == "" {
		return EdgeStyleSolid
	}
	return e.Style
}
