package graph

import "strings"

// Kind is the type of a workflow step. The set is open; unknown kinds render
// with the fallback accent.
type Kind string

const (
	KindAction    Kind = "action"
	KindDecision  Kind = "decision"
	KindHuman     Kind = "human"
	KindException Kind = "exception"
	KindTerminal  Kind = "terminal"
)

// KnownKinds lists the kinds that have a dedicated accent
var KnownKinds = []Kind{KindAction, KindDecision, KindHuman, KindException, KindTerminal}

const (
	fallbackAccent  = "#111827"
	goldenBG        = "#111827"
	goldenFG        = "#ffffff"
	plainBG         = "#ffffff"
	plainFG         = "#111827"
	plainBorder     = "#e5e7eb"
	edgeStrokeWidth = 1.5
)

var accents = map[Kind]string{
	KindAction:    "#2563eb",
	KindDecision:  "#d97706",
	KindHuman:     "#7c3aed",
	KindException: "#ef4444",
	KindTerminal:  "#10b981",
}

// ParseKind normalizes a raw type column. Empty maps to action.
func ParseKind(s string) Kind {
	s = strings.TrimSpace(s)
	if s == "" {
		return KindAction
	}
	return Kind(s)
}

// Known reports whether k has a dedicated accent
func (k Kind) Known() bool {
	_, ok := accents[Kind(strings.ToLower(string(k)))]
	return ok
}

// NodeStyle is the derived presentation of a node
type NodeStyle struct {
	Accent     string `json:"accent"`
	Background string `json:"background"`
	Foreground string `json:"foreground"`
	Border     string `json:"border"`
}

// EdgeStyle is the derived presentation of an edge
type EdgeStyle struct {
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"stroke_width"`
}

// AccentFor returns the accent color of a kind, case-insensitively
func AccentFor(kind Kind) string {
	if c, ok := accents[Kind(strings.ToLower(string(kind)))]; ok {
		return c
	}
	return fallbackAccent
}

// StyleFor derives node presentation from kind and golden-path flag
func StyleFor(kind Kind, goldenPath bool) NodeStyle {
	accent := AccentFor(kind)
	if goldenPath {
		return NodeStyle{Accent: accent, Background: goldenBG, Foreground: goldenFG, Border: goldenBG}
	}
	return NodeStyle{Accent: accent, Background: plainBG, Foreground: plainFG, Border: plainBorder}
}

// EdgeStyleFor derives edge presentation from the source node's kind
func EdgeStyleFor(sourceKind Kind) EdgeStyle {
	return EdgeStyle{Stroke: AccentFor(sourceKind), StrokeWidth: edgeStrokeWidth}
}
