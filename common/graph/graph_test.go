package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/workflow-router/common/models"
)

func f64(v float64) *float64 { return &v }

func TestStyleFor_DistinctAccentsAndFallback(t *testing.T) {
	seen := make(map[string]Kind)
	for _, k := range KnownKinds {
		style := StyleFor(k, false)
		if other, dup := seen[style.Accent]; dup {
			t.Fatalf("kinds %s and %s share accent %s", k, other, style.Accent)
		}
		seen[style.Accent] = k
		assert.Equal(t, style, StyleFor(k, false), "deterministic")
	}

	for _, k := range []Kind{"robot", "", "ACTION?"} {
		assert.NotPanics(t, func() { StyleFor(k, true) })
		assert.Equal(t, fallbackAccent, StyleFor(k, false).Accent)
	}
}

func TestStyleFor_CaseInsensitiveAndGolden(t *testing.T) {
	assert.Equal(t, "#d97706", StyleFor("Decision", false).Accent)

	golden := StyleFor(KindHuman, true)
	assert.Equal(t, "#111827", golden.Background)
	assert.Equal(t, "#ffffff", golden.Foreground)

	plain := StyleFor(KindHuman, false)
	assert.Equal(t, "#ffffff", plain.Background)
	assert.Equal(t, "#e5e7eb", plain.Border)
	assert.Equal(t, golden.Accent, plain.Accent)
}

func TestEdgeStyleFor(t *testing.T) {
	s := EdgeStyleFor(KindTerminal)
	assert.Equal(t, "#10b981", s.Stroke)
	assert.Equal(t, 1.5, s.StrokeWidth)
}

func TestModel_LoadFrom(t *testing.T) {
	m := NewModel()
	label := "yes"
	pruned := m.LoadFrom(
		[]models.NodeRow{
			{ID: 1, Title: "Start", Type: "action", X: f64(10), Y: f64(20)},
			{ID: 2, Title: "", Type: "", Details: map[string]any{"goldenPath": true}},
		},
		[]models.EdgeRow{
			{ID: 5, FromNodeID: 1, ToNodeID: 2, Label: &label, Style: "dashed"},
			{ID: 6, FromNodeID: 2, ToNodeID: 99},
		},
	)

	require.Len(t, pruned, 1)
	assert.Equal(t, int64(6), pruned[0].ID)

	n2, ok := m.Node(2)
	require.True(t, ok)
	assert.Equal(t, Position{X: DefaultCoordinate, Y: DefaultCoordinate}, n2.Position)
	assert.Equal(t, KindAction, n2.Kind)
	assert.Equal(t, "Node", n2.Title)
	assert.Equal(t, StyleFor(KindAction, true), n2.Style)

	e, ok := m.Edge("5")
	require.True(t, ok)
	assert.True(t, e.Animated)
	assert.Equal(t, "yes", e.Label)
	assert.Equal(t, int64(5), e.RowID)
	assert.Equal(t, EdgeStyleFor(KindAction), e.Style)

	nodes, edges := m.Len()
	assert.Equal(t, 2, nodes)
	assert.Equal(t, 1, edges)
}

func TestSnapshot_CloneIsDeep(t *testing.T) {
	m := NewModel()
	m.AddNode(Node{ID: 1, Title: "A", Details: Details{
		Rules: []string{"x > 1"},
		Extra: map[string]any{"nested": map[string]any{"k": "v"}},
	}})

	snap := m.Snapshot()
	snap.Nodes[0].Details.Rules[0] = "mutated"
	snap.Nodes[0].Details.Extra["nested"].(map[string]any)["k"] = "mutated"

	live, _ := m.Node(1)
	assert.Equal(t, "x > 1", live.Details.Rules[0])
	assert.Equal(t, "v", live.Details.Extra["nested"].(map[string]any)["k"])
}

func TestModel_RemoveNodeCascades(t *testing.T) {
	m := NewModel()
	for i := int64(1); i <= 3; i++ {
		m.AddNode(Node{ID: i})
	}
	m.AddEdge(Edge{ID: "a", Source: 1, Target: 2})
	m.AddEdge(Edge{ID: "b", Source: 2, Target: 3})
	m.AddEdge(Edge{ID: "c", Source: 1, Target: 3})

	removed, ok := m.RemoveNode(2)
	require.True(t, ok)
	assert.Len(t, removed, 2)
	assert.Equal(t, []Edge{{ID: "c", Source: 1, Target: 3}}, m.Edges())

	_, ok = m.Edge("a")
	assert.False(t, ok)
	last, _ := m.LastNode()
	assert.Equal(t, int64(3), last.ID)
}

func TestModel_ReplaceEdgeID(t *testing.T) {
	m := NewModel()
	m.AddEdge(Edge{ID: "edge-tmp", Source: 1, Target: 2})

	require.True(t, m.ReplaceEdgeID("edge-tmp", 42))
	e, ok := m.Edge("42")
	require.True(t, ok)
	assert.True(t, e.Persisted())
	_, ok = m.Edge("edge-tmp")
	assert.False(t, ok)
}

func TestDetails_RoundTripKeepsUnknownKeys(t *testing.T) {
	raw := `{"goldenPath":true,"owner":"ops","criticality":"high","rules":["a","b"],` +
		`"timers":{"normal_sec":60,"near_cutoff_sec":30},"custom":{"x":[1,2]},"runbook":7}`

	var d Details
	require.NoError(t, json.Unmarshal([]byte(raw), &d))
	assert.True(t, d.GoldenPath)
	assert.Equal(t, "ops", d.Owner)
	assert.Equal(t, []string{"a", "b"}, d.Rules)
	require.NotNil(t, d.Timers)
	assert.Equal(t, 60, *d.Timers.NormalSec)
	assert.Contains(t, d.Extra, "custom")
	assert.Equal(t, float64(7), d.Extra["runbook"], "mistyped reserved key is preserved, not dropped")

	out, err := json.Marshal(d)
	require.NoError(t, err)
	var back map[string]any
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, map[string]any{"x": []any{float64(1), float64(2)}}, back["custom"])
	assert.Equal(t, "high", back["criticality"])
}

func TestDetails_ToMapAlwaysWritesGoldenPath(t *testing.T) {
	assert.Equal(t, map[string]any{"goldenPath": false}, Details{}.ToMap())
}
