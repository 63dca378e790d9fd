package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"

	"github.com/lyzr/workflow-router/common/models"
)

const (
	reportMaxTokens   = 1200
	reportTemperature = 0.2
)

const reportSystemPrompt = `You are an expert technical writer. Given workflow metadata, nodes and edges produce a clear, professional report suitable for stakeholders.
Output a JSON object with fields:
- executive_summary: short (3-6 sentences) high-level summary of the workflow and key risks
- key_paths: a concise description of the main/golden path(s)
- node_insights: array of { id, title, type, insight }
- recommendations: array of short recommendations (prioritized)
Return only the JSON object (no extra commentary).`

// TextList is a list of strings that also accepts a single string
type TextList []string

// UnmarshalJSON accepts a string or an array of strings
func (l *TextList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = TextList{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("expected a string or a list of strings: %s", data)
	}
	*l = list
	return nil
}

// NodeInsight is the report's remark on one node
type NodeInsight struct {
	ID      ProviderID `json:"id"`
	Title   string     `json:"title"`
	Type    string     `json:"type"`
	Insight string     `json:"insight"`
}

// WorkflowReport is a stakeholder summary of a workflow
type WorkflowReport struct {
	ExecutiveSummary string        `json:"executive_summary"`
	KeyPaths         TextList      `json:"key_paths"`
	NodeInsights     []NodeInsight `json:"node_insights"`
	Recommendations  TextList      `json:"recommendations"`
}

const reportSchema = `{
  "type": "object",
  "required": ["executive_summary"],
  "properties": {
    "executive_summary": {"type": "string", "minLength": 1},
    "key_paths": {"type": ["string", "array"], "items": {"type": "string"}},
    "node_insights": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["insight"],
        "properties": {
          "id": {"type": ["string", "integer"]},
          "title": {"type": "string"},
          "type": {"type": "string"},
          "insight": {"type": "string"}
        }
      }
    },
    "recommendations": {"type": ["string", "array"], "items": {"type": "string"}}
  }
}`

var reportSchemaLoader = gojsonschema.NewStringLoader(reportSchema)

// ParseReport validates raw JSON against the report schema and decodes it
func ParseReport(data []byte) (*WorkflowReport, error) {
	if err := validateSchema("workflow report", reportSchemaLoader, data); err != nil {
		return nil, err
	}
	var r WorkflowReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode workflow report: %w", err)
	}
	return &r, nil
}

type reportNode struct {
	ID      int64          `json:"id"`
	Title   string         `json:"title"`
	Type    string         `json:"type"`
	Details map[string]any `json:"details,omitempty"`
}

type reportEdge struct {
	From  int64  `json:"from_node_id"`
	To    int64  `json:"to_node_id"`
	Label string `json:"label,omitempty"`
}

type reportPayload struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Domain      string       `json:"domain,omitempty"`
	Nodes       []reportNode `json:"nodes"`
	Edges       []reportEdge `json:"edges"`
}

// BuildReportInput renders the workflow data the report is written from
func BuildReportInput(wf models.Workflow, nodes []models.NodeRow, edges []models.EdgeRow) (string, error) {
	p := reportPayload{
		Title: wf.Title,
		Nodes: make([]reportNode, 0, len(nodes)),
		Edges: make([]reportEdge, 0, len(edges)),
	}
	if wf.Description != nil {
		p.Description = *wf.Description
	}
	if wf.Domain != nil {
		p.Domain = *wf.Domain
	}
	for _, n := range nodes {
		p.Nodes = append(p.Nodes, reportNode{ID: n.ID, Title: n.Title, Type: n.Type, Details: n.Details})
	}
	for _, e := range edges {
		p.Edges = append(p.Edges, reportEdge{From: e.FromNodeID, To: e.ToNodeID, Label: e.LabelValue()})
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report input: %w", err)
	}
	return "Here is the workflow data (JSON):\n" + string(data), nil
}

// Report asks the model for a stakeholder report on a workflow
func (g *GeneratorClient) Report(ctx context.Context, wf models.Workflow, nodes []models.NodeRow, edges []models.EdgeRow) (*WorkflowReport, error) {
	if !g.Enabled() {
		return nil, ErrGeneratorDisabled
	}

	input, err := BuildReportInput(wf, nodes, edges)
	if err != nil {
		return nil, err
	}
	temperature := reportTemperature
	data, text, err := g.complete(ctx, messagesRequest{
		Model:       g.cfg.Model,
		MaxTokens:   reportMaxTokens,
		System:      reportSystemPrompt,
		Temperature: &temperature,
		Messages:    []message{{Role: "user", Content: input}},
	})
	if err != nil {
		return nil, err
	}

	raw, err := ExtractJSON(text)
	if err != nil {
		g.logger.Warn("report output had no JSON object",
			"stop_reason", gjson.GetBytes(data, "stop_reason").String(),
			"output_chars", len(text),
		)
		return nil, err
	}
	report, err := ParseReport(raw)
	if err != nil {
		return nil, err
	}

	g.logger.Info("workflow report generated",
		"title", wf.Title,
		"insights", len(report.NodeInsights),
		"recommendations", len(report.Recommendations),
		"summary_chars", len(strings.TrimSpace(report.ExecutiveSummary)),
	)
	return report, nil
}
