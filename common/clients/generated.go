package clients

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ProviderID is an id chosen by the generator. Models emit both "node-1" and
// 1, so numbers are accepted and kept in their textual form.
type ProviderID string

// UnmarshalJSON accepts a string or a number
func (p *ProviderID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = ProviderID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("provider id must be a string or number: %s", data)
	}
	*p = ProviderID(n.String())
	return nil
}

// GeneratedNode is a step proposed by the generator
type GeneratedNode struct {
	ID      ProviderID     `json:"id"`
	Type    string         `json:"type"`
	Title   string         `json:"title"`
	X       *float64       `json:"x,omitempty"`
	Y       *float64       `json:"y,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// GeneratedEdge references nodes by provider id
type GeneratedEdge struct {
	ID         ProviderID `json:"id,omitempty"`
	FromNodeID ProviderID `json:"from_node_id"`
	ToNodeID   ProviderID `json:"to_node_id"`
	Label      string     `json:"label,omitempty"`
	Style      string     `json:"style,omitempty"`
}

// GeneratedWorkflow is the structured result of a generation request
type GeneratedWorkflow struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Domain      string          `json:"domain,omitempty"`
	Version     string          `json:"version,omitempty"`
	Nodes       []GeneratedNode `json:"nodes"`
	Edges       []GeneratedEdge `json:"edges"`
}

const generatedSchema = `{
  "type": "object",
  "required": ["title", "nodes"],
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "domain": {"type": "string"},
    "version": {"type": "string"},
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "title"],
        "properties": {
          "id": {"type": ["string", "integer"]},
          "type": {"type": "string"},
          "title": {"type": "string"},
          "x": {"type": "number"},
          "y": {"type": "number"},
          "details": {"type": "object"}
        }
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["from_node_id", "to_node_id"],
        "properties": {
          "id": {"type": ["string", "integer"]},
          "from_node_id": {"type": ["string", "integer"]},
          "to_node_id": {"type": ["string", "integer"]},
          "label": {"type": ["string", "null"]},
          "style": {"type": "string"}
        }
      }
    }
  }
}`

var generatedSchemaLoader = gojsonschema.NewStringLoader(generatedSchema)

// SchemaError lists every violation of a model output schema
type SchemaError struct {
	Subject    string // "generated workflow" when empty
	Violations []string
}

func (e *SchemaError) Error() string {
	subject := e.Subject
	if subject == "" {
		subject = "generated workflow"
	}
	return subject + " does not match schema: " + strings.Join(e.Violations, "; ")
}

func validateSchema(subject string, schema gojsonschema.JSONLoader, data []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validate %s: %w", subject, err)
	}
	if result.Valid() {
		return nil
	}
	violations := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		violations = append(violations, e.String())
	}
	return &SchemaError{Subject: subject, Violations: violations}
}

// ParseGenerated validates raw JSON against the schema and decodes it
func ParseGenerated(data []byte) (*GeneratedWorkflow, error) {
	if err := validateSchema("generated workflow", generatedSchemaLoader, data); err != nil {
		return nil, err
	}

	var wf GeneratedWorkflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("decode generated workflow: %w", err)
	}
	return &wf, nil
}
