package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrGeneratorDisabled is returned when no API key is configured
var ErrGeneratorDisabled = errors.New("workflow generation is not configured")

const anthropicVersion = "2023-06-01"

// GeneratorConfig configures the messages endpoint
type GeneratorConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// GeneratorClient turns a prose description into a GeneratedWorkflow
type GeneratorClient struct {
	http   *HTTPClient
	cfg    GeneratorConfig
	logger Logger
}

// NewGeneratorClient creates a generator client on top of an HTTPClient
func NewGeneratorClient(httpClient *HTTPClient, cfg GeneratorConfig, logger Logger) *GeneratorClient {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	return &GeneratorClient{http: httpClient, cfg: cfg, logger: logger}
}

// Enabled reports whether an API key is configured
func (g *GeneratorClient) Enabled() bool {
	return g.cfg.APIKey != ""
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generate asks the model for a workflow. domain, when set, is a hint that
// also becomes the default domain of the result.
func (g *GeneratorClient) Generate(ctx context.Context, prompt, domain string) (*GeneratedWorkflow, error) {
	if !g.Enabled() {
		return nil, ErrGeneratorDisabled
	}

	data, text, err := g.complete(ctx, messagesRequest{
		Model:     g.cfg.Model,
		MaxTokens: g.cfg.MaxTokens,
		Messages:  []message{{Role: "user", Content: BuildPrompt(prompt, domain)}},
	})
	if err != nil {
		return nil, err
	}

	raw, err := ExtractJSON(text)
	if err != nil {
		g.logger.Warn("generator output had no JSON object",
			"stop_reason", gjson.GetBytes(data, "stop_reason").String(),
			"output_chars", len(text),
		)
		return nil, err
	}

	wf, err := ParseGenerated(raw)
	if err != nil {
		return nil, err
	}
	if wf.Domain == "" {
		wf.Domain = domain
	}

	g.logger.Info("workflow generated",
		"title", wf.Title,
		"nodes", len(wf.Nodes),
		"edges", len(wf.Edges),
		"input_tokens", gjson.GetBytes(data, "usage.input_tokens").Int(),
		"output_tokens", gjson.GetBytes(data, "usage.output_tokens").Int(),
	)
	return wf, nil
}

// complete posts one messages request and returns the raw response with the
// text of its first content block
func (g *GeneratorClient) complete(ctx context.Context, req messagesRequest) ([]byte, string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, "", fmt.Errorf("encode generation request: %w", err)
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("x-api-key", g.cfg.APIKey)
	headers.Set("anthropic-version", anthropicVersion)

	resp, err := g.http.DoRequest(ctx, http.MethodPost, g.cfg.BaseURL+"/v1/messages", bytes.NewReader(body), headers)
	if err != nil {
		return nil, "", fmt.Errorf("call generator: %w", err)
	}
	data, err := ReadBody(resp)
	if err != nil {
		g.logger.Error("generator returned an error", "error", err)
		return nil, "", fmt.Errorf("call generator: %w", err)
	}

	text := gjson.GetBytes(data, "content.0.text")
	if !text.Exists() {
		return nil, "", fmt.Errorf("%w: response has no text content", ErrNoStructuredResult)
	}
	return data, text.String(), nil
}

// BuildPrompt renders the instruction sent to the model
func BuildPrompt(description, domain string) string {
	var b strings.Builder
	b.WriteString("You are a workflow design expert. Based on the following description, create a workflow with nodes and edges.\n\n")
	b.WriteString("Workflow description: ")
	b.WriteString(strings.TrimSpace(description))
	b.WriteString("\n")
	if domain != "" {
		b.WriteString("Domain: ")
		b.WriteString(domain)
		b.WriteString("\n")
	}
	b.WriteString(`
Return ONLY a valid JSON object with this exact structure:
{
  "title": "Workflow Title",
  "description": "Brief description",
  "domain": "Domain name (e.g., HR, IT, Finance)",
  "nodes": [
    {"id": "node-1", "type": "action|decision|exception|human|terminal", "title": "Node title", "x": 100, "y": 100, "details": {}}
  ],
  "edges": [
    {"id": "edge-1", "from_node_id": "node-1", "to_node_id": "node-2", "label": "optional label", "style": "solid|dashed"}
  ]
}

Node types:
- action: Automated task or operation
- decision: Decision point with multiple outcomes
- exception: Error handling or exception case
- human: Requires human intervention/approval
- terminal: End point of workflow

Create a logical flow with appropriate node types. Position nodes in a readable layout (space them 200-300px apart). Include at least one starting node and one terminal node.`)
	return b.String()
}
