package rules

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
)

// Diagnostic is the compile outcome of one rule
type Diagnostic struct {
	Index      int    `json:"index"`
	Rule       string `json:"rule"`
	Expression string `json:"expression,omitempty"`
	Valid      bool   `json:"valid"`
	OutputType string `json:"output_type,omitempty"`
	Error      string `json:"error,omitempty"`
}

type compiled struct {
	program    cel.Program
	outputType string
	err        error
}

// Checker compiles node rules as CEL expressions over `input` and `ctx`.
// Results, including failures, are cached by normalized expression.
type Checker struct {
	env   *cel.Env
	cache map[string]compiled
	mu    sync.RWMutex
}

// NewChecker creates a checker with its CEL environment
func NewChecker() (*Checker, error) {
	env, err := cel.NewEnv(
		cel.Variable("input", cel.DynType),
		cel.Variable("ctx", cel.DynType),
		// JSON numbers arrive as doubles; rules compare them against int literals
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return &Checker{env: env, cache: make(map[string]compiled)}, nil
}

// Normalize trims the rule and rewrites JSONPath-style $.field to input.field
func Normalize(rule string) string {
	return strings.ReplaceAll(strings.TrimSpace(rule), "$.", "input.")
}

// Check compiles every rule. Blank rules are reported invalid.
func (c *Checker) Check(rules []string) []Diagnostic {
	out := make([]Diagnostic, 0, len(rules))
	for i, rule := range rules {
		d := Diagnostic{Index: i, Rule: rule}
		expr := Normalize(rule)
		if expr == "" {
			d.Error = "empty rule"
			out = append(out, d)
			continue
		}
		d.Expression = expr

		res := c.compile(expr)
		if res.err != nil {
			d.Error = res.err.Error()
		} else {
			d.Valid = true
			d.OutputType = res.outputType
		}
		out = append(out, d)
	}
	return out
}

// Evaluate runs a rule against input and ctx. The rule must yield a bool.
func (c *Checker) Evaluate(rule string, input, ctx map[string]any) (bool, error) {
	res := c.compile(Normalize(rule))
	if res.err != nil {
		return false, res.err
	}

	out, _, err := res.program.Eval(map[string]any{
		"input": input,
		"ctx":   ctx,
	})
	if err != nil {
		return false, fmt.Errorf("CEL evaluation error: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return boolean, got %T", out.Value())
	}
	return result, nil
}

func (c *Checker) compile(expr string) compiled {
	c.mu.RLock()
	res, ok := c.cache[expr]
	c.mu.RUnlock()
	if ok {
		return res
	}

	res = c.compileUncached(expr)

	c.mu.Lock()
	c.cache[expr] = res
	c.mu.Unlock()
	return res
}

func (c *Checker) compileUncached(expr string) compiled {
	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return compiled{err: fmt.Errorf("CEL compilation error: %w", issues.Err())}
	}

	prg, err := c.env.Program(ast)
	if err != nil {
		return compiled{err: fmt.Errorf("failed to create CEL program: %w", err)}
	}

	return compiled{program: prg, outputType: ast.OutputType().String()}
}

// CacheSize returns the number of cached expressions
func (c *Checker) CacheSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// ClearCache clears the compiled expression cache
func (c *Checker) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]compiled)
}
