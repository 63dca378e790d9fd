package validation

import (
	"fmt"
	"strings"
)

// MaxDetailsOps caps the number of operations in one details patch
const MaxDetailsOps = 64

// PatchValidator validates RFC 6902 operations aimed at a node's details bag
type PatchValidator struct {
	maxOps int
}

// NewPatchValidator creates a new patch validator
func NewPatchValidator() *PatchValidator {
	return &PatchValidator{maxOps: MaxDetailsOps}
}

// ValidateOperations validates all patch operations
func (v *PatchValidator) ValidateOperations(operations []map[string]any) error {
	if len(operations) == 0 {
		return fmt.Errorf("patch validation failed: no operations")
	}
	if len(operations) > v.maxOps {
		return fmt.Errorf("patch validation failed: at most %d operations per patch (attempted: %d)", v.maxOps, len(operations))
	}

	for i, op := range operations {
		if err := v.validateOperation(op, i); err != nil {
			return err
		}
	}
	return nil
}

// validateOperation validates a single operation
func (v *PatchValidator) validateOperation(op map[string]any, index int) error {
	opType, ok := op["op"].(string)
	if !ok {
		return fmt.Errorf("operation %d: missing or invalid 'op' field", index)
	}

	path, ok := op["path"].(string)
	if !ok || !strings.HasPrefix(path, "/") {
		return fmt.Errorf("operation %d: 'path' must be a JSON pointer", index)
	}

	switch opType {
	case "add", "replace", "test":
		value, ok := op["value"]
		if !ok {
			return fmt.Errorf("operation %d: 'value' required for %s operation", index, opType)
		}
		if opType != "test" {
			return v.validateReservedValue(path, value, index)
		}

	case "move", "copy":
		if from, ok := op["from"].(string); !ok || !strings.HasPrefix(from, "/") {
			return fmt.Errorf("operation %d: 'from' required for %s operation", index, opType)
		}

	case "remove":
		return nil

	default:
		return fmt.Errorf("operation %d: unsupported operation type: %s", index, opType)
	}

	return nil
}

// validateReservedValue checks the shape of values written to typed keys
func (v *PatchValidator) validateReservedValue(path string, value any, opIndex int) error {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	key := segments[0]

	switch key {
	case "goldenPath":
		if _, ok := value.(bool); !ok && len(segments) == 1 {
			return fmt.Errorf("operation %d: 'goldenPath' must be a boolean, got %T", opIndex, value)
		}
	case "summary", "runbook", "owner", "criticality":
		if _, ok := value.(string); !ok && len(segments) == 1 {
			return fmt.Errorf("operation %d: '%s' must be a string, got %T", opIndex, key, value)
		}
	case "rules":
		if len(segments) > 1 {
			if _, ok := value.(string); !ok {
				return fmt.Errorf("operation %d: a rule must be a string, got %T", opIndex, value)
			}
			return nil
		}
		rules, ok := value.([]any)
		if !ok {
			return fmt.Errorf("operation %d: 'rules' must be an array of strings, got %T (hint: use [\"rule\"], not \"rule\")", opIndex, value)
		}
		for i, r := range rules {
			if _, ok := r.(string); !ok {
				return fmt.Errorf("operation %d: rule %d must be a string, got %T", opIndex, i, r)
			}
		}
	case "timers":
		if _, ok := value.(map[string]any); !ok && len(segments) == 1 {
			return fmt.Errorf("operation %d: 'timers' must be an object, got %T", opIndex, value)
		}
	}

	return nil
}
