package editor

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/lyzr/workflow-router/common/graph"
	"github.com/lyzr/workflow-router/common/validation"
)

var detailsPatchValidator = validation.NewPatchValidator()

// MergeDetails applies an RFC 7386 merge patch to a node's details.
// A malformed patch is rejected before anything is recorded.
func (c *Canvas) MergeDetails(id int64, mergePatch []byte) (bool, error) {
	return c.patchDetails(id, func(doc []byte) ([]byte, error) {
		return jsonpatch.MergePatch(doc, mergePatch)
	})
}

// PatchDetails applies RFC 6902 operations to a node's details. Values
// written to reserved keys must have the reserved shape.
func (c *Canvas) PatchDetails(id int64, ops []byte) (bool, error) {
	var raw []map[string]any
	if err := json.Unmarshal(ops, &raw); err != nil {
		return false, fmt.Errorf("failed to decode patch: %w", err)
	}
	if err := detailsPatchValidator.ValidateOperations(raw); err != nil {
		return false, err
	}
	patch, err := jsonpatch.DecodePatch(ops)
	if err != nil {
		return false, fmt.Errorf("failed to decode patch: %w", err)
	}
	return c.patchDetails(id, patch.Apply)
}

func (c *Canvas) patchDetails(id int64, apply func([]byte) ([]byte, error)) (bool, error) {
	n, ok := c.model.Node(id)
	if !ok {
		return false, nil
	}

	doc, err := json.Marshal(n.Details)
	if err != nil {
		return false, fmt.Errorf("failed to encode details: %w", err)
	}
	patched, err := apply(doc)
	if err != nil {
		return false, fmt.Errorf("failed to apply details patch: %w", err)
	}
	var details graph.Details
	if err := json.Unmarshal(patched, &details); err != nil {
		return false, fmt.Errorf("patched details are not an object: %w", err)
	}

	return c.mutateNode(id, func(n *graph.Node) {
		n.Details = details
	}), nil
}
