package store

import (
	"fmt"

	"github.com/atrium-ui/app-state/internal/tree"
)

// marshalTree converts a scope tree to canonical JSON TEXT for storage.
// Canonical output keeps stored bytes identical across saves of equal trees.
func marshalTree(t tree.Map) (string, error) {
	if t == nil {
		t = tree.Map{}
	}
	data, err := tree.MarshalCanonical(t)
	if err != nil {
		return "", fmt.Errorf("marshal tree: %w", err)
	}
	return string(data), nil
}

// unmarshalTree parses a stored tree.
func unmarshalTree(data string) (tree.Map, error) {
	t, err := tree.ParseMap([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal tree: %w", err)
	}
	return t, nil
}
