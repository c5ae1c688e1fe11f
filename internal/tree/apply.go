package tree

// Apply returns tree with delta applied, the way a delta consumer should.
//
// Unlike Merge, a Null in the delta deletes the key instead of storing Null.
// Nested deltas recurse into nested trees; any other value replaces the
// target wholesale. Apply(a, Subtract(a, b)) compares equal to b.
func Apply(tree, delta Map) (Map, error) {
	t, err := CloneMap(tree)
	if err != nil {
		return nil, err
	}
	d, err := CloneMap(delta)
	if err != nil {
		return nil, err
	}
	return applyMaps(t, d), nil
}

// MustApply is like Apply but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustApply(tree, delta Map) Map {
	m, err := Apply(tree, delta)
	if err != nil {
		panic(err)
	}
	return m
}

func applyMaps(tree, delta Map) Map {
	out := make(Map, len(tree))
	for k, v := range tree {
		out[k] = v
	}
	for k, d := range delta {
		if IsNull(d) {
			delete(out, k)
			continue
		}
		if cur, ok := out[k]; ok && IsTree(cur) && IsTree(d) {
			out[k] = applyMaps(cur.(Map), d.(Map))
			continue
		}
		out[k] = d
	}
	return out
}
