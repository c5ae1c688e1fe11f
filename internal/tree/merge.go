package tree

// Merge returns a new tree equal to base with incoming laid over it.
//
// For every key of incoming: if both sides hold a tree (see IsTree) the merge
// recurses; otherwise incoming's value replaces base's value wholesale. That
// covers scalars, arrays, Null and empty maps, so an incoming {} clears a
// nested tree rather than leaving it untouched, and an incoming Null replaces
// an existing key literally. Keys present on one side only are copied
// through unchanged, except an incoming Null: null never introduces a key.
//
// Neither input is modified and the result shares no containers with them.
// The only error is a MalformedValueError for cyclic input.
func Merge(base, incoming Map) (Map, error) {
	// Validate both inputs up front so no half-built result escapes.
	b, err := CloneMap(base)
	if err != nil {
		return nil, err
	}
	in, err := CloneMap(incoming)
	if err != nil {
		return nil, err
	}
	return mergeMaps(b, in), nil
}

// MustMerge is like Merge but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustMerge(base, incoming Map) Map {
	m, err := Merge(base, incoming)
	if err != nil {
		panic(err)
	}
	return m
}

// mergeMaps merges two private, acyclic copies. It reuses their containers.
func mergeMaps(base, incoming Map) Map {
	out := make(Map, len(base)+len(incoming))
	for k, v := range base {
		out[k] = v
	}
	for k, in := range incoming {
		cur, ok := base[k]
		switch {
		case !ok && IsNull(in):
			continue
		case ok && IsTree(cur) && IsTree(in):
			out[k] = mergeMaps(cur.(Map), in.(Map))
		default:
			out[k] = in
		}
	}
	return out
}
