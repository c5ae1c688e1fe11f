package tree

import (
	"math"
	"reflect"
)

// Clone deep-copies v, rejecting reference cycles and non-finite numbers with
// a MalformedValueError.
// Shared but acyclic sub-values are copied once per occurrence.
func Clone(v Value) (Value, error) {
	return cloneValue(v, "", newAncestry())
}

// CloneMap is Clone for a Map. A nil input yields an empty Map.
func CloneMap(m Map) (Map, error) {
	if m == nil {
		return Map{}, nil
	}
	v, err := cloneValue(m, "", newAncestry())
	if err != nil {
		return nil, err
	}
	return v.(Map), nil
}

// Copy deep-copies a Map that is already known to be acyclic, e.g. one
// that was produced by this package. It panics on malformed input.
func Copy(m Map) Map {
	out, err := CloneMap(m)
	if err != nil {
		panic(err)
	}
	return out
}

func cloneValue(v Value, path string, anc ancestry) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Float:
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return nil, malformed(path, "non-finite number %v", float64(val))
		}
		return val, nil
	case Null, String, Int, Bool:
		return val, nil
	case Array:
		if val == nil {
			return Array{}, nil
		}
		if err := anc.enter(val, path); err != nil {
			return nil, err
		}
		defer anc.leave(val)

		out := make(Array, len(val))
		for i, elem := range val {
			c, err := cloneValue(elem, indexPath(path, i), anc)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case Map:
		if val == nil {
			return Map{}, nil
		}
		if err := anc.enter(val, path); err != nil {
			return nil, err
		}
		defer anc.leave(val)

		out := make(Map, len(val))
		for k, elem := range val {
			c, err := cloneValue(elem, childPath(path, k), anc)
			if err != nil {
				return nil, err
			}
			out[k] = c
		}
		return out, nil
	default:
		return nil, malformed(path, "unsupported value type %T", v)
	}
}

// ancestry tracks the containers on the current descent path. A container
// seen again while still on the path is a cycle.
type ancestry map[containerID]struct{}

type containerID struct {
	ptr uintptr
	len int
}

func newAncestry() ancestry {
	return make(ancestry)
}

func identify(v any) (containerID, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		return containerID{ptr: rv.Pointer()}, true
	case reflect.Slice:
		if rv.Len() == 0 {
			// Empty slices cannot contain anything, including themselves.
			return containerID{}, false
		}
		return containerID{ptr: rv.Pointer(), len: rv.Len()}, true
	}
	return containerID{}, false
}

func (a ancestry) enter(v any, path string) error {
	id, ok := identify(v)
	if !ok {
		return nil
	}
	if _, seen := a[id]; seen {
		return malformed(path, "reference cycle")
	}
	a[id] = struct{}{}
	return nil
}

func (a ancestry) leave(v any) {
	if id, ok := identify(v); ok {
		delete(a, id)
	}
}
