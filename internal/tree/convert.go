package tree

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// FromGo converts decoded JSON, YAML or CUE data into a Value.
//
// Accepted: nil, bool, string, every int/uint/float kind, json.Number,
// []any, map[string]any, map[any]any with string keys, and Values
// themselves. Anything else, or a reference cycle, is a MalformedValueError.
func FromGo(v any) (Value, error) {
	return fromGo(v, "", newAncestry())
}

// MapFromGo is FromGo for a top-level object. A nil input yields an empty Map.
func MapFromGo(m map[string]any) (Map, error) {
	if m == nil {
		return Map{}, nil
	}
	v, err := FromGo(m)
	if err != nil {
		return nil, err
	}
	return v.(Map), nil
}

func fromGo(v any, path string, anc ancestry) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return cloneValue(val, path, anc)
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return fromUint(uint64(val), path)
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		return fromUint(val, path)
	case float32:
		return fromFloat(float64(val), path)
	case float64:
		return fromFloat(val, path)
	case json.Number:
		return fromNumber(val, path)
	case []any:
		if err := anc.enter(val, path); err != nil {
			return nil, err
		}
		defer anc.leave(val)

		arr := make(Array, len(val))
		for i, elem := range val {
			c, err := fromGo(elem, indexPath(path, i), anc)
			if err != nil {
				return nil, err
			}
			arr[i] = c
		}
		return arr, nil
	case map[string]any:
		if err := anc.enter(val, path); err != nil {
			return nil, err
		}
		defer anc.leave(val)

		obj := make(Map, len(val))
		for k, elem := range val {
			c, err := fromGo(elem, childPath(path, k), anc)
			if err != nil {
				return nil, err
			}
			obj[k] = c
		}
		return obj, nil
	case map[any]any:
		if err := anc.enter(val, path); err != nil {
			return nil, err
		}
		defer anc.leave(val)

		obj := make(Map, len(val))
		for rawKey, elem := range val {
			k, ok := rawKey.(string)
			if !ok {
				return nil, malformed(path, "non-string map key %v (%T)", rawKey, rawKey)
			}
			c, err := fromGo(elem, childPath(path, k), anc)
			if err != nil {
				return nil, err
			}
			obj[k] = c
		}
		return obj, nil
	default:
		return nil, malformed(path, "unsupported type %s", reflect.TypeOf(v))
	}
}

func fromUint(n uint64, path string) (Value, error) {
	if n > math.MaxInt64 {
		return nil, malformed(path, "integer %d overflows int64", n)
	}
	return Int(n), nil
}

func fromFloat(f float64, path string) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, malformed(path, "non-finite number %v", f)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return Int(int64(f)), nil
	}
	return Float(f), nil
}

func fromNumber(n json.Number, path string) (Value, error) {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, malformed(path, "invalid number %s", s)
	}
	return fromFloat(f, path)
}

// ToGo converts a Value into plain Go data (nil, bool, string, int64,
// float64, []any, map[string]any), e.g. for YAML output or templating.
func ToGo(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToGo(elem)
		}
		return out
	case Map:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToGo(elem)
		}
		return out
	}
	panic(fmt.Sprintf("tree: unknown Value type %T", v))
}
