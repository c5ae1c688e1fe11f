package tree

import (
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the state value types.
// Only Null, String, Int, Float, Bool, Array and Map implement it.
type Value interface {
	treeValue() // Sealed
}

// Null is the null value. Inside a delta it marks a removed key.
type Null struct{}

func (Null) treeValue() {}

// String is a string scalar.
type String string

func (String) treeValue() {}

// Int is an integral number.
type Int int64

func (Int) treeValue() {}

// Float is a non-integral number. Int and Float compare numerically.
type Float float64

func (Float) treeValue() {}

// Bool is a boolean scalar.
type Bool bool

func (Bool) treeValue() {}

// Array is an ordered sequence of values. Arrays are always replaced
// wholesale by Merge; they are never merged element-wise.
type Array []Value

func (Array) treeValue() {}

// Map is a nested state tree.
// Use SortedKeys() for deterministic iteration.
type Map map[string]Value

func (Map) treeValue() {}

// Pair is a key-value pair for ordered Map construction.
type Pair struct {
	Key   string
	Value Value
}

// P is a shorthand for Pair.
// Example: NewMap(P("name", String("Ann")), P("age", Int(31)))
func P(key string, value Value) Pair {
	return Pair{Key: key, Value: value}
}

// NewMap creates a Map from pairs. Later pairs win on duplicate keys.
func NewMap(pairs ...Pair) Map {
	m := make(Map, len(pairs))
	for _, p := range pairs {
		m[p.Key] = p.Value
	}
	return m
}

// NewArray creates an Array from values.
func NewArray(vals ...Value) Array {
	return Array(vals)
}

// IsTree reports whether v is eligible for recursive merge and diff:
// a Map with at least one entry. Empty maps behave like scalars.
func IsTree(v Value) bool {
	m, ok := v.(Map)
	return ok && len(m) > 0
}

// IsNull reports whether v is Null or a nil interface.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
// Go's default string ordering is UTF-8 based and differs for some runes.
func (m Map) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
