package tree

// Subtract returns the delta that takes before to after.
//
// The delta holds exactly the keys whose values differ:
//   - both sides trees: the nested delta, omitted when it is empty
//   - otherwise, when the values differ: after's value, with Null marking a
//     key that after cleared or dropped
//
// Arrays compare by content and are emitted whole. Unchanged keys never
// appear, so Subtract(t, t) is always empty. Neither input is modified and the
// delta shares no containers with them.
func Subtract(before, after Map) (Map, error) {
	b, err := CloneMap(before)
	if err != nil {
		return nil, err
	}
	a, err := CloneMap(after)
	if err != nil {
		return nil, err
	}
	return subtractMaps(b, a), nil
}

// MustSubtract is like Subtract but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustSubtract(before, after Map) Map {
	d, err := Subtract(before, after)
	if err != nil {
		panic(err)
	}
	return d
}

// subtractMaps diffs two private, acyclic copies. Delta values reuse
// containers from after.
func subtractMaps(before, after Map) Map {
	delta := make(Map)
	for k, prev := range before {
		next, ok := after[k]
		if !ok {
			delta[k] = Null{}
			continue
		}
		if IsTree(prev) && IsTree(next) {
			if sub := subtractMaps(prev.(Map), next.(Map)); len(sub) > 0 {
				delta[k] = sub
			}
			continue
		}
		if !equal(prev, next, false) {
			delta[k] = next
		}
	}
	for k, next := range after {
		if _, ok := before[k]; !ok {
			delta[k] = next
		}
	}
	return delta
}
