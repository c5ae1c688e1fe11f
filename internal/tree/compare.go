package tree

// Compare reports whether a and b hold the same state.
//
// Map entries whose value is Null count as absent, so {a: null} equals {}.
// Key order never matters and Int/Float compare numerically. Compare is
// symmetric. Inputs with reference cycles compare unequal.
func Compare(a, b Map) bool {
	ca, err := CloneMap(a)
	if err != nil {
		return false
	}
	cb, err := CloneMap(b)
	if err != nil {
		return false
	}
	return equal(ca, cb, true)
}

// Equal reports whether two values are identical, with Null entries
// significant. Both inputs must be acyclic.
func Equal(a, b Value) bool {
	return equal(a, b, false)
}

func equal(a, b Value, nullAsAbsent bool) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}

	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Int, Float:
		an, _ := number(av)
		bn, ok := number(b)
		return ok && an == bn
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equal(av[i], bv[i], nullAsAbsent) {
				return false
			}
		}
		return true
	case Map:
		bv, ok := b.(Map)
		if !ok {
			return false
		}
		return mapsEqual(av, bv, nullAsAbsent)
	}
	return false
}

func mapsEqual(a, b Map, nullAsAbsent bool) bool {
	if !nullAsAbsent && len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			if nullAsAbsent && IsNull(av) {
				continue
			}
			return false
		}
		if !equal(av, bv, nullAsAbsent) {
			return false
		}
	}
	if nullAsAbsent {
		for k, bv := range b {
			if _, ok := a[k]; !ok && !IsNull(bv) {
				return false
			}
		}
	}
	return true
}

// number widens Int and Float for numeric comparison.
func number(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	}
	return 0, false
}
