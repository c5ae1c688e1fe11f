package state

import (
	"maps"

	"github.com/atrium-ui/app-state/internal/tree"
)

type opKind int

const (
	opSet opKind = iota + 1
	opDeleteKey
	opDeleteScope
)

func (k opKind) String() string {
	switch k {
	case opSet:
		return "set"
	case opDeleteKey:
		return "delete_key"
	case opDeleteScope:
		return "delete_scope"
	}
	return "unknown"
}

// mutation is a validated write waiting to be committed.
type mutation struct {
	op      opKind
	scope   string
	key     string   // opDeleteKey
	partial tree.Map // opSet; private acyclic copy
}

// apply returns the scope table after m. The input table and its trees are
// left untouched.
func (m mutation) apply(scopes map[string]tree.Map) map[string]tree.Map {
	next := maps.Clone(scopes)
	if next == nil {
		next = make(map[string]tree.Map)
	}

	switch m.op {
	case opSet:
		next[m.scope] = tree.MustMerge(scopes[m.scope], m.partial)
	case opDeleteKey:
		cur, ok := scopes[m.scope]
		if !ok {
			break
		}
		if _, has := cur[m.key]; has {
			trimmed := maps.Clone(cur)
			delete(trimmed, m.key)
			next[m.scope] = trimmed
		}
	case opDeleteScope:
		delete(next, m.scope)
	}
	return next
}
