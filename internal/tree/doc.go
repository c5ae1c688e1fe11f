// Package tree provides the nested state value model and its algebra.
//
// A state tree is a Map from string keys to Values. A Value is one of Null,
// String, Int, Float, Bool, Array or Map; the interface is sealed so every
// operation in this package can switch exhaustively on the concrete type.
//
// The algebra consists of four pure functions:
//   - Merge: overlay an incoming tree on a base tree, recursing only where
//     both sides hold a non-empty Map
//   - Subtract: compute the delta from one tree to another, with Null as the
//     removal marker
//   - Apply: apply a delta to a tree, interpreting Null as "delete"
//   - Compare: deep equality that treats Null map entries as absent
//
// None of them alias their inputs: every Map or Array reachable from a result
// is a fresh copy. Inputs containing reference cycles are rejected with
// ErrMalformedValue.
//
// This package imports nothing internal.
package tree
