// Package util collects small container helpers shared by the
// middle/back end: sparse bitsets for liveness/worklist algorithms,
// wrapping golang.org/x/tools/container/intsets, the same dependency
// internal/ir/analysis uses for loop-body membership. The register
// allocator's deterministic worklist iteration is handled where it's
// needed, in internal/mir/regalloc/alloc.go, via golang.org/x/exp/maps
// and golang.org/x/exp/slices directly; this package has no map-key
// helpers of its own.
package util

import "golang.org/x/tools/container/intsets"

// BitSet is a sparse set of small non-negative integers — virtual
// register ids, block RPO indices — used throughout the liveness and
// interference-graph computations in internal/mir/regalloc.
type BitSet struct {
	s intsets.Sparse
}

func NewBitSet() *BitSet { return &BitSet{} }

func (b *BitSet) Add(x int) bool      { return b.s.Insert(x) }
func (b *BitSet) Remove(x int) bool   { return b.s.Remove(x) }
func (b *BitSet) Has(x int) bool      { return b.s.Has(x) }
func (b *BitSet) Len() int            { return b.s.Len() }
func (b *BitSet) IsEmpty() bool       { return b.s.IsEmpty() }
func (b *BitSet) Clear()              { b.s.Clear() }
func (b *BitSet) Copy() *BitSet {
	c := NewBitSet()
	c.s.Copy(&b.s)
	return c
}

// UnionWith merges other into b, returning whether b changed (used to
// drive liveness to a fixpoint).
func (b *BitSet) UnionWith(other *BitSet) bool {
	return b.s.UnionWith(&other.s)
}

func (b *BitSet) IntersectionWith(other *BitSet) bool {
	return b.s.IntersectionWith(&other.s)
}

func (b *BitSet) DifferenceWith(other *BitSet) bool {
	return b.s.DifferenceWith(&other.s)
}

// Elems returns the set's members in ascending order.
func (b *BitSet) Elems() []int {
	return b.s.AppendTo(nil)
}

func (b *BitSet) String() string { return b.s.String() }

// Equals reports whether b and other contain the same elements, used
// by the liveness fixpoint to detect when a block's live-in/live-out
// set has stopped changing.
func (b *BitSet) Equals(other *BitSet) bool {
	return b.s.Equals(&other.s)
}
