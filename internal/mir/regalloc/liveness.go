// Package regalloc implements Chaitin-Briggs graph-coloring register
// allocation over internal/mir (spec.md §4.13), grounded on the
// deleted teacher file `original_source/src/mipspass/gcallocator.h`'s
// build/simplify/coalesce/freeze/spill/select/rewrite pipeline,
// re-expressed with internal/util.BitSet standing in for that file's
// own bitset type and Go's native maps/slices standing in for its
// intrusive worklists.
package regalloc

import (
	"sysyc/internal/mir"
	"sysyc/internal/util"
)

// Liveness holds the fixpoint live-in/live-out sets, keyed by virtual
// register number, for every block of one function.
type Liveness struct {
	In, Out map[*mir.MBasicBlock]*util.BitSet
}

// Compute runs the standard backward dataflow (spec.md §4.13 step 1)
// to a fixpoint: out[b] = union of in[s] over b's successors, in[b] =
// use[b] ∪ (out[b] - def[b]) computed by walking b's instructions in
// reverse.
func Compute(mf *mir.MFunction) *Liveness {
	in := map[*mir.MBasicBlock]*util.BitSet{}
	out := map[*mir.MBasicBlock]*util.BitSet{}
	for _, b := range mf.Blocks {
		in[b] = util.NewBitSet()
		out[b] = util.NewBitSet()
	}
	for {
		changed := false
		for i := len(mf.Blocks) - 1; i >= 0; i-- {
			b := mf.Blocks[i]
			newOut := util.NewBitSet()
			for _, s := range b.Succs {
				newOut.UnionWith(in[s])
			}
			newIn := newOut.Copy()
			for j := len(b.Insts) - 1; j >= 0; j-- {
				insn := b.Insts[j]
				if d, ok := insn.Def(); ok && d.IsVirtual() {
					newIn.Remove(d.Num)
				}
				for _, u := range insn.Uses() {
					if u.IsVirtual() {
						newIn.Add(u.Num)
					}
				}
			}
			if !newIn.Equals(in[b]) {
				in[b] = newIn
				changed = true
			}
			if !newOut.Equals(out[b]) {
				out[b] = newOut
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return &Liveness{In: in, Out: out}
}

// LiveRange summarizes a virtual register's liveness for the spill
// heuristic (spec.md §4.13 step 4): the number of blocks it spans
// (live_length) and its textual def/use count within those blocks.
type LiveRange struct {
	Length  int
	Defs    int
	Uses    int
}

// Ranges tallies LiveRange per virtual register across the whole
// function: live_length increments once per block the register is
// live-in, live-out, or defined/used in; defs/uses count occurrences.
func Ranges(mf *mir.MFunction, live *Liveness) map[int]*LiveRange {
	out := map[int]*LiveRange{}
	get := func(n int) *LiveRange {
		r, ok := out[n]
		if !ok {
			r = &LiveRange{}
			out[n] = r
		}
		return r
	}
	for _, b := range mf.Blocks {
		touched := map[int]bool{}
		for _, n := range live.In[b].Elems() {
			touched[n] = true
		}
		for _, n := range live.Out[b].Elems() {
			touched[n] = true
		}
		for _, insn := range b.Insts {
			if d, ok := insn.Def(); ok && d.IsVirtual() {
				get(d.Num).Defs++
				touched[d.Num] = true
			}
			for _, u := range insn.Uses() {
				if u.IsVirtual() {
					get(u.Num).Uses++
					touched[u.Num] = true
				}
			}
		}
		for n := range touched {
			get(n).Length++
		}
	}
	return out
}
