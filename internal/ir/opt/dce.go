package opt

import "sysyc/internal/ir"

// sideEffecting reports whether an instruction must be kept even with
// no uses: stores, calls (may have side effects through intrinsics)
// and terminators are never dead regardless of use count (spec.md
// §4.8).
func sideEffecting(in *ir.Instruction) bool {
	switch in.Op {
	case ir.OpStore, ir.OpCall, ir.OpBr, ir.OpRet:
		return true
	}
	return false
}

// DCE removes every pure instruction (including allocas left behind
// by a partially-promoted array, and phis) with no remaining uses
// (spec.md §4.8 basic dead-code elimination).
func DCE(fn *ir.Function) bool {
	changed := false
	for _, b := range fn.Blocks {
		for _, in := range append([]*ir.Instruction(nil), b.Insts...) {
			if sideEffecting(in) {
				continue
			}
			if len(in.UseList()) == 0 {
				b.RemoveInst(in)
				changed = true
			}
		}
	}
	return changed
}

// AggressiveDCE additionally removes whole unreachable blocks (spec.md
// §4.8's "aggressive" variant): any block not reachable from the
// entry by CFG successor edges, together with its phi incoming
// entries in still-live successors, is dropped entirely rather than
// waiting for its instructions to individually lose their uses.
func AggressiveDCE(fn *ir.Function) bool {
	changed := DCE(fn)
	ir.RebuildCFG(fn)

	entry := fn.Entry()
	if entry == nil {
		return changed
	}
	reachable := map[*ir.BasicBlock]bool{entry: true}
	worklist := []*ir.BasicBlock{entry}
	for len(worklist) > 0 {
		b := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, s := range b.Succs {
			if !reachable[s] {
				reachable[s] = true
				worklist = append(worklist, s)
			}
		}
	}

	var dead []*ir.BasicBlock
	for _, b := range fn.Blocks {
		if !reachable[b] {
			dead = append(dead, b)
		}
	}
	for _, b := range dead {
		for _, s := range b.Succs {
			if reachable[s] {
				removePhiIncoming(s, b)
			}
		}
		for _, in := range b.Insts {
			in.ReplaceAllUsesWith(nil)
		}
		fn.RemoveBlock(b)
		changed = true
	}
	if len(dead) > 0 {
		ir.RebuildCFG(fn)
	}
	return changed
}
