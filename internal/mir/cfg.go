package mir

// RebuildCFG recomputes every block's Preds/Succs from its trailing
// branch instructions, mirroring internal/ir.RebuildCFG at the
// machine level. A block's tail is either a single unconditional MB/
// MJr_ra/MJ (no successors for MJr_ra, one for MB/MJ), or a fused/
// unfused conditional branch immediately followed by the unconditional
// else-jump lowerBr always emits (instr.go) — two edges.
func RebuildCFG(mf *MFunction) {
	for _, b := range mf.Blocks {
		b.Preds = nil
		b.Succs = nil
	}
	for i, b := range mf.Blocks {
		targets := branchTargets(b)
		if fallsThrough(b) && i+1 < len(mf.Blocks) {
			targets = append(targets, mf.Blocks[i+1])
		}
		for _, target := range targets {
			b.Succs = append(b.Succs, target)
			target.Preds = append(target.Preds, b)
		}
	}
}

// fallsThrough reports whether control can reach the next block in
// layout order without an explicit jump: true only for a block whose
// last instruction is a bare conditional branch (its unconditional
// else-jump having been deleted by eliminateTailJumps, layout.go) or
// an empty/non-terminated block.
func fallsThrough(b *MBasicBlock) bool {
	if len(b.Insts) == 0 {
		return true
	}
	last := b.Insts[len(b.Insts)-1]
	if isCondBranch(last.Op) {
		return true
	}
	return !last.IsTerminator()
}

func branchTargets(b *MBasicBlock) []*MBasicBlock {
	n := len(b.Insts)
	if n == 0 {
		return nil
	}
	var out []*MBasicBlock
	last := b.Insts[n-1]
	if last.Op == MB || last.Op == MJ {
		if n >= 2 && isCondBranch(b.Insts[n-2].Op) {
			if t := labelTarget(b.Insts[n-2]); t != nil {
				out = append(out, t)
			}
		}
		if t := labelTarget(last); t != nil {
			out = append(out, t)
		}
		return out
	}
	if isCondBranch(last.Op) {
		// a conditional branch with its else-jump already tail-jump-
		// eliminated (layout.go): the other edge is the next block in
		// layout order. branchTargets reports only the edge that is
		// still an explicit instruction; RebuildCFG adds the
		// fall-through edge itself.
		if t := labelTarget(last); t != nil {
			out = append(out, t)
		}
	}
	return out
}

// isCondBranch reports whether op is a conditional branch that is
// always immediately followed, in this backend's lowering, by the
// unconditional else-jump (lowerBr in internal/mir/lower/instr.go);
// branchTargets therefore walks both.
func isCondBranch(op MOp) bool {
	switch op {
	case MBeq, MBne, MBlt, MBgt, MBle, MBge:
		return true
	}
	return false
}

func labelTarget(in *MInstruction) *MBasicBlock {
	for _, o := range in.Operands {
		if o.Kind == OLabel {
			return o.Block
		}
	}
	return nil
}
