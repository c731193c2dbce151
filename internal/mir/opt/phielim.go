package opt

import "sysyc/internal/mir"

// SplitCriticalEdges inserts an empty block on every edge that is both
// a branch with more than one successor and a target with more than
// one predecessor (spec.md §4.12's prerequisite for phi elimination:
// a parallel copy spliced onto a critical edge must not run on the
// other successor's path too).
func SplitCriticalEdges(mf *mir.MFunction) bool {
	changed := false
	for _, b := range append([]*mir.MBasicBlock(nil), mf.Blocks...) {
		if len(b.Preds) < 2 {
			continue
		}
		for _, p := range append([]*mir.MBasicBlock(nil), b.Preds...) {
			if len(p.Succs) < 2 {
				continue
			}
			splitEdge(mf, p, b)
			changed = true
		}
	}
	return changed
}

func splitEdge(mf *mir.MFunction, p, b *mir.MBasicBlock) {
	mid := mf.NewBlock("critedge")
	mid.Append(&mir.MInstruction{Op: mir.MB, NoDef: true, Operands: []mir.Operand{mir.LabelOp(b)}})
	retarget(p, b, mid)
	rewirePreds(p, b, mid)
	mid.Preds = append(mid.Preds, p)
	mid.Succs = append(mid.Succs, b)
}

func retarget(p, old, new *mir.MBasicBlock) {
	term := p.Insts[len(p.Insts)-1]
	for i, o := range term.Operands {
		if o.Kind == mir.OLabel && o.Block == old {
			term.Operands[i] = mir.LabelOp(new)
		}
	}
	for i, s := range p.Succs {
		if s == old {
			p.Succs[i] = new
		}
	}
}

func rewirePreds(p, b, mid *mir.MBasicBlock) {
	for i, pr := range b.Preds {
		if pr == p {
			b.Preds[i] = mid
			return
		}
	}
}

// move is one leg of a phi's parallel copy: dst receives src's value
// along one specific predecessor edge.
type move struct {
	dst, src mir.Reg
}

// PhiElim lowers every block's phi instructions into parallel copies
// spliced at the end of each predecessor (spec.md §4.12), serialized
// with the standard cycle-breaking algorithm: emit any move whose
// destination is not read by another pending move first; if every
// remaining move is part of a cycle, break it by copying one source
// into a scratch register ($at) before its own destination is
// overwritten. Call SplitCriticalEdges before this so every insertion
// point is safe.
func PhiElim(mf *mir.MFunction) bool {
	changed := false
	for _, b := range mf.Blocks {
		phis := leadingPhis(b)
		if len(phis) == 0 {
			continue
		}
		perPred := map[*mir.MBasicBlock][]move{}
		for _, phi := range phis {
			dst := phi.Operands[0].Reg
			for i := 1; i < len(phi.Operands); i += 2 {
				src := phi.Operands[i]
				pred := phi.Operands[i+1].Block
				if src.Kind == mir.OReg {
					perPred[pred] = append(perPred[pred], move{dst: dst, src: src.Reg})
				}
			}
		}
		for pred, moves := range perPred {
			insertParallelCopy(pred, moves)
		}
		b.Insts = b.Insts[len(phis):]
		changed = true
	}
	return changed
}

func leadingPhis(b *mir.MBasicBlock) []*mir.MInstruction {
	var out []*mir.MInstruction
	for _, in := range b.Insts {
		if in.Op != mir.MPhi {
			break
		}
		out = append(out, in)
	}
	return out
}

// insertParallelCopy serializes moves into a sequence of ordinary
// MCopy instructions spliced before pred's terminator.
func insertParallelCopy(pred *mir.MBasicBlock, moves []move) {
	pending := append([]move(nil), moves...)
	var emitted []*mir.MInstruction
	for len(pending) > 0 {
		progress := false
		for i, m := range pending {
			if m.dst == m.src {
				pending = append(pending[:i], pending[i+1:]...)
				progress = true
				break
			}
			if !readBy(pending, m.dst, i) {
				emitted = append(emitted, &mir.MInstruction{Op: mir.MCopy, Operands: []mir.Operand{mir.RegOp(m.dst), mir.RegOp(m.src)}})
				pending = append(pending[:i], pending[i+1:]...)
				progress = true
				break
			}
		}
		if !progress {
			// Every remaining move is part of a cycle: break it by
			// stashing the *original* value of the first move's
			// destination in $at (that value is about to be clobbered),
			// redirecting every other pending move that still needs it to
			// read $at instead, then performing the first move right away
			// -- its destination is now safe to overwrite since every
			// reader of the old value has been redirected.
			at := mir.Phys(mir.RegAt)
			first := pending[0]
			emitted = append(emitted, &mir.MInstruction{Op: mir.MCopy, Operands: []mir.Operand{mir.RegOp(at), mir.RegOp(first.dst)}})
			for i := range pending {
				if pending[i].src == first.dst {
					pending[i].src = at
				}
			}
			emitted = append(emitted, &mir.MInstruction{Op: mir.MCopy, Operands: []mir.Operand{mir.RegOp(first.dst), mir.RegOp(first.src)}})
			pending = pending[1:]
		}
	}
	for _, in := range emitted {
		insertBeforeTerm(pred, in)
	}
}

func readBy(pending []move, r mir.Reg, except int) bool {
	for i, m := range pending {
		if i != except && m.src == r {
			return true
		}
	}
	return false
}

func insertBeforeTerm(b *mir.MBasicBlock, in *mir.MInstruction) {
	if len(b.Insts) > 0 && b.Insts[len(b.Insts)-1].IsTerminator() {
		last := len(b.Insts) - 1
		b.Insts = append(b.Insts, nil)
		copy(b.Insts[last+1:], b.Insts[last:])
		b.Insts[last] = in
		return
	}
	b.Insts = append(b.Insts, in)
}
