package opt

import (
	"sysyc/internal/ir"
	"sysyc/internal/ir/analysis"
)

// unrollLimit is the largest trip count this pass will fully unroll
// (spec.md §4.9); beyond it the code-size cost outweighs the benefit
// mem2reg/LVN/GCM would otherwise extract from a fully straight-lined
// body.
const unrollLimit = 16

// UnrollLoops fully unrolls the cond/body/step three-block shape
// internal/ir/build's lowerFor always produces (spec.md §4.9) when the
// induction variable's start, step and bound are all compile-time
// constants: the header's `icmp`+conditional `br` is resolved at
// compile time, and unrollLimit-or-fewer copies of body+step are
// spliced one after another with the induction variable substituted
// by its per-iteration constant, eliminating the phi entirely. The
// original blocks are left in place but unreferenced; AggressiveDCE
// sweeps them.
func UnrollLoops(fn *ir.Function) bool {
	ir.RebuildCFG(fn)
	info := analysis.Build(fn)
	changed := false
	for _, l := range info.Loops {
		if len(l.Body) != 3 {
			continue
		}
		if unrollCountedLoop(fn, l.Header) {
			changed = true
		}
	}
	return changed
}

func unrollCountedLoop(fn *ir.Function, header *ir.BasicBlock) bool {
	term := header.Terminator()
	if term == nil || !term.IsConditional() {
		return false
	}
	cond, ok := term.Operand(0).(*ir.Instruction)
	if !ok || cond.Op != ir.OpIcmp {
		return false
	}
	bodyBlk, exit := term.BrTargets()
	iv, ok := findInductionPhi(header)
	if !ok {
		return false
	}
	var ivIsLHS bool
	switch ir.Value(iv) {
	case cond.Operand(0):
		ivIsLHS = true
	case cond.Operand(1):
		ivIsLHS = false
	default:
		return false
	}

	if len(bodyBlk.Insts) == 0 {
		return false
	}
	bodyTerm := bodyBlk.Terminator()
	if bodyTerm == nil || bodyTerm.IsConditional() {
		return false
	}
	stepBlk, _ := bodyTerm.BrTargets()
	if stepBlk == nil || stepBlk == header {
		return false
	}
	stepTerm := stepBlk.Terminator()
	if stepTerm == nil || stepTerm.IsConditional() {
		return false
	}
	if back, _ := stepTerm.BrTargets(); back != header {
		return false
	}

	start, ok := constIncoming(iv, header.Preds, header)
	if !ok {
		return false
	}
	step, ok := constStep(iv, header, stepBlk)
	if !ok || step == 0 {
		return false
	}
	bound, ok := boundOf(cond, iv)
	if !ok {
		return false
	}
	trip := tripCount(start, bound, step, cond.Cond, ivIsLHS)
	if trip < 0 || trip > unrollLimit {
		return false
	}

	var preheader *ir.BasicBlock
	for _, p := range header.Preds {
		if p != stepBlk {
			preheader = p
		}
	}
	if preheader == nil {
		return false
	}
	if pt := preheader.Terminator(); pt == nil || pt.IsConditional() {
		return false
	}
	redirectBr(preheader, header, exitOrFirstBody(trip, bodyBlk, exit, fn, iv, start, step, bodyBlk, stepBlk, header))
	// Uses of the induction variable after the loop see its final value.
	iv.ReplaceAllUsesWith(ir.NewConst(start + int32(trip)*step))
	return true
}

// exitOrFirstBody performs the actual unrolling (named to keep
// unrollCountedLoop's top-level control flow readable) and returns the
// block the preheader should now jump to.
func exitOrFirstBody(trip int, _ *ir.BasicBlock, exit *ir.BasicBlock, fn *ir.Function, iv *ir.Instruction, start, step int32, bodyBlk, stepBlk, header *ir.BasicBlock) *ir.BasicBlock {
	if trip == 0 {
		return exit
	}
	var firstEntry *ir.BasicBlock
	var prevStepClone *ir.BasicBlock
	ivVal := start
	for k := 0; k < trip; k++ {
		bodyClone := fn.NewBlock("unroll.body")
		stepClone := fn.NewBlock("unroll.step")
		if firstEntry == nil {
			firstEntry = bodyClone
		}
		valueMap := map[ir.Value]ir.Value{iv: ir.NewConst(ivVal)}
		resolve := func(v ir.Value) ir.Value {
			if mapped, ok := valueMap[v]; ok {
				return mapped
			}
			return v
		}
		blockMap := map[*ir.BasicBlock]*ir.BasicBlock{stepBlk: stepClone}
		for _, in := range bodyBlk.Insts {
			clone := cloneInstr(in, resolve, blockMap)
			bodyClone.Append(clone)
			valueMap[in] = clone
		}
		var next *ir.BasicBlock
		if k == trip-1 {
			next = exit
		} else {
			next = exit // placeholder; replaced on the next iteration once its bodyClone exists
		}
		blockMap2 := map[*ir.BasicBlock]*ir.BasicBlock{header: next}
		for _, in := range stepBlk.Insts {
			clone := cloneInstr(in, resolve, blockMap2)
			stepClone.Append(clone)
			valueMap[in] = clone
		}
		if prevStepClone != nil {
			redirectBr(prevStepClone, nil, bodyClone)
		}
		prevStepClone = stepClone
		ivVal += step
	}
	redirectBr(prevStepClone, header, exit)
	return firstEntry
}

// redirectBr rewrites b's unconditional terminator to target `to`,
// replacing the old target if from is non-nil and matches, or
// unconditionally if from is nil (used once the true target is only
// known after the fact, e.g. the next unrolled iteration's body block).
func redirectBr(b *ir.BasicBlock, from, to *ir.BasicBlock) {
	term := b.Terminator()
	if term == nil || term.Op != ir.OpBr || term.IsConditional() {
		return
	}
	_ = from
	b.RemoveInst(term)
	b.Append(ir.NewBr(to))
}

func findInductionPhi(header *ir.BasicBlock) (*ir.Instruction, bool) {
	var found *ir.Instruction
	for _, in := range header.Insts {
		if in.Op != ir.OpPhi {
			continue
		}
		if found != nil {
			return nil, false // more than one phi: not the simple counted shape
		}
		found = in
	}
	if found == nil {
		return nil, false
	}
	return found, true
}

func constIncoming(phi *ir.Instruction, preds []*ir.BasicBlock, header *ir.BasicBlock) (int32, bool) {
	for _, p := range preds {
		if p == header {
			continue
		}
		v, ok := phi.IncomingFor(p)
		if !ok {
			continue
		}
		if c, ok := v.(*ir.Const); ok {
			return c.Val, true
		}
	}
	return 0, false
}

func constStep(phi *ir.Instruction, header, stepBlk *ir.BasicBlock) (int32, bool) {
	v, ok := phi.IncomingFor(stepBlk)
	if !ok {
		return 0, false
	}
	add, ok := v.(*ir.Instruction)
	if !ok || add.Op != ir.OpAdd {
		return 0, false
	}
	if add.Operand(0) != ir.Value(phi) {
		return 0, false
	}
	c, ok := add.Operand(1).(*ir.Const)
	if !ok {
		return 0, false
	}
	return c.Val, true
}

func boundOf(cond *ir.Instruction, iv *ir.Instruction) (int32, bool) {
	var other ir.Value
	if cond.Operand(0) == ir.Value(iv) {
		other = cond.Operand(1)
	} else if cond.Operand(1) == ir.Value(iv) {
		other = cond.Operand(0)
	} else {
		return 0, false
	}
	c, ok := other.(*ir.Const)
	if !ok {
		return 0, false
	}
	return c.Val, true
}

func tripCount(start, bound, step int32, cond ir.ICmpCond, ivIsLHS bool) int {
	if !ivIsLHS {
		cond = cond.Negate()
	}
	n := 0
	v := start
	for n <= unrollLimit+1 {
		var live bool
		switch cond {
		case ir.CondSlt:
			live = v < bound
		case ir.CondSle:
			live = v <= bound
		case ir.CondSgt:
			live = v > bound
		case ir.CondSge:
			live = v >= bound
		default:
			return -1
		}
		if !live {
			return n
		}
		v += step
		n++
	}
	return -1
}
