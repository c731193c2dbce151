package opt

import "sysyc/internal/ir"

// ConstFold applies the fixed rewrite table of spec.md §4.4 once over
// every instruction in fn, returning whether anything changed. The
// outer pipeline (pipeline.go) re-runs it to a fixpoint alongside the
// other IR passes.
func ConstFold(fn *ir.Function) bool {
	changed := false
	for _, b := range fn.Blocks {
		for _, in := range append([]*ir.Instruction(nil), b.Insts...) {
			if rewriteInstr(in) {
				changed = true
			}
		}
	}
	return changed
}

func asConst(v ir.Value) (int32, bool) {
	c, ok := v.(*ir.Const)
	if !ok {
		return 0, false
	}
	return c.Val, true
}

func replaceWith(in *ir.Instruction, v ir.Value) {
	in.ReplaceAllUsesWith(v)
	if in.Block != nil {
		in.Block.RemoveInst(in)
	}
}

func rewriteInstr(in *ir.Instruction) bool {
	switch in.Op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpSdiv, ir.OpSrem:
		return rewriteArith(in)
	case ir.OpIcmp:
		return rewriteIcmp(in)
	case ir.OpPhi:
		return rewritePhi(in)
	case ir.OpBr:
		return rewriteBr(in)
	}
	return false
}

func rewriteArith(in *ir.Instruction) bool {
	l, r := in.Operand(0), in.Operand(1)
	lc, lok := asConst(l)
	rc, rok := asConst(r)
	if lok && rok {
		var v int32
		switch in.Op {
		case ir.OpAdd:
			v = lc + rc
		case ir.OpSub:
			v = lc - rc
		case ir.OpMul:
			v = lc * rc
		case ir.OpSdiv:
			if rc == 0 {
				return false
			}
			v = lc / rc
		case ir.OpSrem:
			if rc == 0 {
				return false
			}
			v = lc % rc
		}
		replaceWith(in, ir.NewConst(v))
		return true
	}

	switch in.Op {
	case ir.OpAdd:
		if lok && lc == 0 {
			replaceWith(in, r)
			return true
		}
		if rok && rc == 0 {
			replaceWith(in, l)
			return true
		}
		if lok && !rok {
			// canonicalize constant to the right operand
			in.SetOperand(0, r)
			in.SetOperand(1, l)
			return true
		}
	case ir.OpSub:
		if rok && rc == 0 {
			replaceWith(in, l)
			return true
		}
		if l == r {
			replaceWith(in, ir.NewConst(0))
			return true
		}
		if rok {
			// x - c -> x + (-c), letting reassociation/LVN treat it
			// uniformly with add.
			add := ir.NewBinOp(ir.OpAdd, l, ir.NewConst(-rc))
			in.Block.InsertBefore(indexOf(in.Block, in), add)
			replaceWith(in, add)
			return true
		}
	case ir.OpMul:
		if (lok && lc == 0) || (rok && rc == 0) {
			replaceWith(in, ir.NewConst(0))
			return true
		}
		if lok && lc == 1 {
			replaceWith(in, r)
			return true
		}
		if rok && rc == 1 {
			replaceWith(in, l)
			return true
		}
		if lok && !rok {
			in.SetOperand(0, r)
			in.SetOperand(1, l)
			return true
		}
	case ir.OpSdiv:
		if rok && rc == 1 {
			replaceWith(in, l)
			return true
		}
		if l == r && !isZeroConst(l) {
			replaceWith(in, ir.NewConst(1))
			return true
		}
	case ir.OpSrem:
		if rok && rc == 1 {
			replaceWith(in, ir.NewConst(0))
			return true
		}
	}
	return false
}

func isZeroConst(v ir.Value) bool {
	c, ok := asConst(v)
	return ok && c == 0
}

func indexOf(b *ir.BasicBlock, in *ir.Instruction) int {
	for i, x := range b.Insts {
		if x == in {
			return i
		}
	}
	return len(b.Insts)
}

func rewriteIcmp(in *ir.Instruction) bool {
	l, r := in.Operand(0), in.Operand(1)
	lc, lok := asConst(l)
	rc, rok := asConst(r)
	if !lok || !rok {
		// `icmp ne 0, zext(b)` is how && and || materialize their
		// result (see expr.go's lowerShortCircuit); it is already b
		// widened to i32; the comparison back against 0 is redundant.
		if in.Cond == ir.CondNe {
			if z, ok := zextOfZeroCmp(l, r); ok {
				replaceWith(in, z)
				return true
			}
			if z, ok := zextOfZeroCmp(r, l); ok {
				replaceWith(in, z)
				return true
			}
		}
		return false
	}
	var res bool
	switch in.Cond {
	case ir.CondEq:
		res = lc == rc
	case ir.CondNe:
		res = lc != rc
	case ir.CondSgt:
		res = lc > rc
	case ir.CondSge:
		res = lc >= rc
	case ir.CondSlt:
		res = lc < rc
	case ir.CondSle:
		res = lc <= rc
	}
	v := int32(0)
	if res {
		v = 1
	}
	replaceWith(in, ir.NewConst(v))
	return true
}

// zextOfZeroCmp recognizes the `zero, zext(x)` operand pair (in either
// order) and returns the zext's source.
func zextOfZeroCmp(zero, other ir.Value) (ir.Value, bool) {
	if !isZeroConst(zero) {
		return nil, false
	}
	z, ok := other.(*ir.Instruction)
	if !ok || z.Op != ir.OpZext {
		return nil, false
	}
	return z.Operand(0), true
}

func rewritePhi(in *ir.Instruction) bool {
	if len(in.Operands) == 1 {
		replaceWith(in, in.Operand(0))
		return true
	}
	if len(in.Operands) == 0 {
		return false
	}
	first := in.Operand(0)
	allSame := true
	for i := 1; i < len(in.Operands); i++ {
		if in.Operand(i) != first {
			allSame = false
			break
		}
	}
	if allSame {
		replaceWith(in, first)
		return true
	}
	return false
}

// rewriteBr folds a conditional branch with a constant condition to
// an unconditional one, and collapses identical then/else targets
// (spec.md §4.4). When a constant condition drops an edge, the dead
// target's phi incoming values from this block are pruned here via
// removePhiIncoming.
func rewriteBr(in *ir.Instruction) bool {
	if !in.IsConditional() {
		return false
	}
	then, els := in.BrTargets()
	b := in.Block
	if then == els {
		b.RemoveInst(in)
		b.Append(ir.NewBr(then))
		return true
	}
	c, ok := asConst(in.Operand(0))
	if !ok {
		return false
	}
	target, dead := els, then
	if c != 0 {
		target, dead = then, els
	}
	removePhiIncoming(dead, b)
	b.RemoveInst(in)
	b.Append(ir.NewBr(target))
	return true
}

func removePhiIncoming(b, pred *ir.BasicBlock) {
	for _, in := range b.Insts {
		if in.Op != ir.OpPhi {
			continue
		}
		for i, p := range in.PhiPreds {
			if p == pred {
				in.Operands[i].Set(nil)
				in.Operands = append(in.Operands[:i], in.Operands[i+1:]...)
				in.PhiPreds = append(in.PhiPreds[:i], in.PhiPreds[i+1:]...)
				break
			}
		}
	}
}
