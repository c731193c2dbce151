package opt

import "sysyc/internal/ir"

// evalStepLimit bounds the interpreter loop below so a function that
// partial evaluation mistakenly thinks terminates (it always should,
// SysY has no unbounded recursion once inlining has run, but a
// pathological loop is still possible) can't hang compilation.
const evalStepLimit = 100000

// PartialEvaluate folds calls to a scalar-only function when every
// argument is a compile-time constant, by running a small bounded
// interpreter over the callee's own IR (spec.md §4.7). Only functions
// whose allocas are all scalar and that contain no getelementptr are
// evaluable. Calls inside the callee, recursive ones included, run
// through the same interpreter; a call it cannot execute (an
// intrinsic) makes the evaluation fail and the call is left for the
// inliner/DCE/LVN combination to simplify instead.
func PartialEvaluate(mod *ir.Module) bool {
	changed := false
	for _, fn := range mod.Funcs {
		if fn.Intrinsic {
			continue
		}
		for _, in := range append([]*ir.Instruction(nil), fn.AllInstructions()...) {
			if in.Op != ir.OpCall || in.Callee == nil {
				continue
			}
			callee := in.Callee
			args, ok := constArgs(in)
			if !ok || !evaluable(callee) {
				continue
			}
			v, ok := interpret(callee, args)
			if !ok {
				continue
			}
			in.ReplaceAllUsesWith(ir.NewConst(v))
			in.Block.RemoveInst(in)
			changed = true
		}
	}
	return changed
}

func constArgs(call *ir.Instruction) ([]int32, bool) {
	args := make([]int32, call.NumOperands())
	for i := range args {
		c, ok := call.Operand(i).(*ir.Const)
		if !ok {
			return nil, false
		}
		args[i] = c.Val
	}
	return args, true
}

// evaluable reports whether callee consists only of scalar-int
// arithmetic/control flow the interpreter below can execute: no array
// allocas (no memory addressing beyond a scalar slot), no calls except
// to other evaluable functions (checked lazily by the interpreter
// itself failing closed), no getelementptr.
func evaluable(fn *ir.Function) bool {
	if fn.Variadic || fn.RetType.Kind != ir.TInt32 {
		return false
	}
	for _, in := range fn.AllInstructions() {
		switch in.Op {
		case ir.OpAlloca:
			if in.ValueType().Elem.Kind != ir.TInt32 {
				return false
			}
		case ir.OpGetElementPtr:
			return false
		}
	}
	return true
}

// interpret runs callee with args bound to its parameters in order,
// over a flat scalar memory keyed by alloca identity, following
// branches by evaluating icmp/phi directly rather than through any
// analysis pass (this is a standalone tree-walk, independent of
// internal/ir/opt's other passes).
func interpret(fn *ir.Function, args []int32) (int32, bool) {
	mem := map[*ir.Instruction]int32{}
	vals := map[ir.Value]int32{}
	for i, p := range fn.Params {
		vals[p] = args[i]
	}

	cur := fn.Entry()
	var prev *ir.BasicBlock
	steps := 0
	for cur != nil {
		steps++
		if steps > evalStepLimit {
			return 0, false
		}
		var branched *ir.BasicBlock
		for _, in := range cur.Insts {
			v, ok, next := evalOne(in, vals, mem, prev)
			if !ok {
				return 0, false
			}
			if next != nil {
				branched = next
				continue
			}
			if in.Op == ir.OpRet {
				return v, true
			}
			if !in.NoDef {
				vals[in] = v
			}
		}
		if branched == nil {
			return 0, false
		}
		prev = cur
		cur = branched
	}
	return 0, false
}

// evalOne evaluates a single instruction against the interpreter's
// scalar environment. prev is the block execution arrived from (nil
// at the function entry), used to pick a phi's incoming value. It
// returns a non-nil next block for control flow (br), in which case
// v/ok are unused by the caller beyond ok.
func evalOne(in *ir.Instruction, vals map[ir.Value]int32, mem map[*ir.Instruction]int32, prev *ir.BasicBlock) (int32, bool, *ir.BasicBlock) {
	get := func(v ir.Value) (int32, bool) {
		if c, ok := v.(*ir.Const); ok {
			return c.Val, true
		}
		x, ok := vals[v]
		return x, ok
	}
	switch in.Op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpSdiv, ir.OpSrem:
		l, ok1 := get(in.Operand(0))
		r, ok2 := get(in.Operand(1))
		if !ok1 || !ok2 {
			return 0, false, nil
		}
		switch in.Op {
		case ir.OpAdd:
			return l + r, true, nil
		case ir.OpSub:
			return l - r, true, nil
		case ir.OpMul:
			return l * r, true, nil
		case ir.OpSdiv:
			if r == 0 {
				return 0, false, nil
			}
			return l / r, true, nil
		case ir.OpSrem:
			if r == 0 {
				return 0, false, nil
			}
			return l % r, true, nil
		}
	case ir.OpIcmp:
		l, ok1 := get(in.Operand(0))
		r, ok2 := get(in.Operand(1))
		if !ok1 || !ok2 {
			return 0, false, nil
		}
		var res bool
		switch in.Cond {
		case ir.CondEq:
			res = l == r
		case ir.CondNe:
			res = l != r
		case ir.CondSgt:
			res = l > r
		case ir.CondSge:
			res = l >= r
		case ir.CondSlt:
			res = l < r
		case ir.CondSle:
			res = l <= r
		}
		if res {
			return 1, true, nil
		}
		return 0, true, nil
	case ir.OpZext, ir.OpTrunc:
		v, ok := get(in.Operand(0))
		return v, ok, nil
	case ir.OpAlloca:
		mem[in] = 0
		return 0, true, nil
	case ir.OpLoad:
		al, ok := in.Operand(0).(*ir.Instruction)
		if !ok {
			return 0, false, nil
		}
		return mem[al], true, nil
	case ir.OpStore:
		al, ok := in.Operand(1).(*ir.Instruction)
		if !ok {
			return 0, false, nil
		}
		v, ok := get(in.Operand(0))
		if !ok {
			return 0, false, nil
		}
		mem[al] = v
		return 0, true, nil
	case ir.OpPhi:
		for i, p := range in.PhiPreds {
			if p == prev {
				v, ok := get(in.Operand(i))
				return v, ok, nil
			}
		}
		return 0, false, nil
	case ir.OpBr:
		if in.IsConditional() {
			c, ok := get(in.Operand(0))
			if !ok {
				return 0, false, nil
			}
			then, els := in.BrTargets()
			if c != 0 {
				return 0, true, then
			}
			return 0, true, els
		}
		t, _ := in.BrTargets()
		return 0, true, t
	case ir.OpRet:
		if in.NumOperands() == 0 {
			return 0, true, nil
		}
		v, ok := get(in.Operand(0))
		return v, ok, nil
	case ir.OpCall:
		if in.Callee == nil || !evaluable(in.Callee) {
			return 0, false, nil
		}
		subArgs := make([]int32, in.NumOperands())
		for i := range subArgs {
			v, ok := get(in.Operand(i))
			if !ok {
				return 0, false, nil
			}
			subArgs[i] = v
		}
		v, ok := interpret(in.Callee, subArgs)
		return v, ok, nil
	}
	return 0, false, nil
}
