package opt

import "sysyc/internal/ir"

// inlineSizeLimit bounds the callee instruction count eligible for
// inlining, so a deeply-nested call chain can't blow up code size
// (spec.md §4.7 leaves the exact threshold unspecified; this mirrors
// the kind of budget the original's inliner also applied per
// original_source/src/backend/ for call-site expansion).
const inlineSizeLimit = 64

// Inline clones small, non-recursive, non-intrinsic, non-variadic
// callees directly into their call sites (spec.md §4.7). The call's
// block is split at the call; the callee's cloned body is spliced in
// between, and every cloned `ret` becomes a branch to the
// continuation block, merged through a phi when the callee is
// non-void and returns along more than one path.
func Inline(mod *ir.Module) bool {
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
			if !eligibleForInline(callee, fn) {
				continue
			}
			inlineCall(mod, fn, in, callee)
			changed = true
		}
	}
	if changed {
		for _, fn := range mod.Funcs {
			if !fn.Intrinsic {
				ir.RebuildCFG(fn)
			}
		}
	}
	return changed
}

func eligibleForInline(callee, caller *ir.Function) bool {
	if callee.Intrinsic || callee.Variadic || callee == caller {
		return false
	}
	n := 0
	for _, in := range callee.AllInstructions() {
		n++
		if in.Op == ir.OpCall && in.Callee == callee {
			return false // direct self-recursion
		}
	}
	return n <= inlineSizeLimit
}

func inlineCall(mod *ir.Module, caller *ir.Function, call *ir.Instruction, callee *ir.Function) {
	cb := call.Block
	idx := indexOf(cb, call)

	cont := caller.NewBlock(cb.Name + ".cont")
	cont.Insts = append(cont.Insts, cb.Insts[idx+1:]...)
	for _, in := range cont.Insts {
		in.Block = cont
	}
	cb.Insts = cb.Insts[:idx+1] // keep the call itself for now so RemoveInst can detach its operand uses below

	valueMap := map[ir.Value]ir.Value{}
	for i, p := range callee.Params {
		valueMap[p] = call.Operand(i)
	}
	blockMap := map[*ir.BasicBlock]*ir.BasicBlock{}
	for _, b := range callee.Blocks {
		blockMap[b] = caller.NewBlock("inl." + callee.Name + "." + b.Name)
	}

	resolve := func(v ir.Value) ir.Value {
		if mapped, ok := valueMap[v]; ok {
			return mapped
		}
		return v
	}

	var phiOrigs []*ir.Instruction
	var rets []*ir.Instruction

	for _, b := range callee.Blocks {
		nb := blockMap[b]
		for _, in := range b.Insts {
			clone := cloneInstr(in, resolve, blockMap)
			nb.Append(clone)
			valueMap[in] = clone
			if in.Op == ir.OpPhi {
				phiOrigs = append(phiOrigs, in)
			}
			if in.Op == ir.OpRet {
				rets = append(rets, clone)
			}
		}
	}

	for _, orig := range phiOrigs {
		clone := valueMap[orig].(*ir.Instruction)
		for i := 0; i < orig.NumOperands(); i++ {
			pred := blockMap[orig.PhiPreds[i]]
			clone.AddIncoming(pred, resolve(orig.Operand(i)))
		}
	}

	cb.RemoveInst(call)
	cb.Append(ir.NewBr(blockMap[callee.Entry()]))

	var retPhi *ir.Instruction
	if callee.RetType.Kind != ir.TVoid && len(rets) > 0 {
		if len(rets) > 1 {
			retPhi = ir.NewPhi(callee.RetType)
			cont.InsertBefore(0, retPhi)
		}
	}
	for _, ret := range rets {
		rb := ret.Block
		var v ir.Value
		if ret.NumOperands() > 0 {
			v = ret.Operand(0)
		}
		rb.RemoveInst(ret)
		rb.Append(ir.NewBr(cont))
		if retPhi != nil {
			retPhi.AddIncoming(rb, v)
		} else if v != nil && len(rets) == 1 {
			call.ReplaceAllUsesWith(v)
		}
	}
	if retPhi != nil {
		call.ReplaceAllUsesWith(retPhi)
	}
}

// cloneInstr builds a fresh instruction matching in's opcode, with
// operands resolved through resolve (params/already-cloned values map
// to their inlined counterpart; everything else, such as a constant or
// a global, passes through unchanged) and branch/phi targets remapped
// through blockMap. Phi incoming values are filled by the caller in a
// second pass since a loop's back-edge can reference a block not yet
// cloned.
func cloneInstr(in *ir.Instruction, resolve func(ir.Value) ir.Value, blockMap map[*ir.BasicBlock]*ir.BasicBlock) *ir.Instruction {
	switch in.Op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpSdiv, ir.OpSrem:
		return ir.NewBinOp(in.Op, resolve(in.Operand(0)), resolve(in.Operand(1)))
	case ir.OpIcmp:
		return ir.NewIcmp(in.Cond, resolve(in.Operand(0)), resolve(in.Operand(1)))
	case ir.OpAlloca:
		return ir.NewAlloca(*in.ValueType().Elem)
	case ir.OpLoad:
		return ir.NewLoad(resolve(in.Operand(0)))
	case ir.OpStore:
		return ir.NewStore(resolve(in.Operand(0)), resolve(in.Operand(1)))
	case ir.OpGetElementPtr:
		idxs := make([]ir.Value, in.NumOperands()-1)
		for i := 1; i < in.NumOperands(); i++ {
			idxs[i-1] = resolve(in.Operand(i))
		}
		return ir.NewGetElementPtr(resolve(in.Operand(0)), idxs, in.GEPName)
	case ir.OpCall:
		args := make([]ir.Value, in.NumOperands())
		for i := range args {
			args[i] = resolve(in.Operand(i))
		}
		return ir.NewCall(in.Callee, in.CalleeName, in.ValueType(), args)
	case ir.OpPhi:
		return ir.NewPhi(in.ValueType())
	case ir.OpZext:
		return ir.NewZext(resolve(in.Operand(0)))
	case ir.OpTrunc:
		return ir.NewTrunc(resolve(in.Operand(0)))
	case ir.OpBr:
		if in.IsConditional() {
			then := blockMap[in.Operand(1).(*ir.BasicBlock)]
			els := blockMap[in.Operand(2).(*ir.BasicBlock)]
			return ir.NewCondBr(resolve(in.Operand(0)), then, els)
		}
		return ir.NewBr(blockMap[in.Operand(0).(*ir.BasicBlock)])
	case ir.OpRet:
		var v ir.Value
		if in.NumOperands() > 0 {
			v = resolve(in.Operand(0))
		}
		return ir.NewRet(v)
	}
	return ir.NewRet(nil)
}
