package lower

import (
	"sysyc/internal/ir"
	"sysyc/internal/mir"
)

func emit(mb *mir.MBasicBlock, op mir.MOp, noDef bool, operands ...mir.Operand) *mir.MInstruction {
	in := &mir.MInstruction{Op: op, Operands: operands, NoDef: noDef}
	mb.Append(in)
	return in
}

func def(mb *mir.MBasicBlock, op mir.MOp, dst mir.Reg, operands ...mir.Operand) {
	all := append([]mir.Operand{mir.RegOp(dst)}, operands...)
	emit(mb, op, false, all...)
}

// reg materializes v into a register, emitting whatever is needed
// (li for a constant, la for a global/string address, addiu $fp,off
// for a local whose address is being taken rather than loaded
// through) and returns that register. Every ir.Value operand flows
// through here, so a value used twice is materialized twice; machine
// LVN (internal/mir/opt) is expected to clean up the duplication.
func (c *ctx) reg(mb *mir.MBasicBlock, v ir.Value) mir.Reg {
	switch val := v.(type) {
	case *ir.Const:
		dst := c.mf.NewVReg()
		def(mb, mir.MLi, dst, mir.ImmOp(val.Val))
		return dst
	case *ir.Param:
		return c.vregs[val]
	case *ir.Global:
		dst := c.mf.NewVReg()
		def(mb, mir.MLa, dst, mir.SymOp(val.Name))
		return dst
	case *ir.Instruction:
		if val.Op == ir.OpAlloca {
			dst := c.mf.NewVReg()
			def(mb, mir.MAddiu, dst, mir.RegOp(mir.Phys(mir.RegFp)), mir.ImmOp(c.slots[val]))
			return dst
		}
		return c.vregs[val]
	}
	return c.mf.NewVReg()
}

// addr resolves a pointer-valued operand to a (base register, constant
// byte offset) pair so load/store/getelementptr can fold the offset
// straight into the MIPS instruction's immediate field instead of
// always materializing a fully-resolved address register.
func (c *ctx) addr(mb *mir.MBasicBlock, v ir.Value) (mir.Reg, int32) {
	if in, ok := v.(*ir.Instruction); ok && in.Op == ir.OpAlloca {
		return mir.Phys(mir.RegFp), c.slots[in]
	}
	return c.reg(mb, v), 0
}

func lowerInst(c *ctx, mb *mir.MBasicBlock, in *ir.Instruction) {
	switch in.Op {
	case ir.OpAdd:
		lowerArith(c, mb, in, mir.MAddu)
	case ir.OpSub:
		lowerArith(c, mb, in, mir.MSubu)
	case ir.OpMul:
		lowerArith(c, mb, in, mir.MMul)
	case ir.OpSdiv:
		lowerArith(c, mb, in, mir.MDiv)
	case ir.OpSrem:
		lowerArith(c, mb, in, mir.MRem)
	case ir.OpIcmp:
		lowerIcmp(c, mb, in)
	case ir.OpZext, ir.OpTrunc:
		// No-op at this width: SysY has no sub-i32 types, so zext/trunc
		// just alias the same virtual register, same as vn.go's pure
		// value identity treats them.
		c.vregs[in] = c.reg(mb, in.Operand(0))
	case ir.OpAlloca:
		// No instruction: addr()/reg() synthesize the $fp-relative
		// address on demand at each use.
	case ir.OpLoad:
		base, off := c.addr(mb, in.Operand(0))
		def(mb, mir.MLw, c.vregs[in], mir.RegOp(base), mir.ImmOp(off))
	case ir.OpStore:
		v := c.reg(mb, in.Operand(0))
		base, off := c.addr(mb, in.Operand(1))
		emit(mb, mir.MSw, true, mir.RegOp(v), mir.RegOp(base), mir.ImmOp(off))
	case ir.OpGetElementPtr:
		lowerGEP(c, mb, in)
	case ir.OpPhi:
		lowerPhi(c, mb, in)
	case ir.OpCall:
		lowerCall(c, mb, in)
	case ir.OpBr:
		lowerBr(c, mb, in)
	case ir.OpRet:
		lowerRet(c, mb, in)
	}
}

func lowerArith(c *ctx, mb *mir.MBasicBlock, in *ir.Instruction, op mir.MOp) {
	l := c.reg(mb, in.Operand(0))
	r := c.reg(mb, in.Operand(1))
	def(mb, op, c.vregs[in], mir.RegOp(l), mir.RegOp(r))
}

func lowerIcmp(c *ctx, mb *mir.MBasicBlock, in *ir.Instruction) {
	l := c.reg(mb, in.Operand(0))
	r := c.reg(mb, in.Operand(1))
	op := icmpOp(in.Cond)
	def(mb, op, c.vregs[in], mir.RegOp(l), mir.RegOp(r))
}

func icmpOp(cond ir.ICmpCond) mir.MOp {
	switch cond {
	case ir.CondEq:
		return mir.MSeq
	case ir.CondNe:
		return mir.MSne
	case ir.CondSgt:
		return mir.MSgt
	case ir.CondSge:
		return mir.MSge
	case ir.CondSlt:
		return mir.MSlt
	case ir.CondSle:
		return mir.MSle
	}
	return mir.MSeq
}

// lowerGEP walks the getelementptr's index chain (spec.md §4.10.4),
// folding every constant index into a running byte offset and
// emitting a multiply-add only for the indices that are not
// compile-time constant (array2var already removed the common
// constant-only case before this pass ever runs, but a dynamically
// indexed array parameter still reaches here).
func lowerGEP(c *ctx, mb *mir.MBasicBlock, in *ir.Instruction) {
	base, off := c.addr(mb, in.Operand(0))
	elemType := in.Operand(0).ValueType()
	if elemType.Kind == ir.TPointer {
		elemType = *elemType.Elem
	}
	cur := base
	curOff := off
	for i := 1; i < in.NumOperands(); i++ {
		stride := elemType.Size()
		if elemType.Kind == ir.TArray {
			elemType = *elemType.Elem
		}
		idxVal := in.Operand(i)
		if k, ok := idxVal.(*ir.Const); ok {
			curOff += int32(k.Val) * int32(stride)
			continue
		}
		idxReg := c.reg(mb, idxVal)
		strideReg := c.mf.NewVReg()
		def(mb, mir.MLi, strideReg, mir.ImmOp(int32(stride)))
		mulReg := c.mf.NewVReg()
		def(mb, mir.MMul, mulReg, mir.RegOp(idxReg), mir.RegOp(strideReg))
		if curOff != 0 {
			folded := c.mf.NewVReg()
			def(mb, mir.MAddiu, folded, mir.RegOp(cur), mir.ImmOp(curOff))
			cur = folded
			curOff = 0
		}
		next := c.mf.NewVReg()
		def(mb, mir.MAddu, next, mir.RegOp(cur), mir.RegOp(mulReg))
		cur = next
	}
	dst := c.vregs[in]
	def(mb, mir.MAddiu, dst, mir.RegOp(cur), mir.ImmOp(curOff))
}

// lowerPhi emits an MPhi carrying the already-resolved source register
// for every incoming edge; phi elimination (internal/mir/opt, spec.md
// §4.12) later serializes these into parallel copies on each
// predecessor block. Every operand is pre-assigned a virtual register
// in lowerFunc before any instruction body is lowered (see ctx.vregs),
// so a back-edge predecessor that hasn't been visited yet still
// resolves correctly here: c.reg only ever reads that map, it never
// depends on how much of the predecessor has been emitted.
func lowerPhi(c *ctx, mb *mir.MBasicBlock, in *ir.Instruction) {
	operands := []mir.Operand{mir.RegOp(c.vregs[in])}
	for i := 0; i < in.NumOperands(); i++ {
		irPred := in.PhiPreds[i]
		pred := c.blocks[irPred]
		v := c.phiOperand(pred, in.Operand(i))
		operands = append(operands, mir.RegOp(v), mir.LabelOp(pred))
	}
	emit(mb, mir.MPhi, false, operands...)
}

// phiOperand resolves one incoming phi value to a register valid at
// the end of pred. An Instruction or Param operand already has a
// global virtual register (every SSA value keeps the same one for its
// whole lifetime, see ctx.vregs in lower.go), so no new code is
// needed. A Const incoming must still be materialized with li, and
// since pred may already be fully lowered (ending in its own
// terminator) or not lowered at all yet (a loop back-edge), the li is
// spliced in before pred's terminator rather than appended, so it
// never ends up as dead code after a branch.
func (c *ctx) phiOperand(pred *mir.MBasicBlock, v ir.Value) mir.Reg {
	switch val := v.(type) {
	case *ir.Const:
		dst := c.mf.NewVReg()
		insertBeforeTerm(pred, &mir.MInstruction{Op: mir.MLi, Operands: []mir.Operand{mir.RegOp(dst), mir.ImmOp(val.Val)}})
		return dst
	case *ir.Global:
		dst := c.mf.NewVReg()
		insertBeforeTerm(pred, &mir.MInstruction{Op: mir.MLa, Operands: []mir.Operand{mir.RegOp(dst), mir.SymOp(val.Name)}})
		return dst
	case *ir.Instruction:
		if val.Op == ir.OpAlloca {
			dst := c.mf.NewVReg()
			insertBeforeTerm(pred, &mir.MInstruction{Op: mir.MAddiu, Operands: []mir.Operand{
				mir.RegOp(dst), mir.RegOp(mir.Phys(mir.RegFp)), mir.ImmOp(c.slots[val]),
			}})
			return dst
		}
		return c.vregs[val]
	case *ir.Param:
		return c.vregs[val]
	}
	return c.mf.NewVReg()
}

func insertBeforeTerm(b *mir.MBasicBlock, in *mir.MInstruction) {
	// A lowered conditional br ends in two terminators (bne; b), so step
	// back over all of them, not just the last.
	pos := len(b.Insts)
	for pos > 0 && b.Insts[pos-1].IsTerminator() {
		pos--
	}
	b.Insts = append(b.Insts, nil)
	copy(b.Insts[pos+1:], b.Insts[pos:])
	b.Insts[pos] = in
}

func lowerCall(c *ctx, mb *mir.MBasicBlock, in *ir.Instruction) {
	if in.Callee == nil {
		lowerIntrinsicCall(c, mb, in)
		return
	}
	for i := 0; i < in.NumOperands(); i++ {
		v := c.reg(mb, in.Operand(i))
		if i < len(mir.ArgRegs) {
			emit(mb, mir.MMove, false, mir.RegOp(mir.Phys(mir.ArgRegs[i])), mir.RegOp(v))
		} else {
			off := int32((i - len(mir.ArgRegs)) * 4)
			emit(mb, mir.MSw, true, mir.RegOp(v), mir.RegOp(mir.Phys(mir.RegSp)), mir.ImmOp(off))
		}
	}
	callee := c.fnOf[in.Callee]
	emit(mb, mir.MJal, true, mir.FuncOp(callee))
	if !in.NoDef {
		def(mb, mir.MMove, c.vregs[in], mir.RegOp(mir.Phys(mir.RegV0)))
	}
}

// lowerIntrinsicCall expands a getint/putint/putch/putstr call
// directly into its SPIM/MARS syscall sequence (spec.md §4.1, §4.10):
// read-int is syscall 5, print-int is 1, print-char is 11, print-str
// is 4. printf itself is split by internal/ir/build into a sequence of
// putint/putch/putstr calls at IR-construction time, so lowering never
// sees a printf call and the switch below has no case for it.
func lowerIntrinsicCall(c *ctx, mb *mir.MBasicBlock, in *ir.Instruction) {
	switch in.CalleeName {
	case "getint":
		emit(mb, mir.MLi, false, mir.RegOp(mir.Phys(mir.RegV0)), mir.ImmOp(5))
		emit(mb, mir.MSyscall, true)
		def(mb, mir.MMove, c.vregs[in], mir.RegOp(mir.Phys(mir.RegV0)))
	case "putint":
		arg := c.reg(mb, in.Operand(0))
		emit(mb, mir.MMove, false, mir.RegOp(mir.Phys(mir.RegA0)), mir.RegOp(arg))
		emit(mb, mir.MLi, false, mir.RegOp(mir.Phys(mir.RegV0)), mir.ImmOp(1))
		emit(mb, mir.MSyscall, true)
	case "putch":
		arg := c.reg(mb, in.Operand(0))
		emit(mb, mir.MMove, false, mir.RegOp(mir.Phys(mir.RegA0)), mir.RegOp(arg))
		emit(mb, mir.MLi, false, mir.RegOp(mir.Phys(mir.RegV0)), mir.ImmOp(11))
		emit(mb, mir.MSyscall, true)
	case "putstr":
		arg := c.reg(mb, in.Operand(0))
		emit(mb, mir.MMove, false, mir.RegOp(mir.Phys(mir.RegA0)), mir.RegOp(arg))
		emit(mb, mir.MLi, false, mir.RegOp(mir.Phys(mir.RegV0)), mir.ImmOp(4))
		emit(mb, mir.MSyscall, true)
	}
}

func lowerBr(c *ctx, mb *mir.MBasicBlock, in *ir.Instruction) {
	if !in.IsConditional() {
		target := c.blocks[in.Operand(0).(*ir.BasicBlock)]
		emit(mb, mir.MB, true, mir.LabelOp(target))
		return
	}
	then, els := in.BrTargets()
	cond := c.reg(mb, in.Operand(0))
	zero := mir.Phys(mir.RegZero)
	emit(mb, mir.MBne, true, mir.RegOp(cond), mir.RegOp(zero), mir.LabelOp(c.blocks[then]))
	emit(mb, mir.MB, true, mir.LabelOp(c.blocks[els]))
}

// lowerRet emits the function epilogue's value-returning half: move
// the return value into $v0 (nothing, for void), then exit. main's
// implicit return terminates the program with a syscall-10 exit
// rather than jr $ra, since there is no caller to return to (spec.md
// §4.10's closing note).
func lowerRet(c *ctx, mb *mir.MBasicBlock, in *ir.Instruction) {
	if in.NumOperands() > 0 {
		v := c.reg(mb, in.Operand(0))
		emit(mb, mir.MMove, false, mir.RegOp(mir.Phys(mir.RegV0)), mir.RegOp(v))
	}
	if c.fn.Name == "main" {
		emit(mb, mir.MLi, false, mir.RegOp(mir.Phys(mir.RegV0)), mir.ImmOp(10))
		emit(mb, mir.MSyscall, true)
		return
	}
	emit(mb, mir.MJr_ra, true)
}
