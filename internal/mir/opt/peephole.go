package opt

import "sysyc/internal/mir"

// Peephole runs the small local rewrites spec.md §4.11 lists: drop a
// self-identity addu, fuse a single-use li straight into an addiu/
// slti's immediate field, and fuse a compare immediately followed by
// its bne-against-zero test (the exact shape lower/instr.go's lowerBr always
// emits) into one conditional branch. Each rewrite only fires when the
// value it deletes has no other use, checked once per call via
// countUses rather than threaded through incrementally.
func Peephole(mf *mir.MFunction) bool {
	changed := false
	uses := countUses(mf)
	for _, b := range mf.Blocks {
		if dropIdentityAddu(b) {
			changed = true
		}
		if fuseImmediate(b, uses) {
			changed = true
		}
		if fuseCompareBranch(b, uses) {
			changed = true
		}
	}
	return changed
}

func countUses(mf *mir.MFunction) map[mir.Reg]int {
	out := map[mir.Reg]int{}
	for _, in := range mf.AllInstructions() {
		for _, r := range in.Uses() {
			if r.IsVirtual() {
				out[r]++
			}
		}
	}
	return out
}

// dropIdentityAddu removes `addu rd, rd, $zero` / `addu rd, $zero, rd`,
// the shape lower.go can produce when an address fold leaves a
// zero-offset addiu immediately followed by a no-op add.
func dropIdentityAddu(b *mir.MBasicBlock) bool {
	changed := false
	var kept []*mir.MInstruction
	for _, in := range b.Insts {
		if (in.Op == mir.MAddu || in.Op == mir.MAddiu) && len(in.Operands) == 3 {
			dst := in.Operands[0].Reg
			if isZeroOperand(in.Operands[2]) && in.Operands[1].Kind == mir.OReg && in.Operands[1].Reg == dst {
				changed = true
				continue
			}
			if in.Op == mir.MAddu && isZeroOperand(in.Operands[1]) && in.Operands[2].Kind == mir.OReg && in.Operands[2].Reg == dst {
				changed = true
				continue
			}
		}
		kept = append(kept, in)
	}
	b.Insts = kept
	return changed
}

func isZeroOperand(o mir.Operand) bool {
	if o.Kind == mir.OImm && o.Imm == 0 {
		return true
	}
	return o.Kind == mir.OReg && o.Reg.IsPhysical() && o.Reg.Num == mir.RegZero
}

// fuseImmediate folds `li rt, c` into the very next instruction when rt
// is used there as a register operand and has no other use: addu
// becomes addiu, slt becomes slti (and sle becomes slti with c+1, the
// teacher's documented `sle rd,a,imm → slti rd,a,imm+1` identity, since
// MIPS has no native sle/sge).
func fuseImmediate(b *mir.MBasicBlock, uses map[mir.Reg]int) bool {
	changed := false
	insts := b.Insts
	for i := 0; i+1 < len(insts); i++ {
		li := insts[i]
		if li.Op != mir.MLi {
			continue
		}
		rt := li.Operands[0].Reg
		if uses[rt] != 1 {
			continue
		}
		next := insts[i+1]
		imm := li.Operands[1].Imm
		if fuseOne(next, rt, imm) {
			insts = append(insts[:i], insts[i+1:]...)
			changed = true
			i--
		}
	}
	b.Insts = insts
	return changed
}

func fuseOne(in *mir.MInstruction, rt mir.Reg, imm int32) bool {
	if in.NoDef || len(in.Operands) != 3 || in.Operands[2].Kind != mir.OReg || in.Operands[2].Reg != rt {
		return false
	}
	switch in.Op {
	case mir.MAddu:
		in.Op = mir.MAddiu
		in.Operands[2] = mir.ImmOp(imm)
		return true
	case mir.MSlt:
		in.Op = mir.MSlti
		in.Operands[2] = mir.ImmOp(imm)
		return true
	case mir.MSle:
		in.Op = mir.MSlti
		in.Operands[2] = mir.ImmOp(imm + 1)
		return true
	}
	return false
}

// fuseCompareBranch collapses `s{cc} rd, a, b` followed immediately by
// `bne rd, $zero, target` (lowerBr's standard conditional-branch
// shape, instr.go, itself followed by the unconditional else-branch)
// into a single fused conditional branch, eliminating the compare
// register entirely when it has no other use.
func fuseCompareBranch(b *mir.MBasicBlock, uses map[mir.Reg]int) bool {
	insts := b.Insts
	if len(insts) < 3 {
		return false
	}
	cmp := insts[len(insts)-3]
	br := insts[len(insts)-2]
	els := insts[len(insts)-1]
	if br.Op != mir.MBne || len(br.Operands) != 3 {
		return false
	}
	rd, ok := cmp.Def()
	if !ok || br.Operands[0].Kind != mir.OReg || br.Operands[0].Reg != rd {
		return false
	}
	if !isZeroOperand(br.Operands[1]) || uses[rd] != 1 {
		return false
	}
	fused, ok := fusedBranchOp(cmp.Op)
	if !ok {
		return false
	}
	target := br.Operands[2]
	newBr := &mir.MInstruction{Op: fused, NoDef: true, Operands: []mir.Operand{cmp.Operands[1], cmp.Operands[2], target}}
	b.Insts = append(insts[:len(insts)-3], newBr, els)
	return true
}

func fusedBranchOp(op mir.MOp) (mir.MOp, bool) {
	switch op {
	case mir.MSeq:
		return mir.MBeq, true
	case mir.MSne:
		return mir.MBne, true
	case mir.MSlt:
		return mir.MBlt, true
	case mir.MSgt:
		return mir.MBgt, true
	case mir.MSle:
		return mir.MBle, true
	case mir.MSge:
		return mir.MBge, true
	}
	return 0, false
}
