package regalloc

import "sysyc/internal/mir"

// EliminateFramePointer converts every $fp-relative memory operand
// (every local, spill slot, and stack-passed parameter lowering and
// spill rewriting produced, all addressed via $fp so their offsets
// would stay valid no matter how many spill slots got added along the
// way) into an equivalent $sp-relative one, now that Allocate has
// finished and mf.Frame.Size is final (spec.md §4.14): since $fp
// always equals the caller-visible $sp value from before this
// function's own prologue subtracted Frame.Size, address = $fp+off is
// the same byte as $sp+(off+Frame.Size). internal/asmprint never emits
// a physical frame pointer at all once this has run — no $fp<-$sp copy
// exists in this backend's prologue to delete, since $fp was always a
// purely notional base that only ever appeared as instruction operands.
func EliminateFramePointer(mf *mir.MFunction) {
	disp := int32(mf.Frame.Size)
	for _, in := range mf.AllInstructions() {
		for i := range in.Operands {
			o := &in.Operands[i]
			if o.Kind == mir.OReg && o.Reg.IsPhysical() && o.Reg.Num == mir.RegFp {
				o.Reg = mir.Phys(mir.RegSp)
				if j := i + 1; j < len(in.Operands) && in.Operands[j].Kind == mir.OImm {
					in.Operands[j].Imm += disp
				}
			}
		}
	}
}
