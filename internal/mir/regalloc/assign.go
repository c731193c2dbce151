package regalloc

import "sysyc/internal/mir"

// applyColors rewrites every virtual-register operand to its assigned
// physical register, resolving coalesced aliases through st.alias
// (spec.md §4.13 step 5's closing rewrite).
func applyColors(mf *mir.MFunction, colors map[int]int, alias map[int]int) {
	resolve := func(n int) int {
		for {
			if p, ok := alias[n]; ok {
				n = p
				continue
			}
			return n
		}
	}
	for _, in := range mf.AllInstructions() {
		for i := range in.Operands {
			o := &in.Operands[i]
			if o.Kind == mir.OReg && o.Reg.IsVirtual() {
				if c, ok := colors[resolve(o.Reg.Num)]; ok {
					o.Reg = mir.Phys(c)
				}
			}
		}
	}
}

// markCalleeSaved records which physical registers this function
// actually assigned from the callee-saved half of the pool, so
// internal/asmprint's prologue/epilogue knows what to save and restore
// (spec.md §4.13's closing paragraph), and finalizes Frame.Size with
// room for those saves plus $ra (if the function makes any call at
// all). The save area sits just above the outgoing-argument slots,
// closest to $sp: internal/asmprint derives each save's fixed offset
// straight from ArgSlots/SavedRA/CalleeSaved, the same way it derives
// every other region of the frame, so nothing here needs its own
// offset field.
func markCalleeSaved(mf *mir.MFunction, colors map[int]int) {
	seen := map[int]bool{}
	var list []mir.Reg
	for _, c := range colors {
		if mir.IsCalleeSaved(c) && !seen[c] {
			seen[c] = true
			list = append(list, mir.Phys(c))
		}
	}
	mf.Frame.CalleeSaved = list
	mf.Frame.SavedRA = makesCall(mf)
	saveArea := len(list) * 4
	if mf.Frame.SavedRA {
		saveArea += 4
	}
	mf.Frame.Size = mf.Frame.LocalsSize + mf.Frame.SpillSlots*4 + mf.Frame.ArgSlots*4 + saveArea
}

func makesCall(mf *mir.MFunction) bool {
	for _, in := range mf.AllInstructions() {
		if in.Op == mir.MJal {
			return true
		}
	}
	return false
}

// rematTemplate describes a spilled register whose single definition
// is a pure li/la: instead of spilling it to memory, rewriteSpills
// re-issues that same instruction at every use site (spec.md §4.13
// step 6's rematerialization note), which is always at least as cheap
// as a reload and never needs a store at all.
type rematTemplate struct {
	op       mir.MOp
	operand  mir.Operand // the li/la instruction's second operand (imm or sym)
	eligible bool
}

func findRemat(mf *mir.MFunction, n int) rematTemplate {
	var defs []*mir.MInstruction
	for _, in := range mf.AllInstructions() {
		if d, ok := in.Def(); ok && d.IsVirtual() && d.Num == n {
			defs = append(defs, in)
		}
	}
	if len(defs) != 1 {
		return rematTemplate{}
	}
	in := defs[0]
	if (in.Op != mir.MLi && in.Op != mir.MLa) || len(in.Operands) != 2 {
		return rematTemplate{}
	}
	return rematTemplate{op: in.Op, operand: in.Operands[1], eligible: true}
}

// rewriteSpills gives each actually-spilled virtual register its own
// $fp-relative stack slot (or, when rematerializable, no slot at all)
// and threads reload-before-use / store-after-def code through every
// block that touches it (spec.md §4.13 step 6). Each rewritten
// use/def gets a brand new virtual register — the next Allocate round
// treats the short reload-to-use or def-to-store interval as an
// ordinary short live range, which is exactly what makes a second
// round of coloring succeed.
func rewriteSpills(mf *mir.MFunction, spilled []int, ranges map[int]*LiveRange) {
	for _, n := range spilled {
		remat := findRemat(mf, n)
		var off int32
		if !remat.eligible {
			mf.Frame.SpillSlots++
			off = -int32(mf.Frame.LocalsSize) - int32(mf.Frame.SpillSlots)*4
		}
		rewriteOne(mf, n, off, remat)
	}
}

func rewriteOne(mf *mir.MFunction, n int, off int32, remat rematTemplate) {
	for _, b := range mf.Blocks {
		var out []*mir.MInstruction
		for _, insn := range b.Insts {
			var before []*mir.MInstruction
			start := 0
			if !insn.NoDef {
				start = 1
			}
			for i := start; i < len(insn.Operands); i++ {
				o := insn.Operands[i]
				if o.Kind != mir.OReg || !o.Reg.IsVirtual() || o.Reg.Num != n {
					continue
				}
				fresh := mf.NewVReg()
				if remat.eligible {
					before = append(before, &mir.MInstruction{Op: remat.op, Operands: []mir.Operand{mir.RegOp(fresh), remat.operand}})
				} else {
					before = append(before, &mir.MInstruction{Op: mir.MLw, Operands: []mir.Operand{
						mir.RegOp(fresh), mir.RegOp(mir.Phys(mir.RegFp)), mir.ImmOp(off),
					}})
				}
				insn.Operands[i] = mir.RegOp(fresh)
			}
			var after []*mir.MInstruction
			skip := false
			if d, ok := insn.Def(); ok && d.IsVirtual() && d.Num == n {
				if remat.eligible {
					skip = true
				} else {
					fresh := mf.NewVReg()
					insn.Operands[0] = mir.RegOp(fresh)
					after = append(after, &mir.MInstruction{Op: mir.MSw, NoDef: true, Operands: []mir.Operand{
						mir.RegOp(fresh), mir.RegOp(mir.Phys(mir.RegFp)), mir.ImmOp(off),
					}})
				}
			}
			out = append(out, before...)
			if !skip {
				out = append(out, insn)
			}
			out = append(out, after...)
		}
		b.Insts = out
	}
}
