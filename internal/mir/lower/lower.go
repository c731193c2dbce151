// Package lower turns an optimized internal/ir.Module into the
// virtual-register internal/mir.MModule (spec.md §4.10). Grounded on
// the deleted teacher package `vmregister/bytecode.go`'s one-opcode-
// at-a-time emission loop, re-targeted from bytecode operands to MIPS
// registers: every SSA value gets a fresh virtual register up front
// (mirroring the bytecode VM's slot assignment), then each
// instruction lowers to the MIPS sequence spec.md §4.10 names for its
// opcode. Register allocation, peepholing and frame-pointer
// elimination happen in later passes; this package only has to get
// the sequence of operations right, not pick physical registers.
package lower

import (
	"sysyc/internal/ir"
	"sysyc/internal/ir/analysis"
	"sysyc/internal/mir"
)

// Module lowers every user-defined function and global in mod.
func Module(mod *ir.Module) *mir.MModule {
	mm := &mir.MModule{}
	for _, g := range mod.Globals {
		mm.Globals = append(mm.Globals, lowerGlobal(g))
	}
	for _, sc := range mod.Strings {
		mm.Globals = append(mm.Globals, &mir.MGlobal{
			Name:    stringSymbol(sc),
			IsAscii: true,
			Bytes:   sc.Data,
		})
	}
	fnOf := map[*ir.Function]*mir.MFunction{}
	for _, fn := range mod.Funcs {
		if fn.Intrinsic {
			continue
		}
		fnOf[fn] = mir.NewMFunction(fn.Name, len(fn.Params), fn.RetType.Kind == ir.TVoid)
	}
	for _, fn := range mod.Funcs {
		if fn.Intrinsic {
			continue
		}
		mf := fnOf[fn]
		lowerFunc(fn, mf, fnOf, mm)
		mm.Funcs = append(mm.Funcs, mf)
	}
	return mm
}

func lowerGlobal(g *ir.Global) *mir.MGlobal {
	mg := &mir.MGlobal{Name: g.Name}
	words := g.ElemType().Size() / 4
	mg.Words = make([]int32, words)
	copy(mg.Words, g.Init)
	return mg
}

func stringSymbol(sc *ir.StringConst) string {
	return "str." + itoa(sc.ValueID())
}

// ctx holds the per-function lowering state: the pre-assigned virtual
// register for every SSA-valued instruction/param (resolved before any
// instruction body is emitted, so a phi's incoming values are always
// already known regardless of block visitation order), the frame slot
// for every alloca, and the MBasicBlock twin of every ir.BasicBlock.
type ctx struct {
	mod    *ir.Module
	fn     *ir.Function
	mf     *mir.MFunction
	fnOf   map[*ir.Function]*mir.MFunction
	blocks map[*ir.BasicBlock]*mir.MBasicBlock
	vregs  map[ir.Value]mir.Reg
	slots  map[*ir.Instruction]int32 // alloca -> $fp-relative offset (negative, grows down)
	info   *analysis.Info
}

func lowerFunc(fn *ir.Function, mf *mir.MFunction, fnOf map[*ir.Function]*mir.MFunction, mm *mir.MModule) {
	c := &ctx{
		mod:    nil,
		fn:     fn,
		mf:     mf,
		fnOf:   fnOf,
		blocks: map[*ir.BasicBlock]*mir.MBasicBlock{},
		vregs:  map[ir.Value]mir.Reg{},
		slots:  map[*ir.Instruction]int32{},
	}
	ir.RebuildCFG(fn)
	c.info = analysis.Build(fn)

	for _, b := range fn.Blocks {
		mb := mf.NewBlock(b.Name)
		c.blocks[b] = mb
		if l := c.info.LoopFor(b); l != nil {
			mb.LoopDepth = l.Depth
		}
	}

	for _, p := range fn.Params {
		c.vregs[p] = mf.NewVReg()
	}
	var nextSlot int32
	for _, b := range fn.Blocks {
		for _, in := range b.Insts {
			if in.Op == ir.OpAlloca {
				nextSlot -= int32(in.ValueType().Elem.Size())
				c.slots[in] = nextSlot
				continue
			}
			if !in.NoDef {
				c.vregs[in] = mf.NewVReg()
			}
		}
	}
	c.mf.Frame.LocalsSize = int(-nextSlot)
	c.mf.Frame.Size = c.mf.Frame.LocalsSize
	c.mf.Frame.ArgSlots = maxOutgoingArgSlots(fn)

	entry := c.blocks[fn.Entry()]
	emitParamProlog(c, entry)

	for _, b := range fn.Blocks {
		mb := c.blocks[b]
		for _, in := range b.Insts {
			lowerInst(c, mb, in)
		}
	}
}

// emitParamProlog copies the first four parameters out of $a0-$a3 (and
// the rest off the caller's outgoing-argument stack slots) into their
// assigned virtual registers, so the rest of the function can treat
// every parameter like any other SSA value.
func emitParamProlog(c *ctx, entry *mir.MBasicBlock) {
	for i, p := range c.fn.Params {
		dst := c.vregs[p]
		if i < len(mir.ArgRegs) {
			entry.Append(&mir.MInstruction{Op: mir.MMove, Operands: []mir.Operand{
				mir.RegOp(dst), mir.RegOp(mir.Phys(mir.ArgRegs[i])),
			}})
		} else {
			// The caller writes its 5th-and-beyond outgoing argument words
			// at $sp+0, $sp+4, ... right before the jal (lowerCall,
			// instr.go); that $sp is this function's own $fp by the time
			// the callee's prologue runs, so the same offsets apply here.
			off := int32((i - len(mir.ArgRegs)) * 4)
			entry.Append(&mir.MInstruction{Op: mir.MLw, Operands: []mir.Operand{
				mir.RegOp(dst), mir.RegOp(mir.Phys(mir.RegFp)), mir.ImmOp(off),
			}})
		}
	}
}

// maxOutgoingArgSlots returns the largest number of stack-passed
// arguments (beyond the first four, which travel in $a0-$a3) any call
// site in fn makes, so the frame reserves enough room at its lowest
// addresses for lowerCall's sp-relative argument stores.
func maxOutgoingArgSlots(fn *ir.Function) int {
	max := 0
	for _, in := range fn.AllInstructions() {
		if in.Op != ir.OpCall || in.Callee == nil {
			continue
		}
		if n := in.NumOperands() - 4; n > max {
			max = n
		}
	}
	return max
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
