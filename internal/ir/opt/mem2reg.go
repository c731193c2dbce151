// Package opt implements the IR-level optimization pipeline of
// spec.md §4.3-§4.9: mem2reg, the constant/algebraic rewrite table,
// LVN/GVN, GCM, the inliner/partial evaluator, DCE, and the loop/
// localization group. Every pass follows the same contract: it takes
// a *ir.Function (or *ir.Module) and reports whether it changed
// anything, driving the outer fixpoint loop in pipeline.go
// (spec.md §5's single `Changed` flag).
package opt

import (
	"golang.org/x/exp/slices"

	"sysyc/internal/ir"
	"sysyc/internal/ir/analysis"
)

// Mem2Reg promotes scalar alloca/load/store traffic to phi-based SSA
// (spec.md §4.3). Array allocas are left untouched; array2var
// (localize.go) handles the subset of those that later become
// promotable.
func Mem2Reg(fn *ir.Function) bool {
	ir.RebuildCFG(fn)
	info := analysis.Build(fn)
	allocas := collectPromotable(fn)
	if len(allocas) == 0 {
		return false
	}

	defBlocks := map[*ir.Instruction]map[*ir.BasicBlock]bool{}
	for _, al := range allocas {
		defBlocks[al] = map[*ir.BasicBlock]bool{}
		for _, u := range al.UseList() {
			if u.User.Op == ir.OpStore && u.Index == 1 {
				defBlocks[al][u.User.Block] = true
			}
		}
	}

	phiOf := map[*ir.BasicBlock]map[*ir.Instruction]*ir.Instruction{}
	for _, al := range allocas {
		hasDef := map[*ir.BasicBlock]bool{}
		hasPhi := map[*ir.BasicBlock]bool{}
		var worklist []*ir.BasicBlock
		for b := range defBlocks[al] {
			hasDef[b] = true
			worklist = append(worklist, b)
		}
		// defBlocks[al] is a map; without sorting, the order the
		// dominance-frontier walk below discovers join blocks in (and so
		// the order phi nodes land in phiOf) would depend on Go's
		// randomized map iteration instead of the program's structure.
		slices.SortFunc(worklist, func(a, b *ir.BasicBlock) int {
			return info.Index(a) - info.Index(b)
		})
		for len(worklist) > 0 {
			b := worklist[len(worklist)-1]
			worklist = worklist[:len(worklist)-1]
			for _, d := range info.Frontier(b) {
				if hasPhi[d] {
					continue
				}
				hasPhi[d] = true
				phi := ir.NewPhi(ir.Int32)
				d.InsertBefore(0, phi)
				if phiOf[d] == nil {
					phiOf[d] = map[*ir.Instruction]*ir.Instruction{}
				}
				phiOf[d][al] = phi
				if !hasDef[d] {
					hasDef[d] = true
					worklist = append(worklist, d)
				}
			}
		}
	}

	allocaSet := map[*ir.Instruction]bool{}
	for _, al := range allocas {
		allocaSet[al] = true
	}

	var rename func(b *ir.BasicBlock, reach map[*ir.Instruction]ir.Value)
	rename = func(b *ir.BasicBlock, reach map[*ir.Instruction]ir.Value) {
		local := make(map[*ir.Instruction]ir.Value, len(reach))
		for k, v := range reach {
			local[k] = v
		}
		if pm := phiOf[b]; pm != nil {
			for al, phi := range pm {
				local[al] = phi
			}
		}
		for _, in := range append([]*ir.Instruction(nil), b.Insts...) {
			switch in.Op {
			case ir.OpLoad:
				if al, ok := in.Operand(0).(*ir.Instruction); ok && allocaSet[al] {
					v := local[al]
					if v == nil {
						v = ir.ConstZero
					}
					in.ReplaceAllUsesWith(v)
					b.RemoveInst(in)
				}
			case ir.OpStore:
				if al, ok := in.Operand(1).(*ir.Instruction); ok && allocaSet[al] {
					local[al] = in.Operand(0)
					b.RemoveInst(in)
				}
			}
		}
		for _, s := range b.Succs {
			if pm := phiOf[s]; pm != nil {
				for al, phi := range pm {
					v := local[al]
					if v == nil {
						v = ir.ConstZero
					}
					phi.AddIncoming(b, v)
				}
			}
		}
		for _, c := range info.Children(b) {
			rename(c, local)
		}
	}
	rename(fn.Entry(), map[*ir.Instruction]ir.Value{})

	for _, al := range allocas {
		al.Block.RemoveInst(al)
	}
	return true
}

// collectPromotable finds every scalar alloca whose only uses are
// load (as the address) or store (as the address, never as the
// stored value) — spec.md §4.3 step 1.
func collectPromotable(fn *ir.Function) []*ir.Instruction {
	var out []*ir.Instruction
	for _, b := range fn.Blocks {
		for _, in := range b.Insts {
			if in.Op != ir.OpAlloca {
				continue
			}
			if in.ValueType().Elem == nil || in.ValueType().Elem.Kind != ir.TInt32 {
				continue
			}
			ok := true
			for _, u := range in.UseList() {
				switch {
				case u.User.Op == ir.OpLoad && u.Index == 0:
				case u.User.Op == ir.OpStore && u.Index == 1:
				default:
					ok = false
				}
				if !ok {
					break
				}
			}
			if ok {
				out = append(out, in)
			}
		}
	}
	return out
}
