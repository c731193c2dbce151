package opt

import "sysyc/internal/ir"

// LocalizeGlobals rewrites every load/store of a scalar global that is
// only ever touched by main into a local alloca in main's entry block
// (spec.md §4.9's global-variable localization group), seeded from the
// global's initial value. This exposes the traffic to mem2reg/LVN/GCM,
// which never look across function boundaries. Globals referenced by
// any other function, and array globals, are left alone.
func LocalizeGlobals(mod *ir.Module) bool {
	changed := false
	for _, g := range mod.Globals {
		if g.ElemType().Kind != ir.TInt32 {
			continue
		}
		fn, ok := singleUserFunction(g, mod)
		if !ok || fn == nil || fn.Name != "main" {
			continue
		}
		localizeOne(fn, g)
		changed = true
	}
	return changed
}

// singleUserFunction returns the one function whose instructions use
// g directly as an operand, or ok=false if zero or more than one
// function does.
func singleUserFunction(g *ir.Global, mod *ir.Module) (*ir.Function, bool) {
	var owner *ir.Function
	for _, u := range g.UseList() {
		fn := u.User.Block.Func
		if owner == nil {
			owner = fn
		} else if owner != fn {
			return nil, false
		}
	}
	return owner, owner != nil
}

func localizeOne(fn *ir.Function, g *ir.Global) {
	entry := fn.Entry()
	al := ir.NewAlloca(ir.Int32)
	entry.InsertBefore(0, al)
	init := int32(0)
	if len(g.Init) > 0 {
		init = g.Init[0]
	}
	store := ir.NewStore(ir.NewConst(init), al)
	entry.InsertBefore(1, store)
	for _, u := range append([]*ir.Use(nil), g.UseList()...) {
		u.Set(al)
	}
}

// Array2Var promotes a local array alloca to a flat run of scalar
// allocas when every access into it uses a compile-time-constant index
// (spec.md §4.9's array2var): `a[2]` becomes its own scalar slot,
// letting mem2reg then fully eliminate it the same way it would a
// plain int local, instead of leaving getelementptr/load/store traffic
// that GVN can only partially simplify.
func Array2Var(fn *ir.Function) bool {
	changed := false
	for _, b := range fn.Blocks {
		for _, al := range append([]*ir.Instruction(nil), b.Insts...) {
			if al.Op != ir.OpAlloca || al.ValueType().Elem.Kind != ir.TArray {
				continue
			}
			n := al.ValueType().Elem.Size() / 4
			if n == 0 || n > array2varLimit {
				continue
			}
			geps, ok := allConstGEPs(al)
			if !ok {
				continue
			}
			scalars := make([]*ir.Instruction, n)
			for i := range scalars {
				scalars[i] = ir.NewAlloca(ir.Int32)
				b.InsertBefore(indexOf(b, al), scalars[i])
			}
			for gep, idx := range geps {
				gep.ReplaceAllUsesWith(scalars[idx])
				gep.Block.RemoveInst(gep)
			}
			b.RemoveInst(al)
			changed = true
		}
	}
	return changed
}

// array2varLimit bounds the element count eligible for scalarization;
// above it the alloca stays addressed through getelementptr.
const array2varLimit = 64

// allConstGEPs reports whether every use of al is a getelementptr whose
// index chain folds to a single compile-time-constant flat element
// offset, returning the per-GEP offset when so.
func allConstGEPs(al *ir.Instruction) (map[*ir.Instruction]int, bool) {
	out := map[*ir.Instruction]int{}
	for _, u := range al.UseList() {
		gep := u.User
		if gep.Op != ir.OpGetElementPtr {
			return nil, false
		}
		idx, ok := flatConstIndex(gep, al.ValueType().Elem)
		if !ok {
			return nil, false
		}
		out[gep] = idx
	}
	return out, true
}

// flatConstIndex decomposes a getelementptr's index chain into a
// single flat element offset, matching the [0, c0, c1, ...] shape
// internal/ir/build's constIndexAddr (stmt.go) always produces for a
// direct array alloca: operand 0 is the alloca itself, operand 1 steps
// through the alloca's own pointer (must be the constant 0) and
// operands 2..k+1 are in-range coordinates into nested TArray
// dimensions, most-significant first. The GEP's own uses must all be
// a load from it or a store to it, so a decayed address never escapes.
func flatConstIndex(gep *ir.Instruction, arrType ir.Type) (int, bool) {
	var dims []int
	for t := arrType; t.Kind == ir.TArray; t = *t.Elem {
		dims = append(dims, t.Len)
	}
	if gep.NumOperands() != len(dims)+2 {
		return 0, false
	}
	zero, ok := gep.Operand(1).(*ir.Const)
	if !ok || zero.Val != 0 {
		return 0, false
	}
	offset := 0
	for i, d := range dims {
		c, ok := gep.Operand(i + 2).(*ir.Const)
		if !ok || c.Val < 0 || int(c.Val) >= d {
			return 0, false
		}
		offset = offset*d + int(c.Val)
	}
	for _, u := range gep.UseList() {
		if u.User.Op != ir.OpLoad && (u.User.Op != ir.OpStore || u.Index != 1) {
			return 0, false
		}
	}
	return offset, true
}
