package build

import (
	"sysyc/internal/ast"
	"sysyc/internal/ir"
	"sysyc/internal/sema"
)

// fnBuilder holds the lowering state for a single function: the block
// currently being appended to, each local/parameter's address value,
// and the break/continue targets threaded through enclosing `for`
// loops (spec.md §4.1's "remembers break/continue entries in a stack").
type fnBuilder struct {
	b  *builder
	fn *ir.Function
	cur *ir.BasicBlock

	addr map[*sema.Symbol]ir.Value // scalar: alloca; array local/global: alloca/global pointer; array param: the param value itself (already decayed)

	breakTargets    []*ir.BasicBlock
	continueTargets []*ir.BasicBlock
}

func (b *builder) buildFunc(decl *ast.FuncDecl) {
	sig := b.res.Funcs[decl.Name]
	var retType ir.Type
	if decl.RetVoid {
		retType = ir.Void
	} else {
		retType = ir.Int32
	}

	params := make([]*ir.Param, len(decl.Params))
	for i, p := range decl.Params {
		params[i] = ir.NewParam(p.Name, paramIRType(sig.Params[i]))
	}

	fn := ir.NewFunction(decl.Name, retType, params)
	b.mod.AddFunc(fn)

	fb := &fnBuilder{b: b, fn: fn, addr: map[*sema.Symbol]ir.Value{}}
	entry := fn.NewBlock("entry")
	fb.cur = entry

	for i, p := range decl.Params {
		sym, _ := p.Sym.(*sema.Symbol)
		if sym == nil {
			continue
		}
		if sym.Type.Kind == sema.KArray {
			// Array parameters decay to a pointer; the incoming value
			// already is the address, there is nothing to copy into a
			// slot (spec.md §4.10 step 2 only applies to scalar args
			// that may be clobbered across calls — arrays are always
			// accessed through this same pointer).
			fb.addr[sym] = params[i]
			continue
		}
		al := fb.emit(ir.NewAlloca(ir.Int32))
		fb.emit(ir.NewStore(params[i], al))
		fb.addr[sym] = al
	}

	fb.lowerBlock(decl.Body)

	if fb.cur.Terminator() == nil {
		if decl.RetVoid {
			fb.emit(ir.NewRet(nil))
		} else {
			// Falling off the end of a non-void function: emit a
			// trailing `ret 0` (see check_func.go's blockAlwaysReturns
			// comment — not a diagnostic in this source language).
			fb.emit(ir.NewRet(ir.NewConst(0)))
		}
	}

	ir.RebuildCFG(fn)
}

// paramIRType mirrors irType but strips a decayed array parameter's
// unsized first dimension down to a flat pointer over the remaining
// fixed dimensions (spec.md §3's "array types carry all static
// dimensions" applies to the pointee, not to the erased dimension).
func paramIRType(t sema.Type) ir.Type {
	if t.Kind != sema.KArray {
		return ir.Int32
	}
	elem := ir.Int32
	dims := t.Dims
	for i := len(dims) - 1; i >= 1; i-- {
		elem = ir.ArrayOf(elem, dims[i])
	}
	return ir.PointerTo(elem)
}

func (fb *fnBuilder) emit(in *ir.Instruction) *ir.Instruction {
	return fb.cur.Append(in)
}

// newBlock allocates a block owned by this function without making it
// current.
func (fb *fnBuilder) newBlock(hint string) *ir.BasicBlock {
	return fb.fn.NewBlock(hint)
}

func (fb *fnBuilder) setCur(b *ir.BasicBlock) {
	fb.cur = b
}

func (fb *fnBuilder) terminated() bool {
	return fb.cur.Terminator() != nil
}

// symAddr resolves any variable's address uniformly: locals and
// params live in fb.addr, globals live in the module-wide table built
// once before any function (sema guarantees sym identity is stable
// between the two passes since both read the same *ast.File).
func (fb *fnBuilder) symAddr(sym *sema.Symbol) ir.Value {
	if sym.IsGlobal {
		if g, ok := fb.b.globals[sym.Name]; ok {
			return g
		}
	}
	return fb.addr[sym]
}
