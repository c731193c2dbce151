// Package build lowers a decorated AST (internal/ast + internal/sema)
// into SSA-with-alloca form (spec.md §4.1): locals live in stack slots
// materialized as alloca/load/store; internal/ir/opt's mem2reg pass
// later promotes scalars to registers. Grounded on the teacher's
// `internal/compiler/{compiler,stmt_compiler,hoisting_compiler}.go`:
// the same "walk the AST, emit into whatever the current block is"
// visitor shape, replayed over this repo's ir.Function/BasicBlock
// instead of the teacher's bytecode chunk.
package build

import (
	"sysyc/internal/ast"
	"sysyc/internal/ir"
	"sysyc/internal/sema"
)

// Build lowers file (already checked by sema.Check, res is its result)
// into a fresh Module. Callers must confirm !bag.Fatal() before calling.
func Build(file *ast.File, res *sema.Result) *ir.Module {
	b := &builder{res: res, mod: ir.NewModule()}
	for _, d := range file.Decls {
		if vd, ok := d.(*ast.VarDecl); ok {
			b.buildGlobal(vd)
		}
	}
	for _, d := range file.Decls {
		if fn, ok := d.(*ast.FuncDecl); ok {
			b.buildFunc(fn)
		}
	}
	return b.mod
}

type builder struct {
	res *sema.Result
	mod *ir.Module

	globals     map[string]*ir.Global
	strGlobals  map[*ir.StringConst]*ir.Global
	nextStrName int
}

// internStringGlobal materializes a deduplicated printf literal
// segment (spec.md §4.1) as a module-level byte-array Global so
// internal/asmprint can place it in `.data` like any other constant.
func (b *builder) internStringGlobal(sc *ir.StringConst) *ir.Global {
	if b.strGlobals == nil {
		b.strGlobals = map[*ir.StringConst]*ir.Global{}
	}
	if g, ok := b.strGlobals[sc]; ok {
		return g
	}
	init := make([]int32, len(sc.Data))
	for i, by := range sc.Data {
		init[i] = int32(by)
	}
	name := ".str." + itoaSmall(b.nextStrName)
	b.nextStrName++
	g := ir.NewGlobal(name, ir.ArrayOf(ir.Int32, len(init)), true, init)
	g.StrData = sc.Data
	b.mod.AddGlobal(g)
	b.strGlobals[sc] = g
	return g
}

func itoaSmall(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func (b *builder) buildGlobal(decl *ast.VarDecl) {
	if b.globals == nil {
		b.globals = map[string]*ir.Global{}
	}
	for i, name := range decl.Names {
		sym, _ := decl.Syms[i].(*sema.Symbol)
		if sym == nil {
			continue
		}
		typ := irType(sym.Type)
		var init []int32
		if sym.Type.Kind == sema.KArray {
			init = sym.ConstArray
		} else {
			init = []int32{sym.ConstVal}
		}
		g := ir.NewGlobal(name, typ, sym.Const, init)
		b.mod.AddGlobal(g)
		b.globals[name] = g
	}
}

func irType(t sema.Type) ir.Type {
	if t.Kind == sema.KArray {
		// Dims[0] == -1 marks an unsized first dimension (array
		// parameter decay); callers needing an element type for GEP
		// purposes use irElemType instead.
		elem := ir.Int32
		dims := t.Dims
		for i := len(dims) - 1; i >= 0; i-- {
			n := dims[i]
			if n < 0 {
				n = 0
			}
			elem = ir.ArrayOf(elem, n)
		}
		return elem
	}
	if t.Kind == sema.KVoid {
		return ir.Void
	}
	return ir.Int32
}
