package build

import (
	"sysyc/internal/ast"
	"sysyc/internal/ir"
	"sysyc/internal/sema"
)

func (fb *fnBuilder) lowerBlock(b *ast.Block) {
	for _, s := range b.Stmts {
		if fb.terminated() {
			// Dead code after a return/break/continue inside this
			// block: later blocks would be unreachable; DCE cleans
			// these up, but there is nothing left to append into.
			return
		}
		fb.lowerStmt(s)
	}
}

func (fb *fnBuilder) lowerStmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.VarDecl:
		fb.lowerLocalVarDecl(n)
	case *ast.ExprStmt:
		if n.X != nil {
			fb.lowerExpr(n.X)
		}
	case *ast.Assign:
		fb.lowerAssign(n)
	case *ast.Block:
		fb.lowerBlock(n)
	case *ast.If:
		fb.lowerIf(n)
	case *ast.For:
		fb.lowerFor(n)
	case *ast.Break:
		if len(fb.breakTargets) > 0 {
			fb.emit(ir.NewBr(fb.breakTargets[len(fb.breakTargets)-1]))
		}
	case *ast.Continue:
		if len(fb.continueTargets) > 0 {
			fb.emit(ir.NewBr(fb.continueTargets[len(fb.continueTargets)-1]))
		}
	case *ast.Return:
		fb.lowerReturn(n)
	}
}

func (fb *fnBuilder) lowerLocalVarDecl(decl *ast.VarDecl) {
	for i, name := range decl.Names {
		sym, _ := decl.Syms[i].(*sema.Symbol)
		if sym == nil {
			continue
		}
		_ = name
		if sym.Type.Kind == sema.KArray {
			al := fb.emit(ir.NewAlloca(irType(sym.Type)))
			fb.addr[sym] = al
			if decl.Const {
				fb.storeConstArray(al, sym.Type, sym.ConstArray)
			} else if decl.Inits[i] != nil {
				if ai, ok := decl.Inits[i].(*ast.ArrayInit); ok {
					// A brace initializer shorter than the array zero-fills
					// the remaining elements (matching the source
					// language's C-derived initializer semantics).
					fb.storeConstArray(al, sym.Type, make([]int32, sym.Type.Size()))
					fb.storeArrayInit(al, sym.Type, ai)
				}
			}
			continue
		}
		al := fb.emit(ir.NewAlloca(ir.Int32))
		fb.addr[sym] = al
		if decl.Const {
			fb.emit(ir.NewStore(ir.NewConst(sym.ConstVal), al))
		} else if decl.Inits[i] != nil {
			v := fb.lowerExpr(decl.Inits[i])
			fb.emit(ir.NewStore(v, al))
		}
	}
}

// storeConstArray emits one store per already-folded element (used
// for `const` locals, whose whole initializer sema already flattened
// into sym.ConstArray).
func (fb *fnBuilder) storeConstArray(addr ir.Value, t sema.Type, vals []int32) {
	// Stack slots are not pre-zeroed, so every element including zeros
	// needs an explicit store.
	for i, v := range vals {
		elemAddr := fb.constIndexAddr(addr, t, i)
		fb.emit(ir.NewStore(ir.NewConst(v), elemAddr))
	}
}

// storeArrayInit walks a (non-const) local array's brace initializer,
// lowering each element expression in place, matching
// sema.flattenArrayInit's nesting traversal but emitting stores
// instead of folding.
func (fb *fnBuilder) storeArrayInit(addr ir.Value, t sema.Type, ai *ast.ArrayInit) {
	fb.storeArrayInitAt(addr, t, ai, 0)
}

func (fb *fnBuilder) storeArrayInitAt(addr ir.Value, t sema.Type, ai *ast.ArrayInit, offset int) int {
	elem := t.Elem()
	pos := offset
	for _, e := range ai.Elems {
		if nested, ok := e.(*ast.ArrayInit); ok {
			pos = fb.storeArrayInitAt(addr, elem, nested, pos)
			continue
		}
		v := fb.lowerExpr(e)
		elemAddr := fb.constIndexAddr(addr, t, pos)
		fb.emit(ir.NewStore(v, elemAddr))
		pos++
	}
	return pos
}

// constIndexAddr addresses the flat element at row-major index idx
// within an array whose alloca/global address is addr, decomposing
// idx back into a per-dimension index list for getelementptr.
func (fb *fnBuilder) constIndexAddr(addr ir.Value, t sema.Type, idx int) ir.Value {
	dims := t.Dims
	coords := make([]int, len(dims))
	rem := idx
	for i := len(dims) - 1; i >= 0; i-- {
		if dims[i] == 0 {
			coords[i] = 0
			continue
		}
		coords[i] = rem % dims[i]
		rem /= dims[i]
	}
	indices := make([]ir.Value, 0, len(dims)+1)
	indices = append(indices, ir.ConstZero)
	for _, c := range coords {
		indices = append(indices, ir.NewConst(int32(c)))
	}
	return fb.emit(ir.NewGetElementPtr(addr, indices, "init"))
}

func (fb *fnBuilder) lowerAssign(n *ast.Assign) {
	v := fb.lowerExpr(n.Value)
	addr := fb.lowerLValAddr(n.Target)
	fb.emit(ir.NewStore(v, addr))
}

func (fb *fnBuilder) lowerIf(n *ast.If) {
	thenB := fb.newBlock("if.then")
	var elseB *ir.BasicBlock
	endB := fb.newBlock("if.end")
	if n.Else != nil {
		elseB = fb.newBlock("if.else")
	} else {
		elseB = endB
	}

	fb.lowerCondBr(n.Cond, thenB, elseB)

	fb.setCur(thenB)
	fb.lowerStmt(n.Then)
	if !fb.terminated() {
		fb.emit(ir.NewBr(endB))
	}

	if n.Else != nil {
		fb.setCur(elseB)
		fb.lowerStmt(n.Else)
		if !fb.terminated() {
			fb.emit(ir.NewBr(endB))
		}
	}

	fb.setCur(endB)
}

func (fb *fnBuilder) lowerFor(n *ast.For) {
	condB := fb.newBlock("for.cond")
	bodyB := fb.newBlock("for.body")
	stepB := fb.newBlock("for.step")
	endB := fb.newBlock("for.end")

	if n.Init != nil {
		fb.lowerStmt(n.Init)
	}
	fb.emit(ir.NewBr(condB))

	fb.setCur(condB)
	if n.Cond != nil {
		fb.lowerCondBr(n.Cond, bodyB, endB)
	} else {
		fb.emit(ir.NewBr(bodyB))
	}

	fb.breakTargets = append(fb.breakTargets, endB)
	fb.continueTargets = append(fb.continueTargets, stepB)

	fb.setCur(bodyB)
	fb.lowerStmt(n.Body)
	if !fb.terminated() {
		fb.emit(ir.NewBr(stepB))
	}

	fb.breakTargets = fb.breakTargets[:len(fb.breakTargets)-1]
	fb.continueTargets = fb.continueTargets[:len(fb.continueTargets)-1]

	fb.setCur(stepB)
	if n.Step != nil {
		fb.lowerStmt(n.Step)
	}
	if !fb.terminated() {
		fb.emit(ir.NewBr(condB))
	}

	fb.setCur(endB)
}

func (fb *fnBuilder) lowerReturn(n *ast.Return) {
	if n.Value == nil {
		fb.emit(ir.NewRet(nil))
		return
	}
	v := fb.lowerExpr(n.Value)
	fb.emit(ir.NewRet(v))
}
