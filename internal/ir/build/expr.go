package build

import (
	"sysyc/internal/ast"
	"sysyc/internal/ir"
	"sysyc/internal/sema"
	"sysyc/internal/token"
)

// lowerExpr emits whatever instructions are needed to compute e and
// returns its value. Compile-time-computable expressions are folded
// directly into an ir.Const rather than emitted (spec.md §4.1).
func (fb *fnBuilder) lowerExpr(e ast.Expr) ir.Value {
	if v, ok := evalConst(e); ok {
		return ir.NewConst(v)
	}
	switch n := e.(type) {
	case *ast.IntLit:
		return ir.NewConst(n.Value)
	case *ast.Ident:
		sym, _ := n.Sym.(*sema.Symbol)
		if sym == nil {
			return ir.ConstZero
		}
		if sym.Const && sym.Type.Kind == sema.KInt {
			return ir.NewConst(sym.ConstVal)
		}
		addr := fb.symAddr(sym)
		if sym.Type.Kind == sema.KArray {
			// Bare array reference (e.g. passed as a call argument):
			// decay to a pointer to its first element/row.
			return fb.decayArray(addr, sym)
		}
		return fb.emit(ir.NewLoad(addr))
	case *ast.Index:
		addr := fb.lowerLValAddr(n)
		return fb.emit(ir.NewLoad(addr))
	case *ast.Unary:
		return fb.lowerUnary(n)
	case *ast.Binary:
		return fb.lowerBinary(n)
	case *ast.Call:
		return fb.lowerCall(n)
	}
	return ir.ConstZero
}

// evalConst folds e if every identifier it touches resolves (via the
// Sym decoration sema.Check already attached) to a const int symbol or
// const array element. This is the same fold sema.Checker.ConstEval
// performs during checking, re-expressed against the decorated AST
// directly instead of a live scope chain, since ir/build only has the
// AST and its decorations to work with.
func evalConst(e ast.Expr) (int32, bool) {
	switch n := e.(type) {
	case *ast.IntLit:
		return n.Value, true
	case *ast.Ident:
		sym, ok := n.Sym.(*sema.Symbol)
		if !ok || !sym.Const || sym.Type.Kind != sema.KInt {
			return 0, false
		}
		return sym.ConstVal, true
	case *ast.Index:
		base, ok := n.Base.(*ast.Ident)
		if !ok {
			return 0, false
		}
		sym, ok := base.Sym.(*sema.Symbol)
		if !ok || !sym.Const || sym.Type.Kind != sema.KArray {
			return 0, false
		}
		idx := 0
		for i, ixExpr := range n.Indices {
			v, ok := evalConst(ixExpr)
			if !ok {
				return 0, false
			}
			stride := 1
			for _, d := range sym.Type.Dims[i+1:] {
				stride *= d
			}
			idx += int(v) * stride
		}
		if idx < 0 || idx >= len(sym.ConstArray) {
			return 0, false
		}
		return sym.ConstArray[idx], true
	case *ast.Unary:
		v, ok := evalConst(n.Operand)
		if !ok {
			return 0, false
		}
		switch n.Op {
		case token.Minus:
			return -v, true
		case token.Plus:
			return v, true
		case token.Not:
			return boolInt(v == 0), true
		}
		return 0, false
	case *ast.Binary:
		l, ok := evalConst(n.Left)
		if !ok {
			return 0, false
		}
		r, ok := evalConst(n.Right)
		if !ok {
			return 0, false
		}
		return foldBinaryConst(n.Op, l, r)
	}
	return 0, false
}

func foldBinaryConst(op token.Kind, l, r int32) (int32, bool) {
	switch op {
	case token.Plus:
		return l + r, true
	case token.Minus:
		return l - r, true
	case token.Star:
		return l * r, true
	case token.Slash:
		if r == 0 {
			return 0, false
		}
		return l / r, true
	case token.Percent:
		if r == 0 {
			return 0, false
		}
		return l % r, true
	case token.Lt:
		return boolInt(l < r), true
	case token.Gt:
		return boolInt(l > r), true
	case token.Le:
		return boolInt(l <= r), true
	case token.Ge:
		return boolInt(l >= r), true
	case token.Eq:
		return boolInt(l == r), true
	case token.Ne:
		return boolInt(l != r), true
	case token.AndAnd:
		return boolInt(l != 0 && r != 0), true
	case token.OrOr:
		return boolInt(l != 0 || r != 0), true
	}
	return 0, false
}

func (fb *fnBuilder) lowerUnary(n *ast.Unary) ir.Value {
	v := fb.lowerExpr(n.Operand)
	switch n.Op {
	case token.Minus:
		return fb.emit(ir.NewBinOp(ir.OpSub, ir.ConstZero, v))
	case token.Plus:
		return v
	case token.Not:
		cmp := fb.emit(ir.NewIcmp(ir.CondEq, v, ir.ConstZero))
		return fb.emit(ir.NewZext(cmp))
	}
	return v
}

func (fb *fnBuilder) lowerBinary(n *ast.Binary) ir.Value {
	switch n.Op {
	case token.AndAnd:
		return fb.lowerShortCircuit(n, true)
	case token.OrOr:
		return fb.lowerShortCircuit(n, false)
	}
	lv := fb.lowerExpr(n.Left)
	rv := fb.lowerExpr(n.Right)
	switch n.Op {
	case token.Plus:
		return fb.emit(ir.NewBinOp(ir.OpAdd, lv, rv))
	case token.Minus:
		return fb.emit(ir.NewBinOp(ir.OpSub, lv, rv))
	case token.Star:
		return fb.emit(ir.NewBinOp(ir.OpMul, lv, rv))
	case token.Slash:
		return fb.emit(ir.NewBinOp(ir.OpSdiv, lv, rv))
	case token.Percent:
		return fb.emit(ir.NewBinOp(ir.OpSrem, lv, rv))
	case token.Lt:
		return fb.asInt(fb.emit(ir.NewIcmp(ir.CondSlt, lv, rv)))
	case token.Gt:
		return fb.asInt(fb.emit(ir.NewIcmp(ir.CondSgt, lv, rv)))
	case token.Le:
		return fb.asInt(fb.emit(ir.NewIcmp(ir.CondSle, lv, rv)))
	case token.Ge:
		return fb.asInt(fb.emit(ir.NewIcmp(ir.CondSge, lv, rv)))
	case token.Eq:
		return fb.asInt(fb.emit(ir.NewIcmp(ir.CondEq, lv, rv)))
	case token.Ne:
		return fb.asInt(fb.emit(ir.NewIcmp(ir.CondNe, lv, rv)))
	}
	return lv
}

// asInt widens an icmp's i1-shaped result to the i32 spec.md's type
// system uses for every surfaced value (SysY has no boolean type).
func (fb *fnBuilder) asInt(cmp *ir.Instruction) ir.Value {
	return fb.emit(ir.NewZext(cmp))
}

// lowerShortCircuit evaluates `left && right` / `left || right`
// producing an i32 0/1 result, materializing the boolean via blocks
// rather than arithmetic so later passes see real control flow
// (spec.md §4.1's short-circuit driver; used here in expression
// context, and directly as a branch condition in lowerCondBr).
func (fb *fnBuilder) lowerShortCircuit(n *ast.Binary, isAnd bool) ir.Value {
	rhsBlock := fb.newBlock("sc.rhs")
	joinBlock := fb.newBlock("sc.join")

	lv := fb.lowerExpr(n.Left)
	lbool := fb.asInt(fb.emit(ir.NewIcmp(ir.CondNe, lv, ir.ConstZero)))
	lhsEndBlock := fb.cur
	if isAnd {
		fb.emit(ir.NewCondBr(lbool, rhsBlock, joinBlock))
	} else {
		fb.emit(ir.NewCondBr(lbool, joinBlock, rhsBlock))
	}

	fb.setCur(rhsBlock)
	rv := fb.lowerExpr(n.Right)
	rbool := fb.asInt(fb.emit(ir.NewIcmp(ir.CondNe, rv, ir.ConstZero)))
	rhsEndBlock := fb.cur
	fb.emit(ir.NewBr(joinBlock))

	fb.setCur(joinBlock)
	phi := ir.NewPhi(ir.Int32)
	shortVal := ir.NewConst(boolInt(!isAnd))
	phi.AddIncoming(lhsEndBlock, shortVal)
	phi.AddIncoming(rhsEndBlock, rbool)
	return fb.emit(phi)
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// lowerCondBr evaluates cond for control-flow purposes (if/for),
// branching directly to thenB/elseB without materializing an i32
// boolean when cond is itself && / || (spec.md §4.1: "short-circuit
// logical operators emit conditional branches that read these
// thread-local targets rather than materializing boolean values
// where possible").
func (fb *fnBuilder) lowerCondBr(cond ast.Expr, thenB, elseB *ir.BasicBlock) {
	if bin, ok := cond.(*ast.Binary); ok {
		switch bin.Op {
		case token.AndAnd:
			mid := fb.newBlock("and.rhs")
			fb.lowerCondBr(bin.Left, mid, elseB)
			fb.setCur(mid)
			fb.lowerCondBr(bin.Right, thenB, elseB)
			return
		case token.OrOr:
			mid := fb.newBlock("or.rhs")
			fb.lowerCondBr(bin.Left, thenB, mid)
			fb.setCur(mid)
			fb.lowerCondBr(bin.Right, thenB, elseB)
			return
		}
	}
	if un, ok := cond.(*ast.Unary); ok && un.Op == token.Not {
		fb.lowerCondBr(un.Operand, elseB, thenB)
		return
	}
	v := fb.lowerExpr(cond)
	cmp := fb.emit(ir.NewIcmp(ir.CondNe, v, ir.ConstZero))
	fb.emit(ir.NewCondBr(cmp, thenB, elseB))
}

func (fb *fnBuilder) lowerCall(n *ast.Call) ir.Value {
	if n.Callee == "printf" {
		return fb.lowerPrintf(n)
	}
	args := make([]ir.Value, len(n.Args))
	for i, a := range n.Args {
		args[i] = fb.lowerExpr(a)
	}
	fn, retType := fb.resolveCallee(n.Callee)
	in := ir.NewCall(fn, n.Callee, retType, args)
	fb.emit(in)
	if fn != nil && !fn.Intrinsic {
		fn.CallSites = append(fn.CallSites, in)
	}
	return in
}

func (fb *fnBuilder) resolveCallee(name string) (*ir.Function, ir.Type) {
	if fn, ok := fb.b.mod.Intrinsics[name]; ok {
		return fn, fn.RetType
	}
	fn := fb.b.mod.FindFunc(name)
	if fn == nil {
		return nil, ir.Int32
	}
	return fn, fn.RetType
}

// lowerLValAddr computes the address a load/store/call-by-reference
// should use for an assignable expression (*ast.Ident or *ast.Index).
func (fb *fnBuilder) lowerLValAddr(e ast.Expr) ir.Value {
	switch n := e.(type) {
	case *ast.Ident:
		sym, _ := n.Sym.(*sema.Symbol)
		return fb.symAddr(sym)
	case *ast.Index:
		base, _ := n.Base.(*ast.Ident)
		sym, _ := base.Sym.(*sema.Symbol)
		baseAddr := fb.symAddr(sym)
		indices := make([]ir.Value, 0, len(n.Indices)+1)
		if !sym.IsParam {
			indices = append(indices, ir.ConstZero)
		}
		for _, ix := range n.Indices {
			indices = append(indices, fb.lowerExpr(ix))
		}
		return fb.emit(ir.NewGetElementPtr(baseAddr, indices, sym.Name))
	}
	return nil
}

// decayArray converts a whole-array reference (no index) into a
// pointer to its first row/element, the same arithmetic a function
// call boundary needs (spec.md §3's array-parameter convention).
func (fb *fnBuilder) decayArray(addr ir.Value, sym *sema.Symbol) ir.Value {
	if sym.IsParam {
		return addr // already a flat pointer
	}
	return fb.emit(ir.NewGetElementPtr(addr, []ir.Value{ir.ConstZero, ir.ConstZero}, sym.Name))
}
