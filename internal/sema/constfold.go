package sema

import "sysyc/internal/ast"

// ConstEval evaluates a constant-int expression using sym, returning
// (value, true) when every operand bottoms out in a literal or a
// const symbol. Array dimension expressions and const initializers
// must fold this way; spec.md §4.1 calls these "compile-time-
// computable expressions marked by the semantic analyzer", emitted
// by internal/ir/build as literals rather than instructions.
func (c *Checker) ConstEval(scope *Scope, e ast.Expr) (int32, bool) {
	switch n := e.(type) {
	case *ast.IntLit:
		return n.Value, true
	case *ast.Ident:
		sym, ok := scope.Lookup(n.Name)
		if !ok || !sym.Const || sym.Type.Kind != KInt {
			return 0, false
		}
		return sym.ConstVal, true
	case *ast.Index:
		base, ok := n.Base.(*ast.Ident)
		if !ok {
			return 0, false
		}
		sym, ok := scope.Lookup(base.Name)
		if !ok || !sym.Const || sym.Type.Kind != KArray {
			return 0, false
		}
		idx := 0
		for i, ixExpr := range n.Indices {
			v, ok := c.ConstEval(scope, ixExpr)
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
		v, ok := c.ConstEval(scope, n.Operand)
		if !ok {
			return 0, false
		}
		switch n.Op.String() {
		case "-":
			return -v, true
		case "+":
			return v, true
		case "!":
			if v == 0 {
				return 1, true
			}
			return 0, true
		}
		return 0, false
	case *ast.Binary:
		l, ok := c.ConstEval(scope, n.Left)
		if !ok {
			return 0, false
		}
		r, ok := c.ConstEval(scope, n.Right)
		if !ok {
			return 0, false
		}
		return foldBinary(n.Op.String(), l, r)
	}
	return 0, false
}

func foldBinary(op string, l, r int32) (int32, bool) {
	switch op {
	case "+":
		return l + r, true
	case "-":
		return l - r, true
	case "*":
		return l * r, true
	case "/":
		if r == 0 {
			return 0, false
		}
		return l / r, true
	case "%":
		if r == 0 {
			return 0, false
		}
		return l % r, true
	case "<":
		return boolInt(l < r), true
	case ">":
		return boolInt(l > r), true
	case "<=":
		return boolInt(l <= r), true
	case ">=":
		return boolInt(l >= r), true
	case "==":
		return boolInt(l == r), true
	case "!=":
		return boolInt(l != r), true
	case "&&":
		return boolInt(l != 0 && r != 0), true
	case "||":
		return boolInt(l != 0 || r != 0), true
	}
	return 0, false
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
