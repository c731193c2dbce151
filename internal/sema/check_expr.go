package sema

import (
	"strings"

	"sysyc/internal/ast"
	"sysyc/internal/diag"
)

func (c *Checker) checkExpr(scope *Scope, e ast.Expr) Type {
	switch n := e.(type) {
	case *ast.IntLit:
		return Int
	case *ast.StringLit:
		// Only valid as printf's first argument; checked there.
		return Int
	case *ast.Ident:
		sym, ok := scope.Lookup(n.Name)
		if !ok {
			c.errf(n.Pos, diag.UndeclaredIdent, "undeclared identifier %q", n.Name)
			return Int
		}
		n.Sym = sym
		return sym.Type
	case *ast.Index:
		return c.checkIndex(scope, n)
	case *ast.Unary:
		t := c.checkExpr(scope, n.Operand)
		if t.Kind != KInt {
			c.errf(n.Pos, diag.TypeMismatch, "unary operator requires int operand")
		}
		return Int
	case *ast.Binary:
		lt := c.checkExpr(scope, n.Left)
		rt := c.checkExpr(scope, n.Right)
		if lt.Kind != KInt || rt.Kind != KInt {
			c.errf(n.Pos, diag.TypeMismatch, "binary operator requires int operands")
		}
		return Int
	case *ast.Call:
		return c.checkCall(scope, n)
	}
	return Int
}

func (c *Checker) checkIndex(scope *Scope, n *ast.Index) Type {
	base, ok := n.Base.(*ast.Ident)
	if !ok {
		return Int
	}
	sym, ok := scope.Lookup(base.Name)
	if !ok {
		c.errf(base.Pos, diag.UndeclaredIdent, "undeclared identifier %q", base.Name)
		return Int
	}
	base.Sym = sym
	if sym.Type.Kind != KArray {
		c.errf(n.Pos, diag.ArrayDimMismatch, "%q is not an array", base.Name)
		return Int
	}
	if len(n.Indices) > len(sym.Type.Dims) {
		c.errf(n.Pos, diag.ArrayDimMismatch, "too many indices for %q", base.Name)
	}
	for _, ix := range n.Indices {
		if t := c.checkExpr(scope, ix); t.Kind != KInt {
			c.errf(n.Pos, diag.TypeMismatch, "array index must be int")
		}
	}
	remaining := len(sym.Type.Dims) - len(n.Indices)
	if remaining <= 0 {
		return Int
	}
	return Array(append([]int(nil), sym.Type.Dims[len(n.Indices):]...))
}

func (c *Checker) checkCall(scope *Scope, n *ast.Call) Type {
	sig, ok := c.Funcs[n.Callee]
	if !ok {
		c.errf(n.Pos, diag.UndeclaredIdent, "call to undeclared function %q", n.Callee)
		for _, a := range n.Args {
			c.checkExpr(scope, a)
		}
		return Int
	}
	c.calls[n] = sig

	if sig.Variadic {
		c.checkPrintfCall(scope, n)
	} else {
		if len(n.Args) != len(sig.Params) {
			c.errf(n.Pos, diag.PrintfArity, "call to %q expects %d arguments, got %d", n.Callee, len(sig.Params), len(n.Args))
		}
		for i, a := range n.Args {
			t := c.checkExpr(scope, a)
			if i < len(sig.Params) && sig.Params[i].Kind == KInt && t.Kind != KInt {
				c.errf(n.Pos, diag.TypeMismatch, "argument %d to %q must be int", i+1, n.Callee)
			}
		}
	}

	if sig.RetVoid {
		return Void
	}
	return Int
}

// checkPrintfCall validates the restricted printf of spec.md §6: a
// string-literal format followed by %d/\n escapes, whose placeholder
// count must match the remaining int arguments (spec.md §7
// PrintfArity).
func (c *Checker) checkPrintfCall(scope *Scope, n *ast.Call) {
	if len(n.Args) == 0 {
		c.errf(n.Pos, diag.PrintfArity, "printf requires a format string")
		return
	}
	lit, ok := n.Args[0].(*ast.StringLit)
	if !ok {
		c.errf(n.Pos, diag.TypeMismatch, "printf's first argument must be a string literal")
		return
	}
	placeholders := strings.Count(lit.Value, "%d")
	rest := n.Args[1:]
	if placeholders != len(rest) {
		c.errf(n.Pos, diag.PrintfArity, "printf format has %d placeholders but %d arguments were given", placeholders, len(rest))
	}
	for _, a := range rest {
		if t := c.checkExpr(scope, a); t.Kind != KInt {
			c.errf(n.Pos, diag.TypeMismatch, "printf argument must be int")
		}
	}
}
