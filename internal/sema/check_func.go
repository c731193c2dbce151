package sema

import (
	"sysyc/internal/ast"
	"sysyc/internal/diag"
)

func (c *Checker) checkFuncBody(fn *ast.FuncDecl) {
	sig := c.Funcs[fn.Name]
	c.curFunc = sig
	scope := NewScope(c.Global)
	for i, p := range fn.Params {
		sym := &Symbol{Name: p.Name, Type: sig.Params[i], IsParam: true}
		if !scope.Declare(sym) {
			c.errf(p.Pos, diag.DuplicateIdent, "duplicate parameter %q", p.Name)
		}
		fn.Params[i].Sym = sym
	}
	c.checkBlockIn(scope, fn.Body)

	if !fn.RetVoid && !blockAlwaysReturns(fn.Body) {
		// Falling off the end of a non-void function: the original
		// source semantics treat this as returning an unspecified
		// value, not a diagnostic — the IR builder emits a trailing
		// `ret 0` in that case (see internal/ir/build).
		_ = 0
	}
	c.curFunc = nil
}

// blockAlwaysReturns is a conservative check; checkFuncBody calls it
// but takes no action on the result, and it is not a diagnostic
// (spec.md's source language does not require it). ir/build decides
// on its own whether to synthesize a trailing return, by checking
// whether the function's last block already has a terminator.
func blockAlwaysReturns(b *ast.Block) bool {
	for i := len(b.Stmts) - 1; i >= 0; i-- {
		switch s := b.Stmts[i].(type) {
		case *ast.Return:
			return true
		case *ast.Block:
			return blockAlwaysReturns(s)
		case *ast.If:
			if s.Else != nil && stmtAlwaysReturns(s.Then) && stmtAlwaysReturns(s.Else) {
				return true
			}
			return false
		default:
			return false
		}
	}
	return false
}

func stmtAlwaysReturns(s ast.Stmt) bool {
	switch n := s.(type) {
	case *ast.Return:
		return true
	case *ast.Block:
		return blockAlwaysReturns(n)
	case *ast.If:
		return n.Else != nil && stmtAlwaysReturns(n.Then) && stmtAlwaysReturns(n.Else)
	}
	return false
}

func (c *Checker) checkBlockIn(scope *Scope, b *ast.Block) {
	for _, s := range b.Stmts {
		c.checkStmt(scope, s)
	}
}
