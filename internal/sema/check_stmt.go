package sema

import (
	"sysyc/internal/ast"
	"sysyc/internal/diag"
)

func (c *Checker) checkStmt(scope *Scope, s ast.Stmt) {
	switch n := s.(type) {
	case *ast.VarDecl:
		c.checkLocalVarDecl(scope, n)
	case *ast.ExprStmt:
		if n.X != nil {
			c.checkExpr(scope, n.X)
		}
	case *ast.Assign:
		c.checkAssign(scope, n)
	case *ast.Block:
		inner := NewScope(scope)
		c.checkBlockIn(inner, n)
	case *ast.If:
		if c.checkExpr(scope, n.Cond).Kind != KInt {
			c.errf(n.Pos, diag.NonIntCondition, "if condition must be int")
		}
		c.checkStmt(scope, n.Then)
		if n.Else != nil {
			c.checkStmt(scope, n.Else)
		}
	case *ast.For:
		if n.Init != nil {
			c.checkStmt(scope, n.Init)
		}
		if n.Cond != nil && c.checkExpr(scope, n.Cond).Kind != KInt {
			c.errf(n.Pos, diag.NonIntCondition, "for condition must be int")
		}
		if n.Step != nil {
			c.checkStmt(scope, n.Step)
		}
		c.loopDepth++
		c.checkStmt(scope, n.Body)
		c.loopDepth--
	case *ast.Break:
		if c.loopDepth == 0 {
			c.errf(n.Pos, diag.LoopKeywordOutside, "'break' outside a loop")
		}
	case *ast.Continue:
		if c.loopDepth == 0 {
			c.errf(n.Pos, diag.LoopKeywordOutside, "'continue' outside a loop")
		}
	case *ast.Return:
		c.checkReturn(scope, n)
	}
}

func (c *Checker) checkLocalVarDecl(scope *Scope, decl *ast.VarDecl) {
	decl.Syms = make([]interface{}, len(decl.Names))
	for i, name := range decl.Names {
		typ, arraySize := c.resolveDims(scope, decl.Dims[i])
		sym := &Symbol{Name: name, Type: typ, Const: decl.Const}
		if decl.Const {
			c.evalConstInit(sym, decl.Inits[i], arraySize, decl.Pos)
		} else if decl.Inits[i] != nil && typ.Kind == KInt {
			if got := c.checkExpr(scope, decl.Inits[i]); got.Kind != KInt {
				c.errf(decl.Pos, diag.TypeMismatch, "cannot initialize %q with %s", name, got)
			}
		} else if decl.Inits[i] != nil && typ.Kind == KArray {
			if ai, ok := decl.Inits[i].(*ast.ArrayInit); ok {
				c.checkArrayInitExprs(scope, typ, ai)
			} else {
				c.errf(decl.Pos, diag.TypeMismatch, "array %q requires a brace initializer", name)
			}
		}
		if !scope.Declare(sym) {
			c.errf(decl.Pos, diag.DuplicateIdent, "duplicate identifier %q", name)
		}
		decl.Syms[i] = sym
	}
}

func (c *Checker) checkArrayInitExprs(scope *Scope, t Type, ai *ast.ArrayInit) {
	for _, e := range ai.Elems {
		if nested, ok := e.(*ast.ArrayInit); ok {
			c.checkArrayInitExprs(scope, t.Elem(), nested)
			continue
		}
		c.checkExpr(scope, e)
	}
}

func (c *Checker) checkAssign(scope *Scope, n *ast.Assign) {
	vt := c.checkExpr(scope, n.Target)
	if id, ok := n.Target.(*ast.Ident); ok {
		if sym, ok := id.Sym.(*Symbol); ok && sym.Const {
			c.errf(n.Pos, diag.ConstAssignment, "cannot assign to const %q", sym.Name)
		}
	}
	if idx, ok := n.Target.(*ast.Index); ok {
		if base, ok := idx.Base.(*ast.Ident); ok {
			if sym, ok := base.Sym.(*Symbol); ok && sym.Const {
				c.errf(n.Pos, diag.ConstAssignment, "cannot assign to const array %q", sym.Name)
			}
		}
	}
	rt := c.checkExpr(scope, n.Value)
	if vt.Kind != KInt || rt.Kind != KInt {
		c.errf(n.Pos, diag.TypeMismatch, "assignment requires int operands")
	}
}

func (c *Checker) checkReturn(scope *Scope, n *ast.Return) {
	if c.curFunc == nil {
		return
	}
	if c.curFunc.RetVoid {
		if n.Value != nil {
			c.errf(n.Pos, diag.ReturnTypeMismatch, "void function must not return a value")
		}
		return
	}
	if n.Value == nil {
		c.errf(n.Pos, diag.ReturnTypeMismatch, "non-void function must return a value")
		return
	}
	if c.checkExpr(scope, n.Value).Kind != KInt {
		c.errf(n.Pos, diag.ReturnTypeMismatch, "return value must be int")
	}
}
