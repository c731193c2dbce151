package parser

import (
	"sysyc/internal/ast"
	"sysyc/internal/diag"
	"sysyc/internal/token"
)

// Precedence-climbing cascade, one method per level, mirroring the
// teacher's parser.go shape (primary -> unary -> mul -> add -> rel ->
// eq -> land -> lor). ConstExp (spec.md §6 array dims) is parsed with
// the full parseExpr cascade.

func (p *Parser) parseExpr() ast.Expr { return p.parseLOr() }

func (p *Parser) parseLOr() ast.Expr {
	left := p.parseLAnd()
	for p.at(token.OrOr) {
		op := p.advance()
		right := p.parseLAnd()
		left = &ast.Binary{Pos: p.pposOf(op), Op: token.OrOr, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseLAnd() ast.Expr {
	left := p.parseEq()
	for p.at(token.AndAnd) {
		op := p.advance()
		right := p.parseEq()
		left = &ast.Binary{Pos: p.pposOf(op), Op: token.AndAnd, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseEq() ast.Expr {
	left := p.parseRel()
	for p.at(token.Eq) || p.at(token.Ne) {
		op := p.advance()
		right := p.parseRel()
		left = &ast.Binary{Pos: p.pposOf(op), Op: op.Kind, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseRel() ast.Expr {
	left := p.parseAdd()
	for p.at(token.Lt) || p.at(token.Gt) || p.at(token.Le) || p.at(token.Ge) {
		op := p.advance()
		right := p.parseAdd()
		left = &ast.Binary{Pos: p.pposOf(op), Op: op.Kind, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAdd() ast.Expr {
	left := p.parseMul()
	for p.at(token.Plus) || p.at(token.Minus) {
		op := p.advance()
		right := p.parseMul()
		left = &ast.Binary{Pos: p.pposOf(op), Op: op.Kind, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseMul() ast.Expr {
	left := p.parseUnary()
	for p.at(token.Star) || p.at(token.Slash) || p.at(token.Percent) {
		op := p.advance()
		right := p.parseUnary()
		left = &ast.Binary{Pos: p.pposOf(op), Op: op.Kind, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() ast.Expr {
	switch p.cur().Kind {
	case token.Plus, token.Minus, token.Not:
		op := p.advance()
		operand := p.parseUnary()
		return &ast.Unary{Pos: p.pposOf(op), Op: op.Kind, Operand: operand}
	}
	return p.parsePostfixOrPrimary()
}

func (p *Parser) parsePostfixOrPrimary() ast.Expr {
	if p.at(token.Ident) {
		name := p.advance()
		if p.at(token.LParen) {
			return p.parseCall(name)
		}
		var e ast.Expr = &ast.Ident{Pos: p.pposOf(name), Name: name.Lexeme}
		if p.at(token.LBracket) {
			idx := &ast.Index{Pos: p.pposOf(name), Base: e}
			for p.at(token.LBracket) {
				p.advance()
				idx.Indices = append(idx.Indices, p.parseExpr())
				p.expect(token.RBracket, diag.MissingBracket)
			}
			return idx
		}
		return e
	}
	return p.parsePrimary()
}

func (p *Parser) parseLVal() ast.Expr {
	name := p.expect(token.Ident, diag.UnexpectedToken)
	var e ast.Expr = &ast.Ident{Pos: p.pposOf(name), Name: name.Lexeme}
	if p.at(token.LBracket) {
		idx := &ast.Index{Pos: p.pposOf(name), Base: e}
		for p.at(token.LBracket) {
			p.advance()
			idx.Indices = append(idx.Indices, p.parseExpr())
			p.expect(token.RBracket, diag.MissingBracket)
		}
		return idx
	}
	return e
}

func (p *Parser) parsePrimary() ast.Expr {
	switch p.cur().Kind {
	case token.LParen:
		p.advance()
		e := p.parseExpr()
		p.expect(token.RParen, diag.MissingParen)
		return e
	case token.IntLit:
		t := p.advance()
		return &ast.IntLit{Pos: p.pposOf(t), Value: t.IntVal}
	default:
		p.unexpected("expression")
		return nil
	}
}

// parseCall handles both user function calls and printf, whose first
// argument is a string literal rather than an Exp per spec.md §6.
func (p *Parser) parseCall(name token.Token) ast.Expr {
	p.advance() // '('
	call := &ast.Call{Pos: p.pposOf(name), Callee: name.Lexeme}
	if !p.at(token.RParen) {
		call.Args = append(call.Args, p.parseArg())
		for p.at(token.Comma) {
			p.advance()
			call.Args = append(call.Args, p.parseArg())
		}
	}
	p.expect(token.RParen, diag.MissingParen)
	return call
}

func (p *Parser) parseArg() ast.Expr {
	if p.at(token.StringLit) {
		t := p.advance()
		return &ast.StringLit{Pos: p.pposOf(t), Value: t.Lexeme}
	}
	return p.parseExpr()
}
