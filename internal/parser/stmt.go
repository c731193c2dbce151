package parser

import (
	"sysyc/internal/ast"
	"sysyc/internal/diag"
	"sysyc/internal/token"
)

func (p *Parser) parseStmt() ast.Stmt {
	switch p.cur().Kind {
	case token.LBrace:
		return p.parseBlock()
	case token.KwIf:
		return p.parseIf()
	case token.KwFor:
		return p.parseFor()
	case token.KwBreak:
		t := p.advance()
		p.expect(token.Semicolon, diag.MissingSemicolon)
		return &ast.Break{Pos: p.pposOf(t)}
	case token.KwContinue:
		t := p.advance()
		p.expect(token.Semicolon, diag.MissingSemicolon)
		return &ast.Continue{Pos: p.pposOf(t)}
	case token.KwReturn:
		t := p.advance()
		ret := &ast.Return{Pos: p.pposOf(t)}
		if !p.at(token.Semicolon) {
			ret.Value = p.parseExpr()
		}
		p.expect(token.Semicolon, diag.MissingSemicolon)
		return ret
	case token.Semicolon:
		t := p.advance()
		return &ast.ExprStmt{Pos: p.pposOf(t)}
	default:
		return p.parseExprOrAssignStmt()
	}
}

// parseExprOrAssignStmt disambiguates `LVal = Exp ;` from a bare
// expression statement by parsing an expression first and checking
// whether '=' follows and the expression is an assignable LVal.
func (p *Parser) parseExprOrAssignStmt() ast.Stmt {
	start := p.cur()
	e := p.parseExpr()
	if p.at(token.Assign) {
		switch e.(type) {
		case *ast.Ident, *ast.Index:
		default:
			p.unexpected("assignment target")
		}
		p.advance()
		val := p.parseExpr()
		p.expect(token.Semicolon, diag.MissingSemicolon)
		return &ast.Assign{Pos: p.pposOf(start), Target: e, Value: val}
	}
	p.expect(token.Semicolon, diag.MissingSemicolon)
	return &ast.ExprStmt{Pos: p.pposOf(start), X: e}
}

func (p *Parser) parseIf() ast.Stmt {
	t := p.advance()
	p.expect(token.LParen, diag.MissingParen)
	cond := p.parseExpr()
	p.expect(token.RParen, diag.MissingParen)
	then := p.parseStmt()
	s := &ast.If{Pos: p.pposOf(t), Cond: cond, Then: then}
	if p.at(token.KwElse) {
		p.advance()
		s.Else = p.parseStmt()
	}
	return s
}

func (p *Parser) parseFor() ast.Stmt {
	t := p.advance()
	p.expect(token.LParen, diag.MissingParen)
	f := &ast.For{Pos: p.pposOf(t)}
	if !p.at(token.Semicolon) {
		f.Init = p.parseForAssign()
	}
	p.expect(token.Semicolon, diag.MissingSemicolon)
	if !p.at(token.Semicolon) {
		f.Cond = p.parseExpr()
	}
	p.expect(token.Semicolon, diag.MissingSemicolon)
	if !p.at(token.RParen) {
		f.Step = p.parseForAssign()
	}
	p.expect(token.RParen, diag.MissingParen)
	f.Body = p.parseStmt()
	return f
}

func (p *Parser) parseForAssign() ast.Stmt {
	start := p.cur()
	lval := p.parseLVal()
	p.expect(token.Assign, diag.UnexpectedToken)
	val := p.parseExpr()
	return &ast.Assign{Pos: p.pposOf(start), Target: lval, Value: val}
}
