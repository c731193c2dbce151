// Package parser is a recursive-descent parser for the SysY-like
// source language of spec.md §6.
//
// Grounded on the teacher's internal/parser/parser.go: an accumulated
// Errors slice, precedence-climbing expression parsing expressed as a
// cascade of mutually-recursive methods (one per precedence level),
// and panic/recover used to resynchronize past a malformed
// declaration or statement (matching the teacher's own parseString
// test helper, which recovers a parser panic into an error value).
package parser

import (
	"fmt"

	"sysyc/internal/ast"
	"sysyc/internal/diag"
	"sysyc/internal/token"
)

type parseError struct{ msg string }

func (e parseError) Error() string { return e.msg }

type Parser struct {
	file   string
	toks   []token.Token
	pos    int
	bag    *diag.Bag
}

func New(file string, toks []token.Token, bag *diag.Bag) *Parser {
	return &Parser{file: file, toks: toks, bag: bag}
}

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) at(k token.Kind) bool { return p.cur().Kind == k }
func (p *Parser) atEnd() bool       { return p.at(token.EOF) }

func (p *Parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) pposOf(t token.Token) ast.Pos { return ast.FromToken(t) }

// expect consumes a token of kind k, or records a diagnostic with the
// given code and synthesizes the token so parsing can continue —
// spec.md §7's "three of these trigger token insertion" (missing
// semicolon/bracket/parenthesis).
func (p *Parser) expect(k token.Kind, code diag.Code) token.Token {
	if p.at(k) {
		return p.advance()
	}
	cur := p.cur()
	p.bag.Errorf(diag.Syntactic, code, diag.Pos{File: p.file, Line: cur.Line, Column: cur.Column},
		"expected %s, found %s", k, cur.Kind)
	return token.Token{Kind: k, Line: cur.Line, Column: cur.Column}
}

func (p *Parser) unexpected(what string) {
	cur := p.cur()
	p.bag.Errorf(diag.Syntactic, diag.UnexpectedToken, diag.Pos{File: p.file, Line: cur.Line, Column: cur.Column},
		"unexpected %s while parsing %s", cur.Kind, what)
	panic(parseError{fmt.Sprintf("unexpected %s", cur.Kind)})
}

// resync skips tokens until a statement/declaration boundary, used
// after a panic recovery to keep parsing the rest of the file.
func (p *Parser) resync() {
	for !p.atEnd() {
		if p.at(token.Semicolon) {
			p.advance()
			return
		}
		if p.at(token.RBrace) || p.at(token.KwInt) || p.at(token.KwVoid) || p.at(token.KwConst) {
			return
		}
		p.advance()
	}
}

// Parse parses an entire compilation unit. Parser.bag carries every
// diagnostic raised; the caller checks bag.Fatal() before trusting
// the returned file.
func (p *Parser) Parse() *ast.File {
	f := &ast.File{}
	for !p.atEnd() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					if _, ok := r.(parseError); ok {
						p.resync()
						return
					}
					panic(r)
				}
			}()
			d := p.parseTopDecl()
			if d != nil {
				f.Decls = append(f.Decls, d)
			}
		}()
	}
	return f
}

func (p *Parser) parseTopDecl() ast.Decl {
	isConst := false
	if p.at(token.KwConst) {
		isConst = true
		p.advance()
	}
	if !p.at(token.KwInt) && !p.at(token.KwVoid) {
		p.unexpected("top-level declaration")
	}
	retVoid := p.at(token.KwVoid)
	p.advance() // int | void

	name := p.expect(token.Ident, diag.UnexpectedToken)

	if p.at(token.LParen) {
		return p.parseFuncDef(name, retVoid)
	}
	return p.parseVarDeclRest(name, isConst)
}

func (p *Parser) parseVarDeclRest(first token.Token, isConst bool) *ast.VarDecl {
	decl := &ast.VarDecl{Pos: p.pposOf(first), Const: isConst}
	name := first.Lexeme
	for {
		dims := p.parseDims()
		var init ast.Expr
		if p.at(token.Assign) {
			p.advance()
			init = p.parseInitVal()
		}
		decl.Names = append(decl.Names, name)
		decl.Dims = append(decl.Dims, dims)
		decl.Inits = append(decl.Inits, init)
		if !p.at(token.Comma) {
			break
		}
		p.advance()
		name = p.expect(token.Ident, diag.UnexpectedToken).Lexeme
	}
	p.expect(token.Semicolon, diag.MissingSemicolon)
	return decl
}

func (p *Parser) parseDims() []ast.Expr {
	var dims []ast.Expr
	for p.at(token.LBracket) {
		p.advance()
		dims = append(dims, p.parseExpr())
		p.expect(token.RBracket, diag.MissingBracket)
	}
	return dims
}

func (p *Parser) parseInitVal() ast.Expr {
	if p.at(token.LBrace) {
		brace := p.advance()
		init := &ast.ArrayInit{Pos: p.pposOf(brace)}
		if !p.at(token.RBrace) {
			init.Elems = append(init.Elems, p.parseInitVal())
			for p.at(token.Comma) {
				p.advance()
				init.Elems = append(init.Elems, p.parseInitVal())
			}
		}
		p.expect(token.RBrace, diag.MissingBracket)
		return init
	}
	return p.parseExpr()
}

func (p *Parser) parseFuncDef(name token.Token, retVoid bool) *ast.FuncDecl {
	fn := &ast.FuncDecl{Pos: p.pposOf(name), Name: name.Lexeme, RetVoid: retVoid}
	p.expect(token.LParen, diag.MissingParen)
	if !p.at(token.RParen) {
		fn.Params = append(fn.Params, p.parseParam())
		for p.at(token.Comma) {
			p.advance()
			fn.Params = append(fn.Params, p.parseParam())
		}
	}
	p.expect(token.RParen, diag.MissingParen)
	fn.Body = p.parseBlock()
	return fn
}

func (p *Parser) parseParam() ast.Param {
	p.expect(token.KwInt, diag.UnexpectedToken)
	nameTok := p.expect(token.Ident, diag.UnexpectedToken)
	param := ast.Param{Pos: p.pposOf(nameTok), Name: nameTok.Lexeme}
	if p.at(token.LBracket) {
		p.advance()
		param.Dims = append(param.Dims, nil) // unsized first dimension
		p.expect(token.RBracket, diag.MissingBracket)
		for p.at(token.LBracket) {
			p.advance()
			param.Dims = append(param.Dims, p.parseExpr())
			p.expect(token.RBracket, diag.MissingBracket)
		}
	}
	return param
}

func (p *Parser) parseBlock() *ast.Block {
	lb := p.expect(token.LBrace, diag.MissingBracket)
	b := &ast.Block{Pos: p.pposOf(lb)}
	for !p.at(token.RBrace) && !p.atEnd() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					if _, ok := r.(parseError); ok {
						p.resync()
						return
					}
					panic(r)
				}
			}()
			b.Stmts = append(b.Stmts, p.parseBlockItem())
		}()
	}
	p.expect(token.RBrace, diag.MissingBracket)
	return b
}

func (p *Parser) parseBlockItem() ast.Stmt {
	if p.at(token.KwConst) || p.at(token.KwInt) {
		isConst := false
		if p.at(token.KwConst) {
			isConst = true
			p.advance()
		}
		p.expect(token.KwInt, diag.UnexpectedToken)
		name := p.expect(token.Ident, diag.UnexpectedToken)
		return p.parseVarDeclRest(name, isConst)
	}
	return p.parseStmt()
}
