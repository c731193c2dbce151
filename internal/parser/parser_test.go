package parser

import (
	"testing"

	"sysyc/internal/ast"
	"sysyc/internal/diag"
	"sysyc/internal/lexer"
)

// parseString is the teacher's parseString-test-helper pattern: scan,
// parse, and hand back both the tree and any diagnostics.
func parseString(t *testing.T, src string) (*ast.File, *diag.Bag) {
	t.Helper()
	bag := &diag.Bag{}
	toks := lexer.New("test.sy", src, bag).ScanTokens()
	f := New("test.sy", toks, bag).Parse()
	return f, bag
}

func TestParseSimpleMain(t *testing.T) {
	f, bag := parseString(t, `int main(){printf("hello\n");return 0;}`)
	if bag.Fatal() {
		t.Fatalf("unexpected diagnostics: %v", bag.Sorted())
	}
	if len(f.Decls) != 1 {
		t.Fatalf("expected 1 decl, got %d", len(f.Decls))
	}
	fn, ok := f.Decls[0].(*ast.FuncDecl)
	if !ok {
		t.Fatalf("expected FuncDecl, got %T", f.Decls[0])
	}
	if fn.Name != "main" || len(fn.Body.Stmts) != 2 {
		t.Fatalf("unexpected main body: %+v", fn)
	}
}

func TestParseVarDeclAndFor(t *testing.T) {
	src := `int main(){int s=0;int i;for(i=1;i<=100;i=i+1)s=s+i;return 0;}`
	f, bag := parseString(t, src)
	if bag.Fatal() {
		t.Fatalf("unexpected diagnostics: %v", bag.Sorted())
	}
	fn := f.Decls[0].(*ast.FuncDecl)
	if len(fn.Body.Stmts) != 4 {
		t.Fatalf("expected 4 statements, got %d: %+v", len(fn.Body.Stmts), fn.Body.Stmts)
	}
	forStmt, ok := fn.Body.Stmts[2].(*ast.For)
	if !ok {
		t.Fatalf("expected For, got %T", fn.Body.Stmts[2])
	}
	if forStmt.Init == nil || forStmt.Cond == nil || forStmt.Step == nil {
		t.Fatalf("expected full for-clause, got %+v", forStmt)
	}
}

func TestParseConstArray(t *testing.T) {
	src := `const int a[3]={1,2,3};int main(){return 0;}`
	f, bag := parseString(t, src)
	if bag.Fatal() {
		t.Fatalf("unexpected diagnostics: %v", bag.Sorted())
	}
	decl, ok := f.Decls[0].(*ast.VarDecl)
	if !ok || !decl.Const {
		t.Fatalf("expected const VarDecl, got %+v", f.Decls[0])
	}
	init, ok := decl.Inits[0].(*ast.ArrayInit)
	if !ok || len(init.Elems) != 3 {
		t.Fatalf("expected 3-element array init, got %+v", decl.Inits[0])
	}
}

func TestParseMissingSemicolonRecovers(t *testing.T) {
	src := `int main(){int a=1 return a;}`
	_, bag := parseString(t, src)
	if !bag.Fatal() {
		t.Fatalf("expected a missing-semicolon diagnostic")
	}
	found := false
	for _, d := range bag.Sorted() {
		if d.Code == diag.MissingSemicolon {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected MissingSemicolon among %v", bag.Sorted())
	}
}

func TestParseFuncParams(t *testing.T) {
	src := `int f(int a, int b[], int c[][4]){return a;}`
	f, bag := parseString(t, src)
	if bag.Fatal() {
		t.Fatalf("unexpected diagnostics: %v", bag.Sorted())
	}
	fn := f.Decls[0].(*ast.FuncDecl)
	if len(fn.Params) != 3 {
		t.Fatalf("expected 3 params, got %d", len(fn.Params))
	}
	if fn.Params[1].Dims == nil || fn.Params[2].Dims == nil {
		t.Fatalf("expected array params to carry Dims, got %+v", fn.Params)
	}
}
