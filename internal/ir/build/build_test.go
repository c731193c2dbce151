package build

import (
	"testing"

	"github.com/kr/pretty"

	"sysyc/internal/diag"
	"sysyc/internal/ir"
	"sysyc/internal/lexer"
	"sysyc/internal/parser"
	"sysyc/internal/sema"
)

func buildSrc(t *testing.T, src string) *ir.Module {
	t.Helper()
	bag := &diag.Bag{}
	toks := lexer.New("t.sy", src, bag).ScanTokens()
	f := parser.New("t.sy", toks, bag).Parse()
	if bag.Fatal() {
		t.Fatalf("parse errors: %v", bag.Sorted())
	}
	res := sema.Check("t.sy", f, bag)
	if bag.Fatal() {
		t.Fatalf("sema errors: %v", bag.Sorted())
	}
	return Build(f, res)
}

func TestBuildSimpleMain(t *testing.T) {
	m := buildSrc(t, `int main(){return 0;}`)
	fn := m.FindFunc("main")
	if fn == nil {
		t.Fatalf("expected @main")
	}
	term := fn.Entry().Terminator()
	if term == nil || term.Op != ir.OpRet {
		t.Fatalf("expected a ret terminator, got %v", term)
	}
}

func TestBuildIfElse(t *testing.T) {
	m := buildSrc(t, `int main(){int x;x=1;if(x>0)x=2;else x=3;return x;}`)
	fn := m.FindFunc("main")
	if len(fn.Blocks) < 4 {
		t.Fatalf("expected at least 4 blocks for if/else, got %d blocks:\n%# v", len(fn.Blocks), pretty.Formatter(fn.Blocks))
	}
}

func TestBuildForLoopWithBreak(t *testing.T) {
	m := buildSrc(t, `int main(){int i;int s=0;for(i=0;i<10;i=i+1){if(i==5)break;s=s+i;}return s;}`)
	fn := m.FindFunc("main")
	ir.RebuildCFG(fn)
	if fn.Entry() == nil {
		t.Fatalf("expected an entry block")
	}
}

func TestBuildGlobalArray(t *testing.T) {
	m := buildSrc(t, `const int a[3]={1,2,3};int main(){return a[1];}`)
	if len(m.Globals) != 1 {
		t.Fatalf("expected 1 global, got %d", len(m.Globals))
	}
	g := m.Globals[0]
	if len(g.Init) != 3 || g.Init[1] != 2 {
		t.Fatalf("expected const init [1 2 3], got %v", g.Init)
	}
}

func TestBuildPrintf(t *testing.T) {
	m := buildSrc(t, `int main(){printf("result: %d\n", 7);return 0;}`)
	fn := m.FindFunc("main")
	foundCall := false
	for _, in := range fn.AllInstructions() {
		if in.Op == ir.OpCall {
			foundCall = true
		}
	}
	if !foundCall {
		t.Fatalf("expected at least one intrinsic call from printf lowering")
	}
}

func TestBuildLogicalAnd(t *testing.T) {
	m := buildSrc(t, `int main(){int a;int b;a=1;b=0;if(a&&b)return 1;return 0;}`)
	fn := m.FindFunc("main")
	if len(fn.Blocks) < 3 {
		t.Fatalf("expected short-circuit blocks for &&, got %d", len(fn.Blocks))
	}
}
