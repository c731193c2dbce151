package sema

import (
	"testing"

	"sysyc/internal/diag"
	"sysyc/internal/lexer"
	"sysyc/internal/parser"
)

func checkSrc(t *testing.T, src string) *diag.Bag {
	t.Helper()
	bag := &diag.Bag{}
	toks := lexer.New("t.sy", src, bag).ScanTokens()
	f := parser.New("t.sy", toks, bag).Parse()
	if bag.Fatal() {
		return bag
	}
	Check("t.sy", f, bag)
	return bag
}

func TestSemaAcceptsValidProgram(t *testing.T) {
	bag := checkSrc(t, `const int a[3]={1,2,3};int main(){int i;int s=0;for(i=0;i<3;i=i+1)s=s+a[i];printf("%d\n",s);return 0;}`)
	if bag.Fatal() {
		t.Fatalf("unexpected diagnostics: %v", bag.Sorted())
	}
}

func TestSemaRejectsConstAssignment(t *testing.T) {
	bag := checkSrc(t, `int main(){const int x=1;x=2;return 0;}`)
	if !bag.Fatal() {
		t.Fatalf("expected const-assignment diagnostic")
	}
	found := false
	for _, d := range bag.Sorted() {
		if d.Code == diag.ConstAssignment {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ConstAssignment among %v", bag.Sorted())
	}
}

func TestSemaRejectsBreakOutsideLoop(t *testing.T) {
	bag := checkSrc(t, `int main(){break;return 0;}`)
	if !bag.Fatal() {
		t.Fatalf("expected break-outside-loop diagnostic")
	}
}

func TestSemaRejectsUndeclared(t *testing.T) {
	bag := checkSrc(t, `int main(){return x;}`)
	if !bag.Fatal() {
		t.Fatalf("expected undeclared-identifier diagnostic")
	}
}

func TestSemaRejectsPrintfArityMismatch(t *testing.T) {
	bag := checkSrc(t, `int main(){printf("%d %d\n",1);return 0;}`)
	if !bag.Fatal() {
		t.Fatalf("expected printf arity diagnostic")
	}
}
