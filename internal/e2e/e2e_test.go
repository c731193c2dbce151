package e2e

import (
	"path/filepath"
	"testing"

	"github.com/rogpeppe/go-internal/txtar"
)

// TestScenarios runs every spec.md §8 "End-to-end scenario" txtar
// fixture through the full pipeline and the MIPS interpreter,
// checking the captured stdout against the archive's golden section.
func TestScenarios(t *testing.T) {
	files, err := filepath.Glob("testdata/*.txtar")
	if err != nil {
		t.Fatalf("glob testdata: %v", err)
	}
	if len(files) == 0 {
		t.Fatalf("no txtar fixtures found under testdata/")
	}
	for _, path := range files {
		path := path
		t.Run(filepath.Base(path), func(t *testing.T) {
			ar, err := txtar.ParseFile(path)
			if err != nil {
				t.Fatalf("parse %s: %v", path, err)
			}
			var src, want string
			var haveSrc, haveWant bool
			for _, f := range ar.Files {
				switch f.Name {
				case "source.sy":
					src, haveSrc = string(f.Data), true
				case "stdout":
					want, haveWant = string(f.Data), true
				}
			}
			if !haveSrc || !haveWant {
				t.Fatalf("%s: expected source.sy and stdout sections", path)
			}

			mm, err := Compile(path, src)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			got, err := Run(mm, "")
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if got != want {
				t.Fatalf("stdout mismatch:\n got: %q\nwant: %q", got, want)
			}
		})
	}
}

// TestPipelineFixpoint compiles a recursive fib through the full
// optimization pipeline, which iterates its passes to a fixpoint, and
// checks that the optimized program still prints fib(10) = 55. It runs
// the pipeline once; it does not re-run it on its own output.
func TestPipelineFixpoint(t *testing.T) {
	const src = `int fib(int n){if(n<2)return n;return fib(n-1)+fib(n-2);} int main(){printf("%d\n",fib(10));return 0;}`
	mm, err := Compile("fixpoint.sy", src)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	got, err := Run(mm, "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != "55\n" {
		t.Fatalf("got %q, want 55\\n", got)
	}
}

// TestGetint exercises spec.md §6's read-integer syscall (5) through
// stdin, independent of the fixed §8 scenario set.
func TestGetint(t *testing.T) {
	const src = `int main(){int x;x=getint();printf("%d\n",x*2);return 0;}`
	mm, err := Compile("getint.sy", src)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	got, err := Run(mm, "21\n")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != "42\n" {
		t.Fatalf("got %q, want 42\\n", got)
	}
}
