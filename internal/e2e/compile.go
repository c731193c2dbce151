package e2e

import (
	"fmt"

	"sysyc/internal/diag"
	"sysyc/internal/ir/build"
	"sysyc/internal/ir/opt"
	"sysyc/internal/lexer"
	"sysyc/internal/mir"
	mlower "sysyc/internal/mir/lower"
	mopt "sysyc/internal/mir/opt"
	"sysyc/internal/mir/regalloc"
	"sysyc/internal/parser"
	"sysyc/internal/sema"
)

// Compile runs the full pipeline cmd/sysyc's main.go drives (spec.md
// §2) and returns the allocated machine IR ready for Run, mirroring
// the CLI's own lex->parse->sema->build->opt->lower->opt->regalloc
// sequence so the tests in this package exercise exactly what ships.
func Compile(name, src string) (*mir.MModule, error) {
	bag := &diag.Bag{}
	toks := lexer.New(name, src, bag).ScanTokens()
	astFile := parser.New(name, toks, bag).Parse()
	res := sema.Check(name, astFile, bag)
	if bag.Fatal() {
		return nil, fmt.Errorf("front-end errors: %v", bag.Sorted())
	}
	mod := build.Build(astFile, res)
	opt.Run(mod, true)
	mm := mlower.Module(mod)
	mopt.Run(mm)
	regalloc.Run(mm)
	return mm, nil
}
