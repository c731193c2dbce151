package build

import (
	"sysyc/internal/ast"
	"sysyc/internal/ir"
)

// putstrThreshold is the literal-segment length below which characters
// are emitted one at a time via putch instead of materializing a
// global string and calling putstr (spec.md §4.1).
const putstrThreshold = 2

// lowerPrintf splits a printf(fmt, args...) call into a sequence of
// putch/putstr/putint intrinsic calls, resolving \n and %d escapes
// the way sema.checkPrintfCall already validated (spec.md §6).
func (fb *fnBuilder) lowerPrintf(n *ast.Call) ir.Value {
	lit, ok := n.Args[0].(*ast.StringLit)
	if !ok {
		return ir.ConstZero
	}
	argi := 1
	segs := splitFormat(lit.Value)
	for _, seg := range segs {
		if seg.isArg {
			v := fb.lowerExpr(n.Args[argi])
			argi++
			fb.emitPutint(v)
			continue
		}
		fb.emitLiteral(seg.text)
	}
	return ir.ConstZero
}

type formatSeg struct {
	text  string
	isArg bool
}

// splitFormat turns a printf format string into literal/placeholder
// segments, resolving the \n escape to a literal newline byte (the
// lexer already resolved backslash escapes inside the source string
// literal itself is NOT the case here: printf's format argument keeps
// its escapes literal in the AST until this point, matching how the
// original treats the format string as opaque until code generation).
func splitFormat(s string) []formatSeg {
	var segs []formatSeg
	var buf []byte
	flush := func() {
		if len(buf) > 0 {
			segs = append(segs, formatSeg{text: string(buf)})
			buf = nil
		}
	}
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+1 < len(s) && s[i+1] == 'd' {
			flush()
			segs = append(segs, formatSeg{isArg: true})
			i++
			continue
		}
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				buf = append(buf, '\n')
				i++
				continue
			case 't':
				buf = append(buf, '\t')
				i++
				continue
			case '"':
				buf = append(buf, '"')
				i++
				continue
			case '\\':
				buf = append(buf, '\\')
				i++
				continue
			}
		}
		buf = append(buf, s[i])
	}
	flush()
	return segs
}

func (fb *fnBuilder) emitPutint(v ir.Value) {
	fn := fb.b.mod.Intrinsics["putint"]
	fb.emit(ir.NewCall(fn, "putint", ir.Void, []ir.Value{v}))
}

// emitLiteral lowers one literal format segment: short segments become
// one putch per byte, long ones a single global-string putstr
// (spec.md §4.1).
func (fb *fnBuilder) emitLiteral(text string) {
	if len(text) <= putstrThreshold {
		putch := fb.b.mod.Intrinsics["putch"]
		for i := 0; i < len(text); i++ {
			fb.emit(ir.NewCall(putch, "putch", ir.Void, []ir.Value{ir.NewConst(int32(text[i]))}))
		}
		return
	}
	sc := fb.b.mod.InternString([]byte(text))
	g := fb.b.internStringGlobal(sc)
	ptr := fb.emit(ir.NewGetElementPtr(g, []ir.Value{ir.ConstZero, ir.ConstZero}, g.Name))
	putstr := fb.b.mod.Intrinsics["putstr"]
	fb.emit(ir.NewCall(putstr, "putstr", ir.Void, []ir.Value{ptr}))
}
