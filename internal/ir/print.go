package ir

import (
	"fmt"
	"io"
	"strings"
)

// Print renders the whole module as a textual IR listing for the
// -dump-ir CLI flag (SPEC_FULL.md §11). The format is not meant to be
// re-parsed; it exists for diffing against golden files in tests.
func Print(w io.Writer, m *Module) {
	p := &printer{w: w, names: map[Value]string{}}
	for _, g := range m.Globals {
		p.printGlobal(g)
	}
	for _, fn := range m.Funcs {
		p.printFunc(fn)
	}
}

type printer struct {
	w     io.Writer
	names map[Value]string
	temps int
}

func (p *printer) printGlobal(g *Global) {
	kw := "global"
	if g.Const {
		kw = "const"
	}
	fmt.Fprintf(p.w, "@%s = %s %s %v\n", g.Name, kw, g.ElemType(), g.Init)
}

func (p *printer) printFunc(fn *Function) {
	var ps []string
	for _, prm := range fn.Params {
		ps = append(ps, prm.ValueType().String()+" %"+prm.Name)
	}
	fmt.Fprintf(p.w, "func @%s(%s) -> %s {\n", fn.Name, strings.Join(ps, ", "), fn.RetType)
	for _, b := range fn.Blocks {
		fmt.Fprintf(p.w, "%s:\n", b.Name)
		for _, in := range b.Insts {
			fmt.Fprintf(p.w, "  %s\n", p.instrString(in))
		}
	}
	fmt.Fprintln(p.w, "}")
}

func (p *printer) name(v Value) string {
	if v == nil {
		return "<nil>"
	}
	switch x := v.(type) {
	case *Const:
		return itoa(int(x.Val))
	case *StringConst:
		return fmt.Sprintf("%q", x.Data)
	case *BasicBlock:
		return x.Name
	case *Param:
		return "%" + x.Name
	case *Global:
		return "@" + x.Name
	}
	if n, ok := p.names[v]; ok {
		return n
	}
	n := fmt.Sprintf("%%t%d", p.temps)
	p.temps++
	p.names[v] = n
	return n
}

func (p *printer) instrString(in *Instruction) string {
	var operands []string
	for _, u := range in.Operands {
		operands = append(operands, p.name(u.Value))
	}
	args := strings.Join(operands, ", ")

	prefix := ""
	if !in.NoDef {
		prefix = p.name(in) + " = "
	}

	switch in.Op {
	case OpIcmp:
		return fmt.Sprintf("%sicmp.%s %s", prefix, in.Cond, args)
	case OpCall:
		return fmt.Sprintf("%scall @%s(%s)", prefix, in.CalleeName, args)
	case OpPhi:
		var pairs []string
		for i, pred := range in.PhiPreds {
			pairs = append(pairs, fmt.Sprintf("[%s, %s]", p.name(in.Operand(i)), pred.Name))
		}
		return fmt.Sprintf("%sphi %s", prefix, strings.Join(pairs, ", "))
	case OpGetElementPtr:
		return fmt.Sprintf("%sgetelementptr %s, %s", prefix, in.GEPName, args)
	default:
		return fmt.Sprintf("%s%s %s", prefix, in.Op, args)
	}
}
