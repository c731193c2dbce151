package mir

import (
	"fmt"
	"io"
	"strings"
)

// Print renders the whole machine-IR module as a textual listing for
// the -dump-mir CLI flag (SPEC_FULL.md §11). Like internal/ir.Print,
// this is a debug listing, not a re-parseable format; real assembly
// comes from internal/asmprint once registers are allocated.
func Print(w io.Writer, mm *MModule) {
	for _, g := range mm.Globals {
		printGlobal(w, g)
	}
	for _, fn := range mm.Funcs {
		printFunc(w, fn)
	}
}

func printGlobal(w io.Writer, g *MGlobal) {
	if g.IsAscii {
		fmt.Fprintf(w, "@%s = ascii %q\n", g.Name, g.Bytes)
		return
	}
	fmt.Fprintf(w, "@%s = word %v\n", g.Name, g.Words)
}

func printFunc(w io.Writer, fn *MFunction) {
	fmt.Fprintf(w, "mfunc @%s(%d) frame=%d {\n", fn.Name, fn.NumParams, fn.Frame.Size)
	for _, b := range fn.Blocks {
		fmt.Fprintf(w, "%s:\n", b.Name)
		for _, in := range b.Insts {
			fmt.Fprintf(w, "  %s\n", instrString(in))
		}
	}
	fmt.Fprintln(w, "}")
}

func regString(r Reg) string {
	if r.IsPhysical() {
		return RegName(r.Num)
	}
	return fmt.Sprintf("%%v%d", r.Num)
}

func operandString(o Operand) string {
	switch o.Kind {
	case OImm:
		return fmt.Sprintf("%d", o.Imm)
	case OReg:
		return regString(o.Reg)
	case OLabel:
		if o.Block != nil {
			return o.Block.Name
		}
		return "<block>"
	case OFunc:
		if o.Func != nil {
			return "@" + o.Func.Name
		}
		return "<func>"
	case OSym:
		return "@" + o.Sym
	default:
		return "?"
	}
}

func instrString(in *MInstruction) string {
	var operands []string
	for _, o := range in.Operands {
		operands = append(operands, operandString(o))
	}
	args := strings.Join(operands, ", ")
	s := fmt.Sprintf("%s %s", opName(in.Op), args)
	if in.Comment != "" {
		s += " ; " + in.Comment
	}
	return s
}

func opName(op MOp) string {
	switch op {
	case MAddu:
		return "addu"
	case MAddiu:
		return "addiu"
	case MSubu:
		return "subu"
	case MMul:
		return "mul"
	case MDiv:
		return "div"
	case MRem:
		return "rem"
	case MMulhs:
		return "mulhs"
	case MAnd:
		return "and"
	case MOr:
		return "or"
	case MXor:
		return "xor"
	case MNor:
		return "nor"
	case MSll:
		return "sll"
	case MSra:
		return "sra"
	case MSrl:
		return "srl"
	case MSlt:
		return "slt"
	case MSltu:
		return "sltu"
	case MSlti:
		return "slti"
	case MSeq:
		return "seq"
	case MSne:
		return "sne"
	case MSgt:
		return "sgt"
	case MSle:
		return "sle"
	case MSge:
		return "sge"
	case MLw:
		return "lw"
	case MSw:
		return "sw"
	case MLa:
		return "la"
	case MLi:
		return "li"
	case MMove:
		return "move"
	case MJ:
		return "j"
	case MJal:
		return "jal"
	case MJr:
		return "jr"
	case MJr_ra:
		return "jr $ra"
	case MB:
		return "b"
	case MBeq:
		return "beq"
	case MBne:
		return "bne"
	case MBlt:
		return "blt"
	case MBgt:
		return "bgt"
	case MBle:
		return "ble"
	case MBge:
		return "bge"
	case MSyscall:
		return "syscall"
	case MPhi:
		return "phi"
	case MCopy:
		return "copy"
	case MLabel:
		return "label"
	default:
		return "?"
	}
}
