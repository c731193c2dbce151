// Package opt holds the machine-IR passes that run after
// internal/mir/lower and before internal/mir/regalloc: local value
// numbering, peephole rewrites, multiply/divide strength reduction,
// phi elimination, and block layout (spec.md §4.10's closing
// paragraph through §4.12). Grounded the same way internal/ir/opt's
// LVN/peephole pair is: a single forward pass per block re-using the
// same canonical-key technique, now keyed on MOp/immediate/register
// identity instead of ir.Opcode/ir.Value identity.
package opt

import (
	"strconv"
	"strings"

	"sysyc/internal/mir"
)

// purePseudo reports whether in is safe to value-number: a pure
// arithmetic/compare form over only virtual registers and immediates,
// with no physical-register operand (those carry calling-convention
// meaning, not value identity) and no memory or control effect.
func purePseudo(in *mir.MInstruction) bool {
	switch in.Op {
	case mir.MAddu, mir.MAddiu, mir.MSubu, mir.MMul, mir.MDiv, mir.MRem,
		mir.MAnd, mir.MOr, mir.MXor, mir.MNor, mir.MSll, mir.MSra, mir.MSrl,
		mir.MSlt, mir.MSltu, mir.MSlti, mir.MSeq, mir.MSne, mir.MSgt, mir.MSle, mir.MSge:
	default:
		return false
	}
	if in.NoDef {
		return false
	}
	for _, o := range in.Operands {
		if o.Kind == mir.OReg && o.Reg.IsPhysical() {
			return false
		}
	}
	return true
}

func commutativeM(op mir.MOp) bool {
	return op == mir.MAddu || op == mir.MMul || op == mir.MAnd || op == mir.MOr || op == mir.MXor
}

// LVN runs local value numbering within each block (spec.md §4.5's
// machine-level counterpart): a repeated `addu $t2,$t0,$t1` or
// `slt $t3,$t0,$t1` collapses to the first occurrence's destination
// register, same as the IR-level pass but over machine operands.
func LVN(mf *mir.MFunction) bool {
	changed := false
	for _, b := range mf.Blocks {
		table := map[string]mir.Reg{}
		replace := map[mir.Reg]mir.Reg{}
		var kept []*mir.MInstruction
		for _, in := range b.Insts {
			substOperands(in, replace)
			if purePseudo(in) {
				key := lvnKey(in)
				if prior, ok := table[key]; ok {
					dst, _ := in.Def()
					replace[dst] = resolve(replace, prior)
					changed = true
					continue
				}
				dst, _ := in.Def()
				table[key] = dst
			}
			kept = append(kept, in)
		}
		b.Insts = kept
	}
	return changed
}

func resolve(replace map[mir.Reg]mir.Reg, r mir.Reg) mir.Reg {
	for {
		if n, ok := replace[r]; ok && n != r {
			r = n
			continue
		}
		return r
	}
}

func substOperands(in *mir.MInstruction, replace map[mir.Reg]mir.Reg) {
	start := 0
	if !in.NoDef {
		start = 1
	}
	for i := start; i < len(in.Operands); i++ {
		o := &in.Operands[i]
		if o.Kind == mir.OReg {
			o.Reg = resolve(replace, o.Reg)
		}
	}
}

func lvnKey(in *mir.MInstruction) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(in.Op)))
	ops := operandKeys(in, 1)
	if commutativeM(in.Op) && len(ops) == 2 && ops[0] > ops[1] {
		ops[0], ops[1] = ops[1], ops[0]
	}
	for _, k := range ops {
		b.WriteByte(':')
		b.WriteString(k)
	}
	return b.String()
}

func operandKeys(in *mir.MInstruction, start int) []string {
	out := make([]string, 0, len(in.Operands)-start)
	for i := start; i < len(in.Operands); i++ {
		out = append(out, operandKey(in.Operands[i]))
	}
	return out
}

func operandKey(o mir.Operand) string {
	switch o.Kind {
	case mir.OReg:
		if o.Reg.IsPhysical() {
			return "p" + strconv.Itoa(o.Reg.Num)
		}
		return "v" + strconv.Itoa(o.Reg.Num)
	case mir.OImm:
		return "i" + strconv.Itoa(int(o.Imm))
	case mir.OSym:
		return "s" + o.Sym
	case mir.OLabel:
		return "l" + o.Block.Name
	case mir.OFunc:
		return "f" + o.Func.Name
	}
	return "?"
}
