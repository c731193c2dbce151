package opt

import (
	"strconv"
	"strings"

	"sysyc/internal/ir"
	"sysyc/internal/ir/analysis"
)

// isPure reports whether in is safe to value-number: redundant
// occurrences can be replaced by an earlier one without changing
// observable behavior (spec.md §4.5). Load/Store/Call/Alloca/Phi are
// excluded: loads may observe an intervening store, calls may have
// side effects, and phi/alloca identity is positional rather than
// structural.
func isPure(in *ir.Instruction) bool {
	switch in.Op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpSdiv, ir.OpSrem, ir.OpIcmp,
		ir.OpGetElementPtr, ir.OpZext, ir.OpTrunc:
		return true
	}
	return false
}

func commutative(op ir.Opcode) bool {
	return op == ir.OpAdd || op == ir.OpMul
}

// vnKey builds a canonical string key for in: same opcode, same
// operands (by identity — a *ir.Const compares by its integer value, a
// *ir.Instruction by its own already-assigned key via vn, everything
// else via its pointer identity) and, for commutative operators, the
// operand pair sorted so a+b and b+a collide (spec.md §4.5: "commutative
// operators hash their operands as an unordered multiset").
func vnKey(in *ir.Instruction, numberOf map[ir.Value]string) string {
	var b strings.Builder
	b.WriteString(in.Op.String())
	if in.Op == ir.OpIcmp {
		b.WriteByte(':')
		b.WriteString(in.Cond.String())
	}
	if in.Op == ir.OpGetElementPtr {
		b.WriteByte(':')
		b.WriteString(in.GEPName)
	}
	ops := make([]string, in.NumOperands())
	for i := 0; i < in.NumOperands(); i++ {
		ops[i] = operandKey(in.Operand(i), numberOf)
	}
	if commutative(in.Op) && len(ops) == 2 && ops[0] > ops[1] {
		ops[0], ops[1] = ops[1], ops[0]
	}
	for _, o := range ops {
		b.WriteByte('|')
		b.WriteString(o)
	}
	return b.String()
}

func operandKey(v ir.Value, numberOf map[ir.Value]string) string {
	switch x := v.(type) {
	case *ir.Const:
		return "c" + strconv.Itoa(int(x.Val))
	case *ir.Instruction:
		if k, ok := numberOf[x]; ok {
			return "v" + k
		}
		return "i" + strconv.Itoa(x.ValueID())
	default:
		return "p" + strconv.Itoa(v.ValueID())
	}
}

// LVN is per-block local value numbering: redundant pure computations
// within a single block collapse to the first occurrence (spec.md
// §4.5). The table is discarded at each block boundary.
func LVN(fn *ir.Function) bool {
	changed := false
	for _, b := range fn.Blocks {
		table := map[string]ir.Value{}
		numberOf := map[ir.Value]string{}
		for _, in := range append([]*ir.Instruction(nil), b.Insts...) {
			if !isPure(in) {
				continue
			}
			key := vnKey(in, numberOf)
			if existing, ok := table[key]; ok {
				in.ReplaceAllUsesWith(existing)
				b.RemoveInst(in)
				changed = true
				continue
			}
			table[key] = in
			numberOf[in] = key
		}
	}
	return changed
}

// GVN extends LVN across the whole function by walking the dominator
// tree: a block inherits its idom's value table, so a computation
// repeated in a dominated block (even across block boundaries) is
// recognized as redundant, and a fresh copy is taken per sibling
// subtree so no false collision occurs between blocks that don't
// dominate each other (spec.md §4.5).
func GVN(fn *ir.Function) bool {
	ir.RebuildCFG(fn)
	info := analysis.Build(fn)
	changed := false

	var walk func(b *ir.BasicBlock, table map[string]ir.Value, numberOf map[ir.Value]string)
	walk = func(b *ir.BasicBlock, table map[string]ir.Value, numberOf map[ir.Value]string) {
		localTable := make(map[string]ir.Value, len(table))
		for k, v := range table {
			localTable[k] = v
		}
		localNumberOf := make(map[ir.Value]string, len(numberOf))
		for k, v := range numberOf {
			localNumberOf[k] = v
		}
		for _, in := range append([]*ir.Instruction(nil), b.Insts...) {
			if !isPure(in) {
				continue
			}
			key := vnKey(in, localNumberOf)
			if existing, ok := localTable[key]; ok {
				in.ReplaceAllUsesWith(existing)
				b.RemoveInst(in)
				changed = true
				continue
			}
			localTable[key] = in
			localNumberOf[in] = key
		}
		for _, c := range info.Children(b) {
			walk(c, localTable, localNumberOf)
		}
	}
	walk(fn.Entry(), map[string]ir.Value{}, map[ir.Value]string{})
	return changed
}
