package ir

// Instruction is every non-label, non-constant Value: the sum type of
// spec.md §3's instruction opcodes. Operands are held as a slice of
// *Use rather than an intrusive operand list; PhiPreds runs parallel
// to Operands for OpPhi only.
type Instruction struct {
	valueBase
	Op       Opcode
	Block    *BasicBlock
	Operands []*Use
	NoDef    bool // true for Store, Br, Ret: defines no value, ValueType is Void

	Cond     ICmpCond      // OpIcmp only
	PhiPreds []*BasicBlock // OpPhi only, same length and order as Operands
	Callee   *Function     // OpCall only; nil for an indirect/intrinsic-by-name call is not modeled, sysy has no function pointers
	CalleeName string      // OpCall only, always set (intrinsics have no *Function)
	GEPName  string        // OpGetElementPtr only: base symbol name, for diagnostics/printing
}

func newInstr(op Opcode, typ Type, operands []Value) *Instruction {
	in := &Instruction{valueBase: valueBase{typ: typ}, Op: op}
	in.Operands = make([]*Use, len(operands))
	for i, v := range operands {
		in.Operands[i] = newUse(in, i, v)
	}
	return in
}

// SetOperand replaces operand i, maintaining invariant I2.
func (in *Instruction) SetOperand(i int, v Value) {
	in.Operands[i].Set(v)
}

func (in *Instruction) Operand(i int) Value {
	if i < 0 || i >= len(in.Operands) {
		return nil
	}
	return in.Operands[i].Value
}

func (in *Instruction) NumOperands() int { return len(in.Operands) }

// ReplaceAllUsesWith redirects every use of in to point at v instead,
// leaving in's own Operands untouched. Used by mem2reg, LVN/GVN and DCE
// to retire a value without walking the whole function (spec.md §4.3,
// §4.5).
func (in *Instruction) ReplaceAllUsesWith(v Value) {
	for _, u := range append([]*Use(nil), in.uses...) {
		u.Set(v)
	}
}

func (in *Instruction) IsTerminator() bool {
	return in.Op == OpBr || in.Op == OpRet
}

// --- constructors; each appends nothing to a block, callers append via
// BasicBlock.Append / BasicBlock.InsertBefore (block.go) ---

func NewBinOp(op Opcode, lhs, rhs Value) *Instruction {
	return newInstr(op, Int32, []Value{lhs, rhs})
}

func NewIcmp(cond ICmpCond, lhs, rhs Value) *Instruction {
	in := newInstr(OpIcmp, Int32, []Value{lhs, rhs})
	in.Cond = cond
	return in
}

// NewAlloca reserves stack storage of type elemType (possibly an
// array type); the instruction's own value type is a pointer to it
// (spec.md §3: Alloca's result models the address of the slot).
func NewAlloca(elemType Type) *Instruction {
	in := newInstr(OpAlloca, PointerTo(elemType), nil)
	return in
}

func NewLoad(addr Value) *Instruction {
	var elem Type
	if pt := addr.ValueType(); pt.Kind == TPointer {
		elem = *pt.Elem
	} else {
		elem = Int32
	}
	return newInstr(OpLoad, elem, []Value{addr})
}

func NewStore(val, addr Value) *Instruction {
	in := newInstr(OpStore, Void, []Value{val, addr})
	in.NoDef = true
	return in
}

// NewGetElementPtr computes addr + sum(indices[i] * stride_i) as a
// pointer of the final element type (spec.md §4.10.4's address-math
// lowering operates over this node's operand chain directly).
func NewGetElementPtr(base Value, indices []Value, name string) *Instruction {
	operands := make([]Value, 0, len(indices)+1)
	operands = append(operands, base)
	operands = append(operands, indices...)
	resultElem := elemAfterIndices(base.ValueType(), len(indices))
	in := newInstr(OpGetElementPtr, PointerTo(resultElem), operands)
	in.GEPName = name
	return in
}

func elemAfterIndices(t Type, n int) Type {
	cur := t
	for i := 0; i < n; i++ {
		switch cur.Kind {
		case TPointer, TArray:
			cur = *cur.Elem
		default:
			return cur
		}
	}
	return cur
}

func NewCall(fn *Function, name string, retType Type, args []Value) *Instruction {
	in := newInstr(OpCall, retType, args)
	in.Callee = fn
	in.CalleeName = name
	if retType.Kind == TVoid {
		in.NoDef = true
	}
	return in
}

// NewPhi creates an empty phi; incoming pairs are added with AddIncoming
// once predecessor blocks are finalized (spec.md §4.3 mem2reg's phi
// insertion happens before all predecessor edges are known).
func NewPhi(typ Type) *Instruction {
	return newInstr(OpPhi, typ, nil)
}

func (in *Instruction) AddIncoming(pred *BasicBlock, val Value) {
	idx := len(in.Operands)
	in.Operands = append(in.Operands, newUse(in, idx, val))
	in.PhiPreds = append(in.PhiPreds, pred)
}

// IncomingFor returns the value Phi receives along edge pred, and
// whether such an edge exists.
func (in *Instruction) IncomingFor(pred *BasicBlock) (Value, bool) {
	for i, p := range in.PhiPreds {
		if p == pred {
			return in.Operand(i), true
		}
	}
	return nil, false
}

func NewZext(v Value) *Instruction {
	return newInstr(OpZext, Int32, []Value{v})
}

func NewTrunc(v Value) *Instruction {
	return newInstr(OpTrunc, Int32, []Value{v})
}

// NewBr with a single target is unconditional; with three it is
// conditional (cond, then-target, else-target), per spec.md §3's Br
// entity (operand count is the discriminant rather than a separate tag).
func NewBr(target *BasicBlock) *Instruction {
	in := newInstr(OpBr, Void, []Value{target})
	in.NoDef = true
	return in
}

func NewCondBr(cond Value, then, els *BasicBlock) *Instruction {
	in := newInstr(OpBr, Void, []Value{cond, then, els})
	in.NoDef = true
	return in
}

func (in *Instruction) IsConditional() bool {
	return in.Op == OpBr && len(in.Operands) == 3
}

func (in *Instruction) BrTargets() (then, els *BasicBlock) {
	if in.Op != OpBr {
		return nil, nil
	}
	if in.IsConditional() {
		return in.Operand(1).(*BasicBlock), in.Operand(2).(*BasicBlock)
	}
	return in.Operand(0).(*BasicBlock), nil
}

func NewRet(val Value) *Instruction {
	var ops []Value
	if val != nil {
		ops = []Value{val}
	}
	in := newInstr(OpRet, Void, ops)
	in.NoDef = true
	return in
}
