package ir

// Param is a function argument value, live at the function's entry
// block without any defining instruction.
type Param struct {
	valueBase
	Name string
}

func NewParam(name string, typ Type) *Param {
	return &Param{valueBase: valueBase{typ: typ}, Name: name}
}

// Function is a sequence of basic blocks with a fixed parameter list
// (spec.md §3). Intrinsics (getint/putint/putch/putstr/printf) carry
// no Blocks; they exist only so Call sites can resolve a *Function.
type Function struct {
	valueBase
	Name      string
	RetType   Type
	Params    []*Param
	Blocks    []*BasicBlock
	Intrinsic bool
	Variadic  bool // printf only

	// CallSites is every call site that targets this function, maintained
	// by the builder so the inliner (spec.md §4.7) and partial evaluator
	// can walk the call graph without a fresh scan.
	CallSites []*Instruction

	nextBlockID int
}

func NewFunction(name string, ret Type, params []*Param) *Function {
	return &Function{
		valueBase: valueBase{typ: ret},
		Name:      name,
		RetType:   ret,
		Params:    params,
	}
}

// NewBlock creates and appends a fresh block named hint plus a
// per-function number (entry.0, for.cond.3, ...; "bb" stands in for an
// empty hint).
func (f *Function) NewBlock(hint string) *BasicBlock {
	id := f.nextBlockID
	f.nextBlockID++
	name := hint
	if name == "" {
		name = "bb"
	}
	name = name + "." + itoa(id)
	b := newBlock(name)
	b.Func = f
	f.Blocks = append(f.Blocks, b)
	return b
}

// Entry is the function's first block, or nil if it has none yet.
func (f *Function) Entry() *BasicBlock {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// RemoveBlock detaches b from the function's block list. Callers must
// have already redirected or removed all branches into b; RemoveBlock
// itself leaves every block's Preds/Succs as they are.
func (f *Function) RemoveBlock(b *BasicBlock) {
	for i, x := range f.Blocks {
		if x == b {
			f.Blocks = append(f.Blocks[:i], f.Blocks[i+1:]...)
			return
		}
	}
}

// AllInstructions yields every instruction across every block in
// layout order, the iteration order most passes (LVN, DCE, printing)
// want.
func (f *Function) AllInstructions() []*Instruction {
	var out []*Instruction
	for _, b := range f.Blocks {
		out = append(out, b.Insts...)
	}
	return out
}
