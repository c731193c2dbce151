package ir

// BasicBlock is a maximal straight-line instruction sequence ending in
// exactly one terminator (spec.md §3 I3). It is itself a Value of type
// Label so it can appear as a Br/Phi operand.
type BasicBlock struct {
	valueBase
	Name  string
	Func  *Function
	Insts []*Instruction
	Preds []*BasicBlock
	Succs []*BasicBlock
}

func newBlock(name string) *BasicBlock {
	return &BasicBlock{valueBase: valueBase{typ: Label}, Name: name}
}

// Append adds in as the new last instruction. Appending after a
// terminator is a builder bug (spec.md §3 I3); callers in internal/ir/build
// never call Append once a terminator has been emitted for the block.
func (b *BasicBlock) Append(in *Instruction) *Instruction {
	in.Block = b
	b.Insts = append(b.Insts, in)
	return in
}

// InsertBefore splices in immediately before the instruction at index i.
func (b *BasicBlock) InsertBefore(i int, in *Instruction) {
	in.Block = b
	b.Insts = append(b.Insts, nil)
	copy(b.Insts[i+1:], b.Insts[i:])
	b.Insts[i] = in
}

func (b *BasicBlock) Terminator() *Instruction {
	if len(b.Insts) == 0 {
		return nil
	}
	last := b.Insts[len(b.Insts)-1]
	if last.IsTerminator() {
		return last
	}
	return nil
}

// RemoveInst deletes in from the block, detaching its operand uses.
// Callers must ensure in has no remaining uses first (DCE checks this).
func (b *BasicBlock) RemoveInst(in *Instruction) {
	for i, x := range b.Insts {
		if x == in {
			for _, u := range in.Operands {
				u.Set(nil)
			}
			b.Insts = append(b.Insts[:i], b.Insts[i+1:]...)
			return
		}
	}
}

// RemoveInstKeepUses removes in from the block's instruction list
// without touching its operand uses, for passes that relocate an
// instruction rather than delete it (GCM).
func (b *BasicBlock) RemoveInstKeepUses(in *Instruction) {
	for i, x := range b.Insts {
		if x == in {
			b.Insts = append(b.Insts[:i], b.Insts[i+1:]...)
			return
		}
	}
}

// Index returns this block's position in its function's block list, or
// -1 if detached. Used by the block-layout pass (spec.md §4.12) and by
// dominance numbering.
func (b *BasicBlock) Index() int {
	if b.Func == nil {
		return -1
	}
	for i, x := range b.Func.Blocks {
		if x == b {
			return i
		}
	}
	return -1
}

// addEdge/removeEdge edit a single CFG edge. RebuildCFG is the only
// caller (of addEdge), never instruction construction itself: the CFG
// is derived from terminators, not maintained incrementally by Append.
func addEdge(from, to *BasicBlock) {
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
}

func removeEdge(from, to *BasicBlock) {
	for i, s := range from.Succs {
		if s == to {
			from.Succs = append(from.Succs[:i], from.Succs[i+1:]...)
			break
		}
	}
	for i, p := range to.Preds {
		if p == from {
			to.Preds = append(to.Preds[:i], to.Preds[i+1:]...)
			break
		}
	}
}

// RebuildCFG recomputes Preds/Succs for every block in fn from its
// terminators. Cheap and idempotent enough to call after any pass that
// rewrites branches rather than threading edge updates through every
// call site (spec.md §9 leaves CFG maintenance strategy unspecified).
func RebuildCFG(fn *Function) {
	for _, b := range fn.Blocks {
		b.Preds = nil
		b.Succs = nil
	}
	for _, b := range fn.Blocks {
		term := b.Terminator()
		if term == nil {
			continue
		}
		switch term.Op {
		case OpBr:
			then, els := term.BrTargets()
			addEdge(b, then)
			if els != nil {
				addEdge(b, els)
			}
		}
	}
}
