package opt

import "sysyc/internal/mir"

// MergeBlocks folds a block into its single predecessor when that
// predecessor's only successor is this block and this block is this
// predecessor's only predecessor (spec.md §4.12's block-rearrangement
// group): the predecessor's trailing unconditional branch is dropped
// and the successor's instructions are appended directly, same
// simplification internal/ir/opt/dce.go's aggressive pass performs at
// the IR level for an always-taken edge.
func MergeBlocks(mf *mir.MFunction) bool {
	changed := false
	for _, b := range append([]*mir.MBasicBlock(nil), mf.Blocks...) {
		if len(b.Preds) != 1 {
			continue
		}
		p := b.Preds[0]
		if len(p.Succs) != 1 || p == b {
			continue
		}
		if term := p.Insts[len(p.Insts)-1]; term.Op != mir.MB {
			continue
		}
		p.Insts = p.Insts[:len(p.Insts)-1]
		p.Insts = append(p.Insts, b.Insts...)
		p.Succs = b.Succs
		for _, s := range b.Succs {
			for i, pr := range s.Preds {
				if pr == b {
					s.Preds[i] = p
				}
			}
		}
		mf.RemoveBlock(b)
		changed = true
	}
	return changed
}

// Reorder rewrites mf.Blocks into a layout order that favors
// fall-through for the successor at the deepest loop nesting (spec.md
// §4.12: a loop body should fall through from its header rather than
// jump, since the jump executes every iteration). The entry block
// always stays first. A trailing unconditional MB whose target ends
// up immediately next in the new order is then deleted (tail-jump
// elimination).
func Reorder(mf *mir.MFunction) bool {
	if len(mf.Blocks) == 0 {
		return false
	}
	visited := map[*mir.MBasicBlock]bool{}
	var order []*mir.MBasicBlock
	var walk func(b *mir.MBasicBlock)
	walk = func(b *mir.MBasicBlock) {
		if visited[b] {
			return
		}
		visited[b] = true
		order = append(order, b)
		succs := append([]*mir.MBasicBlock(nil), b.Succs...)
		sortByLoopDepthDesc(succs)
		for _, s := range succs {
			walk(s)
		}
	}
	walk(mf.Entry())
	for _, b := range mf.Blocks {
		walk(b)
	}
	changed := !sameOrder(mf.Blocks, order)
	mf.Blocks = order
	if eliminateTailJumps(mf) {
		changed = true
	}
	return changed
}

func sortByLoopDepthDesc(bs []*mir.MBasicBlock) {
	for i := 1; i < len(bs); i++ {
		for j := i; j > 0 && bs[j].LoopDepth > bs[j-1].LoopDepth; j-- {
			bs[j], bs[j-1] = bs[j-1], bs[j]
		}
	}
}

func sameOrder(a, b []*mir.MBasicBlock) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func eliminateTailJumps(mf *mir.MFunction) bool {
	changed := false
	for i, b := range mf.Blocks {
		if len(b.Insts) == 0 {
			continue
		}
		last := b.Insts[len(b.Insts)-1]
		if last.Op != mir.MB || len(last.Operands) != 1 {
			continue
		}
		target := last.Operands[0].Block
		if i+1 < len(mf.Blocks) && mf.Blocks[i+1] == target {
			b.Insts = b.Insts[:len(b.Insts)-1]
			changed = true
		}
	}
	return changed
}
