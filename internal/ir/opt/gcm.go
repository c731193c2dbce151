package opt

import (
	"sysyc/internal/ir"
	"sysyc/internal/ir/analysis"
)

// pinned reports whether in must stay exactly where it is: every
// side-effecting op (load, store, call, alloca), every phi (its
// position is the join point itself) and every terminator (spec.md
// §4.6's GCM only ever moves the pure arithmetic/comparison/address
// computations that mem2reg and LVN/GVN leave behind).
func pinned(in *ir.Instruction) bool {
	switch in.Op {
	case ir.OpLoad, ir.OpStore, ir.OpCall, ir.OpAlloca, ir.OpPhi, ir.OpBr, ir.OpRet:
		return true
	}
	return false
}

type gcmState struct {
	info     *analysis.Info
	depth    map[*ir.BasicBlock]int
	loopOf   map[*ir.BasicBlock]*analysis.Loop
	sched    map[*ir.Instruction]*ir.BasicBlock
	visiting map[*ir.Instruction]bool
}

// GCM schedules every unpinned (pure) instruction in fn to the block
// that dominates all its uses with the shallowest loop nesting
// possible, following Click's classic early/late scheduling (spec.md
// §4.6): schedule-early places a value as close to the entry as
// dominance over its operands allows, schedule-late sinks it back down
// to the lowest common ancestor of its uses, and the final block is
// chosen along the dominator-tree path between the two with the least
// loop depth.
func GCM(fn *ir.Function) bool {
	ir.RebuildCFG(fn)
	info := analysis.Build(fn)

	st := &gcmState{
		info:     info,
		depth:    map[*ir.BasicBlock]int{},
		loopOf:   map[*ir.BasicBlock]*analysis.Loop{},
		sched:    map[*ir.Instruction]*ir.BasicBlock{},
		visiting: map[*ir.Instruction]bool{},
	}
	st.computeDepths(fn.Entry(), 0)
	for _, l := range info.Loops {
		for _, b := range l.Body {
			if cur, ok := st.loopOf[b]; !ok || l.Depth > cur.Depth {
				st.loopOf[b] = l
			}
		}
	}

	changed := false
	for _, b := range fn.Blocks {
		for _, in := range b.Insts {
			if pinned(in) {
				continue
			}
			early := st.scheduleEarly(in)
			st.sched[in] = early
		}
	}
	for _, b := range fn.Blocks {
		for _, in := range append([]*ir.Instruction(nil), b.Insts...) {
			if pinned(in) {
				continue
			}
			target := st.scheduleLate(in)
			if target != nil && target != in.Block {
				in.Block.RemoveInstKeepUses(in)
				// Place in before its first non-phi user in target, or
				// else before target's terminator (never after it).
				pos := len(target.Insts)
				if target.Terminator() != nil {
					pos--
				}
			find:
				for i, x := range target.Insts[:pos] {
					for j := 0; x.Op != ir.OpPhi && j < x.NumOperands(); j++ {
						if x.Operand(j) == ir.Value(in) {
							pos = i
							break find
						}
					}
				}
				target.InsertBefore(pos, in)
				changed = true
			}
		}
	}
	return changed
}

func (st *gcmState) computeDepths(b *ir.BasicBlock, d int) {
	if b == nil {
		return
	}
	if _, ok := st.depth[b]; ok {
		return
	}
	st.depth[b] = d
	for _, c := range st.info.Children(b) {
		st.computeDepths(c, d+1)
	}
}

func (st *gcmState) loopDepth(b *ir.BasicBlock) int {
	if l, ok := st.loopOf[b]; ok {
		return l.Depth + 1
	}
	return 0
}

func (st *gcmState) scheduleEarly(in *ir.Instruction) *ir.BasicBlock {
	if b, ok := st.sched[in]; ok {
		return b
	}
	if st.visiting[in] {
		// A cycle can only happen through a phi, which is pinned and
		// never reaches here; defensive fallback to the entry block.
		return st.info.Func.Entry()
	}
	st.visiting[in] = true
	defer delete(st.visiting, in)

	best := st.info.Func.Entry()
	for i := 0; i < in.NumOperands(); i++ {
		dep, ok := in.Operand(i).(*ir.Instruction)
		if !ok || dep.Block == nil {
			continue
		}
		var depBlock *ir.BasicBlock
		if pinned(dep) {
			depBlock = dep.Block
		} else {
			depBlock = st.scheduleEarly(dep)
		}
		if st.depth[depBlock] > st.depth[best] {
			best = depBlock
		}
	}
	return best
}

func (st *gcmState) scheduleLate(in *ir.Instruction) *ir.BasicBlock {
	early := st.sched[in]
	var lca *ir.BasicBlock
	for _, u := range in.UseList() {
		useBlock := u.User.Block
		if u.User.Op == ir.OpPhi {
			idx := -1
			for i, o := range u.User.Operands {
				if o == u {
					idx = i
					break
				}
			}
			if idx >= 0 && idx < len(u.User.PhiPreds) {
				useBlock = u.User.PhiPreds[idx]
			}
		}
		if useBlock == nil {
			continue
		}
		if lca == nil {
			lca = useBlock
		} else {
			lca = st.lca(lca, useBlock)
		}
	}
	if lca == nil {
		return early
	}

	best := lca
	cur := lca
	for cur != nil && cur != early {
		parent := st.info.IDomOf(cur)
		if parent == nil {
			break
		}
		if st.loopDepth(parent) <= st.loopDepth(best) {
			best = parent
		}
		cur = parent
	}
	if st.loopDepth(early) < st.loopDepth(best) {
		best = early
	}
	return best
}

func (st *gcmState) lca(a, b *ir.BasicBlock) *ir.BasicBlock {
	for st.depth[a] > st.depth[b] {
		a = st.info.IDomOf(a)
	}
	for st.depth[b] > st.depth[a] {
		b = st.info.IDomOf(b)
	}
	for a != b {
		a = st.info.IDomOf(a)
		b = st.info.IDomOf(b)
	}
	return a
}
