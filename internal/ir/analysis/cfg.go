// Package analysis computes CFG-derived facts over internal/ir
// functions: reverse postorder, dominator trees, dominance frontiers,
// and natural loops. These feed mem2reg, GVN/GCM and the loop-unroll
// pass (spec.md §4.3, §4.6, §4.9).
package analysis

import "sysyc/internal/ir"

// Info is the per-function analysis result, rebuilt by callers after
// any pass that changes the CFG (ir.RebuildCFG, then analysis.Build).
type Info struct {
	Func *ir.Function

	// RPO is every reachable block in reverse-postorder; unreachable
	// blocks are omitted entirely; such blocks are swept by DCE.
	RPO []*ir.BasicBlock

	index map[*ir.BasicBlock]int // position within RPO
	IDom  []*ir.BasicBlock       // parallel to RPO; IDom[0] (entry) is nil
	Dom   [][]*ir.BasicBlock     // parallel to RPO: blocks this one dominates (children in dom tree)
	DF    [][]*ir.BasicBlock     // parallel to RPO: dominance frontier

	Loops []*Loop
}

// Build runs CFG + dominance + loop analysis on fn. fn's Preds/Succs
// must already be current (call ir.RebuildCFG first).
func Build(fn *ir.Function) *Info {
	info := &Info{Func: fn}
	info.computeRPO()
	info.computeDominators()
	info.computeDominanceFrontiers()
	info.computeLoops()
	return info
}

func (info *Info) computeRPO() {
	entry := info.Func.Entry()
	if entry == nil {
		return
	}
	visited := map[*ir.BasicBlock]bool{}
	var post []*ir.BasicBlock
	var visit func(b *ir.BasicBlock)
	visit = func(b *ir.BasicBlock) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range b.Succs {
			visit(s)
		}
		post = append(post, b)
	}
	visit(entry)
	info.RPO = make([]*ir.BasicBlock, len(post))
	for i, b := range post {
		info.RPO[len(post)-1-i] = b
	}
	info.index = make(map[*ir.BasicBlock]int, len(info.RPO))
	for i, b := range info.RPO {
		info.index[b] = i
	}
}

// Index returns b's position in reverse postorder, or -1 if
// unreachable.
func (info *Info) Index(b *ir.BasicBlock) int {
	if i, ok := info.index[b]; ok {
		return i
	}
	return -1
}

func (info *Info) Reachable(b *ir.BasicBlock) bool {
	_, ok := info.index[b]
	return ok
}
