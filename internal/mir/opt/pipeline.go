package opt

import "sysyc/internal/mir"

// Run drives the machine-IR passes to a fixpoint per function, then
// does the two structural rewrites that must run exactly once and in
// a fixed order: splitting critical edges (a prerequisite for correct
// phi elimination) and phi elimination itself, followed by block
// layout. internal/mir/regalloc runs after this, on phi-free code with
// its final CFG shape already settled.
func Run(mm *mir.MModule) {
	for _, mf := range mm.Funcs {
		mir.RebuildCFG(mf)
		for {
			changed := false
			if LVN(mf) {
				changed = true
			}
			if Peephole(mf) {
				changed = true
			}
			if StrengthReduce(mf) {
				changed = true
			}
			if !changed {
				break
			}
		}
		if SplitCriticalEdges(mf) {
			mir.RebuildCFG(mf)
		}
		PhiElim(mf)
		for MergeBlocks(mf) {
			mir.RebuildCFG(mf)
		}
		Reorder(mf)
		mir.RebuildCFG(mf)
	}
}
