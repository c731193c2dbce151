package regalloc

import "sysyc/internal/mir"

// Run allocates registers for every function in mm and then performs
// frame-pointer elimination once each function's final frame size is
// known (spec.md §4.13-§4.14).
func Run(mm *mir.MModule) {
	for _, mf := range mm.Funcs {
		mir.RebuildCFG(mf)
		Allocate(mf)
		EliminateFramePointer(mf)
	}
}
