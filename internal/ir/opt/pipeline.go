package opt

import "sysyc/internal/ir"

// Run drives every IR-level pass to a fixpoint (spec.md §5: "the
// pipeline re-runs until a full pass makes no further change,
// recorded by the module's Changed flag"). Module-wide passes
// (localization, inlining, partial evaluation) interleave with the
// per-function passes; each round starts from LocalizeGlobals/Inline/
// PartialEvaluate since those can expose fresh per-function work for
// mem2reg and friends.
//
// optimize gates everything past mem2reg (SPEC_FULL.md §11's -O0):
// mem2reg itself always runs, since it is how SSA form is built in
// the first place, not an optional cleanup.
func Run(mod *ir.Module, optimize bool) {
	if !optimize {
		for _, fn := range mod.Funcs {
			if !fn.Intrinsic {
				Mem2Reg(fn)
			}
		}
		return
	}
	for {
		mod.Changed = false
		if LocalizeGlobals(mod) {
			mod.Changed = true
		}
		if Inline(mod) {
			mod.Changed = true
		}
		if PartialEvaluate(mod) {
			mod.Changed = true
		}
		for _, fn := range mod.Funcs {
			if fn.Intrinsic {
				continue
			}
			if runFunctionPasses(fn) {
				mod.Changed = true
			}
		}
		if !mod.Changed {
			return
		}
	}
}

// runFunctionPasses runs the single-function pass group to its own
// local fixpoint: mem2reg only ever needs one pass per shape of
// allocas present, but constfold/LVN/GVN/GCM/unroll/array2var/DCE can
// each re-expose work for one another (a fold can make a phi trivial,
// which DCE then turns into a fresh fold opportunity upstream).
func runFunctionPasses(fn *ir.Function) bool {
	any := false
	for {
		changed := false
		if Mem2Reg(fn) {
			changed = true
		}
		if ConstFold(fn) {
			changed = true
		}
		if LVN(fn) {
			changed = true
		}
		if GVN(fn) {
			changed = true
		}
		if Array2Var(fn) {
			changed = true
		}
		if UnrollLoops(fn) {
			changed = true
		}
		if AggressiveDCE(fn) {
			changed = true
		}
		if GCM(fn) {
			changed = true
		}
		if changed {
			any = true
		} else {
			break
		}
	}
	return any
}
