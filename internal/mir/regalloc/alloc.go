package regalloc

import (
	"sort"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"sysyc/internal/mir"
)

// sortedNodes returns a graph's still-live node ids in ascending order.
// st.g.Nodes is a Go map, so ranging over it directly would make the
// worklist steps below pick a different simplify/freeze/spill candidate
// from one run to the next whenever more than one node qualifies;
// sorting first makes allocation output deterministic across runs for
// the same input, independent of Go's randomized map iteration order.
func sortedNodes(nodes map[int]bool) []int {
	ks := maps.Keys(nodes)
	slices.Sort(ks)
	return ks
}

var K = len(mir.AllocatablePool)

// state carries one round's Chaitin-Briggs worklists (spec.md §4.13
// step 3): a node lives in exactly one of simplify/spill/coalesced/
// colored/selectStack at a time, tracked here with plain maps rather
// than the teacher's intrusive doubly-linked worklist nodes, since Go
// maps/slices serve the same role without the bookkeeping pointers.
type state struct {
	g       *Graph
	degree  map[int]int
	removed map[int]bool
	alias   map[int]int
	ranges  map[int]*LiveRange
	stack   []int
	spilled map[int]bool
	moves   []MoveEdge
}

// Allocate colors mf's virtual registers to the 18-register
// allocatable pool, spilling and retrying until every virtual register
// fits, then rewrites every operand to its assigned physical register
// and records the callee-saved set the prologue/epilogue must save
// (spec.md §4.13 steps 1-7). It must run after internal/mir/opt's
// PhiElim — this allocator has no notion of a phi instruction.
func Allocate(mf *mir.MFunction) {
	for {
		live := Compute(mf)
		g := Build(mf, live)
		ranges := Ranges(mf, live)
		st := &state{
			g:       g,
			degree:  map[int]int{},
			removed: map[int]bool{},
			alias:   map[int]int{},
			ranges:  ranges,
			spilled: map[int]bool{},
			moves:   append([]MoveEdge(nil), g.Moves...),
		}
		for n := range g.Nodes {
			st.degree[n] = g.Degree(n)
		}
		st.run()
		colors, actualSpills := st.assignColors()
		if len(actualSpills) > 0 {
			rewriteSpills(mf, actualSpills, ranges)
			continue
		}
		applyColors(mf, colors, st.alias)
		markCalleeSaved(mf, colors)
		return
	}
}

// run drives simplify/coalesce/freeze/spill to exhaustion: at each
// step prefer simplifying a non-move-related low-degree node, then
// attempting a Briggs-safe coalesce, then freezing (treating a
// low-degree move-related node as if its moves did not exist so it can
// simplify too), and only picking an optimistic spill candidate when
// none of the above apply.
func (st *state) run() {
	for {
		if st.simplifyStep() {
			continue
		}
		if st.coalesceStep() {
			continue
		}
		if st.freezeStep() {
			continue
		}
		if !st.spillStep() {
			return
		}
	}
}

func (st *state) moveRelated(n int) bool {
	for _, m := range st.moves {
		if (st.find(m.A) == n || st.find(m.B) == n) && !st.removed[n] {
			return true
		}
	}
	return false
}

func (st *state) simplifyStep() bool {
	for _, n := range sortedNodes(st.g.Nodes) {
		if st.removed[n] || st.find(n) != n {
			continue
		}
		if st.degree[n] < K && !st.moveRelated(n) {
			st.simplify(n)
			return true
		}
	}
	return false
}

func (st *state) simplify(n int) {
	st.removed[n] = true
	st.stack = append(st.stack, n)
	for _, m := range st.g.Neighbors(n) {
		if !st.removed[m] {
			st.degree[m]--
		}
	}
}

// coalesceStep applies the Briggs conservative criterion: a and b may
// be merged if the combined node has fewer than K neighbors of degree
// >= K (spec.md §4.13 step 2's move-coalescing group).
func (st *state) coalesceStep() bool {
	for i, m := range st.moves {
		a, b := st.find(m.A), st.find(m.B)
		if a == b {
			st.moves = append(st.moves[:i], st.moves[i+1:]...)
			return true
		}
		if st.g.Interferes(a, b) {
			st.moves = append(st.moves[:i], st.moves[i+1:]...)
			return true
		}
		if st.briggsSafe(a, b) {
			st.combine(a, b)
			st.moves = append(st.moves[:i], st.moves[i+1:]...)
			return true
		}
	}
	return false
}

func (st *state) briggsSafe(a, b int) bool {
	seen := map[int]bool{}
	high := 0
	add := func(n int) {
		if seen[n] || st.removed[n] {
			return
		}
		seen[n] = true
		if st.degree[n] >= K {
			high++
		}
	}
	for _, n := range st.g.Neighbors(a) {
		add(st.find(n))
	}
	for _, n := range st.g.Neighbors(b) {
		add(st.find(n))
	}
	return high < K
}

func (st *state) combine(a, b int) {
	st.alias[b] = a
	for _, n := range st.g.Neighbors(b) {
		n = st.find(n)
		if n == a {
			continue
		}
		st.g.addEdge(a, n)
		st.degree[a] = st.g.Degree(a)
	}
	st.degree[a] = st.g.Degree(a)
}

func (st *state) find(n int) int {
	for {
		p, ok := st.alias[n]
		if !ok {
			return n
		}
		n = p
	}
}

// freezeStep treats one low-degree move-related node's moves as dead,
// letting simplifyStep pick it up next round; this is a simplified
// stand-in for the textbook's separate freeze worklist/freezeMoves
// step (see DESIGN.md), safe but slightly more eager to give up on a
// coalescing opportunity than the full algorithm.
func (st *state) freezeStep() bool {
	for _, n := range sortedNodes(st.g.Nodes) {
		if st.removed[n] || st.find(n) != n || st.degree[n] >= K {
			continue
		}
		if !st.moveRelated(n) {
			continue
		}
		var kept []MoveEdge
		for _, m := range st.moves {
			if st.find(m.A) == n || st.find(m.B) == n {
				continue
			}
			kept = append(kept, m)
		}
		st.moves = kept
		return true
	}
	return false
}

// spillStep picks an optimistic spill candidate among the remaining
// high-degree nodes using the teacher's documented metric,
// `(1+live_length)/(1+def+use)` (spec.md §4.13 step 4): a node with a
// long live range but few actual definitions/uses is cheap to spill
// (few reload/store sites) and frees up a lot of interference, so the
// highest-ratio node is picked first.
func (st *state) spillStep() bool {
	var candidates []int
	for _, n := range sortedNodes(st.g.Nodes) {
		if !st.removed[n] && st.find(n) == n {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return st.spillCost(candidates[i]) > st.spillCost(candidates[j])
	})
	st.simplify(candidates[0])
	return true
}

func (st *state) spillCost(n int) float64 {
	r, ok := st.ranges[n]
	if !ok {
		return 0
	}
	return float64(1+r.Length) / float64(1+r.Defs+r.Uses)
}

// assignColors pops the select stack (spec.md §4.13 step 5), giving
// each node the lowest-numbered pool register not already used by an
// already-colored, still-interfering neighbor; a node with no free
// color becomes an actual spill that rewriteSpills must then lower.
func (st *state) assignColors() (map[int]int, []int) {
	colors := map[int]int{}
	var actualSpills []int
	for i := len(st.stack) - 1; i >= 0; i-- {
		n := st.stack[i]
		used := map[int]bool{}
		for _, m := range st.g.Neighbors(n) {
			m = st.find(m)
			if c, ok := colors[m]; ok {
				used[c] = true
			}
		}
		assigned := -1
		for _, c := range mir.AllocatablePool {
			if !used[c] {
				assigned = c
				break
			}
		}
		if assigned < 0 {
			actualSpills = append(actualSpills, n)
			continue
		}
		colors[n] = assigned
	}
	for n := range st.alias {
		if _, ok := colors[n]; !ok {
			if c, ok := colors[st.find(n)]; ok {
				colors[n] = c
			}
		}
	}
	return colors, actualSpills
}
