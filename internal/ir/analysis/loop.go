package analysis

import (
	"sort"

	"golang.org/x/tools/container/intsets"

	"sysyc/internal/ir"
)

// Loop is a natural loop: a header dominating every block in the loop
// body, reached via a back-edge from some block the header dominates
// (spec.md §4.9's unroll pass and §4.6's GCM need loop nesting depth
// to place/hoist code correctly).
type Loop struct {
	Header *ir.BasicBlock
	Body   []*ir.BasicBlock // includes Header; RPO order
	Depth  int              // 1 for an outermost loop
	Parent *Loop
}

// computeLoops finds every back-edge (b -> h where h dominates b) and
// grows each into its natural loop body by a backward walk over
// predecessors, using a sparse bitset over RPO indices for the
// worklist/membership test (the same fixpoint shape as dominance, but
// over a single loop's reachable set rather than the whole CFG).
func (info *Info) computeLoops() {
	n := len(info.RPO)
	var loops []*Loop
	headerLoop := map[*ir.BasicBlock]*Loop{}

	for i := 0; i < n; i++ {
		b := info.RPO[i]
		for _, s := range b.Succs {
			if !info.Dominates(s, b) {
				continue
			}
			// b -> s is a back-edge; s is the loop header.
			l, ok := headerLoop[s]
			if !ok {
				l = &Loop{Header: s}
				headerLoop[s] = l
				loops = append(loops, l)
			}
			info.growLoopBody(l, b)
		}
	}

	for _, l := range loops {
		sort.Slice(l.Body, func(i, j int) bool {
			return info.Index(l.Body[i]) < info.Index(l.Body[j])
		})
	}
	info.assignLoopNesting(loops)
	info.Loops = loops
}

func (info *Info) growLoopBody(l *Loop, latch *ir.BasicBlock) {
	var member intsets.Sparse
	for _, b := range l.Body {
		member.Insert(info.Index(b))
	}
	hi := info.Index(l.Header)
	member.Insert(hi)

	var worklist []int
	if li := info.Index(latch); member.Insert(li) {
		worklist = append(worklist, li)
	}
	for len(worklist) > 0 {
		i := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		b := info.RPO[i]
		for _, p := range b.Preds {
			pi := info.Index(p)
			if pi < 0 {
				continue
			}
			if member.Insert(pi) {
				worklist = append(worklist, pi)
			}
		}
	}

	l.Body = l.Body[:0]
	for _, i := range member.AppendTo(nil) {
		l.Body = append(l.Body, info.RPO[i])
	}
}

// assignLoopNesting sets Depth/Parent by containment of loop bodies:
// a loop nested inside another has the outer loop's header in its own
// body and a strictly smaller body.
func (info *Info) assignLoopNesting(loops []*Loop) {
	contains := func(outer, inner *Loop) bool {
		if len(outer.Body) <= len(inner.Body) {
			return false
		}
		set := map[*ir.BasicBlock]bool{}
		for _, b := range outer.Body {
			set[b] = true
		}
		for _, b := range inner.Body {
			if !set[b] {
				return false
			}
		}
		return true
	}
	for _, l := range loops {
		l.Depth = 1
		l.Parent = nil
		for _, other := range loops {
			if other == l || !contains(other, l) {
				continue
			}
			if l.Parent == nil || len(other.Body) < len(l.Parent.Body) {
				l.Parent = other
			}
		}
	}
	changed := true
	for changed {
		changed = false
		for _, l := range loops {
			want := 1
			if l.Parent != nil {
				want = l.Parent.Depth + 1
			}
			if l.Depth != want {
				l.Depth = want
				changed = true
			}
		}
	}
}

// LoopFor returns the innermost loop containing b, or nil.
func (info *Info) LoopFor(b *ir.BasicBlock) *Loop {
	var best *Loop
	for _, l := range info.Loops {
		for _, x := range l.Body {
			if x != b {
				continue
			}
			if best == nil || l.Depth > best.Depth {
				best = l
			}
		}
	}
	return best
}
