package regalloc

import "sysyc/internal/mir"

// Graph is the interference graph over virtual register numbers, plus
// the set of move-related pairs (Chaitin-Briggs coalescing candidates,
// spec.md §4.13 step 2): two registers copied directly into one
// another are excluded from interfering at the point of the copy
// itself, exactly as the classic build algorithm specifies, so that a
// move between them remains coalescable.
type Graph struct {
	adj    map[int]map[int]bool
	Nodes  map[int]bool
	Moves  []MoveEdge
}

type MoveEdge struct {
	A, B int
	Inst *mir.MInstruction
}

func newGraph() *Graph {
	return &Graph{adj: map[int]map[int]bool{}, Nodes: map[int]bool{}}
}

func (g *Graph) addEdge(a, b int) {
	if a == b {
		return
	}
	g.Nodes[a] = true
	g.Nodes[b] = true
	if g.adj[a] == nil {
		g.adj[a] = map[int]bool{}
	}
	if g.adj[b] == nil {
		g.adj[b] = map[int]bool{}
	}
	g.adj[a][b] = true
	g.adj[b][a] = true
}

func (g *Graph) RemoveEdge(a, b int) {
	delete(g.adj[a], b)
	delete(g.adj[b], a)
}

func (g *Graph) Interferes(a, b int) bool {
	return g.adj[a] != nil && g.adj[a][b]
}

func (g *Graph) Degree(n int) int {
	return len(g.adj[n])
}

func (g *Graph) Neighbors(n int) []int {
	out := make([]int, 0, len(g.adj[n]))
	for k := range g.adj[n] {
		out = append(out, k)
	}
	return out
}

// Build walks every block backward from its live-out set, adding an
// interference edge between each instruction's definition and every
// other virtual register simultaneously live, then threading the live
// set through the def/use update (spec.md §4.13 step 2).
func Build(mf *mir.MFunction, live *Liveness) *Graph {
	g := newGraph()
	for _, b := range mf.Blocks {
		cur := live.Out[b].Copy()
		for i := len(b.Insts) - 1; i >= 0; i-- {
			insn := b.Insts[i]
			d, hasDef := insn.Def()
			if hasDef && d.IsVirtual() {
				g.Nodes[d.Num] = true
				if insn.IsMove() {
					src, ok := moveSource(insn)
					for _, w := range cur.Elems() {
						if ok && w == src.Num {
							continue
						}
						g.addEdge(d.Num, w)
					}
					if ok && src.IsVirtual() {
						g.Moves = append(g.Moves, MoveEdge{A: d.Num, B: src.Num, Inst: insn})
					}
				} else {
					for _, w := range cur.Elems() {
						g.addEdge(d.Num, w)
					}
				}
				cur.Remove(d.Num)
			}
			for _, u := range insn.Uses() {
				if u.IsVirtual() {
					g.Nodes[u.Num] = true
					cur.Add(u.Num)
				}
			}
		}
	}
	return g
}

func moveSource(insn *mir.MInstruction) (mir.Reg, bool) {
	if len(insn.Operands) != 2 || insn.Operands[1].Kind != mir.OReg {
		return mir.Reg{}, false
	}
	return insn.Operands[1].Reg, true
}
