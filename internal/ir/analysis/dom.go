package analysis

import "sysyc/internal/ir"

// computeDominators implements the Cooper/Harvey/Kennedy iterative
// algorithm over the RPO numbering (no bitsets needed: idom is a
// single predecessor-intersection walk, cheaper than the classic
// bitset fixpoint).
func (info *Info) computeDominators() {
	n := len(info.RPO)
	if n == 0 {
		return
	}
	info.IDom = make([]*ir.BasicBlock, n)
	info.IDom[0] = info.RPO[0] // entry dominates itself

	changed := true
	for changed {
		changed = false
		for i := 1; i < n; i++ {
			b := info.RPO[i]
			var newIdom *ir.BasicBlock
			for _, p := range b.Preds {
				pi := info.Index(p)
				if pi < 0 || info.IDom[pi] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = info.intersect(newIdom, p)
			}
			if newIdom != info.IDom[i] {
				info.IDom[i] = newIdom
				changed = true
			}
		}
	}
	info.IDom[0] = nil

	info.Dom = make([][]*ir.BasicBlock, n)
	for i := 1; i < n; i++ {
		pi := info.Index(info.IDom[i])
		info.Dom[pi] = append(info.Dom[pi], info.RPO[i])
	}
}

func (info *Info) intersect(a, b *ir.BasicBlock) *ir.BasicBlock {
	ai, bi := info.Index(a), info.Index(b)
	for ai != bi {
		for ai > bi {
			ai = info.Index(info.IDom[ai])
		}
		for bi > ai {
			bi = info.Index(info.IDom[bi])
		}
	}
	return info.RPO[ai]
}

// Dominates reports whether a dominates b (reflexively).
func (info *Info) Dominates(a, b *ir.BasicBlock) bool {
	bi := info.Index(b)
	if bi < 0 {
		return false
	}
	ai := info.Index(a)
	if ai < 0 {
		return false
	}
	for {
		if bi == ai {
			return true
		}
		if bi == 0 {
			return false
		}
		bi = info.Index(info.IDom[bi])
	}
}

// computeDominanceFrontiers follows Cytron et al.'s join-point
// algorithm, walked bottom-up over the dominator tree; this is the
// set mem2reg (spec.md §4.3) uses to decide where to insert phis.
func (info *Info) computeDominanceFrontiers() {
	n := len(info.RPO)
	info.DF = make([][]*ir.BasicBlock, n)
	for i, b := range info.RPO {
		if len(b.Preds) < 2 {
			continue
		}
		for _, p := range b.Preds {
			pi := info.Index(p)
			if pi < 0 {
				continue
			}
			runner := pi
			for runner != info.Index(info.IDom[i]) {
				info.DF[runner] = appendUnique(info.DF[runner], b)
				if info.IDom[runner] == nil {
					break
				}
				runner = info.Index(info.IDom[runner])
			}
		}
	}
}

func appendUnique(list []*ir.BasicBlock, b *ir.BasicBlock) []*ir.BasicBlock {
	for _, x := range list {
		if x == b {
			return list
		}
	}
	return append(list, b)
}

// Frontier returns b's dominance frontier.
func (info *Info) Frontier(b *ir.BasicBlock) []*ir.BasicBlock {
	i := info.Index(b)
	if i < 0 {
		return nil
	}
	return info.DF[i]
}

// Children returns the blocks b immediately dominates.
func (info *Info) Children(b *ir.BasicBlock) []*ir.BasicBlock {
	i := info.Index(b)
	if i < 0 {
		return nil
	}
	return info.Dom[i]
}

// IDomOf returns b's immediate dominator, or nil for the entry block.
func (info *Info) IDomOf(b *ir.BasicBlock) *ir.BasicBlock {
	i := info.Index(b)
	if i < 0 {
		return nil
	}
	return info.IDom[i]
}
