package parser

import (
	"cmp"
	"slices"

	"github.com/upprsk/tree-sitter-yal/lang"
	"github.com/upprsk/tree-sitter-yal/tree"
)

// MaxCostDifference bounds how much worse than the best head another head
// may be. The bound shrinks as the best head keeps parsing without errors.
const MaxCostDifference = 16 * tree.ErrorCostPerSkippedTree

// stackNode is one entry of a persistent stack. Heads share their common
// bottom.
type stackNode struct {
	state lang.StateID
	sub   *tree.Subtree
	link  *stackNode
	cost  uint32
	dyn   int
}

func (n *stackNode) push(state lang.StateID, sub *tree.Subtree) *stackNode {
	return &stackNode{
		state: state,
		sub:   sub,
		link:  n,
		cost:  n.cost + sub.ErrorCost(),
		dyn:   n.dyn + sub.DynamicPrec(),
	}
}

// subtrees returns the stack contents, bottom first.
func (n *stackNode) subtrees() []*tree.Subtree {
	var out []*tree.Subtree
	for ; n.link != nil; n = n.link {
		out = append(out, n.sub)
	}
	slices.Reverse(out)
	return out
}

func sameStates(a, b *stackNode) bool {
	for a != b {
		if a == nil || b == nil || a.state != b.state {
			return false
		}
		a, b = a.link, b.link
	}
	return true
}

type head struct {
	top        *stackNode
	order      uint64
	sinceError int
}

func (h *head) fork(order uint64) *head {
	c := *h
	c.order = order
	return &c
}

func (h *head) derivation() Derivation {
	return Derivation{
		Order:       h.order,
		DynamicPrec: h.top.dyn,
		ErrorCost:   h.top.cost,
		Subtrees:    h.top.subtrees(),
	}
}

// Derivation describes a head competing with another one whose stack holds
// the same states.
type Derivation struct {
	// Order is the creation order of the head. The first head has order 0
	// and forks count up from there.
	Order       uint64
	DynamicPrec int
	ErrorCost   uint32

	// Subtrees is the stack, bottom first.
	Subtrees []*tree.Subtree
}

// TieBreak decides between two derivations with equal dynamic precedence
// and error cost. It returns true to keep a.
type TieBreak func(a, b Derivation) bool

// FirstRegistered keeps the derivation that was created first, which is
// the one following the earlier action of a conflict set.
func FirstRegistered(a, b Derivation) bool { return a.Order <= b.Order }

// LastRegistered keeps the derivation that was created last.
func LastRegistered(a, b Derivation) bool { return a.Order >= b.Order }

// better reports whether a should be kept over b.
func (s *session) better(a, b *head) bool {
	if a.top.dyn != b.top.dyn {
		return a.top.dyn > b.top.dyn
	}
	if a.top.cost != b.top.cost {
		return a.top.cost < b.top.cost
	}
	return s.p.tieBreak(a.derivation(), b.derivation())
}

func (s *session) best(heads []*head) *head {
	b := heads[0]
	for _, h := range heads[1:] {
		if s.better(h, b) {
			b = h
		}
	}
	return b
}

// condense merges heads with equal stacks, orders them best first and
// drops the ones that fell too far behind or exceed the head limit.
func (s *session) condense(heads []*head) []*head {
	var merged []*head
	for _, h := range heads {
		found := false
		for i, o := range merged {
			if sameStates(o.top, h.top) {
				if s.better(h, o) {
					merged[i] = h
				}
				found = true
				s.stats.Merges++
				break
			}
		}
		if !found {
			merged = append(merged, h)
		}
	}

	slices.SortStableFunc(merged, func(a, b *head) int {
		if c := cmp.Compare(a.top.cost, b.top.cost); c != 0 {
			return c
		}
		if c := cmp.Compare(b.top.dyn, a.top.dyn); c != 0 {
			return c
		}
		return cmp.Compare(a.order, b.order)
	})

	best := merged[0]
	kept := []*head{best}
	for _, h := range merged[1:] {
		if len(kept) >= s.p.maxHeads {
			break
		}
		diff := uint64(h.top.cost - best.top.cost)
		if diff*uint64(1+best.sinceError) > MaxCostDifference {
			continue
		}
		kept = append(kept, h)
	}
	s.stats.MaxHeads = max(s.stats.MaxHeads, len(kept))
	return kept
}
