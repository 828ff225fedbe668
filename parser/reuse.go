package parser

import (
	"bytes"

	"github.com/upprsk/tree-sitter-yal/lang"
	"github.com/upprsk/tree-sitter-yal/table"
	"github.com/upprsk/tree-sitter-yal/tree"
)

// reuseIter walks the subtrees of an edited tree in document order,
// descending only when asked to.
type reuseIter struct {
	stack []reuseFrame

	// lastExt is the scanner state after the last external token before
	// the current subtree.
	lastExt []byte
}

type reuseFrame struct {
	children []*tree.Subtree
	index    int
	offset   uint32 // start of children[index], padding included
}

func newReuseIter(root *tree.Subtree) *reuseIter {
	return &reuseIter{stack: []reuseFrame{{children: root.Children()}}}
}

func (r *reuseIter) current() (*tree.Subtree, uint32) {
	for len(r.stack) > 0 {
		f := &r.stack[len(r.stack)-1]
		if f.index < len(f.children) {
			return f.children[f.index], f.offset
		}
		r.stack = r.stack[:len(r.stack)-1]
	}
	return nil, 0
}

// advance moves past the current subtree.
func (r *reuseIter) advance() {
	sub, _ := r.current()
	if sub == nil {
		return
	}
	if sub.HasExternalTokens() {
		r.lastExt = sub.ExternalState()
	}
	f := &r.stack[len(r.stack)-1]
	f.offset += sub.TotalSize().Bytes
	f.index++
}

// descend moves to the first child of the current subtree, or past it when
// it has none.
func (r *reuseIter) descend() {
	sub, offset := r.current()
	if sub == nil {
		return
	}
	if sub.ChildCount() == 0 {
		r.advance()
		return
	}
	r.stack[len(r.stack)-1].index++
	r.stack[len(r.stack)-1].offset += sub.TotalSize().Bytes
	r.stack = append(r.stack, reuseFrame{children: sub.Children(), offset: offset})
}

// reusable looks for a subtree of the old tree that can stand in for the
// input at pos. It returns a reused leaf to use as the next token, or a
// reused node together with the head that already has it pushed. The
// token lexed while checking candidates is returned when nothing could be
// reused, so that the caller does not lex it again.
func (s *session) reusable(pos lang.Length, heads []*head) (*tree.Subtree, *head) {
	if s.reuse == nil || len(heads) != 1 {
		return nil, nil
	}
	h := heads[0]
	if h.top.cost > 0 {
		return nil, nil
	}
	var fresh *tree.Subtree
	for {
		sub, offset := s.reuse.current()
		if sub == nil || offset > pos.Bytes {
			return fresh, nil
		}
		if offset < pos.Bytes {
			if offset+sub.TotalSize().Bytes <= pos.Bytes {
				s.reuse.advance()
			} else {
				s.reuse.descend()
			}
			continue
		}
		if reason := s.cannotReuse(sub, h.top.state); reason != "" {
			s.reuse.descend()
			continue
		}
		// The first token must lex the same way in the current state.
		if fresh == nil {
			fresh = s.lex(pos, heads)
		}
		if !sameToken(sub.FirstLeaf(), fresh) {
			s.reuse.descend()
			continue
		}
		var ready *head
		if !sub.IsLeaf() {
			if ready = s.shiftNode(h, sub); ready == nil {
				s.reuse.descend()
				continue
			}
			s.pushedReused = true
		}
		s.reuse.advance()
		s.stats.Reused++
		s.stats.ReusedBytes += sub.TotalSize().Bytes
		return sub, ready
	}
}

func sameToken(old, fresh *tree.Subtree) bool {
	return !fresh.IsExtra() &&
		old.Symbol() == fresh.Symbol() &&
		old.Padding() == fresh.Padding() &&
		old.Size() == fresh.Size()
}

// cannotReuse returns why sub cannot be reused in state, or "".
func (s *session) cannotReuse(sub *tree.Subtree, state lang.StateID) string {
	switch {
	case sub.HasChanges():
		return "changed"
	case sub.HasError():
		return "error"
	case sub.IsFragile():
		return "fragile"
	case sub.IsMissing(), sub.IsExtra():
		return "synthetic"
	case sub.Symbol() == lang.SymbolEnd:
		return "end"
	case !bytes.Equal(s.reuse.lastExt, s.lastExt):
		return "external state"
	}
	first := sub.FirstLeaf()
	if first == nil {
		return "empty"
	}
	if len(s.tab.Actions(state, first.Symbol())) == 0 {
		return "no action"
	}
	return ""
}

// shiftNode performs the reductions that the first token of node triggers
// on h and then pushes node whole. It returns nil when that needs a choice
// between actions or the state has no transition on node.
func (s *session) shiftNode(h *head, node *tree.Subtree) *head {
	first := node.FirstLeaf()
	x := h.fork(h.order)
	for steps := 0; steps < maxReductions; steps++ {
		acts := s.tab.Actions(x.top.state, first.Symbol())
		if len(acts) != 1 {
			return nil
		}
		switch a := acts[0]; a.Kind {
		case table.Reduce:
			top := s.reduce(x.top, a.Production, first, false)
			if top == nil {
				return nil
			}
			x.top = top
		case table.Shift:
			state, ok := s.tab.Goto(x.top.state, node.Symbol())
			if !ok {
				return nil
			}
			x.top = x.top.push(state, node)
			x.sinceError++
			return x
		default:
			return nil
		}
	}
	return nil
}
