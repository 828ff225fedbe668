package parser

import (
	"github.com/upprsk/tree-sitter-yal/lang"
	"github.com/upprsk/tree-sitter-yal/tree"
)

// recover is called when no head can take tok. Every head contributes up
// to three candidates: a MISSING token inserted before tok, the top of its
// stack popped into an ERROR node, and tok skipped into an ERROR node.
// condense later ranks them by error cost.
func (s *session) recover(heads []*head, tok *tree.Subtree) (shifted, accepted []*head) {
	s.stats.Recoveries++
	s.p.log.Debugf("recovering from %s at byte %d with %d heads",
		s.symbolName(tok.Symbol()), tok.Padding().Bytes, len(heads))

	add := func(sh, acc []*head) {
		for _, h := range sh {
			h.sinceError = 0
		}
		shifted = append(shifted, sh...)
		accepted = append(accepted, acc...)
	}
	for _, h := range heads {
		add(s.insertMissing(h, tok))
		add(s.popToError(h, tok))
		if tok.Symbol() != lang.SymbolEnd {
			add([]*head{s.skip(h, tok)}, nil)
		}
	}
	return shifted, accepted
}

func (s *session) symbolName(sym lang.Symbol) string {
	if sym == lang.SymbolError {
		return "ERROR"
	}
	return s.p.g.SymbolName(sym)
}

// insertMissing looks for a terminal which, inserted as a zero-width
// MISSING token, lets the head take tok.
func (s *session) insertMissing(h *head, tok *tree.Subtree) (shifted, accepted []*head) {
	if tok.Symbol() == lang.SymbolError {
		return nil, nil
	}
	for _, sym := range s.tab.ValidTerminals(h.top.state).Symbols() {
		if sym == lang.SymbolEnd {
			continue
		}
		missing := tree.NewMissing(sym, lang.Length{}, h.top.state)
		after, _ := s.advance(h, missing, true)
		for _, m := range after {
			sh, acc := s.advance(m, tok, true)
			if len(sh) > 0 || len(acc) > 0 {
				s.p.log.Debugf("inserting MISSING %s", s.symbolName(sym))
				return sh, acc
			}
		}
	}
	return nil, nil
}

// popToError pops the fewest stack entries that leave a state able to
// take tok, and pushes them back as one ERROR node.
func (s *session) popToError(h *head, tok *tree.Subtree) (shifted, accepted []*head) {
	var popped []*tree.Subtree
	nonExtra := false
	for n := h.top; n.link != nil; n = n.link {
		popped = append([]*tree.Subtree{n.sub}, popped...)
		nonExtra = nonExtra || !n.sub.IsExtra()
		base := n.link
		if !nonExtra || len(s.tab.Actions(base.state, tok.Symbol())) == 0 {
			continue
		}
		x := h.fork(h.order)
		x.top = base.push(base.state, errorNode(popped, base.state))
		sh, acc := s.advance(x, tok, true)
		if len(sh) > 0 || len(acc) > 0 {
			return sh, acc
		}
	}
	return nil, nil
}

// skip consumes tok into an ERROR node, growing the one on top of the
// stack if there is one.
func (s *session) skip(h *head, tok *tree.Subtree) *head {
	top := h.top
	leaf := leafFor(tok, top.state)
	x := h.fork(h.order)
	if top.link != nil && top.sub.IsError() && top.sub.IsExtra() {
		var children []*tree.Subtree
		if top.sub.IsLeaf() {
			children = []*tree.Subtree{top.sub, leaf}
		} else {
			children = append(append(children, top.sub.Children()...), leaf)
		}
		x.top = top.link.push(top.link.state, errorNode(children, top.link.state))
		return x
	}
	if leaf.IsError() {
		x.top = top.push(top.state, leaf.WithExtra())
		return x
	}
	x.top = top.push(top.state, errorNode([]*tree.Subtree{leaf}, top.state))
	return x
}

// collapse turns everything from pos to the end of input into one error
// token appended to the best head.
func (s *session) collapse(h *head, pos lang.Length, tok *tree.Subtree) (*head, *tree.Subtree) {
	s.stats.Exhausted = true
	s.reuse = nil
	s.p.log.Debugf("recovery budget exhausted at byte %d", pos.Bytes)
	start := pos.Bytes + tok.Padding().Bytes
	rest := tree.NewLeaf(tree.Leaf{
		Symbol:  lang.SymbolError,
		Padding: tok.Padding(),
		Size:    lang.Measure(s.src[start:]),
		State:   h.top.state,
	})
	return s.skip(h, rest), rest
}

// errorNode wraps children in an extra ERROR node, splicing in the
// children of ERROR nodes among them.
func errorNode(children []*tree.Subtree, state lang.StateID) *tree.Subtree {
	var flat []*tree.Subtree
	for _, c := range children {
		if c.IsError() && !c.IsLeaf() {
			flat = append(flat, c.Children()...)
		} else {
			flat = append(flat, c)
		}
	}
	return tree.NewError(flat, state).WithExtra()
}
