package parser

import (
	"fmt"
	"slices"

	"github.com/tliron/commonlog"

	"github.com/upprsk/tree-sitter-yal/grammar"
	"github.com/upprsk/tree-sitter-yal/lang"
	"github.com/upprsk/tree-sitter-yal/lexer"
	"github.com/upprsk/tree-sitter-yal/table"
	"github.com/upprsk/tree-sitter-yal/tree"
)

const (
	// DefaultMaxHeads is the number of heads kept after each token.
	DefaultMaxHeads = 6

	// DefaultRecoveryBudget is the error cost after which the rest of the
	// input is skipped in one piece.
	DefaultRecoveryBudget = 64 * tree.ErrorCostPerRecovery

	// maxReductions bounds the reductions one head performs on a single
	// token, so that cyclic grammars cannot loop.
	maxReductions = 1 << 14
)

type Option func(*Parser)

// WithMaxHeads sets how many heads may coexist.
func WithMaxHeads(n int) Option {
	return func(p *Parser) {
		p.maxHeads = max(n, 1)
	}
}

// WithRecoveryBudget sets the error cost after which recovery gives up.
func WithRecoveryBudget(cost uint32) Option {
	return func(p *Parser) {
		p.budget = cost
	}
}

// WithTieBreak sets the policy for derivations that are otherwise equal.
func WithTieBreak(tb TieBreak) Option {
	return func(p *Parser) {
		p.tieBreak = tb
	}
}

// WithoutReuse makes every parse start from scratch.
func WithoutReuse() Option {
	return func(p *Parser) {
		p.reuse = false
	}
}

func WithLogger(log commonlog.Logger) Option {
	return func(p *Parser) {
		p.log = log
	}
}

// Stats describes the last parse.
type Stats struct {
	Tokens      int
	Reused      int
	ReusedBytes uint32
	Forks       int
	Merges      int
	MaxHeads    int
	Recoveries  int
	Exhausted   bool
	// Restarted is set when an attempt that pushed reused nodes needed error
	// recovery and the input was parsed again without reuse.
	Restarted bool
}

// Parser parses documents of one grammar. A Parser must not be used by
// several goroutines at once.
type Parser struct {
	g        *grammar.Grammar
	maxHeads int
	budget   uint32
	tieBreak TieBreak
	reuse    bool
	log      commonlog.Logger
	stats    Stats
}

// New returns a parser for g.
func New(g *grammar.Grammar, opts ...Option) *Parser {
	p := &Parser{
		g:        g,
		maxHeads: DefaultMaxHeads,
		budget:   DefaultRecoveryBudget,
		tieBreak: FirstRegistered,
		reuse:    true,
		log:      commonlog.GetLogger("yal.parser"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Grammar returns the grammar of p.
func (p *Parser) Grammar() *grammar.Grammar { return p.g }

// Stats returns the statistics of the last parse.
func (p *Parser) Stats() Stats { return p.stats }

// Parse parses src. old, when not nil, is the tree of the previous version
// of src with every edit since applied; its unchanged subtrees are reused.
func (p *Parser) Parse(src []byte, old *tree.Tree) (*tree.Tree, error) {
	s := p.newSession(src)
	if old != nil {
		if old.Len() != uint32(len(src)) {
			return nil, fmt.Errorf("old tree covers %d bytes, source has %d: %w", old.Len(), len(src), tree.ErrInvalidEdit)
		}
		if p.reuse {
			s.reuse = newReuseIter(old.RootSubtree())
		}
	}
	root := s.run()
	if root == nil {
		// Recovery depends on the exact stacks it starts from, which reused
		// subtrees do not reproduce.
		p.log.Debugf("recovery needed after %d reused nodes, parsing again", s.stats.Reused)
		s = p.newSession(src)
		s.stats.Restarted = true
		root = s.run()
	}
	p.stats = s.stats
	p.log.Debugf("parsed %d bytes: %d tokens, %d reused, %d forks, %d recoveries",
		len(src), s.stats.Tokens, s.stats.Reused, s.stats.Forks, s.stats.Recoveries)
	return tree.New(root, p.g), nil
}

// ParseEdited applies edits to prior and parses src, the edited source,
// reusing what the edits left intact.
func ParseEdited(g *grammar.Grammar, src []byte, prior *tree.Tree, edits ...tree.Edit) (*tree.Tree, error) {
	t := prior
	for _, e := range edits {
		var err error
		if t, err = t.Edit(e); err != nil {
			return nil, fmt.Errorf("apply edit: %w", err)
		}
	}
	return New(g).Parse(src, t)
}

func (p *Parser) newSession(src []byte) *session {
	return &session{
		p:     p,
		src:   src,
		tab:   p.g.Table(),
		lexer: p.g.NewLexer(),
	}
}

// session holds the state of one parse.
type session struct {
	p       *Parser
	src     []byte
	tab     *table.Table
	lexer   *lexer.Lexer
	reuse   *reuseIter
	lastExt []byte
	order   uint64
	stats   Stats

	// pushedReused is set once a reused node, not just a token, went onto
	// the stack.
	pushedReused bool
}

func (s *session) nextOrder() uint64 {
	s.order++
	return s.order
}

// run parses the whole input. It returns nil, leaving the input to a
// session without reuse, when error recovery is needed after a subtree of
// the old tree was pushed.
func (s *session) run() *tree.Subtree {
	heads := []*head{{top: &stackNode{}}}
	var pos lang.Length
	for {
		tok, ready := s.reusable(pos, heads)
		if ready != nil {
			heads = []*head{ready}
			pos = pos.Add(tok.TotalSize())
			s.consumed(tok)
			continue
		}
		if tok == nil {
			tok = s.lex(pos, heads)
		}
		s.stats.Tokens++

		if tok.IsExtra() {
			for _, h := range heads {
				h.top = h.top.push(h.top.state, leafFor(tok, h.top.state))
			}
			pos = pos.Add(tok.TotalSize())
			s.consumed(tok)
			continue
		}

		var next, accepted []*head
		for _, h := range heads {
			sh, acc := s.advance(h, tok, len(heads) > 1)
			next = append(next, sh...)
			accepted = append(accepted, acc...)
		}
		if len(next) == 0 && len(accepted) == 0 {
			if s.pushedReused {
				return nil
			}
			if tok.Symbol() != lang.SymbolEnd && heads[0].top.cost >= s.p.budget {
				h, rest := s.collapse(heads[0], pos, tok)
				heads = []*head{h}
				pos = pos.Add(rest.TotalSize())
				continue
			}
			next, accepted = s.recover(heads, tok)
		}
		if len(accepted) > 0 {
			return s.accept(s.best(accepted), tok)
		}
		if len(next) == 0 {
			return s.fail(heads, tok)
		}
		heads = s.condense(next)
		pos = pos.Add(tok.TotalSize())
		s.consumed(tok)
	}
}

// lex returns the next token as a leaf. Extras that some head can shift
// are returned as regular tokens.
func (s *session) lex(pos lang.Length, heads []*head) *tree.Subtree {
	valid := lang.NewSymbolSet()
	for _, h := range heads {
		valid.Union(s.tab.ValidTerminals(h.top.state))
	}
	t := s.lexer.Lex(s.src, pos, valid, s.lastExt)
	if t.Unexpected {
		s.p.log.Debugf("unexpected %s at byte %d", s.p.g.SymbolName(t.Symbol), pos.Bytes+t.Padding.Bytes)
	}
	return tree.NewLeaf(tree.Leaf{
		Symbol:         t.Symbol,
		Padding:        t.Padding,
		Size:           t.Size,
		LookaheadBytes: t.LookaheadBytes,
		State:          heads[0].top.state,
		Extra:          t.Extra && !valid.Has(t.Symbol),
		External:       t.External,
		ExternalState:  t.ExternalState,
	})
}

func (s *session) consumed(sub *tree.Subtree) {
	if sub.HasExternalTokens() {
		s.lastExt = sub.ExternalState()
	}
}

func leafFor(tok *tree.Subtree, state lang.StateID) *tree.Subtree {
	if tok.ParseState() == state {
		return tok
	}
	return tok.WithState(state)
}

// advance runs the actions of h on tok until every resulting head has
// shifted it, accepted, or died.
func (s *session) advance(h *head, tok *tree.Subtree, split bool) (shifted, accepted []*head) {
	work := []*head{h.fork(h.order)}
	for steps := 0; len(work) > 0 && steps < maxReductions; steps++ {
		x := work[len(work)-1]
		work = work[:len(work)-1]
		acts := s.tab.Actions(x.top.state, tok.Symbol())
		fragile := split || len(acts) > 1
		base := x.top
		for i, a := range acts {
			y := x
			if i > 0 {
				y = x.fork(s.nextOrder())
				y.top = base
				s.stats.Forks++
			}
			switch a.Kind {
			case table.Shift:
				y.top = base.push(a.State, leafFor(tok, base.state))
				y.sinceError++
				shifted = append(shifted, y)
			case table.Reduce:
				top := s.reduce(base, a.Production, tok, fragile)
				if top == nil {
					continue
				}
				y.top = top
				work = append(work, y)
			case table.Accept:
				y.top = base
				accepted = append(accepted, y)
			}
		}
	}
	return shifted, accepted
}

// reduce pops the children of production prod and pushes the new node.
// Extras on top of the stack stay outside the node.
func (s *session) reduce(top *stackNode, prod int, tok *tree.Subtree, fragile bool) *stackNode {
	pr := s.tab.Production(prod)
	var children []*tree.Subtree
	node := top
	for count := 0; count < len(pr.RHS); node = node.link {
		if node.link == nil {
			return nil
		}
		children = append(children, node.sub)
		if !node.sub.IsExtra() {
			count++
		}
	}
	slices.Reverse(children)

	split := len(children)
	for split > 0 && children[split-1].IsExtra() {
		split--
	}
	trailing := children[split:]
	children = children[:split:split]

	lookahead := tok.TotalSize().Bytes + tok.LookaheadBytes()
	for _, t := range trailing {
		lookahead += t.TotalSize().Bytes
	}

	state, ok := s.tab.Goto(node.state, pr.LHS)
	if !ok {
		return nil
	}
	sub := tree.NewNode(pr.LHS, children, tree.NodeOptions{
		Production:   prod,
		State:        node.state,
		DynamicPrec:  pr.DynamicPrec,
		Fragile:      fragile,
		MinLookahead: lookahead,
	})
	next := node.push(state, sub)
	for _, t := range trailing {
		next = next.push(state, t)
	}
	return next
}

// accept builds the root from the stack of h: the start node's children
// surrounded by the extras before and after it and the end token.
func (s *session) accept(h *head, end *tree.Subtree) *tree.Subtree {
	subs := h.top.subtrees()
	endLeaf := end.WithExtra()
	i := len(subs) - 1
	for i >= 0 && subs[i].IsExtra() {
		i--
	}
	if i < 0 {
		return tree.NewError(append(subs, endLeaf), 0)
	}
	start := subs[i]
	children := slices.Concat(subs[:i], start.Children(), subs[i+1:], []*tree.Subtree{endLeaf})
	return tree.NewNode(start.Symbol(), children, tree.NodeOptions{
		Production:  start.Production(),
		DynamicPrec: s.tab.Production(start.Production()).DynamicPrec,
	})
}

// fail wraps the best stack in an ERROR root when nothing could accept
// the end of input.
func (s *session) fail(heads []*head, end *tree.Subtree) *tree.Subtree {
	s.p.log.Debugf("no head accepts the end of input")
	subs := s.best(heads).top.subtrees()
	return tree.NewError(append(subs, end.WithExtra()), 0)
}
