package tree

import (
	"sync/atomic"

	"github.com/upprsk/tree-sitter-yal/lang"
)

// Error costs, used to rank competing recoveries. A lower total cost is a
// better parse.
const (
	ErrorCostPerRecovery    = 500
	ErrorCostPerMissingTree = 110
	ErrorCostPerSkippedTree = 100
	ErrorCostPerSkippedLine = 30
	ErrorCostPerSkippedChar = 1
)

type flags uint8

const (
	flagExtra flags = 1 << iota
	flagMissing
	flagHasChanges
	flagHasError
	flagFragile
	flagExternal
	flagHasExternal
)

var nextID atomic.Uint64

// Subtree is an immutable syntax tree node. Subtrees are shared between
// trees: an edit copies the path to the edited region and keeps every
// other subtree by pointer.
type Subtree struct {
	id         uint64
	symbol     lang.Symbol
	padding    lang.Length
	size       lang.Length
	lookahead  uint32
	state      lang.StateID
	production int32
	flags      flags
	children   []*Subtree

	errorCost   uint32
	dynamicPrec int32

	// externalState is the scanner state after the last external token in
	// this subtree, if any.
	externalState []byte
}

// Leaf describes a token.
type Leaf struct {
	Symbol         lang.Symbol
	Padding        lang.Length
	Size           lang.Length
	LookaheadBytes uint32
	State          lang.StateID
	Extra          bool
	External       bool
	ExternalState  []byte
}

// NewLeaf returns a token subtree. A leaf with the error symbol is a
// character no terminal matched.
func NewLeaf(l Leaf) *Subtree {
	s := &Subtree{
		id:         nextID.Add(1),
		symbol:     l.Symbol,
		padding:    l.Padding,
		size:       l.Size,
		lookahead:  l.LookaheadBytes,
		state:      l.State,
		production: -1,
	}
	if l.Extra {
		s.flags |= flagExtra
	}
	if l.External {
		s.flags |= flagExternal | flagHasExternal
		s.externalState = l.ExternalState
	}
	if l.Symbol == lang.SymbolError {
		s.flags |= flagHasError
		s.errorCost = ErrorCostPerRecovery +
			ErrorCostPerSkippedChar*l.Size.Bytes +
			ErrorCostPerSkippedLine*l.Size.Extent.Row
	}
	return s
}

// NewMissing returns a zero-width token the parser inserted to recover.
func NewMissing(sym lang.Symbol, padding lang.Length, state lang.StateID) *Subtree {
	return &Subtree{
		id:         nextID.Add(1),
		symbol:     sym,
		padding:    padding,
		state:      state,
		production: -1,
		flags:      flagMissing | flagHasError,
		errorCost:  ErrorCostPerMissingTree + ErrorCostPerRecovery,
	}
}

// NodeOptions carries the parse information of an internal node.
type NodeOptions struct {
	Production  int
	State       lang.StateID
	DynamicPrec int
	Fragile     bool

	// MinLookahead extends the bytes past the node that its validity
	// depends on, to cover the token that caused its reduction.
	MinLookahead uint32
}

// NewNode returns an internal node over children.
func NewNode(sym lang.Symbol, children []*Subtree, opts NodeOptions) *Subtree {
	s := &Subtree{
		id:          nextID.Add(1),
		symbol:      sym,
		state:       opts.State,
		production:  int32(opts.Production),
		children:    children,
		dynamicPrec: int32(opts.DynamicPrec),
	}
	if opts.Fragile {
		s.flags |= flagFragile
	}
	s.summarize()
	s.lookahead = max(s.lookahead, opts.MinLookahead)
	return s
}

// NewError returns an ERROR node holding the subtrees skipped during
// recovery.
func NewError(children []*Subtree, state lang.StateID) *Subtree {
	if children == nil {
		children = []*Subtree{}
	}
	s := &Subtree{
		id:         nextID.Add(1),
		symbol:     lang.SymbolError,
		state:      state,
		production: -1,
		children:   children,
		flags:      flagHasError | flagFragile,
	}
	s.summarize()
	s.errorCost += ErrorCostPerRecovery +
		ErrorCostPerSkippedChar*s.size.Bytes +
		ErrorCostPerSkippedLine*s.size.Extent.Row
	for _, c := range children {
		if !c.IsExtra() {
			s.errorCost += ErrorCostPerSkippedTree
		}
	}
	return s
}

// summarize derives sizes, flags and costs from the children.
func (s *Subtree) summarize() {
	var total lang.Length
	for i, c := range s.children {
		if i == 0 {
			s.padding = c.padding
			total = c.size
		} else {
			total = total.Add(c.TotalSize())
		}
		s.errorCost += c.errorCost
		s.dynamicPrec += c.dynamicPrec
		s.flags |= c.flags & flagHasError
		if c.flags&flagHasExternal != 0 {
			s.flags |= flagHasExternal
			s.externalState = c.externalState
		}
	}
	s.size = total

	// A child's lookahead is relative to its own end; shift it to the end
	// of s.
	var after uint32
	for i := len(s.children) - 1; i >= 0; i-- {
		c := s.children[i]
		s.lookahead = max(s.lookahead, satSub(c.lookahead, after))
		after += c.TotalSize().Bytes
	}
}

func satSub(a, b uint32) uint32 {
	if a < b {
		return 0
	}
	return a - b
}

func (s *Subtree) clone() *Subtree {
	c := *s
	c.id = nextID.Add(1)
	return &c
}

// ID identifies the subtree. Subtrees shared between trees keep their ID.
func (s *Subtree) ID() uint64 { return s.id }

// Symbol returns the grammar symbol.
func (s *Subtree) Symbol() lang.Symbol { return s.symbol }

// Padding returns the whitespace before the subtree.
func (s *Subtree) Padding() lang.Length { return s.padding }

// Size returns the length of the subtree without its padding.
func (s *Subtree) Size() lang.Length { return s.size }

// TotalSize returns padding plus size.
func (s *Subtree) TotalSize() lang.Length { return s.padding.Add(s.size) }

// LookaheadBytes returns how many bytes past its end the subtree depends on.
func (s *Subtree) LookaheadBytes() uint32 { return s.lookahead }

// ParseState returns the state the parser was in when it pushed the subtree.
func (s *Subtree) ParseState() lang.StateID { return s.state }

// Production returns the production of an internal node, or -1.
func (s *Subtree) Production() int { return int(s.production) }

// Children returns the children. The slice must not be modified.
func (s *Subtree) Children() []*Subtree { return s.children }

// ChildCount returns the number of children, extras included.
func (s *Subtree) ChildCount() int { return len(s.children) }

// IsLeaf reports whether the subtree is a token.
func (s *Subtree) IsLeaf() bool { return s.children == nil && s.production < 0 }

// IsExtra reports whether the subtree is an extra such as a comment.
func (s *Subtree) IsExtra() bool { return s.flags&flagExtra != 0 }

// IsMissing reports whether the parser inserted the token.
func (s *Subtree) IsMissing() bool { return s.flags&flagMissing != 0 }

// IsError reports whether the subtree is an ERROR node or error token.
func (s *Subtree) IsError() bool { return s.symbol == lang.SymbolError }

// HasError reports whether the subtree contains an error.
func (s *Subtree) HasError() bool { return s.flags&flagHasError != 0 }

// HasChanges reports whether an edit touched the subtree.
func (s *Subtree) HasChanges() bool { return s.flags&flagHasChanges != 0 }

// IsFragile reports whether the subtree was built while the parser
// followed several alternatives or recovered from an error. Fragile
// subtrees are never reused.
func (s *Subtree) IsFragile() bool { return s.flags&flagFragile != 0 }

// IsExternal reports whether the token came from the external scanner.
func (s *Subtree) IsExternal() bool { return s.flags&flagExternal != 0 }

// HasExternalTokens reports whether the subtree contains an external token.
func (s *Subtree) HasExternalTokens() bool { return s.flags&flagHasExternal != 0 }

// ExternalState returns the scanner state after the last external token
// in the subtree.
func (s *Subtree) ExternalState() []byte { return s.externalState }

// ErrorCost returns the summed cost of the errors in the subtree.
func (s *Subtree) ErrorCost() uint32 { return s.errorCost }

// DynamicPrec returns the summed dynamic precedence of the subtree.
func (s *Subtree) DynamicPrec() int { return int(s.dynamicPrec) }

// FirstLeaf returns the first token of s, or nil when s is empty.
func (s *Subtree) FirstLeaf() *Subtree {
	for !s.IsLeaf() {
		if len(s.children) == 0 {
			return nil
		}
		s = s.children[0]
	}
	return s
}

// WithState returns a copy of s recorded as pushed in state.
func (s *Subtree) WithState(state lang.StateID) *Subtree {
	c := s.clone()
	c.state = state
	return c
}

// WithExtra returns a copy of s marked as an extra.
func (s *Subtree) WithExtra() *Subtree {
	c := s.clone()
	c.flags |= flagExtra
	return c
}
