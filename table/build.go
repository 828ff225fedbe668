package table

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/upprsk/tree-sitter-yal/lang"
)

// ErrTooManyStates is returned when a grammar needs more states than a
// StateID can address.
var ErrTooManyStates = errors.New("too many parse states")

// Input is what Build needs from a grammar. Symbols below Terminals are
// terminals, symbol 0 being the end of input; the Nonterminals following
// them are non-terminals.
type Input struct {
	Terminals    int
	Nonterminals int
	Start        lang.Symbol
	Productions  []Production
}

type builder struct {
	nterm, nsym int
	aug         lang.Symbol // augmented start symbol
	augProd     int
	hash        lang.Symbol // lookahead placeholder for propagation
	prods       []Production
	byLHS       [][]int

	itemBase []int
	itemProd []int
	itemDot  []int

	nullable []bool
	first    []*lang.SymbolSet

	states []*lrState
	index  map[string]int
}

type lrState struct {
	kernel      []int // item ids, sorted
	kernelIndex map[int]int
	gotos       map[lang.Symbol]int
	la          []*lang.SymbolSet // per kernel item
}

// Build constructs the LALR(1) table for in and resolves what conflicts it
// can with precedence and associativity.
func Build(in Input) (*Table, error) {
	b, err := newBuilder(in)
	if err != nil {
		return nil, err
	}
	b.computeNullable()
	b.computeFirst()
	b.buildLR0()
	if len(b.states) >= math.MaxUint16 {
		return nil, fmt.Errorf("%d states: %w", len(b.states), ErrTooManyStates)
	}
	b.computeLookaheads()
	return b.table(in), nil
}

func newBuilder(in Input) (*builder, error) {
	nsym := in.Terminals + in.Nonterminals
	if in.Terminals < 1 {
		return nil, fmt.Errorf("grammar has no end symbol")
	}
	if int(in.Start) < in.Terminals || int(in.Start) >= nsym {
		return nil, fmt.Errorf("start symbol %d is not a non-terminal", in.Start)
	}
	b := &builder{
		nterm:   in.Terminals,
		nsym:    nsym,
		aug:     lang.Symbol(nsym),
		hash:    lang.Symbol(in.Terminals),
		prods:   slices.Clone(in.Productions),
		byLHS:   make([][]int, nsym+1),
		index:   map[string]int{},
		augProd: len(in.Productions),
	}
	b.prods = append(b.prods, Production{LHS: b.aug, RHS: []lang.Symbol{in.Start}})
	for i, p := range b.prods {
		if int(p.LHS) < in.Terminals || int(p.LHS) > nsym {
			return nil, fmt.Errorf("production %d: left side %d is not a non-terminal", i, p.LHS)
		}
		for _, s := range p.RHS {
			if int(s) >= nsym {
				return nil, fmt.Errorf("production %d: unknown symbol %d", i, s)
			}
		}
		b.byLHS[p.LHS] = append(b.byLHS[p.LHS], i)
		b.itemBase = append(b.itemBase, len(b.itemProd))
		for d := 0; d <= len(p.RHS); d++ {
			b.itemProd = append(b.itemProd, i)
			b.itemDot = append(b.itemDot, d)
		}
	}
	for s := in.Terminals; s < nsym; s++ {
		if len(b.byLHS[s]) == 0 {
			return nil, fmt.Errorf("non-terminal %d has no productions", s)
		}
	}
	return b, nil
}

func (b *builder) isTerminal(s lang.Symbol) bool {
	return int(s) < b.nterm
}

func (b *builder) next(item int) (lang.Symbol, bool) {
	rhs := b.prods[b.itemProd[item]].RHS
	d := b.itemDot[item]
	if d >= len(rhs) {
		return 0, false
	}
	return rhs[d], true
}

func (b *builder) computeNullable() {
	b.nullable = make([]bool, b.nsym+1)
	for changed := true; changed; {
		changed = false
		for _, p := range b.prods {
			if b.nullable[p.LHS] {
				continue
			}
			all := true
			for _, s := range p.RHS {
				if !b.nullable[s] {
					all = false
					break
				}
			}
			if all {
				b.nullable[p.LHS] = true
				changed = true
			}
		}
	}
}

func (b *builder) computeFirst() {
	b.first = make([]*lang.SymbolSet, b.nsym+1)
	for s := range b.first {
		b.first[s] = lang.NewSymbolSet()
		if s < b.nterm {
			b.first[s].Add(lang.Symbol(s))
		}
	}
	for changed := true; changed; {
		changed = false
		for _, p := range b.prods {
			for _, s := range p.RHS {
				if b.first[p.LHS].Union(b.first[s]) {
					changed = true
				}
				if !b.nullable[s] {
					break
				}
			}
		}
	}
}

// firstOf returns FIRST of seq and whether seq can derive the empty string.
func (b *builder) firstOf(seq []lang.Symbol) (*lang.SymbolSet, bool) {
	out := lang.NewSymbolSet()
	for _, s := range seq {
		out.Union(b.first[s])
		if !b.nullable[s] {
			return out, false
		}
	}
	return out, true
}

func (b *builder) closure0(kernel []int) []int {
	seen := make(map[int]bool, len(kernel))
	out := slices.Clone(kernel)
	for _, it := range kernel {
		seen[it] = true
	}
	for i := 0; i < len(out); i++ {
		s, ok := b.next(out[i])
		if !ok || b.isTerminal(s) {
			continue
		}
		for _, p := range b.byLHS[s] {
			id := b.itemBase[p]
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

func kernelKey(kernel []int) string {
	var sb strings.Builder
	for _, it := range kernel {
		sb.WriteString(strconv.Itoa(it))
		sb.WriteByte(' ')
	}
	return sb.String()
}

func (b *builder) intern(kernel []int) int {
	slices.Sort(kernel)
	k := kernelKey(kernel)
	if id, ok := b.index[k]; ok {
		return id
	}
	st := &lrState{
		kernel:      kernel,
		kernelIndex: make(map[int]int, len(kernel)),
		gotos:       map[lang.Symbol]int{},
		la:          make([]*lang.SymbolSet, len(kernel)),
	}
	for i, it := range kernel {
		st.kernelIndex[it] = i
		st.la[i] = lang.NewSymbolSet()
	}
	b.index[k] = len(b.states)
	b.states = append(b.states, st)
	return len(b.states) - 1
}

func (b *builder) buildLR0() {
	b.intern([]int{b.itemBase[b.augProd]})
	for i := 0; i < len(b.states); i++ {
		st := b.states[i]
		succ := map[lang.Symbol][]int{}
		for _, it := range b.closure0(st.kernel) {
			if s, ok := b.next(it); ok {
				succ[s] = append(succ[s], it+1)
			}
		}
		syms := make([]lang.Symbol, 0, len(succ))
		for s := range succ {
			syms = append(syms, s)
		}
		slices.Sort(syms)
		for _, s := range syms {
			st.gotos[s] = b.intern(succ[s])
		}
	}
}

type laItem struct {
	id   int
	la   *lang.SymbolSet
	prec int
}

// closure1 is the LR(1) closure of seed. Items whose production has no
// precedence inherit the precedence of the item that introduced them, so a
// shift inside a nested rule competes with the precedence of its context.
func (b *builder) closure1(seed []laItem) []laItem {
	pos := make(map[int]int, len(seed))
	out := make([]laItem, 0, len(seed))
	for _, it := range seed {
		pos[it.id] = len(out)
		out = append(out, laItem{id: it.id, la: it.la.Clone(), prec: it.prec})
	}
	for changed := true; changed; {
		changed = false
		for i := 0; i < len(out); i++ {
			it := out[i]
			s, ok := b.next(it.id)
			if !ok || b.isTerminal(s) {
				continue
			}
			rhs := b.prods[b.itemProd[it.id]].RHS
			la, nullable := b.firstOf(rhs[b.itemDot[it.id]+1:])
			if nullable {
				la.Union(it.la)
			}
			for _, p := range b.byLHS[s] {
				id := b.itemBase[p]
				prec := b.prods[p].Prec
				if prec == 0 {
					prec = it.prec
				}
				j, ok := pos[id]
				if !ok {
					pos[id] = len(out)
					out = append(out, laItem{id: id, la: la.Clone(), prec: prec})
					changed = true
					continue
				}
				if out[j].la.Union(la) {
					changed = true
				}
				if b.prods[p].Prec == 0 && prec > out[j].prec {
					out[j].prec = prec
					changed = true
				}
			}
		}
	}
	return out
}

type propagation struct {
	state, item int
}

// computeLookaheads determines LALR(1) lookaheads by discovering spontaneous
// lookaheads and propagation links per kernel item, then propagating to a
// fixed point.
func (b *builder) computeLookaheads() {
	links := make([][][]propagation, len(b.states))
	for si, st := range b.states {
		links[si] = make([][]propagation, len(st.kernel))
		for ki, k := range st.kernel {
			seed := []laItem{{id: k, la: lang.NewSymbolSet(b.hash)}}
			for _, it := range b.closure1(seed) {
				s, ok := b.next(it.id)
				if !ok {
					continue
				}
				target := b.states[st.gotos[s]]
				ti := target.kernelIndex[it.id+1]
				for _, a := range it.la.Symbols() {
					if a == b.hash {
						links[si][ki] = append(links[si][ki], propagation{st.gotos[s], ti})
					} else {
						target.la[ti].Add(a)
					}
				}
			}
		}
	}

	b.states[0].la[0].Add(lang.SymbolEnd)
	for changed := true; changed; {
		changed = false
		for si, st := range b.states {
			for ki := range st.kernel {
				for _, l := range links[si][ki] {
					if b.states[l.state].la[l.item].Union(st.la[ki]) {
						changed = true
					}
				}
			}
		}
	}
}

type cell struct {
	shift              int // target state, -1 when none
	shiftMin, shiftMax int
	reduces            []int
	accept             bool
}

func (b *builder) table(in Input) *Table {
	nstates := len(b.states)
	t := &Table{
		terminals:    b.nterm,
		nonterminals: in.Nonterminals,
		productions:  in.Productions,
		actions:      make([][]Action, nstates*b.nterm),
		gotos:        make([]lang.StateID, nstates*in.Nonterminals),
		modes:        make([]int, nstates),
	}
	for i := range t.gotos {
		t.gotos[i] = lang.NoState
	}
	modeIndex := map[string]int{}

	for si, st := range b.states {
		seed := make([]laItem, len(st.kernel))
		for ki, k := range st.kernel {
			seed[ki] = laItem{id: k, la: st.la[ki], prec: b.prods[b.itemProd[k]].Prec}
		}
		cells := map[lang.Symbol]*cell{}
		get := func(s lang.Symbol) *cell {
			c, ok := cells[s]
			if !ok {
				c = &cell{shift: -1, shiftMin: math.MaxInt, shiftMax: math.MinInt}
				cells[s] = c
			}
			return c
		}
		for _, it := range b.closure1(seed) {
			p := b.itemProd[it.id]
			s, ok := b.next(it.id)
			switch {
			case !ok && p == b.augProd:
				if it.la.Has(lang.SymbolEnd) {
					get(lang.SymbolEnd).accept = true
				}
			case !ok:
				for _, a := range it.la.Symbols() {
					c := get(a)
					if !slices.Contains(c.reduces, p) {
						c.reduces = append(c.reduces, p)
					}
				}
			case b.isTerminal(s):
				c := get(s)
				c.shift = st.gotos[s]
				c.shiftMin = min(c.shiftMin, it.prec)
				c.shiftMax = max(c.shiftMax, it.prec)
			}
		}

		valid := lang.NewSymbolSet()
		for s, c := range cells {
			acts := b.resolve(c)
			if len(acts) == 0 {
				continue
			}
			valid.Add(s)
			t.actions[si*b.nterm+int(s)] = acts
			if len(acts) > 1 {
				t.conflicts = append(t.conflicts, Conflict{State: lang.StateID(si), Terminal: s, Actions: acts})
			}
		}
		for s, to := range st.gotos {
			if !b.isTerminal(s) {
				t.gotos[si*in.Nonterminals+int(s)-b.nterm] = lang.StateID(to)
			}
		}

		k := valid.Key()
		m, ok := modeIndex[k]
		if !ok {
			m = len(t.modeSets)
			modeIndex[k] = m
			t.modeSets = append(t.modeSets, valid)
		}
		t.modes[si] = m
	}
	slices.SortFunc(t.conflicts, func(x, y Conflict) int {
		if x.State != y.State {
			return int(x.State) - int(y.State)
		}
		return int(x.Terminal) - int(y.Terminal)
	})
	return t
}

// resolve applies static precedence rules to one table cell. Reductions
// compete by production precedence first; a shift then competes with each
// remaining reduction by precedence, and by the reduction's associativity
// when the precedences are equal. Ties that survive stay in the cell.
func (b *builder) resolve(c *cell) []Action {
	var acts []Action
	if c.accept {
		acts = append(acts, Action{Kind: Accept})
	}

	reduces := slices.Clone(c.reduces)
	slices.Sort(reduces)
	if len(reduces) > 1 {
		best := math.MinInt
		for _, r := range reduces {
			best = max(best, b.prods[r].Prec)
		}
		reduces = slices.DeleteFunc(reduces, func(r int) bool { return b.prods[r].Prec < best })
	}

	keepShift := c.shift >= 0
	if keepShift && len(reduces) > 0 {
		reduceWins := 0
		reduces = slices.DeleteFunc(reduces, func(r int) bool {
			p := b.prods[r]
			switch {
			case p.Prec > c.shiftMax:
				reduceWins++
				return false
			case p.Prec < c.shiftMin:
				return true
			case c.shiftMin == c.shiftMax && p.Assoc == AssocLeft:
				reduceWins++
				return false
			case c.shiftMin == c.shiftMax && p.Assoc == AssocRight:
				return true
			}
			return false
		})
		if len(reduces) > 0 && reduceWins == len(reduces) {
			keepShift = false
		}
	}

	if keepShift {
		acts = append(acts, Action{Kind: Shift, State: lang.StateID(c.shift)})
	}
	for _, r := range reduces {
		acts = append(acts, Action{Kind: Reduce, Production: r})
	}
	return acts
}
