package lexer

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/upprsk/tree-sitter-yal/lang"
)

// Terminal describes one token of a grammar.
type Terminal struct {
	Symbol lang.Symbol
	Name   string

	// Pattern is a literal string when Literal is set, a regular expression
	// in Go syntax otherwise.
	Pattern string
	Literal bool

	// Priority breaks ties between matches of equal length. Higher wins.
	Priority int

	// Immediate tokens match only when no separator precedes them.
	Immediate bool

	// Skip marks separators: they are consumed as padding and never
	// reported. Extra marks named extras: they are reported as tokens
	// in every state.
	Skip  bool
	Extra bool
}

type transition struct {
	lo, hi rune
	to     int
}

type dfaState struct {
	trans  []transition
	accept []int   // terminal indices, most preferred first
	reach  termSet // terminals accepted here or in any later state
}

// termSet is a bit set of terminal indices.
type termSet []uint64

func (s termSet) has(i int) bool {
	return i>>6 < len(s) && s[i>>6]&(1<<(uint(i)&63)) != 0
}

func (s *termSet) add(i int) {
	for len(*s) <= i>>6 {
		*s = append(*s, 0)
	}
	(*s)[i>>6] |= 1 << (uint(i) & 63)
}

func (s *termSet) union(o termSet) bool {
	changed := false
	for i, w := range o {
		if i >= len(*s) {
			*s = append(*s, 0)
		}
		if (*s)[i]|w != (*s)[i] {
			(*s)[i] |= w
			changed = true
		}
	}
	return changed
}

func (s termSet) intersects(o termSet) bool {
	for i := 0; i < len(s) && i < len(o); i++ {
		if s[i]&o[i] != 0 {
			return true
		}
	}
	return false
}

// Automaton is a deterministic automaton recognising every terminal of a
// grammar at once. It is immutable and safe for concurrent use.
type Automaton struct {
	terminals []Terminal
	bySymbol  map[lang.Symbol]int
	states    []dfaState
}

// Compile builds the automaton for terminals. Terminal order is definition
// order, used as the last tie breaker.
func Compile(terminals []Terminal) (*Automaton, error) {
	n := &nfa{}
	start := n.add()
	for i, t := range terminals {
		var f fragment
		if t.Literal {
			if t.Pattern == "" {
				return nil, fmt.Errorf("terminal %s: empty literal", t.Name)
			}
			f = n.literal(t.Pattern)
		} else {
			var err error
			f, err = n.pattern(t.Pattern)
			if err != nil {
				return nil, fmt.Errorf("terminal %s: %w", t.Name, err)
			}
		}
		n.epsilon(start, f.start)
		n.states[f.end].accept = i
	}

	a := &Automaton{
		terminals: slices.Clone(terminals),
		bySymbol:  make(map[lang.Symbol]int, len(terminals)),
	}
	for i, t := range terminals {
		a.bySymbol[t.Symbol] = i
	}
	a.determinize(n, start)
	return a, nil
}

func setKey(set []int) string {
	var sb strings.Builder
	for _, s := range set {
		sb.WriteString(strconv.Itoa(s))
		sb.WriteByte(',')
	}
	return sb.String()
}

func (a *Automaton) determinize(n *nfa, start int) {
	index := map[string]int{}
	var sets [][]int

	intern := func(set []int) int {
		k := setKey(set)
		if id, ok := index[k]; ok {
			return id
		}
		id := len(sets)
		index[k] = id
		sets = append(sets, set)
		a.states = append(a.states, dfaState{accept: a.acceptList(n, set)})
		return id
	}

	intern(n.closure([]int{start}))
	for work := 0; work < len(sets); work++ {
		set := sets[work]

		// Split the alphabet at every range boundary so each interval
		// moves to a single target set.
		var bounds []rune
		for _, s := range set {
			r := n.states[s].ranges
			for i := 0; i < len(r); i += 2 {
				bounds = append(bounds, r[i], r[i+1]+1)
			}
		}
		slices.Sort(bounds)
		bounds = slices.Compact(bounds)

		var trans []transition
		for i := 0; i+1 < len(bounds); i++ {
			lo, hi := bounds[i], bounds[i+1]-1
			var targets []int
			for _, s := range set {
				if inRanges(n.states[s].ranges, lo) {
					targets = append(targets, n.states[s].out)
				}
			}
			if len(targets) == 0 {
				continue
			}
			to := intern(n.closure(targets))
			if k := len(trans) - 1; k >= 0 && trans[k].to == to && trans[k].hi+1 == lo {
				trans[k].hi = hi
				continue
			}
			trans = append(trans, transition{lo: lo, hi: hi, to: to})
		}
		a.states[work].trans = trans
	}
	a.computeReach()
}

func (a *Automaton) computeReach() {
	for i := range a.states {
		for _, t := range a.states[i].accept {
			a.states[i].reach.add(t)
		}
	}
	for changed := true; changed; {
		changed = false
		for i := range a.states {
			for _, tr := range a.states[i].trans {
				if a.states[i].reach.union(a.states[tr.to].reach) {
					changed = true
				}
			}
		}
	}
}

func inRanges(r []rune, c rune) bool {
	for i := 0; i < len(r); i += 2 {
		if r[i] <= c && c <= r[i+1] {
			return true
		}
	}
	return false
}

// acceptList orders the terminals accepted by set: higher priority first,
// then tokens before separators, then literals before patterns, then
// definition order.
func (a *Automaton) acceptList(n *nfa, set []int) []int {
	var acc []int
	for _, s := range set {
		if t := n.states[s].accept; t >= 0 {
			acc = append(acc, t)
		}
	}
	slices.SortFunc(acc, func(x, y int) int {
		tx, ty := a.terminals[x], a.terminals[y]
		if tx.Priority != ty.Priority {
			return ty.Priority - tx.Priority
		}
		if tx.Skip != ty.Skip {
			if ty.Skip {
				return -1
			}
			return 1
		}
		if tx.Literal != ty.Literal {
			if tx.Literal {
				return -1
			}
			return 1
		}
		return x - y
	})
	return slices.Compact(acc)
}

func (a *Automaton) step(state int, c rune) int {
	trans := a.states[state].trans
	i, j := 0, len(trans)
	for i < j {
		m := (i + j) / 2
		switch {
		case c < trans[m].lo:
			j = m
		case c > trans[m].hi:
			i = m + 1
		default:
			return trans[m].to
		}
	}
	return -1
}

// Match runs the automaton on src from pos and returns the index of the
// longest allowed terminal match, the end offset of that match and the
// offset just past the last byte examined. term is -1 when nothing matched.
// Empty matches are never reported.
func (a *Automaton) Match(src []byte, pos int, allowed termSet) (term, end, scanned int) {
	term, end, scanned = -1, pos, pos
	state := 0
	if !a.states[state].reach.intersects(allowed) {
		return term, end, scanned
	}
	for i := pos; ; {
		if i >= len(src) {
			// Seeing end of input counts as one byte of lookahead.
			scanned = max(scanned, i+1)
			break
		}
		c, size := utf8.DecodeRune(src[i:])
		scanned = max(scanned, i+size)
		state = a.step(state, c)
		if state < 0 || !a.states[state].reach.intersects(allowed) {
			break
		}
		i += size
		for _, t := range a.states[state].accept {
			if allowed.has(t) {
				term, end = t, i
				break
			}
		}
	}
	return term, end, scanned
}

// allow returns the set of terminals for which keep holds.
func (a *Automaton) allow(keep func(t *Terminal) bool) termSet {
	var s termSet
	for i := range a.terminals {
		if keep(&a.terminals[i]) {
			s.add(i)
		}
	}
	return s
}

// Terminal returns the terminal with index i.
func (a *Automaton) Terminal(i int) Terminal {
	return a.terminals[i]
}

// Terminals returns the number of terminals.
func (a *Automaton) Terminals() int {
	return len(a.terminals)
}

// Lookup returns the terminal index of sym.
func (a *Automaton) Lookup(sym lang.Symbol) (int, bool) {
	i, ok := a.bySymbol[sym]
	return i, ok
}

// States returns the number of automaton states.
func (a *Automaton) States() int {
	return len(a.states)
}
