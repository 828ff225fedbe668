package lexer

import (
	"fmt"
	"regexp/syntax"
	"slices"
	"unicode"
	"unicode/utf8"
)

// nfaState is one Thompson NFA node. A state either consumes one rune from
// ranges and moves to out, or only has epsilon edges.
type nfaState struct {
	ranges []rune // lo/hi pairs
	out    int
	eps    []int
	accept int // terminal index, -1 when not accepting
}

type nfa struct {
	states []nfaState
}

type fragment struct {
	start, end int
}

func (n *nfa) add() int {
	n.states = append(n.states, nfaState{out: -1, accept: -1})
	return len(n.states) - 1
}

func (n *nfa) epsilon(from, to int) {
	n.states[from].eps = append(n.states[from].eps, to)
}

func (n *nfa) runes(ranges []rune) fragment {
	s, e := n.add(), n.add()
	n.states[s].ranges = ranges
	n.states[s].out = e
	return fragment{s, e}
}

func (n *nfa) empty() fragment {
	s, e := n.add(), n.add()
	n.epsilon(s, e)
	return fragment{s, e}
}

func (n *nfa) concat(frags []fragment) fragment {
	if len(frags) == 0 {
		return n.empty()
	}
	for i := 0; i+1 < len(frags); i++ {
		n.epsilon(frags[i].end, frags[i+1].start)
	}
	return fragment{frags[0].start, frags[len(frags)-1].end}
}

func (n *nfa) alternate(frags []fragment) fragment {
	s, e := n.add(), n.add()
	for _, f := range frags {
		n.epsilon(s, f.start)
		n.epsilon(f.end, e)
	}
	return fragment{s, e}
}

func (n *nfa) star(f fragment) fragment {
	s, e := n.add(), n.add()
	n.epsilon(s, f.start)
	n.epsilon(s, e)
	n.epsilon(f.end, f.start)
	n.epsilon(f.end, e)
	return fragment{s, e}
}

func (n *nfa) plus(f fragment) fragment {
	s, e := n.add(), n.add()
	n.epsilon(s, f.start)
	n.epsilon(f.end, f.start)
	n.epsilon(f.end, e)
	return fragment{s, e}
}

func (n *nfa) quest(f fragment) fragment {
	s, e := n.add(), n.add()
	n.epsilon(s, f.start)
	n.epsilon(s, e)
	n.epsilon(f.end, e)
	return fragment{s, e}
}

// literal builds a fragment matching text exactly.
func (n *nfa) literal(text string) fragment {
	var frags []fragment
	for _, r := range text {
		frags = append(frags, n.runes([]rune{r, r}))
	}
	return n.concat(frags)
}

// pattern builds a fragment from a regular expression in Go syntax.
func (n *nfa) pattern(expr string) (fragment, error) {
	re, err := syntax.Parse(expr, syntax.Perl)
	if err != nil {
		return fragment{}, fmt.Errorf("parse pattern %q: %w", expr, err)
	}
	return n.regexp(re.Simplify())
}

func (n *nfa) regexp(re *syntax.Regexp) (fragment, error) {
	switch re.Op {
	case syntax.OpNoMatch:
		s, e := n.add(), n.add()
		return fragment{s, e}, nil
	case syntax.OpEmptyMatch:
		return n.empty(), nil
	case syntax.OpLiteral:
		var frags []fragment
		for _, r := range re.Rune {
			if re.Flags&syntax.FoldCase != 0 {
				frags = append(frags, n.runes(foldRanges(r)))
			} else {
				frags = append(frags, n.runes([]rune{r, r}))
			}
		}
		return n.concat(frags), nil
	case syntax.OpCharClass:
		return n.runes(append([]rune(nil), re.Rune...)), nil
	case syntax.OpAnyCharNotNL:
		return n.runes([]rune{0, '\n' - 1, '\n' + 1, utf8.MaxRune}), nil
	case syntax.OpAnyChar:
		return n.runes([]rune{0, utf8.MaxRune}), nil
	case syntax.OpCapture:
		return n.regexp(re.Sub[0])
	case syntax.OpStar, syntax.OpPlus, syntax.OpQuest:
		f, err := n.regexp(re.Sub[0])
		if err != nil {
			return f, err
		}
		switch re.Op {
		case syntax.OpStar:
			return n.star(f), nil
		case syntax.OpPlus:
			return n.plus(f), nil
		}
		return n.quest(f), nil
	case syntax.OpRepeat:
		return n.repeat(re)
	case syntax.OpConcat, syntax.OpAlternate:
		frags := make([]fragment, 0, len(re.Sub))
		for _, sub := range re.Sub {
			f, err := n.regexp(sub)
			if err != nil {
				return f, err
			}
			frags = append(frags, f)
		}
		if re.Op == syntax.OpConcat {
			return n.concat(frags), nil
		}
		return n.alternate(frags), nil
	}
	return fragment{}, fmt.Errorf("unsupported pattern operator %v in %q", re.Op, re.String())
}

// repeat expands x{min,max}. Simplify removes most repeats already; this
// handles the ones it keeps.
func (n *nfa) repeat(re *syntax.Regexp) (fragment, error) {
	var frags []fragment
	for i := 0; i < re.Min; i++ {
		f, err := n.regexp(re.Sub[0])
		if err != nil {
			return f, err
		}
		frags = append(frags, f)
	}
	if re.Max < 0 {
		f, err := n.regexp(re.Sub[0])
		if err != nil {
			return f, err
		}
		frags = append(frags, n.star(f))
	} else {
		for i := re.Min; i < re.Max; i++ {
			f, err := n.regexp(re.Sub[0])
			if err != nil {
				return f, err
			}
			frags = append(frags, n.quest(f))
		}
	}
	return n.concat(frags), nil
}

func foldRanges(r rune) []rune {
	out := []rune{r, r}
	for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
		out = append(out, f, f)
	}
	return out
}

// closure returns the epsilon closure of set, sorted and deduplicated.
func (n *nfa) closure(set []int) []int {
	seen := make(map[int]bool, len(set))
	stack := append([]int(nil), set...)
	for _, s := range set {
		seen[s] = true
	}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, t := range n.states[s].eps {
			if !seen[t] {
				seen[t] = true
				stack = append(stack, t)
			}
		}
	}
	out := make([]int, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}
