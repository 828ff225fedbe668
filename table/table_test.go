package table

import (
	"strings"
	"testing"

	"github.com/upprsk/tree-sitter-yal/lang"
)

// Symbols of the arithmetic test grammar.
const (
	tEnd lang.Symbol = iota
	tNum
	tPlus
	tStar
	tLParen
	tRParen
	ntExpr
)

func arithmetic(plusAssoc Assoc) Input {
	return Input{
		Terminals:    6,
		Nonterminals: 1,
		Start:        ntExpr,
		Productions: []Production{
			{LHS: ntExpr, RHS: []lang.Symbol{ntExpr, tPlus, ntExpr}, Prec: 1, Assoc: plusAssoc},
			{LHS: ntExpr, RHS: []lang.Symbol{ntExpr, tStar, ntExpr}, Prec: 2, Assoc: AssocLeft},
			{LHS: ntExpr, RHS: []lang.Symbol{tNum}},
			{LHS: ntExpr, RHS: []lang.Symbol{tLParen, ntExpr, tRParen}},
		},
	}
}

// run drives tab deterministically over input, one token per character,
// and renders the derivation with brackets around every multi-child node.
func run(t *testing.T, tab *Table, input string, lex func(byte) lang.Symbol) string {
	t.Helper()
	tokens := strings.Fields(input)
	states := []lang.StateID{0}
	var vals []string
	for i := 0; ; {
		la, text := tEnd, ""
		if i < len(tokens) {
			la, text = lex(tokens[i][0]), tokens[i]
		}
		top := states[len(states)-1]
		acts := tab.Actions(top, la)
		if len(acts) != 1 {
			t.Fatalf("state %d on %d: %d actions", top, la, len(acts))
		}
		switch a := acts[0]; a.Kind {
		case Shift:
			states = append(states, a.State)
			vals = append(vals, text)
			i++
		case Reduce:
			p := tab.Production(a.Production)
			n := len(p.RHS)
			children := vals[len(vals)-n:]
			val := strings.Join(children, " ")
			if n > 1 {
				val = "[" + val + "]"
			}
			vals = append(vals[:len(vals)-n], val)
			states = states[:len(states)-n]
			to, ok := tab.Goto(states[len(states)-1], p.LHS)
			if !ok {
				t.Fatalf("no goto from %d on %d", states[len(states)-1], p.LHS)
			}
			states = append(states, to)
		case Accept:
			return vals[0]
		}
	}
}

func lexArithmetic(c byte) lang.Symbol {
	switch c {
	case '+':
		return tPlus
	case '*':
		return tStar
	case '(':
		return tLParen
	case ')':
		return tRParen
	}
	return tNum
}

func TestBuildArithmetic(t *testing.T) {
	tests := []struct {
		assoc Assoc
		input string
		want  string
	}{
		{AssocLeft, "1 + 2 + 3", "[[1 + 2] + 3]"},
		{AssocLeft, "1 + 2 * 3", "[1 + [2 * 3]]"},
		{AssocLeft, "1 * 2 + 3", "[[1 * 2] + 3]"},
		{AssocLeft, "( 1 + 2 ) * 3", "[[( [1 + 2] )] * 3]"},
		{AssocRight, "1 + 2 + 3", "[1 + [2 + 3]]"},
		{AssocRight, "1 * 2 * 3", "[[1 * 2] * 3]"},
	}
	for _, tt := range tests {
		t.Run(tt.assoc.String()+" "+tt.input, func(t *testing.T) {
			tab, err := Build(arithmetic(tt.assoc))
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if n := len(tab.Conflicts()); n != 0 {
				t.Fatalf("Conflicts = %d, want 0", n)
			}
			if got := run(t, tab, tt.input, lexArithmetic); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBuildKeepsUnresolvedConflict(t *testing.T) {
	tab, err := Build(arithmetic(AssocNone))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	conflicts := tab.Conflicts()
	if len(conflicts) != 1 {
		t.Fatalf("Conflicts = %d, want 1", len(conflicts))
	}
	c := conflicts[0]
	if c.Terminal != tPlus {
		t.Errorf("Terminal = %d, want %d", c.Terminal, tPlus)
	}
	if len(c.Actions) != 2 || c.Actions[0].Kind != Shift || c.Actions[1].Kind != Reduce {
		t.Errorf("Actions = %v, want [shift, reduce]", c.Actions)
	}
	if got := tab.Stats().Conflicts; got != 1 {
		t.Errorf("Stats().Conflicts = %d, want 1", got)
	}
}

func TestBuildReduceReduce(t *testing.T) {
	const (
		end lang.Symbol = iota
		x
		s
		a
		b
	)
	in := Input{
		Terminals:    2,
		Nonterminals: 3,
		Start:        s,
		Productions: []Production{
			{LHS: s, RHS: []lang.Symbol{a}},
			{LHS: s, RHS: []lang.Symbol{b}},
			{LHS: a, RHS: []lang.Symbol{x}},
			{LHS: b, RHS: []lang.Symbol{x}},
		},
	}
	tab, err := Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(tab.Conflicts()) != 1 {
		t.Fatalf("Conflicts = %d, want 1", len(tab.Conflicts()))
	}
	acts := tab.Conflicts()[0].Actions
	if len(acts) != 2 || acts[0].Production != 2 || acts[1].Production != 3 {
		t.Errorf("Actions = %v, want reduce 2 then reduce 3", acts)
	}

	in.Productions[3].Prec = 1
	tab, err = Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(tab.Conflicts()) != 0 {
		t.Fatalf("Conflicts = %d, want 0", len(tab.Conflicts()))
	}
	shift := tab.Actions(0, x)
	if len(shift) != 1 || shift[0].Kind != Shift {
		t.Fatalf("Actions(0, x) = %v", shift)
	}
	acts = tab.Actions(shift[0].State, end)
	if len(acts) != 1 || acts[0].Production != 3 {
		t.Errorf("Actions = %v, want reduce 3", acts)
	}
}

func TestBuildInheritsShiftPrecedence(t *testing.T) {
	const (
		end lang.Symbol = iota
		id
		star
		lparen
		rparen
		expr
		args
	)
	in := Input{
		Terminals:    5,
		Nonterminals: 2,
		Start:        expr,
		Productions: []Production{
			{LHS: expr, RHS: []lang.Symbol{star, expr}, Prec: 5, Assoc: AssocLeft},
			{LHS: expr, RHS: []lang.Symbol{expr, args}, Prec: 6, Assoc: AssocLeft},
			{LHS: expr, RHS: []lang.Symbol{id}},
			{LHS: args, RHS: []lang.Symbol{lparen, rparen}},
		},
	}
	tab, err := Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	lex := func(c byte) lang.Symbol {
		switch c {
		case '*':
			return star
		case '(':
			return lparen
		case ')':
			return rparen
		}
		return id
	}
	if got, want := run(t, tab, "* a ( )", lex), "[* [a [( )]]]"; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestBuildEmptyProductions(t *testing.T) {
	const (
		end lang.Symbol = iota
		x
		list
	)
	tab, err := Build(Input{
		Terminals:    2,
		Nonterminals: 1,
		Start:        list,
		Productions: []Production{
			{LHS: list, RHS: []lang.Symbol{list, x}},
			{LHS: list},
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	lex := func(byte) lang.Symbol { return x }
	if got, want := run(t, tab, "a b c", lex), "[[[ a] b] c]"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got := run(t, tab, "", lex); got != "" {
		t.Errorf("empty input = %q, want empty", got)
	}
}

func TestValidTerminals(t *testing.T) {
	tab, err := Build(arithmetic(AssocLeft))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	valid := tab.ValidTerminals(0)
	want := lang.NewSymbolSet(tNum, tLParen)
	if !valid.Equal(want) {
		t.Errorf("ValidTerminals(0) = %v, want %v", valid.Symbols(), want.Symbols())
	}
	if tab.ModeTerminals(tab.LexMode(0)) != valid {
		t.Error("LexMode(0) does not select the state's terminals")
	}
	if tab.Stats().LexModes > tab.States() {
		t.Errorf("LexModes = %d exceeds States = %d", tab.Stats().LexModes, tab.States())
	}
	if acts := tab.Actions(0, tPlus); acts != nil {
		t.Errorf("Actions(0, +) = %v, want none", acts)
	}
	if _, ok := tab.Goto(0, tNum); ok {
		t.Error("Goto on a terminal succeeded")
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		in   Input
	}{
		{"terminal start", Input{Terminals: 2, Nonterminals: 1, Start: 1}},
		{"no productions", Input{Terminals: 2, Nonterminals: 1, Start: 2}},
		{"unknown symbol", Input{Terminals: 2, Nonterminals: 1, Start: 2, Productions: []Production{
			{LHS: 2, RHS: []lang.Symbol{7}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Build(tt.in); err == nil {
				t.Error("expected error")
			}
		})
	}
}
