// Package table holds LR parse tables: actions and gotos per state, the
// terminals valid in each state and the conflicts left for the parser to
// fork on.
package table

import (
	"fmt"
	"io"

	"github.com/upprsk/tree-sitter-yal/lang"
)

// Assoc is the associativity of a production.
type Assoc int

const (
	AssocNone Assoc = iota
	AssocLeft
	AssocRight
)

func (a Assoc) String() string {
	switch a {
	case AssocLeft:
		return "left"
	case AssocRight:
		return "right"
	}
	return "none"
}

// Production is one alternative of a non-terminal after normalisation.
type Production struct {
	LHS         lang.Symbol
	RHS         []lang.Symbol
	Prec        int
	Assoc       Assoc
	DynamicPrec int
}

// ActionKind tells what an Action does.
type ActionKind uint8

const (
	Shift ActionKind = iota + 1
	Reduce
	Accept
)

func (k ActionKind) String() string {
	switch k {
	case Shift:
		return "shift"
	case Reduce:
		return "reduce"
	case Accept:
		return "accept"
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// Action is one parse table entry. State is set for shifts, Production
// for reductions.
type Action struct {
	Kind       ActionKind
	State      lang.StateID
	Production int
}

func (a Action) String() string {
	switch a.Kind {
	case Shift:
		return fmt.Sprintf("shift %d", a.State)
	case Reduce:
		return fmt.Sprintf("reduce %d", a.Production)
	}
	return a.Kind.String()
}

// Conflict is a table cell holding more than one action after static
// resolution.
type Conflict struct {
	State    lang.StateID
	Terminal lang.Symbol
	Actions  []Action
}

// Stats summarises a table.
type Stats struct {
	States       int
	Terminals    int
	Nonterminals int
	Productions  int
	Conflicts    int
	LexModes     int
}

// Table is an immutable LR parse table. Terminals are the symbols below
// Terminals(); non-terminals follow them.
type Table struct {
	terminals    int
	nonterminals int
	productions  []Production

	actions   [][]Action     // state*terminals + terminal
	gotos     []lang.StateID // state*nonterminals + (symbol - terminals)
	modes     []int          // state -> index into modeSets
	modeSets  []*lang.SymbolSet
	conflicts []Conflict
}

// States returns the number of parse states. State 0 is the start state.
func (t *Table) States() int {
	return len(t.modes)
}

// Terminals returns the number of terminal symbols.
func (t *Table) Terminals() int {
	return t.terminals
}

// IsTerminal reports whether sym is a terminal of this table.
func (t *Table) IsTerminal(sym lang.Symbol) bool {
	return int(sym) < t.terminals
}

// Actions returns the actions of state on terminal. More than one action
// is a conflict set to fork on, in registration order.
func (t *Table) Actions(state lang.StateID, terminal lang.Symbol) []Action {
	if int(state) >= len(t.modes) || int(terminal) >= t.terminals {
		return nil
	}
	return t.actions[int(state)*t.terminals+int(terminal)]
}

// Goto returns the state reached from state after reducing to nonterminal.
func (t *Table) Goto(state lang.StateID, nonterminal lang.Symbol) (lang.StateID, bool) {
	i := int(nonterminal) - t.terminals
	if int(state) >= len(t.modes) || i < 0 || i >= t.nonterminals {
		return lang.NoState, false
	}
	s := t.gotos[int(state)*t.nonterminals+i]
	return s, s != lang.NoState
}

// LexMode returns the lex mode of state. States with the same valid
// terminals share a mode.
func (t *Table) LexMode(state lang.StateID) int {
	return t.modes[state]
}

// ModeTerminals returns the terminals valid in lex mode m. The set must
// not be modified.
func (t *Table) ModeTerminals(m int) *lang.SymbolSet {
	return t.modeSets[m]
}

// ValidTerminals returns the terminals with an action in state. The set
// must not be modified.
func (t *Table) ValidTerminals(state lang.StateID) *lang.SymbolSet {
	return t.modeSets[t.modes[state]]
}

// Production returns production i.
func (t *Table) Production(i int) Production {
	return t.productions[i]
}

// Productions returns the number of productions.
func (t *Table) Productions() int {
	return len(t.productions)
}

// Conflicts returns the cells left with more than one action.
func (t *Table) Conflicts() []Conflict {
	return t.conflicts
}

// Stats reports the size of the table.
func (t *Table) Stats() Stats {
	return Stats{
		States:       t.States(),
		Terminals:    t.terminals,
		Nonterminals: t.nonterminals,
		Productions:  len(t.productions),
		Conflicts:    len(t.conflicts),
		LexModes:     len(t.modeSets),
	}
}

// Dump writes a readable listing of every state. name renders symbols.
func (t *Table) Dump(w io.Writer, name func(lang.Symbol) string) error {
	for s := 0; s < t.States(); s++ {
		if _, err := fmt.Fprintf(w, "state %d (mode %d)\n", s, t.modes[s]); err != nil {
			return err
		}
		for term := 0; term < t.terminals; term++ {
			acts := t.actions[s*t.terminals+term]
			if len(acts) == 0 {
				continue
			}
			if _, err := fmt.Fprintf(w, "  %-20s %v\n", name(lang.Symbol(term)), acts); err != nil {
				return err
			}
		}
		for i := 0; i < t.nonterminals; i++ {
			to := t.gotos[s*t.nonterminals+i]
			if to == lang.NoState {
				continue
			}
			sym := lang.Symbol(t.terminals + i)
			if _, err := fmt.Fprintf(w, "  %-20s goto %d\n", name(sym), to); err != nil {
				return err
			}
		}
	}
	return nil
}
