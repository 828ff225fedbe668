// Package grammar compiles a rule definition into the artefacts a parser
// needs: the symbol table, the productions with their fields, the LR parse
// table and the lexer automaton.
package grammar

import (
	"github.com/upprsk/tree-sitter-yal/lang"
	"github.com/upprsk/tree-sitter-yal/lexer"
	"github.com/upprsk/tree-sitter-yal/table"
)

// Definition describes a language. The first rule is the start rule.
type Definition struct {
	Name  string
	Rules []Def

	// Extras may appear anywhere. Patterns are separators, symbols name
	// lexical rules emitted as extra tokens.
	Extras []Rule

	// Externals name terminals recognised by Scanner.
	Externals []string
	Scanner   lexer.ScannerFactory
}

// SymbolInfo describes one symbol.
type SymbolInfo struct {
	Name     string
	Visible  bool
	Named    bool
	Terminal bool
	Extra    bool
	External bool
}

// Grammar is a compiled language. It is immutable and safe for concurrent
// use.
type Grammar struct {
	def      *Definition
	symbols  []SymbolInfo
	byName   map[symbolKey]lang.Symbol
	fields   []string // indexed by FieldID; 0 is unused
	prodFlds [][]lang.FieldID
	start    lang.Symbol

	table     *table.Table
	automaton *lexer.Automaton
	externals []lang.Symbol
}

type symbolKey struct {
	name  string
	named bool
}

var errorInfo = SymbolInfo{Name: "ERROR", Visible: true, Named: true}

// Name returns the language name.
func (g *Grammar) Name() string { return g.def.Name }

// Definition returns the definition g was compiled from.
func (g *Grammar) Definition() *Definition { return g.def }

// Table returns the parse table.
func (g *Grammar) Table() *table.Table { return g.table }

// Automaton returns the lexer automaton.
func (g *Grammar) Automaton() *lexer.Automaton { return g.automaton }

// Start returns the start symbol.
func (g *Grammar) Start() lang.Symbol { return g.start }

// SymbolCount returns the number of symbols, not counting the error symbol.
func (g *Grammar) SymbolCount() int { return len(g.symbols) }

// Symbol returns the metadata of sym.
func (g *Grammar) Symbol(sym lang.Symbol) SymbolInfo {
	if int(sym) >= len(g.symbols) {
		return errorInfo
	}
	return g.symbols[sym]
}

// SymbolName returns the name of sym. Anonymous terminals are named by
// their text.
func (g *Grammar) SymbolName(sym lang.Symbol) string { return g.Symbol(sym).Name }

// SymbolVisible reports whether nodes of sym appear in the tree.
func (g *Grammar) SymbolVisible(sym lang.Symbol) bool { return g.Symbol(sym).Visible }

// SymbolNamed reports whether sym is a named rule rather than literal text.
func (g *Grammar) SymbolNamed(sym lang.Symbol) bool { return g.Symbol(sym).Named }

// SymbolForName looks a symbol up by name.
func (g *Grammar) SymbolForName(name string, named bool) (lang.Symbol, bool) {
	if named && name == errorInfo.Name {
		return lang.SymbolError, true
	}
	s, ok := g.byName[symbolKey{name, named}]
	return s, ok
}

// FieldCount returns the number of field names.
func (g *Grammar) FieldCount() int { return len(g.fields) - 1 }

// FieldName returns the name of id, or "" for id 0.
func (g *Grammar) FieldName(id lang.FieldID) string {
	if int(id) >= len(g.fields) {
		return ""
	}
	return g.fields[id]
}

// FieldID looks a field up by name.
func (g *Grammar) FieldID(name string) (lang.FieldID, bool) {
	for i := 1; i < len(g.fields); i++ {
		if g.fields[i] == name {
			return lang.FieldID(i), true
		}
	}
	return 0, false
}

// ProductionFields returns the field of each child of production p.
func (g *Grammar) ProductionFields(p int) []lang.FieldID {
	if p < 0 || p >= len(g.prodFlds) {
		return nil
	}
	return g.prodFlds[p]
}

// Externals returns the external token symbols in scanner order.
func (g *Grammar) Externals() []lang.Symbol { return g.externals }

// NewLexer returns a lexer with a fresh external scanner.
func (g *Grammar) NewLexer() *lexer.Lexer {
	var scanner lexer.ExternalScanner
	if g.def.Scanner != nil && len(g.externals) > 0 {
		scanner = g.def.Scanner()
	}
	return lexer.New(g.automaton, g.externals, scanner)
}
