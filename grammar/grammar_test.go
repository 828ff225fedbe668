package grammar

import (
	"errors"
	"strings"
	"testing"

	"github.com/upprsk/tree-sitter-yal/lang"
	"github.com/upprsk/tree-sitter-yal/table"
)

func calcDefinition() *Definition {
	return &Definition{
		Name: "calc",
		Rules: []Def{
			{"program", Repeat(Sym("_statement"))},
			{"_statement", Choice(Sym("assignment"), Seq(Sym("_expression"), Str(";")))},
			{"assignment", Seq(Field("left", Sym("identifier")), Str("="), Field("right", Sym("_expression")), Str(";"))},
			{"_expression", Choice(Sym("binary"), Sym("identifier"), Sym("number"))},
			{"binary", Choice(
				PrecLeft(1, Seq(Field("left", Sym("_expression")), Field("operator", Choice(Str("+"), Str("-"))), Field("right", Sym("_expression")))),
				PrecLeft(2, Seq(Field("left", Sym("_expression")), Field("operator", Str("*")), Field("right", Sym("_expression")))),
			)},
			{"identifier", Pattern(`[a-z]+`)},
			{"number", Token(Seq(Pattern(`[0-9]+`), Optional(Seq(Str("."), Pattern(`[0-9]+`)))))},
			{"comment", Token(Seq(Str("#"), Pattern(`[^\n]*`)))},
		},
		Extras: []Rule{Pattern(`\s`), Sym("comment")},
	}
}

func TestCompileSymbols(t *testing.T) {
	g, err := Compile(calcDefinition())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	tests := []struct {
		name     string
		named    bool
		visible  bool
		terminal bool
		extra    bool
	}{
		{"program", true, true, false, false},
		{"_statement", true, false, false, false},
		{"binary", true, true, false, false},
		{"identifier", true, true, true, false},
		{"number", true, true, true, false},
		{"comment", true, true, true, true},
		{"+", false, true, true, false},
		{";", false, true, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sym, ok := g.SymbolForName(tt.name, tt.named)
			if !ok {
				t.Fatalf("SymbolForName(%q) not found", tt.name)
			}
			info := g.Symbol(sym)
			if info.Name != tt.name {
				t.Errorf("Name = %q, want %q", info.Name, tt.name)
			}
			if info.Visible != tt.visible {
				t.Errorf("Visible = %v, want %v", info.Visible, tt.visible)
			}
			if info.Terminal != tt.terminal {
				t.Errorf("Terminal = %v, want %v", info.Terminal, tt.terminal)
			}
			if info.Extra != tt.extra {
				t.Errorf("Extra = %v, want %v", info.Extra, tt.extra)
			}
			if g.Table().IsTerminal(sym) != tt.terminal {
				t.Errorf("table disagrees about terminal %q", tt.name)
			}
		})
	}

	if g.SymbolName(lang.SymbolError) != "ERROR" {
		t.Errorf("SymbolName(SymbolError) = %q", g.SymbolName(lang.SymbolError))
	}
	if g.SymbolName(g.Start()) != "program" {
		t.Errorf("start = %q, want program", g.SymbolName(g.Start()))
	}
	if _, ok := g.SymbolForName("program_repeat1", false); !ok {
		t.Error("repeat helper rule missing")
	}
}

func TestCompileFields(t *testing.T) {
	g, err := Compile(calcDefinition())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if g.FieldCount() != 3 {
		t.Fatalf("FieldCount = %d, want 3", g.FieldCount())
	}
	for i, want := range []string{"left", "operator", "right"} {
		id := lang.FieldID(i + 1)
		if got := g.FieldName(id); got != want {
			t.Errorf("FieldName(%d) = %q, want %q", id, got, want)
		}
		if got, ok := g.FieldID(want); !ok || got != id {
			t.Errorf("FieldID(%q) = %d, %v", want, got, ok)
		}
	}

	binary, _ := g.SymbolForName("binary", true)
	plus, _ := g.SymbolForName("+", false)
	tab := g.Table()
	found := false
	for p := 0; p < tab.Productions(); p++ {
		prod := tab.Production(p)
		if prod.LHS != binary || prod.RHS[1] != plus {
			continue
		}
		found = true
		if prod.Prec != 1 || prod.Assoc != table.AssocLeft {
			t.Errorf("prec/assoc = %d/%v, want 1/left", prod.Prec, prod.Assoc)
		}
		fields := g.ProductionFields(p)
		want := []string{"left", "operator", "right"}
		for i, f := range fields {
			if g.FieldName(f) != want[i] {
				t.Errorf("child %d field = %q, want %q", i, g.FieldName(f), want[i])
			}
		}
	}
	if !found {
		t.Error("no binary production for +")
	}
}

func TestCompileTokenPriority(t *testing.T) {
	def := &Definition{
		Name: "prio",
		Rules: []Def{
			{"doc", Repeat(Choice(Sym("word"), Sym("content")))},
			{"word", Pattern(`[a-z]+`)},
			{"content", ImmediateToken(Prec(1, Pattern(`[^"]+`)))},
		},
	}
	g, err := Compile(def)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	content, _ := g.SymbolForName("content", true)
	a := g.Automaton()
	i, ok := a.Lookup(content)
	if !ok {
		t.Fatal("content has no terminal")
	}
	term := a.Terminal(i)
	if term.Priority != 1 || !term.Immediate {
		t.Errorf("priority/immediate = %d/%v, want 1/true", term.Priority, term.Immediate)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		def  *Definition
		want error
	}{
		{"no rules", &Definition{Name: "x"}, ErrInvalidRule},
		{"undefined", &Definition{Name: "x", Rules: []Def{{"a", Sym("b")}}}, ErrUndefinedSymbol},
		{"token start", &Definition{Name: "x", Rules: []Def{{"a", Str("a")}}}, ErrInvalidRule},
		{"duplicate", &Definition{Name: "x", Rules: []Def{{"a", Str("a")}, {"a", Str("b")}}}, ErrInvalidRule},
		{"symbol in token", &Definition{Name: "x", Rules: []Def{
			{"a", Sym("t")},
			{"t", Token(Seq(Str("x"), Sym("a")))},
		}}, ErrInvalidRule},
		{"rule extra", &Definition{Name: "x", Rules: []Def{{"a", Sym("b")}, {"b", Seq(Str("x"))}}, Extras: []Rule{Sym("b")}}, ErrInvalidRule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.def)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestWriteEBNF(t *testing.T) {
	def := calcDefinition()
	var sb strings.Builder
	if err := def.WriteEBNF(&sb); err != nil {
		t.Fatalf("WriteEBNF: %v", err)
	}
	out := sb.String()
	for _, want := range []string{
		`Program = { Statement } .`,
		`Assignment = identifier "=" Expression ";" .`,
		`identifier = "a" … "z" { "a" … "z" } .`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in\n%s", want, out)
		}
	}
	if strings.Contains(out, "comment") {
		t.Errorf("unreachable extra rendered:\n%s", out)
	}
	if err := def.VerifyEBNF(); err != nil {
		t.Errorf("VerifyEBNF: %v", err)
	}
	if got := def.StartProduction(); got != "Program" {
		t.Errorf("StartProduction = %q, want Program", got)
	}
}
