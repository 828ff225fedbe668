// Package yal defines the yal language, a small systems programming
// language, for the parsing engine of this module.
//
// The grammar is compiled once, on first use:
//
//	g := yal.Grammar()
//	t, err := parser.New(g).Parse(src, nil)
package yal

import (
	"sync"

	"github.com/upprsk/tree-sitter-yal/grammar"
	"github.com/upprsk/tree-sitter-yal/lexer"
)

// Operator precedences, loosest first.
const (
	PrecAssign = 1 + iota
	PrecComp
	PrecAdd
	PrecMul
	PrecUnary
	PrecCall
)

var (
	once     sync.Once
	compiled *grammar.Grammar
)

// Grammar returns the compiled yal grammar. Every call returns the same
// value, which is safe for concurrent use.
func Grammar() *grammar.Grammar {
	once.Do(func() {
		g, err := grammar.Compile(Definition())
		if err != nil {
			panic("yal: " + err.Error())
		}
		compiled = g
	})
	return compiled
}

// sepBy1 matches one or more r separated by sep, with an optional
// trailing sep.
func sepBy1(sep string, r grammar.Rule) grammar.Rule {
	return grammar.Seq(r, grammar.Repeat(grammar.Seq(grammar.Str(sep), r)), grammar.Optional(grammar.Str(sep)))
}

func sepBy(sep string, r grammar.Rule) grammar.Rule {
	return grammar.Optional(sepBy1(sep, r))
}

// Definition returns a fresh copy of the yal rules.
func Definition() *grammar.Definition {
	var (
		seq      = grammar.Seq
		choice   = grammar.Choice
		optional = grammar.Optional
		repeat   = grammar.Repeat
		field    = grammar.Field
		str      = grammar.Str
		pattern  = grammar.Pattern
		sym      = grammar.Sym
	)
	expr := sym("_expr")
	binary := func(prec int, ops ...string) grammar.Rule {
		alts := make([]grammar.Rule, len(ops))
		for i, op := range ops {
			alts[i] = str(op)
		}
		return grammar.PrecLeft(prec, seq(expr, choice(alts...), expr))
	}

	return &grammar.Definition{
		Name: "yal",
		Rules: []grammar.Def{
			{"source_file", seq(sym("package_decl"), repeat(sym("_top_level_decl")))},

			{"package_decl", seq(str("package"), field("name", sym("id")))},
			{"_top_level_decl", choice(sym("func_decl"), sym("var_decl"), sym("def_decl"))},

			// declarations
			{"func_decl", seq(
				str("func"),
				field("name", sym("func_id")),
				optional(sym("func_gargs")),
				sym("func_args"),
				field("ret", optional(expr)),
				sym("block"),
			)},
			{"func_id", seq(sym("id"), repeat(seq(str("."), sym("id"))))},
			{"func_gargs", seq(str("["), sepBy(",", sym("func_gargs_item")), str("]"))},
			{"func_gargs_item", seq(
				field("name", sym("id")),
				field("constraint", optional(seq(str(":"), expr))),
			)},
			{"func_args", seq(str("("), sepBy(",", sym("func_args_item")), str(")"))},
			{"func_args_item", seq(field("name", sym("id")), str(":"), field("type", expr))},
			{"var_decl", seq(
				str("var"),
				field("name", sym("id_pack")),
				choice(
					seq(str(":"), sym("expr_pack"), optional(seq(str("="), sym("expr_pack"))), str(";")),
					seq(str("="), sym("expr_pack"), str(";")),
				),
			)},
			{"def_decl", seq(
				str("def"),
				field("name", sym("id_pack")),
				optional(seq(str(":"), expr)),
				str("="),
				sym("expr_pack"),
				str(";"),
			)},
			{"id_pack", sepBy1(",", sym("id"))},
			{"expr_pack", sepBy1(",", expr)},

			// statements
			{"_stmt", choice(
				sym("block"),
				sym("expr_stmt"),
				sym("return_stmt"),
				sym("if_stmt"),
				sym("while_stmt"),
				sym("defer_stmt"),
				sym("var_decl"),
				sym("def_decl"),
				sym("assign"),
			)},
			{"block", seq(str("{"), repeat(sym("_stmt")), str("}"))},
			{"expr_stmt", seq(expr, str(";"))},
			{"return_stmt", seq(str("return"), optional(expr), str(";"))},
			{"if_stmt", seq(
				str("if"),
				field("cond", expr),
				sym("block"),
				optional(seq(str("else"), choice(sym("block"), sym("if_stmt")))),
			)},
			{"while_stmt", seq(
				str("while"),
				choice(
					seq(field("cond", expr), sym("block")),
					seq(sym("var_decl"), field("cond", expr), sym("block")),
				),
			)},
			{"defer_stmt", seq(str("defer"), sym("_stmt"))},
			{"assign", grammar.PrecLeft(PrecAssign, seq(expr, str("="), expr, str(";")))},

			// type expressions
			{"struct", seq(str("struct"), sym("struct_body"))},
			{"struct_body", seq(str("{"), sepBy(",", sym("struct_field")), str("}"))},
			{"struct_field", seq(
				field("name", sym("id")),
				str(":"),
				field("type", expr),
				field("init", optional(seq(str("="), expr))),
			)},
			{"ptr", grammar.PrecLeft(PrecUnary, seq(choice(str("*"), str("?")), expr))},

			// expressions
			{"_expr", choice(
				sym("comp"),
				sym("add"),
				sym("mul"),
				sym("field"),
				sym("call"),
				sym("struct"),
				sym("ptr"),
				sym("id"),
				sym("int"),
				sym("lit"),
				sym("string"),
				sym("character"),
			)},
			{"lit", seq(str(".{"), sepBy(",", sym("lit_item")), str("}"))},
			{"lit_item", seq(str("."), sym("id"), str("="), expr)},
			{"call", grammar.PrecLeft(PrecCall, seq(field("callee", expr), sym("call_args")))},
			{"call_args", seq(str("("), sepBy(",", expr), str(")"))},
			{"field", grammar.PrecLeft(PrecCall, seq(expr, str("."), field("name", sym("id"))))},
			{"comp", binary(PrecComp, "==", "!=")},
			{"mul", binary(PrecMul, "*", "/", "%")},
			{"add", binary(PrecAdd, "+", "-")},

			// literals
			{"string", choice(sym("_string_literal"), sym("raw_string"))},
			{"_string_literal", seq(str(`"`), repeat(choice(sym("string_content"), sym("escape_sequence"))), str(`"`))},
			{"string_content", grammar.ImmediateToken(grammar.Prec(1, pattern(`[^"\\]+`)))},
			{"character", seq(str("'"), choice(pattern(`[^'\\]`), sym("escape_sequence")), str("'"))},
			{"escape_sequence", grammar.ImmediateToken(seq(
				str(`\`),
				choice(
					pattern(`[^xu0-7]`),
					pattern(`[0-7]{1,3}`),
					pattern(`x[0-9a-fA-F]{2}`),
					pattern(`u[0-9a-fA-F]{4}`),
					pattern(`u\{[0-9a-fA-F]+\}`),
					pattern(`U[0-9a-fA-F]{8}`),
				),
			))},
			{"id", pattern(`[a-zA-Z_][a-zA-Z_0-9]*`)},
			{"int", pattern(`[0-9][xob]?[0-9_]*`)},
			{"comment", grammar.Token(seq(str("//"), pattern(`[^\n]*`)))},
		},
		Extras:    []grammar.Rule{pattern(`\s`), sym("comment")},
		Externals: []string{"raw_string"},
		Scanner:   func() lexer.ExternalScanner { return &rawStringScanner{} },
	}
}
