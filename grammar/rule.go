package grammar

import "github.com/upprsk/tree-sitter-yal/table"

// Rule is a node of a grammar definition. Rules are built with the
// functions of this package and are immutable.
type Rule interface {
	isRule()
}

type (
	seqRule    struct{ items []Rule }
	choiceRule struct{ items []Rule }
	repeatRule struct {
		item Rule
		one  bool
	}
	blankRule struct{}
	fieldRule struct {
		name string
		item Rule
	}
	precRule struct {
		value   int
		assoc   table.Assoc
		dynamic bool
		item    Rule
	}
	tokenRule struct {
		item      Rule
		immediate bool
	}
	strRule     struct{ value string }
	patternRule struct{ value string }
	symRule     struct{ name string }
)

func (seqRule) isRule()     {}
func (choiceRule) isRule()  {}
func (repeatRule) isRule()  {}
func (blankRule) isRule()   {}
func (fieldRule) isRule()   {}
func (precRule) isRule()    {}
func (tokenRule) isRule()   {}
func (strRule) isRule()     {}
func (patternRule) isRule() {}
func (symRule) isRule()     {}

// Seq matches its rules one after another.
func Seq(rules ...Rule) Rule { return seqRule{items: rules} }

// Choice matches one of its rules.
func Choice(rules ...Rule) Rule { return choiceRule{items: rules} }

// Optional matches r or nothing.
func Optional(r Rule) Rule { return choiceRule{items: []Rule{r, blankRule{}}} }

// Repeat matches r zero or more times.
func Repeat(r Rule) Rule { return repeatRule{item: r} }

// Repeat1 matches r one or more times.
func Repeat1(r Rule) Rule { return repeatRule{item: r, one: true} }

// Blank matches the empty string.
func Blank() Rule { return blankRule{} }

// Field names the children produced by r.
func Field(name string, r Rule) Rule { return fieldRule{name: name, item: r} }

// Prec gives the productions of r a static precedence. Inside a token it
// sets the lexical priority instead.
func Prec(n int, r Rule) Rule { return precRule{value: n, item: r} }

// PrecLeft is Prec with left associativity.
func PrecLeft(n int, r Rule) Rule { return precRule{value: n, assoc: table.AssocLeft, item: r} }

// PrecRight is Prec with right associativity.
func PrecRight(n int, r Rule) Rule { return precRule{value: n, assoc: table.AssocRight, item: r} }

// PrecDynamic gives the productions of r a dynamic precedence, used to pick
// between derivations of an ambiguity at parse time.
func PrecDynamic(n int, r Rule) Rule { return precRule{value: n, dynamic: true, item: r} }

// Token makes r a single terminal.
func Token(r Rule) Rule { return tokenRule{item: r} }

// ImmediateToken is Token for terminals that only match with no separator
// before them.
func ImmediateToken(r Rule) Rule { return tokenRule{item: r, immediate: true} }

// Str matches s literally.
func Str(s string) Rule { return strRule{value: s} }

// Pattern matches a regular expression in Go syntax.
func Pattern(p string) Rule { return patternRule{value: p} }

// Sym refers to the rule or external token called name.
func Sym(name string) Rule { return symRule{name: name} }

// Def binds a rule to a name.
type Def struct {
	Name string
	Rule Rule
}
