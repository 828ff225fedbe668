package grammar

import (
	"bytes"
	"fmt"
	"io"
	"regexp/syntax"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/exp/ebnf"
)

// EBNF names non-lexical productions in CamelCase and keeps the rule name
// for tokens, since golang.org/x/exp/ebnf tells them apart by the case of
// the first letter.
type ebnfWriter struct {
	def   *Definition
	names map[string]string
	err   error
}

func newEBNFWriter(def *Definition) *ebnfWriter {
	w := &ebnfWriter{def: def, names: map[string]string{}}
	used := map[string]bool{}
	assign := func(rule, name string) {
		base := name
		for i := 2; used[name]; i++ {
			name = fmt.Sprintf("%s%d", base, i)
		}
		used[name] = true
		w.names[rule] = name
	}
	for _, name := range def.Externals {
		assign(name, lexicalName(name))
	}
	for _, d := range def.Rules {
		if isLexical(d.Rule) {
			assign(d.Name, lexicalName(d.Name))
		} else {
			assign(d.Name, camel(d.Name))
		}
	}
	return w
}

func camel(name string) string {
	var sb strings.Builder
	for _, part := range strings.Split(name, "_") {
		if part == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(part)
		sb.WriteRune(unicode.ToUpper(r))
		sb.WriteString(part[size:])
	}
	if sb.Len() == 0 {
		return "Rule"
	}
	return sb.String()
}

func lexicalName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToLower(r)) + name[size:]
}

// StartProduction returns the EBNF name of the start rule.
func (d *Definition) StartProduction() string {
	return newEBNFWriter(d).names[d.Rules[0].Name]
}

// WriteEBNF renders the rules reachable from the start rule in the EBNF
// dialect of golang.org/x/exp/ebnf. Regular expressions are rewritten into
// character ranges and repetitions.
func (d *Definition) WriteEBNF(out io.Writer) error {
	w := newEBNFWriter(d)
	rules := map[string]Rule{}
	for _, r := range d.Rules {
		rules[r.Name] = r.Rule
	}

	order := []string{d.Rules[0].Name}
	seen := map[string]bool{d.Rules[0].Name: true}
	for i := 0; i < len(order); i++ {
		walkSyms(rules[order[i]], func(name string) {
			if !seen[name] {
				seen[name] = true
				order = append(order, name)
			}
		})
	}

	fmt.Fprintf(out, "// %s grammar\n\n", d.Name)
	for _, name := range order {
		r, ok := rules[name]
		if !ok {
			if _, ext := w.names[name]; !ext {
				return fmt.Errorf("%s: %w", name, ErrUndefinedSymbol)
			}
			if _, err := fmt.Fprintf(out, "%s = . // external\n", w.names[name]); err != nil {
				return err
			}
			continue
		}
		body := w.expr(r, 0)
		if w.err != nil {
			return fmt.Errorf("rule %s: %w", name, w.err)
		}
		if _, err := fmt.Fprintf(out, "%s = %s .\n", w.names[name], body); err != nil {
			return err
		}
	}
	return nil
}

// VerifyEBNF renders the definition and checks it with ebnf.Verify.
func (d *Definition) VerifyEBNF() error {
	var buf bytes.Buffer
	if err := d.WriteEBNF(&buf); err != nil {
		return err
	}
	g, err := ebnf.Parse(d.Name+".ebnf", &buf)
	if err != nil {
		return fmt.Errorf("parse ebnf: %w", err)
	}
	if err := ebnf.Verify(g, d.StartProduction()); err != nil {
		return fmt.Errorf("verify ebnf: %w", err)
	}
	return nil
}

func walkSyms(r Rule, visit func(string)) {
	switch x := r.(type) {
	case symRule:
		visit(x.name)
	case seqRule:
		for _, it := range x.items {
			walkSyms(it, visit)
		}
	case choiceRule:
		for _, it := range x.items {
			walkSyms(it, visit)
		}
	case repeatRule:
		walkSyms(x.item, visit)
	case fieldRule:
		walkSyms(x.item, visit)
	case precRule:
		walkSyms(x.item, visit)
	case tokenRule:
		walkSyms(x.item, visit)
	}
}

// Binding levels: alternatives, sequences, terms.
const (
	levelAlt = iota
	levelSeq
	levelTerm
)

func wrap(s string, need bool) string {
	if need {
		return "( " + s + " )"
	}
	return s
}

func (w *ebnfWriter) expr(r Rule, level int) string {
	switch x := r.(type) {
	case blankRule:
		return `""`
	case strRule:
		return strconv.Quote(x.value)
	case symRule:
		return w.names[x.name]
	case fieldRule:
		return w.expr(x.item, level)
	case precRule:
		return w.expr(x.item, level)
	case tokenRule:
		return w.expr(x.item, level)
	case patternRule:
		re, err := syntax.Parse(x.value, syntax.Perl)
		if err != nil {
			w.err = err
			return ""
		}
		return w.regexp(re.Simplify(), level)
	case seqRule:
		if len(x.items) == 0 {
			return `""`
		}
		parts := make([]string, len(x.items))
		for i, it := range x.items {
			parts[i] = w.expr(it, levelSeq)
		}
		return wrap(strings.Join(parts, " "), level > levelSeq && len(parts) > 1)
	case choiceRule:
		var rest []Rule
		optional := false
		for _, it := range x.items {
			if _, ok := it.(blankRule); ok {
				optional = true
				continue
			}
			rest = append(rest, it)
		}
		if optional {
			if len(rest) == 0 {
				return `""`
			}
			return "[ " + w.expr(choiceRule{items: rest}, levelAlt) + " ]"
		}
		parts := make([]string, len(rest))
		for i, it := range rest {
			parts[i] = w.expr(it, levelAlt)
		}
		return wrap(strings.Join(parts, " | "), level > levelAlt && len(parts) > 1)
	case repeatRule:
		body := "{ " + w.expr(x.item, levelAlt) + " }"
		if !x.one {
			return body
		}
		return wrap(w.expr(x.item, levelTerm)+" "+body, level > levelSeq)
	}
	w.err = fmt.Errorf("unknown rule %T: %w", r, ErrInvalidRule)
	return ""
}

func quoteRune(r rune) string {
	return strconv.Quote(string(r))
}

func rangeAlts(ranges []rune) []string {
	var alts []string
	for i := 0; i+1 < len(ranges); i += 2 {
		lo, hi := ranges[i], ranges[i+1]
		if lo == hi {
			alts = append(alts, quoteRune(lo))
		} else {
			alts = append(alts, quoteRune(lo)+" … "+quoteRune(hi))
		}
	}
	return alts
}

func (w *ebnfWriter) regexp(re *syntax.Regexp, level int) string {
	switch re.Op {
	case syntax.OpEmptyMatch:
		return `""`
	case syntax.OpLiteral:
		if re.Flags&syntax.FoldCase == 0 {
			return strconv.Quote(string(re.Rune))
		}
		parts := make([]string, len(re.Rune))
		for i, r := range re.Rune {
			parts[i] = wrap(strings.Join(rangeAlts(foldPairs(r)), " | "), true)
		}
		return wrap(strings.Join(parts, " "), level > levelSeq && len(parts) > 1)
	case syntax.OpCharClass:
		alts := rangeAlts(re.Rune)
		return wrap(strings.Join(alts, " | "), level > levelAlt && len(alts) > 1)
	case syntax.OpAnyCharNotNL:
		return wrap(strings.Join(rangeAlts([]rune{0, '\n' - 1, '\n' + 1, utf8.MaxRune}), " | "), level > levelAlt)
	case syntax.OpAnyChar:
		return quoteRune(0) + " … " + quoteRune(utf8.MaxRune)
	case syntax.OpCapture:
		return w.regexp(re.Sub[0], level)
	case syntax.OpStar:
		return "{ " + w.regexp(re.Sub[0], levelAlt) + " }"
	case syntax.OpPlus:
		return wrap(w.regexp(re.Sub[0], levelTerm)+" { "+w.regexp(re.Sub[0], levelAlt)+" }", level > levelSeq)
	case syntax.OpQuest:
		return "[ " + w.regexp(re.Sub[0], levelAlt) + " ]"
	case syntax.OpRepeat:
		var parts []string
		for i := 0; i < re.Min; i++ {
			parts = append(parts, w.regexp(re.Sub[0], levelTerm))
		}
		if re.Max < 0 {
			parts = append(parts, "{ "+w.regexp(re.Sub[0], levelAlt)+" }")
		}
		for i := re.Min; i < re.Max; i++ {
			parts = append(parts, "[ "+w.regexp(re.Sub[0], levelAlt)+" ]")
		}
		if len(parts) == 0 {
			return `""`
		}
		return wrap(strings.Join(parts, " "), level > levelSeq && len(parts) > 1)
	case syntax.OpConcat:
		parts := make([]string, len(re.Sub))
		for i, sub := range re.Sub {
			parts[i] = w.regexp(sub, levelSeq)
		}
		return wrap(strings.Join(parts, " "), level > levelSeq && len(parts) > 1)
	case syntax.OpAlternate:
		parts := make([]string, len(re.Sub))
		for i, sub := range re.Sub {
			parts[i] = w.regexp(sub, levelAlt)
		}
		return wrap(strings.Join(parts, " | "), level > levelAlt && len(parts) > 1)
	}
	w.err = fmt.Errorf("pattern operator %v has no EBNF form: %w", re.Op, ErrInvalidRule)
	return ""
}

func foldPairs(r rune) []rune {
	out := []rune{r, r}
	for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
		out = append(out, f, f)
	}
	return out
}

// WriteEBNF renders the grammar's definition. See Definition.WriteEBNF.
func (g *Grammar) WriteEBNF(out io.Writer) error {
	return g.def.WriteEBNF(out)
}
