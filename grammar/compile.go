package grammar

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/upprsk/tree-sitter-yal/lang"
	"github.com/upprsk/tree-sitter-yal/lexer"
	"github.com/upprsk/tree-sitter-yal/table"
)

var (
	// ErrUndefinedSymbol is returned when a rule refers to a name that is
	// neither a rule nor an external token.
	ErrUndefinedSymbol = errors.New("undefined symbol")

	// ErrInvalidRule is returned for rules that cannot be compiled where
	// they appear.
	ErrInvalidRule = errors.New("invalid rule")
)

// maxAlternatives bounds the productions a single rule may expand to.
const maxAlternatives = 1 << 12

type ref struct {
	terminal bool
	index    int
}

type entry struct {
	ref   ref
	field string
}

type alt struct {
	entries []entry
	prec    int
	assoc   table.Assoc
	hasPrec bool
	dynamic int
}

type terminal struct {
	info     SymbolInfo
	pattern  string
	literal  bool
	priority int
	immed    bool
	skip     bool
}

type nonterminal struct {
	info SymbolInfo
	alts []alt
}

type compiler struct {
	def      *Definition
	rules    map[string]Rule
	lexical  map[string]bool
	external map[string]int

	terms    []terminal
	termKeys map[string]int
	nts      []nonterminal
	ntIndex  map[string]int
	aux      map[string]int // repeat counters per rule
}

// Compile checks def and builds its grammar.
func Compile(def *Definition) (*Grammar, error) {
	if len(def.Rules) == 0 {
		return nil, fmt.Errorf("grammar %s: no rules: %w", def.Name, ErrInvalidRule)
	}
	c := &compiler{
		def:      def,
		rules:    map[string]Rule{},
		lexical:  map[string]bool{},
		external: map[string]int{},
		termKeys: map[string]int{},
		ntIndex:  map[string]int{},
		aux:      map[string]int{},
	}
	c.terms = append(c.terms, terminal{info: SymbolInfo{Name: "end", Terminal: true}})

	for _, name := range def.Externals {
		c.external[name] = len(c.terms)
		c.terms = append(c.terms, terminal{info: SymbolInfo{
			Name: name, Visible: !hidden(name), Named: true, Terminal: true, External: true,
		}})
	}
	for _, d := range def.Rules {
		if _, dup := c.rules[d.Name]; dup {
			return nil, fmt.Errorf("rule %s defined twice: %w", d.Name, ErrInvalidRule)
		}
		c.rules[d.Name] = d.Rule
		if isLexical(d.Rule) {
			c.lexical[d.Name] = true
		}
	}
	if c.lexical[def.Rules[0].Name] {
		return nil, fmt.Errorf("start rule %s is a token: %w", def.Rules[0].Name, ErrInvalidRule)
	}

	if err := c.compileExtras(); err != nil {
		return nil, err
	}
	for _, d := range def.Rules {
		if c.lexical[d.Name] {
			if _, err := c.namedTerminal(d.Name); err != nil {
				return nil, err
			}
			continue
		}
		c.ntIndex[d.Name] = len(c.nts)
		c.nts = append(c.nts, nonterminal{info: SymbolInfo{Name: d.Name, Visible: !hidden(d.Name), Named: true}})
	}
	for _, d := range def.Rules {
		if c.lexical[d.Name] {
			continue
		}
		alts, err := c.expand(d.Rule, d.Name)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", d.Name, err)
		}
		c.nts[c.ntIndex[d.Name]].alts = alts
	}
	return c.build()
}

func hidden(name string) bool {
	return strings.HasPrefix(name, "_")
}

// isLexical reports whether a rule body defines a single terminal.
func isLexical(r Rule) bool {
	switch r := r.(type) {
	case strRule, patternRule, tokenRule:
		return true
	case precRule:
		return !r.dynamic && isLexical(r.item)
	}
	return false
}

func (c *compiler) compileExtras() error {
	for i, r := range c.def.Extras {
		switch r := r.(type) {
		case patternRule:
			c.addTerminal(fmt.Sprintf("x:%d", i), terminal{
				info:    SymbolInfo{Name: fmt.Sprintf("_extra%d", i+1), Terminal: true},
				pattern: r.value,
				skip:    true,
			})
		case symRule:
			if !c.lexical[r.name] {
				return fmt.Errorf("extra %s is not a token: %w", r.name, ErrInvalidRule)
			}
			t, err := c.namedTerminal(r.name)
			if err != nil {
				return err
			}
			c.terms[t].info.Extra = true
		default:
			return fmt.Errorf("extra %d: only patterns and token symbols are supported: %w", i, ErrInvalidRule)
		}
	}
	return nil
}

func (c *compiler) addTerminal(key string, t terminal) int {
	if i, ok := c.termKeys[key]; ok {
		return i
	}
	c.termKeys[key] = len(c.terms)
	c.terms = append(c.terms, t)
	return len(c.terms) - 1
}

func (c *compiler) namedTerminal(name string) (int, error) {
	if i, ok := c.termKeys["n:"+name]; ok {
		return i, nil
	}
	t, err := tokenTerminal(c.rules[name])
	if err != nil {
		return 0, fmt.Errorf("token %s: %w", name, err)
	}
	t.info = SymbolInfo{Name: name, Visible: !hidden(name), Named: true, Terminal: true}
	return c.addTerminal("n:"+name, t), nil
}

// tokenTerminal turns a lexical rule into a terminal pattern.
func tokenTerminal(r Rule) (terminal, error) {
	var t terminal
	for {
		switch x := r.(type) {
		case tokenRule:
			t.immed = t.immed || x.immediate
			r = x.item
			continue
		case precRule:
			if x.dynamic {
				return t, fmt.Errorf("dynamic precedence inside a token: %w", ErrInvalidRule)
			}
			t.priority = x.value
			r = x.item
			continue
		case strRule:
			t.pattern, t.literal = x.value, true
			return t, nil
		}
		break
	}
	p, prio, err := tokenPattern(r)
	if err != nil {
		return t, err
	}
	t.pattern = p
	t.priority = max(t.priority, prio)
	return t, nil
}

// tokenPattern renders a rule made of strings and patterns as one regular
// expression. Precedence inside the rule becomes lexical priority.
func tokenPattern(r Rule) (string, int, error) {
	switch x := r.(type) {
	case strRule:
		return regexp.QuoteMeta(x.value), 0, nil
	case patternRule:
		return "(?:" + x.value + ")", 0, nil
	case blankRule:
		return "", 0, nil
	case precRule:
		p, prio, err := tokenPattern(x.item)
		return p, max(prio, x.value), err
	case tokenRule:
		return tokenPattern(x.item)
	case seqRule, choiceRule:
		var items []Rule
		sep := ""
		if s, ok := x.(seqRule); ok {
			items = s.items
		} else {
			items, sep = x.(choiceRule).items, "|"
		}
		parts := make([]string, len(items))
		prio := 0
		for i, it := range items {
			p, pr, err := tokenPattern(it)
			if err != nil {
				return "", 0, err
			}
			parts[i] = p
			prio = max(prio, pr)
		}
		return "(?:" + strings.Join(parts, sep) + ")", prio, nil
	case repeatRule:
		p, prio, err := tokenPattern(x.item)
		op := "*"
		if x.one {
			op = "+"
		}
		return "(?:" + p + ")" + op, prio, err
	}
	return "", 0, fmt.Errorf("%T inside a token: %w", r, ErrInvalidRule)
}

// expand turns r into the alternatives of a production body.
func (c *compiler) expand(r Rule, owner string) ([]alt, error) {
	switch x := r.(type) {
	case blankRule:
		return []alt{{}}, nil
	case strRule:
		i := c.addTerminal("s:"+x.value, terminal{
			info:    SymbolInfo{Name: x.value, Visible: true, Terminal: true},
			pattern: x.value,
			literal: true,
		})
		return single(ref{terminal: true, index: i}), nil
	case patternRule, tokenRule:
		t, err := tokenTerminal(x)
		if err != nil {
			return nil, err
		}
		key := fmt.Sprintf("p:%s:%d:%v", t.pattern, t.priority, t.immed)
		if t.literal && !t.immed {
			key = "s:" + t.pattern
		}
		if _, ok := c.termKeys[key]; !ok {
			if t.literal {
				t.info = SymbolInfo{Name: t.pattern, Visible: true, Terminal: true}
			} else {
				c.aux[owner+"/token"]++
				t.info = SymbolInfo{Name: fmt.Sprintf("_%s_token%d", owner, c.aux[owner+"/token"]), Terminal: true}
			}
		}
		return single(ref{terminal: true, index: c.addTerminal(key, t)}), nil
	case symRule:
		if i, ok := c.external[x.name]; ok {
			return single(ref{terminal: true, index: i}), nil
		}
		if c.lexical[x.name] {
			i, err := c.namedTerminal(x.name)
			if err != nil {
				return nil, err
			}
			return single(ref{terminal: true, index: i}), nil
		}
		if i, ok := c.ntIndex[x.name]; ok {
			return single(ref{index: i}), nil
		}
		return nil, fmt.Errorf("%s: %w", x.name, ErrUndefinedSymbol)
	case seqRule:
		acc := []alt{{}}
		for _, it := range x.items {
			next, err := c.expand(it, owner)
			if err != nil {
				return nil, err
			}
			if len(acc)*len(next) > maxAlternatives {
				return nil, fmt.Errorf("more than %d alternatives: %w", maxAlternatives, ErrInvalidRule)
			}
			var out []alt
			for _, a := range acc {
				for _, b := range next {
					out = append(out, joinAlts(a, b))
				}
			}
			acc = out
		}
		return acc, nil
	case choiceRule:
		var out []alt
		for _, it := range x.items {
			alts, err := c.expand(it, owner)
			if err != nil {
				return nil, err
			}
			out = append(out, alts...)
		}
		return out, nil
	case repeatRule:
		body, err := c.expand(x.item, owner)
		if err != nil {
			return nil, err
		}
		c.aux[owner]++
		name := fmt.Sprintf("%s_repeat%d", owner, c.aux[owner])
		idx := len(c.nts)
		self := entry{ref: ref{index: idx}}
		nt := nonterminal{info: SymbolInfo{Name: name}}
		for _, b := range body {
			nt.alts = append(nt.alts, alt{entries: append([]entry{self}, b.entries...)})
		}
		for _, b := range body {
			nt.alts = append(nt.alts, alt{entries: b.entries})
		}
		c.nts = append(c.nts, nt)
		if x.one {
			return single(self.ref), nil
		}
		return []alt{{}, {entries: []entry{self}}}, nil
	case fieldRule:
		alts, err := c.expand(x.item, owner)
		if err != nil {
			return nil, err
		}
		for i := range alts {
			alts[i].entries = slices.Clone(alts[i].entries)
			for j := range alts[i].entries {
				if alts[i].entries[j].field == "" {
					alts[i].entries[j].field = x.name
				}
			}
		}
		return alts, nil
	case precRule:
		alts, err := c.expand(x.item, owner)
		if err != nil {
			return nil, err
		}
		for i := range alts {
			switch {
			case x.dynamic:
				if alts[i].dynamic == 0 {
					alts[i].dynamic = x.value
				}
			case !alts[i].hasPrec:
				alts[i].prec, alts[i].assoc, alts[i].hasPrec = x.value, x.assoc, true
			}
		}
		return alts, nil
	}
	return nil, fmt.Errorf("unknown rule %T: %w", r, ErrInvalidRule)
}

func single(r ref) []alt {
	return []alt{{entries: []entry{{ref: r}}}}
}

func joinAlts(a, b alt) alt {
	out := a
	out.entries = append(slices.Clone(a.entries), b.entries...)
	if !out.hasPrec && b.hasPrec {
		out.prec, out.assoc, out.hasPrec = b.prec, b.assoc, true
	}
	if out.dynamic == 0 {
		out.dynamic = b.dynamic
	}
	return out
}

func (c *compiler) build() (*Grammar, error) {
	nterm := len(c.terms)
	if nterm+len(c.nts) >= int(lang.SymbolError) {
		return nil, fmt.Errorf("too many symbols: %w", ErrInvalidRule)
	}
	sym := func(r ref) lang.Symbol {
		if r.terminal {
			return lang.Symbol(r.index)
		}
		return lang.Symbol(nterm + r.index)
	}

	g := &Grammar{
		def:    c.def,
		byName: map[symbolKey]lang.Symbol{},
		start:  lang.Symbol(nterm),
		fields: []string{""},
	}
	for _, t := range c.terms {
		g.symbols = append(g.symbols, t.info)
	}
	for _, nt := range c.nts {
		g.symbols = append(g.symbols, nt.info)
	}
	for i := len(g.symbols) - 1; i >= 0; i-- {
		info := g.symbols[i]
		g.byName[symbolKey{info.Name, info.Named}] = lang.Symbol(i)
	}

	fieldSet := map[string]bool{}
	for _, nt := range c.nts {
		for _, a := range nt.alts {
			for _, e := range a.entries {
				if e.field != "" {
					fieldSet[e.field] = true
				}
			}
		}
	}
	for f := range fieldSet {
		g.fields = append(g.fields, f)
	}
	slices.Sort(g.fields[1:])
	fieldID := map[string]lang.FieldID{}
	for i, f := range g.fields {
		fieldID[f] = lang.FieldID(i)
	}

	var prods []table.Production
	for i, nt := range c.nts {
		for _, a := range nt.alts {
			p := table.Production{
				LHS:         lang.Symbol(nterm + i),
				Prec:        a.prec,
				Assoc:       a.assoc,
				DynamicPrec: a.dynamic,
			}
			var fields []lang.FieldID
			for j, e := range a.entries {
				p.RHS = append(p.RHS, sym(e.ref))
				if e.field != "" {
					if fields == nil {
						fields = make([]lang.FieldID, len(a.entries))
					}
					fields[j] = fieldID[e.field]
				}
			}
			prods = append(prods, p)
			g.prodFlds = append(g.prodFlds, fields)
		}
	}

	tab, err := table.Build(table.Input{
		Terminals:    nterm,
		Nonterminals: len(c.nts),
		Start:        g.start,
		Productions:  prods,
	})
	if err != nil {
		return nil, fmt.Errorf("grammar %s: %w", c.def.Name, err)
	}
	g.table = tab

	var lexTerms []lexer.Terminal
	for i, t := range c.terms {
		if i == 0 || t.info.External {
			if t.info.External {
				g.externals = append(g.externals, lang.Symbol(i))
			}
			continue
		}
		lexTerms = append(lexTerms, lexer.Terminal{
			Symbol:    lang.Symbol(i),
			Name:      t.info.Name,
			Pattern:   t.pattern,
			Literal:   t.literal,
			Priority:  t.priority,
			Immediate: t.immed,
			Skip:      t.skip,
			Extra:     t.info.Extra,
		})
	}
	g.automaton, err = lexer.Compile(lexTerms)
	if err != nil {
		return nil, fmt.Errorf("grammar %s: %w", c.def.Name, err)
	}
	return g, nil
}
