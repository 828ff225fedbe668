// Package lexer turns grammar terminals into a single deterministic
// automaton and runs it under the control of the parser, one token at a
// time, restricted to the terminals the parser can accept.
package lexer

import (
	"unicode/utf8"

	"github.com/tliron/commonlog"

	"github.com/upprsk/tree-sitter-yal/lang"
)

var log = commonlog.GetLogger("yal.lexer")

// Token is one lexed terminal together with the padding before it.
type Token struct {
	Symbol  lang.Symbol
	Padding lang.Length
	Size    lang.Length

	// LookaheadBytes counts the bytes past the token end that were examined
	// to decide it. At least one.
	LookaheadBytes uint32

	Extra    bool
	External bool

	// ExternalState is the serialized scanner state after an external token.
	ExternalState []byte

	// Unexpected is set when the token is not valid in the requested mode
	// and was recognised only to help error recovery.
	Unexpected bool
}

// Lexer produces tokens for a parser. A Lexer holds the external scanner
// of one parse and must not be shared between goroutines.
type Lexer struct {
	automaton *Automaton
	externals []lang.Symbol
	scanner   ExternalScanner
}

// New returns a lexer over automaton. externals lists the external token
// symbols in scanner order; scanner may be nil when there are none.
func New(automaton *Automaton, externals []lang.Symbol, scanner ExternalScanner) *Lexer {
	return &Lexer{automaton: automaton, externals: externals, scanner: scanner}
}

// Lex returns the next token starting at pos. valid holds the terminals the
// parser can accept. externalState restores the scanner before it runs.
func (l *Lexer) Lex(src []byte, pos lang.Length, valid *lang.SymbolSet, externalState []byte) Token {
	start := int(pos.Bytes)

	if tok, ok := l.scanExternal(src, start, externalState, func(sym lang.Symbol) bool { return valid.Has(sym) }); ok {
		return tok
	}

	a := l.automaton
	scanned := start

	// Immediate tokens only match with no padding. Trying them first keeps
	// extras like comments from splitting their content.
	term, end, s := a.Match(src, start, a.allow(func(t *Terminal) bool {
		return t.Immediate && valid.Has(t.Symbol)
	}))
	scanned = max(scanned, s)
	if term >= 0 {
		return l.token(src, start, start, end, scanned, term, false)
	}

	regular := a.allow(func(t *Terminal) bool {
		return t.Skip || t.Extra || (!t.Immediate && valid.Has(t.Symbol))
	})
	cur := start
	for {
		if cur >= len(src) {
			return Token{
				Symbol:         lang.SymbolEnd,
				Padding:        lang.Measure(src[start:cur]),
				LookaheadBytes: 1,
			}
		}
		term, end, s = a.Match(src, cur, regular)
		scanned = max(scanned, s)
		if term < 0 {
			break
		}
		if !a.terminals[term].Skip {
			return l.token(src, start, cur, end, scanned, term, false)
		}
		cur = end
	}

	if tok, ok := l.scanExternal(src, cur, externalState, func(lang.Symbol) bool { return true }); ok {
		tok.Padding = lang.Measure(src[start:cur]).Add(tok.Padding)
		tok.Unexpected = true
		return tok
	}
	term, end, s = a.Match(src, cur, a.allow(func(t *Terminal) bool {
		return !t.Immediate && !t.Skip
	}))
	scanned = max(scanned, s)
	if term >= 0 {
		return l.token(src, start, cur, end, scanned, term, true)
	}

	_, size := utf8.DecodeRune(src[cur:])
	log.Debugf("no token matches %q at byte %d", src[cur:cur+size], cur)
	return Token{
		Symbol:         lang.SymbolError,
		Padding:        lang.Measure(src[start:cur]),
		Size:           lang.Measure(src[cur : cur+size]),
		LookaheadBytes: 1,
	}
}

func (l *Lexer) token(src []byte, start, tokStart, end, scanned, term int, unexpected bool) Token {
	t := &l.automaton.terminals[term]
	return Token{
		Symbol:         t.Symbol,
		Padding:        lang.Measure(src[start:tokStart]),
		Size:           lang.Measure(src[tokStart:end]),
		LookaheadBytes: uint32(max(scanned-end, 1)),
		Extra:          t.Extra,
		Unexpected:     unexpected,
	}
}

func (l *Lexer) scanExternal(src []byte, start int, state []byte, valid func(lang.Symbol) bool) (Token, bool) {
	if l.scanner == nil || len(l.externals) == 0 {
		return Token{}, false
	}
	flags := make([]bool, len(l.externals))
	anyValid := false
	for i, sym := range l.externals {
		flags[i] = valid(sym)
		anyValid = anyValid || flags[i]
	}
	if !anyValid {
		return Token{}, false
	}

	l.scanner.Deserialize(state)
	sl := newScanLexer(src, start)
	if !l.scanner.Scan(sl, flags) || sl.result < 0 || sl.result >= len(l.externals) {
		return Token{}, false
	}
	end := sl.tokenEnd()
	return Token{
		Symbol:         l.externals[sl.result],
		Padding:        lang.Measure(src[start:sl.start]),
		Size:           lang.Measure(src[sl.start:end]),
		LookaheadBytes: uint32(max(sl.scanned-end, 1)),
		External:       true,
		ExternalState:  l.scanner.Serialize(),
	}, true
}
