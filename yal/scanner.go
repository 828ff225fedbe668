package yal

import "github.com/upprsk/tree-sitter-yal/lexer"

// rawStringScanner recognises backtick strings, which may span lines and
// have no escapes. An unterminated one is left to the regular lexer, which
// reports it as an error token.
type rawStringScanner struct{}

func (rawStringScanner) Scan(l *lexer.ScanLexer, valid []bool) bool {
	if !valid[0] {
		return false
	}
	for {
		switch l.Lookahead() {
		case ' ', '\t', '\r', '\n':
			l.Advance(true)
			continue
		}
		break
	}
	if l.Lookahead() != '`' {
		return false
	}
	l.Advance(false)
	for !l.EOF() && l.Lookahead() != '`' {
		l.Advance(false)
	}
	if l.EOF() {
		return false
	}
	l.Advance(false)
	l.MarkEnd()
	l.SetResult(0)
	return true
}

func (rawStringScanner) Serialize() []byte { return nil }

func (rawStringScanner) Deserialize([]byte) {}
