package lexer

import "unicode/utf8"

// ExternalScanner recognises tokens the automaton cannot, such as tokens
// that depend on state carried between tokens. Scan is called with the
// external tokens valid in the current state, indexed like the grammar's
// external list, and reports whether it produced a token.
//
// A scanner's state must survive a Serialize/Deserialize round trip: the
// parser stores it on every external token and restores it before lexing
// after that token, including when the token is reused from an older tree.
type ExternalScanner interface {
	Scan(l *ScanLexer, valid []bool) bool
	Serialize() []byte
	Deserialize(state []byte)
}

// ScannerFactory creates a fresh scanner for one parse.
type ScannerFactory func() ExternalScanner

// ScanLexer is the view of the input handed to an ExternalScanner.
type ScanLexer struct {
	src     []byte
	pos     int
	start   int
	end     int
	result  int
	scanned int
}

func newScanLexer(src []byte, pos int) *ScanLexer {
	return &ScanLexer{src: src, pos: pos, start: pos, end: -1, result: -1, scanned: pos}
}

// Lookahead returns the next rune, or 0 at end of input.
func (l *ScanLexer) Lookahead() rune {
	if l.pos >= len(l.src) {
		l.scanned = max(l.scanned, l.pos+1)
		return 0
	}
	c, size := utf8.DecodeRune(l.src[l.pos:])
	l.scanned = max(l.scanned, l.pos+size)
	return c
}

// Advance consumes the lookahead rune. Skipped runes become padding and
// must all precede the token.
func (l *ScanLexer) Advance(skip bool) {
	if l.pos >= len(l.src) {
		return
	}
	_, size := utf8.DecodeRune(l.src[l.pos:])
	l.pos += size
	l.scanned = max(l.scanned, l.pos)
	if skip {
		l.start = l.pos
	}
}

// MarkEnd fixes the token end at the current position. Without it the
// token ends wherever scanning stopped.
func (l *ScanLexer) MarkEnd() {
	l.end = l.pos
}

// SetResult selects the external token produced, by external index.
func (l *ScanLexer) SetResult(i int) {
	l.result = i
}

// EOF reports whether the input is exhausted.
func (l *ScanLexer) EOF() bool {
	return l.pos >= len(l.src)
}

// Column returns the byte column of the current position.
func (l *ScanLexer) Column() uint32 {
	col := uint32(0)
	for i := l.pos - 1; i >= 0 && l.src[i] != '\n'; i-- {
		col++
	}
	return col
}

func (l *ScanLexer) tokenEnd() int {
	if l.end >= l.start {
		return l.end
	}
	return l.pos
}
