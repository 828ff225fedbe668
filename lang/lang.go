// Package lang holds the identifiers and source measurements shared by the
// lexer, the parse table, the syntax tree and the parser.
package lang

import (
	"fmt"
	"math"
)

// Symbol identifies a terminal or non-terminal of a grammar.
type Symbol uint16

const (
	// SymbolEnd is the end-of-input terminal.
	SymbolEnd Symbol = 0

	// SymbolError marks error nodes and one-byte error tokens.
	SymbolError Symbol = math.MaxUint16
)

// StateID is an index into a parse table.
type StateID uint16

// NoState is returned by goto lookups that have no target.
const NoState StateID = math.MaxUint16

// FieldID identifies a field name. Zero means "no field".
type FieldID uint16

// Point is a zero-based row/column position. Columns count bytes.
type Point struct {
	Row    uint32
	Column uint32
}

func (p Point) String() string {
	return fmt.Sprintf("%d:%d", p.Row, p.Column)
}

// Less reports whether p comes before q.
func (p Point) Less(q Point) bool {
	return p.Row < q.Row || (p.Row == q.Row && p.Column < q.Column)
}

// Length is a byte count together with the extent it covers.
type Length struct {
	Bytes  uint32
	Extent Point
}

// Add appends b after a.
func (a Length) Add(b Length) Length {
	r := Length{Bytes: a.Bytes + b.Bytes}
	if b.Extent.Row > 0 {
		r.Extent = Point{Row: a.Extent.Row + b.Extent.Row, Column: b.Extent.Column}
	} else {
		r.Extent = Point{Row: a.Extent.Row, Column: a.Extent.Column + b.Extent.Column}
	}
	return r
}

// Sub returns the length that must be added to b to reach a. a must not be
// smaller than b.
func (a Length) Sub(b Length) Length {
	r := Length{Bytes: a.Bytes - b.Bytes}
	if a.Extent.Row > b.Extent.Row {
		r.Extent = Point{Row: a.Extent.Row - b.Extent.Row, Column: a.Extent.Column}
	} else if a.Extent.Column >= b.Extent.Column {
		r.Extent = Point{Column: a.Extent.Column - b.Extent.Column}
	}
	return r
}

// SaturatingSub is Sub clamped at zero.
func (a Length) SaturatingSub(b Length) Length {
	if a.Bytes <= b.Bytes {
		return Length{}
	}
	return a.Sub(b)
}

// Measure returns the length of text.
func Measure(text []byte) Length {
	var l Length
	for _, c := range text {
		l.Bytes++
		if c == '\n' {
			l.Extent.Row++
			l.Extent.Column = 0
		} else {
			l.Extent.Column++
		}
	}
	return l
}
