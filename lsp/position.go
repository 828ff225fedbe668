package lsp

import (
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/upprsk/tree-sitter-yal/lang"
)

// lineStarts returns the byte offset of every line of src.
func lineStarts(src []byte) []uint32 {
	starts := []uint32{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, uint32(i+1))
		}
	}
	return starts
}

// byteOffset converts an LSP position, whose character counts UTF-16 code
// units, into a byte offset of src. Positions past the end of a line or
// of the document are clamped.
func byteOffset(src []byte, starts []uint32, pos protocol.Position) uint32 {
	if int(pos.Line) >= len(starts) {
		return uint32(len(src))
	}
	off := starts[pos.Line]
	units := uint32(0)
	for off < uint32(len(src)) && units < pos.Character {
		r, size := utf8.DecodeRune(src[off:])
		if r == '\n' {
			break
		}
		units += utf16Len(r)
		off += uint32(size)
	}
	return off
}

// position converts a point, whose column counts bytes, into an LSP
// position.
func position(src []byte, starts []uint32, p lang.Point) protocol.Position {
	if int(p.Row) >= len(starts) {
		return protocol.Position{Line: p.Row, Character: p.Column}
	}
	start := starts[p.Row]
	end := min(start+p.Column, uint32(len(src)))
	units := uint32(0)
	for off := start; off < end; {
		r, size := utf8.DecodeRune(src[off:])
		units += utf16Len(r)
		off += uint32(size)
	}
	return protocol.Position{Line: p.Row, Character: units}
}

func span(src []byte, starts []uint32, start, end lang.Point) protocol.Range {
	return protocol.Range{
		Start: position(src, starts, start),
		End:   position(src, starts, end),
	}
}

func utf16Len(r rune) uint32 {
	if r >= 0x10000 {
		return 2
	}
	return 1
}
