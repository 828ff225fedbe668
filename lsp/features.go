package lsp

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/upprsk/tree-sitter-yal/format"
	"github.com/upprsk/tree-sitter-yal/index"
	"github.com/upprsk/tree-sitter-yal/lang"
	"github.com/upprsk/tree-sitter-yal/tree"
)

const maxSnippet = 24

func (d *document) diagnostics(limit int) []protocol.Diagnostic {
	severity := protocol.DiagnosticSeverityError
	source := lsName
	diagnostics := []protocol.Diagnostic{}
	for _, n := range tree.Errors(d.tree.Root()) {
		if limit > 0 && len(diagnostics) == limit {
			break
		}
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    span(d.src, d.starts, n.StartPoint(), n.EndPoint()),
			Severity: &severity,
			Source:   &source,
			Message:  errorMessage(n, d.src),
		})
	}
	return diagnostics
}

func errorMessage(n tree.Node, src []byte) string {
	if n.IsMissing() {
		return fmt.Sprintf("missing %s", n.Kind())
	}
	text := n.Content(src)
	if text == "" {
		return "syntax error"
	}
	if len(text) > maxSnippet {
		cut := maxSnippet
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}
	return fmt.Sprintf("unexpected %q", text)
}

func (d *document) symbols() []protocol.DocumentSymbol {
	return toDocumentSymbols(d.src, d.starts, index.Extract(d.tree, d.src))
}

func toDocumentSymbols(src []byte, starts []uint32, syms []index.Symbol) []protocol.DocumentSymbol {
	out := []protocol.DocumentSymbol{}
	for _, s := range syms {
		detail := string(s.Kind)
		ds := protocol.DocumentSymbol{
			Name:           s.Name,
			Detail:         &detail,
			Kind:           symbolKind(s.Kind),
			Range:          span(src, starts, s.Start, s.End),
			SelectionRange: span(src, starts, s.NameStart, s.NameEnd),
		}
		if len(s.Children) > 0 {
			ds.Kind = protocol.SymbolKindStruct
			ds.Children = toDocumentSymbols(src, starts, s.Children)
		}
		out = append(out, ds)
	}
	return out
}

func symbolKind(k index.Kind) protocol.SymbolKind {
	switch k {
	case index.KindPackage:
		return protocol.SymbolKindPackage
	case index.KindFunc:
		return protocol.SymbolKindFunction
	case index.KindVar:
		return protocol.SymbolKindVariable
	case index.KindDef:
		return protocol.SymbolKindConstant
	case index.KindField:
		return protocol.SymbolKindField
	default:
		return protocol.SymbolKindVariable
	}
}

// formatting returns the edit that replaces the document with its pretty
// printed form, or no edit when it is already formatted.
func (d *document) formatting() ([]protocol.TextEdit, error) {
	out, err := format.PrettyPrint(d.tree, d.src)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(out, d.src) {
		return []protocol.TextEdit{}, nil
	}
	end := lang.Measure(d.src).Extent
	return []protocol.TextEdit{{
		Range:   span(d.src, d.starts, lang.Point{}, end),
		NewText: string(out),
	}}, nil
}
