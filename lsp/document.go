package lsp

import (
	"fmt"
	"sync"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/upprsk/tree-sitter-yal/parser"
	"github.com/upprsk/tree-sitter-yal/tree"
)

// document is an open text document and its current syntax tree. Its
// mutex serialises edits and queries.
type document struct {
	mu      sync.Mutex
	uri     string
	version int32
	src     []byte
	starts  []uint32
	tree    *tree.Tree
	parser  *parser.Parser
}

func newDocument(uri string, version int32, text string, p *parser.Parser) (*document, error) {
	d := &document{uri: uri, version: version, parser: p}
	if err := d.reset([]byte(text)); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *document) reset(src []byte) error {
	t, err := d.parser.Parse(src, nil)
	if err != nil {
		return fmt.Errorf("parse %s: %w", d.uri, err)
	}
	d.src, d.starts, d.tree = src, lineStarts(src), t
	return nil
}

// apply performs the content changes of one didChange notification in
// order. Ranged changes edit the old tree, which is then reparsed once.
func (d *document) apply(version int32, changes []any) error {
	src, old := d.src, d.tree
	for _, change := range changes {
		switch c := change.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			src, old = []byte(c.Text), nil
		case protocol.TextDocumentContentChangeEvent:
			if c.Range == nil {
				src, old = []byte(c.Text), nil
				continue
			}
			starts := lineStarts(src)
			start := byteOffset(src, starts, c.Range.Start)
			end := max(byteOffset(src, starts, c.Range.End), start)
			e, next, err := tree.Splice(src, int(start), int(end-start), []byte(c.Text))
			if err != nil {
				return fmt.Errorf("change %s: %w", d.uri, err)
			}
			if old != nil {
				if old, err = old.Edit(e); err != nil {
					return fmt.Errorf("change %s: %w", d.uri, err)
				}
			}
			src = next
		default:
			return fmt.Errorf("change %s: unexpected content change %T", d.uri, change)
		}
	}

	t, err := d.parser.Parse(src, old)
	if err != nil {
		return fmt.Errorf("parse %s: %w", d.uri, err)
	}
	d.version, d.src, d.starts, d.tree = version, src, lineStarts(src), t
	return nil
}
