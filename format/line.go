package format

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/upprsk/tree-sitter-yal/tree"
)

// LineEncoder writes one tab-separated line per named node: indented kind,
// field, start and end points, and the text of leaves.
type LineEncoder struct {
	w io.Writer
}

func NewLineEncoder(w io.Writer) *LineEncoder {
	return &LineEncoder{w: w}
}

func (e *LineEncoder) Encode(t *tree.Tree, src []byte) error {
	text, err := e.MarshalTree(t, src)
	if err != nil {
		return err
	}
	_, err = e.w.Write(text)
	return err
}

func (e *LineEncoder) MarshalTree(t *tree.Tree, src []byte) ([]byte, error) {
	var sb strings.Builder
	t.Walk().Walk(func(n tree.Node, field string, level int) bool {
		if !n.IsNamed() && !n.IsMissing() {
			return false
		}
		fmt.Fprintf(&sb, "%s%s\t%s\t%s\t%s\t%s\n",
			strings.Repeat("  ", level),
			e.kind(n),
			field,
			n.StartPoint(),
			n.EndPoint(),
			e.text(n, src),
		)
		return true
	})
	return []byte(sb.String()), nil
}

func (e *LineEncoder) kind(n tree.Node) string {
	if n.IsMissing() {
		return "MISSING " + n.Kind()
	}
	return n.Kind()
}

func (e *LineEncoder) text(n tree.Node, src []byte) string {
	if n.ChildCount() > 0 {
		return ""
	}
	return strconv.Quote(n.Content(src))
}
