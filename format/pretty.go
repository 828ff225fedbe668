package format

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/upprsk/tree-sitter-yal/tree"
)

// ErrSyntax is returned when asked to pretty print a tree with errors.
var ErrSyntax = errors.New("tree has syntax errors")

// PrettyPrinter re-emits the tokens of a yal tree with canonical spacing
// and indentation. Strings, characters and comments are copied verbatim.
type PrettyPrinter struct {
	w         io.Writer
	src       []byte
	buf       bytes.Buffer
	indent    int
	indentStr string

	atLineStart bool
	pending     int // newlines owed before the next token
	prev        string
	prevParent  string
	prevRow     uint32
}

func NewPrettyPrinter(w io.Writer) *PrettyPrinter {
	return &PrettyPrinter{
		w:           w,
		indentStr:   "    ",
		atLineStart: true,
	}
}

// Encode lets the printer be used as an Encoder.
func (p *PrettyPrinter) Encode(t *tree.Tree, src []byte) error {
	return p.Print(t, src)
}

func (p *PrettyPrinter) Print(t *tree.Tree, src []byte) error {
	if t.HasError() {
		return ErrSyntax
	}
	p.src = src
	p.buf.Reset()
	p.indent, p.pending, p.prev, p.prevParent = 0, 0, "", ""
	p.atLineStart = true

	p.printNode(t.Root())
	out := bytes.TrimRight(p.buf.Bytes(), "\n")
	if len(out) > 0 {
		out = append(out, '\n')
	}
	_, err := p.w.Write(out)
	return err
}

// PrettyPrint formats src, which must parse without errors.
func PrettyPrint(t *tree.Tree, src []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewPrettyPrinter(&buf).Print(t, src); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *PrettyPrinter) printNode(n tree.Node) {
	switch n.Kind() {
	case "string", "character", "comment":
		p.token(n)
		return
	}
	top := n.Parent().IsNull()
	if n.ChildCount() == 0 {
		if !top {
			p.token(n)
		}
		return
	}
	for _, c := range n.Children() {
		p.printNode(c)
		if top && c.IsNamed() && !c.IsExtra() {
			p.pending = 2
		}
	}
}

func (p *PrettyPrinter) token(n tree.Node) {
	text := n.Content(p.src)
	parent := n.Parent().Kind()
	block := parent == "block"

	if n.Kind() == "comment" && p.pending > 0 && p.prev != "" && n.StartPoint().Row == p.prevRow {
		// Trailing comment stays on its line.
		p.pending = 0
	}
	if text == "else" {
		p.pending = 0
	}
	if text == "}" && block {
		p.indent--
		p.pending = max(p.pending, 1)
	}
	p.flushNewlines()

	if p.atLineStart {
		p.buf.WriteString(strings.Repeat(p.indentStr, max(p.indent, 0)))
		p.atLineStart = false
	} else if p.space(text, parent) {
		p.buf.WriteByte(' ')
	}
	p.buf.WriteString(text)
	p.prev, p.prevParent, p.prevRow = text, parent, n.EndPoint().Row

	switch {
	case n.Kind() == "comment":
		p.pending = max(p.pending, 1)
	case text == "{" && block:
		p.indent++
		p.pending = 1
	case text == "}" && block:
		p.pending = 1
	case text == ";" && !(parent == "var_decl" && n.Parent().Parent().Kind() == "while_stmt"):
		p.pending = 1
	}
}

func (p *PrettyPrinter) flushNewlines() {
	if p.pending == 0 || p.buf.Len() == 0 {
		p.pending = 0
		return
	}
	p.buf.WriteString(strings.Repeat("\n", p.pending))
	p.pending = 0
	p.atLineStart = true
}

func (p *PrettyPrinter) space(text, parent string) bool {
	switch p.prev {
	case "(", "[", ".":
		return false
	case "*", "?":
		if p.prevParent == "ptr" {
			return false
		}
	}
	switch text {
	case ")", "]", ",", ";", ":":
		return false
	case ".":
		return parent == "lit_item"
	case "(":
		return parent != "call_args" && parent != "func_args"
	case "[":
		return parent != "func_gargs"
	}
	return true
}
