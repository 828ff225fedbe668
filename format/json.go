package format

import (
	"encoding/json"
	"io"

	"github.com/upprsk/tree-sitter-yal/lang"
	"github.com/upprsk/tree-sitter-yal/tree"
)

// JSONEncoder writes every visible node of a tree, anonymous tokens
// included, as indented JSON.
type JSONEncoder struct {
	w io.Writer
}

func NewJSONEncoder(w io.Writer) *JSONEncoder {
	return &JSONEncoder{w: w}
}

func (e *JSONEncoder) Encode(t *tree.Tree, src []byte) error {
	text, err := e.MarshalTree(t, src)
	if err != nil {
		return err
	}
	_, err = e.w.Write(append(text, '\n'))
	return err
}

func (e *JSONEncoder) MarshalTree(t *tree.Tree, src []byte) ([]byte, error) {
	return json.MarshalIndent(nodeToJSON(t.Root(), "", src), "", "  ")
}

type jsonNode struct {
	Kind     string      `json:"kind"`
	Field    string      `json:"field,omitempty"`
	Named    bool        `json:"named,omitempty"`
	Extra    bool        `json:"extra,omitempty"`
	Missing  bool        `json:"missing,omitempty"`
	Error    bool        `json:"error,omitempty"`
	Span     jsonSpan    `json:"span"`
	Text     string      `json:"text,omitempty"`
	Children []*jsonNode `json:"children,omitempty"`
}

type jsonSpan struct {
	Start jsonPosition `json:"start"`
	End   jsonPosition `json:"end"`
}

type jsonPosition struct {
	Byte   uint32 `json:"byte"`
	Row    uint32 `json:"row"`
	Column uint32 `json:"column"`
}

func position(b uint32, p lang.Point) jsonPosition {
	return jsonPosition{Byte: b, Row: p.Row, Column: p.Column}
}

func nodeToJSON(n tree.Node, field string, src []byte) *jsonNode {
	jn := &jsonNode{
		Kind:    n.Kind(),
		Field:   field,
		Named:   n.IsNamed(),
		Extra:   n.IsExtra(),
		Missing: n.IsMissing(),
		Error:   n.IsError(),
		Span: jsonSpan{
			Start: position(n.StartByte(), n.StartPoint()),
			End:   position(n.EndByte(), n.EndPoint()),
		},
	}

	count := n.ChildCount()
	if count == 0 {
		jn.Text = n.Content(src)
		return jn
	}
	jn.Children = make([]*jsonNode, count)
	for i, child := range n.Children() {
		jn.Children[i] = nodeToJSON(child, n.FieldNameForChild(i), src)
	}
	return jn
}
