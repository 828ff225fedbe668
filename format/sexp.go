package format

import (
	"io"

	"github.com/upprsk/tree-sitter-yal/tree"
)

// SExpEncoder writes the named nodes of a tree as one S-expression.
type SExpEncoder struct {
	w io.Writer
}

func NewSExpEncoder(w io.Writer) *SExpEncoder {
	return &SExpEncoder{w: w}
}

func (e *SExpEncoder) Encode(t *tree.Tree, _ []byte) error {
	_, err := io.WriteString(e.w, t.Root().String()+"\n")
	return err
}
