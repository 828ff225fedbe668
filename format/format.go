// Package format renders syntax trees for people and tools.
package format

import (
	"fmt"
	"io"

	"github.com/upprsk/tree-sitter-yal/tree"
)

type Encoder interface {
	Encode(t *tree.Tree, src []byte) error
}

// Names lists the encoders known to New.
var Names = []string{"sexp", "json", "line"}

// New returns the encoder called name writing to w.
func New(name string, w io.Writer) (Encoder, error) {
	switch name {
	case "sexp":
		return NewSExpEncoder(w), nil
	case "json":
		return NewJSONEncoder(w), nil
	case "line":
		return NewLineEncoder(w), nil
	}
	return nil, fmt.Errorf("unknown format %q", name)
}
