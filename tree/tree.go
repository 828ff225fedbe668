// Package tree implements concrete syntax trees.
//
// A tree is made of immutable Subtree values shared by pointer. Editing a
// tree copies the subtrees on the path to the edited region and keeps every
// other subtree, so the parser can recognise and reuse them. Node and Cursor
// are views that add absolute positions and hide the grammar's helper rules.
package tree

import (
	"errors"

	"github.com/upprsk/tree-sitter-yal/lang"
)

// ErrInvalidEdit is returned for edits whose positions are inconsistent
// with each other or with the tree.
var ErrInvalidEdit = errors.New("invalid edit")

// Language names the symbols and fields a tree is built from.
type Language interface {
	SymbolName(lang.Symbol) string
	SymbolVisible(lang.Symbol) bool
	SymbolNamed(lang.Symbol) bool
	FieldName(lang.FieldID) string
	FieldID(string) (lang.FieldID, bool)
	ProductionFields(production int) []lang.FieldID
}

// Tree is a parsed document.
type Tree struct {
	root     *Subtree
	language Language
}

// New returns a tree over root.
func New(root *Subtree, language Language) *Tree {
	return &Tree{root: root, language: language}
}

// Root returns the root node. It spans the whole input.
func (t *Tree) Root() Node {
	return Node{tree: t, sub: t.root}
}

// RootSubtree returns the root subtree.
func (t *Tree) RootSubtree() *Subtree { return t.root }

// Language returns the language of the tree.
func (t *Tree) Language() Language { return t.language }

// Len returns the length in bytes of the parsed input.
func (t *Tree) Len() uint32 { return t.root.TotalSize().Bytes }

// HasError reports whether the tree contains ERROR or MISSING nodes.
func (t *Tree) HasError() bool { return t.root.HasError() }

// Walk returns a cursor positioned on the root node.
func (t *Tree) Walk() *Cursor { return NewCursor(t.Root()) }

func (t *Tree) String() string { return t.Root().String() }

// Equal reports whether a and b have the same structure: the same symbols,
// sizes, flags and productions all the way down.
func Equal(a, b *Subtree) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.symbol != b.symbol || a.padding != b.padding || a.size != b.size ||
		a.production != b.production || len(a.children) != len(b.children) ||
		a.IsExtra() != b.IsExtra() || a.IsMissing() != b.IsMissing() {
		return false
	}
	for i := range a.children {
		if !Equal(a.children[i], b.children[i]) {
			return false
		}
	}
	return true
}
