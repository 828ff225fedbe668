package tree

import (
	"strconv"
	"strings"

	"github.com/upprsk/tree-sitter-yal/lang"
)

// Node is a subtree at a position in a tree. The zero Node is null.
type Node struct {
	tree   *Tree
	sub    *Subtree
	pos    lang.Length // start of the padding
	parent *Node
}

type childEntry struct {
	node  Node
	field lang.FieldID
}

// IsNull reports whether n is the zero Node.
func (n Node) IsNull() bool { return n.sub == nil }

// Subtree returns the underlying subtree.
func (n Node) Subtree() *Subtree { return n.sub }

// Tree returns the tree n belongs to.
func (n Node) Tree() *Tree { return n.tree }

// ID returns the identity of the underlying subtree. It is preserved when a
// later parse reuses the subtree.
func (n Node) ID() uint64 { return n.sub.id }

// Symbol returns the grammar symbol.
func (n Node) Symbol() lang.Symbol { return n.sub.symbol }

// Kind returns the symbol name, or "" for a null Node.
func (n Node) Kind() string {
	if n.sub == nil {
		return ""
	}
	if n.sub.symbol == lang.SymbolError {
		return "ERROR"
	}
	return n.tree.language.SymbolName(n.sub.symbol)
}

// IsNamed reports whether n is a named rule rather than literal text.
func (n Node) IsNamed() bool {
	return n.sub.symbol == lang.SymbolError || n.tree.language.SymbolNamed(n.sub.symbol)
}

func (n Node) IsError() bool    { return n.sub.IsError() }
func (n Node) IsMissing() bool  { return n.sub.IsMissing() }
func (n Node) IsExtra() bool    { return n.sub.IsExtra() }
func (n Node) HasError() bool   { return n.sub.HasError() }
func (n Node) HasChanges() bool { return n.sub.HasChanges() }

func (n Node) start() lang.Length {
	if n.parent == nil {
		return n.pos
	}
	return n.pos.Add(n.sub.padding)
}

func (n Node) end() lang.Length { return n.pos.Add(n.sub.TotalSize()) }

func (n Node) StartByte() uint32      { return n.start().Bytes }
func (n Node) EndByte() uint32        { return n.end().Bytes }
func (n Node) StartPoint() lang.Point { return n.start().Extent }
func (n Node) EndPoint() lang.Point   { return n.end().Extent }

// Content returns the text of n in src.
func (n Node) Content(src []byte) string {
	start, end := n.StartByte(), n.EndByte()
	if int(end) > len(src) || start > end {
		return ""
	}
	return string(src[start:end])
}

// Parent returns the node n was reached from, or a null Node for the root.
func (n Node) Parent() Node {
	if n.parent == nil {
		return Node{}
	}
	return *n.parent
}

// Equal reports whether n and o have the same structure.
func (n Node) Equal(o Node) bool { return Equal(n.sub, o.sub) }

func (n Node) visible(s *Subtree) bool {
	return s.symbol == lang.SymbolError || s.IsMissing() || n.tree.language.SymbolVisible(s.symbol)
}

// children lists the visible children of n. Hidden nodes are replaced by
// their own visible children, which take the hidden node's field unless
// they carry one of their own.
func (n Node) children() []childEntry {
	if len(n.sub.children) == 0 {
		return nil
	}
	var out []childEntry
	parent := &n
	n.collect(parent, n.sub, n.pos, 0, &out)
	return out
}

func (n Node) collect(parent *Node, s *Subtree, pos lang.Length, inherited lang.FieldID, out *[]childEntry) {
	var fields []lang.FieldID
	if s.production >= 0 {
		fields = n.tree.language.ProductionFields(int(s.production))
	}
	i := 0
	for _, c := range s.children {
		var field lang.FieldID
		if !c.IsExtra() {
			field = inherited
			if i < len(fields) && fields[i] != 0 {
				field = fields[i]
			}
			i++
		}
		switch {
		case n.visible(c):
			*out = append(*out, childEntry{node: Node{tree: n.tree, sub: c, pos: pos, parent: parent}, field: field})
		case len(c.children) > 0:
			n.collect(parent, c, pos, field, out)
		}
		pos = pos.Add(c.TotalSize())
	}
}

// ChildCount returns the number of visible children.
func (n Node) ChildCount() int { return len(n.children()) }

// Child returns the i-th visible child, or a null Node.
func (n Node) Child(i int) Node {
	cs := n.children()
	if i < 0 || i >= len(cs) {
		return Node{}
	}
	return cs[i].node
}

// Children returns the visible children.
func (n Node) Children() []Node {
	cs := n.children()
	out := make([]Node, len(cs))
	for i, c := range cs {
		out[i] = c.node
	}
	return out
}

// NamedChildCount returns the number of named visible children.
func (n Node) NamedChildCount() int {
	count := 0
	for _, c := range n.children() {
		if c.node.IsNamed() {
			count++
		}
	}
	return count
}

// NamedChild returns the i-th named visible child, or a null Node.
func (n Node) NamedChild(i int) Node {
	for _, c := range n.children() {
		if !c.node.IsNamed() {
			continue
		}
		if i == 0 {
			return c.node
		}
		i--
	}
	return Node{}
}

// ChildByFieldName returns the first child with the given field.
func (n Node) ChildByFieldName(name string) Node {
	id, ok := n.tree.language.FieldID(name)
	if !ok {
		return Node{}
	}
	for _, c := range n.children() {
		if c.field == id {
			return c.node
		}
	}
	return Node{}
}

// ChildrenByFieldName returns every child with the given field.
func (n Node) ChildrenByFieldName(name string) []Node {
	id, ok := n.tree.language.FieldID(name)
	if !ok {
		return nil
	}
	var out []Node
	for _, c := range n.children() {
		if c.field == id {
			out = append(out, c.node)
		}
	}
	return out
}

// FieldNameForChild returns the field of the i-th visible child, or "".
func (n Node) FieldNameForChild(i int) string {
	cs := n.children()
	if i < 0 || i >= len(cs) || cs[i].field == 0 {
		return ""
	}
	return n.tree.language.FieldName(cs[i].field)
}

// DescendantForByteRange returns the smallest visible node spanning
// [start, end).
func (n Node) DescendantForByteRange(start, end uint32) Node {
	cur := n
outer:
	for {
		for _, c := range cur.children() {
			if c.node.StartByte() <= start && end <= c.node.EndByte() && c.node.EndByte() > c.node.StartByte() {
				cur = c.node
				continue outer
			}
			if c.node.StartByte() > end {
				break
			}
		}
		return cur
	}
}

// String renders n as an S-expression of its named descendants.
func (n Node) String() string {
	if n.IsNull() {
		return "()"
	}
	var sb strings.Builder
	n.writeSExp(&sb)
	return sb.String()
}

func (n Node) writeSExp(sb *strings.Builder) {
	if n.IsMissing() {
		sb.WriteString("(MISSING ")
		if n.IsNamed() {
			sb.WriteString(n.Kind())
		} else {
			sb.WriteString(strconv.Quote(n.Kind()))
		}
		sb.WriteByte(')')
		return
	}
	sb.WriteByte('(')
	sb.WriteString(n.Kind())
	for _, c := range n.children() {
		if !c.node.IsNamed() && !c.node.IsMissing() {
			continue
		}
		sb.WriteByte(' ')
		if c.field != 0 {
			sb.WriteString(n.tree.language.FieldName(c.field))
			sb.WriteString(": ")
		}
		c.node.writeSExp(sb)
	}
	sb.WriteByte(')')
}
