package tree

import "github.com/upprsk/tree-sitter-yal/lang"

// Cursor walks the visible nodes of a tree.
type Cursor struct {
	stack []cursorFrame
}

type cursorFrame struct {
	node     Node
	field    lang.FieldID
	siblings []childEntry
	index    int
}

// NewCursor returns a cursor positioned on n. n is the cursor's root: it
// never moves above it.
func NewCursor(n Node) *Cursor {
	return &Cursor{stack: []cursorFrame{{node: n}}}
}

func (c *Cursor) top() *cursorFrame { return &c.stack[len(c.stack)-1] }

// Node returns the current node.
func (c *Cursor) Node() Node { return c.top().node }

// FieldName returns the field of the current node within its parent.
func (c *Cursor) FieldName() string {
	f := c.top()
	if f.field == 0 {
		return ""
	}
	return f.node.tree.language.FieldName(f.field)
}

// Depth returns the distance from the cursor's root.
func (c *Cursor) Depth() int { return len(c.stack) - 1 }

// GotoFirstChild moves to the first visible child.
func (c *Cursor) GotoFirstChild() bool {
	cs := c.top().node.children()
	if len(cs) == 0 {
		return false
	}
	c.stack = append(c.stack, cursorFrame{node: cs[0].node, field: cs[0].field, siblings: cs})
	return true
}

// GotoNextSibling moves to the next visible sibling.
func (c *Cursor) GotoNextSibling() bool {
	f := c.top()
	if f.index+1 >= len(f.siblings) {
		return false
	}
	f.index++
	f.node = f.siblings[f.index].node
	f.field = f.siblings[f.index].field
	return true
}

// GotoParent moves to the parent.
func (c *Cursor) GotoParent() bool {
	if len(c.stack) == 1 {
		return false
	}
	c.stack = c.stack[:len(c.stack)-1]
	return true
}

// GotoFirstChildForByte moves to the first child that ends after offset.
func (c *Cursor) GotoFirstChildForByte(offset uint32) bool {
	cs := c.top().node.children()
	for i, e := range cs {
		if e.node.EndByte() > offset {
			c.stack = append(c.stack, cursorFrame{node: e.node, field: e.field, siblings: cs, index: i})
			return true
		}
	}
	return false
}

// Walk calls visit for every visible node under the cursor's current node
// in document order. Returning false from visit skips the node's children.
func (c *Cursor) Walk(visit func(n Node, field string, depth int) bool) {
	base := c.Depth()
	for {
		if visit(c.Node(), c.FieldName(), c.Depth()-base) && c.GotoFirstChild() {
			continue
		}
		for {
			if c.Depth() == base {
				return
			}
			if c.GotoNextSibling() {
				break
			}
			c.GotoParent()
		}
	}
}
