package tree

import (
	"fmt"

	"github.com/upprsk/tree-sitter-yal/lang"
)

// Edit describes a replacement of the bytes [StartByte, OldEndByte) by new
// text ending at NewEndByte.
type Edit struct {
	StartByte   uint32
	OldEndByte  uint32
	NewEndByte  uint32
	StartPoint  lang.Point
	OldEndPoint lang.Point
	NewEndPoint lang.Point
}

// Splice replaces deleted bytes at start with insert and returns the edit
// together with the new source.
func Splice(src []byte, start, deleted int, insert []byte) (Edit, []byte, error) {
	if start < 0 || deleted < 0 || start+deleted > len(src) {
		return Edit{}, nil, fmt.Errorf("splice %d+%d of %d bytes: %w", start, deleted, len(src), ErrInvalidEdit)
	}
	out := make([]byte, 0, len(src)-deleted+len(insert))
	out = append(out, src[:start]...)
	out = append(out, insert...)
	out = append(out, src[start+deleted:]...)

	startLen := lang.Measure(src[:start])
	e := Edit{
		StartByte:   uint32(start),
		OldEndByte:  uint32(start + deleted),
		NewEndByte:  uint32(start + len(insert)),
		StartPoint:  startLen.Extent,
		OldEndPoint: startLen.Add(lang.Measure(src[start : start+deleted])).Extent,
		NewEndPoint: startLen.Add(lang.Measure(insert)).Extent,
	}
	return e, out, nil
}

func (e Edit) start() lang.Length  { return lang.Length{Bytes: e.StartByte, Extent: e.StartPoint} }
func (e Edit) oldEnd() lang.Length { return lang.Length{Bytes: e.OldEndByte, Extent: e.OldEndPoint} }
func (e Edit) newEnd() lang.Length { return lang.Length{Bytes: e.NewEndByte, Extent: e.NewEndPoint} }

// Edit returns a tree whose positions account for e. Subtrees touched by
// the edit are copied and marked as changed; the others are shared with t.
func (t *Tree) Edit(e Edit) (*Tree, error) {
	if e.StartByte > e.OldEndByte || e.StartByte > e.NewEndByte {
		return nil, fmt.Errorf("edit at %d: end before start: %w", e.StartByte, ErrInvalidEdit)
	}
	if e.OldEndByte > t.Len() {
		return nil, fmt.Errorf("edit at %d: old end %d past input length %d: %w", e.StartByte, e.OldEndByte, t.Len(), ErrInvalidEdit)
	}
	root := editSubtree(t.root, edit{start: e.start(), oldEnd: e.oldEnd(), newEnd: e.newEnd()})
	return New(root, t.language), nil
}

type edit struct {
	start, oldEnd, newEnd lang.Length
}

// editSubtree applies e, expressed relative to the start of s's padding.
func editSubtree(s *Subtree, e edit) *Subtree {
	noop := e.oldEnd.Bytes == e.start.Bytes && e.newEnd.Bytes == e.start.Bytes
	insertion := e.oldEnd.Bytes == e.start.Bytes
	columnShifted := e.newEnd.Extent.Column != e.oldEnd.Extent.Column

	padding, size := s.padding, s.size
	total := padding.Add(size)
	end := total.Bytes + s.lookahead
	if e.start.Bytes > end || (noop && e.start.Bytes == end) {
		return s
	}

	switch {
	case e.oldEnd.Bytes <= padding.Bytes:
		// Entirely within the padding: shift.
		padding = e.newEnd.Add(padding.Sub(e.oldEnd))
	case e.start.Bytes < padding.Bytes:
		// Starts in the padding and reaches into the content: shrink.
		size = size.SaturatingSub(e.oldEnd.Sub(padding))
		padding = e.newEnd
	case e.start.Bytes < total.Bytes || (e.start.Bytes == total.Bytes && insertion):
		size = e.newEnd.Sub(padding).Add(total.SaturatingSub(e.oldEnd))
	}

	c := s.clone()
	c.padding, c.size = padding, size
	c.flags |= flagHasChanges
	if len(s.children) == 0 {
		return c
	}

	children := make([]*Subtree, len(s.children))
	copy(children, s.children)
	c.children = children

	var left, right lang.Length
	for i, child := range children {
		childSize := child.TotalSize()
		left = right
		right = left.Add(childSize)

		if right.Bytes+child.lookahead < e.start.Bytes {
			continue
		}
		// Stop at the first child after the edit, unless the edit moved
		// columns: then keep going until a child whose content starts on a
		// later line.
		after := left.Bytes > e.oldEnd.Bytes ||
			(left.Bytes == e.oldEnd.Bytes && childSize.Bytes > 0 && i > 0)
		if after && (!columnShifted || left.Add(child.padding).Extent.Row > e.oldEnd.Extent.Row) {
			break
		}

		ce := edit{
			start:  e.start.SaturatingSub(left),
			oldEnd: e.oldEnd.SaturatingSub(left),
			newEnd: e.newEnd.SaturatingSub(left),
		}
		// Inserted text goes to the first child touching the edit; the
		// following children only shrink.
		if right.Bytes > e.start.Bytes || (right.Bytes == e.start.Bytes && insertion) {
			e.newEnd = e.start
		} else {
			ce.oldEnd = ce.start
			ce.newEnd = ce.start
		}
		children[i] = editSubtree(child, ce)
	}
	return c
}
