package tree

import (
	"errors"
	"strings"
	"testing"

	"github.com/upprsk/tree-sitter-yal/lang"
)

const (
	symID lang.Symbol = iota + 1
	symPlus
	symHidden
	symSum
	symProgram
	symComment
)

type testLanguage struct{}

var testSymbols = []struct {
	name           string
	visible, named bool
}{
	{"end", false, false},
	{"id", true, true},
	{"+", true, false},
	{"_hidden", false, true},
	{"sum", true, true},
	{"program", true, true},
	{"comment", true, true},
}

var testFields = []string{"", "body", "left", "right"}

var testProductions = [][]lang.FieldID{
	{2, 0, 3}, // sum: id + id
	{0},       // _hidden: sum
	{1},       // program: _hidden
}

func (testLanguage) SymbolName(s lang.Symbol) string { return testSymbols[s].name }
func (testLanguage) SymbolVisible(s lang.Symbol) bool { return testSymbols[s].visible }
func (testLanguage) SymbolNamed(s lang.Symbol) bool   { return testSymbols[s].named }
func (testLanguage) FieldName(f lang.FieldID) string  { return testFields[f] }
func (testLanguage) FieldID(name string) (lang.FieldID, bool) {
	for i, f := range testFields {
		if i > 0 && f == name {
			return lang.FieldID(i), true
		}
	}
	return 0, false
}
func (testLanguage) ProductionFields(p int) []lang.FieldID { return testProductions[p] }

func cols(n uint32) lang.Length {
	return lang.Length{Bytes: n, Extent: lang.Point{Column: n}}
}

func leaf(sym lang.Symbol, padding, size uint32) *Subtree {
	return NewLeaf(Leaf{Symbol: sym, Padding: cols(padding), Size: cols(size)})
}

// sumTree builds the tree of "a + b".
func sumTree() *Tree {
	sum := NewNode(symSum, []*Subtree{leaf(symID, 0, 1), leaf(symPlus, 1, 1), leaf(symID, 1, 1)}, NodeOptions{Production: 0})
	hidden := NewNode(symHidden, []*Subtree{sum}, NodeOptions{Production: 1})
	return New(NewNode(symProgram, []*Subtree{hidden}, NodeOptions{Production: 2}), testLanguage{})
}

func TestNodeString(t *testing.T) {
	tr := sumTree()
	want := "(program body: (sum left: (id) right: (id)))"
	if got := tr.Root().String(); got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
}

func TestNodeNavigation(t *testing.T) {
	src := []byte("a + b")
	root := sumTree().Root()
	if root.StartByte() != 0 || root.EndByte() != 5 {
		t.Fatalf("root spans [%d, %d), want [0, 5)", root.StartByte(), root.EndByte())
	}
	if root.ChildCount() != 1 {
		t.Fatalf("root has %d children, want 1", root.ChildCount())
	}
	sum := root.Child(0)
	if sum.Kind() != "sum" || root.FieldNameForChild(0) != "body" {
		t.Errorf("child = %s (field %q)", sum.Kind(), root.FieldNameForChild(0))
	}
	if sum.Parent().Kind() != "program" {
		t.Errorf("parent = %s", sum.Parent().Kind())
	}

	tests := []struct {
		i          int
		kind       string
		field      string
		named      bool
		start, end uint32
		content    string
	}{
		{0, "id", "left", true, 0, 1, "a"},
		{1, "+", "", false, 2, 3, "+"},
		{2, "id", "right", true, 4, 5, "b"},
	}
	for _, tt := range tests {
		c := sum.Child(tt.i)
		if c.Kind() != tt.kind || c.IsNamed() != tt.named {
			t.Errorf("child %d = %s named=%v, want %s named=%v", tt.i, c.Kind(), c.IsNamed(), tt.kind, tt.named)
		}
		if got := sum.FieldNameForChild(tt.i); got != tt.field {
			t.Errorf("child %d field = %q, want %q", tt.i, got, tt.field)
		}
		if c.StartByte() != tt.start || c.EndByte() != tt.end {
			t.Errorf("child %d spans [%d, %d), want [%d, %d)", tt.i, c.StartByte(), c.EndByte(), tt.start, tt.end)
		}
		if got := c.Content(src); got != tt.content {
			t.Errorf("child %d content = %q, want %q", tt.i, got, tt.content)
		}
	}

	if sum.NamedChildCount() != 2 || sum.NamedChild(1).StartByte() != 4 {
		t.Errorf("named children wrong")
	}
	if got := sum.ChildByFieldName("right").Content(src); got != "b" {
		t.Errorf("ChildByFieldName(right) = %q", got)
	}
	if !sum.ChildByFieldName("nope").IsNull() {
		t.Error("unknown field returned a node")
	}
	if !sum.Child(3).IsNull() {
		t.Error("out of range child is not null")
	}
	if got := root.DescendantForByteRange(4, 5); got.Content(src) != "b" {
		t.Errorf("DescendantForByteRange = %s %q", got.Kind(), got.Content(src))
	}
}

func TestExtrasHaveNoField(t *testing.T) {
	comment := NewLeaf(Leaf{Symbol: symComment, Padding: cols(1), Size: cols(3), Extra: true})
	sum := NewNode(symSum, []*Subtree{leaf(symID, 0, 1), comment, leaf(symPlus, 1, 1), leaf(symID, 1, 1)}, NodeOptions{Production: 0})
	n := New(sum, testLanguage{}).Root()
	want := []string{"left", "", "", "right"}
	for i, w := range want {
		if got := n.FieldNameForChild(i); got != w {
			t.Errorf("field of child %d = %q, want %q", i, got, w)
		}
	}
	if !n.Child(1).IsExtra() {
		t.Error("comment is not an extra")
	}
}

func TestCursor(t *testing.T) {
	c := sumTree().Walk()
	var lines []string
	c.Walk(func(n Node, field string, depth int) bool {
		line := strings.Repeat("  ", depth) + n.Kind()
		if field != "" {
			line = strings.Repeat("  ", depth) + field + ": " + n.Kind()
		}
		lines = append(lines, line)
		return true
	})
	want := []string{"program", "  body: sum", "    left: id", "    +", "    right: id"}
	if strings.Join(lines, "\n") != strings.Join(want, "\n") {
		t.Errorf("walk =\n%s\nwant\n%s", strings.Join(lines, "\n"), strings.Join(want, "\n"))
	}
	if c.Depth() != 0 || c.Node().Kind() != "program" {
		t.Errorf("cursor did not return to root: depth %d at %s", c.Depth(), c.Node().Kind())
	}

	if !c.GotoFirstChild() || !c.GotoFirstChildForByte(2) {
		t.Fatal("could not descend")
	}
	if c.Node().Kind() != "+" || c.Depth() != 2 {
		t.Errorf("at %s depth %d, want + depth 2", c.Node().Kind(), c.Depth())
	}
	if !c.GotoNextSibling() || c.FieldName() != "right" || c.GotoNextSibling() {
		t.Error("sibling navigation wrong")
	}
	if !c.GotoParent() || !c.GotoParent() || c.GotoParent() {
		t.Error("parent navigation wrong")
	}
}

func TestEditSharesUntouchedSubtrees(t *testing.T) {
	old := sumTree()
	src := []byte("a + b")
	e, newSrc, err := Splice(src, 4, 1, []byte("bc"))
	if err != nil {
		t.Fatalf("Splice: %v", err)
	}
	if string(newSrc) != "a + bc" {
		t.Fatalf("new source = %q", newSrc)
	}
	edited, err := old.Edit(e)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if edited.Len() != 6 {
		t.Errorf("Len = %d, want 6", edited.Len())
	}

	oldSum, newSum := old.Root().Child(0), edited.Root().Child(0)
	if !newSum.HasChanges() || oldSum.HasChanges() {
		t.Error("changes not marked on the copy only")
	}
	for i := 0; i < 2; i++ {
		if oldSum.Child(i).ID() != newSum.Child(i).ID() {
			t.Errorf("child %d was copied", i)
		}
	}
	b := newSum.Child(2)
	if !b.HasChanges() || b.Content(newSrc) != "bc" {
		t.Errorf("edited leaf = %q changed=%v", b.Content(newSrc), b.HasChanges())
	}
}

func TestEditInsertionBeforeToken(t *testing.T) {
	old := sumTree()
	e, _, err := Splice([]byte("a + b"), 1, 0, []byte(" "))
	if err != nil {
		t.Fatal(err)
	}
	edited, err := old.Edit(e)
	if err != nil {
		t.Fatal(err)
	}
	sum := edited.Root().Child(0)
	plus := sum.Child(1)
	if plus.StartByte() != 3 {
		t.Errorf("+ starts at %d, want 3", plus.StartByte())
	}
	// The edit shifts columns, so the rest of the line is invalidated.
	if !plus.HasChanges() {
		t.Error("+ on the edited line is not marked")
	}
	if !sum.Child(0).HasChanges() {
		t.Error("token touching the insertion is not marked")
	}
}

func TestEditNoop(t *testing.T) {
	old := sumTree()
	edited, err := old.Edit(Edit{StartByte: 5, OldEndByte: 5, NewEndByte: 5, StartPoint: lang.Point{Column: 5}, OldEndPoint: lang.Point{Column: 5}, NewEndPoint: lang.Point{Column: 5}})
	if err != nil {
		t.Fatal(err)
	}
	if edited.RootSubtree() != old.RootSubtree() {
		t.Error("no-op edit at the end copied the root")
	}
}

func TestEditErrors(t *testing.T) {
	tr := sumTree()
	tests := []struct {
		name string
		edit Edit
	}{
		{"old end before start", Edit{StartByte: 3, OldEndByte: 2, NewEndByte: 3}},
		{"new end before start", Edit{StartByte: 3, OldEndByte: 3, NewEndByte: 2}},
		{"past end", Edit{StartByte: 3, OldEndByte: 9, NewEndByte: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tr.Edit(tt.edit); !errors.Is(err, ErrInvalidEdit) {
				t.Errorf("err = %v, want ErrInvalidEdit", err)
			}
		})
	}
	if _, _, err := Splice([]byte("ab"), 1, 5, nil); !errors.Is(err, ErrInvalidEdit) {
		t.Errorf("Splice err = %v", err)
	}
}

func TestSplicePoints(t *testing.T) {
	e, out, err := Splice([]byte("a\nbc\nd"), 3, 3, []byte("x\ny"))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "a\nbx\ny" {
		t.Errorf("out = %q", out)
	}
	want := Edit{
		StartByte: 3, OldEndByte: 6, NewEndByte: 6,
		StartPoint:  lang.Point{Row: 1, Column: 1},
		OldEndPoint: lang.Point{Row: 2, Column: 1},
		NewEndPoint: lang.Point{Row: 2, Column: 1},
	}
	if e != want {
		t.Errorf("edit = %+v, want %+v", e, want)
	}
}

func TestSubtreeSummary(t *testing.T) {
	a := NewLeaf(Leaf{Symbol: symID, Size: cols(1), LookaheadBytes: 3})
	plus := leaf(symPlus, 1, 1)
	b := NewLeaf(Leaf{Symbol: symID, Padding: cols(1), Size: cols(1), LookaheadBytes: 1})
	n := NewNode(symSum, []*Subtree{a, plus, b}, NodeOptions{})
	if n.LookaheadBytes() != 1 {
		t.Errorf("lookahead = %d, want 1", n.LookaheadBytes())
	}
	n = NewNode(symSum, []*Subtree{a, plus, b}, NodeOptions{MinLookahead: 4})
	if n.LookaheadBytes() != 4 {
		t.Errorf("lookahead = %d, want 4", n.LookaheadBytes())
	}
	if n.Padding().Bytes != 0 || n.Size().Bytes != 5 {
		t.Errorf("padding/size = %d/%d", n.Padding().Bytes, n.Size().Bytes)
	}

	missing := NewMissing(symID, lang.Length{}, 0)
	if missing.ErrorCost() != ErrorCostPerMissingTree+ErrorCostPerRecovery || !missing.HasError() {
		t.Errorf("missing cost = %d", missing.ErrorCost())
	}
	errNode := NewError([]*Subtree{leaf(symID, 0, 1), leaf(symPlus, 1, 1)}, 0)
	want := uint32(ErrorCostPerRecovery + 3*ErrorCostPerSkippedChar + 2*ErrorCostPerSkippedTree)
	if errNode.ErrorCost() != want {
		t.Errorf("error cost = %d, want %d", errNode.ErrorCost(), want)
	}
	if NewNode(symSum, []*Subtree{a, errNode}, NodeOptions{}).ErrorCost() != want {
		t.Error("error cost not summed into parent")
	}
}

func TestEqual(t *testing.T) {
	if !Equal(sumTree().RootSubtree(), sumTree().RootSubtree()) {
		t.Error("identical trees differ")
	}
	other := New(NewNode(symSum, []*Subtree{leaf(symID, 0, 1), leaf(symPlus, 2, 1), leaf(symID, 1, 1)}, NodeOptions{Production: 0}), testLanguage{})
	if sumTree().Root().Child(0).Equal(other.Root()) {
		t.Error("trees with different padding are equal")
	}
}
