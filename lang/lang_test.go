package lang

import (
	"slices"
	"testing"
)

func TestLengthArithmetic(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"same line", "ab", "cd"},
		{"newline in second", "ab", "c\nd"},
		{"newline in first", "a\nb", "cd"},
		{"empty", "", "x\n"},
		{"both multiline", "a\n\nb", "\ncd\ne"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := Measure([]byte(tt.a)), Measure([]byte(tt.b))
			sum := Measure([]byte(tt.a + tt.b))
			if got := a.Add(b); got != sum {
				t.Errorf("Add = %+v, want %+v", got, sum)
			}
			if got := sum.Sub(a); got != b {
				t.Errorf("Sub = %+v, want %+v", got, b)
			}
		})
	}

	if got := Measure([]byte("a")).SaturatingSub(Measure([]byte("abc"))); got != (Length{}) {
		t.Errorf("SaturatingSub = %+v, want zero", got)
	}
}

func TestPointLess(t *testing.T) {
	if !(Point{0, 5}).Less(Point{1, 0}) {
		t.Error("0:5 should come before 1:0")
	}
	if (Point{2, 1}).Less(Point{2, 1}) {
		t.Error("a point is not less than itself")
	}
	if got := (Point{3, 4}).String(); got != "3:4" {
		t.Errorf("String = %q", got)
	}
}

func TestSymbolSet(t *testing.T) {
	s := NewSymbolSet(3, 70)
	if !s.Has(3) || !s.Has(70) || s.Has(4) {
		t.Fatalf("membership wrong: %v", s.Symbols())
	}
	if s.Add(3) {
		t.Error("Add of an existing member reported growth")
	}

	o := NewSymbolSet(130)
	if !s.Union(o) {
		t.Error("Union did not report growth")
	}
	if s.Union(o) {
		t.Error("second Union reported growth")
	}
	if want := []Symbol{3, 70, 130}; !slices.Equal(s.Symbols(), want) {
		t.Errorf("Symbols = %v, want %v", s.Symbols(), want)
	}
	if !s.Intersects(o) || s.Intersects(NewSymbolSet(5)) {
		t.Error("Intersects wrong")
	}

	c := s.Clone()
	c.Add(200)
	if s.Has(200) {
		t.Error("Clone shares storage")
	}
	if s.Equal(c) {
		t.Error("sets with different members are equal")
	}

	// Trailing empty words do not change identity.
	a, b := NewSymbolSet(1), NewSymbolSet(1, 300)
	b.words[len(b.words)-1] = 0
	if !a.Equal(b) || a.Key() != b.Key() {
		t.Error("trailing zero words changed equality")
	}

	var nilSet *SymbolSet
	if nilSet.Has(1) || nilSet.Symbols() != nil {
		t.Error("nil set is not empty")
	}
}
