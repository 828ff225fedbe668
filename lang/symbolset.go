package lang

import (
	"math/bits"
	"strconv"
	"strings"
)

// SymbolSet is a growable bit set of symbols. The zero value is empty.
type SymbolSet struct {
	words []uint64
}

// NewSymbolSet returns a set holding the given symbols.
func NewSymbolSet(symbols ...Symbol) *SymbolSet {
	s := &SymbolSet{}
	for _, sym := range symbols {
		s.Add(sym)
	}
	return s
}

// Add inserts sym and reports whether it was absent.
func (s *SymbolSet) Add(sym Symbol) bool {
	w, b := int(sym)>>6, uint(sym)&63
	for len(s.words) <= w {
		s.words = append(s.words, 0)
	}
	if s.words[w]&(1<<b) != 0 {
		return false
	}
	s.words[w] |= 1 << b
	return true
}

// Has reports whether sym is in the set.
func (s *SymbolSet) Has(sym Symbol) bool {
	if s == nil {
		return false
	}
	w := int(sym) >> 6
	return w < len(s.words) && s.words[w]&(1<<(uint(sym)&63)) != 0
}

// Union adds every member of o and reports whether s grew.
func (s *SymbolSet) Union(o *SymbolSet) bool {
	if o == nil {
		return false
	}
	for len(s.words) < len(o.words) {
		s.words = append(s.words, 0)
	}
	changed := false
	for i, w := range o.words {
		if s.words[i]|w != s.words[i] {
			s.words[i] |= w
			changed = true
		}
	}
	return changed
}

// Intersects reports whether s and o share a member.
func (s *SymbolSet) Intersects(o *SymbolSet) bool {
	if s == nil || o == nil {
		return false
	}
	n := min(len(s.words), len(o.words))
	for i := 0; i < n; i++ {
		if s.words[i]&o.words[i] != 0 {
			return true
		}
	}
	return false
}

// Len returns the number of members.
func (s *SymbolSet) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Clone returns an independent copy.
func (s *SymbolSet) Clone() *SymbolSet {
	if s == nil {
		return &SymbolSet{}
	}
	return &SymbolSet{words: append([]uint64(nil), s.words...)}
}

// Equal reports whether both sets hold the same members.
func (s *SymbolSet) Equal(o *SymbolSet) bool {
	a, b := s.trimmed(), o.trimmed()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (s *SymbolSet) trimmed() []uint64 {
	if s == nil {
		return nil
	}
	w := s.words
	for len(w) > 0 && w[len(w)-1] == 0 {
		w = w[:len(w)-1]
	}
	return w
}

// Symbols returns the members in ascending order.
func (s *SymbolSet) Symbols() []Symbol {
	if s == nil {
		return nil
	}
	out := make([]Symbol, 0, s.Len())
	for i, w := range s.words {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			out = append(out, Symbol(i<<6+b))
			w &= w - 1
		}
	}
	return out
}

// Key returns a string usable as a map key for the set contents.
func (s *SymbolSet) Key() string {
	var sb strings.Builder
	for _, w := range s.trimmed() {
		sb.WriteString(strconv.FormatUint(w, 36))
		sb.WriteByte('.')
	}
	return sb.String()
}
