package index

import (
	"github.com/upprsk/tree-sitter-yal/lang"
	"github.com/upprsk/tree-sitter-yal/tree"
)

// Kind classifies a declaration.
type Kind string

const (
	KindPackage Kind = "package"
	KindFunc    Kind = "func"
	KindVar     Kind = "var"
	KindDef     Kind = "def"
	KindField   Kind = "field"
)

// Symbol is a named declaration in a yal file.
type Symbol struct {
	Name      string
	Kind      Kind
	Container string // enclosing def for struct fields
	Path      string
	Start     lang.Point // of the whole declaration
	End       lang.Point
	NameStart lang.Point
	NameEnd   lang.Point
	Children  []Symbol
}

// Extract returns the top-level declarations of t. Declarations whose name
// is missing are skipped; the rest are reported even when they contain
// errors.
func Extract(t *tree.Tree, src []byte) []Symbol {
	var out []Symbol
	for _, n := range t.Root().Children() {
		if n.IsExtra() || n.IsError() {
			continue
		}
		out = append(out, declSymbols(n, src)...)
	}
	return out
}

func declSymbols(n tree.Node, src []byte) []Symbol {
	name := n.ChildByFieldName("name")
	if name.IsNull() || name.IsMissing() {
		return nil
	}
	switch n.Kind() {
	case "package_decl":
		return []Symbol{newSymbol(n, name, KindPackage, src)}
	case "func_decl":
		return []Symbol{newSymbol(n, name, KindFunc, src)}
	case "var_decl", "def_decl":
		kind := KindVar
		if n.Kind() == "def_decl" {
			kind = KindDef
		}
		var out []Symbol
		ids := name.Children()
		for i, id := range ids {
			if id.Kind() != "id" || id.IsMissing() {
				continue
			}
			sym := newSymbol(n, id, kind, src)
			if i == 0 {
				sym.Children = structFields(n, sym.Name, src)
			}
			out = append(out, sym)
		}
		return out
	}
	return nil
}

// structFields lists the fields of `def T = struct { ... }`.
func structFields(decl tree.Node, container string, src []byte) []Symbol {
	var out []Symbol
	for _, pack := range decl.Children() {
		if pack.Kind() != "expr_pack" || pack.NamedChildCount() == 0 {
			continue
		}
		st := pack.NamedChild(0)
		if st.Kind() != "struct" {
			return nil
		}
		for _, body := range st.Children() {
			if body.Kind() != "struct_body" {
				continue
			}
			for _, f := range body.Children() {
				if f.Kind() != "struct_field" {
					continue
				}
				name := f.ChildByFieldName("name")
				if name.IsNull() || name.IsMissing() {
					continue
				}
				sym := newSymbol(f, name, KindField, src)
				sym.Container = container
				out = append(out, sym)
			}
		}
		return out
	}
	return nil
}

func newSymbol(decl, name tree.Node, kind Kind, src []byte) Symbol {
	return Symbol{
		Name:      name.Content(src),
		Kind:      kind,
		Start:     decl.StartPoint(),
		End:       decl.EndPoint(),
		NameStart: name.StartPoint(),
		NameEnd:   name.EndPoint(),
	}
}

// Flatten returns syms and their children in document order.
func Flatten(syms []Symbol) []Symbol {
	var out []Symbol
	for _, s := range syms {
		children := s.Children
		s.Children = nil
		out = append(out, s)
		out = append(out, Flatten(children)...)
	}
	return out
}
