package yal

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/upprsk/tree-sitter-yal/parser"
	"github.com/upprsk/tree-sitter-yal/tree"
)

func parse(t *testing.T, src string) *tree.Tree {
	t.Helper()
	tr, err := parser.New(Grammar()).Parse([]byte(src), nil)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return tr
}

func TestGrammarOnce(t *testing.T) {
	var wg sync.WaitGroup
	results := make([]any, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Grammar()
		}(i)
	}
	wg.Wait()
	for i, g := range results {
		if g != results[0] {
			t.Errorf("Grammar() call %d returned a different grammar", i)
		}
	}
	if Grammar().Name() != "yal" {
		t.Errorf("Name() = %q", Grammar().Name())
	}
}

func TestDeclarations(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			"left associative add",
			"def x = 1 + 2 + 3;",
			"(def_decl name: (id_pack (id)) (expr_pack (add (add (int) (int)) (int))))",
		},
		{
			"mul binds tighter",
			"def x = 1 + 2 * 3;",
			"(def_decl name: (id_pack (id)) (expr_pack (add (int) (mul (int) (int)))))",
		},
		{
			"comparison loosest",
			"def x = a + 1 == b;",
			"(def_decl name: (id_pack (id)) (expr_pack (comp (add (id) (int)) (id))))",
		},
		{
			"call on field",
			"def x = a.b(c, 1);",
			"(def_decl name: (id_pack (id)) (expr_pack (call callee: (field (id) name: (id)) (call_args (id) (int)))))",
		},
		{
			"pointer prefix",
			"def x = *a + b;",
			"(def_decl name: (id_pack (id)) (expr_pack (add (ptr (id)) (id))))",
		},
		{
			"typed def",
			"def x: ?i32 = 0;",
			"(def_decl name: (id_pack (id)) (ptr (id)) (expr_pack (int)))",
		},
		{
			"string with escape",
			`def s = "a\n";`,
			"(def_decl name: (id_pack (id)) (expr_pack (string (string_content) (escape_sequence))))",
		},
		{
			"raw string",
			"def s = `a\\b\nc`;",
			"(def_decl name: (id_pack (id)) (expr_pack (string (raw_string))))",
		},
		{
			"character",
			`def c = '\x41';`,
			"(def_decl name: (id_pack (id)) (expr_pack (character (escape_sequence))))",
		},
		{
			"var pack",
			"var a, b: i32 = 1, 2;",
			"(var_decl name: (id_pack (id) (id)) (expr_pack (id)) (expr_pack (int) (int)))",
		},
		{
			"struct",
			"def P = struct { x: i32, y: i32 = 0 };",
			"(def_decl name: (id_pack (id)) (expr_pack (struct (struct_body (struct_field name: (id) type: (id)) (struct_field name: (id) type: (id) init: (int))))))",
		},
		{
			"literal",
			"def v = .{ .a = 1, };",
			"(def_decl name: (id_pack (id)) (expr_pack (lit (lit_item (id) (int)))))",
		},
		{
			"func",
			"func main.run[T: type](a: i32, b: *T) i32 { return a; }",
			"(func_decl name: (func_id (id) (id)) (func_gargs (func_gargs_item name: (id) constraint: (id))) " +
				"(func_args (func_args_item name: (id) type: (id)) (func_args_item name: (id) type: (ptr (id)))) " +
				"ret: (id) (block (return_stmt (id))))",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := parse(t, "package p\n"+tt.src)
			if tr.HasError() {
				t.Fatalf("unexpected errors: %s", tr.Root())
			}
			root := tr.Root()
			decl := root.NamedChild(root.NamedChildCount() - 1)
			if got := decl.String(); got != tt.want {
				t.Errorf("got  %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestStatements(t *testing.T) {
	src := `package p

// entry point
func f() {
	x = 1;
	if x == 1 { g(); } else if y { } else { }
	while var i = 0; i != 3 { i = i + 1; }
	while i { }
	defer free(p);
	var q = .{ .a = "s" };
	{ }
}
`
	tr := parse(t, src)
	if tr.HasError() {
		t.Fatalf("unexpected errors: %s", tr.Root())
	}
	kinds := map[string]int{}
	tr.Walk().Walk(func(n tree.Node, _ string, _ int) bool {
		kinds[n.Kind()]++
		return true
	})
	for kind, want := range map[string]int{
		"comment":    1,
		"assign":     2,
		"if_stmt":    2,
		"while_stmt": 2,
		"defer_stmt": 1,
		"expr_stmt":  2,
		"var_decl":   2,
		"block":      7,
	} {
		if kinds[kind] != want {
			t.Errorf("%s count = %d, want %d", kind, kinds[kind], want)
		}
	}
}

func TestUnterminatedString(t *testing.T) {
	src := "package p\ndef s = \"abc"
	tr := parse(t, src)
	root := tr.Root()
	if root.EndByte() != uint32(len(src)) {
		t.Fatalf("root ends at %d, want %d", root.EndByte(), len(src))
	}
	var errNode tree.Node
	for _, c := range root.Children() {
		if c.IsError() {
			errNode = c
		}
	}
	if errNode.IsNull() {
		t.Fatalf("no ERROR child in %s", root)
	}
	if errNode.EndByte() != uint32(len(src)) {
		t.Errorf("ERROR ends at %d, want %d", errNode.EndByte(), len(src))
	}
	if first := root.NamedChild(0); first.Kind() != "package_decl" || first.HasError() {
		t.Errorf("package declaration affected by the error: %s", first)
	}
}

func TestErrorContainment(t *testing.T) {
	src := "package p\ndef a = 1;\nfunc f() { x = ; }\ndef b = 2;\n"
	tr := parse(t, src)
	root := tr.Root()
	if !root.HasError() {
		t.Fatal("HasError() = false")
	}
	var decls []tree.Node
	for _, c := range root.Children() {
		if c.IsNamed() && !c.IsExtra() {
			decls = append(decls, c)
		}
	}
	if len(decls) != 4 {
		t.Fatalf("got %d top-level nodes in %s", len(decls), root)
	}
	for _, i := range []int{0, 1, 3} {
		if decls[i].HasError() {
			t.Errorf("%s outside the broken function has errors", decls[i].Kind())
		}
	}
	if !decls[2].HasError() {
		t.Errorf("function %s has no error", decls[2])
	}
}

func TestIncrementalEditReusesOtherDecls(t *testing.T) {
	src := []byte("package p\ndef a = 1;\nfunc f() { return 2; }\ndef b = 3;\n")
	p := parser.New(Grammar())
	old, err := p.Parse(src, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	at := len("package p\ndef a = 1;\nfunc f() { return ")
	e, next, err := tree.Splice(src, at, 1, []byte("5"))
	if err != nil {
		t.Fatalf("Splice: %v", err)
	}
	edited, err := old.Edit(e)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	tr, err := p.Parse(next, edited)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	fresh, err := parser.New(Grammar(), parser.WithoutReuse()).Parse(next, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !tree.Equal(tr.RootSubtree(), fresh.RootSubtree()) {
		t.Fatalf("incremental parse differs:\n %s\n %s", tr.Root(), fresh.Root())
	}
	for _, i := range []int{0, 1, 3} {
		if old.Root().NamedChild(i).ID() != tr.Root().NamedChild(i).ID() {
			t.Errorf("%s was rebuilt", tr.Root().NamedChild(i).Kind())
		}
	}
	if old.Root().NamedChild(2).ID() == tr.Root().NamedChild(2).ID() {
		t.Error("edited function kept its old node")
	}
	if p.Stats().Reused == 0 {
		t.Error("Stats().Reused = 0")
	}
}

var editedDocuments = []string{
	`package geo

// A point in the plane.
def Point = struct { x: i32, y: i32 = 0 };

var origin, unit: Point = .{ .x = 0 }, .{ .x = 1, .y = 1 };

func geo.dist(a: *Point, b: *Point) i32 {
	var dx = a.x - b.x;
	def dy = a.y - b.y;
	return dx * dx + dy * dy;
}
`,
	`package main

def msg = "hello\tworld";

func main() {
	var x: i32 = add(1, 2) * 3;
	if x == 9 {
		print(msg); // greet
	} else if x != 0 {
		x = x - 1;
	} else {
		defer cleanup();
	}
	while var i = 0; i != 10 { i = i + 1; }
}

def last = 'z';
`,
}

// Random splices, most of which break the document, must leave the
// incremental tree identical to a fresh parse of the same text.
func TestIncrementalMatchesFreshParse(t *testing.T) {
	pieces := []string{
		"", ")", "(", "{", "}", ";", "=", ",", ".", "\"", "'", "`",
		"x", "1", " ", "\n", "def ", "func ", "var ", "// ", "+", "*",
	}
	rng := rand.New(rand.NewPCG(7, 11))
	g := Grammar()
	fresh := parser.New(g, parser.WithoutReuse())

	for d, doc := range editedDocuments {
		for round := 0; round < 150; round++ {
			p := parser.New(g)
			src := []byte(doc)
			tr, err := p.Parse(src, nil)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			for step := rng.IntN(3); step >= 0; step-- {
				start := rng.IntN(len(src) + 1)
				deleted := rng.IntN(min(4, len(src)-start) + 1)
				insert := pieces[rng.IntN(len(pieces))]

				e, next, err := tree.Splice(src, start, deleted, []byte(insert))
				if err != nil {
					t.Fatalf("Splice: %v", err)
				}
				edited, err := tr.Edit(e)
				if err != nil {
					t.Fatalf("Edit: %v", err)
				}
				if tr, err = p.Parse(next, edited); err != nil {
					t.Fatalf("Parse: %v", err)
				}
				want, err := fresh.Parse(next, nil)
				if err != nil {
					t.Fatalf("Parse: %v", err)
				}
				if !tree.Equal(tr.RootSubtree(), want.RootSubtree()) {
					t.Fatalf("document %d round %d: replacing %d bytes at %d with %q in\n%s\nincremental %s\nfresh       %s",
						d, round, deleted, start, insert, src, tr.Root(), want.Root())
				}
				src = next
			}
		}
	}
}

func TestDefinitionEBNF(t *testing.T) {
	if err := Definition().VerifyEBNF(); err != nil {
		t.Errorf("VerifyEBNF: %v", err)
	}
}
