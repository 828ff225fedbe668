package main

import (
	"strings"
	"testing"
)

func TestReplSession(t *testing.T) {
	r, err := newReplSession()
	if err != nil {
		t.Fatalf("newReplSession: %v", err)
	}

	decls, _, err := r.add("def a = 1;")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(decls) != 1 || decls[0].Kind() != "def_decl" {
		t.Fatalf("decls = %v", decls)
	}

	decls, reused, err := r.add("func f() {\n  return a;\n}")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(decls) != 1 || decls[0].Kind() != "func_decl" {
		t.Fatalf("decls = %v", decls)
	}
	if reused == 0 {
		t.Error("second entry reused nothing")
	}
	if r.tree.HasError() {
		t.Errorf("unexpected errors: %s", r.tree.Root())
	}
	if got := r.tree.Root().NamedChildCount(); got != 3 {
		t.Errorf("document has %d declarations, want 3", got)
	}
}

func TestReplIncomplete(t *testing.T) {
	r, err := newReplSession()
	if err != nil {
		t.Fatalf("newReplSession: %v", err)
	}
	tests := []struct {
		entry string
		want  bool
	}{
		{"def a = 1;", false},
		{"func f() {", true},
		{"def s = \"abc", true},
		{"def a = 1", true},
	}
	for _, tt := range tests {
		if got := r.incomplete(tt.entry); got != tt.want {
			t.Errorf("incomplete(%q) = %t, want %t", tt.entry, got, tt.want)
		}
	}
}

func TestReplCommands(t *testing.T) {
	r, err := newReplSession()
	if err != nil {
		t.Fatalf("newReplSession: %v", err)
	}
	if _, _, err := r.add("def  x=1;"); err != nil {
		t.Fatalf("add: %v", err)
	}

	var sb strings.Builder
	if r.command(&sb, ":src") {
		t.Fatal(":src quit")
	}
	if sb.String() != "package repl\ndef  x=1;\n" {
		t.Errorf(":src printed %q", sb.String())
	}

	sb.Reset()
	r.command(&sb, ":fmt")
	if sb.String() != "package repl\n\ndef x = 1;\n" {
		t.Errorf(":fmt printed %q", sb.String())
	}

	r.command(&sb, ":reset")
	if string(r.src) != replPrelude {
		t.Errorf("src after :reset = %q", r.src)
	}
	if !r.command(&sb, ":quit") {
		t.Error(":quit did not quit")
	}
}
