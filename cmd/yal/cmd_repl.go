package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/upprsk/tree-sitter-yal/format"
	"github.com/upprsk/tree-sitter-yal/parser"
	"github.com/upprsk/tree-sitter-yal/tree"
	"github.com/upprsk/tree-sitter-yal/yal"
)

const (
	historyFile = ".yal_history"
	promptMain  = "yal> "
	promptCont  = "...> "
	replPrelude = "package repl\n"
)

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Grow a yal document one declaration at a time",
		Long: `Read declarations interactively and append them to a document that is
reparsed incrementally after every entry. Each entry prints the syntax
tree of the new declarations and how many nodes were reused.

Commands: :src, :tree, :fmt, :reset, :quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl()
		},
	}
}

func runRepl() error {
	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	r, err := newReplSession()
	if err != nil {
		return err
	}

	for {
		entry, ok := readEntry(ln, r)
		if !ok {
			fmt.Println()
			return nil
		}
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(entry, "\n", " "))

		if strings.HasPrefix(entry, ":") {
			if quit := r.command(os.Stdout, entry); quit {
				return nil
			}
			continue
		}

		decls, reused, err := r.add(entry)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		for _, d := range decls {
			fmt.Println(d)
		}
		fmt.Printf("; %d nodes reused\n", reused)
		printErrors(r.tree, r.src)
	}
}

// readEntry prompts until the pending input no longer ends inside an
// unfinished construct. An empty continuation line submits it as is.
func readEntry(ln *liner.State, r *replSession) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			return "", true
		}
		if b.Len() > 0 && strings.TrimSpace(line) == "" {
			return b.String(), true
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		entry := b.String()
		if strings.HasPrefix(strings.TrimSpace(entry), ":") || !r.incomplete(entry) {
			return entry, true
		}
	}
}

// replSession is the document built by the repl.
type replSession struct {
	parser *parser.Parser
	src    []byte
	tree   *tree.Tree
}

func newReplSession() (*replSession, error) {
	r := &replSession{parser: parser.New(yal.Grammar())}
	return r, r.reset()
}

func (r *replSession) reset() error {
	r.src = []byte(replPrelude)
	t, err := r.parser.Parse(r.src, nil)
	if err != nil {
		return err
	}
	r.tree = t
	return nil
}

// incomplete reports whether entry, appended to the document, leaves a
// syntax error running up to the end of the input.
func (r *replSession) incomplete(entry string) bool {
	src := append(append([]byte{}, r.src...), entry...)
	t, err := parser.New(yal.Grammar()).Parse(src, nil)
	if err != nil {
		return false
	}
	errs := tree.Errors(t.Root())
	return len(errs) > 0 && errs[len(errs)-1].EndByte() == uint32(len(src))
}

// add appends entry to the document, reparses it incrementally and returns
// the declarations that start inside the entry.
func (r *replSession) add(entry string) ([]tree.Node, int, error) {
	at := len(r.src)
	e, next, err := tree.Splice(r.src, at, 0, []byte(entry+"\n"))
	if err != nil {
		return nil, 0, err
	}
	edited, err := r.tree.Edit(e)
	if err != nil {
		return nil, 0, err
	}
	t, err := r.parser.Parse(next, edited)
	if err != nil {
		return nil, 0, err
	}
	r.src, r.tree = next, t

	var decls []tree.Node
	for _, c := range t.Root().Children() {
		if c.StartByte() >= uint32(at) && c.IsNamed() {
			decls = append(decls, c)
		}
	}
	return decls, r.parser.Stats().Reused, nil
}

// command runs a repl command and reports whether to quit.
func (r *replSession) command(w io.Writer, line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case ":quit", ":q":
		return true
	case ":src":
		fmt.Fprint(w, string(r.src))
	case ":tree":
		fmt.Fprintln(w, r.tree.Root())
	case ":fmt":
		out, err := format.PrettyPrint(r.tree, r.src)
		if err != nil {
			fmt.Fprintln(w, err)
			break
		}
		fmt.Fprint(w, string(out))
	case ":reset":
		if err := r.reset(); err != nil {
			fmt.Fprintln(w, err)
		}
	default:
		fmt.Fprintln(w, "unknown command. Commands: :src, :tree, :fmt, :reset, :quit")
	}
	return false
}
