package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/upprsk/tree-sitter-yal/format"
	"github.com/upprsk/tree-sitter-yal/parser"
	"github.com/upprsk/tree-sitter-yal/tree"
	"github.com/upprsk/tree-sitter-yal/yal"
)

func newEditCmd() *cobra.Command {
	var at, deleted int
	var insert string
	var outputFormat string
	var write bool

	cmd := &cobra.Command{
		Use:   "edit <file>",
		Short: "Apply an edit to a .yal file and reparse it incrementally",
		Long: `Parse a .yal file, replace --delete bytes at byte offset --at with
--insert, and reparse the result reusing the unchanged parts of the first
tree. Prints how much was reused and whether the incremental tree equals
a parse from scratch.

Use -w to save the edited source.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]
			source, err := os.ReadFile(filename)
			if err != nil {
				return fmt.Errorf("read file: %w", err)
			}

			g := yal.Grammar()
			p := parser.New(g)
			old, err := p.Parse(source, nil)
			if err != nil {
				return fmt.Errorf("parse: %w", err)
			}

			e, edited, err := tree.Splice(source, at, deleted, []byte(insert))
			if err != nil {
				return err
			}
			t, err := parser.ParseEdited(g, edited, old, e)
			if err != nil {
				return fmt.Errorf("reparse: %w", err)
			}
			fresh, err := parser.New(g, parser.WithoutReuse()).Parse(edited, nil)
			if err != nil {
				return fmt.Errorf("parse edited source: %w", err)
			}

			if outputFormat != "" {
				enc, err := format.New(outputFormat, os.Stdout)
				if err != nil {
					return err
				}
				if err := enc.Encode(t, edited); err != nil {
					return fmt.Errorf("encode: %w", err)
				}
			}

			stats, reused := reuseSummary(old, t)
			fmt.Fprintf(os.Stderr, "edit:    %d..%d -> %d..%d\n", e.StartByte, e.OldEndByte, e.StartByte, e.NewEndByte)
			fmt.Fprintf(os.Stderr, "reused:  %d of %d nodes\n", reused, stats)
			fmt.Fprintf(os.Stderr, "matches fresh parse: %t\n", tree.Equal(t.RootSubtree(), fresh.RootSubtree()))
			printErrors(t, edited)

			if write {
				return os.WriteFile(filename, edited, 0644)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&at, "at", 0, "byte offset of the edit")
	cmd.Flags().IntVar(&deleted, "delete", 0, "number of bytes to delete")
	cmd.Flags().StringVar(&insert, "insert", "", "text to insert")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "", "also print the new tree (sexp, json, line)")
	cmd.Flags().BoolVarP(&write, "write", "w", false, "overwrite the file with the edited source")

	return cmd
}

// reuseSummary counts the nodes of t and how many of them were taken
// over from old.
func reuseSummary(old, t *tree.Tree) (total, reused int) {
	ids := map[uint64]bool{}
	old.Walk().Walk(func(n tree.Node, _ string, _ int) bool {
		ids[n.ID()] = true
		return true
	})
	t.Walk().Walk(func(n tree.Node, _ string, _ int) bool {
		total++
		if ids[n.ID()] {
			reused++
		}
		return true
	})
	return total, reused
}
