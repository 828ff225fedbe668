package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/upprsk/tree-sitter-yal/format"
	"github.com/upprsk/tree-sitter-yal/parser"
	"github.com/upprsk/tree-sitter-yal/tree"
	"github.com/upprsk/tree-sitter-yal/yal"
)

func newParseCmd() *cobra.Command {
	var outputFormat string
	var showStats bool
	var maxHeads int

	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse a .yal file and dump its syntax tree",
		Long: `Parse a .yal file and dump its syntax tree to stdout.

If no file is provided, reads yal source from stdin. Syntax errors are
part of the tree (ERROR and MISSING nodes) and listed on stderr.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(args)
			if err != nil {
				return err
			}

			enc, err := format.New(outputFormat, os.Stdout)
			if err != nil {
				return err
			}

			p := parser.New(yal.Grammar(), parser.WithMaxHeads(maxHeads))
			t, err := p.Parse(source, nil)
			if err != nil {
				return fmt.Errorf("parse: %w", err)
			}
			if err := enc.Encode(t, source); err != nil {
				return fmt.Errorf("encode: %w", err)
			}

			printErrors(t, source)
			if showStats {
				printStats(p.Stats())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "sexp", "output format ("+strings.Join(format.Names, ", ")+")")
	cmd.Flags().BoolVar(&showStats, "stats", false, "print parser statistics to stderr")
	cmd.Flags().IntVar(&maxHeads, "max-heads", parser.DefaultMaxHeads, "maximum number of simultaneous parse stacks")

	return cmd
}

func readSource(args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		source, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return source, nil
	}
	source, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return source, nil
}

func printErrors(t *tree.Tree, source []byte) {
	for _, n := range tree.Errors(t.Root()) {
		if n.IsMissing() {
			fmt.Fprintf(os.Stderr, "%s: missing %s\n", n.StartPoint(), n.Kind())
			continue
		}
		fmt.Fprintf(os.Stderr, "%s: unexpected %q\n", n.StartPoint(), n.Content(source))
	}
}

func printStats(s parser.Stats) {
	fmt.Fprintf(os.Stderr, "tokens:     %d\n", s.Tokens)
	fmt.Fprintf(os.Stderr, "reused:     %d (%d bytes)\n", s.Reused, s.ReusedBytes)
	fmt.Fprintf(os.Stderr, "forks:      %d\n", s.Forks)
	fmt.Fprintf(os.Stderr, "merges:     %d\n", s.Merges)
	fmt.Fprintf(os.Stderr, "max heads:  %d\n", s.MaxHeads)
	fmt.Fprintf(os.Stderr, "recoveries: %d\n", s.Recoveries)
	if s.Exhausted {
		fmt.Fprintln(os.Stderr, "recovery budget exhausted")
	}
}
