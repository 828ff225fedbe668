package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/upprsk/tree-sitter-yal/format"
	"github.com/upprsk/tree-sitter-yal/index"
	"github.com/upprsk/tree-sitter-yal/parser"
	"github.com/upprsk/tree-sitter-yal/yal"
)

func newFmtCmd() *cobra.Command {
	var fmtOverwrite bool

	cmd := &cobra.Command{
		Use:   "fmt [file]",
		Short: "Pretty-print a .yal file, preserving comments",
		Long: `Pretty-print a .yal file to stdout.

If a file is provided, it must have a .yal extension.
If no file is provided, reads yal source from stdin.
Files with syntax errors are not formatted.

Use -w to overwrite the file in place (requires a file argument).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && fmtOverwrite {
				return fmt.Errorf("-w requires a file argument")
			}
			if len(args) == 1 {
				if ext := filepath.Ext(args[0]); ext != index.Ext {
					return fmt.Errorf("expected %s file, got %s", index.Ext, ext)
				}
			}
			source, err := readSource(args)
			if err != nil {
				return err
			}

			t, err := parser.New(yal.Grammar()).Parse(source, nil)
			if err != nil {
				return fmt.Errorf("parse: %w", err)
			}
			output, err := format.PrettyPrint(t, source)
			if errors.Is(err, format.ErrSyntax) {
				printErrors(t, source)
			}
			if err != nil {
				return fmt.Errorf("format: %w", err)
			}

			if fmtOverwrite {
				return os.WriteFile(args[0], output, 0644)
			}
			_, err = os.Stdout.Write(output)
			return err
		},
	}

	cmd.Flags().BoolVarP(&fmtOverwrite, "write", "w", false, "overwrite the file in place")

	return cmd
}
