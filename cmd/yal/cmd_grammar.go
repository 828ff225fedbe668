package main

import (
	"fmt"
	"os"
	"reflect"
	"slices"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/exp/ebnf"

	"github.com/upprsk/tree-sitter-yal/yal"
)

func newGrammarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "grammar",
		Short:         "Inspect the yal grammar",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newGrammarEbnfCmd())
	cmd.AddCommand(newGrammarCheckCmd())
	cmd.AddCommand(newGrammarTablesCmd())

	return cmd
}

func newGrammarEbnfCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ebnf",
		Short: "Print the yal grammar as EBNF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return yal.Definition().WriteEBNF(os.Stdout)
		},
	}
}

func newGrammarCheckCmd() *cobra.Command {
	var startProduction string

	cmd := &cobra.Command{
		Use:   "check [file]",
		Short: "Verify the yal grammar, or an EBNF grammar file",
		Long: `Without arguments, render the yal grammar as EBNF and verify that every
production is defined and reachable from source_file.

With a file argument, parse and verify that EBNF grammar instead.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				if err := yal.Definition().VerifyEBNF(); err != nil {
					printEbnfErrors(err)
					return err
				}
				fmt.Println("ok")
				return nil
			}

			filename := args[0]
			f, err := os.Open(filename)
			if err != nil {
				return fmt.Errorf("open file: %w", err)
			}
			defer f.Close()

			grammar, err := ebnf.Parse(filename, f)
			if err != nil {
				printEbnfErrors(err)
				return err
			}
			if err := ebnf.Verify(grammar, startProduction); err != nil {
				printEbnfErrors(err)
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}

	cmd.Flags().StringVar(&startProduction, "start", "", "start production for verification of a grammar file")

	return cmd
}

func newGrammarTablesCmd() *cobra.Command {
	var dump bool

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Print parse table statistics and unresolved conflicts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g := yal.Grammar()
			tab := g.Table()
			st := tab.Stats()

			fmt.Printf("states:        %d\n", st.States)
			fmt.Printf("terminals:     %d\n", st.Terminals)
			fmt.Printf("nonterminals:  %d\n", st.Nonterminals)
			fmt.Printf("productions:   %d\n", st.Productions)
			fmt.Printf("lex modes:     %d\n", st.LexModes)
			fmt.Printf("lexer states:  %d\n", g.Automaton().States())
			fmt.Printf("conflicts:     %d\n", st.Conflicts)

			conflicts := slices.Clone(tab.Conflicts())
			sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].State < conflicts[j].State })
			for _, c := range conflicts {
				fmt.Printf("  state %d on %q:", c.State, g.SymbolName(c.Terminal))
				for _, a := range c.Actions {
					fmt.Printf(" [%s]", a)
				}
				fmt.Println()
			}

			if dump {
				return tab.Dump(os.Stdout, g.SymbolName)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dump, "dump", false, "also list every state's actions")

	return cmd
}

func printEbnfErrors(err error) {
	v := reflect.ValueOf(err)
	if v.Kind() == reflect.Slice {
		for i := 0; i < v.Len(); i++ {
			fmt.Println(v.Index(i).Interface())
		}
	} else {
		fmt.Println(err)
	}
}
