package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

const version = "0.1.0"

func main() {
	var verbose int

	rootCmd := &cobra.Command{
		Use:   "yal",
		Short: "Incremental parser and tooling for the yal language",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			commonlog.Configure(verbose, nil)
		},
	}
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase log verbosity (repeatable)")

	rootCmd.AddCommand(newParseCmd())
	rootCmd.AddCommand(newEditCmd())
	rootCmd.AddCommand(newFmtCmd())
	rootCmd.AddCommand(newGrammarCmd())
	rootCmd.AddCommand(newIndexCmd())
	rootCmd.AddCommand(newSymbolsCmd())
	rootCmd.AddCommand(newLSPCmd())
	rootCmd.AddCommand(newReplCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
