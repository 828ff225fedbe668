package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/upprsk/tree-sitter-yal/index"
)

const defaultDB = ".yal-index.db"

func newIndexCmd() *cobra.Command {
	var dbPath string
	var watch bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "index [dir]",
		Short: "Index the declarations of every .yal file under a directory",
		Long: `Parse every .yal file under dir (default: the current directory) and
store its declarations in a sqlite database for "yal symbols".

With --watch, keep polling for changes until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}

			store, err := index.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			ix := index.New(root, store)
			if !watch {
				n, err := ix.IndexAll()
				if err != nil {
					return fmt.Errorf("index %s: %w", root, err)
				}
				fmt.Printf("indexed %d files into %s\n", n, dbPath)
				return nil
			}

			w := index.NewWatcher(ix, interval)
			w.Start()
			fmt.Fprintf(os.Stderr, "watching %s, press Ctrl-C to stop\n", root)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt)
			<-sig
			w.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", defaultDB, "path of the index database")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep the index up to date until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "polling interval with --watch")

	return cmd
}

func newSymbolsCmd() *cobra.Command {
	var dbPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "symbols [query]",
		Short: "Search the declaration index",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}

			store, err := index.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			syms, err := store.Search(query, limit)
			if err != nil {
				return err
			}
			for _, s := range syms {
				name := s.Name
				if s.Container != "" {
					name = s.Container + "." + name
				}
				fmt.Printf("%s:%d:%d\t%s\t%s\n", s.Path, s.NameStart.Row+1, s.NameStart.Column+1, s.Kind, name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", defaultDB, "path of the index database")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of results (0 for all)")

	return cmd
}
