// Command shadb is a minimal demonstration CLI over the shadb library: it
// exercises Open, AddIndex, Store, and an exact-match Get against a real
// repo directory. It is not the system's query surface — shadb is a
// library; embedding hosts provide their own commands.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keredson/shadb/internal/errs"
	"github.com/keredson/shadb/internal/index"
	"github.com/keredson/shadb/internal/repo"
)

var repoDir string

var rootCmd = &cobra.Command{
	Use:   "shadb",
	Short: "Demo CLI for the shadb embedded document database",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&repoDir, "dir", ".", "repository directory")
	rootCmd.AddCommand(initCmd, putCmd, getCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new shadb repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := repo.Open(ctx, repoDir, repo.WithInit(true))
		if err != nil {
			return fmt.Errorf("open: %w", err)
		}
		defer r.Close()
		fmt.Printf("initialized shadb repository at %s\n", r.Root())
		return nil
	},
}

var putKey string

var putCmd = &cobra.Command{
	Use:   "put <json>",
	Short: "Store a JSON document",
	Long: `Store a JSON document, first registering a unique "by_<key>" index
over the --key field when --key is given.

Examples:
  shadb put '{"email":"a@example.com","name":"Ada"}' --key email`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := repo.Open(ctx, repoDir)
		if err != nil {
			return fmt.Errorf("open: %w", err)
		}
		defer r.Close()

		if putKey != "" {
			err := r.AddIndex(ctx, index.Descriptor{
				Name:       "by_" + putKey,
				Unique:     true,
				Projection: index.FieldProjection(putKey),
			})
			if err != nil && !errors.Is(err, errs.ErrNameConflict) {
				return fmt.Errorf("add_index: %w", err)
			}
		}

		var doc map[string]any
		if err := json.Unmarshal([]byte(args[0]), &doc); err != nil {
			return fmt.Errorf("parsing document: %w", err)
		}

		path, err := r.Store(ctx, doc)
		if err != nil {
			return fmt.Errorf("store: %w", err)
		}
		fmt.Println(path)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <index> <key>",
	Short: "Look up a document by index key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := repo.Open(ctx, repoDir)
		if err != nil {
			return fmt.Errorf("open: %w", err)
		}
		defer r.Close()

		docs, err := r.Docs(args[0])
		if err != nil {
			return fmt.Errorf("docs: %w", err)
		}
		doc, err := docs.Get(ctx, args[1])
		if err != nil {
			return fmt.Errorf("get: %w", err)
		}
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	putCmd.Flags().StringVar(&putKey, "key", "", "field to register as a unique index before storing")
}
