package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/trogers1052/price-ingest/internal/ingest"
)

var pruneBefore string

// pruneCmd deletes stored prices dated before a cutoff
var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete stored prices older than a date",
	RunE: func(cmd *cobra.Command, args []string) error {
		if pruneBefore == "" {
			return errors.New("--before is required")
		}
		before, err := ingest.ParseDate(pruneBefore)
		if err != nil {
			return fmt.Errorf("invalid --before date %q: %w", pruneBefore, err)
		}

		db, err := openDB(cfg)
		if err != nil {
			return fail("failed to connect to database", err)
		}
		defer db.Close()

		deleted, err := db.DeletePriceDataOlderThan(cmd.Context(), before)
		if err != nil {
			return fail("failed to prune prices", err)
		}
		slog.Info("pruned prices", "before", pruneBefore, "deleted", deleted)
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d rows\n", deleted)
		return nil
	},
}

func init() {
	pruneCmd.Flags().StringVar(&pruneBefore, "before", "", "delete rows dated before YYYY-MM-DD")
	rootCmd.AddCommand(pruneCmd)
}
