package main

import (
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/trogers1052/price-ingest/internal/models"
)

var (
	runSymbols    []string
	runWindowDays int
)

// runCmd performs one ingestion run and exits non-zero when it fails
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one ingestion for the configured symbols",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if len(runSymbols) > 0 {
			cfg.Ingest.Symbols = runSymbols
		}
		if runWindowDays > 0 {
			cfg.Ingest.WindowDays = runWindowDays
		}

		a, err := newApp(ctx, cfg)
		if err != nil {
			return fail("failed to start ingestion", err)
		}
		defer a.Close()

		result := a.coordinator.Run(ctx, models.RunRequest{
			Symbols:    cfg.Ingest.Symbols,
			WindowDays: cfg.Ingest.WindowDays,
		})

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fail("failed to write result", err)
		}

		if !result.Succeeded() {
			return errors.New(result.Error)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&runSymbols, "symbols", nil, "symbols to ingest (overrides INGEST_SYMBOLS)")
	runCmd.Flags().IntVar(&runWindowDays, "window-days", 0, "trailing window in days (overrides INGEST_WINDOW_DAYS)")
	rootCmd.AddCommand(runCmd)
}
