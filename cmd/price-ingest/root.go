package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/trogers1052/price-ingest/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "price-ingest",
	Short:         "Daily stock price ingestion and reconciliation",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		return setupLogger(cfg.LogLevel)
	},
}

func setupLogger(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return nil
}

// fail logs err and hands it back so cobra's caller can exit non-zero
func fail(msg string, err error) error {
	slog.Error(msg, "error", err)
	return fmt.Errorf("%s: %w", msg, err)
}
