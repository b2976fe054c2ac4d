package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/trogers1052/price-ingest/internal/apperror"
	"github.com/trogers1052/price-ingest/internal/kafka"
)

var (
	enqueueSymbols    []string
	enqueueWindowDays int
)

type runRequestPublisher interface {
	PublishRunRequest(ctx context.Context, symbols []string, windowDays int) error
}

// enqueueCmd asks a running `serve` instance to ingest via the requests topic
var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Publish an ingestion request to Kafka",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.Kafka.Brokers) == 0 {
			return fail("cannot enqueue run", apperror.NewMissing("KAFKA_BROKERS"))
		}

		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.RequestsTopic)
		defer producer.Close()

		return enqueueRun(cmd.Context(), producer, enqueueSymbols, enqueueWindowDays)
	},
}

// enqueueRun publishes one request. Empty symbols or a zero window leave the
// consumer's configured defaults in force.
func enqueueRun(ctx context.Context, pub runRequestPublisher, symbols []string, windowDays int) error {
	if windowDays < 0 {
		return fmt.Errorf("invalid --window-days %d", windowDays)
	}
	if err := pub.PublishRunRequest(ctx, symbols, windowDays); err != nil {
		return fail("failed to publish ingestion request", err)
	}
	slog.Info("ingestion request published", "symbols", symbols, "window_days", windowDays)
	return nil
}

func init() {
	enqueueCmd.Flags().StringSliceVar(&enqueueSymbols, "symbols", nil, "symbols to ingest (default: consumer's INGEST_SYMBOLS)")
	enqueueCmd.Flags().IntVar(&enqueueWindowDays, "window-days", 0, "trailing window in days (default: consumer's INGEST_WINDOW_DAYS)")
	rootCmd.AddCommand(enqueueCmd)
}
