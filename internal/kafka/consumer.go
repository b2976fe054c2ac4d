package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/price-ingest/internal/models"
)

// Runner executes one ingestion run
type Runner interface {
	Run(ctx context.Context, req models.RunRequest) models.RunResult
}

// Consumer starts ingestion runs from INGESTION_REQUESTED events. Runs are
// executed one at a time in offset order.
type Consumer struct {
	reader            *kafka.Reader
	runner            Runner
	defaultSymbols    []string
	defaultWindowDays int
}

// NewConsumer creates a new Kafka consumer for ingestion requests. Requests
// that omit symbols or a window fall back to the given defaults.
func NewConsumer(brokers []string, topic, groupID string, runner Runner, symbols []string, windowDays int) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       1e6, // 1MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader:            reader,
		runner:            runner,
		defaultSymbols:    symbols,
		defaultWindowDays: windowDays,
	}
}

// Start consumes messages until ctx is cancelled, then closes the reader
func (c *Consumer) Start(ctx context.Context) error {
	slog.Info("starting kafka consumer", "topic", c.reader.Config().Topic)

	for {
		select {
		case <-ctx.Done():
			slog.Info("kafka consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					continue // shut down via ctx.Done
				}
				slog.Error("error reading message", "error", err)
				continue
			}

			if _, err := c.processMessage(ctx, msg); err != nil {
				slog.Error("error processing message", "error", err)
			}
		}
	}
}

// processMessage handles a single Kafka message. It reports whether a run
// was started.
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) (bool, error) {
	slog.Debug("received message", "partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))

	var event models.IngestionRequestEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return false, fmt.Errorf("failed to unmarshal ingestion request: %w", err)
	}

	if event.EventType != models.EventIngestionRequested {
		slog.Debug("ignoring event", "event_type", event.EventType)
		return false, nil
	}

	result := c.runner.Run(ctx, c.requestFromEvent(event))
	slog.Info("ingestion run requested via kafka finished",
		"status", result.Status,
		"records_written", result.RecordsWritten)
	return true, nil
}

func (c *Consumer) requestFromEvent(event models.IngestionRequestEvent) models.RunRequest {
	req := models.RunRequest{
		Symbols:    event.Symbols,
		WindowDays: event.WindowDays,
	}
	if len(req.Symbols) == 0 {
		req.Symbols = c.defaultSymbols
	}
	if req.WindowDays == 0 {
		req.WindowDays = c.defaultWindowDays
	}
	return req
}
