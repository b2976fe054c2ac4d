package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/price-ingest/internal/models"
)

// MessageWriter is the part of *kafka.Writer the producer needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer handles publishing ingestion events to Kafka
type Producer struct {
	writer MessageWriter
	topic  string
	now    func() time.Time
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return newProducer(writer, topic)
}

func newProducer(w MessageWriter, topic string) *Producer {
	return &Producer{
		writer: w,
		topic:  topic,
		now:    time.Now,
	}
}

// PublishRunResult publishes INGESTION_COMPLETED or INGESTION_FAILED for a
// finished run
func (p *Producer) PublishRunResult(ctx context.Context, result models.RunResult) error {
	eventType := models.EventIngestionCompleted
	if !result.Succeeded() {
		eventType = models.EventIngestionFailed
	}

	event := models.IngestionEvent{
		EventType: eventType,
		Result:    result,
		Timestamp: p.now(),
	}
	return p.publish(ctx, eventType, event)
}

// PublishRunRequest asks consumers of the requests topic to start a run
func (p *Producer) PublishRunRequest(ctx context.Context, symbols []string, windowDays int) error {
	event := models.IngestionRequestEvent{
		EventType:  models.EventIngestionRequested,
		Symbols:    symbols,
		WindowDays: windowDays,
		Timestamp:  p.now(),
	}
	return p.publish(ctx, models.EventIngestionRequested, event)
}

func (p *Producer) publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
