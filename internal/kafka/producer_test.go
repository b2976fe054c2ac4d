package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/price-ingest/internal/models"
)

// MockWriter captures messages instead of sending them to a broker
type MockWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *MockWriter) Close() error {
	m.closed = true
	return nil
}

var fixedNow = time.Date(2024, 4, 30, 22, 0, 0, 0, time.UTC)

func newTestProducer(w *MockWriter) *Producer {
	p := newProducer(w, "price-ingest.events")
	p.now = func() time.Time { return fixedNow }
	return p
}

func TestPublishRunResult(t *testing.T) {
	tests := []struct {
		name     string
		result   models.RunResult
		wantType string
	}{
		{
			name:     "succeeded run",
			result:   models.RunResult{Status: models.RunSucceeded, RecordsWritten: 181, Inserted: 180, Updated: 1},
			wantType: models.EventIngestionCompleted,
		},
		{
			name:     "failed run",
			result:   models.RunResult{Status: models.RunFailed, Error: "apply batch failed (TRANSACTIONAL): deadlock detected"},
			wantType: models.EventIngestionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &MockWriter{}
			p := newTestProducer(w)

			require.NoError(t, p.PublishRunResult(context.Background(), tt.result))
			require.Len(t, w.messages, 1)
			assert.Equal(t, tt.wantType, string(w.messages[0].Key))

			var event models.IngestionEvent
			require.NoError(t, json.Unmarshal(w.messages[0].Value, &event))
			assert.Equal(t, tt.wantType, event.EventType)
			assert.Equal(t, tt.result.Status, event.Result.Status)
			assert.Equal(t, tt.result.RecordsWritten, event.Result.RecordsWritten)
			assert.Equal(t, tt.result.Error, event.Result.Error)
			assert.True(t, fixedNow.Equal(event.Timestamp))
		})
	}
}

func TestPublishRunRequest(t *testing.T) {
	w := &MockWriter{}
	p := newTestProducer(w)

	require.NoError(t, p.PublishRunRequest(context.Background(), []string{"AAPL"}, 30))
	require.Len(t, w.messages, 1)

	var event models.IngestionRequestEvent
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &event))
	assert.Equal(t, models.EventIngestionRequested, event.EventType)
	assert.Equal(t, []string{"AAPL"}, event.Symbols)
	assert.Equal(t, 30, event.WindowDays)
}

func TestPublishWriteError(t *testing.T) {
	w := &MockWriter{err: errors.New("leader not available")}
	p := newTestProducer(w)

	err := p.PublishRunResult(context.Background(), models.RunResult{Status: models.RunSucceeded})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

func TestProducerClose(t *testing.T) {
	w := &MockWriter{}
	require.NoError(t, newTestProducer(w).Close())
	assert.True(t, w.closed)
}
