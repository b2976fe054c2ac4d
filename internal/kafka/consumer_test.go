package kafka

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/price-ingest/internal/models"
)

// MockRunner records every request it is asked to run
type MockRunner struct {
	requests []models.RunRequest
	result   models.RunResult
}

func (m *MockRunner) Run(ctx context.Context, req models.RunRequest) models.RunResult {
	m.requests = append(m.requests, req)
	return m.result
}

func newTestConsumer(runner Runner) *Consumer {
	return &Consumer{
		runner:            runner,
		defaultSymbols:    []string{"AAPL", "TSLA"},
		defaultWindowDays: 90,
	}
}

func message(t *testing.T, v any) kafka.Message {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(models.EventIngestionRequested), Value: data}
}

func TestProcessMessageStartsRun(t *testing.T) {
	runner := &MockRunner{result: models.RunResult{Status: models.RunSucceeded, RecordsWritten: 10}}
	consumer := newTestConsumer(runner)

	started, err := consumer.processMessage(context.Background(), message(t, models.IngestionRequestEvent{
		EventType:  models.EventIngestionRequested,
		Symbols:    []string{"MSFT"},
		WindowDays: 30,
	}))

	require.NoError(t, err)
	assert.True(t, started)
	require.Len(t, runner.requests, 1)
	assert.Equal(t, []string{"MSFT"}, runner.requests[0].Symbols)
	assert.Equal(t, 30, runner.requests[0].WindowDays)
}

func TestProcessMessageFallsBackToDefaults(t *testing.T) {
	runner := &MockRunner{}
	consumer := newTestConsumer(runner)

	started, err := consumer.processMessage(context.Background(), message(t, models.IngestionRequestEvent{
		EventType: models.EventIngestionRequested,
	}))

	require.NoError(t, err)
	assert.True(t, started)
	require.Len(t, runner.requests, 1)
	assert.Equal(t, []string{"AAPL", "TSLA"}, runner.requests[0].Symbols)
	assert.Equal(t, 90, runner.requests[0].WindowDays)
}

func TestProcessMessageIgnoresOtherEvents(t *testing.T) {
	runner := &MockRunner{}
	consumer := newTestConsumer(runner)

	started, err := consumer.processMessage(context.Background(), message(t, models.IngestionEvent{
		EventType: models.EventIngestionCompleted,
	}))

	require.NoError(t, err)
	assert.False(t, started)
	assert.Empty(t, runner.requests)
}

func TestProcessMessageRejectsBadJSON(t *testing.T) {
	runner := &MockRunner{}
	consumer := newTestConsumer(runner)

	started, err := consumer.processMessage(context.Background(), kafka.Message{Value: []byte("{not json")})

	require.Error(t, err)
	assert.False(t, started)
	assert.Empty(t, runner.requests)
}

func TestProcessMessageFailedRunIsNotAnError(t *testing.T) {
	runner := &MockRunner{result: models.RunResult{Status: models.RunFailed, Error: "configuration error (MISSING): symbols"}}
	consumer := newTestConsumer(runner)

	started, err := consumer.processMessage(context.Background(), message(t, models.IngestionRequestEvent{
		EventType: models.EventIngestionRequested,
	}))

	require.NoError(t, err, "failed runs are reported through events, not redelivery")
	assert.True(t, started)
}
