package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockRequestPublisher records published ingestion requests
type MockRequestPublisher struct {
	symbols    [][]string
	windowDays []int
	err        error
}

func (m *MockRequestPublisher) PublishRunRequest(ctx context.Context, symbols []string, windowDays int) error {
	if m.err != nil {
		return m.err
	}
	m.symbols = append(m.symbols, symbols)
	m.windowDays = append(m.windowDays, windowDays)
	return nil
}

func TestEnqueueRun(t *testing.T) {
	pub := &MockRequestPublisher{}

	require.NoError(t, enqueueRun(context.Background(), pub, []string{"MSFT"}, 30))
	require.Len(t, pub.symbols, 1)
	assert.Equal(t, []string{"MSFT"}, pub.symbols[0])
	assert.Equal(t, 30, pub.windowDays[0])
}

func TestEnqueueRunDefaultsAreLeftToConsumer(t *testing.T) {
	pub := &MockRequestPublisher{}

	require.NoError(t, enqueueRun(context.Background(), pub, nil, 0))
	require.Len(t, pub.symbols, 1)
	assert.Nil(t, pub.symbols[0])
	assert.Zero(t, pub.windowDays[0])
}

func TestEnqueueRunErrors(t *testing.T) {
	pub := &MockRequestPublisher{}
	assert.Error(t, enqueueRun(context.Background(), pub, nil, -1))
	assert.Empty(t, pub.symbols)

	failing := &MockRequestPublisher{err: errors.New("leader not available")}
	err := enqueueRun(context.Background(), failing, nil, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

func TestEnqueueRequiresBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	rootCmd.SetArgs([]string{"enqueue"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}
