package models

import "time"

// RunStatus is the terminal state of an ingestion run
type RunStatus string

const (
	RunSucceeded RunStatus = "SUCCEEDED"
	RunFailed    RunStatus = "FAILED"
)

// RunRequest is what a scheduler passes to start one ingestion run
type RunRequest struct {
	Symbols    []string  `json:"symbols"`
	WindowDays int       `json:"window_days"`
	Now        time.Time `json:"now"`
}

// SymbolResult summarises one symbol's contribution to a run
type SymbolResult struct {
	Symbol  string `json:"symbol"`
	Fetched int    `json:"fetched"`
	Kept    int    `json:"kept"`
	Dropped int    `json:"dropped"`
	Error   string `json:"error,omitempty"`
}

// RunResult is returned for every run; it never carries a Go error
type RunResult struct {
	Status         RunStatus      `json:"status"`
	RecordsWritten int            `json:"records_written"`
	Inserted       int            `json:"inserted"`
	Updated        int            `json:"updated"`
	Error          string         `json:"error,omitempty"`
	Symbols        []SymbolResult `json:"symbols,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
}

// Succeeded reports whether the run reached the Succeeded state
func (r RunResult) Succeeded() bool {
	return r.Status == RunSucceeded
}

// Event types published and consumed on Kafka
const (
	EventIngestionRequested = "INGESTION_REQUESTED"
	EventIngestionCompleted = "INGESTION_COMPLETED"
	EventIngestionFailed    = "INGESTION_FAILED"
)

// IngestionEvent is published after a run reaches a terminal state
type IngestionEvent struct {
	EventType string    `json:"event_type"`
	Result    RunResult `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

// IngestionRequestEvent asks the service to start a run. Zero values fall
// back to the configured symbols and window.
type IngestionRequestEvent struct {
	EventType  string    `json:"event_type"`
	Symbols    []string  `json:"symbols,omitempty"`
	WindowDays int       `json:"window_days,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
