// Package audit persists per-request dispatch records so rollout decisions
// can be inspected after the fact. Metrics remain the authoritative side
// channel; the audit trail is diagnostic only.
package audit

import (
	"context"
	"time"
)

// Event types recorded per request.
const (
	EventDecision = "decision"
	EventOutcome  = "outcome"
)

// Record is one persisted dispatch event.
type Record struct {
	ID        int64             `json:"id"`
	RequestID string            `json:"request_id"`
	EventType string            `json:"event_type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Store defines the interface for persisting and retrieving dispatch records.
type Store interface {
	// Append adds a new record to the store.
	Append(ctx context.Context, requestID, eventType string, payload []byte, metadata map[string]string) error

	// GetByRequestID retrieves all records for a specific request.
	GetByRequestID(ctx context.Context, requestID string) ([]Record, error)

	// GetRange retrieves records within a time range.
	GetRange(ctx context.Context, start, end time.Time) ([]Record, error)

	// Close closes the store and releases resources.
	Close() error
}
