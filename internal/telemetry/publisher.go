// Package telemetry publishes per-request dispatch events to NATS so rollout
// tooling can observe routing decisions off-process. Publishing is best
// effort: a failed publish never alters a compilation outcome.
package telemetry

import (
	"context"
	"time"

	"git.home.luguber.info/inful/graphbridge/internal/analyzer"
	"git.home.luguber.info/inful/graphbridge/internal/backend"
)

// DispatchEvent is the JSON payload published per dispatched request.
type DispatchEvent struct {
	RequestID  string                   `json:"request_id"`
	DeviceType string                   `json:"device_type"`
	Mode       analyzer.Mode            `json:"mode"`
	Executor   string                   `json:"executor"`
	DecisionOK bool                     `json:"decision_ok"`
	Flagged    []backend.ConstructIssue `json:"flagged,omitempty"`
	Succeeded  bool                     `json:"succeeded"`
	Error      string                   `json:"error,omitempty"`
	Timestamp  time.Time                `json:"timestamp"`
}

// Publisher emits dispatch events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	PublishDispatch(ctx context.Context, event *DispatchEvent) error
	Close() error
}

// NoopPublisher is a Publisher that does nothing (default when telemetry is
// not configured).
type NoopPublisher struct{}

func (NoopPublisher) PublishDispatch(context.Context, *DispatchEvent) error { return nil }
func (NoopPublisher) Close() error { return nil }
