package domain

import "context"

// RunEvent is emitted once per router run.
type RunEvent struct {
	ExecutionID string         `json:"execution_id"`
	MessageID   string         `json:"message_id,omitempty"`
	InboxKind   InboxKind      `json:"inbox_kind"`
	Summary     string         `json:"summary"`
	MessageURL  string         `json:"message_url,omitempty"`
	Actions     []ActionRecord `json:"actions"`
}

// EventPublisher ships run events to an external broker.
type EventPublisher interface {
	PublishRun(ctx context.Context, evt RunEvent) error
	Close() error
}
