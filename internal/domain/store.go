package domain

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSessionActive is returned when a job already has an open work session.
	ErrSessionActive = errors.New("job already has an active session")
)

// ClaimedMessage is a message picked by intake together with its inbox and contact.
type ClaimedMessage struct {
	Message InboxMessage
	Inbox   Inbox
	Contact Contact
}

// MessageStore is the durable inbox record plus its operation log.
type MessageStore interface {
	// ClaimNextMessage selects the newest eligible message and appends a READ
	// operation for it in the same transaction.
	ClaimNextMessage(ctx context.Context, executionID string) (*ClaimedMessage, error)
	// ClaimMessage does the same for one message regardless of its state.
	ClaimMessage(ctx context.Context, messageID, executionID string) (*ClaimedMessage, error)
	AppendOperation(ctx context.Context, messageID string, op OperationType, executionID string) error
	LatestOperation(ctx context.Context, messageID string) (*InboxMessageOperation, error)
	GetMessage(ctx context.Context, id string) (*InboxMessage, error)
	GetInbox(ctx context.Context, id string) (*Inbox, error)
	RecentHistory(ctx context.Context, contactID string, limit int) ([]HistoryEntry, error)
}

// OutboxStore persists messages sent by the agent.
type OutboxStore interface {
	SaveOutbox(ctx context.Context, msg OutboxMessage, recipients []OutboxRecipient) error
}

// ContactStore reads and mutates contacts.
type ContactStore interface {
	GetContact(ctx context.Context, id string) (*Contact, error)
	UpdateContact(ctx context.Context, c Contact) error
	FindOrCreateContact(ctx context.Context, match Contact) (*Contact, error)
}

// JobStore backs jobs and their work sessions.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) (*Job, error)
	GetJob(ctx context.Context, id string) (*Job, error)
	ListChildJobs(ctx context.Context, parentID string) ([]Job, error)
	UpdateJobStatus(ctx context.Context, id string, status JobStatus, reason string) error
	OpenSession(ctx context.Context, jobID string) (*JobSession, error)
	ActiveSession(ctx context.Context, jobID string) (*JobSession, error)
	CloseSession(ctx context.Context, sessionID string) error
}
