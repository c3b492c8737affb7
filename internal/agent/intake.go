// Package agent runs the message triage state machine: intake, manual
// operations, classification, dispatch and the poll loop around them.
package agent

import (
	"context"
	"errors"
	"log/slog"

	"vargasjr/internal/domain"

	"github.com/google/uuid"
)

// Intake claims messages for processing.
type Intake struct {
	store  domain.MessageStore
	logger *slog.Logger
}

func NewIntake(store domain.MessageStore, logger *slog.Logger) *Intake {
	if logger == nil {
		logger = slog.Default()
	}
	return &Intake{store: store, logger: logger}
}

// ReadNextMessage claims the newest eligible message. When nothing is
// eligible, or the store cannot be reached, it returns the NONE sentinel.
func (in *Intake) ReadNextMessage(ctx context.Context, executionID string) domain.NormalizedMessage {
	claimed, err := in.store.ClaimNextMessage(ctx, executionID)
	return in.normalize(claimed, err, executionID)
}

// ReadMessage claims a specific message, marking it READ again.
func (in *Intake) ReadMessage(ctx context.Context, messageID, executionID string) domain.NormalizedMessage {
	claimed, err := in.store.ClaimMessage(ctx, messageID, executionID)
	return in.normalize(claimed, err, executionID)
}

func (in *Intake) normalize(claimed *domain.ClaimedMessage, err error, executionID string) domain.NormalizedMessage {
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			in.logger.Warn("intake failed, treating as no message", "execution_id", executionID, "err", err)
		}
		return NoMessage()
	}
	m := claimed.Message
	in.logger.Debug("message claimed", "execution_id", executionID, "message_id", m.ID, "inbox_kind", claimed.Inbox.Kind)
	return domain.NormalizedMessage{
		MessageID:        m.ID,
		Body:             m.Body,
		ContactID:        m.ContactID,
		ContactEmail:     claimed.Contact.Email,
		ContactFullName:  claimed.Contact.FullName,
		ContactSlackName: claimed.Contact.SlackDisplayName,
		ContactPhone:     claimed.Contact.PhoneNumber,
		Kind:             claimed.Inbox.Kind,
		InboxName:        claimed.Inbox.Name,
		InboxID:          claimed.Inbox.ID,
		ThreadID:         m.ThreadID,
		Metadata:         m.Metadata,
	}
}

// NoMessage is the sentinel for "nothing to process".
func NoMessage() domain.NormalizedMessage {
	return domain.NormalizedMessage{
		MessageID: uuid.NewString(),
		Body:      domain.NoMessageBody,
		Kind:      domain.KindNone,
	}
}
