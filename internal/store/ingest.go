package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"vargasjr/internal/domain"
)

// Ingest stores an inbound message, creating its inbox and contact when
// they do not exist yet. A message whose external id was already stored
// for the same inbox is returned as is. Everything happens in one
// transaction, so concurrent deliveries of one provider message leave a
// single row.
func (s *SQLiteStore) Ingest(ctx context.Context, in domain.Inbound) (*domain.InboxMessage, error) {
	var msg *domain.InboxMessage
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		msg, err = s.ingest(ctx, tx, in)
		return err
	})
	if err != nil && in.ExternalID != "" && isUniqueViolation(err) {
		return s.messageByExternalID(ctx, s.db, in.InboxName, in.ExternalID)
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *SQLiteStore) ingest(ctx context.Context, tx *sql.Tx, in domain.Inbound) (*domain.InboxMessage, error) {
	inbox, err := inboxByName(ctx, tx, in.InboxName)
	if errors.Is(err, ErrNotFound) {
		if _, kerr := domain.ParseInboxKind(string(in.Kind)); kerr != nil {
			return nil, kerr
		}
		inbox, err = s.createInbox(ctx, tx, domain.Inbox{Name: in.InboxName, Kind: in.Kind})
	}
	if err != nil {
		return nil, fmt.Errorf("ingest: inbox %s: %w", in.InboxName, err)
	}

	if in.ExternalID != "" {
		existing, err := s.messageByExternalID(ctx, tx, in.InboxName, in.ExternalID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	contact, err := s.findOrCreateContact(ctx, tx, in.Contact)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	return s.insertMessage(ctx, tx, domain.InboxMessage{
		InboxID:    inbox.ID,
		ContactID:  contact.ID,
		Body:       in.Body,
		ThreadID:   in.ThreadID,
		ExternalID: in.ExternalID,
		Metadata:   in.Metadata,
	})
}

func (s *SQLiteStore) messageByExternalID(ctx context.Context, q queryer, inboxName, externalID string) (*domain.InboxMessage, error) {
	var id string
	err := q.QueryRowContext(ctx,
		`SELECT m.id FROM inbox_messages m JOIN inboxes i ON i.id = m.inbox_id
		 WHERE i.name = ? AND m.external_id = ?`,
		inboxName, externalID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return getMessage(ctx, q, id)
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
