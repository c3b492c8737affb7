package store

import (
	"context"
	"database/sql"
	"fmt"

	"vargasjr/internal/domain"

	"github.com/google/uuid"
)

// SaveOutbox persists an outbound message and its recipients together.
func (s *SQLiteStore) SaveOutbox(ctx context.Context, msg domain.OutboxMessage, recipients []domain.OutboxRecipient) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	created := s.stamp()
	if !msg.CreatedAt.IsZero() {
		created = fromTime(msg.CreatedAt)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO outbox_messages (id, parent_inbox_message_id, body, kind, thread_id, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			msg.ID, nullString(msg.ParentMessageID), msg.Body, string(msg.Kind), nullString(msg.ThreadID), created,
		)
		if err != nil {
			return fmt.Errorf("insert outbox message: %w", err)
		}
		for _, r := range recipients {
			role := r.Role
			if role == "" {
				role = domain.RoleTo
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO outbox_message_recipients (outbox_message_id, contact_id, role) VALUES (?, ?, ?)`,
				msg.ID, r.ContactID, string(role),
			); err != nil {
				return fmt.Errorf("insert outbox recipient: %w", err)
			}
		}
		return nil
	})
}

// ListOutbox returns the replies sent for an inbound message, oldest first.
func (s *SQLiteStore) ListOutbox(ctx context.Context, parentMessageID string) ([]domain.OutboxMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, parent_inbox_message_id, body, kind, thread_id, created_at
		 FROM outbox_messages WHERE parent_inbox_message_id = ?
		 ORDER BY created_at`, parentMessageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OutboxMessage
	for rows.Next() {
		var (
			m              domain.OutboxMessage
			parent, thread sql.NullString
			kind           string
			created        int64
		)
		if err := rows.Scan(&m.ID, &parent, &m.Body, &kind, &thread, &created); err != nil {
			return nil, err
		}
		m.ParentMessageID = parent.String
		m.Kind = domain.InboxKind(kind)
		m.ThreadID = thread.String
		m.CreatedAt = toTime(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListRecipients returns the recipients of one outbox message.
func (s *SQLiteStore) ListRecipients(ctx context.Context, outboxID string) ([]domain.OutboxRecipient, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT outbox_message_id, contact_id, role FROM outbox_message_recipients
		 WHERE outbox_message_id = ? ORDER BY id`, outboxID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OutboxRecipient
	for rows.Next() {
		var (
			r    domain.OutboxRecipient
			role string
		)
		if err := rows.Scan(&r.OutboxMessageID, &r.ContactID, &role); err != nil {
			return nil, err
		}
		r.Role = domain.RecipientRole(role)
		out = append(out, r)
	}
	return out, rows.Err()
}
