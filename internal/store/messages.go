package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vargasjr/internal/domain"

	"github.com/google/uuid"
)

// latestOpExpr yields the latest operation for m.id by timestamp, with
// insertion order breaking ties.
const latestOpExpr = `(
	SELECT o.operation FROM inbox_message_operations o
	WHERE o.inbox_message_id = m.id
	ORDER BY o.created_at DESC, o.id DESC
	LIMIT 1
)`

// InsertMessage stores an inbound message. CreatedAt defaults to now.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg domain.InboxMessage) (*domain.InboxMessage, error) {
	return s.insertMessage(ctx, s.db, msg)
}

func (s *SQLiteStore) insertMessage(ctx context.Context, q queryer, msg domain.InboxMessage) (*domain.InboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	meta, err := encodeMetadata(msg.Metadata)
	if err != nil {
		return nil, err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO inbox_messages (id, inbox_id, contact_id, body, thread_id, external_id, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.InboxID, msg.ContactID, msg.Body,
		nullString(msg.ThreadID), nullString(msg.ExternalID), meta, fromTime(msg.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &msg, nil
}

func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*domain.InboxMessage, error) {
	return getMessage(ctx, s.db, id)
}

func getMessage(ctx context.Context, q queryer, id string) (*domain.InboxMessage, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, inbox_id, contact_id, body, thread_id, external_id, metadata, created_at
		 FROM inbox_messages WHERE id = ?`, id)
	var (
		m                      domain.InboxMessage
		thread, external, meta sql.NullString
		created                int64
	)
	err := row.Scan(&m.ID, &m.InboxID, &m.ContactID, &m.Body, &thread, &external, &meta, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.ThreadID = thread.String
	m.ExternalID = external.String
	m.Metadata = decodeMetadata(meta)
	m.CreatedAt = toTime(created)
	return &m, nil
}

// ClaimNextMessage picks the most recently created message whose latest
// operation is absent or UNREAD, and appends READ for it, all in one
// transaction. Returns ErrNotFound when nothing is eligible.
func (s *SQLiteStore) ClaimNextMessage(ctx context.Context, executionID string) (*domain.ClaimedMessage, error) {
	return s.claim(ctx, executionID, `COALESCE(`+latestOpExpr+`, 'UNREAD') = 'UNREAD'`)
}

// ClaimMessage claims one message by id whatever its current state, so an
// operator can have it processed again.
func (s *SQLiteStore) ClaimMessage(ctx context.Context, messageID, executionID string) (*domain.ClaimedMessage, error) {
	return s.claim(ctx, executionID, `m.id = ?`, messageID)
}

func (s *SQLiteStore) claim(ctx context.Context, executionID, where string, args ...any) (*domain.ClaimedMessage, error) {
	var claimed *domain.ClaimedMessage
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT m.id, m.inbox_id, m.contact_id, m.body, m.thread_id, m.external_id, m.metadata, m.created_at,
			       i.name, i.display_label, i.kind, i.created_at,
			       c.id, c.email, c.phone_number, c.full_name, c.slack_display_name, c.status, c.created_at
			FROM inbox_messages m
			JOIN inboxes i ON i.id = m.inbox_id
			LEFT JOIN contacts c ON c.id = m.contact_id
			WHERE `+where+`
			ORDER BY m.created_at DESC, m.rowid DESC
			LIMIT 1`, args...)

		var (
			cm                                 domain.ClaimedMessage
			thread, external, meta, label      sql.NullString
			cID, cEmail, cPhone, cName, cSlack sql.NullString
			cStatus                            sql.NullString
			msgCreated, inboxCreated           int64
			contactCreated                     sql.NullInt64
			kind                               string
		)
		err := row.Scan(
			&cm.Message.ID, &cm.Message.InboxID, &cm.Message.ContactID, &cm.Message.Body,
			&thread, &external, &meta, &msgCreated,
			&cm.Inbox.Name, &label, &kind, &inboxCreated,
			&cID, &cEmail, &cPhone, &cName, &cSlack, &cStatus, &contactCreated,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("select next message: %w", err)
		}

		cm.Message.ThreadID = thread.String
		cm.Message.ExternalID = external.String
		cm.Message.Metadata = decodeMetadata(meta)
		cm.Message.CreatedAt = toTime(msgCreated)
		cm.Inbox.ID = cm.Message.InboxID
		cm.Inbox.DisplayName = label.String
		cm.Inbox.Kind = domain.InboxKind(kind)
		cm.Inbox.CreatedAt = toTime(inboxCreated)
		cm.Contact = domain.Contact{
			ID:               cm.Message.ContactID,
			Email:            cEmail.String,
			PhoneNumber:      cPhone.String,
			FullName:         cName.String,
			SlackDisplayName: cSlack.String,
			Status:           domain.ContactStatus(cStatus.String),
		}
		if contactCreated.Valid {
			cm.Contact.CreatedAt = toTime(contactCreated.Int64)
		}

		if err := s.appendOperation(ctx, tx, cm.Message.ID, domain.OpRead, executionID, s.stamp()); err != nil {
			return err
		}
		claimed = &cm
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// AppendOperation records op against a message. The message must exist.
func (s *SQLiteStore) AppendOperation(ctx context.Context, messageID string, op domain.OperationType, executionID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM inbox_messages WHERE id = ?`, messageID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		return s.appendOperation(ctx, tx, messageID, op, executionID, s.stamp())
	})
}

func (s *SQLiteStore) appendOperation(ctx context.Context, q queryer, messageID string, op domain.OperationType, executionID string, at int64) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO inbox_message_operations (inbox_message_id, operation, execution_id, created_at)
		 VALUES (?, ?, ?, ?)`,
		messageID, string(op), nullString(executionID), at,
	)
	if err != nil {
		return fmt.Errorf("append %s operation: %w", op, err)
	}
	return nil
}

// LatestOperation returns nil (and no error) when the log is empty.
func (s *SQLiteStore) LatestOperation(ctx context.Context, messageID string) (*domain.InboxMessageOperation, error) {
	ops, err := s.listOperations(ctx, messageID, "DESC", 1)
	if err != nil || len(ops) == 0 {
		return nil, err
	}
	return &ops[0], nil
}

// ListOperations returns the full log for a message, oldest first.
func (s *SQLiteStore) ListOperations(ctx context.Context, messageID string) ([]domain.InboxMessageOperation, error) {
	return s.listOperations(ctx, messageID, "ASC", -1)
}

func (s *SQLiteStore) listOperations(ctx context.Context, messageID, order string, limit int) ([]domain.InboxMessageOperation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, inbox_message_id, operation, execution_id, created_at
		 FROM inbox_message_operations WHERE inbox_message_id = ?
		 ORDER BY created_at `+order+`, id `+order+` LIMIT ?`, messageID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []domain.InboxMessageOperation
	for rows.Next() {
		var (
			op      domain.InboxMessageOperation
			kind    string
			execID  sql.NullString
			created int64
		)
		if err := rows.Scan(&op.ID, &op.MessageID, &kind, &execID, &created); err != nil {
			return nil, err
		}
		op.Operation = domain.OperationType(kind)
		op.ExecutionID = execID.String
		op.CreatedAt = toTime(created)
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// RecentHistory interleaves the contact's inbound messages and the outbox
// messages sent to them, newest first.
func (s *SQLiteStore) RecentHistory(ctx context.Context, contactID string, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT 'inbound', m.body, i.kind, m.created_at
		FROM inbox_messages m JOIN inboxes i ON i.id = m.inbox_id
		WHERE m.contact_id = ?
		UNION ALL
		SELECT 'outbound', o.body, o.kind, o.created_at
		FROM outbox_messages o
		WHERE o.parent_inbox_message_id IN (SELECT id FROM inbox_messages WHERE contact_id = ?)
		   OR o.id IN (SELECT outbox_message_id FROM outbox_message_recipients WHERE contact_id = ?)
		ORDER BY 4 DESC
		LIMIT ?`, contactID, contactID, contactID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.HistoryEntry
	for rows.Next() {
		var (
			e       domain.HistoryEntry
			kind    string
			created int64
		)
		if err := rows.Scan(&e.Direction, &e.Body, &kind, &created); err != nil {
			return nil, err
		}
		e.Kind = domain.InboxKind(kind)
		e.CreatedAt = toTime(created)
		out = append(out, e)
	}
	return out, rows.Err()
}
