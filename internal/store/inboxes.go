package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vargasjr/internal/domain"

	"github.com/google/uuid"
)

func (s *SQLiteStore) CreateInbox(ctx context.Context, in domain.Inbox) (*domain.Inbox, error) {
	return s.createInbox(ctx, s.db, in)
}

func (s *SQLiteStore) createInbox(ctx context.Context, q queryer, in domain.Inbox) (*domain.Inbox, error) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = s.now()
	}
	in.CreatedAt = in.CreatedAt.UTC()
	_, err := q.ExecContext(ctx,
		`INSERT INTO inboxes (id, name, display_label, kind, created_at) VALUES (?, ?, ?, ?, ?)`,
		in.ID, in.Name, in.DisplayName, string(in.Kind), fromTime(in.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert inbox %s: %w", in.Name, err)
	}
	return &in, nil
}

func (s *SQLiteStore) GetInbox(ctx context.Context, id string) (*domain.Inbox, error) {
	return scanInbox(s.db.QueryRowContext(ctx,
		`SELECT id, name, display_label, kind, created_at FROM inboxes WHERE id = ?`, id))
}

func (s *SQLiteStore) GetInboxByName(ctx context.Context, name string) (*domain.Inbox, error) {
	return inboxByName(ctx, s.db, name)
}

func inboxByName(ctx context.Context, q queryer, name string) (*domain.Inbox, error) {
	return scanInbox(q.QueryRowContext(ctx,
		`SELECT id, name, display_label, kind, created_at FROM inboxes WHERE name = ?`, name))
}

func (s *SQLiteStore) ListInboxes(ctx context.Context) ([]domain.Inbox, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, display_label, kind, created_at FROM inboxes ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Inbox
	for rows.Next() {
		in, err := scanInbox(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *in)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInbox(row rowScanner) (*domain.Inbox, error) {
	var (
		in      domain.Inbox
		label   sql.NullString
		kind    string
		created int64
	)
	err := row.Scan(&in.ID, &in.Name, &label, &kind, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	in.DisplayName = label.String
	in.Kind = domain.InboxKind(kind)
	in.CreatedAt = toTime(created)
	return &in, nil
}
