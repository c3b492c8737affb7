package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vargasjr/internal/domain"

	"github.com/google/uuid"
)

const contactColumns = `id, email, phone_number, full_name, slack_display_name, status, created_at`

func (s *SQLiteStore) CreateContact(ctx context.Context, c domain.Contact) (*domain.Contact, error) {
	return s.createContact(ctx, s.db, c)
}

func (s *SQLiteStore) createContact(ctx context.Context, q queryer, c domain.Contact) (*domain.Contact, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = domain.ContactInbound
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	c.CreatedAt = c.CreatedAt.UTC()
	_, err := q.ExecContext(ctx,
		`INSERT INTO contacts (`+contactColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, nullString(c.Email), nullString(c.PhoneNumber), nullString(c.FullName),
		nullString(c.SlackDisplayName), string(c.Status), fromTime(c.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
	}
	return &c, nil
}

func (s *SQLiteStore) GetContact(ctx context.Context, id string) (*domain.Contact, error) {
	return scanContact(s.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id))
}

// UpdateContact overwrites every mutable field of an existing contact.
func (s *SQLiteStore) UpdateContact(ctx context.Context, c domain.Contact) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET email=?, phone_number=?, full_name=?, slack_display_name=?, status=? WHERE id=?`,
		nullString(c.Email), nullString(c.PhoneNumber), nullString(c.FullName),
		nullString(c.SlackDisplayName), string(c.Status), c.ID,
	)
	if err != nil {
		return fmt.Errorf("update contact %s: %w", c.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("contact %s: %w", c.ID, ErrNotFound)
	}
	return nil
}

// FindOrCreateContact looks a contact up by the first non-empty of email,
// phone number or Slack display name, creating it from match when absent.
// The lookup and the insert share one transaction.
func (s *SQLiteStore) FindOrCreateContact(ctx context.Context, match domain.Contact) (*domain.Contact, error) {
	var c *domain.Contact
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		c, err = s.findOrCreateContact(ctx, tx, match)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *SQLiteStore) findOrCreateContact(ctx context.Context, q queryer, match domain.Contact) (*domain.Contact, error) {
	var column, value string
	switch {
	case match.Email != "":
		column, value = "email", match.Email
	case match.PhoneNumber != "":
		column, value = "phone_number", match.PhoneNumber
	case match.SlackDisplayName != "":
		column, value = "slack_display_name", match.SlackDisplayName
	default:
		return nil, fmt.Errorf("find contact: no email, phone number or slack name given")
	}

	c, err := scanContact(q.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE `+column+` = ? ORDER BY created_at LIMIT 1`, value))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return s.createContact(ctx, q, match)
}

func scanContact(row rowScanner) (*domain.Contact, error) {
	var (
		c                         domain.Contact
		email, phone, name, slack sql.NullString
		status                    string
		created                   int64
	)
	err := row.Scan(&c.ID, &email, &phone, &name, &slack, &status, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Email = email.String
	c.PhoneNumber = phone.String
	c.FullName = name.String
	c.SlackDisplayName = slack.String
	c.Status = domain.ContactStatus(status)
	c.CreatedAt = toTime(created)
	return &c, nil
}
