package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vargasjr/internal/domain"

	"github.com/google/uuid"
)

const jobColumns = `id, name, description, status, priority, contact_id, parent_job_id, due_at, blocked_reason, created_at`

func (s *SQLiteStore) CreateJob(ctx context.Context, job domain.Job) (*domain.Job, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = domain.JobOpen
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.now()
	}
	job.CreatedAt = job.CreatedAt.UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Name, job.Description, string(job.Status), job.Priority,
		nullString(job.ContactID), nullString(job.ParentJobID), nullTime(job.DueAt),
		job.BlockedReason, fromTime(job.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return &job, nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	return scanJob(s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
}

func (s *SQLiteStore) ListChildJobs(ctx context.Context, parentID string) ([]domain.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE parent_job_id = ? ORDER BY created_at, rowid`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateJobStatus(ctx context.Context, id string, status domain.JobStatus, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, blocked_reason = ? WHERE id = ?`, string(status), reason, id)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return nil
}

// OpenSession starts a work session. At most one session per job may be
// open; a second call fails with domain.ErrSessionActive.
func (s *SQLiteStore) OpenSession(ctx context.Context, jobID string) (*domain.JobSession, error) {
	sess := domain.JobSession{ID: uuid.NewString(), JobID: jobID}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var open int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM job_sessions WHERE job_id = ? AND end_at IS NULL`, jobID,
		).Scan(&open); err != nil {
			return err
		}
		if open > 0 {
			return domain.ErrSessionActive
		}
		start := s.stamp()
		sess.StartAt = toTime(start)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO job_sessions (id, job_id, start_at) VALUES (?, ?, ?)`, sess.ID, jobID, start)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// ActiveSession returns ErrNotFound when no session is open.
func (s *SQLiteStore) ActiveSession(ctx context.Context, jobID string) (*domain.JobSession, error) {
	var (
		sess  domain.JobSession
		start int64
		end   sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, job_id, start_at, end_at FROM job_sessions
		 WHERE job_id = ? AND end_at IS NULL ORDER BY start_at DESC LIMIT 1`, jobID,
	).Scan(&sess.ID, &sess.JobID, &start, &end)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sess.StartAt = toTime(start)
	sess.EndAt = timePtr(end)
	return &sess, nil
}

func (s *SQLiteStore) CloseSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE job_sessions SET end_at = ? WHERE id = ? AND end_at IS NULL`, s.stamp(), sessionID)
	if err != nil {
		return fmt.Errorf("close session %s: %w", sessionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("open session %s: %w", sessionID, ErrNotFound)
	}
	return nil
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		j                          domain.Job
		desc, contact, parent, why sql.NullString
		status                     string
		due                        sql.NullInt64
		created                    int64
	)
	err := row.Scan(&j.ID, &j.Name, &desc, &status, &j.Priority, &contact, &parent, &due, &why, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	j.Description = desc.String
	j.Status = domain.JobStatus(status)
	j.ContactID = contact.String
	j.ParentJobID = parent.String
	j.DueAt = timePtr(due)
	j.BlockedReason = why.String
	j.CreatedAt = toTime(created)
	return &j, nil
}
