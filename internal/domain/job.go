package domain

import "time"

type JobStatus string

const (
	JobOpen      JobStatus = "OPEN"
	JobBlocked   JobStatus = "BLOCKED"
	JobCompleted JobStatus = "COMPLETED"
)

type Job struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	Status        JobStatus  `json:"status"`
	Priority      int        `json:"priority"`
	ContactID     string     `json:"contact_id,omitempty"`
	ParentJobID   string     `json:"parent_job_id,omitempty"`
	DueAt         *time.Time `json:"due_at,omitempty"`
	BlockedReason string     `json:"blocked_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// JobSession marks one period of work on a job. EndAt is nil while open.
type JobSession struct {
	ID      string     `json:"id"`
	JobID   string     `json:"job_id"`
	StartAt time.Time  `json:"start_at"`
	EndAt   *time.Time `json:"end_at,omitempty"`
}

func (s JobSession) Active() bool { return s.EndAt == nil }
