package action

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vargasjr/internal/domain"
)

func (d *Dispatcher) createMeeting(ctx context.Context, msg domain.NormalizedMessage, args Args) Result {
	if d.deps.Jobs == nil {
		return Failed{Summary: "Failed to schedule meeting: job store " + errNotConfigured.Error() + ".", Err: errNotConfigured}
	}
	title := args.String("title")
	if title == "" {
		return Failed{Summary: "Failed to schedule meeting: no title given."}
	}
	start, err := time.Parse(time.RFC3339, args.String("start_time"))
	if err != nil {
		return Failed{Summary: fmt.Sprintf("Failed to schedule meeting: invalid start time %q.", args.String("start_time")), Err: err}
	}
	start = start.UTC()

	_, err = d.deps.Jobs.CreateJob(ctx, domain.Job{
		Name:        "Meeting: " + title,
		Description: args.String("description"),
		ContactID:   msg.ContactID,
		DueAt:       &start,
	})
	if err != nil {
		return Failed{Summary: fmt.Sprintf("Failed to schedule meeting: %v", err), Err: err}
	}
	return Changed{Summary: fmt.Sprintf("Scheduled meeting %q with %s at %s.",
		title, msg.Contact().Identifier(), start.Format(time.RFC3339))}
}

func (d *Dispatcher) startJob(ctx context.Context, _ domain.NormalizedMessage, args Args) Result {
	job, res := d.loadJob(ctx, args)
	if res != nil {
		return res
	}
	if job.Status == domain.JobCompleted {
		return Failed{Summary: fmt.Sprintf("Job %q is already completed.", job.Name)}
	}
	sess, err := d.deps.Jobs.OpenSession(ctx, job.ID)
	if errors.Is(err, domain.ErrSessionActive) {
		return Failed{Summary: fmt.Sprintf("Job %q already has an active session.", job.Name), Err: err}
	}
	if err != nil {
		return Failed{Summary: fmt.Sprintf("Failed to start job %q: %v", job.Name, err), Err: err}
	}
	if job.Status == domain.JobBlocked {
		if err := d.deps.Jobs.UpdateJobStatus(ctx, job.ID, domain.JobOpen, ""); err != nil {
			// the job stays blocked, so the session must not stay open
			if cerr := d.deps.Jobs.CloseSession(ctx, sess.ID); cerr != nil {
				d.logger.Error("close session after failed reopen", "job_id", job.ID, "session_id", sess.ID, "err", cerr)
			}
			return Failed{Summary: fmt.Sprintf("Failed to reopen job %q: %v", job.Name, err), Err: err}
		}
	}
	return Changed{Summary: fmt.Sprintf("Started job %q.", job.Name)}
}

func (d *Dispatcher) completeJob(ctx context.Context, _ domain.NormalizedMessage, args Args) Result {
	job, res := d.loadJob(ctx, args)
	if res != nil {
		return res
	}
	if job.Status == domain.JobCompleted {
		return Changed{Summary: fmt.Sprintf("Job %q is already completed.", job.Name)}
	}
	if err := d.closeActiveSession(ctx, job.ID); err != nil {
		return Failed{Summary: fmt.Sprintf("Failed to complete job %q: %v", job.Name, err), Err: err}
	}
	if err := d.deps.Jobs.UpdateJobStatus(ctx, job.ID, domain.JobCompleted, ""); err != nil {
		return Failed{Summary: fmt.Sprintf("Failed to complete job %q: %v", job.Name, err), Err: err}
	}
	return Changed{Summary: fmt.Sprintf("Completed job %q.", job.Name)}
}

func (d *Dispatcher) markJobAsBlocked(ctx context.Context, _ domain.NormalizedMessage, args Args) Result {
	job, res := d.loadJob(ctx, args)
	if res != nil {
		return res
	}
	reason := args.String("reason")
	if reason == "" {
		return Failed{Summary: fmt.Sprintf("Failed to block job %q: no reason given.", job.Name)}
	}
	if err := d.closeActiveSession(ctx, job.ID); err != nil {
		return Failed{Summary: fmt.Sprintf("Failed to block job %q: %v", job.Name, err), Err: err}
	}
	if err := d.deps.Jobs.UpdateJobStatus(ctx, job.ID, domain.JobBlocked, reason); err != nil {
		return Failed{Summary: fmt.Sprintf("Failed to block job %q: %v", job.Name, err), Err: err}
	}
	return Changed{Summary: fmt.Sprintf("Marked job %q as blocked: %s", job.Name, reason)}
}

func (d *Dispatcher) splitJob(ctx context.Context, _ domain.NormalizedMessage, args Args) Result {
	job, res := d.loadJob(ctx, args)
	if res != nil {
		return res
	}
	subtasks := args.Strings("subtasks")
	if len(subtasks) == 0 {
		return Failed{Summary: fmt.Sprintf("Failed to split job %q: no subtasks given.", job.Name)}
	}
	for i, name := range subtasks {
		_, err := d.deps.Jobs.CreateJob(ctx, domain.Job{
			Name:        name,
			ContactID:   job.ContactID,
			ParentJobID: job.ID,
			Priority:    job.Priority,
		})
		if err != nil {
			return Failed{Summary: fmt.Sprintf("Failed to split job %q after %d of %d subtasks: %v",
				job.Name, i, len(subtasks), err), Err: err}
		}
	}
	return Changed{Summary: fmt.Sprintf("Split job %q into %d subtasks: %s.",
		job.Name, len(subtasks), strings.Join(subtasks, ", "))}
}

func (d *Dispatcher) loadJob(ctx context.Context, args Args) (*domain.Job, Result) {
	if d.deps.Jobs == nil {
		return nil, Failed{Summary: "Failed to load job: job store " + errNotConfigured.Error() + ".", Err: errNotConfigured}
	}
	id := args.String("job_id")
	if id == "" {
		return nil, Failed{Summary: "Failed to load job: no job_id given."}
	}
	job, err := d.deps.Jobs.GetJob(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, Failed{Summary: fmt.Sprintf("Job %s not found.", id), Err: err}
	}
	if err != nil {
		return nil, Failed{Summary: fmt.Sprintf("Failed to load job %s: %v", id, err), Err: err}
	}
	return job, nil
}

// closeActiveSession ends the job's open session if there is one.
func (d *Dispatcher) closeActiveSession(ctx context.Context, jobID string) error {
	s, err := d.deps.Jobs.ActiveSession(ctx, jobID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return d.deps.Jobs.CloseSession(ctx, s.ID)
}
