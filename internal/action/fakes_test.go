package action

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"vargasjr/internal/domain"
)

type fakeEmail struct {
	sent []domain.Email
	err  error
}

func (f *fakeEmail) SendEmail(_ context.Context, e domain.Email) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, e)
	return nil
}

type sms struct{ to, from, body string }

type fakeSMS struct {
	sent []sms
	err  error
}

func (f *fakeSMS) SendSMS(_ context.Context, to, from, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sms{to, from, body})
	return nil
}

type post struct{ channel, text string }

type fakeChat struct {
	posts []post
	err   error
}

func (f *fakeChat) PostMessage(_ context.Context, channel, text string) error {
	if f.err != nil {
		return f.err
	}
	f.posts = append(f.posts, post{channel, text})
	return nil
}

type fakeContacts struct {
	byID    map[string]*domain.Contact
	created int
}

func newFakeContacts(cs ...domain.Contact) *fakeContacts {
	f := &fakeContacts{byID: map[string]*domain.Contact{}}
	for i := range cs {
		c := cs[i]
		f.byID[c.ID] = &c
	}
	return f
}

func (f *fakeContacts) GetContact(_ context.Context, id string) (*domain.Contact, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeContacts) UpdateContact(_ context.Context, c domain.Contact) error {
	if _, ok := f.byID[c.ID]; !ok {
		return domain.ErrNotFound
	}
	f.byID[c.ID] = &c
	return nil
}

func (f *fakeContacts) FindOrCreateContact(_ context.Context, match domain.Contact) (*domain.Contact, error) {
	for _, c := range f.byID {
		if (match.Email != "" && c.Email == match.Email) ||
			(match.PhoneNumber != "" && c.PhoneNumber == match.PhoneNumber) ||
			(match.SlackDisplayName != "" && c.SlackDisplayName == match.SlackDisplayName) {
			cp := *c
			return &cp, nil
		}
	}
	f.created++
	match.ID = fmt.Sprintf("created-%d", f.created)
	f.byID[match.ID] = &match
	return &match, nil
}

type fakeJobs struct {
	jobs     map[string]*domain.Job
	sessions  []domain.JobSession
	nextID    int
	updateErr error
}

func newFakeJobs(js ...domain.Job) *fakeJobs {
	f := &fakeJobs{jobs: map[string]*domain.Job{}}
	for i := range js {
		j := js[i]
		if j.Status == "" {
			j.Status = domain.JobOpen
		}
		f.jobs[j.ID] = &j
	}
	return f
}

func (f *fakeJobs) CreateJob(_ context.Context, j domain.Job) (*domain.Job, error) {
	f.nextID++
	if j.ID == "" {
		j.ID = fmt.Sprintf("job-%d", f.nextID)
	}
	if j.Status == "" {
		j.Status = domain.JobOpen
	}
	f.jobs[j.ID] = &j
	return &j, nil
}

func (f *fakeJobs) GetJob(_ context.Context, id string) (*domain.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (f *fakeJobs) ListChildJobs(_ context.Context, parentID string) ([]domain.Job, error) {
	var out []domain.Job
	for _, j := range f.jobs {
		if j.ParentJobID == parentID {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (f *fakeJobs) UpdateJobStatus(_ context.Context, id string, status domain.JobStatus, reason string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	j, ok := f.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Status = status
	j.BlockedReason = reason
	return nil
}

func (f *fakeJobs) OpenSession(_ context.Context, jobID string) (*domain.JobSession, error) {
	for _, s := range f.sessions {
		if s.JobID == jobID && s.Active() {
			return nil, domain.ErrSessionActive
		}
	}
	s := domain.JobSession{ID: fmt.Sprintf("session-%d", len(f.sessions)+1), JobID: jobID, StartAt: time.Now()}
	f.sessions = append(f.sessions, s)
	return &s, nil
}

func (f *fakeJobs) ActiveSession(_ context.Context, jobID string) (*domain.JobSession, error) {
	for _, s := range f.sessions {
		if s.JobID == jobID && s.Active() {
			cp := s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeJobs) CloseSession(_ context.Context, id string) error {
	for i := range f.sessions {
		if f.sessions[i].ID == id && f.sessions[i].Active() {
			now := time.Now()
			f.sessions[i].EndAt = &now
			return nil
		}
	}
	return domain.ErrNotFound
}

type fakeHistory struct {
	entries []domain.HistoryEntry
	limit   int
}

func (f *fakeHistory) RecentHistory(_ context.Context, _ string, limit int) ([]domain.HistoryEntry, error) {
	f.limit = limit
	return f.entries, nil
}

type fakeFetcher struct {
	text string
	err  error
	urls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.urls = append(f.urls, url)
	return f.text, f.err
}

type fakeCheckout struct {
	reqs []CheckoutRequest
	err  error
}

func (f *fakeCheckout) CreateCheckout(_ context.Context, req CheckoutRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.reqs = append(f.reqs, req)
	return "https://checkout.stripe.com/c/pay/cs_test_1", nil
}

var errBoom = errors.New("boom")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
