package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"vargasjr/internal/action"
	"vargasjr/internal/domain"
	"vargasjr/internal/prompt"
	"vargasjr/internal/store"
)

var errBoom = errors.New("boom")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "agent.db"), testLogger())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ingest(t *testing.T, s *store.SQLiteStore, in domain.Inbound) *domain.InboxMessage {
	t.Helper()
	m, err := s.Ingest(context.Background(), in)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	return m
}

// scriptedClassifier replays its script; the last entry repeats.
type scriptedClassifier struct {
	mu     sync.Mutex
	script []step
	calls  int
}

type step struct {
	sel domain.Selection
	err error
}

func call(name string, args map[string]any) step {
	return step{sel: domain.Selection{FunctionCall: true, Name: name, Args: args}}
}

func (c *scriptedClassifier) Classify(context.Context, domain.ClassifyRequest) (domain.Selection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := min(c.calls, len(c.script)-1)
	c.calls++
	return c.script[i].sel, c.script[i].err
}

func (c *scriptedClassifier) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
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

type fakeChat struct{ posts []post }

func (f *fakeChat) PostMessage(_ context.Context, channel, text string) error {
	f.posts = append(f.posts, post{channel, text})
	return nil
}

type recordingPublisher struct{ events []domain.RunEvent }

func (p *recordingPublisher) PublishRun(_ context.Context, evt domain.RunEvent) error {
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// dispatchCounter counts dispatches on top of a real dispatcher.
type dispatchCounter struct {
	inner *action.Dispatcher
	n     int
}

func (d *dispatchCounter) Dispatch(ctx context.Context, k action.Kind, msg domain.NormalizedMessage, args action.Args) action.Result {
	d.n++
	return d.inner.Dispatch(ctx, k, msg, args)
}

type harness struct {
	store      *store.SQLiteStore
	classifier *scriptedClassifier
	sms        *fakeSMS
	chat       *fakeChat
	events     *recordingPublisher
	dispatch   *dispatchCounter
	router     *Router
}

func newHarness(t *testing.T, script ...step) *harness {
	t.Helper()
	if len(script) == 0 {
		script = []step{call("no_action", nil)}
	}
	h := &harness{
		store:      openStore(t),
		classifier: &scriptedClassifier{script: script},
		sms:        &fakeSMS{},
		chat:       &fakeChat{},
		events:     &recordingPublisher{},
	}
	prompts, err := prompt.Load("")
	if err != nil {
		t.Fatalf("prompt.Load: %v", err)
	}
	h.dispatch = &dispatchCounter{inner: action.NewDispatcher(action.Deps{
		SMS:      h.sms,
		Chat:     h.chat,
		History:  h.store,
		Contacts: h.store,
		Jobs:     h.store,
		Logger:   testLogger(),
	})}
	h.router = NewRouter(RouterConfig{
		Store:      h.store,
		Outbox:     h.store,
		Classifier: h.classifier,
		Dispatcher: h.dispatch,
		Prompts:    prompts,
		Events:     h.events,
		AgentName:  "Vargas JR",
		MaxRetries: 2,
		Logger:     testLogger(),
	})
	return h
}

func (h *harness) latestOp(t *testing.T, messageID string) domain.OperationType {
	t.Helper()
	op, err := h.store.LatestOperation(context.Background(), messageID)
	if err != nil {
		t.Fatalf("LatestOperation: %v", err)
	}
	if op == nil {
		return ""
	}
	return op.Operation
}

func (h *harness) outboxCount(t *testing.T, messageID string) int {
	t.Helper()
	out, err := h.store.ListOutbox(context.Background(), messageID)
	if err != nil {
		t.Fatalf("ListOutbox: %v", err)
	}
	return len(out)
}
