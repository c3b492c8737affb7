package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vargasjr/internal/action"
	"vargasjr/internal/domain"
	"vargasjr/internal/metrics"
	"vargasjr/internal/prompt"

	"github.com/google/uuid"
)

const (
	defaultMaxRetries = 2
	promptHistory     = 5
)

// ClassifierFailedSummary ends a run whose classifier never selected a
// usable action.
const ClassifierFailedSummary = "Error: classifier did not select an action."

// Request triggers one router run. MessageID selects a specific message;
// otherwise the newest eligible one is claimed.
//
// Any non-empty Operation takes the manual path and skips intake and
// classification. UNREAD and ARCHIVED (in any case) are applied to
// MessageID; every other value ends the run with an unknown operation
// summary, leaves the operation log untouched and claims nothing.
type Request struct {
	ExecutionID string               `json:"execution_id,omitempty"`
	MessageID   string               `json:"message_id,omitempty"`
	Operation   domain.OperationType `json:"operation,omitempty"`
	Variant     action.Variant       `json:"variant,omitempty"`
}

// RunOutput is the terminal result of a run.
type RunOutput struct {
	ExecutionID string                `json:"execution_id"`
	Summary     string                `json:"summary"`
	MessageURL  string                `json:"message_url,omitempty"`
	Actions     []domain.ActionRecord `json:"actions"`
}

// Dispatcher runs one selected action.
type Dispatcher interface {
	Dispatch(ctx context.Context, k action.Kind, msg domain.NormalizedMessage, args action.Args) action.Result
}

// RouterConfig wires the router. Events and Limiter are optional.
type RouterConfig struct {
	Store      domain.MessageStore
	Outbox     domain.OutboxStore
	Classifier domain.Classifier
	Dispatcher Dispatcher
	Prompts    *prompt.Set
	Events     domain.EventPublisher
	Limiter    *RateLimiter
	AgentName  string
	MaxRetries int
	Logger     *slog.Logger
}

// Router drives one message from intake to a single terminal state.
type Router struct {
	store      domain.MessageStore
	intake     *Intake
	manual     *Manual
	outbox     domain.OutboxStore
	classifier domain.Classifier
	dispatcher Dispatcher
	prompts    *prompt.Set
	events     domain.EventPublisher
	limiter    *RateLimiter
	agentName  string
	maxRetries int
	logger     *slog.Logger
}

func NewRouter(cfg RouterConfig) *Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	return &Router{
		store:      cfg.Store,
		intake:     NewIntake(cfg.Store, cfg.Logger),
		manual:     NewManual(cfg.Store, cfg.Logger),
		outbox:     cfg.Outbox,
		classifier: cfg.Classifier,
		dispatcher: cfg.Dispatcher,
		prompts:    cfg.Prompts,
		events:     cfg.Events,
		limiter:    cfg.Limiter,
		agentName:  cfg.AgentName,
		maxRetries: cfg.MaxRetries,
		logger:     cfg.Logger,
	}
}

// Run executes the state machine once. It always returns a summary;
// failures are reported in it rather than as errors.
func (r *Router) Run(ctx context.Context, req Request) RunOutput {
	if req.ExecutionID == "" {
		req.ExecutionID = uuid.NewString()
	}
	metrics.RunsTotal.Inc()
	defer metrics.LastRunUnix.SetToCurrentTime()

	if req.Operation != "" {
		return r.finish(ctx, req, domain.NormalizedMessage{MessageID: req.MessageID}, r.runManual(ctx, req))
	}

	variant, err := action.ParseVariant(string(req.Variant))
	if err != nil {
		return r.finish(ctx, req, domain.NormalizedMessage{}, RunOutput{Summary: "Error: " + err.Error() + "."})
	}

	var msg domain.NormalizedMessage
	if req.MessageID != "" {
		msg = r.intake.ReadMessage(ctx, req.MessageID, req.ExecutionID)
	} else {
		msg = r.intake.ReadNextMessage(ctx, req.ExecutionID)
	}
	if msg.IsNone() {
		metrics.NoMessageRuns.Inc()
		return r.finish(ctx, req, msg, RunOutput{Summary: action.NoActionSummary})
	}

	out := RunOutput{MessageURL: domain.AdminURL(msg.InboxID, msg.MessageID)}
	kind, args, ok := r.classify(ctx, req, variant, msg)
	if !ok {
		out.Summary = ClassifierFailedSummary
		return r.finish(ctx, req, msg, out)
	}

	start := time.Now()
	outcome := action.Converge(r.dispatcher.Dispatch(ctx, kind, msg, args))
	metrics.ActionLatency(string(kind)).Observe(time.Since(start).Seconds())
	metrics.ActionTotal(string(kind)).Inc()
	if outcome.Failed {
		metrics.ActionFailures(string(kind)).Inc()
	}

	out.Summary = outcome.Summary
	if outcome.Outbox != nil {
		if err := r.outbox.SaveOutbox(ctx, *outcome.Outbox, outcome.Recipients); err != nil {
			r.logger.Error("outbox not recorded", "execution_id", req.ExecutionID, "message_id", msg.MessageID, "err", err)
			out.Summary += " Error: failed to record outbox message."
		} else {
			metrics.OutboxSaved.Inc()
		}
	}
	out.Actions = append(out.Actions, domain.ActionRecord{Name: string(kind), Args: args, Result: outcome.Summary})
	return r.finish(ctx, req, msg, out)
}

func (r *Router) runManual(ctx context.Context, req Request) RunOutput {
	op, err := ParseOperation(string(req.Operation))
	if err != nil {
		return RunOutput{Summary: "Error: " + err.Error() + "."}
	}
	res := r.manual.Apply(ctx, req.MessageID, op, req.ExecutionID)
	out := RunOutput{Summary: res.Message}
	if res.Success {
		if m, err := r.store.GetMessage(ctx, req.MessageID); err == nil {
			out.MessageURL = domain.AdminURL(m.InboxID, m.ID)
		}
	}
	return out
}

// classify asks for an action up to 1+maxRetries times. A selection counts
// only when it is a function call naming an action in the variant's catalog.
func (r *Router) classify(ctx context.Context, req Request, variant action.Variant, msg domain.NormalizedMessage) (action.Kind, action.Args, bool) {
	system, user, err := r.renderPrompt(ctx, variant, msg)
	if err != nil {
		r.logger.Error("prompt render failed", "execution_id", req.ExecutionID, "variant", variant, "err", err)
		return "", nil, false
	}
	creq := domain.ClassifyRequest{System: system, User: user, Catalog: action.Catalog(variant)}

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.ClassifyRetry.Inc()
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return "", nil, false
			}
		}
		start := time.Now()
		sel, err := r.classifier.Classify(ctx, creq)
		metrics.ClassifyLatency.Observe(time.Since(start).Seconds())

		log := r.logger.With("execution_id", req.ExecutionID, "message_id", msg.MessageID, "attempt", attempt+1)
		switch {
		case err != nil:
			log.Warn("classifier failed", "err", err)
			continue
		case !sel.FunctionCall:
			log.Warn("classifier returned no function call", "raw", truncate(sel.Raw, 200))
			continue
		}
		kind, known := action.ParseKind(sel.Name)
		if !known || !variant.Allows(kind) {
			log.Warn("classifier selected an action outside the catalog", "action", sel.Name, "variant", variant)
			continue
		}
		log.Info("action selected", "action", kind, "inbox_kind", msg.Kind)
		return kind, action.Args(sel.Args), true
	}
	return "", nil, false
}

func (r *Router) renderPrompt(ctx context.Context, variant action.Variant, msg domain.NormalizedMessage) (string, string, error) {
	var history []domain.HistoryEntry
	if msg.ContactID != "" {
		h, err := r.store.RecentHistory(ctx, msg.ContactID, promptHistory+1)
		if err != nil {
			r.logger.Debug("history unavailable for prompt", "message_id", msg.MessageID, "err", err)
		}
		history = withoutCurrent(h, msg)
	}
	return r.prompts.Render(string(variant), prompt.Data{
		AgentName: r.agentName,
		Contact:   msg.Contact().Identifier(),
		Kind:      msg.Kind,
		InboxName: msg.InboxName,
		Body:      msg.Body,
		History:   history,
	})
}

// withoutCurrent drops the message being classified from its own history.
func withoutCurrent(h []domain.HistoryEntry, msg domain.NormalizedMessage) []domain.HistoryEntry {
	out := make([]domain.HistoryEntry, 0, len(h))
	skipped := false
	for _, e := range h {
		if !skipped && e.Direction == "inbound" && e.Body == msg.Body {
			skipped = true
			continue
		}
		out = append(out, e)
	}
	if len(out) > promptHistory {
		out = out[:promptHistory]
	}
	return out
}

// finish stamps the execution id, logs the run and publishes its event.
func (r *Router) finish(ctx context.Context, req Request, msg domain.NormalizedMessage, out RunOutput) RunOutput {
	out.ExecutionID = req.ExecutionID
	if out.Actions == nil {
		out.Actions = []domain.ActionRecord{}
	}
	r.logger.Info("run finished",
		"execution_id", out.ExecutionID,
		"message_id", msg.MessageID,
		"inbox_kind", msg.Kind,
		"summary", truncate(out.Summary, 200),
	)
	if r.events != nil {
		evt := domain.RunEvent{
			ExecutionID: out.ExecutionID,
			MessageID:   msg.MessageID,
			InboxKind:   msg.Kind,
			Summary:     out.Summary,
			MessageURL:  out.MessageURL,
			Actions:     out.Actions,
		}
		if err := r.events.PublishRun(ctx, evt); err != nil {
			r.logger.Warn("run event not published", "execution_id", out.ExecutionID, "err", err)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s... (%d bytes)", s[:n], len(s))
}
