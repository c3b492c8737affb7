package action

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"vargasjr/internal/domain"
)

// Fetcher returns the readable text of a web page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// CheckoutRequest describes one payment link.
type CheckoutRequest struct {
	PriceID           string
	Quantity          int
	CustomerEmail     string
	ClientReferenceID string
}

// CheckoutCreator creates hosted payment pages and returns their URL.
type CheckoutCreator interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error)
}

// HistoryReader reads a contact's recent conversation.
type HistoryReader interface {
	RecentHistory(ctx context.Context, contactID string, limit int) ([]domain.HistoryEntry, error)
}

// Deps are the collaborators handlers act through. Nil senders and clients
// are allowed; handlers that need them report a configuration failure.
type Deps struct {
	Email    domain.EmailSender
	SMS      domain.SMSSender
	Chat     domain.ChatPoster
	History  HistoryReader
	Contacts domain.ContactStore
	Jobs     domain.JobStore
	Fetcher  Fetcher
	Checkout CheckoutCreator

	AgentName string
	DemoURL   string
	PriceID   string // default Stripe price
	Timeout   time.Duration
	Logger    *slog.Logger
	Now       func() time.Time
}

type handlerFunc func(ctx context.Context, msg domain.NormalizedMessage, args Args) Result

// Dispatcher runs the handler for one selected action.
type Dispatcher struct {
	deps     Deps
	handlers map[Kind]handlerFunc
	logger   *slog.Logger
}

var errNotConfigured = errors.New("not configured")

func NewDispatcher(deps Deps) *Dispatcher {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 60 * time.Second
	}
	if deps.AgentName == "" {
		deps.AgentName = "Vargas JR"
	}
	d := &Dispatcher{deps: deps, logger: deps.Logger}
	d.handlers = map[Kind]handlerFunc{
		NoAction:               d.noAction,
		GetMessageHistory:      d.getMessageHistory,
		LookupURL:              d.lookupURL,
		EmailReply:             d.emailReply,
		EmailInitiate:          d.emailInitiate,
		TextReply:              d.textReply,
		SlackReply:             d.slackReply,
		JobOpportunityResponse: d.jobOpportunityResponse,
		MarkContactAsLead:      d.markContactAsLead,
		StartDemo:              d.startDemo,
		GenerateStripeCheckout: d.generateStripeCheckout,
		CreateMeeting:          d.createMeeting,
		WhoAreYou:              d.whoAreYou,
		UpdateContact:          d.updateContact,
		StartJob:               d.startJob,
		CompleteJob:            d.completeJob,
		MarkJobAsBlocked:       d.markJobAsBlocked,
		SplitJob:               d.splitJob,
	}
	return d
}

// Dispatch runs the handler for k under the handler timeout. It never
// returns an error: every failure is folded into the Result.
func (d *Dispatcher) Dispatch(ctx context.Context, k Kind, msg domain.NormalizedMessage, args Args) Result {
	h, ok := d.handlers[k]
	if !ok {
		return Failed{Summary: "Error: no handler for action " + string(k) + "."}
	}
	if args == nil {
		args = Args{}
	}
	ctx, cancel := context.WithTimeout(ctx, d.deps.Timeout)
	defer cancel()

	start := time.Now()
	r := h(ctx, msg, args)
	d.logger.Debug("action handled",
		"action", k,
		"message_id", msg.MessageID,
		"result", resultName(r),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return r
}

func (d *Dispatcher) noAction(context.Context, domain.NormalizedMessage, Args) Result {
	return Nothing{}
}

func resultName(r Result) string {
	switch r.(type) {
	case Nothing:
		return "nothing"
	case Delivered:
		return "delivered"
	case Undelivered:
		return "undelivered"
	case Info:
		return "info"
	case Changed:
		return "changed"
	case Failed:
		return "failed"
	}
	return "unknown"
}
