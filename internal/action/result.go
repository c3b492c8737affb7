package action

import (
	"fmt"

	"vargasjr/internal/domain"
)

// Result is what a handler produces. Exactly one of the concrete types
// below is returned per dispatch; Converge is the only place that
// unpacks them.
type Result interface {
	result()
}

// Nothing is the outcome of no_action.
type Nothing struct{}

// Delivered is a reply that reached its channel and must be recorded in
// the outbox.
type Delivered struct {
	Summary    string
	Outbox     domain.OutboxMessage
	Recipients []domain.OutboxRecipient
}

// Undelivered is a reply whose send failed. Nothing is recorded.
type Undelivered struct {
	Summary string
	Err     error
}

// Info is a read-only result such as fetched history or page text.
type Info struct {
	Summary string
}

// Changed is a store mutation (contact, job, meeting) that produced no
// outbound message.
type Changed struct {
	Summary string
}

// Failed is any other handled failure: missing entity, missing
// configuration, bad arguments or a store error.
type Failed struct {
	Summary string
	Err     error
}

func (Nothing) result()     {}
func (Delivered) result()   {}
func (Undelivered) result() {}
func (Info) result()        {}
func (Changed) result()     {}
func (Failed) result()      {}

// NoActionSummary is the terminal summary of a run that did nothing.
const NoActionSummary = "No action taken."

// Outcome is the uniform shape every result converges to.
type Outcome struct {
	Summary    string
	Outbox     *domain.OutboxMessage
	Recipients []domain.OutboxRecipient
	Failed     bool
}

// Converge maps a result to its summary and optional outbox message. An
// unknown Result type is a programming error and panics.
func Converge(r Result) Outcome {
	switch v := r.(type) {
	case Nothing:
		return Outcome{Summary: NoActionSummary}
	case Delivered:
		outbox := v.Outbox
		return Outcome{Summary: v.Summary, Outbox: &outbox, Recipients: v.Recipients}
	case Undelivered:
		return Outcome{Summary: v.Summary, Failed: true}
	case Info:
		return Outcome{Summary: v.Summary}
	case Changed:
		return Outcome{Summary: v.Summary}
	case Failed:
		return Outcome{Summary: v.Summary, Failed: true}
	}
	panic(fmt.Sprintf("action: unhandled result type %T", r))
}
