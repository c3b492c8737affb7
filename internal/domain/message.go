package domain

import (
	"fmt"
	"time"
)

// InboxKind is the medium an inbox receives messages over.
type InboxKind string

const (
	KindEmail       InboxKind = "EMAIL"
	KindSMS         InboxKind = "SMS"
	KindSlack       InboxKind = "SLACK"
	KindForm        InboxKind = "FORM"
	KindChatSession InboxKind = "CHAT_SESSION"
	KindNone        InboxKind = "NONE" // sentinel: no inbox, nothing to process
)

// ParseInboxKind validates a kind string.
func ParseInboxKind(s string) (InboxKind, error) {
	switch k := InboxKind(s); k {
	case KindEmail, KindSMS, KindSlack, KindForm, KindChatSession:
		return k, nil
	}
	return "", fmt.Errorf("unknown inbox kind: %q", s)
}

type Inbox struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_label"`
	Kind        InboxKind `json:"kind"`
	CreatedAt   time.Time `json:"created_at"`
}

type ContactStatus string

const (
	ContactInbound ContactStatus = "INBOUND"
	ContactLead    ContactStatus = "LEAD"
	ContactUser    ContactStatus = "USER"
)

type Contact struct {
	ID               string        `json:"id"`
	Email            string        `json:"email,omitempty"`
	PhoneNumber      string        `json:"phone_number,omitempty"`
	FullName         string        `json:"full_name,omitempty"`
	SlackDisplayName string        `json:"slack_display_name,omitempty"`
	Status           ContactStatus `json:"status"`
	CreatedAt        time.Time     `json:"created_at"`
}

// Identifier is the best human-readable handle for the contact:
// full name, then email, then phone number, then the raw id.
func (c Contact) Identifier() string {
	switch {
	case c.FullName != "":
		return c.FullName
	case c.Email != "":
		return c.Email
	case c.PhoneNumber != "":
		return c.PhoneNumber
	}
	return c.ID
}

type InboxMessage struct {
	ID         string            `json:"id"`
	InboxID    string            `json:"inbox_id"`
	ContactID  string            `json:"contact_id"`
	Body       string            `json:"body"`
	ThreadID   string            `json:"thread_id,omitempty"`
	ExternalID string            `json:"external_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// OperationType is one entry kind in a message's append-only operation log.
type OperationType string

const (
	OpRead     OperationType = "READ"
	OpUnread   OperationType = "UNREAD"
	OpArchived OperationType = "ARCHIVED"
)

type InboxMessageOperation struct {
	ID          int64         `json:"id"`
	MessageID   string        `json:"message_id"`
	Operation   OperationType `json:"operation"`
	ExecutionID string        `json:"execution_id"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Eligible reports whether a message whose latest operation is latest
// (nil when the log is empty) may be picked up by intake.
func Eligible(latest *InboxMessageOperation) bool {
	return latest == nil || latest.Operation == OpUnread
}

type OutboxMessage struct {
	ID              string    `json:"id"`
	ParentMessageID string    `json:"parent_inbox_message_id,omitempty"`
	Body            string    `json:"body"`
	Kind            InboxKind `json:"type"`
	ThreadID        string    `json:"thread_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type RecipientRole string

const (
	RoleTo  RecipientRole = "TO"
	RoleCC  RecipientRole = "CC"
	RoleBCC RecipientRole = "BCC"
)

type OutboxRecipient struct {
	OutboxMessageID string        `json:"outbox_message_id"`
	ContactID       string        `json:"contact_id"`
	Role            RecipientRole `json:"type"`
}

// NormalizedMessage is the flattened view of a claimed message that the
// router and action handlers work with.
type NormalizedMessage struct {
	MessageID        string
	Body             string
	ContactID        string
	ContactEmail     string
	ContactFullName  string
	ContactSlackName string
	ContactPhone     string
	Kind             InboxKind
	InboxName        string
	InboxID          string
	ThreadID         string
	Metadata         map[string]string
}

// NoMessageBody marks the sentinel returned when nothing is eligible.
const NoMessageBody = "No messages found"

// IsNone reports whether m is the no-message sentinel.
func (m NormalizedMessage) IsNone() bool { return m.Kind == KindNone }

// Contact rebuilds the denormalized contact fields.
func (m NormalizedMessage) Contact() Contact {
	return Contact{
		ID:               m.ContactID,
		Email:            m.ContactEmail,
		PhoneNumber:      m.ContactPhone,
		FullName:         m.ContactFullName,
		SlackDisplayName: m.ContactSlackName,
	}
}

// AdminURL is the stable admin path for a message.
func AdminURL(inboxID, messageID string) string {
	return fmt.Sprintf("/admin/inboxes/%s/messages/%s", inboxID, messageID)
}

// HistoryEntry is one line of a contact's interleaved inbound/outbound history.
type HistoryEntry struct {
	Direction string    `json:"direction"` // inbound | outbound
	Body      string    `json:"body"`
	Kind      InboxKind `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// ActionRecord is one entry of a run's action history.
type ActionRecord struct {
	Name   string         `json:"name"`
	Args   map[string]any `json:"args"`
	Result string         `json:"result"`
}
