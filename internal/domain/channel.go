package domain

import "context"

// Email is one outbound email. Bcc, InReplyTo and References are optional.
type Email struct {
	To         string
	Subject    string
	Body       string
	Bcc        []string
	InReplyTo  string
	References string
}

// EmailSender delivers email.
type EmailSender interface {
	SendEmail(ctx context.Context, email Email) error
}

// SMSSender delivers a text message from one number to another.
type SMSSender interface {
	SendSMS(ctx context.Context, to, from, body string) error
}

// ChatPoster posts text into a chat channel (e.g. "#general").
type ChatPoster interface {
	PostMessage(ctx context.Context, channel, text string) error
}

// Inbound is a message arriving from a channel, before it is stored.
// Contact carries whatever identifies the sender on that channel.
type Inbound struct {
	InboxName  string
	Kind       InboxKind
	Contact    Contact
	Body       string
	ThreadID   string
	ExternalID string
	Metadata   map[string]string
}

// Ingestor records inbound messages so intake can pick them up.
type Ingestor interface {
	Ingest(ctx context.Context, in Inbound) (*InboxMessage, error)
}
