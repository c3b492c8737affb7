package action

import (
	"context"
	"fmt"
	"strings"

	"vargasjr/internal/domain"
)

// smsInboxPrefix precedes the phone number in SMS inbox names,
// e.g. "twilio-phone-+15559876543".
const smsInboxPrefix = "twilio-phone-"

func (d *Dispatcher) emailReply(ctx context.Context, msg domain.NormalizedMessage, args Args) Result {
	to := msg.ContactEmail
	if to == "" {
		return Undelivered{
			Summary: fmt.Sprintf("Failed to send email to %s.", msg.Contact().Identifier()),
			Err:     fmt.Errorf("contact has no email address"),
		}
	}
	subject := args.String("subject")
	if subject == "" {
		subject = msg.Metadata["subject"]
	}
	email := domain.Email{
		To:         to,
		Subject:    "RE: " + stripReplyPrefix(subject),
		Body:       args.String("body"),
		InReplyTo:  msg.Metadata["message_id"],
		References: references(msg.Metadata),
	}
	recips := []domain.OutboxRecipient{{ContactID: msg.ContactID, Role: domain.RoleTo}}
	return d.sendEmail(ctx, msg, email, fmt.Sprintf("Sent email to %s.", to), recips)
}

func (d *Dispatcher) emailInitiate(ctx context.Context, msg domain.NormalizedMessage, args Args) Result {
	to := args.String("to")
	if to == "" {
		return Undelivered{Summary: "Failed to send email: no recipient given.", Err: fmt.Errorf("missing to")}
	}
	email := domain.Email{To: to, Subject: args.String("subject"), Body: args.String("body")}
	recips := d.recipients(ctx, msg, domain.Contact{Email: to}, domain.RoleTo)
	return d.sendEmail(ctx, msg, email, fmt.Sprintf("Sent email to %s.", to), recips)
}

func (d *Dispatcher) jobOpportunityResponse(ctx context.Context, msg domain.NormalizedMessage, args Args) Result {
	recruiter := args.String("recruiter_email")
	if recruiter == "" {
		return Undelivered{Summary: "Failed to send email: no recruiter address given.", Err: fmt.Errorf("missing recruiter_email")}
	}
	forwarder := msg.ContactEmail

	subject := args.String("subject")
	if subject == "" {
		subject = "RE: " + stripReplyPrefix(msg.Metadata["subject"])
	}
	email := domain.Email{
		To:         recruiter,
		Subject:    subject,
		Body:       args.String("body"),
		InReplyTo:  msg.Metadata["message_id"],
		References: references(msg.Metadata),
	}
	summary := fmt.Sprintf("Sent job opportunity response to %s.", recruiter)
	recips := d.recipients(ctx, msg, domain.Contact{Email: recruiter}, domain.RoleTo)
	if forwarder != "" && !strings.EqualFold(forwarder, recruiter) {
		email.Bcc = []string{forwarder}
		summary = fmt.Sprintf("Sent job opportunity response to %s with BCC to %s.", recruiter, forwarder)
		recips = append(recips, domain.OutboxRecipient{ContactID: msg.ContactID, Role: domain.RoleBCC})
	}
	return d.sendEmail(ctx, msg, email, summary, recips)
}

func (d *Dispatcher) startDemo(ctx context.Context, msg domain.NormalizedMessage, _ Args) Result {
	if d.deps.DemoURL == "" {
		return Failed{Summary: "Failed to start demo: no demo URL configured.", Err: errNotConfigured}
	}
	to := msg.ContactEmail
	if to == "" {
		return Failed{Summary: fmt.Sprintf("Failed to start demo: %s has no email address.", msg.Contact().Identifier())}
	}
	name := msg.ContactFullName
	if name == "" {
		name = "there"
	}
	email := domain.Email{
		To:      to,
		Subject: fmt.Sprintf("Your %s demo", d.deps.AgentName),
		Body: fmt.Sprintf("Hi %s,\n\nThanks for your interest! You can book a demo at a time that suits you here:\n%s\n\n%s",
			name, d.deps.DemoURL, d.deps.AgentName),
	}
	recips := []domain.OutboxRecipient{{ContactID: msg.ContactID, Role: domain.RoleTo}}
	return d.sendEmail(ctx, msg, email, fmt.Sprintf("Sent demo link to %s.", to), recips)
}

func (d *Dispatcher) sendEmail(ctx context.Context, msg domain.NormalizedMessage, email domain.Email, summary string, recips []domain.OutboxRecipient) Result {
	failed := fmt.Sprintf("Failed to send email to %s.", email.To)
	if d.deps.Email == nil {
		return Undelivered{Summary: failed, Err: fmt.Errorf("email sender %w", errNotConfigured)}
	}
	if err := d.deps.Email.SendEmail(ctx, email); err != nil {
		d.logger.Warn("send email failed", "message_id", msg.MessageID, "to", email.To, "err", err)
		return Undelivered{Summary: failed, Err: err}
	}
	return Delivered{
		Summary: summary,
		Outbox: domain.OutboxMessage{
			ParentMessageID: msg.MessageID,
			Body:            email.Body,
			Kind:            domain.KindEmail,
			ThreadID:        msg.ThreadID,
		},
		Recipients: recips,
	}
}

func (d *Dispatcher) textReply(ctx context.Context, msg domain.NormalizedMessage, args Args) Result {
	phone := args.String("phone_number")
	if phone == "" {
		phone = msg.ContactPhone
	}
	return d.sendText(ctx, msg, phone, args.String("message"))
}

func (d *Dispatcher) whoAreYou(ctx context.Context, msg domain.NormalizedMessage, _ Args) Result {
	body := fmt.Sprintf("Hi, I'm %s, an automated assistant. I read and reply to messages on behalf of my team. How can I help?",
		d.deps.AgentName)
	return d.sendText(ctx, msg, msg.ContactPhone, body)
}

func (d *Dispatcher) sendText(ctx context.Context, msg domain.NormalizedMessage, phone, body string) Result {
	failed := fmt.Sprintf("Failed to send text message to %s.", phone)
	if phone == "" {
		return Undelivered{Summary: "Failed to send text message: no phone number.", Err: fmt.Errorf("missing phone number")}
	}
	if d.deps.SMS == nil {
		return Undelivered{Summary: failed, Err: fmt.Errorf("sms sender %w", errNotConfigured)}
	}
	from := strings.TrimPrefix(msg.InboxName, smsInboxPrefix)
	if err := d.deps.SMS.SendSMS(ctx, phone, from, body); err != nil {
		d.logger.Warn("send sms failed", "message_id", msg.MessageID, "to", phone, "err", err)
		return Undelivered{Summary: failed, Err: err}
	}
	return Delivered{
		Summary: fmt.Sprintf("Sent text message to %s.", phone),
		Outbox: domain.OutboxMessage{
			ParentMessageID: msg.MessageID,
			Body:            body,
			Kind:            domain.KindSMS,
			ThreadID:        msg.ThreadID,
		},
		Recipients: d.recipients(ctx, msg, domain.Contact{PhoneNumber: phone}, domain.RoleTo),
	}
}

func (d *Dispatcher) slackReply(ctx context.Context, msg domain.NormalizedMessage, args Args) Result {
	channel := msg.InboxName
	if channel == "" {
		channel = strings.TrimPrefix(args.String("channel"), "#")
	}
	to := args.String("to")
	if to == "" {
		to = msg.ContactSlackName
	}
	failed := fmt.Sprintf("Failed to send Slack reply to %s at #%s.", to, channel)
	if d.deps.Chat == nil {
		return Undelivered{Summary: failed, Err: fmt.Errorf("slack poster %w", errNotConfigured)}
	}

	text := fmt.Sprintf("<@%s> %s", to, args.String("message"))
	if err := d.deps.Chat.PostMessage(ctx, "#"+channel, text); err != nil {
		d.logger.Warn("post slack message failed", "message_id", msg.MessageID, "channel", channel, "err", err)
		return Undelivered{Summary: failed, Err: err}
	}

	match := domain.Contact{SlackDisplayName: to}
	if strings.Contains(to, "@") {
		match = domain.Contact{Email: to}
	}
	return Delivered{
		Summary: fmt.Sprintf("Sent Slack reply to %s at #%s.", to, channel),
		Outbox: domain.OutboxMessage{
			ParentMessageID: msg.MessageID,
			Body:            text,
			Kind:            domain.KindSlack,
			ThreadID:        msg.ThreadID,
		},
		Recipients: d.recipients(ctx, msg, match, domain.RoleTo),
	}
}

// recipients resolves the contact a reply went to. The message's own
// contact is used when it matches; anyone else is looked up or created.
// Lookup failures are logged and leave the reply without recipients.
func (d *Dispatcher) recipients(ctx context.Context, msg domain.NormalizedMessage, match domain.Contact, role domain.RecipientRole) []domain.OutboxRecipient {
	own := msg.Contact()
	switch {
	case match.Email != "" && strings.EqualFold(match.Email, own.Email),
		match.PhoneNumber != "" && match.PhoneNumber == own.PhoneNumber,
		match.SlackDisplayName != "" && match.SlackDisplayName == own.SlackDisplayName:
		return []domain.OutboxRecipient{{ContactID: msg.ContactID, Role: role}}
	}
	if d.deps.Contacts == nil {
		return nil
	}
	c, err := d.deps.Contacts.FindOrCreateContact(ctx, match)
	if err != nil {
		d.logger.Warn("resolve recipient failed", "message_id", msg.MessageID, "err", err)
		return nil
	}
	return []domain.OutboxRecipient{{ContactID: c.ID, Role: role}}
}

func stripReplyPrefix(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		lower := strings.ToLower(s)
		if !strings.HasPrefix(lower, "re:") {
			return s
		}
		s = strings.TrimSpace(s[3:])
	}
}

// references builds the References header from stored email metadata.
func references(md map[string]string) string {
	refs := strings.TrimSpace(md["references"])
	id := md["message_id"]
	switch {
	case id == "":
		return refs
	case refs == "":
		return id
	case strings.Contains(refs, id):
		return refs
	}
	return refs + " " + id
}
