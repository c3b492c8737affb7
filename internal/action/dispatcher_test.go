package action

import (
	"context"
	"strings"
	"testing"

	"vargasjr/internal/domain"
)

func emailMsg() domain.NormalizedMessage {
	return domain.NormalizedMessage{
		MessageID:       "msg-1",
		Body:            "Can we chat next week?",
		ContactID:       "c-1",
		ContactEmail:    "ada@example.com",
		ContactFullName: "Ada Lovelace",
		Kind:            domain.KindEmail,
		InboxName:       "hello",
		InboxID:         "inbox-1",
		ThreadID:        "thread-1",
		Metadata: map[string]string{
			"subject":    "Re: Partnership",
			"message_id": "<m1@example.com>",
			"references": "<m0@example.com>",
		},
	}
}

func smsMsg() domain.NormalizedMessage {
	return domain.NormalizedMessage{
		MessageID:    "msg-2",
		Body:         "who is this?",
		ContactID:    "c-2",
		ContactPhone: "+15551234567",
		Kind:         domain.KindSMS,
		InboxName:    "twilio-phone-+15559876543",
		InboxID:      "inbox-2",
	}
}

func TestDispatch_EveryCatalogKindHasHandler(t *testing.T) {
	d := NewDispatcher(Deps{Logger: testLogger()})
	for _, v := range []Variant{Triage, Followup, Job} {
		for _, spec := range Catalog(v) {
			k, ok := ParseKind(spec.Name)
			if !ok {
				t.Fatalf("variant %s offers unknown action %q", v, spec.Name)
			}
			if _, ok := d.handlers[k]; !ok {
				t.Fatalf("no handler for %s", k)
			}
		}
	}
	if len(d.handlers) != len(Kinds()) {
		t.Fatalf("handlers = %d, kinds = %d", len(d.handlers), len(Kinds()))
	}
}

func TestDispatch_UnknownKind(t *testing.T) {
	d := NewDispatcher(Deps{Logger: testLogger()})
	out := Converge(d.Dispatch(context.Background(), Kind("launch_rocket"), emailMsg(), nil))
	if !out.Failed || !strings.Contains(out.Summary, "launch_rocket") {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestEmailReply(t *testing.T) {
	email := &fakeEmail{}
	d := NewDispatcher(Deps{Email: email, Logger: testLogger()})

	out := Converge(d.Dispatch(context.Background(), EmailReply, emailMsg(), Args{"body": "Sure, Tuesday works."}))
	if out.Summary != "Sent email to ada@example.com." {
		t.Fatalf("summary = %q", out.Summary)
	}
	if len(email.sent) != 1 {
		t.Fatalf("sent %d emails", len(email.sent))
	}
	e := email.sent[0]
	if e.To != "ada@example.com" || e.Subject != "RE: Partnership" || e.Body != "Sure, Tuesday works." {
		t.Fatalf("email = %+v", e)
	}
	if e.InReplyTo != "<m1@example.com>" || e.References != "<m0@example.com> <m1@example.com>" {
		t.Fatalf("threading headers = %q / %q", e.InReplyTo, e.References)
	}
	if out.Outbox == nil {
		t.Fatal("expected outbox message")
	}
	if out.Outbox.ParentMessageID != "msg-1" || out.Outbox.Kind != domain.KindEmail || out.Outbox.ThreadID != "thread-1" {
		t.Fatalf("outbox = %+v", out.Outbox)
	}
	if len(out.Recipients) != 1 || out.Recipients[0].ContactID != "c-1" || out.Recipients[0].Role != domain.RoleTo {
		t.Fatalf("recipients = %+v", out.Recipients)
	}
}

func TestEmailReply_SendFailure(t *testing.T) {
	d := NewDispatcher(Deps{Email: &fakeEmail{err: errBoom}, Logger: testLogger()})
	out := Converge(d.Dispatch(context.Background(), EmailReply, emailMsg(), Args{"body": "hi"}))
	if out.Summary != "Failed to send email to ada@example.com." {
		t.Fatalf("summary = %q", out.Summary)
	}
	if out.Outbox != nil || !out.Failed {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestEmailReply_NoSender(t *testing.T) {
	d := NewDispatcher(Deps{Logger: testLogger()})
	out := Converge(d.Dispatch(context.Background(), EmailReply, emailMsg(), Args{"body": "hi"}))
	if !strings.Contains(out.Summary, "Failed") || out.Outbox != nil {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestEmailInitiate_CreatesRecipient(t *testing.T) {
	email := &fakeEmail{}
	contacts := newFakeContacts(domain.Contact{ID: "c-1", Email: "ada@example.com"})
	d := NewDispatcher(Deps{Email: email, Contacts: contacts, Logger: testLogger()})

	out := Converge(d.Dispatch(context.Background(), EmailInitiate, emailMsg(),
		Args{"to": "grace@example.com", "subject": "Hello", "body": "Nice to meet you"}))
	if out.Summary != "Sent email to grace@example.com." {
		t.Fatalf("summary = %q", out.Summary)
	}
	if contacts.created != 1 || len(out.Recipients) != 1 || out.Recipients[0].ContactID != "created-1" {
		t.Fatalf("recipients = %+v (created %d)", out.Recipients, contacts.created)
	}
	if email.sent[0].InReplyTo != "" {
		t.Fatalf("new email should not thread: %+v", email.sent[0])
	}
}

func TestJobOpportunityResponse_BCCsForwarder(t *testing.T) {
	email := &fakeEmail{}
	d := NewDispatcher(Deps{Email: email, Contacts: newFakeContacts(), Logger: testLogger()})

	out := Converge(d.Dispatch(context.Background(), JobOpportunityResponse, emailMsg(),
		Args{"recruiter_email": "recruiter@corp.com", "body": "Thanks, not right now."}))
	want := "Sent job opportunity response to recruiter@corp.com with BCC to ada@example.com."
	if out.Summary != want {
		t.Fatalf("summary = %q", out.Summary)
	}
	e := email.sent[0]
	if e.To != "recruiter@corp.com" || len(e.Bcc) != 1 || e.Bcc[0] != "ada@example.com" {
		t.Fatalf("email = %+v", e)
	}
	if len(out.Recipients) != 2 || out.Recipients[1].Role != domain.RoleBCC {
		t.Fatalf("recipients = %+v", out.Recipients)
	}
}

func TestTextReply_FromInboxNumber(t *testing.T) {
	s := &fakeSMS{}
	d := NewDispatcher(Deps{SMS: s, Logger: testLogger()})

	out := Converge(d.Dispatch(context.Background(), TextReply, smsMsg(), Args{"message": "Hi there"}))
	if out.Summary != "Sent text message to +15551234567." {
		t.Fatalf("summary = %q", out.Summary)
	}
	if len(s.sent) != 1 || s.sent[0] != (sms{"+15551234567", "+15559876543", "Hi there"}) {
		t.Fatalf("sent = %+v", s.sent)
	}
	if out.Outbox == nil || out.Outbox.Kind != domain.KindSMS || out.Outbox.Body != "Hi there" {
		t.Fatalf("outbox = %+v", out.Outbox)
	}
}

func TestTextReply_Failure(t *testing.T) {
	d := NewDispatcher(Deps{SMS: &fakeSMS{err: errBoom}, Logger: testLogger()})
	out := Converge(d.Dispatch(context.Background(), TextReply, smsMsg(), Args{"message": "Hi"}))
	if out.Summary != "Failed to send text message to +15551234567." || out.Outbox != nil {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestWhoAreYou(t *testing.T) {
	s := &fakeSMS{}
	d := NewDispatcher(Deps{SMS: s, AgentName: "Vargas JR", Logger: testLogger()})
	out := Converge(d.Dispatch(context.Background(), WhoAreYou, smsMsg(), nil))
	if out.Summary != "Sent text message to +15551234567." {
		t.Fatalf("summary = %q", out.Summary)
	}
	if !strings.HasPrefix(s.sent[0].body, "Hi, I'm Vargas JR") {
		t.Fatalf("body = %q", s.sent[0].body)
	}
}

func TestSlackReply(t *testing.T) {
	chat := &fakeChat{}
	d := NewDispatcher(Deps{Chat: chat, Logger: testLogger()})
	msg := domain.NormalizedMessage{
		MessageID: "msg-3", ContactID: "c-3", ContactSlackName: "alice",
		Kind: domain.KindSlack, InboxName: "general", InboxID: "inbox-3",
	}

	out := Converge(d.Dispatch(context.Background(), SlackReply, msg, Args{"to": "alice", "message": "On it!"}))
	if out.Summary != "Sent Slack reply to alice at #general." {
		t.Fatalf("summary = %q", out.Summary)
	}
	if len(chat.posts) != 1 || chat.posts[0] != (post{"#general", "<@alice> On it!"}) {
		t.Fatalf("posts = %+v", chat.posts)
	}
	if len(out.Recipients) != 1 || out.Recipients[0].ContactID != "c-3" {
		t.Fatalf("recipients = %+v", out.Recipients)
	}
}

func TestSlackReply_ChannelArgFallback(t *testing.T) {
	chat := &fakeChat{}
	d := NewDispatcher(Deps{Chat: chat, Logger: testLogger()})
	msg := domain.NormalizedMessage{MessageID: "msg-4", ContactSlackName: "bob", Kind: domain.KindSlack}

	Converge(d.Dispatch(context.Background(), SlackReply, msg, Args{"channel": "#ops", "message": "done"}))
	if len(chat.posts) != 1 || chat.posts[0] != (post{"#ops", "<@bob> done"}) {
		t.Fatalf("posts = %+v", chat.posts)
	}
}

func TestStartDemo(t *testing.T) {
	email := &fakeEmail{}
	d := NewDispatcher(Deps{Email: email, DemoURL: "https://cal.example.com/demo", Logger: testLogger()})
	out := Converge(d.Dispatch(context.Background(), StartDemo, emailMsg(), nil))
	if out.Summary != "Sent demo link to ada@example.com." {
		t.Fatalf("summary = %q", out.Summary)
	}
	if !strings.Contains(email.sent[0].Body, "https://cal.example.com/demo") {
		t.Fatalf("body = %q", email.sent[0].Body)
	}

	d = NewDispatcher(Deps{Email: email, Logger: testLogger()})
	out = Converge(d.Dispatch(context.Background(), StartDemo, emailMsg(), nil))
	if !strings.HasPrefix(out.Summary, "Failed to start demo") {
		t.Fatalf("summary = %q", out.Summary)
	}
}

func TestMarkContactAsLead(t *testing.T) {
	contacts := newFakeContacts(domain.Contact{ID: "c-1", FullName: "Ada Lovelace", Status: domain.ContactInbound})
	d := NewDispatcher(Deps{Contacts: contacts, Logger: testLogger()})

	out := Converge(d.Dispatch(context.Background(), MarkContactAsLead, emailMsg(), nil))
	if out.Summary != "Marked Ada Lovelace as a lead." {
		t.Fatalf("summary = %q", out.Summary)
	}
	if contacts.byID["c-1"].Status != domain.ContactLead {
		t.Fatalf("status = %s", contacts.byID["c-1"].Status)
	}

	missing := smsMsg()
	out = Converge(d.Dispatch(context.Background(), MarkContactAsLead, missing, nil))
	if out.Summary != "Contact c-2 not found." || !out.Failed {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestUpdateContact(t *testing.T) {
	contacts := newFakeContacts(domain.Contact{ID: "c-1", Email: "ada@example.com"})
	d := NewDispatcher(Deps{Contacts: contacts, Logger: testLogger()})

	out := Converge(d.Dispatch(context.Background(), UpdateContact, emailMsg(),
		Args{"full_name": "Ada Lovelace", "email": "ada@example.com", "phone_number": "+15550001111"}))
	if out.Summary != "Updated contact Ada Lovelace: full_name, phone_number." {
		t.Fatalf("summary = %q", out.Summary)
	}
	got := contacts.byID["c-1"]
	if got.FullName != "Ada Lovelace" || got.PhoneNumber != "+15550001111" {
		t.Fatalf("contact = %+v", got)
	}

	out = Converge(d.Dispatch(context.Background(), UpdateContact, emailMsg(), Args{}))
	if out.Summary != "No contact fields to update." {
		t.Fatalf("summary = %q", out.Summary)
	}
}

func TestGetMessageHistory(t *testing.T) {
	h := &fakeHistory{entries: []domain.HistoryEntry{
		{Direction: "inbound", Body: "ping", Kind: domain.KindEmail},
		{Direction: "outbound", Body: "pong", Kind: domain.KindEmail},
	}}
	d := NewDispatcher(Deps{History: h, Logger: testLogger()})

	out := Converge(d.Dispatch(context.Background(), GetMessageHistory, emailMsg(), nil))
	if h.limit != 5 {
		t.Fatalf("limit = %d", h.limit)
	}
	if !strings.Contains(out.Summary, "ping") || !strings.Contains(out.Summary, "pong") || out.Outbox != nil {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestLookupURL(t *testing.T) {
	f := &fakeFetcher{text: "Example Domain"}
	d := NewDispatcher(Deps{Fetcher: f, Logger: testLogger()})

	out := Converge(d.Dispatch(context.Background(), LookupURL, emailMsg(), Args{"url": "https://example.com"}))
	if !strings.Contains(out.Summary, "Example Domain") || out.Failed {
		t.Fatalf("outcome = %+v", out)
	}

	out = Converge(d.Dispatch(context.Background(), LookupURL, emailMsg(), Args{"url": "ftp://example.com"}))
	if !out.Failed || len(f.urls) != 1 {
		t.Fatalf("outcome = %+v, fetched %v", out, f.urls)
	}

	f.err = errBoom
	out = Converge(d.Dispatch(context.Background(), LookupURL, emailMsg(), Args{"url": "https://example.com/x"}))
	if out.Summary != "Failed to look up https://example.com/x: boom" {
		t.Fatalf("summary = %q", out.Summary)
	}
}

func TestGenerateStripeCheckout(t *testing.T) {
	c := &fakeCheckout{}
	d := NewDispatcher(Deps{Checkout: c, PriceID: "price_default", Logger: testLogger()})

	out := Converge(d.Dispatch(context.Background(), GenerateStripeCheckout, emailMsg(), Args{"quantity": float64(3)}))
	if out.Summary != "Generated Stripe checkout link: https://checkout.stripe.com/c/pay/cs_test_1" {
		t.Fatalf("summary = %q", out.Summary)
	}
	req := c.reqs[0]
	if req.PriceID != "price_default" || req.Quantity != 3 || req.CustomerEmail != "ada@example.com" || req.ClientReferenceID != "c-1" {
		t.Fatalf("request = %+v", req)
	}

	c.err = errBoom
	out = Converge(d.Dispatch(context.Background(), GenerateStripeCheckout, emailMsg(), nil))
	if out.Summary != "Failed to generate Stripe checkout: boom" {
		t.Fatalf("summary = %q", out.Summary)
	}
}

func TestDispatch_HandlerRunsWithDeadline(t *testing.T) {
	var hadDeadline bool
	d := NewDispatcher(Deps{Logger: testLogger()})
	d.handlers[NoAction] = func(ctx context.Context, _ domain.NormalizedMessage, _ Args) Result {
		_, hadDeadline = ctx.Deadline()
		return Nothing{}
	}
	d.Dispatch(context.Background(), NoAction, emailMsg(), nil)
	if !hadDeadline {
		t.Fatal("handler context has no deadline")
	}
}
