package channel

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"vargasjr/internal/domain"
)

func TestSMTP_BuildMessage(t *testing.T) {
	s := NewSMTP(SMTPConfig{Host: "smtp.example.com", From: "agent@vargasjr.dev", Logger: testLogger()})
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	msg, err := s.buildMessage(domain.Email{
		To:         "ada@example.com",
		Subject:    "RE: Partnership",
		Body:       "line one\nline two",
		Bcc:        []string{"boss@example.com"},
		InReplyTo:  "<m1@example.com>",
		References: "<m0@example.com> <m1@example.com>",
	})
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	raw := buf.String()

	for _, want := range []string{
		"agent@vargasjr.dev",
		"To: <ada@example.com>",
		"Subject: RE: Partnership",
		"Date: Fri, 02 Jan 2026 03:04:05 +0000",
		"In-Reply-To: <m1@example.com>",
		"References: <m0@example.com> <m1@example.com>",
		"line one",
		"line two",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("message missing %q:\n%s", want, raw)
		}
	}
	if strings.Contains(raw, "boss@example.com") {
		t.Errorf("Bcc leaked into headers:\n%s", raw)
	}
	if !strings.Contains(raw, "@vargasjr.dev>") {
		t.Errorf("Message-ID not scoped to sender domain:\n%s", raw)
	}

	rcpts, err := msg.GetRecipients()
	if err != nil {
		t.Fatalf("GetRecipients: %v", err)
	}
	if len(rcpts) != 2 {
		t.Fatalf("envelope recipients = %v, want To and Bcc", rcpts)
	}
}

func TestBccRecipients(t *testing.T) {
	got := bccRecipients(domain.Email{To: "a@x.com", Bcc: []string{"b@x.com", "", "A@x.com"}})
	if len(got) != 1 || got[0] != "b@x.com" {
		t.Fatalf("recipients = %v", got)
	}
}

func TestSMTP_BuildMessageRejectsBadAddress(t *testing.T) {
	s := NewSMTP(SMTPConfig{Host: "smtp.example.com", From: "agent@vargasjr.dev", Logger: testLogger()})
	if _, err := s.buildMessage(domain.Email{To: "not an address"}); err == nil {
		t.Fatal("expected error for invalid recipient")
	}
}

func TestSMTP_SendWithoutHost(t *testing.T) {
	s := NewSMTP(SMTPConfig{Logger: testLogger()})
	if err := s.SendEmail(t.Context(), domain.Email{To: "a@x.com"}); err == nil {
		t.Fatal("expected error without host")
	}
}
