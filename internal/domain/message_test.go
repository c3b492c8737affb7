package domain

import "testing"

func TestContactIdentifier(t *testing.T) {
	tests := []struct {
		name string
		c    Contact
		want string
	}{
		{"full name", Contact{ID: "1", FullName: "Ada", Email: "a@x.io", PhoneNumber: "+1"}, "Ada"},
		{"email", Contact{ID: "1", Email: "a@x.io", PhoneNumber: "+1"}, "a@x.io"},
		{"phone", Contact{ID: "1", PhoneNumber: "+1"}, "+1"},
		{"id", Contact{ID: "1"}, "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Identifier(); got != tt.want {
				t.Errorf("Identifier() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEligible(t *testing.T) {
	if !Eligible(nil) {
		t.Error("empty log should be eligible")
	}
	for op, want := range map[OperationType]bool{OpUnread: true, OpRead: false, OpArchived: false} {
		if got := Eligible(&InboxMessageOperation{Operation: op}); got != want {
			t.Errorf("Eligible(%s) = %v, want %v", op, got, want)
		}
	}
}

func TestAdminURL(t *testing.T) {
	if got := AdminURL("in-1", "msg-2"); got != "/admin/inboxes/in-1/messages/msg-2" {
		t.Errorf("unexpected url %q", got)
	}
}

func TestParseInboxKind(t *testing.T) {
	if k, err := ParseInboxKind("SLACK"); err != nil || k != KindSlack {
		t.Errorf("ParseInboxKind(SLACK) = %q, %v", k, err)
	}
	if _, err := ParseInboxKind("NONE"); err == nil {
		t.Error("NONE is a sentinel, not a real inbox kind")
	}
}
