package action

import (
	"testing"

	"vargasjr/internal/domain"
)

type unknownResult struct{}

func (unknownResult) result() {}

func TestConverge(t *testing.T) {
	tests := []struct {
		name       string
		in         Result
		summary    string
		wantOutbox bool
		failed     bool
	}{
		{"nothing", Nothing{}, NoActionSummary, false, false},
		{"delivered", Delivered{Summary: "Sent.", Outbox: domain.OutboxMessage{Body: "hi"}}, "Sent.", true, false},
		{"undelivered", Undelivered{Summary: "Failed to send."}, "Failed to send.", false, true},
		{"info", Info{Summary: "page"}, "page", false, false},
		{"changed", Changed{Summary: "Updated."}, "Updated.", false, false},
		{"failed", Failed{Summary: "Nope."}, "Nope.", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Converge(tt.in)
			if out.Summary != tt.summary || (out.Outbox != nil) != tt.wantOutbox || out.Failed != tt.failed {
				t.Fatalf("Converge(%T) = %+v", tt.in, out)
			}
		})
	}
}

func TestConverge_UnknownPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	Converge(unknownResult{})
}
