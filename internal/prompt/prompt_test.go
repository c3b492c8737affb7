package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vargasjr/internal/domain"
)

func TestLoad_BuiltinVariants(t *testing.T) {
	set, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, v := range []string{"triage", "followup", "job"} {
		sys, usr, err := set.Render(v, Data{AgentName: "Vargas JR", Contact: "Ada", Kind: domain.KindSMS, Body: "hello"})
		if err != nil {
			t.Fatalf("Render(%s): %v", v, err)
		}
		if !strings.Contains(sys, "Vargas JR") {
			t.Errorf("%s: system prompt should name the agent: %q", v, sys)
		}
		if !strings.Contains(usr, "hello") || !strings.Contains(usr, "Ada") {
			t.Errorf("%s: user prompt missing fields: %q", v, usr)
		}
	}
}

func TestRender_IncludesHistory(t *testing.T) {
	set, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	_, usr, err := set.Render("triage", Data{
		Body: "and now?",
		History: []domain.HistoryEntry{
			{Direction: "outbound", Kind: domain.KindSMS, Body: "we shipped it"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(usr, "[outbound SMS] we shipped it") {
		t.Fatalf("history not rendered: %q", usr)
	}
}

func TestRender_UnknownVariant(t *testing.T) {
	set, _ := Load("")
	if _, _, err := set.Render("nope", Data{}); err == nil {
		t.Fatal("expected error for unknown variant")
	}
}

func TestLoad_OverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	content := "triage:\n  system: \"custom {{.AgentName}}\"\n  user: \"{{.Body}}\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	set, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	sys, usr, err := set.Render("triage", Data{AgentName: "X", Body: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if sys != "custom X" || usr != "b" {
		t.Fatalf("override not applied: %q / %q", sys, usr)
	}
	if _, _, err := set.Render("job", Data{}); err != nil {
		t.Fatalf("builtin variants should survive an override: %v", err)
	}
}

func TestParse_RejectsIncompleteVariant(t *testing.T) {
	if _, err := Parse([]byte("triage:\n  system: only\n")); err == nil {
		t.Fatal("expected error for missing user template")
	}
	if _, err := Parse([]byte("triage: [")); err == nil {
		t.Fatal("expected yaml error")
	}
}
