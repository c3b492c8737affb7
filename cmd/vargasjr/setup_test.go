package main

import (
	"io"
	"strings"
	"testing"

	"vargasjr/internal/config"
)

func TestRunSetup(t *testing.T) {
	cfg := config.Defaults()
	answers := strings.Join([]string{
		"Vargas",            // agent name
		"2",                 // ollama
		"smtp.example.com",  // smtp host
		"agent@example.com", // from
		"", "", "", "", "", "",
		"y",
		"s3cret",
	}, "\n") + "\n"

	if err := runSetup(cfg, strings.NewReader(answers), io.Discard); err != nil {
		t.Fatalf("runSetup: %v", err)
	}
	if cfg.General.AgentName != "Vargas" || cfg.Classifier.Provider != "ollama" {
		t.Errorf("general = %+v classifier = %+v", cfg.General, cfg.Classifier)
	}
	if !cfg.Providers["ollama"].Enabled {
		t.Error("ollama should be enabled")
	}
	if cfg.Email.Host != "smtp.example.com" || cfg.Email.From != "agent@example.com" {
		t.Errorf("email = %+v", cfg.Email)
	}
	if !cfg.Admin.Enabled || cfg.Admin.APIKey != "s3cret" {
		t.Errorf("admin = %+v", cfg.Admin)
	}
	if err := config.Validate(cfg); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestRunSetup_EOFKeepsDefaults(t *testing.T) {
	cfg := config.Defaults()
	if err := runSetup(cfg, strings.NewReader(""), io.Discard); err != nil {
		t.Fatalf("runSetup: %v", err)
	}
	if cfg.General.AgentName != "Vargas JR" || cfg.Classifier.Provider != "openai" {
		t.Errorf("defaults changed: %+v %+v", cfg.General, cfg.Classifier)
	}
}

func TestServiceFile(t *testing.T) {
	path, contents, err := serviceFile("linux", "/usr/local/bin/vargasjr", "/etc/vargasjr.json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(path, "vargasjr.service") {
		t.Errorf("path = %s", path)
	}
	if !strings.Contains(contents, "ExecStart=/usr/local/bin/vargasjr agent --config /etc/vargasjr.json") {
		t.Errorf("unit = %s", contents)
	}
	if _, _, err := serviceFile("plan9", "", ""); err == nil {
		t.Error("expected unsupported OS error")
	}
}
