// Package prompt renders the classifier's system and user prompts from
// YAML templates, one pair per router variant.
package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"vargasjr/internal/domain"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var builtinTemplates []byte

// Data is what every template can reference.
type Data struct {
	AgentName string
	Contact   string
	Kind      domain.InboxKind
	InboxName string
	Body      string
	History   []domain.HistoryEntry
}

type templatePair struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type compiled struct {
	system *template.Template
	user   *template.Template
}

// Set holds the parsed templates keyed by variant name.
type Set struct {
	variants map[string]compiled
}

// Load parses the built-in templates and, when overridePath is set, layers
// the variants defined in that file over them.
func Load(overridePath string) (*Set, error) {
	set, err := Parse(builtinTemplates)
	if err != nil {
		return nil, fmt.Errorf("builtin templates: %w", err)
	}
	if overridePath == "" {
		return set, nil
	}
	data, err := os.ReadFile(overridePath)
	if err != nil {
		return nil, fmt.Errorf("read prompts file %s: %w", overridePath, err)
	}
	override, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("prompts file %s: %w", overridePath, err)
	}
	for name, c := range override.variants {
		set.variants[name] = c
	}
	return set, nil
}

// Parse compiles a YAML document mapping variant names to system/user templates.
func Parse(data []byte) (*Set, error) {
	var raw map[string]templatePair
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	set := &Set{variants: make(map[string]compiled, len(raw))}
	for name, pair := range raw {
		if pair.System == "" || pair.User == "" {
			return nil, fmt.Errorf("variant %s: both system and user templates are required", name)
		}
		sys, err := template.New(name + ".system").Option("missingkey=error").Parse(pair.System)
		if err != nil {
			return nil, fmt.Errorf("variant %s system: %w", name, err)
		}
		usr, err := template.New(name + ".user").Option("missingkey=error").Parse(pair.User)
		if err != nil {
			return nil, fmt.Errorf("variant %s user: %w", name, err)
		}
		set.variants[name] = compiled{system: sys, user: usr}
	}
	return set, nil
}

// Render returns the system and user prompts for a variant.
func (s *Set) Render(variant string, d Data) (system, user string, err error) {
	c, ok := s.variants[variant]
	if !ok {
		return "", "", fmt.Errorf("no prompt templates for variant %q", variant)
	}
	var sb, ub strings.Builder
	if err := c.system.Execute(&sb, d); err != nil {
		return "", "", fmt.Errorf("render %s system prompt: %w", variant, err)
	}
	if err := c.user.Execute(&ub, d); err != nil {
		return "", "", fmt.Errorf("render %s user prompt: %w", variant, err)
	}
	return strings.TrimSpace(sb.String()), strings.TrimSpace(ub.String()), nil
}
