// Package classifier turns a message prompt and an action catalog into a
// single selected action using a chat completion provider.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"vargasjr/internal/domain"
)

// LLMClassifier implements domain.Classifier over a domain.Provider.
type LLMClassifier struct {
	provider    domain.Provider
	model       string
	temperature float64
	logger      *slog.Logger
}

type Config struct {
	Provider    domain.Provider
	Model       string // empty uses the provider default
	Temperature float64
	Logger      *slog.Logger
}

func New(cfg Config) *LLMClassifier {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &LLMClassifier{
		provider:    cfg.Provider,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		logger:      cfg.Logger,
	}
}

// Classify asks the provider to pick one action from req.Catalog.
//
// The selection is a function call only when exactly one call to a known
// action comes back. Zero calls, several calls or an unknown name yield
// FunctionCall=false with the raw reply kept for diagnostics. Errors are
// returned only when the provider itself fails.
func (c *LLMClassifier) Classify(ctx context.Context, req domain.ClassifyRequest) (domain.Selection, error) {
	system := req.System
	chatReq := domain.ChatRequest{
		Model:       c.model,
		Temperature: c.temperature,
	}
	if c.provider.SupportsToolCalling() {
		chatReq.Tools = toolDefinitions(req.Catalog)
		chatReq.ToolChoice = "required"
	} else {
		system += "\n\n" + describeCatalog(req.Catalog)
	}
	chatReq.Messages = []domain.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: req.User},
	}

	resp, err := c.provider.Chat(ctx, chatReq)
	if err != nil {
		return domain.Selection{}, fmt.Errorf("classify via %s: %w", c.provider.Name(), err)
	}

	calls := resp.ToolCalls
	if len(calls) == 0 && resp.Content != "" {
		calls = extractToolCallsFromContent(resp.Content)
		if len(calls) > 0 {
			c.logger.Debug("recovered tool call from content", "provider", c.provider.Name())
		}
	}

	sel := domain.Selection{Raw: rawReply(resp)}
	if len(calls) != 1 {
		c.logger.Warn("classifier did not return exactly one function call",
			"calls", len(calls), "finish_reason", resp.FinishReason)
		return sel, nil
	}

	name, ok := resolveName(calls[0].Name, req.Catalog)
	if !ok {
		c.logger.Warn("classifier selected an unknown action", "action", calls[0].Name)
		return sel, nil
	}
	sel.FunctionCall = true
	sel.Name = name
	sel.Args = calls[0].Arguments
	if sel.Args == nil {
		sel.Args = map[string]any{}
	}
	return sel, nil
}

func toolDefinitions(catalog []domain.ActionSpec) []domain.ToolDefinition {
	defs := make([]domain.ToolDefinition, 0, len(catalog))
	for _, spec := range catalog {
		defs = append(defs, domain.ToolDefinition{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  spec.Parameters,
		})
	}
	return defs
}

// describeCatalog renders the catalog for providers without native tool
// calling, asking for a JSON object reply that extractToolCallsFromContent parses.
func describeCatalog(catalog []domain.ActionSpec) string {
	var b strings.Builder
	b.WriteString("Choose exactly one of the following functions and reply with only a JSON object of the form ")
	b.WriteString(`{"name": "<function>", "arguments": {...}}`)
	b.WriteString(".\n")
	for _, spec := range catalog {
		params, _ := json.Marshal(spec.Parameters)
		fmt.Fprintf(&b, "- %s: %s Parameters: %s\n", spec.Name, spec.Description, params)
	}
	return b.String()
}

// resolveName matches a returned function name against the catalog,
// tolerating case and hyphen/space variations from smaller models.
func resolveName(name string, catalog []domain.ActionSpec) (string, bool) {
	norm := strings.NewReplacer("-", "_", " ", "_").Replace(strings.ToLower(strings.TrimSpace(name)))
	for _, spec := range catalog {
		if spec.Name == name || spec.Name == norm {
			return spec.Name, true
		}
	}
	return "", false
}

func rawReply(resp *domain.ChatResponse) string {
	if len(resp.ToolCalls) == 0 {
		return resp.Content
	}
	b, _ := json.Marshal(resp.ToolCalls)
	return string(b)
}
