package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"vargasjr/internal/domain"
	"vargasjr/internal/provider"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

var catalog = []domain.ActionSpec{
	{Name: "no_action", Description: "Do nothing.", Parameters: map[string]any{"type": "object"}},
	{Name: "text_reply", Description: "Reply by SMS.", Parameters: map[string]any{"type": "object"}},
}

type stubProvider struct {
	resp  *domain.ChatResponse
	err   error
	tools bool
	last  domain.ChatRequest
}

func (s *stubProvider) Name() string                      { return "stub" }
func (s *stubProvider) SupportsToolCalling() bool         { return s.tools }
func (s *stubProvider) Healthy(ctx context.Context) error { return nil }
func (s *stubProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	s.last = req
	return s.resp, s.err
}

func classify(t *testing.T, p *stubProvider) domain.Selection {
	t.Helper()
	c := New(Config{Provider: p, Logger: testLogger()})
	sel, err := c.Classify(context.Background(), domain.ClassifyRequest{System: "sys", User: "msg", Catalog: catalog})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	return sel
}

func TestClassify_SingleToolCall(t *testing.T) {
	p := &stubProvider{tools: true, resp: &domain.ChatResponse{ToolCalls: []domain.ToolCall{
		{Name: "text_reply", Arguments: map[string]any{"message": "hi"}},
	}}}
	sel := classify(t, p)
	if !sel.FunctionCall || sel.Name != "text_reply" || sel.Args["message"] != "hi" {
		t.Fatalf("unexpected selection: %+v", sel)
	}
	if p.last.ToolChoice != "required" || len(p.last.Tools) != len(catalog) {
		t.Fatalf("catalog not offered as tools: %+v", p.last)
	}
	if p.last.Messages[0].Role != "system" || p.last.Messages[1].Content != "msg" {
		t.Fatalf("unexpected messages: %+v", p.last.Messages)
	}
}

func TestClassify_NoCallIsNotAFunctionCall(t *testing.T) {
	sel := classify(t, &stubProvider{tools: true, resp: &domain.ChatResponse{Content: "I think you should reply."}})
	if sel.FunctionCall {
		t.Fatalf("expected not-a-function-call, got %+v", sel)
	}
	if sel.Raw != "I think you should reply." {
		t.Fatalf("raw reply not kept: %q", sel.Raw)
	}
}

func TestClassify_MultipleCallsIsNotAFunctionCall(t *testing.T) {
	sel := classify(t, &stubProvider{tools: true, resp: &domain.ChatResponse{ToolCalls: []domain.ToolCall{
		{Name: "text_reply"}, {Name: "no_action"},
	}}})
	if sel.FunctionCall {
		t.Fatalf("two calls must not be accepted: %+v", sel)
	}
}

func TestClassify_UnknownName(t *testing.T) {
	sel := classify(t, &stubProvider{tools: true, resp: &domain.ChatResponse{ToolCalls: []domain.ToolCall{
		{Name: "delete_everything"},
	}}})
	if sel.FunctionCall {
		t.Fatalf("unknown action must not be accepted: %+v", sel)
	}
}

func TestClassify_RecoversCallFromContent(t *testing.T) {
	p := &stubProvider{tools: false, resp: &domain.ChatResponse{
		Content: "assistant\n```json\n{\"name\": \"Text-Reply\", \"arguments\": {\"message\": \"yo\"}}\n```",
	}}
	sel := classify(t, p)
	if !sel.FunctionCall || sel.Name != "text_reply" || sel.Args["message"] != "yo" {
		t.Fatalf("expected recovered text_reply, got %+v", sel)
	}
	if len(p.last.Tools) != 0 {
		t.Fatal("tools must not be sent to a provider without tool calling")
	}
}

func TestClassify_ProviderError(t *testing.T) {
	c := New(Config{Provider: &stubProvider{err: errors.New("boom")}, Logger: testLogger()})
	if _, err := c.Classify(context.Background(), domain.ClassifyRequest{Catalog: catalog}); err == nil {
		t.Fatal("expected provider error to surface")
	}
}

func TestClassify_OverOpenAIProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["tool_choice"] != "required" {
			t.Errorf("expected tool_choice=required, got %v", body["tool_choice"])
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":null,"tool_calls":[
			{"id":"c1","type":"function","function":{"name":"no_action","arguments":"{}"}}]},
			"finish_reason":"tool_calls"}]}`))
	}))
	defer srv.Close()

	p := provider.NewOpenAI(provider.OpenAIConfig{APIBase: srv.URL, Logger: testLogger()})
	c := New(Config{Provider: p, Logger: testLogger()})
	sel, err := c.Classify(context.Background(), domain.ClassifyRequest{System: "s", User: "u", Catalog: catalog})
	if err != nil {
		t.Fatal(err)
	}
	if !sel.FunctionCall || sel.Name != "no_action" {
		t.Fatalf("unexpected selection %+v", sel)
	}
}
