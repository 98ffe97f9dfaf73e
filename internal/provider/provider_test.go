package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redskulldevv/omni-agi/internal/apperr"
	"github.com/redskulldevv/omni-agi/internal/resilience"
	"go.uber.org/zap"
)

type stubProvider struct {
	id      string
	reply   string
	err     error
	calls   int
	lastReq *ChatRequest
}

func (s *stubProvider) ID() string   { return s.id }
func (s *stubProvider) Name() string { return s.id }
func (s *stubProvider) Chat(_ context.Context, req *ChatRequest) (*ChatResponse, error) {
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &ChatResponse{Model: s.id, Content: s.reply}, nil
}
func (s *stubProvider) ListModels(context.Context) ([]Model, error) { return nil, nil }
func (s *stubProvider) HealthCheck(context.Context) error           { return s.err }

func TestAnthropicProviderChat(t *testing.T) {
	var body map[string]interface{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("got api key %q", got)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
			"content": [{"type": "text", "text": "hello"}, {"type": "text", "text": " there"}],
			"stop_reason": "end_turn", "stop_sequence": null,
			"usage": {"input_tokens": 5, "output_tokens": 2}
		}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewAnthropicProvider(ProviderConfig{APIKey: "test-key", Endpoint: srv.URL, Models: []string{"claude-test"}}, zap.NewNop())
	resp, err := p.Chat(context.Background(), &ChatRequest{Messages: []Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello there" {
		t.Errorf("got content %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 7 {
		t.Errorf("got %d tokens, want 7", resp.Usage.TotalTokens)
	}
	if body["model"] != "claude-test" {
		t.Errorf("got model %v", body["model"])
	}
	if msgs, _ := body["messages"].([]interface{}); len(msgs) != 1 {
		t.Errorf("system message should be lifted out, got messages %v", body["messages"])
	}
	if _, ok := body["system"]; !ok {
		t.Error("expected a system prompt in the request")
	}
}

func TestOpenAIProviderChat(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		if req["model"] != "gpt-test" {
			t.Errorf("got model %v", req["model"])
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-test",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "gm"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4}
		}`))
	})
	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object": "list", "data": [{"id": "gpt-test", "object": "model"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewOpenAIProvider(ProviderConfig{Endpoint: srv.URL, Models: []string{"gpt-test"}}, zap.NewNop())
	resp, err := p.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "gm?"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "gm" || resp.FinishReason != "stop" || resp.Usage.TotalTokens != 4 {
		t.Errorf("unexpected response %+v", resp)
	}

	models, err := p.ListModels(context.Background())
	if err != nil {
		t.Fatalf("list models: %v", err)
	}
	if len(models) != 1 || models[0].ID != "gpt-test" {
		t.Errorf("got models %+v", models)
	}
	if err := p.HealthCheck(context.Background()); err != nil {
		t.Errorf("health check: %v", err)
	}
}

func TestRouterFallback(t *testing.T) {
	r := NewRouter(zap.NewNop())
	primary := &stubProvider{id: "a", err: errors.New("overloaded")}
	backup := &stubProvider{id: "b", reply: "ok"}
	r.Register(primary)
	r.Register(backup)
	r.SetFallbacks([]string{"missing", "b"})

	resp, err := r.Route(context.Background(), "cognition", &ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "ok" || primary.calls != 1 || backup.calls != 1 {
		t.Errorf("got %q, calls a=%d b=%d", resp.Content, primary.calls, backup.calls)
	}

	r.Bind("research", "b")
	r.Route(context.Background(), "research", &ChatRequest{})
	if primary.calls != 1 || backup.calls != 2 {
		t.Errorf("binding ignored: calls a=%d b=%d", primary.calls, backup.calls)
	}

	backup.err = errors.New("down")
	if _, err := r.Route(context.Background(), "cognition", &ChatRequest{}); err == nil {
		t.Fatal("expected error when every provider fails")
	}

	if _, err := NewRouter(zap.NewNop()).Route(context.Background(), "x", &ChatRequest{}); err == nil {
		t.Fatal("expected error with no providers")
	}
}

func newTestReasoner(p Provider) *Reasoner {
	router := NewRouter(zap.NewNop())
	router.Register(p)
	guard := resilience.NewGuard(service, resilience.Config{
		Retry: resilience.RetryConfig{MaxRetries: 1, InitialInterval: time.Millisecond},
	}, zap.NewNop())
	return NewReasoner(router, guard, ReasonerConfig{}, zap.NewNop())
}

func TestReasonerGenerateResponse(t *testing.T) {
	stub := &stubProvider{id: "stub", reply: "sounds good"}
	r := newTestReasoner(stub)

	got, err := r.GenerateResponse(context.Background(), "Draft an update", map[string]interface{}{"eth": 3000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "sounds good" {
		t.Errorf("got %q", got)
	}
	msgs := stub.lastReq.Messages
	if len(msgs) != 2 || msgs[0].Role != "system" || msgs[0].Content != DefaultSystemPrompt {
		t.Fatalf("unexpected messages %+v", msgs)
	}
	if want := "Draft an update\n\nContext:\n{\n  \"eth\": 3000\n}"; msgs[1].Content != want {
		t.Errorf("got prompt %q, want %q", msgs[1].Content, want)
	}
}

func TestReasonerServiceError(t *testing.T) {
	stub := &stubProvider{id: "stub", err: errors.New("503")}
	r := newTestReasoner(stub)

	_, err := r.GenerateResponse(context.Background(), "hi", nil)
	var se *apperr.ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("expected *apperr.ServiceError, got %v", err)
	}
	if se.Service != "llm" || se.Op != "generate_response" {
		t.Errorf("got %s/%s", se.Service, se.Op)
	}
	if stub.calls != 2 {
		t.Errorf("got %d calls, want 2 (one retry)", stub.calls)
	}
}

func TestReasonerAnalyzeMarket(t *testing.T) {
	stub := &stubProvider{id: "stub", reply: "Here you go:\n```json\n{\"action\": \"buy\", \"confidence\": 0.7, \"reasoning\": [\"breakout\"]}\n```"}
	r := newTestReasoner(stub)

	got, err := r.AnalyzeMarket(context.Background(), map[string]interface{}{"prices": []float64{1, 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["action"] != "buy" || got["confidence"] != 0.7 {
		t.Errorf("got %v", got)
	}

	stub.reply = "I cannot say."
	if _, err := r.AnalyzeMarket(context.Background(), nil); !errors.Is(err, apperr.ErrService) {
		t.Errorf("expected service error for a non-JSON reply, got %v", err)
	}
}

func TestDecodeJSON(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		want  int
	}{
		{"bare", `[{"a":1},{"a":2}]`, 2},
		{"fenced", "```\n[{\"a\":1}]\n```", 1},
		{"prose", `Sure! [{"a":1},{"a":2},{"a":3}] Hope that helps.`, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got []map[string]int
			if err := DecodeJSON(tc.reply, &got); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tc.want {
				t.Errorf("got %d items, want %d", len(got), tc.want)
			}
		})
	}
	var v map[string]interface{}
	if err := DecodeJSON("nothing here", &v); err == nil {
		t.Error("expected error for reply without JSON")
	}
}
