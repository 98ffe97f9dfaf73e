package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redskulldevv/omni-agi/internal/apperr"
	"github.com/redskulldevv/omni-agi/internal/resilience"
	"go.uber.org/zap"
)

const service = "llm"

// ReasonerConfig shapes the prompts sent by the Reasoner.
type ReasonerConfig struct {
	Model        string  `json:"model"`
	MaxTokens    int     `json:"max_tokens"`
	Temperature  float64 `json:"temperature"`
	SystemPrompt string  `json:"system_prompt"`
}

// DefaultSystemPrompt frames the agent for every request.
const DefaultSystemPrompt = "You are an autonomous crypto market agent. " +
	"Be concise, quantify uncertainty and never invent prices or balances."

// Reasoner is the narrow LLM surface used by the cognition loop. Every call
// goes through the router and a resilience guard; failures are
// *apperr.ServiceError.
type Reasoner struct {
	router *Router
	guard  *resilience.Guard
	config ReasonerConfig
	logger *zap.Logger
}

// NewReasoner creates a Reasoner over router.
func NewReasoner(router *Router, guard *resilience.Guard, cfg ReasonerConfig, logger *zap.Logger) *Reasoner {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	return &Reasoner{router: router, guard: guard, config: cfg, logger: logger}
}

// GenerateResponse answers prompt with facts rendered as JSON context.
func (r *Reasoner) GenerateResponse(ctx context.Context, prompt string, facts map[string]interface{}) (string, error) {
	content := prompt
	if len(facts) > 0 {
		raw, err := json.MarshalIndent(facts, "", "  ")
		if err != nil {
			return "", apperr.Invalid("encode prompt context: %v", err)
		}
		content = fmt.Sprintf("%s\n\nContext:\n%s", prompt, raw)
	}
	return r.complete(ctx, "generate_response", content)
}

const analyzeMarketPrompt = `Analyze the market data below and reply with a single JSON object:
{"action": "buy" | "sell" | "hold", "confidence": number between 0 and 1,
 "sentiment": number between -1 and 1, "reasoning": [short strings]}

Market data:
%s`

// AnalyzeMarket asks for a structured market analysis.
func (r *Reasoner) AnalyzeMarket(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, apperr.Invalid("encode market data: %v", err)
	}
	reply, err := r.complete(ctx, "analyze_market", fmt.Sprintf(analyzeMarketPrompt, raw))
	if err != nil {
		return nil, err
	}

	var out map[string]interface{}
	if err := DecodeJSON(reply, &out); err != nil {
		return nil, apperr.Service(service, "analyze_market", err)
	}
	return out, nil
}

func (r *Reasoner) complete(ctx context.Context, op, content string) (string, error) {
	req := &ChatRequest{
		Model: r.config.Model,
		Messages: []Message{
			{Role: roleSystem, Content: r.config.SystemPrompt},
			{Role: roleUser, Content: content},
		},
		MaxTokens:   r.config.MaxTokens,
		Temperature: r.config.Temperature,
	}

	var resp *ChatResponse
	err := r.guard.Do(ctx, op, func(ctx context.Context) error {
		var err error
		resp, err = r.router.Route(ctx, op, req)
		return err
	})
	if err != nil {
		return "", err
	}
	r.logger.Debug("llm call",
		zap.String("op", op),
		zap.String("model", resp.Model),
		zap.Int("tokens", resp.Usage.TotalTokens))
	return resp.Content, nil
}

// DecodeJSON unmarshals the first JSON value found in an LLM reply,
// tolerating markdown fences and surrounding prose.
func DecodeJSON(reply string, v interface{}) error {
	s := strings.TrimSpace(reply)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		s = strings.TrimSpace(rest)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return fmt.Errorf("no JSON in reply %q", truncate(reply, 120))
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return fmt.Errorf("unterminated JSON in reply %q", truncate(reply, 120))
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return fmt.Errorf("decode reply JSON: %w", err)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
