// Package reasoning turns context data into recorded decisions through
// pluggable strategies.
package reasoning

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redskulldevv/omni-agi/internal/apperr"
	"go.uber.org/zap"
)

// Config bounds the decision history.
type Config struct {
	HistoryLimit int `json:"history_limit"`
}

// DefaultConfig keeps the last 500 decisions.
func DefaultConfig() Config {
	return Config{HistoryLimit: 500}
}

// Engine routes decision requests to strategies and keeps their history.
type Engine struct {
	config     Config
	strategies map[DecisionType]Strategy
	history    []Decision
	now        func() time.Time
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewEngine creates an engine with no strategies registered.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultConfig().HistoryLimit
	}
	return &Engine{
		config:     cfg,
		strategies: make(map[DecisionType]Strategy),
		now:        time.Now,
		logger:     logger,
	}
}

// Register sets the strategy for a decision type, replacing any existing one.
func (e *Engine) Register(typ DecisionType, s Strategy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategies[typ] = s
}

// Decide applies constraints to data, runs the strategy for typ and records
// the decision.
func (e *Engine) Decide(ctx context.Context, typ DecisionType, data map[string]interface{}, constraints *Constraints) (Decision, error) {
	e.mu.RLock()
	strategy, ok := e.strategies[typ]
	e.mu.RUnlock()
	if !ok {
		return Decision{}, apperr.NotFound("strategy", string(typ))
	}

	input := applyConstraints(data, constraints)
	analysis, err := strategy.Analyze(ctx, input)
	if err != nil {
		return Decision{}, fmt.Errorf("decide %s: %w", typ, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	d := Decision{
		ID:         uuid.New().String(),
		Type:       typ,
		Action:     analysis.Action,
		Confidence: math.Max(0, math.Min(1, analysis.Confidence)),
		Reasoning:  append([]string{}, analysis.Reasoning...),
		Evidence: map[string]interface{}{
			"context":          input,
			"analysis_results": analysis.Details,
			"timestamp":        now.Format(time.RFC3339),
		},
		Timestamp: now,
		Metadata:  map[string]interface{}{"analysis": analysis},
	}

	e.history = append(e.history, d)
	if over := len(e.history) - e.config.HistoryLimit; over > 0 {
		e.history = append([]Decision(nil), e.history[over:]...)
	}

	e.logger.Info("decision made",
		zap.String("type", string(typ)),
		zap.String("action", d.Action),
		zap.Float64("confidence", d.Confidence))
	return d, nil
}

// Validate reports whether d satisfies every criterion set in c.
func Validate(d Decision, c Criteria) bool {
	if c.MinConfidence > 0 && d.Confidence < c.MinConfidence {
		return false
	}
	for _, key := range c.RequiredEvidence {
		if _, ok := d.Evidence[key]; !ok {
			return false
		}
	}
	if c.ReasoningDepth > 0 && len(d.Reasoning) < c.ReasoningDepth {
		return false
	}
	return true
}

// History returns recorded decisions, oldest first, filtered by type when
// typ is set and by minimum confidence.
func (e *Engine) History(typ DecisionType, minConfidence float64) []Decision {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []Decision
	for _, d := range e.history {
		if typ != "" && d.Type != typ {
			continue
		}
		if d.Confidence < minConfidence {
			continue
		}
		out = append(out, d)
	}
	return out
}

func applyConstraints(data map[string]interface{}, c *Constraints) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	if c == nil {
		return out
	}

	for key, limit := range c.ValueLimits {
		v, ok := out[key]
		if !ok {
			continue
		}
		if f, ok := toFloat(v); ok {
			out[key] = math.Max(math.Min(f, limit.Max), limit.Min)
		}
	}
	for key, kind := range c.RequiredKinds {
		v, ok := out[key]
		if !ok {
			continue
		}
		if coerced, ok := coerce(v, kind); ok {
			out[key] = coerced
		} else {
			delete(out, key)
		}
	}
	return out
}
