package reasoning

import (
	"context"
	"time"
)

// DecisionType selects the strategy used to reach a decision.
type DecisionType string

const (
	MarketAction        DecisionType = "market_action"
	RiskAssessment      DecisionType = "risk_assessment"
	PortfolioAdjustment DecisionType = "portfolio_adjustment"
	SocialResponse      DecisionType = "social_response"
	SystemOptimization  DecisionType = "system_optimization"
)

// Decision is the recorded outcome of one Decide call.
type Decision struct {
	ID         string                 `json:"id"`
	Type       DecisionType           `json:"type"`
	Action     string                 `json:"action"`
	Confidence float64                `json:"confidence"`
	Reasoning  []string               `json:"reasoning"`
	Evidence   map[string]interface{} `json:"evidence"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Analysis is what a Strategy returns.
type Analysis struct {
	Action     string                 `json:"action"`
	Confidence float64                `json:"confidence"`
	Reasoning  []string               `json:"reasoning"`
	Details    map[string]interface{} `json:"details"`
}

// Strategy turns input data into an Analysis.
type Strategy interface {
	Analyze(ctx context.Context, data map[string]interface{}) (Analysis, error)
}

// Limit bounds a numeric input.
type Limit struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Kind is the expected type of an input value.
type Kind string

const (
	KindFloat  Kind = "float"
	KindInt    Kind = "int"
	KindString Kind = "string"
	KindBool   Kind = "bool"
)

// Constraints are applied to the input data before analysis. Values that
// cannot be coerced to their required kind are dropped.
type Constraints struct {
	ValueLimits   map[string]Limit `json:"value_limits,omitempty"`
	RequiredKinds map[string]Kind  `json:"required_kinds,omitempty"`
}

// Criteria gate whether a decision is acted upon.
type Criteria struct {
	MinConfidence    float64  `json:"min_confidence"`
	RequiredEvidence []string `json:"required_evidence,omitempty"`
	ReasoningDepth   int      `json:"reasoning_depth"`
}
