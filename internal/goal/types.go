package goal

import "time"

// Type categorizes what a goal is about.
type Type string

const (
	MarketAnalysis      Type = "market_analysis"
	PortfolioManagement Type = "portfolio_management"
	RiskManagement      Type = "risk_management"
	SocialEngagement    Type = "social_engagement"
	Learning            Type = "learning"
	SystemOptimization  Type = "system_optimization"
)

// Types lists every goal type.
var Types = []Type{
	MarketAnalysis, PortfolioManagement, RiskManagement,
	SocialEngagement, Learning, SystemOptimization,
}

// Valid reports whether t is a known goal type.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Status is a goal's position in its lifecycle.
type Status string

const (
	Pending   Status = "pending"
	Active    Status = "active"
	Completed Status = "completed"
	Failed    Status = "failed"
	Suspended Status = "suspended"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == Completed || s == Failed
}

// MetricRecord is one progress update.
type MetricRecord struct {
	Timestamp time.Time          `json:"timestamp"`
	Progress  float64            `json:"progress"`
	Values    map[string]float64 `json:"values,omitempty"`
}

// Goal is an objective tracked by the Manager. Values handed out are copies.
type Goal struct {
	ID              string                 `json:"id"`
	Type            Type                   `json:"type"`
	Description     string                 `json:"description"`
	Priority        float64                `json:"priority"`
	Status          Status                 `json:"status"`
	CreatedAt       time.Time              `json:"created_at"`
	Deadline        time.Time              `json:"deadline,omitempty"`
	Dependencies    []string               `json:"dependencies"`
	Progress        float64                `json:"progress"`
	SuccessCriteria map[string]interface{} `json:"success_criteria,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	Metrics         []MetricRecord         `json:"metrics,omitempty"`
	CompletedAt     time.Time              `json:"completed_at,omitempty"`
	FailedAt        time.Time              `json:"failed_at,omitempty"`
	FailReason      string                 `json:"fail_reason,omitempty"`

	seq uint64
}

func (g *Goal) clone() Goal {
	out := *g
	out.Dependencies = append([]string{}, g.Dependencies...)
	out.SuccessCriteria = copyMap(g.SuccessCriteria)
	out.Metadata = copyMap(g.Metadata)
	if g.Metrics != nil {
		out.Metrics = make([]MetricRecord, len(g.Metrics))
		for i, r := range g.Metrics {
			out.Metrics[i] = r
			if r.Values != nil {
				out.Metrics[i].Values = make(map[string]float64, len(r.Values))
				for k, v := range r.Values {
					out.Metrics[i].Values[k] = v
				}
			}
		}
	}
	return out
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// NewGoal describes a goal to create.
type NewGoal struct {
	Type            Type                   `json:"type"`
	Description     string                 `json:"description"`
	Priority        float64                `json:"priority"`
	Deadline        time.Time              `json:"deadline,omitempty"`
	Dependencies    []string               `json:"dependencies,omitempty"`
	SuccessCriteria map[string]interface{} `json:"success_criteria,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// TypeReport aggregates open goals of one type.
type TypeReport struct {
	Count       int     `json:"count"`
	AvgProgress float64 `json:"avg_progress"`
}

// Report is a progress overview across all goals.
type Report struct {
	Total     int                 `json:"total"`
	Pending   int                 `json:"pending"`
	Active    int                 `json:"active"`
	Suspended int                 `json:"suspended"`
	Completed int                 `json:"completed"`
	Failed    int                 `json:"failed"`
	ByType    map[Type]TypeReport `json:"by_type"`
	Top       []Goal              `json:"top"`
}
