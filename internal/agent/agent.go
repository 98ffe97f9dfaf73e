// Package agent implements the steps of the agent's four loops: cognition,
// investment, community and research. Each step reports a supervisor.Result;
// the supervisor owns scheduling and error policy.
package agent

import (
	"context"
	"sync"
	"time"

	ctxmgr "github.com/redskulldevv/omni-agi/internal/context"
	"github.com/redskulldevv/omni-agi/internal/eventbus"
	"github.com/redskulldevv/omni-agi/internal/goal"
	"github.com/redskulldevv/omni-agi/internal/learning"
	"github.com/redskulldevv/omni-agi/internal/memory"
	"github.com/redskulldevv/omni-agi/internal/rag"
	"github.com/redskulldevv/omni-agi/internal/reasoning"
	"github.com/redskulldevv/omni-agi/internal/store"
	"github.com/redskulldevv/omni-agi/internal/wallet"
	"go.uber.org/zap"
)

// Reasoner is the LLM surface, implemented by provider.Reasoner.
type Reasoner interface {
	GenerateResponse(ctx context.Context, prompt string, facts map[string]interface{}) (string, error)
	AnalyzeMarket(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error)
}

// Social posts plain-text updates, implemented by gateway.Broadcaster.
type Social interface {
	PostUpdate(ctx context.Context, content string)
}

// InboundCounter reports how many platform messages have arrived.
type InboundCounter interface {
	InboundCount() int64
}

// Archive mirrors records for audit, implemented by store.Store.
type Archive interface {
	SaveGoal(ctx context.Context, g goal.Goal) error
	SaveExperience(ctx context.Context, e learning.Experience) error
	SaveDecision(ctx context.Context, d reasoning.Decision) error
	RecordTrade(ctx context.Context, t store.Trade) error
}

// Events publishes loop events, implemented by eventbus.Bus.
type Events interface {
	Publish(ctx context.Context, ev eventbus.Event) error
}

// Recall indexes and searches text by meaning, implemented by rag.Index.
type Recall interface {
	Remember(ctx context.Context, m memory.Memory) error
	RememberReport(ctx context.Context, topic, report string) error
	Recall(ctx context.Context, query string, k int) ([]rag.Result, error)
}

// Graph mirrors memories into a tag graph, implemented by memory.GraphStore.
type Graph interface {
	SaveMemory(ctx context.Context, m memory.Memory) error
	RelatedTags(ctx context.Context, tag string, limit int) ([]string, error)
}

// MarketFeed supplies fresh market observations.
type MarketFeed interface {
	Market(ctx context.Context) (ctxmgr.MarketData, error)
}

// Deps carries the stores and services the loops work with. The four
// cognition stores and the decision engine are required; every other
// field may be nil.
type Deps struct {
	Memory    *memory.Store
	Contexts  *ctxmgr.Manager
	Goals     *goal.Manager
	Learner   *learning.Learner
	Decisions *reasoning.Engine

	Reasoner Reasoner
	Wallet   wallet.Wallet
	Social   Social
	Inbound  InboundCounter
	Archive  Archive
	Events   Events
	Recall   Recall
	Graph    Graph
	Market   MarketFeed
}

// Config tunes the loops.
type Config struct {
	Name                string        `json:"name"`
	MaxOpenGoals        int           `json:"max_open_goals"`
	MemoriesPerGoal     int           `json:"memories_per_goal"`
	PromptTokenBudget   int           `json:"prompt_token_budget"`
	RecallResults       int           `json:"recall_results"`
	MinConfidence       float64       `json:"min_confidence"`
	TradeFraction       float64       `json:"trade_fraction"`
	PriceWindow         int           `json:"price_window"`
	ResearchTopics      []string      `json:"research_topics"`
	ResearchConcurrency int           `json:"research_concurrency"`
	SummaryWindow       time.Duration `json:"summary_window"`
}

// DefaultConfig returns the stock loop settings.
func DefaultConfig() Config {
	return Config{
		Name:                "omni",
		MaxOpenGoals:        10,
		MemoriesPerGoal:     10,
		PromptTokenBudget:   1500,
		RecallResults:       3,
		MinConfidence:       0.6,
		TradeFraction:       0.1,
		PriceWindow:         20,
		ResearchTopics:      []string{"market trends", "competitor protocols", "on-chain activity"},
		ResearchConcurrency: 3,
		SummaryWindow:       24 * time.Hour,
	}
}

// Agent runs the loop steps against its Deps.
type Agent struct {
	deps    Deps
	cfg     Config
	started time.Time
	now     func() time.Time

	mu          sync.Mutex
	positions   map[string]float64 // native amount committed per asset
	lastInbound int64

	logger *zap.Logger
}

// New creates an agent and subscribes to terminal goal transitions so they
// reach the archive and the event bus. Zero config fields take defaults.
func New(deps Deps, cfg Config, logger *zap.Logger) *Agent {
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.MaxOpenGoals <= 0 {
		cfg.MaxOpenGoals = def.MaxOpenGoals
	}
	if cfg.MemoriesPerGoal <= 0 {
		cfg.MemoriesPerGoal = def.MemoriesPerGoal
	}
	if cfg.PromptTokenBudget <= 0 {
		cfg.PromptTokenBudget = def.PromptTokenBudget
	}
	if cfg.RecallResults <= 0 {
		cfg.RecallResults = def.RecallResults
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	if cfg.TradeFraction <= 0 || cfg.TradeFraction > 1 {
		cfg.TradeFraction = def.TradeFraction
	}
	if cfg.PriceWindow < 2 {
		cfg.PriceWindow = def.PriceWindow
	}
	if cfg.ResearchTopics == nil {
		cfg.ResearchTopics = def.ResearchTopics
	}
	if cfg.ResearchConcurrency <= 0 {
		cfg.ResearchConcurrency = def.ResearchConcurrency
	}
	if cfg.SummaryWindow <= 0 {
		cfg.SummaryWindow = def.SummaryWindow
	}

	a := &Agent{
		deps:      deps,
		cfg:       cfg,
		started:   time.Now(),
		now:       time.Now,
		positions: make(map[string]float64),
		logger:    logger,
	}
	deps.Goals.Observe(a.onGoalTerminal)
	return a
}

// SetClock replaces time.Now, mainly for tests.
func (a *Agent) SetClock(now func() time.Time) {
	a.now = now
	a.started = now()
}

// Config returns the effective loop settings.
func (a *Agent) Config() Config { return a.cfg }

// auditTimeout bounds archive and event writes made outside a cycle.
const auditTimeout = 5 * time.Second

func (a *Agent) onGoalTerminal(g goal.Goal) {
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()

	if a.deps.Archive != nil {
		if err := a.deps.Archive.SaveGoal(ctx, g); err != nil {
			a.logger.Warn("archive goal failed", zap.String("goal", g.ID), zap.Error(err))
		}
	}
	kind := eventbus.GoalCompleted
	if g.Status == goal.Failed {
		kind = eventbus.GoalFailed
	}
	a.publish(ctx, "cognition", kind, map[string]interface{}{
		"goal_id": g.ID,
		"type":    string(g.Type),
		"reason":  g.FailReason,
	})
}

func (a *Agent) publish(ctx context.Context, loop string, kind eventbus.Kind, data map[string]interface{}) {
	if a.deps.Events == nil {
		return
	}
	if err := a.deps.Events.Publish(ctx, eventbus.Event{Loop: loop, Kind: kind, Data: data}); err != nil {
		a.logger.Warn("publish event failed",
			zap.String("loop", loop),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
}

// learn records an experience and mirrors it to the archive.
func (a *Agent) learn(ctx context.Context, ne learning.NewExperience) {
	exp, err := a.deps.Learner.Record(ne)
	if err != nil {
		a.logger.Warn("record experience failed", zap.String("action", ne.Action), zap.Error(err))
		return
	}
	if a.deps.Archive != nil {
		if err := a.deps.Archive.SaveExperience(ctx, exp); err != nil {
			a.logger.Warn("archive experience failed", zap.Error(err))
		}
	}
}

// widenTags adds tags that co-occur in the graph with the leading query tags.
func (a *Agent) widenTags(ctx context.Context, tags []string) []string {
	if a.deps.Graph == nil {
		return tags
	}
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		seen[t] = true
	}
	out := append([]string(nil), tags...)
	for i, t := range tags {
		if i == relatedSeeds {
			break
		}
		related, err := a.deps.Graph.RelatedTags(ctx, t, relatedPerTag)
		if err != nil {
			a.logger.Debug("related tags failed", zap.String("tag", t), zap.Error(err))
			return out
		}
		for _, r := range related {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	return out
}

const (
	relatedSeeds  = 2
	relatedPerTag = 3
)

// remember stores a memory and mirrors it into the tag graph.
func (a *Agent) remember(ctx context.Context, content string, typ memory.Type, p memory.Priority, tags []string, meta map[string]interface{}) memory.Memory {
	m := a.deps.Memory.Store(content, typ, p, tags, meta)
	if a.deps.Graph != nil {
		if err := a.deps.Graph.SaveMemory(ctx, m); err != nil {
			a.logger.Debug("graph mirror failed", zap.String("memory", m.ID), zap.Error(err))
		}
	}
	return m
}
