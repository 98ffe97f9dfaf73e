package agent

import (
	"context"
	"fmt"
	"strings"

	ctxmgr "github.com/redskulldevv/omni-agi/internal/context"
	"github.com/redskulldevv/omni-agi/internal/eventbus"
	"github.com/redskulldevv/omni-agi/internal/goal"
	"github.com/redskulldevv/omni-agi/internal/learning"
	"github.com/redskulldevv/omni-agi/internal/memory"
	"github.com/redskulldevv/omni-agi/internal/provider"
	"github.com/redskulldevv/omni-agi/internal/rag"
	"github.com/redskulldevv/omni-agi/internal/supervisor"
	"go.uber.org/zap"
)

// plan is the reply expected for one goal.
type plan struct {
	Summary  string   `json:"summary"`
	Progress *float64 `json:"progress"`
	Actions  []action `json:"actions"`
}

type action struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type proposedGoal struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Priority    float64 `json:"priority"`
}

// CognitionCycle runs one pass of the cognition loop: every active goal is
// evaluated against the current context and its memories, the resulting
// actions are executed and scored, then new goals are proposed and the
// stores maintained.
func (a *Agent) CognitionCycle(ctx context.Context) supervisor.Result {
	if a.deps.Reasoner == nil {
		a.maintain(ctx)
		return supervisor.Done()
	}

	situation := a.deps.Contexts.Merge(ctxmgr.Types...)
	goals := a.deps.Goals.Active("")

	var firstErr error
	processed := 0
	for _, g := range goals {
		if err := ctx.Err(); err != nil {
			return supervisor.AbortErr(err)
		}
		if err := a.pursue(ctx, g, situation); err != nil {
			a.logger.Warn("goal cycle failed", zap.String("goal", g.ID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		processed++
	}

	if err := a.proposeGoals(ctx, situation); err != nil {
		a.logger.Warn("goal generation failed", zap.Error(err))
	}
	a.maintain(ctx)

	if len(goals) > 0 && processed == 0 && firstErr != nil {
		a.publish(ctx, "cognition", eventbus.CycleFailed, map[string]interface{}{"error": firstErr.Error()})
		return supervisor.Classify(firstErr)
	}
	a.publish(ctx, "cognition", eventbus.CycleCompleted, map[string]interface{}{
		"goals":     len(goals),
		"processed": processed,
	})
	return supervisor.Done()
}

// pursue evaluates one goal and applies the resulting plan.
func (a *Agent) pursue(ctx context.Context, g goal.Goal, situation map[string]interface{}) error {
	tags := a.widenTags(ctx, memory.GoalTags(string(g.Type), g.Description))
	memories := a.deps.Memory.RetrieveByTags(tags, "", a.cfg.MemoriesPerGoal)
	recalled := a.recall(ctx, g.Description)

	prompt := fmt.Sprintf(goalPrompt, g.Type, g.Priority, g.Progress, g.Description,
		memory.FormatPrompt(memories, a.cfg.PromptTokenBudget), recalled)
	reply, err := a.deps.Reasoner.GenerateResponse(ctx, prompt, situation)
	if err != nil {
		return fmt.Errorf("goal %s: %w", g.ID, err)
	}

	var p plan
	if err := provider.DecodeJSON(reply, &p); err != nil {
		// Free text still counts as an analysis of the goal.
		p = plan{Summary: reply}
	}

	executed, failed := 0, 0
	for _, act := range p.Actions {
		if err := a.execute(ctx, g, act); err != nil {
			failed++
			a.logger.Warn("action failed",
				zap.String("goal", g.ID),
				zap.String("action", act.Type),
				zap.Error(err))
			continue
		}
		executed++
	}

	score := 0.5
	if total := executed + failed; total > 0 {
		score = float64(executed) / float64(total)
	}
	a.learn(ctx, learning.NewExperience{
		Type:   string(g.Type),
		Action: actionLabel(p.Actions),
		Context: map[string]interface{}{
			"goal_type": string(g.Type),
			"progress":  g.Progress,
		},
		Outcome: map[string]interface{}{
			"executed": executed,
			"failed":   failed,
			"summary":  p.Summary,
		},
		SuccessScore: score,
		Importance:   learning.Importance(g.Priority),
	})

	if p.Summary != "" {
		a.remember(ctx, p.Summary, memory.Working, memory.Medium,
			memory.GoalTags(string(g.Type), g.Description),
			map[string]interface{}{"goal_id": g.ID})
	}

	if p.Progress != nil && *p.Progress > g.Progress {
		if _, err := a.deps.Goals.UpdateProgress(g.ID, *p.Progress, map[string]float64{
			"actions_executed": float64(executed),
			"actions_failed":   float64(failed),
		}); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}
	}
	return nil
}

func (a *Agent) execute(ctx context.Context, g goal.Goal, act action) error {
	switch act.Type {
	case "post_update":
		if a.deps.Social == nil || act.Content == "" {
			return nil
		}
		a.deps.Social.PostUpdate(ctx, act.Content)
		return nil
	case "store_memory":
		if act.Content == "" {
			return nil
		}
		a.remember(ctx, act.Content, memory.ShortTerm, memory.Medium,
			memory.Tags(act.Content, string(g.Type)), map[string]interface{}{"goal_id": g.ID})
		return nil
	case "analyze_market":
		market, ok := a.deps.Contexts.Get(ctxmgr.Market)
		if !ok {
			return nil
		}
		analysis, err := a.deps.Reasoner.AnalyzeMarket(ctx, market.Data)
		if err != nil {
			return err
		}
		a.recordAnalysis(analysis)
		return nil
	}
	return fmt.Errorf("unknown action %q", act.Type)
}

// recordAnalysis stores an LLM market analysis as the analysis context.
func (a *Agent) recordAnalysis(analysis map[string]interface{}) {
	data := ctxmgr.AnalysisData{Signals: make(map[string]float64)}
	if v, ok := analysis["action"].(string); ok {
		data.Action = v
	}
	if v, ok := analysis["confidence"].(float64); ok {
		data.Confidence = v
	}
	if v, ok := analysis["sentiment"].(float64); ok {
		data.Signals["sentiment"] = v
	}
	if reasons, ok := analysis["reasoning"].([]interface{}); ok {
		parts := make([]string, 0, len(reasons))
		for _, r := range reasons {
			parts = append(parts, fmt.Sprint(r))
		}
		data.Summary = strings.Join(parts, "; ")
	}
	a.deps.Contexts.Add(data)
}

func (a *Agent) recall(ctx context.Context, query string) string {
	if a.deps.Recall == nil {
		return ""
	}
	results, err := a.deps.Recall.Recall(ctx, query, a.cfg.RecallResults)
	if err != nil {
		a.logger.Debug("recall failed", zap.Error(err))
		return ""
	}
	return rag.FormatContext(results)
}

// proposeGoals asks for new goals while fewer than MaxOpenGoals are open.
func (a *Agent) proposeGoals(ctx context.Context, situation map[string]interface{}) error {
	open := a.deps.Goals.Open()
	room := a.cfg.MaxOpenGoals - len(open)
	if room <= 0 {
		return nil
	}

	var b strings.Builder
	for _, g := range open {
		fmt.Fprintf(&b, "- [%s] %s (%.0f%%)\n", g.Type, g.Description, g.Progress*100)
	}
	if b.Len() == 0 {
		b.WriteString("(none)\n")
	}

	reply, err := a.deps.Reasoner.GenerateResponse(ctx, fmt.Sprintf(newGoalsPrompt, room, b.String()), situation)
	if err != nil {
		return err
	}
	var proposed []proposedGoal
	if err := provider.DecodeJSON(reply, &proposed); err != nil {
		return fmt.Errorf("decode goals: %w", err)
	}

	created := 0
	for _, pg := range proposed {
		if created >= room {
			break
		}
		if duplicateGoal(open, pg.Description) {
			continue
		}
		g, err := a.deps.Goals.Create(goal.NewGoal{
			Type:        goal.Type(pg.Type),
			Description: pg.Description,
			Priority:    pg.Priority,
			Metadata:    map[string]interface{}{"source": "cognition"},
		})
		if err != nil {
			a.logger.Debug("rejected proposed goal", zap.String("description", pg.Description), zap.Error(err))
			continue
		}
		created++
		a.logger.Info("goal proposed",
			zap.String("goal", g.ID),
			zap.String("type", string(g.Type)),
			zap.String("description", g.Description))
	}
	return nil
}

// maintain consolidates memory, expires overdue goals and refreshes the
// system context.
func (a *Agent) maintain(ctx context.Context) {
	for _, typ := range memory.Types {
		for _, m := range a.deps.Memory.Consolidate(typ) {
			if a.deps.Recall != nil {
				if err := a.deps.Recall.Remember(ctx, m); err != nil {
					a.logger.Debug("index memory failed", zap.String("memory", m.ID), zap.Error(err))
				}
			}
			if a.deps.Graph != nil {
				if err := a.deps.Graph.SaveMemory(ctx, m); err != nil {
					a.logger.Debug("graph mirror failed", zap.String("memory", m.ID), zap.Error(err))
				}
			}
		}
	}

	if expired := a.deps.Goals.ExpireOverdue(); len(expired) > 0 {
		a.logger.Info("expired overdue goals", zap.Int("count", len(expired)))
	}

	perf := a.deps.Learner.PerformanceSummary(a.cfg.SummaryWindow)
	a.deps.Contexts.Add(ctxmgr.SystemData{
		Healthy:    perf.ExperienceCount == 0 || perf.AverageSuccess >= 0.3,
		Uptime:     a.now().Sub(a.started),
		ErrorCount: len(a.deps.Goals.Failed()),
	}, ctxmgr.NoExpiry())
}

func actionLabel(actions []action) string {
	if len(actions) == 0 {
		return "analyze"
	}
	types := make([]string, 0, len(actions))
	for _, act := range actions {
		types = append(types, act.Type)
	}
	return strings.Join(types, "+")
}

func duplicateGoal(open []goal.Goal, description string) bool {
	for _, g := range open {
		if strings.EqualFold(strings.TrimSpace(g.Description), strings.TrimSpace(description)) {
			return true
		}
	}
	return false
}
