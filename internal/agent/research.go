package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/redskulldevv/omni-agi/internal/eventbus"
	"github.com/redskulldevv/omni-agi/internal/learning"
	"github.com/redskulldevv/omni-agi/internal/memory"
	"github.com/redskulldevv/omni-agi/internal/supervisor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ResearchCycle researches every configured topic with bounded
// concurrency. Reports are kept as semantic memories and indexed for
// recall. The cycle fails only when every topic failed.
func (a *Agent) ResearchCycle(ctx context.Context) supervisor.Result {
	if a.deps.Reasoner == nil || len(a.cfg.ResearchTopics) == 0 {
		return supervisor.Done()
	}

	var (
		mu       sync.Mutex
		firstErr error
		failed   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.ResearchConcurrency)
	for _, topic := range a.cfg.ResearchTopics {
		g.Go(func() error {
			if err := a.research(gctx, topic); err != nil {
				a.logger.Warn("research topic failed", zap.String("topic", topic), zap.Error(err))
				mu.Lock()
				failed++
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
			// Topics fail independently.
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return supervisor.AbortErr(err)
	}
	if failed == len(a.cfg.ResearchTopics) {
		a.publish(ctx, "research", eventbus.CycleFailed, map[string]interface{}{"error": firstErr.Error()})
		return supervisor.Classify(firstErr)
	}
	a.publish(ctx, "research", eventbus.CycleCompleted, map[string]interface{}{
		"topics": len(a.cfg.ResearchTopics),
		"failed": failed,
	})
	return supervisor.Done()
}

func (a *Agent) research(ctx context.Context, topic string) error {
	report, err := a.deps.Reasoner.GenerateResponse(ctx, fmt.Sprintf(researchPrompt, topic), nil)
	if err != nil {
		return fmt.Errorf("research %q: %w", topic, err)
	}
	report = strings.TrimSpace(report)
	if report == "" {
		return fmt.Errorf("research %q: empty report", topic)
	}

	a.remember(ctx, report, memory.Semantic, memory.Medium,
		memory.Tags(topic, "research"), map[string]interface{}{"topic": topic})
	if a.deps.Recall != nil {
		if err := a.deps.Recall.RememberReport(ctx, topic, report); err != nil {
			a.logger.Debug("index report failed", zap.String("topic", topic), zap.Error(err))
		}
	}
	a.learn(ctx, learning.NewExperience{
		Type:         "research",
		Action:       "report",
		Context:      map[string]interface{}{"topic": topic},
		Outcome:      map[string]interface{}{"length": len(report)},
		SuccessScore: 1,
		Importance:   learning.Importance(0.4),
	})
	return nil
}
