package agent

import (
	"context"
	"fmt"
	"strings"

	ctxmgr "github.com/redskulldevv/omni-agi/internal/context"
	"github.com/redskulldevv/omni-agi/internal/eventbus"
	"github.com/redskulldevv/omni-agi/internal/learning"
	"github.com/redskulldevv/omni-agi/internal/memory"
	"github.com/redskulldevv/omni-agi/internal/supervisor"
)

// CommunityCycle refreshes the social context from the inbound message
// count and posts an LLM-written update to every platform.
func (a *Agent) CommunityCycle(ctx context.Context) supervisor.Result {
	social := a.refreshSocial()

	if a.deps.Reasoner == nil || a.deps.Social == nil {
		return supervisor.Done()
	}

	recent := a.deps.Memory.GetRecent("", a.cfg.SummaryWindow, a.cfg.MemoriesPerGoal)
	reply, err := a.deps.Reasoner.GenerateResponse(ctx,
		fmt.Sprintf(communityPrompt, memory.FormatPrompt(recent, a.cfg.PromptTokenBudget)),
		a.deps.Contexts.Merge(ctxmgr.Market, ctxmgr.Social, ctxmgr.Analysis))
	if err != nil {
		return supervisor.Classify(err)
	}
	update := strings.TrimSpace(reply)
	if update == "" {
		return supervisor.Done()
	}

	a.deps.Social.PostUpdate(ctx, update)
	a.remember(ctx, update, memory.ShortTerm, memory.Low,
		memory.Tags(update, "community"), map[string]interface{}{"kind": "community_update"})
	a.learn(ctx, learning.NewExperience{
		Type:         "community",
		Action:       "post_update",
		Context:      map[string]interface{}{"mentions": social.Mentions},
		Outcome:      map[string]interface{}{"length": len(update)},
		SuccessScore: engagementScore(social),
		Importance:   learning.Importance(0.3),
	})
	a.publish(ctx, "community", eventbus.CycleCompleted, map[string]interface{}{
		"mentions": social.Mentions,
	})
	return supervisor.Done()
}

// refreshSocial records how many messages arrived since the last cycle.
func (a *Agent) refreshSocial() ctxmgr.SocialData {
	var data ctxmgr.SocialData
	if c, ok := a.deps.Contexts.Get(ctxmgr.Social); ok {
		data, _ = c.Payload.(ctxmgr.SocialData)
	}
	if a.deps.Inbound == nil {
		return data
	}

	total := a.deps.Inbound.InboundCount()
	a.mu.Lock()
	delta := total - a.lastInbound
	a.lastInbound = total
	a.mu.Unlock()

	data.Mentions = int(delta)
	data.Engagement = engagementScore(data)
	a.deps.Contexts.Add(data)
	return data
}

// engagementScore maps a mention count onto [0,1], saturating at 20.
func engagementScore(d ctxmgr.SocialData) float64 {
	if d.Mentions <= 0 {
		return 0
	}
	if d.Mentions >= 20 {
		return 1
	}
	return float64(d.Mentions) / 20
}
