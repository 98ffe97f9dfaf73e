package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	ctxmgr "github.com/redskulldevv/omni-agi/internal/context"
	"github.com/redskulldevv/omni-agi/internal/gateway"
	"github.com/redskulldevv/omni-agi/internal/memory"
	"go.uber.org/zap"
)

// Replier delivers a reply to a platform channel, implemented by
// gateway.Gateway.
type Replier interface {
	Send(ctx context.Context, msg *gateway.OutboundMessage) error
}

// HandleInbound records msg as user context and an episodic memory and
// returns the reply. Without a reasoner the reply is empty.
func (a *Agent) HandleInbound(ctx context.Context, msg *gateway.InboundMessage) (string, error) {
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return "", nil
	}

	a.deps.Contexts.Add(ctxmgr.UserData{
		UserID:   msg.UserID,
		UserName: msg.UserName,
		Platform: msg.Platform,
		Message:  content,
	})
	tags := memory.Tags(content, "inbound", msg.Platform)
	a.remember(ctx, content, memory.Episodic, memory.Medium, tags, map[string]interface{}{
		"user_id":  msg.UserID,
		"platform": msg.Platform,
	})

	if a.deps.Reasoner == nil {
		return "", nil
	}

	memories := a.deps.Memory.RetrieveByTags(tags, "", a.cfg.MemoriesPerGoal)
	prompt := fmt.Sprintf(inboundPrompt, msg.UserName, msg.UserID, msg.Platform, content,
		memory.FormatPrompt(memories, a.cfg.PromptTokenBudget)+a.recall(ctx, content))
	reply, err := a.deps.Reasoner.GenerateResponse(ctx, prompt,
		a.deps.Contexts.Merge(ctxmgr.Market, ctxmgr.Social, ctxmgr.User))
	if err != nil {
		return "", fmt.Errorf("reply to %s: %w", msg.Platform, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", nil
	}

	a.remember(ctx, reply, memory.Episodic, memory.Low, memory.Tags(reply, "reply", msg.Platform),
		map[string]interface{}{"user_id": msg.UserID, "platform": msg.Platform})
	return reply, nil
}

// Handler adapts HandleInbound to a gateway message handler that sends
// replies through r. Each message is bounded by timeout.
func (a *Agent) Handler(r Replier, timeout time.Duration) gateway.MessageHandler {
	return func(msg *gateway.InboundMessage) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		reply, err := a.HandleInbound(ctx, msg)
		if err != nil {
			a.logger.Warn("inbound message failed",
				zap.String("platform", msg.Platform),
				zap.String("user", msg.UserID),
				zap.Error(err))
			reply = "Sorry, I could not process that right now."
		}
		if reply == "" {
			return
		}
		if err := r.Send(ctx, &gateway.OutboundMessage{
			Platform:  msg.Platform,
			ChannelID: msg.ChannelID,
			Content:   reply,
			ReplyTo:   msg.ReplyTo,
		}); err != nil {
			a.logger.Warn("send reply failed", zap.String("platform", msg.Platform), zap.Error(err))
		}
	}
}
