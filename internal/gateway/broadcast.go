package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/redskulldevv/omni-agi/internal/apperr"
	"go.uber.org/zap"
)

const historyLimit = 200

// BroadcastRecord tracks a sent broadcast.
type BroadcastRecord struct {
	Message *BroadcastMessage `json:"message"`
	SentAt  time.Time         `json:"sent_at"`
	Targets []string          `json:"targets"`
	Error   string            `json:"error,omitempty"`
}

// Broadcaster is the agent's outbound social surface.
type Broadcaster struct {
	gateway *Gateway
	history []BroadcastRecord
	mu      sync.Mutex
	logger  *zap.Logger
}

// NewBroadcaster creates a broadcaster backed by the given gateway.
func NewBroadcaster(gw *Gateway, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		gateway: gw,
		logger:  logger,
	}
}

// PostUpdate posts plain text to every platform. It is best-effort: failures
// are logged and recorded in the history, never returned.
func (b *Broadcaster) PostUpdate(ctx context.Context, content string) {
	if content == "" {
		return
	}
	if err := b.Send(ctx, &BroadcastMessage{Type: BroadcastUpdate, Content: content}); err != nil {
		b.logger.Warn("post update failed", zap.Error(err))
	}
}

// Send broadcasts a message to all or selected platforms via the gateway.
func (b *Broadcaster) Send(ctx context.Context, msg *BroadcastMessage) error {
	if msg.Type == "" {
		return apperr.Invalid("broadcast type is required")
	}
	if msg.Content == "" {
		return apperr.Invalid("broadcast content is required")
	}

	b.logger.Info("sending broadcast",
		zap.String("type", string(msg.Type)),
		zap.String("title", msg.Title),
		zap.Int("length", len(msg.Content)))

	err := b.gateway.Broadcast(ctx, msg)

	targets := msg.Platforms
	if len(targets) == 0 {
		targets = b.gateway.Adapters()
	}
	rec := BroadcastRecord{Message: msg, SentAt: time.Now(), Targets: targets}
	if err != nil {
		rec.Error = err.Error()
	}

	b.mu.Lock()
	b.history = append(b.history, rec)
	if len(b.history) > historyLimit {
		b.history = append([]BroadcastRecord(nil), b.history[len(b.history)-historyLimit:]...)
	}
	b.mu.Unlock()
	return err
}

// History returns up to limit of the most recent broadcasts, oldest first.
func (b *Broadcaster) History(limit int) []BroadcastRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > len(b.history) {
		limit = len(b.history)
	}
	return append([]BroadcastRecord(nil), b.history[len(b.history)-limit:]...)
}
