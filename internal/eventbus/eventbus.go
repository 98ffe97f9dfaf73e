// Package eventbus publishes loop events to Redis Streams, one stream per
// supervisor loop.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Kind names an event.
type Kind string

const (
	CycleCompleted Kind = "cycle_completed"
	CycleFailed    Kind = "cycle_failed"
	GoalCompleted  Kind = "goal_completed"
	GoalFailed     Kind = "goal_failed"
	TradeExecuted  Kind = "trade_executed"
)

// Event is something a loop did.
type Event struct {
	ID        string                 `json:"id"`
	Loop      string                 `json:"loop"`
	Kind      Kind                   `json:"kind"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

const (
	streamPrefix = "omni:loop:"
	// streamMaxLen caps each stream; trimming is approximate.
	streamMaxLen = 10000
)

// Stream returns the Redis stream key for loop.
func Stream(loop string) string { return streamPrefix + loop }

// Bus publishes and reads events through Redis Streams.
type Bus struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// New connects to redisURL (redis://host:port/db) and pings it.
func New(ctx context.Context, redisURL string, logger *zap.Logger) (*Bus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Bus{rdb: rdb, logger: logger}, nil
}

// Publish appends ev to its loop's stream, filling ID and Timestamp.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if ev.Loop == "" {
		return fmt.Errorf("publish %s: event has no loop", ev.Kind)
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	stream := Stream(ev.Loop)
	err = b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"kind": string(ev.Kind),
			"data": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", stream, err)
	}

	b.logger.Debug("published event",
		zap.String("loop", ev.Loop),
		zap.String("kind", string(ev.Kind)))
	return nil
}

// Subscribe streams new events of loop until ctx is cancelled, at which
// point the channel is closed.
func (b *Bus) Subscribe(ctx context.Context, loop string) <-chan Event {
	ch := make(chan Event, 16)
	stream := Stream(loop)

	go func() {
		defer close(ch)
		lastID := "$"

		for ctx.Err() == nil {
			results, err := b.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{stream, lastID},
				Count:   10,
				Block:   2 * time.Second,
			}).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				b.logger.Warn("read stream failed", zap.String("stream", stream), zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			for _, r := range results {
				for _, msg := range r.Messages {
					lastID = msg.ID
					ev, ok := decode(msg.Values)
					if !ok {
						continue
					}
					select {
					case ch <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch
}

// Recent returns up to n of the newest events of loop, newest first.
func (b *Bus) Recent(ctx context.Context, loop string, n int64) ([]Event, error) {
	msgs, err := b.rdb.XRevRangeN(ctx, Stream(loop), "+", "-", n).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", Stream(loop), err)
	}
	out := make([]Event, 0, len(msgs))
	for _, m := range msgs {
		if ev, ok := decode(m.Values); ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

func decode(values map[string]interface{}) (Event, bool) {
	data, ok := values["data"].(string)
	if !ok {
		return Event{}, false
	}
	var ev Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return Event{}, false
	}
	return ev, true
}

// Close shuts down the Redis connection.
func (b *Bus) Close() error {
	return b.rdb.Close()
}
