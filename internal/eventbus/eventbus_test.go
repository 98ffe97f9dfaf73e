package eventbus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestStreamKey(t *testing.T) {
	if got, want := Stream("investment"), "omni:loop:investment"; got != want {
		t.Errorf("Stream = %q, want %q", got, want)
	}
}

func TestDecode(t *testing.T) {
	ev := Event{ID: "e1", Loop: "cognition", Kind: CycleCompleted, Timestamp: time.Unix(100, 0).UTC()}
	data, _ := json.Marshal(ev)

	got, ok := decode(map[string]interface{}{"kind": "cycle_completed", "data": string(data)})
	if !ok {
		t.Fatal("decode failed")
	}
	if got.ID != "e1" || got.Kind != CycleCompleted || !got.Timestamp.Equal(ev.Timestamp) {
		t.Errorf("got %+v", got)
	}

	if _, ok := decode(map[string]interface{}{"data": 42}); ok {
		t.Error("non-string payload should not decode")
	}
	if _, ok := decode(map[string]interface{}{"data": "{"}); ok {
		t.Error("bad json should not decode")
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New(context.Background(), "://nope", zap.NewNop()); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestPublishRequiresLoop(t *testing.T) {
	b := &Bus{logger: zap.NewNop()}
	if err := b.Publish(context.Background(), Event{Kind: CycleFailed}); err == nil {
		t.Fatal("expected error for event without loop")
	}
}
