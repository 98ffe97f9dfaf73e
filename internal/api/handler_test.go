package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	ctxmgr "github.com/redskulldevv/omni-agi/internal/context"
	"github.com/redskulldevv/omni-agi/internal/gateway"
	"github.com/redskulldevv/omni-agi/internal/goal"
	"github.com/redskulldevv/omni-agi/internal/learning"
	"github.com/redskulldevv/omni-agi/internal/memory"
	"github.com/redskulldevv/omni-agi/internal/reasoning"
	"github.com/redskulldevv/omni-agi/internal/store"
	"github.com/redskulldevv/omni-agi/internal/supervisor"
	"go.uber.org/zap"
)

type fakeLoops struct{}

func (fakeLoops) Status() []supervisor.LoopStatus {
	return []supervisor.LoopStatus{{Name: "cognition", Iterations: 3, Successes: 3}}
}

// newTestServer creates a server wired with in-memory stores only.
func newTestServer(t *testing.T) (*httptest.Server, Deps) {
	t.Helper()
	logger := zap.NewNop()

	gw := gateway.New(logger)
	rest := gateway.NewRESTAdapter(time.Second, logger)
	gw.Register(rest)
	gw.SetHandler(func(msg *gateway.InboundMessage) {
		gw.Send(t.Context(), &gateway.OutboundMessage{
			Platform:  msg.Platform,
			ChannelID: msg.ChannelID,
			Content:   "echo: " + msg.Content,
		})
	})

	deps := Deps{
		Memory:      memory.NewStore(memory.DefaultConfig(), logger),
		Contexts:    ctxmgr.NewManager(ctxmgr.DefaultConfig(), logger),
		Goals:       goal.NewManager(logger),
		Learner:     learning.NewLearner(learning.DefaultConfig(), logger),
		Decisions:   reasoning.NewEngine(reasoning.DefaultConfig(), logger),
		Loops:       fakeLoops{},
		Gateway:     gw,
		Broadcaster: gateway.NewBroadcaster(gw, logger),
		REST:        rest,
	}
	ts := httptest.NewServer(NewHandler(deps, logger).Router())
	t.Cleanup(ts.Close)
	return ts, deps
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body interface{}) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func getJSON(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		resp.Body.Close()
		t.Fatalf("%s %s: expected %d, got %d", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode)
	}
}

func TestHealthCheck(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := getJSON(t, ts, "/api/health")
	expectStatus(t, resp, 200)
	var body map[string]interface{}
	decodeJSON(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
}

func TestGoalLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts, "/api/goals", map[string]interface{}{
		"type":        "market_analysis",
		"description": "Track ETH funding rates",
		"priority":    0.7,
	})
	expectStatus(t, resp, 201)
	var a goal.Goal
	decodeJSON(t, resp, &a)
	if a.Status != goal.Active {
		t.Fatalf("expected active goal, got %s", a.Status)
	}

	resp = postJSON(t, ts, "/api/goals", map[string]interface{}{
		"type":         "portfolio_management",
		"description":  "Rebalance after analysis",
		"dependencies": []string{a.ID},
	})
	expectStatus(t, resp, 201)
	var b goal.Goal
	decodeJSON(t, resp, &b)
	if b.Status != goal.Pending {
		t.Fatalf("expected pending dependent, got %s", b.Status)
	}

	resp = postJSON(t, ts, "/api/goals/"+a.ID+"/progress", map[string]interface{}{"progress": 1})
	expectStatus(t, resp, 200)
	decodeJSON(t, resp, &a)
	if a.Status != goal.Completed {
		t.Errorf("expected completed, got %s", a.Status)
	}

	resp = getJSON(t, ts, "/api/goals/"+b.ID)
	expectStatus(t, resp, 200)
	decodeJSON(t, resp, &b)
	if b.Status != goal.Active {
		t.Errorf("expected dependent to activate, got %s", b.Status)
	}

	resp = postJSON(t, ts, "/api/goals/"+b.ID+"/fail", map[string]string{"reason": "market closed"})
	expectStatus(t, resp, 200)
	decodeJSON(t, resp, &b)
	if b.Status != goal.Failed || b.FailReason != "market closed" {
		t.Errorf("got %s / %q", b.Status, b.FailReason)
	}

	resp = getJSON(t, ts, "/api/goals?status=failed")
	expectStatus(t, resp, 200)
	var failed []goal.Goal
	decodeJSON(t, resp, &failed)
	if len(failed) != 1 || failed[0].ID != b.ID {
		t.Errorf("failed goals = %+v", failed)
	}

	resp = getJSON(t, ts, "/api/goals/report")
	expectStatus(t, resp, 200)
	var report goal.Report
	decodeJSON(t, resp, &report)
	if report.Completed != 1 || report.Failed != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestGoalErrors(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts, "/api/goals", map[string]string{"type": "nonsense", "description": "x"})
	expectStatus(t, resp, 400)
	resp.Body.Close()

	resp = getJSON(t, ts, "/api/goals/missing")
	expectStatus(t, resp, 404)
	resp.Body.Close()

	resp = postJSON(t, ts, "/api/goals/missing/progress", map[string]float64{"progress": 0.5})
	expectStatus(t, resp, 404)
	resp.Body.Close()

	resp = getJSON(t, ts, "/api/goals?status=sleeping")
	expectStatus(t, resp, 400)
	resp.Body.Close()
}

func TestMemoryRoutes(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts, "/api/memories", map[string]interface{}{
		"content":  "Solana fees spiked during the mint",
		"type":     "episodic",
		"priority": "high",
		"tags":     []string{"solana", "fees"},
	})
	expectStatus(t, resp, 201)
	var m memory.Memory
	decodeJSON(t, resp, &m)
	if m.Priority != memory.High || m.Type != memory.Episodic {
		t.Errorf("stored %s/%s", m.Type, m.Priority)
	}

	resp = getJSON(t, ts, "/api/memories/search?tags=fees")
	expectStatus(t, resp, 200)
	var found []memory.Memory
	decodeJSON(t, resp, &found)
	if len(found) != 1 || found[0].ID != m.ID {
		t.Fatalf("search = %+v", found)
	}
	if found[0].AccessCount != 1 {
		t.Errorf("expected access count 1, got %d", found[0].AccessCount)
	}

	resp = getJSON(t, ts, "/api/memories?within=1h")
	expectStatus(t, resp, 200)
	var recent []memory.Memory
	decodeJSON(t, resp, &recent)
	if len(recent) != 1 {
		t.Errorf("recent = %d, want 1", len(recent))
	}

	resp = getJSON(t, ts, "/api/memories/stats")
	expectStatus(t, resp, 200)
	var stats memory.Stats
	decodeJSON(t, resp, &stats)
	if stats.TotalMemories != 1 || stats.ByType[memory.Episodic] != 1 {
		t.Errorf("stats = %+v", stats)
	}

	resp = postJSON(t, ts, "/api/memories", map[string]string{"content": "x", "priority": "urgent"})
	expectStatus(t, resp, 400)
	resp.Body.Close()

	resp = getJSON(t, ts, "/api/memories/search")
	expectStatus(t, resp, 400)
	resp.Body.Close()

	resp = getJSON(t, ts, "/api/memories?within=soon")
	expectStatus(t, resp, 400)
	resp.Body.Close()
}

func TestContextRoutes(t *testing.T) {
	ts, deps := newTestServer(t)

	resp := postJSON(t, ts, "/api/contexts", map[string]interface{}{
		"type": "market",
		"data": map[string]interface{}{
			"prices":    map[string]float64{"ETH": 3100},
			"sentiment": 0.4,
		},
		"ttl": "10m",
	})
	expectStatus(t, resp, 201)
	resp.Body.Close()

	c, ok := deps.Contexts.Get(ctxmgr.Market)
	if !ok {
		t.Fatal("expected market context")
	}
	if md, _ := c.Payload.(ctxmgr.MarketData); md.Prices["ETH"] != 3100 {
		t.Errorf("payload = %+v", c.Payload)
	}

	resp = getJSON(t, ts, "/api/contexts")
	expectStatus(t, resp, 200)
	var snap map[string]ctxmgr.Context
	decodeJSON(t, resp, &snap)
	if _, ok := snap["market"]; !ok {
		t.Errorf("snapshot = %+v", snap)
	}

	resp = getJSON(t, ts, "/api/contexts/history?type=market")
	expectStatus(t, resp, 200)
	var history []ctxmgr.Context
	decodeJSON(t, resp, &history)
	if len(history) != 1 {
		t.Errorf("history = %d, want 1", len(history))
	}

	resp = getJSON(t, ts, "/api/contexts/summary?type=market")
	expectStatus(t, resp, 200)
	var sum ctxmgr.Summary
	decodeJSON(t, resp, &sum)
	if !sum.Found || sum.Active != 1 {
		t.Errorf("summary = %+v", sum)
	}

	resp = postJSON(t, ts, "/api/contexts", map[string]interface{}{"type": "weather", "data": map[string]int{}})
	expectStatus(t, resp, 400)
	resp.Body.Close()
}

func TestLearningAndDecisionRoutes(t *testing.T) {
	ts, deps := newTestServer(t)

	for _, score := range []float64{0.9, 0.7} {
		if _, err := deps.Learner.Record(learning.NewExperience{
			Type:         "trade",
			Action:       "buy",
			Context:      map[string]interface{}{"asset": "ETH"},
			Outcome:      map[string]interface{}{"status": "filled"},
			SuccessScore: score,
		}); err != nil {
			t.Fatal(err)
		}
	}

	resp := getJSON(t, ts, "/api/learning/summary?window=1h")
	expectStatus(t, resp, 200)
	var sum learning.Summary
	decodeJSON(t, resp, &sum)
	if sum.ExperienceCount != 2 {
		t.Errorf("summary = %+v", sum)
	}

	resp = postJSON(t, ts, "/api/learning/recommendation", map[string]interface{}{
		"type":    "trade",
		"context": map[string]interface{}{"asset": "ETH"},
	})
	expectStatus(t, resp, 200)
	var rec learning.Recommendation
	decodeJSON(t, resp, &rec)
	if !rec.Found || rec.Action != "buy" {
		t.Errorf("recommendation = %+v", rec)
	}

	resp = getJSON(t, ts, "/api/decisions?type=market_action&min_confidence=0.5")
	expectStatus(t, resp, 200)
	var decisions []reasoning.Decision
	decodeJSON(t, resp, &decisions)
	if len(decisions) != 0 {
		t.Errorf("decisions = %+v", decisions)
	}

	resp = getJSON(t, ts, "/api/decisions?min_confidence=high")
	expectStatus(t, resp, 400)
	resp.Body.Close()
}

func TestLoopStatus(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := getJSON(t, ts, "/api/loops")
	expectStatus(t, resp, 200)
	var loops []supervisor.LoopStatus
	decodeJSON(t, resp, &loops)
	if len(loops) != 1 || loops[0].Name != "cognition" {
		t.Errorf("loops = %+v", loops)
	}
}

func TestBroadcastValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts, "/api/broadcast", map[string]string{"type": "update"})
	expectStatus(t, resp, 400)
	resp.Body.Close()
}

func TestRESTGatewayMounted(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts, "/api/gateway/rest/message", map[string]string{
		"user_id": "u1",
		"content": "ping",
	})
	expectStatus(t, resp, 200)
	var out gateway.OutboundMessage
	decodeJSON(t, resp, &out)
	if out.Content != "echo: ping" {
		t.Errorf("reply = %q", out.Content)
	}
}

type fakeTrades struct{ trades []store.Trade }

func (f fakeTrades) RecentTrades(_ context.Context, limit int) ([]store.Trade, error) {
	if limit < len(f.trades) {
		return f.trades[:limit], nil
	}
	return f.trades, nil
}

func TestOptionalRoutes(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, path := range []string{"/api/trades", "/api/events", "/api/memories/related?tag=eth"} {
		resp := getJSON(t, ts, path)
		expectStatus(t, resp, http.StatusServiceUnavailable)
		resp.Body.Close()
	}
}

func TestRecentTrades(t *testing.T) {
	logger := zap.NewNop()
	deps := Deps{
		Memory:    memory.NewStore(memory.DefaultConfig(), logger),
		Contexts:  ctxmgr.NewManager(ctxmgr.DefaultConfig(), logger),
		Goals:     goal.NewManager(logger),
		Learner:   learning.NewLearner(learning.DefaultConfig(), logger),
		Decisions: reasoning.NewEngine(reasoning.DefaultConfig(), logger),
		Trades: fakeTrades{trades: []store.Trade{
			{ID: "t2", Asset: "ETH", Action: "sell"},
			{ID: "t1", Asset: "ETH", Action: "buy"},
		}},
	}
	ts := httptest.NewServer(NewHandler(deps, logger).Router())
	defer ts.Close()

	resp := getJSON(t, ts, "/api/trades?limit=1")
	expectStatus(t, resp, 200)
	var trades []store.Trade
	decodeJSON(t, resp, &trades)
	if len(trades) != 1 || trades[0].ID != "t2" {
		t.Errorf("trades = %+v", trades)
	}
}
