package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/redskulldevv/omni-agi/internal/apperr"
	"go.uber.org/zap"
)

type fakeAdapter struct {
	platform   string
	connectErr error
	sendErr    error
	handler    MessageHandler
	mu         sync.Mutex
	broadcasts []*BroadcastMessage
	sent       []*OutboundMessage
}

func (f *fakeAdapter) Platform() string              { return f.platform }
func (f *fakeAdapter) Connect(context.Context) error { return f.connectErr }
func (f *fakeAdapter) OnMessage(h MessageHandler)    { f.handler = h }
func (f *fakeAdapter) Close() error                  { return nil }
func (f *fakeAdapter) Send(_ context.Context, m *OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return f.sendErr
}
func (f *fakeAdapter) Broadcast(_ context.Context, m *BroadcastMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, m)
	return f.sendErr
}

func TestGatewayRoutesInbound(t *testing.T) {
	gw := New(zap.NewNop())
	a := &fakeAdapter{platform: "discord"}
	gw.Register(a)

	var got *InboundMessage
	gw.SetHandler(func(m *InboundMessage) { got = m })
	a.handler(&InboundMessage{Platform: "discord", Content: "gm"})

	if got == nil || got.Content != "gm" {
		t.Fatalf("handler got %+v", got)
	}
	if gw.InboundCount() != 1 {
		t.Errorf("inbound count = %d, want 1", gw.InboundCount())
	}
}

func TestGatewaySendUnknownPlatform(t *testing.T) {
	gw := New(zap.NewNop())
	err := gw.Send(context.Background(), &OutboundMessage{Platform: "irc"})
	if !apperr.IsNotFound(err) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestConnectAllDropsFailedAdapters(t *testing.T) {
	gw := New(zap.NewNop())
	gw.Register(&fakeAdapter{platform: "slack", connectErr: errors.New("bad token")})
	gw.Register(&fakeAdapter{platform: "discord"})

	if err := gw.ConnectAll(context.Background()); err == nil {
		t.Fatal("expected connect error")
	}
	if got := gw.Adapters(); len(got) != 1 || got[0] != "discord" {
		t.Errorf("adapters = %v, want [discord]", got)
	}
}

func TestPostUpdateIsBestEffort(t *testing.T) {
	gw := New(zap.NewNop())
	ok := &fakeAdapter{platform: "discord"}
	bad := &fakeAdapter{platform: "slack", sendErr: errors.New("rate limited")}
	gw.Register(ok)
	gw.Register(bad)
	b := NewBroadcaster(gw, zap.NewNop())

	b.PostUpdate(context.Background(), "BTC holding steady")

	if len(ok.broadcasts) != 1 || ok.broadcasts[0].Content != "BTC holding steady" {
		t.Errorf("discord broadcasts = %+v", ok.broadcasts)
	}
	hist := b.History(0)
	if len(hist) != 1 {
		t.Fatalf("history len = %d, want 1", len(hist))
	}
	if hist[0].Error == "" {
		t.Error("expected the slack failure to be recorded")
	}
}

func TestBroadcastRequiresType(t *testing.T) {
	b := NewBroadcaster(New(zap.NewNop()), zap.NewNop())
	err := b.Send(context.Background(), &BroadcastMessage{Content: "x"})
	if !apperr.IsValidation(err) {
		t.Fatalf("got %v, want validation error", err)
	}
}

func TestBroadcastHistoryBounded(t *testing.T) {
	b := NewBroadcaster(New(zap.NewNop()), zap.NewNop())
	for i := 0; i < historyLimit+10; i++ {
		b.PostUpdate(context.Background(), "tick")
	}
	if got := len(b.History(0)); got != historyLimit {
		t.Errorf("history len = %d, want %d", got, historyLimit)
	}
	if got := len(b.History(3)); got != 3 {
		t.Errorf("limited history len = %d, want 3", got)
	}
}

func TestRESTAdapterRoundTrip(t *testing.T) {
	gw := New(zap.NewNop())
	rest := NewRESTAdapter(time.Second, zap.NewNop())
	gw.Register(rest)
	gw.SetHandler(func(m *InboundMessage) {
		_ = gw.Send(context.Background(), &OutboundMessage{
			Platform:  m.Platform,
			ChannelID: m.ChannelID,
			Content:   "echo: " + m.Content,
		})
	})

	srv := httptest.NewServer(rest.Routes())
	defer srv.Close()

	body, _ := json.Marshal(map[string]string{"user_id": "u1", "content": "hello"})
	resp, err := http.Post(srv.URL+"/message", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out OutboundMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Content != "echo: hello" {
		t.Errorf("got %q, want %q", out.Content, "echo: hello")
	}
}

func TestRESTAdapterRejectsEmptyContent(t *testing.T) {
	rest := NewRESTAdapter(time.Second, zap.NewNop())
	rest.OnMessage(func(*InboundMessage) {})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/message", bytes.NewBufferString(`{"content":""}`))
	rest.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRESTFeed(t *testing.T) {
	rest := NewRESTAdapter(time.Second, zap.NewNop())
	_ = rest.Broadcast(context.Background(), &BroadcastMessage{Type: BroadcastTrade, Content: "bought"})

	rec := httptest.NewRecorder()
	rest.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/feed", nil))
	var feed []BroadcastMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &feed); err != nil {
		t.Fatal(err)
	}
	if len(feed) != 1 || feed[0].Content != "bought" {
		t.Errorf("feed = %+v", feed)
	}
}
