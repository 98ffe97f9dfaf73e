package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const feedLimit = 50

// RESTAdapter accepts messages over HTTP and holds the request open until
// the agent replies. Broadcasts land in a feed clients can poll.
type RESTAdapter struct {
	handler MessageHandler
	timeout time.Duration
	pending map[string]chan *OutboundMessage // channelID -> waiting request
	feed    []*BroadcastMessage
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewRESTAdapter creates a REST adapter. timeout <= 0 uses 60 seconds.
func NewRESTAdapter(timeout time.Duration, logger *zap.Logger) *RESTAdapter {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RESTAdapter{
		timeout: timeout,
		pending: make(map[string]chan *OutboundMessage),
		logger:  logger,
	}
}

func (a *RESTAdapter) Platform() string { return "rest" }

func (a *RESTAdapter) Connect(_ context.Context) error { return nil }

func (a *RESTAdapter) OnMessage(h MessageHandler) { a.handler = h }

func (a *RESTAdapter) Close() error { return nil }

// Send delivers a reply to the waiting request.
func (a *RESTAdapter) Send(_ context.Context, msg *OutboundMessage) error {
	a.mu.RLock()
	ch, ok := a.pending[msg.ChannelID]
	a.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no waiting request for channel %s", msg.ChannelID)
	}
	select {
	case ch <- msg:
		return nil
	default:
		return fmt.Errorf("channel %s already answered", msg.ChannelID)
	}
}

// Broadcast appends to the feed.
func (a *RESTAdapter) Broadcast(_ context.Context, msg *BroadcastMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.feed = append(a.feed, msg)
	if len(a.feed) > feedLimit {
		a.feed = append([]*BroadcastMessage(nil), a.feed[len(a.feed)-feedLimit:]...)
	}
	return nil
}

// Routes returns the REST gateway endpoints.
func (a *RESTAdapter) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/message", a.handleMessage)
	r.Get("/feed", a.handleFeed)
	return r
}

func (a *RESTAdapter) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"user_id"`
		UserName string `json:"user_name"`
		Content  string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if a.handler == nil {
		writeError(w, http.StatusServiceUnavailable, "no message handler")
		return
	}

	channelID := uuid.New().String()
	ch := make(chan *OutboundMessage, 1)
	a.mu.Lock()
	a.pending[channelID] = ch
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.pending, channelID)
		a.mu.Unlock()
	}()

	go a.handler(&InboundMessage{
		Platform:  "rest",
		ChannelID: channelID,
		UserID:    req.UserID,
		UserName:  req.UserName,
		Content:   req.Content,
		Timestamp: time.Now(),
	})

	timer := time.NewTimer(a.timeout)
	defer timer.Stop()
	select {
	case msg := <-ch:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(msg)
	case <-timer.C:
		writeError(w, http.StatusGatewayTimeout, "response timeout")
	case <-r.Context().Done():
	}
}

func (a *RESTAdapter) handleFeed(w http.ResponseWriter, _ *http.Request) {
	a.mu.RLock()
	feed := append([]*BroadcastMessage{}, a.feed...)
	a.mu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(feed)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
