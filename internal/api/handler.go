// Package api exposes the agent's stores and loops over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redskulldevv/omni-agi/internal/apperr"
	ctxmgr "github.com/redskulldevv/omni-agi/internal/context"
	"github.com/redskulldevv/omni-agi/internal/eventbus"
	"github.com/redskulldevv/omni-agi/internal/gateway"
	"github.com/redskulldevv/omni-agi/internal/goal"
	"github.com/redskulldevv/omni-agi/internal/learning"
	"github.com/redskulldevv/omni-agi/internal/memory"
	"github.com/redskulldevv/omni-agi/internal/reasoning"
	"github.com/redskulldevv/omni-agi/internal/store"
	"github.com/redskulldevv/omni-agi/internal/supervisor"
	"go.uber.org/zap"
)

// LoopReporter reports loop health, implemented by supervisor.Supervisor.
type LoopReporter interface {
	Status() []supervisor.LoopStatus
}

// TradeLister reads archived trades, implemented by store.Store.
type TradeLister interface {
	RecentTrades(ctx context.Context, limit int) ([]store.Trade, error)
}

// EventReader reads loop events, implemented by eventbus.Bus.
type EventReader interface {
	Recent(ctx context.Context, loop string, n int64) ([]eventbus.Event, error)
	Subscribe(ctx context.Context, loop string) <-chan eventbus.Event
}

// TagGraph finds tags related through shared memories, implemented by
// memory.GraphStore.
type TagGraph interface {
	RelatedTags(ctx context.Context, tag string, limit int) ([]string, error)
}

// Deps are the components served by the API. Memory, Contexts, Goals,
// Learner and Decisions are required; the rest may be nil.
type Deps struct {
	Memory      *memory.Store
	Contexts    *ctxmgr.Manager
	Goals       *goal.Manager
	Learner     *learning.Learner
	Decisions   *reasoning.Engine
	Loops       LoopReporter
	Gateway     *gateway.Gateway
	Broadcaster *gateway.Broadcaster
	REST        *gateway.RESTAdapter
	Trades      TradeLister
	Events      EventReader
	Graph       TagGraph
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	deps   Deps
	logger *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps, logger *zap.Logger) *Handler {
	return &Handler{deps: deps, logger: logger}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		r.Get("/goals", h.listGoals)
		r.Post("/goals", h.createGoal)
		r.Get("/goals/report", h.goalReport)
		r.Get("/goals/{id}", h.getGoal)
		r.Post("/goals/{id}/progress", h.updateProgress)
		r.Post("/goals/{id}/complete", h.completeGoal)
		r.Post("/goals/{id}/fail", h.failGoal)
		r.Post("/goals/{id}/suspend", h.suspendGoal)
		r.Post("/goals/{id}/resume", h.resumeGoal)

		r.Get("/memories", h.recentMemories)
		r.Post("/memories", h.storeMemory)
		r.Get("/memories/search", h.searchMemories)
		r.Get("/memories/stats", h.memoryStats)
		r.Get("/memories/related", h.relatedTags)
		r.Get("/memories/{id}", h.getMemory)

		r.Get("/contexts", h.contextSnapshot)
		r.Post("/contexts", h.addContext)
		r.Get("/contexts/history", h.contextHistory)
		r.Get("/contexts/summary", h.contextSummary)

		r.Get("/learning/summary", h.learningSummary)
		r.Get("/learning/patterns", h.learningPatterns)
		r.Post("/learning/recommendation", h.recommend)

		r.Get("/decisions", h.listDecisions)
		r.Get("/loops", h.loopStatus)
		r.Get("/events", h.recentEvents)
		r.Get("/events/stream", h.streamEvents)
		r.Get("/trades", h.recentTrades)

		r.Post("/broadcast", h.sendBroadcast)
		r.Get("/gateway/status", h.gatewayStatus)
		if h.deps.REST != nil {
			r.Mount("/gateway/rest", h.deps.REST.Routes())
		}
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"open_goals":   len(h.deps.Goals.Open()),
		"memories":     h.deps.Memory.Stats().TotalMemories,
		"experiences":  h.deps.Learner.Len(),
		"live_context": h.deps.Contexts.Summarize("").Active,
	})
}

func (h *Handler) loopStatus(w http.ResponseWriter, r *http.Request) {
	if h.deps.Loops == nil {
		writeJSON(w, http.StatusOK, []supervisor.LoopStatus{})
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Loops.Status())
}

func (h *Handler) recentEvents(w http.ResponseWriter, r *http.Request) {
	if h.deps.Events == nil {
		writeError(w, http.StatusServiceUnavailable, "event bus not configured")
		return
	}
	loop := r.URL.Query().Get("loop")
	if loop == "" {
		loop = "cognition"
	}
	n, err := intParam(r.URL.Query().Get("limit"), 20)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	events, err := h.deps.Events.Recent(r.Context(), loop, int64(n))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// streamEvents relays new events of one loop as server-sent events until
// the client disconnects.
func (h *Handler) streamEvents(w http.ResponseWriter, r *http.Request) {
	if h.deps.Events == nil {
		writeError(w, http.StatusServiceUnavailable, "event bus not configured")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	loop := r.URL.Query().Get("loop")
	if loop == "" {
		loop = "cognition"
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range h.deps.Events.Subscribe(r.Context(), loop) {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
			return
		}
		flusher.Flush()
	}
}

func (h *Handler) recentTrades(w http.ResponseWriter, r *http.Request) {
	if h.deps.Trades == nil {
		writeError(w, http.StatusServiceUnavailable, "archive not configured")
		return
	}
	n, err := intParam(r.URL.Query().Get("limit"), 50)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	trades, err := h.deps.Trades.RecentTrades(r.Context(), n)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func (h *Handler) relatedTags(w http.ResponseWriter, r *http.Request) {
	if h.deps.Graph == nil {
		writeError(w, http.StatusServiceUnavailable, "memory graph not configured")
		return
	}
	tag := r.URL.Query().Get("tag")
	if tag == "" {
		writeError(w, http.StatusBadRequest, "tag is required")
		return
	}
	n, err := intParam(r.URL.Query().Get("limit"), 10)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	tags, err := h.deps.Graph.RelatedTags(r.Context(), tag, n)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (h *Handler) sendBroadcast(w http.ResponseWriter, r *http.Request) {
	if h.deps.Broadcaster == nil {
		writeError(w, http.StatusServiceUnavailable, "gateway not initialized")
		return
	}
	var msg gateway.BroadcastMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.deps.Broadcaster.Send(r.Context(), &msg); err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "broadcast sent"})
}

func (h *Handler) gatewayStatus(w http.ResponseWriter, r *http.Request) {
	if h.deps.Gateway == nil {
		writeJSON(w, http.StatusOK, []gateway.AdapterStatus{})
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Gateway.Statuses())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeErr maps the error taxonomy onto HTTP status codes.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	var se *apperr.ServiceError
	switch {
	case apperr.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case apperr.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &se):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
