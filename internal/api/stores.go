package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redskulldevv/omni-agi/internal/apperr"
	ctxmgr "github.com/redskulldevv/omni-agi/internal/context"
	"github.com/redskulldevv/omni-agi/internal/goal"
	"github.com/redskulldevv/omni-agi/internal/memory"
	"github.com/redskulldevv/omni-agi/internal/reasoning"
)

// --- goals ---

func (h *Handler) listGoals(w http.ResponseWriter, r *http.Request) {
	typ := goal.Type(r.URL.Query().Get("type"))
	var goals []goal.Goal
	switch status := r.URL.Query().Get("status"); status {
	case "", "active":
		goals = h.deps.Goals.Active(typ)
	case "open":
		goals = filterGoals(h.deps.Goals.Open(), typ)
	case "completed":
		goals = filterGoals(h.deps.Goals.Completed(), typ)
	case "failed":
		goals = filterGoals(h.deps.Goals.Failed(), typ)
	default:
		writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(status))
		return
	}
	if goals == nil {
		goals = []goal.Goal{}
	}
	writeJSON(w, http.StatusOK, goals)
}

func filterGoals(goals []goal.Goal, typ goal.Type) []goal.Goal {
	if typ == "" {
		return goals
	}
	var out []goal.Goal
	for _, g := range goals {
		if g.Type == typ {
			out = append(out, g)
		}
	}
	return out
}

func (h *Handler) createGoal(w http.ResponseWriter, r *http.Request) {
	var ng goal.NewGoal
	if err := json.NewDecoder(r.Body).Decode(&ng); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	g, err := h.deps.Goals.Create(ng)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (h *Handler) goalReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Goals.Report())
}

func (h *Handler) getGoal(w http.ResponseWriter, r *http.Request) {
	g, err := h.deps.Goals.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type progressRequest struct {
	Progress float64            `json:"progress"`
	Values   map[string]float64 `json:"values,omitempty"`
}

func (h *Handler) updateProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	g, err := h.deps.Goals.UpdateProgress(chi.URLParam(r, "id"), req.Progress, req.Values)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type failRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) failGoal(w http.ResponseWriter, r *http.Request) {
	var req failRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Reason == "" {
		req.Reason = "failed via api"
	}
	g, err := h.deps.Goals.Fail(chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *Handler) completeGoal(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.deps.Goals.Complete)
}

func (h *Handler) suspendGoal(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.deps.Goals.Suspend)
}

func (h *Handler) resumeGoal(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.deps.Goals.Resume)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(string) (goal.Goal, error)) {
	g, err := fn(chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// --- memories ---

type storeMemoryRequest struct {
	Content  string                 `json:"content"`
	Type     memory.Type            `json:"type"`
	Priority string                 `json:"priority"`
	Tags     []string               `json:"tags"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func (h *Handler) storeMemory(w http.ResponseWriter, r *http.Request) {
	var req storeMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.Type != "" && !req.Type.Valid() {
		writeError(w, http.StatusBadRequest, "unknown memory type "+strconv.Quote(string(req.Type)))
		return
	}
	p, err := memory.ParsePriority(req.Priority)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tags := req.Tags
	if len(tags) == 0 {
		tags = memory.Keywords(req.Content)
	}
	m := h.deps.Memory.Store(req.Content, req.Type, p, tags, req.Metadata)
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) recentMemories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	within, err := durationParam(q.Get("within"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	limit, err := intParam(q.Get("limit"), 50)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Memory.GetRecent(memory.Type(q.Get("type")), within, limit))
}

func (h *Handler) searchMemories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var tags []string
	for _, t := range strings.Split(q.Get("tags"), ",") {
		if t = strings.TrimSpace(strings.ToLower(t)); t != "" {
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		writeError(w, http.StatusBadRequest, "tags is required")
		return
	}
	limit, err := intParam(q.Get("limit"), 20)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Memory.RetrieveByTags(tags, memory.Type(q.Get("type")), limit))
}

func (h *Handler) memoryStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Memory.Stats())
}

func (h *Handler) getMemory(w http.ResponseWriter, r *http.Request) {
	m, err := h.deps.Memory.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// --- contexts ---

type addContextRequest struct {
	Type     ctxmgr.Type            `json:"type"`
	Data     map[string]interface{} `json:"data"`
	TTL      string                 `json:"ttl,omitempty"`
	Priority *float64               `json:"priority,omitempty"`
}

func (h *Handler) addContext(w http.ResponseWriter, r *http.Request) {
	var req addContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Type.Valid() {
		writeError(w, http.StatusBadRequest, "unknown context type "+strconv.Quote(string(req.Type)))
		return
	}
	payload, err := ctxmgr.DecodePayload(req.Type, req.Data)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	var opts []ctxmgr.AddOption
	if req.Priority != nil {
		opts = append(opts, ctxmgr.WithPriority(*req.Priority))
	}
	switch req.TTL {
	case "":
	case "never":
		opts = append(opts, ctxmgr.NoExpiry())
	default:
		ttl, err := durationParam(req.TTL)
		if err != nil {
			h.writeErr(w, err)
			return
		}
		opts = append(opts, ctxmgr.WithTTL(ttl))
	}
	writeJSON(w, http.StatusCreated, h.deps.Contexts.Add(payload, opts...))
}

func (h *Handler) contextSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Contexts.Snapshot())
}

func (h *Handler) contextHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), 100)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	history := h.deps.Contexts.History(ctxmgr.Type(r.URL.Query().Get("type")), limit)
	if history == nil {
		history = []ctxmgr.Context{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) contextSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Contexts.Summarize(ctxmgr.Type(r.URL.Query().Get("type"))))
}

// --- learning and decisions ---

func (h *Handler) learningSummary(w http.ResponseWriter, r *http.Request) {
	window, err := durationParam(r.URL.Query().Get("window"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if window == 0 {
		window = 24 * time.Hour
	}
	writeJSON(w, http.StatusOK, h.deps.Learner.PerformanceSummary(window))
}

func (h *Handler) learningPatterns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Learner.Patterns())
}

type recommendRequest struct {
	Type    string                 `json:"type"`
	Context map[string]interface{} `json:"context"`
}

func (h *Handler) recommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Learner.Recommend(req.Context, req.Type))
}

func (h *Handler) listDecisions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var minConf float64
	if s := q.Get("min_confidence"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_confidence")
			return
		}
		minConf = v
	}
	decisions := h.deps.Decisions.History(reasoning.DecisionType(q.Get("type")), minConf)
	if decisions == nil {
		decisions = []reasoning.Decision{}
	}
	writeJSON(w, http.StatusOK, decisions)
}

func durationParam(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, apperr.Invalid("invalid duration %q", s)
	}
	return d, nil
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, apperr.Invalid("invalid limit %q", s)
	}
	return n, nil
}
