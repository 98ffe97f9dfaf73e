package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/redskulldevv/omni-agi/internal/goal"
	"github.com/redskulldevv/omni-agi/internal/memory"
	"github.com/redskulldevv/omni-agi/internal/supervisor"
)

type recorder struct {
	mu   sync.Mutex
	seen []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.seen = append(r.seen, s)
	r.mu.Unlock()
}

func (r *recorder) first() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.seen) == 0 {
		return ""
	}
	return r.seen[0]
}

// fakeAPI serves canned responses and records requests.
func fakeAPI(t *testing.T) (*httptest.Server, *recorder) {
	t.Helper()
	seen := &recorder{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/goals", func(w http.ResponseWriter, r *http.Request) {
		seen.add("list " + r.URL.RawQuery)
		json.NewEncoder(w).Encode([]goal.Goal{{
			ID: "g1", Type: goal.MarketAnalysis, Status: goal.Active,
			Priority: 0.8, Progress: 0.25, Description: "Watch ETH",
		}})
	})
	mux.HandleFunc("POST /api/goals", func(w http.ResponseWriter, r *http.Request) {
		var ng goal.NewGoal
		json.NewDecoder(r.Body).Decode(&ng)
		seen.add("add " + string(ng.Type) + " " + ng.Description)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(goal.Goal{ID: "g2", Status: goal.Active})
	})
	mux.HandleFunc("POST /api/goals/{id}/progress", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "goal missing: not found"})
			return
		}
		json.NewEncoder(w).Encode(goal.Goal{ID: r.PathValue("id"), Progress: 1, Status: goal.Completed})
	})
	mux.HandleFunc("GET /api/memories/search", func(w http.ResponseWriter, r *http.Request) {
		seen.add("search " + r.URL.Query().Get("tags"))
		json.NewEncoder(w).Encode([]memory.Memory{{Type: memory.Semantic, Priority: memory.High, Content: "ETH gas is low"}})
	})
	mux.HandleFunc("GET /api/loops", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]supervisor.LoopStatus{{Name: "cognition", Iterations: 4, Successes: 3, Failures: 1, LastOutcome: "ok"}})
	})
	mux.HandleFunc("GET /api/goals/report", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(goal.Report{Total: 3, Active: 1, Completed: 2})
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, seen
}

func run(t *testing.T, addr string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--addr", addr}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestGoalsList(t *testing.T) {
	ts, seen := fakeAPI(t)
	out, err := run(t, ts.URL, "goals", "list", "--status", "open")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "g1") || !strings.Contains(out, "25%") {
		t.Errorf("output:\n%s", out)
	}
	if seen.first() != "list status=open" {
		t.Errorf("query = %q", seen.first())
	}
}

func TestGoalsAddAndProgress(t *testing.T) {
	ts, seen := fakeAPI(t)
	out, err := run(t, ts.URL, "goals", "add", "--type", "risk_management", "Cap", "exposure")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "created g2") {
		t.Errorf("output = %q", out)
	}
	if seen.first() != "add risk_management Cap exposure" {
		t.Errorf("request = %q", seen.first())
	}

	out, err = run(t, ts.URL, "goals", "progress", "g2", "1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "100% (completed)") {
		t.Errorf("output = %q", out)
	}

	_, err = run(t, ts.URL, "goals", "progress", "missing", "0.5")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v, want API error", err)
	}

	if _, err := run(t, ts.URL, "goals", "progress", "g2", "lots"); err == nil {
		t.Error("expected error for non-numeric progress")
	}
}

func TestMemorySearch(t *testing.T) {
	ts, seen := fakeAPI(t)
	out, err := run(t, ts.URL, "memory", "search", "eth", "gas")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "[semantic/high] ETH gas is low") {
		t.Errorf("output = %q", out)
	}
	if seen.first() != "search eth,gas" {
		t.Errorf("request = %q", seen.first())
	}
}

func TestStatus(t *testing.T) {
	ts, _ := fakeAPI(t)
	out, err := run(t, ts.URL, "status")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "cognition") || !strings.Contains(out, "3 total, 1 active") {
		t.Errorf("output:\n%s", out)
	}
}
