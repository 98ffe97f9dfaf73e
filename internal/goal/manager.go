// Package goal tracks the agent's objectives and their dependency ordering.
package goal

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redskulldevv/omni-agi/internal/apperr"
	"go.uber.org/zap"
)

const reportTop = 5

// Observer is notified after each terminal transition, outside the lock.
type Observer func(Goal)

// Manager owns every goal. Open goals live in a map; completed and failed
// goals are moved to archives.
type Manager struct {
	goals     map[string]*Goal
	completed []*Goal
	failed    []*Goal
	archived  map[string]*Goal
	observers []Observer
	seq       uint64
	now       func() time.Time
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewManager creates an empty goal manager.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		goals:    make(map[string]*Goal),
		archived: make(map[string]*Goal),
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock replaces time.Now, mainly for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// Observe registers fn for completed and failed goals.
func (m *Manager) Observe(fn Observer) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// Create validates ng and adds it as a new goal. The goal is active when
// none of its dependencies is still open, pending otherwise. Depending on an
// already failed goal fails the new goal at once.
func (m *Manager) Create(ng NewGoal) (Goal, error) {
	if !ng.Type.Valid() {
		return Goal{}, apperr.Invalid("unknown goal type %q", ng.Type)
	}
	if strings.TrimSpace(ng.Description) == "" {
		return Goal{}, apperr.Invalid("goal description is empty")
	}

	m.mu.Lock()
	now := m.now()
	m.seq++
	g := &Goal{
		ID:              uuid.New().String(),
		Type:            ng.Type,
		Description:     ng.Description,
		Priority:        clamp(ng.Priority),
		Status:          Pending,
		CreatedAt:       now,
		Deadline:        ng.Deadline,
		SuccessCriteria: copyMap(ng.SuccessCriteria),
		Metadata:        copyMap(ng.Metadata),
		seq:             m.seq,
	}

	var failedDep string
	seen := make(map[string]bool)
	for _, dep := range ng.Dependencies {
		if dep == "" || seen[dep] {
			continue
		}
		seen[dep] = true
		if a, ok := m.archived[dep]; ok {
			if a.Status == Failed && failedDep == "" {
				failedDep = dep
			}
			continue
		}
		g.Dependencies = append(g.Dependencies, dep)
	}
	if g.Dependencies == nil {
		g.Dependencies = []string{}
	}

	m.goals[g.ID] = g
	var changed []Goal
	if failedDep != "" {
		changed = m.fail(g, fmt.Sprintf("dependency %s failed", failedDep), now)
	} else if m.resolved(g) {
		g.Status = Active
	}
	out := g.clone()
	m.mu.Unlock()

	m.logger.Info("goal created",
		zap.String("id", out.ID),
		zap.String("type", string(out.Type)),
		zap.String("status", string(out.Status)))
	m.notify(changed)
	return out, nil
}

// UpdateProgress records progress on an open goal. Reaching 1.0 completes
// an active goal; pending and suspended goals only take partial progress.
// Updating an already completed goal returns it unchanged.
func (m *Manager) UpdateProgress(id string, progress float64, values map[string]float64) (Goal, error) {
	m.mu.Lock()
	g, ok := m.goals[id]
	if !ok {
		defer m.mu.Unlock()
		return m.archivedResult(id)
	}
	progress = clamp(progress)
	if g.Status != Active && progress >= 1 {
		m.mu.Unlock()
		return Goal{}, apperr.Invalid("goal %s is %s and cannot complete", id, g.Status)
	}

	now := m.now()
	g.Progress = progress
	rec := MetricRecord{Timestamp: now, Progress: g.Progress}
	if len(values) > 0 {
		rec.Values = make(map[string]float64, len(values))
		for k, v := range values {
			rec.Values[k] = v
		}
	}
	g.Metrics = append(g.Metrics, rec)

	var changed []Goal
	if g.Progress >= 1 {
		changed = m.complete(g, now)
	}
	out := g.clone()
	m.mu.Unlock()

	m.notify(changed)
	return out, nil
}

// Complete marks an active goal completed and activates dependents whose
// dependencies are now resolved. Completing a completed goal is a no-op.
func (m *Manager) Complete(id string) (Goal, error) {
	m.mu.Lock()
	g, ok := m.goals[id]
	if !ok {
		defer m.mu.Unlock()
		return m.archivedResult(id)
	}
	if g.Status != Active {
		m.mu.Unlock()
		return Goal{}, apperr.Invalid("goal %s is %s, not active", id, g.Status)
	}
	changed := m.complete(g, m.now())
	out := g.clone()
	m.mu.Unlock()

	m.notify(changed)
	return out, nil
}

// Fail marks an open goal failed. Every goal depending on it, directly or
// transitively, fails too. Failing a failed goal is a no-op.
func (m *Manager) Fail(id, reason string) (Goal, error) {
	m.mu.Lock()
	g, ok := m.goals[id]
	if !ok {
		defer m.mu.Unlock()
		a, ok := m.archived[id]
		if !ok {
			return Goal{}, apperr.NotFound("goal", id)
		}
		if a.Status == Completed {
			return Goal{}, apperr.Invalid("goal %s is already completed", id)
		}
		return a.clone(), nil
	}
	changed := m.fail(g, reason, m.now())
	out := g.clone()
	m.mu.Unlock()

	m.notify(changed)
	return out, nil
}

// Suspend parks an active or pending goal.
func (m *Manager) Suspend(id string) (Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.goals[id]
	if !ok {
		if _, archived := m.archived[id]; archived {
			return Goal{}, apperr.Invalid("goal %s is closed", id)
		}
		return Goal{}, apperr.NotFound("goal", id)
	}
	if g.Status == Suspended {
		return g.clone(), nil
	}
	g.Status = Suspended
	return g.clone(), nil
}

// Resume reactivates a suspended goal, or returns it to pending when a
// dependency is still open.
func (m *Manager) Resume(id string) (Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.goals[id]
	if !ok {
		if _, archived := m.archived[id]; archived {
			return Goal{}, apperr.Invalid("goal %s is closed", id)
		}
		return Goal{}, apperr.NotFound("goal", id)
	}
	if g.Status != Suspended {
		return Goal{}, apperr.Invalid("goal %s is %s, not suspended", id, g.Status)
	}
	g.Status = Pending
	if m.resolved(g) {
		g.Status = Active
	}
	return g.clone(), nil
}

// Get looks a goal up among open and archived goals.
func (m *Manager) Get(id string) (Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.goals[id]; ok {
		return g.clone(), nil
	}
	if g, ok := m.archived[id]; ok {
		return g.clone(), nil
	}
	return Goal{}, apperr.NotFound("goal", id)
}

// Active returns active goals, optionally of one type, by priority then
// creation order.
func (m *Manager) Active(typ Type) []Goal {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var list []*Goal
	for _, g := range m.goals {
		if g.Status != Active || (typ != "" && g.Type != typ) {
			continue
		}
		list = append(list, g)
	}
	sortByPriority(list)
	return cloneAll(list)
}

// Open returns every goal that is not completed or failed.
func (m *Manager) Open() []Goal {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]*Goal, 0, len(m.goals))
	for _, g := range m.goals {
		list = append(list, g)
	}
	sortByPriority(list)
	return cloneAll(list)
}

// Completed returns the completed archive, oldest first.
func (m *Manager) Completed() []Goal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneAll(m.completed)
}

// Failed returns the failed archive, oldest first.
func (m *Manager) Failed() []Goal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneAll(m.failed)
}

// ExpireOverdue fails every open goal whose deadline has passed and returns
// all goals failed as a result, including dependents.
func (m *Manager) ExpireOverdue() []Goal {
	m.mu.Lock()
	now := m.now()
	var overdue []*Goal
	for _, g := range m.goals {
		if !g.Deadline.IsZero() && now.After(g.Deadline) {
			overdue = append(overdue, g)
		}
	}
	sortByPriority(overdue)

	var changed []Goal
	for _, g := range overdue {
		if _, open := m.goals[g.ID]; !open {
			continue // already failed by a cascade
		}
		changed = append(changed, m.fail(g, "deadline exceeded", now)...)
	}
	m.mu.Unlock()

	m.notify(changed)
	return changed
}

// Report summarizes goal counts and progress.
func (m *Manager) Report() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r := Report{
		Completed: len(m.completed),
		Failed:    len(m.failed),
		ByType:    make(map[Type]TypeReport),
	}
	sums := make(map[Type]float64)
	open := make([]*Goal, 0, len(m.goals))
	for _, g := range m.goals {
		switch g.Status {
		case Pending:
			r.Pending++
		case Active:
			r.Active++
		case Suspended:
			r.Suspended++
		}
		tr := r.ByType[g.Type]
		tr.Count++
		r.ByType[g.Type] = tr
		sums[g.Type] += g.Progress
		open = append(open, g)
	}
	for typ, tr := range r.ByType {
		tr.AvgProgress = sums[typ] / float64(tr.Count)
		r.ByType[typ] = tr
	}
	r.Total = len(m.goals) + r.Completed + r.Failed

	sortByPriority(open)
	if len(open) > reportTop {
		open = open[:reportTop]
	}
	r.Top = cloneAll(open)
	return r
}

// complete archives g and activates dependents. Caller holds m.mu.
func (m *Manager) complete(g *Goal, now time.Time) []Goal {
	g.Status = Completed
	g.Progress = 1
	g.CompletedAt = now
	delete(m.goals, g.ID)
	m.completed = append(m.completed, g)
	m.archived[g.ID] = g

	for _, other := range m.goals {
		if !other.dependsOn(g.ID) {
			continue
		}
		other.removeDependency(g.ID)
		if other.Status == Pending && m.resolved(other) {
			other.Status = Active
			m.logger.Info("goal activated",
				zap.String("id", other.ID),
				zap.String("after", g.ID))
		}
	}

	m.logger.Info("goal completed", zap.String("id", g.ID), zap.String("type", string(g.Type)))
	return []Goal{g.clone()}
}

// fail archives g and every transitive dependent. Caller holds m.mu.
func (m *Manager) fail(g *Goal, reason string, now time.Time) []Goal {
	g.Status = Failed
	g.FailedAt = now
	g.FailReason = reason
	delete(m.goals, g.ID)
	m.failed = append(m.failed, g)
	m.archived[g.ID] = g
	m.logger.Warn("goal failed", zap.String("id", g.ID), zap.String("reason", reason))

	changed := []Goal{g.clone()}
	var dependents []*Goal
	for _, other := range m.goals {
		if other.dependsOn(g.ID) {
			dependents = append(dependents, other)
		}
	}
	sortByPriority(dependents)
	for _, d := range dependents {
		if _, open := m.goals[d.ID]; !open {
			continue
		}
		changed = append(changed, m.fail(d, fmt.Sprintf("dependency %s failed", g.ID), now)...)
	}
	return changed
}

// resolved reports whether no dependency of g is still open.
func (m *Manager) resolved(g *Goal) bool {
	for _, dep := range g.Dependencies {
		if _, open := m.goals[dep]; open {
			return false
		}
	}
	return true
}

// archivedResult answers for an id that is not open. Caller holds m.mu.
func (m *Manager) archivedResult(id string) (Goal, error) {
	a, ok := m.archived[id]
	if !ok {
		return Goal{}, apperr.NotFound("goal", id)
	}
	if a.Status == Failed {
		return Goal{}, apperr.Invalid("goal %s has failed", id)
	}
	return a.clone(), nil
}

func (m *Manager) notify(changed []Goal) {
	if len(changed) == 0 {
		return
	}
	m.mu.RLock()
	observers := append([]Observer(nil), m.observers...)
	m.mu.RUnlock()
	for _, g := range changed {
		for _, fn := range observers {
			fn(g)
		}
	}
}

func (g *Goal) dependsOn(id string) bool {
	for _, dep := range g.Dependencies {
		if dep == id {
			return true
		}
	}
	return false
}

func (g *Goal) removeDependency(id string) {
	out := g.Dependencies[:0]
	for _, dep := range g.Dependencies {
		if dep != id {
			out = append(out, dep)
		}
	}
	g.Dependencies = out
}

func sortByPriority(list []*Goal) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority > list[j].Priority
		}
		return list[i].seq < list[j].seq
	})
}

func cloneAll(list []*Goal) []Goal {
	out := make([]Goal, len(list))
	for i, g := range list {
		out[i] = g.clone()
	}
	return out
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
