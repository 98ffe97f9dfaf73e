// Package learning records action outcomes and turns them into patterns
// and recommendations.
package learning

import (
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redskulldevv/omni-agi/internal/apperr"
	"go.uber.org/zap"
)

const (
	successThreshold  = 0.7
	patternSampleSize = 50
	defaultSimilar    = 5
	defaultImportance = 0.5
)

// Experience is one recorded action and how well it went.
type Experience struct {
	ID           string                 `json:"id"`
	Type         string                 `json:"type"`
	Action       string                 `json:"action"`
	Context      map[string]interface{} `json:"context"`
	Outcome      map[string]interface{} `json:"outcome"`
	SuccessScore float64                `json:"success_score"`
	Importance   float64                `json:"importance"`
	Timestamp    time.Time              `json:"timestamp"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// NewExperience is the input to Record. A nil Importance defaults to 0.5.
type NewExperience struct {
	Type         string                 `json:"type"`
	Action       string                 `json:"action"`
	Context      map[string]interface{} `json:"context"`
	Outcome      map[string]interface{} `json:"outcome"`
	SuccessScore float64                `json:"success_score"`
	Importance   *float64               `json:"importance,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Pattern aggregates experiences sharing a type and action.
type Pattern struct {
	Type         string                   `json:"type"`
	Action       string                   `json:"action"`
	SuccessCount int                      `json:"success_count"`
	TotalCount   int                      `json:"total_count"`
	AvgSuccess   float64                  `json:"avg_success"`
	Contexts     []map[string]interface{} `json:"contexts"`
}

// Recommendation is the best-scoring action among similar experiences.
type Recommendation struct {
	Found                 bool    `json:"found"`
	Action                string  `json:"action,omitempty"`
	Confidence            float64 `json:"confidence"`
	SupportingExperiences int     `json:"supporting_experiences"`
	AverageSuccess        float64 `json:"average_success"`
	Reason                string  `json:"reason,omitempty"`
}

// Summary reports performance over a window.
type Summary struct {
	AverageSuccess  float64        `json:"average_success"`
	ExperienceCount int            `json:"experience_count"`
	PatternCount    int            `json:"pattern_count"`
	TypeBreakdown   map[string]int `json:"type_breakdown,omitempty"`
}

type performanceEntry struct {
	timestamp  time.Time
	typ        string
	action     string
	score      float64
	importance float64
}

type patternKey struct {
	typ, action string
}

// Config bounds the experience log.
type Config struct {
	MaxExperiences int `json:"max_experiences"`
}

// DefaultConfig keeps the last 10000 experiences.
func DefaultConfig() Config {
	return Config{MaxExperiences: 10000}
}

// Importance returns v as an explicit NewExperience importance.
func Importance(v float64) *float64 { return &v }

// Learner is the learning and feedback store.
type Learner struct {
	config      Config
	experiences []*Experience
	patterns    map[patternKey]*Pattern
	performance []performanceEntry
	now         func() time.Time
	mu          sync.RWMutex
	logger      *zap.Logger
}

// NewLearner creates an empty learner.
func NewLearner(cfg Config, logger *zap.Logger) *Learner {
	if cfg.MaxExperiences <= 0 {
		cfg.MaxExperiences = DefaultConfig().MaxExperiences
	}
	return &Learner{
		config:   cfg,
		patterns: make(map[patternKey]*Pattern),
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock replaces time.Now, mainly for tests.
func (l *Learner) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

// Record stores an experience and updates its pattern.
func (l *Learner) Record(ne NewExperience) (Experience, error) {
	if strings.TrimSpace(ne.Action) == "" {
		return Experience{}, apperr.Invalid("experience action is empty")
	}
	if ne.SuccessScore < 0 || ne.SuccessScore > 1 {
		return Experience{}, apperr.Invalid("success score %v outside [0,1]", ne.SuccessScore)
	}
	importance := defaultImportance
	if ne.Importance != nil {
		importance = min(max(*ne.Importance, 0), 1)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e := &Experience{
		ID:           uuid.New().String(),
		Type:         ne.Type,
		Action:       ne.Action,
		Context:      copyMap(ne.Context),
		Outcome:      copyMap(ne.Outcome),
		SuccessScore: ne.SuccessScore,
		Importance:   importance,
		Timestamp:    l.now(),
		Metadata:     copyMap(ne.Metadata),
	}
	if e.Context == nil {
		e.Context = map[string]interface{}{}
	}

	l.experiences = append(l.experiences, e)
	if over := len(l.experiences) - l.config.MaxExperiences; over > 0 {
		l.experiences = append([]*Experience(nil), l.experiences[over:]...)
	}
	l.updatePattern(e)
	l.performance = append(l.performance, performanceEntry{
		timestamp:  e.Timestamp,
		typ:        e.Type,
		action:     e.Action,
		score:      e.SuccessScore,
		importance: e.Importance,
	})
	if over := len(l.performance) - l.config.MaxExperiences; over > 0 {
		l.performance = append([]performanceEntry(nil), l.performance[over:]...)
	}

	l.logger.Debug("experience recorded",
		zap.String("type", e.Type),
		zap.String("action", e.Action),
		zap.Float64("score", e.SuccessScore))
	return e.clone(), nil
}

func (l *Learner) updatePattern(e *Experience) {
	key := patternKey{e.Type, e.Action}
	p, ok := l.patterns[key]
	if !ok {
		p = &Pattern{Type: e.Type, Action: e.Action}
		l.patterns[key] = p
	}
	p.TotalCount++
	if e.SuccessScore >= successThreshold {
		p.SuccessCount++
		p.Contexts = append(p.Contexts, copyMap(e.Context))
		if over := len(p.Contexts) - patternSampleSize; over > 0 {
			p.Contexts = append([]map[string]interface{}(nil), p.Contexts[over:]...)
		}
	}
	p.AvgSuccess = float64(p.SuccessCount) / float64(p.TotalCount)
}

// Similar returns up to limit experiences whose context overlaps ctx, most
// similar first and newest first among equals. Empty typ matches all types.
func (l *Learner) Similar(ctx map[string]interface{}, typ string, limit int) []Experience {
	l.mu.RLock()
	defer l.mu.RUnlock()

	scored := l.similar(ctx, typ)
	if limit <= 0 {
		limit = defaultSimilar
	}
	if len(scored) > limit {
		scored = scored[:limit]
	}
	out := make([]Experience, len(scored))
	for i, s := range scored {
		out[i] = s.exp.clone()
	}
	return out
}

type scoredExperience struct {
	exp   *Experience
	score float64
	pos   int
}

func (l *Learner) similar(ctx map[string]interface{}, typ string) []scoredExperience {
	var scored []scoredExperience
	for i, e := range l.experiences {
		if typ != "" && e.Type != typ {
			continue
		}
		sim := Similarity(ctx, e.Context)
		if sim <= 0 {
			continue
		}
		scored = append(scored, scoredExperience{exp: e, score: sim, pos: i})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].pos > scored[j].pos
	})
	return scored
}

// Recommend picks the action with the best mean score, then the most total
// importance, among the experiences most similar to ctx.
func (l *Learner) Recommend(ctx map[string]interface{}, typ string) Recommendation {
	similar := l.Similar(ctx, typ, defaultSimilar)
	if len(similar) == 0 {
		return Recommendation{Reason: "no similar experiences"}
	}

	type tally struct {
		count      int
		total      float64
		importance float64
	}
	var order []string
	tallies := make(map[string]*tally)
	for _, e := range similar {
		t, ok := tallies[e.Action]
		if !ok {
			t = &tally{}
			tallies[e.Action] = t
			order = append(order, e.Action)
		}
		t.count++
		t.total += e.SuccessScore
		t.importance += e.Importance
	}

	best := order[0]
	bestMean := tallies[best].total / float64(tallies[best].count)
	for _, action := range order[1:] {
		t := tallies[action]
		mean := t.total / float64(t.count)
		if mean > bestMean || (mean == bestMean && t.importance > tallies[best].importance) {
			best, bestMean = action, mean
		}
	}

	return Recommendation{
		Found:                 true,
		Action:                best,
		Confidence:            bestMean,
		SupportingExperiences: len(similar),
		AverageSuccess:        bestMean,
	}
}

// Patterns returns every pattern sorted by type then action.
func (l *Learner) Patterns() []Pattern {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Pattern, 0, len(l.patterns))
	for _, p := range l.patterns {
		cp := *p
		cp.Contexts = make([]map[string]interface{}, len(p.Contexts))
		for i, c := range p.Contexts {
			cp.Contexts[i] = copyMap(c)
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Action < out[j].Action
	})
	return out
}

// PerformanceSummary reports average success over the last timeframe, or
// over everything when timeframe is zero.
func (l *Learner) PerformanceSummary(timeframe time.Duration) Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var cutoff time.Time
	if timeframe > 0 {
		cutoff = l.now().Add(-timeframe)
	}

	s := Summary{PatternCount: len(l.patterns)}
	var total float64
	for _, p := range l.performance {
		if !cutoff.IsZero() && !p.timestamp.After(cutoff) {
			continue
		}
		if s.TypeBreakdown == nil {
			s.TypeBreakdown = make(map[string]int)
		}
		s.ExperienceCount++
		s.TypeBreakdown[p.typ]++
		total += p.score
	}
	if s.ExperienceCount == 0 {
		s.PatternCount = 0
		return s
	}
	s.AverageSuccess = total / float64(s.ExperienceCount)
	return s
}

// Len returns the number of retained experiences.
func (l *Learner) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.experiences)
}

// Similarity is the share of keys in the union of a and b that map to equal
// values in both. It is 0 for two empty maps.
func Similarity(a, b map[string]interface{}) float64 {
	union := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		union[k] = struct{}{}
	}
	for k := range b {
		union[k] = struct{}{}
	}
	if len(union) == 0 {
		return 0
	}
	matching := 0
	for k := range union {
		av, aok := a[k]
		bv, bok := b[k]
		if aok && bok && equalValues(av, bv) {
			matching++
		}
	}
	return float64(matching) / float64(len(union))
}

// equalValues compares numbers by value regardless of their Go kind, so an
// int recorded in process matches a float64 decoded from JSON.
func equalValues(a, b interface{}) bool {
	if x, ok := numeric(a); ok {
		y, ok := numeric(b)
		return ok && x == y
	}
	return reflect.DeepEqual(a, b)
}

func numeric(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func (e *Experience) clone() Experience {
	out := *e
	out.Context = copyMap(e.Context)
	out.Outcome = copyMap(e.Outcome)
	out.Metadata = copyMap(e.Metadata)
	return out
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
