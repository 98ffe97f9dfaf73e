package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redskulldevv/omni-agi/internal/apperr"
	"go.uber.org/zap"
)

// Config sets store capacities and the consolidation horizon.
type Config struct {
	ShortTermLimit int           `json:"short_term_limit"`
	LongTermLimit  int           `json:"long_term_limit"`
	DecayInterval  time.Duration `json:"decay_interval"`
	DecayRate      float64       `json:"decay_rate"`
}

// DefaultConfig returns the stock limits (100 short-term, 1000 long-term, 1h).
func DefaultConfig() Config {
	return Config{
		ShortTermLimit: 100,
		LongTermLimit:  1000,
		DecayInterval:  time.Hour,
		DecayRate:      0.1,
	}
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the in-process memory system. It owns every Memory it holds.
type Store struct {
	cfg      Config
	memories map[Type][]*Memory
	byID     map[string]*Memory
	index    map[string][]*Memory // tag -> memories
	now      func() time.Time
	mu       sync.Mutex
	logger   *zap.Logger
}

// NewStore creates an empty store. Zero config fields take their defaults.
func NewStore(cfg Config, logger *zap.Logger, opts ...Option) *Store {
	def := DefaultConfig()
	if cfg.ShortTermLimit <= 0 {
		cfg.ShortTermLimit = def.ShortTermLimit
	}
	if cfg.LongTermLimit <= 0 {
		cfg.LongTermLimit = def.LongTermLimit
	}
	if cfg.DecayInterval <= 0 {
		cfg.DecayInterval = def.DecayInterval
	}
	if cfg.DecayRate == 0 {
		cfg.DecayRate = def.DecayRate
	}
	s := &Store{
		cfg:      cfg,
		memories: make(map[Type][]*Memory, len(Types)),
		byID:     make(map[string]*Memory),
		index:    make(map[string][]*Memory),
		now:      time.Now,
		logger:   logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Store saves a new memory and enforces the capacity of its type.
// An empty or unknown type is stored as short-term.
func (s *Store) Store(content interface{}, typ Type, priority Priority, tags []string, metadata map[string]interface{}) Memory {
	if !typ.Valid() {
		typ = ShortTerm
	}
	if priority < Low {
		priority = Low
	}
	if priority > Critical {
		priority = Critical
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	m := &Memory{
		ID:           uuid.New().String(),
		Content:      content,
		Type:         typ,
		Priority:     priority,
		Timestamp:    now,
		Tags:         uniqueTags(tags),
		Metadata:     metadata,
		LastAccessed: now,
		DecayRate:    s.cfg.DecayRate,
	}
	if m.Metadata == nil {
		m.Metadata = make(map[string]interface{})
	}

	s.memories[typ] = append(s.memories[typ], m)
	s.byID[m.ID] = m
	for _, tag := range m.Tags {
		s.index[tag] = append(s.index[tag], m)
	}

	s.enforceCapacity(typ)
	return m.clone()
}

// RetrieveByTags returns memories carrying any of the tags, ordered by
// priority then recency. Every returned memory is marked as accessed.
// An empty typ matches all types; limit <= 0 means no limit.
func (s *Store) RetrieveByTags(tags []string, typ Type, limit int) []Memory {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	var matched []*Memory
	for _, tag := range tags {
		for _, m := range s.index[tag] {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			if typ != "" && m.Type != typ {
				continue
			}
			matched = append(matched, m)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority > matched[j].Priority
		}
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	now := s.now()
	out := make([]Memory, len(matched))
	for i, m := range matched {
		m.AccessCount++
		m.LastAccessed = now
		out[i] = m.clone()
	}
	return out
}

// GetRecent returns memories no older than within, newest first.
// within <= 0 disables the age filter.
func (s *Store) GetRecent(typ Type, within time.Duration, limit int) []Memory {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var recent []*Memory
	for _, t := range Types {
		if typ != "" && t != typ {
			continue
		}
		for _, m := range s.memories[t] {
			if within > 0 && now.Sub(m.Timestamp) > within {
				continue
			}
			recent = append(recent, m)
		}
	}

	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Timestamp.After(recent[j].Timestamp)
	})
	if limit > 0 && len(recent) > limit {
		recent = recent[:limit]
	}

	out := make([]Memory, len(recent))
	for i, m := range recent {
		out[i] = m.clone()
	}
	return out
}

// Get returns a memory by id.
func (s *Store) Get(id string) (Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return Memory{}, apperr.NotFound("memory", id)
	}
	return m.clone(), nil
}

// Len returns how many memories of the given type are held.
func (s *Store) Len(typ Type) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.memories[typ])
}

// Clear drops every memory of typ, or all memories when typ is empty.
func (s *Store) Clear(typ Type) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if typ == "" {
		s.memories = make(map[Type][]*Memory, len(Types))
	} else {
		delete(s.memories, typ)
	}

	s.byID = make(map[string]*Memory)
	s.index = make(map[string][]*Memory)
	for _, t := range Types {
		for _, m := range s.memories[t] {
			s.byID[m.ID] = m
			for _, tag := range m.Tags {
				s.index[tag] = append(s.index[tag], m)
			}
		}
	}
}

// Stats returns counts by type and priority plus average access counts.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		ByType:         make(map[Type]int, len(Types)),
		ByPriority:     make(map[string]int),
		AvgAccessCount: make(map[Type]float64, len(Types)),
		TotalTags:      len(s.index),
	}
	for _, t := range Types {
		list := s.memories[t]
		st.ByType[t] = len(list)
		st.TotalMemories += len(list)
		if len(list) == 0 {
			continue
		}
		var accesses int
		for _, m := range list {
			st.ByPriority[m.Priority.String()]++
			accesses += m.AccessCount
		}
		st.AvgAccessCount[t] = float64(accesses) / float64(len(list))
	}
	return st
}

func uniqueTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
