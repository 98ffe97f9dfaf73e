package memory

import (
	"sort"
	"time"

	"go.uber.org/zap"
)

// minAccessRate is the accesses-per-decay-interval below which an aged
// memory is promoted to long-term storage.
const minAccessRate = 0.1

// Consolidate promotes qualifying memories of type from into long-term
// storage and returns the promoted memories that survived the long-term
// capacity check. It is a no-op for LongTerm.
func (s *Store) Consolidate(from Type) []Memory {
	if from == LongTerm || !from.Valid() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var keep, moved []*Memory
	for _, m := range s.memories[from] {
		if s.shouldConsolidate(m, now) {
			m.Type = LongTerm
			moved = append(moved, m)
			continue
		}
		keep = append(keep, m)
	}
	if len(moved) == 0 {
		return nil
	}
	s.memories[from] = keep
	s.memories[LongTerm] = append(s.memories[LongTerm], moved...)
	s.enforceCapacity(LongTerm)

	out := make([]Memory, 0, len(moved))
	for _, m := range moved {
		if _, ok := s.byID[m.ID]; ok {
			out = append(out, m.clone())
		}
	}
	s.logger.Info("consolidated memories",
		zap.String("from", string(from)),
		zap.Int("moved", len(moved)),
		zap.Int("retained", len(out)))
	return out
}

// EnforceCapacity evicts the weakest memories of typ until it fits its limit.
func (s *Store) EnforceCapacity(typ Type) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enforceCapacity(typ)
}

// enforceCapacity drops memories in ascending (priority, access count,
// timestamp) order. Caller must hold s.mu.
func (s *Store) enforceCapacity(typ Type) {
	var limit int
	switch typ {
	case ShortTerm:
		limit = s.cfg.ShortTermLimit
	case LongTerm:
		limit = s.cfg.LongTermLimit
	default:
		return
	}

	list := s.memories[typ]
	if len(list) <= limit {
		return
	}

	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.AccessCount != b.AccessCount {
			return a.AccessCount < b.AccessCount
		}
		return a.Timestamp.Before(b.Timestamp)
	})

	cut := len(list) - limit
	for _, m := range list[:cut] {
		delete(s.byID, m.ID)
		for _, tag := range m.Tags {
			s.index[tag] = removeMemory(s.index[tag], m)
			if len(s.index[tag]) == 0 {
				delete(s.index, tag)
			}
		}
	}
	s.memories[typ] = append([]*Memory(nil), list[cut:]...)

	s.logger.Debug("evicted memories",
		zap.String("type", string(typ)),
		zap.Int("evicted", cut),
		zap.Int("limit", limit))
}

func (s *Store) shouldConsolidate(m *Memory, now time.Time) bool {
	if m.Priority == Critical {
		return false
	}
	age := now.Sub(m.Timestamp)
	if age <= s.cfg.DecayInterval {
		return false
	}
	if m.AccessCount == 0 {
		return true
	}
	rate := float64(m.AccessCount) / (float64(age) / float64(s.cfg.DecayInterval))
	return rate < minAccessRate
}

func removeMemory(list []*Memory, target *Memory) []*Memory {
	out := list[:0]
	for _, m := range list {
		if m != target {
			out = append(out, m)
		}
	}
	return out
}
