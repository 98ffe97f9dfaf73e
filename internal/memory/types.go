package memory

import (
	"fmt"
	"strings"
	"time"
)

// Type identifies which store a memory lives in.
type Type string

const (
	ShortTerm Type = "short_term"
	LongTerm  Type = "long_term"
	Working   Type = "working"
	Episodic  Type = "episodic"
	Semantic  Type = "semantic"
)

// Types lists every memory type in a stable order.
var Types = []Type{ShortTerm, LongTerm, Working, Episodic, Semantic}

// Valid reports whether t is a known memory type.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Priority orders memories for retrieval and eviction.
type Priority int

const (
	Low Priority = iota
	Medium
	High
	Critical
)

func (p Priority) String() string {
	switch p {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case Critical:
		return "critical"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// ParsePriority accepts a priority name.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(s) {
	case "low":
		return Low, nil
	case "medium", "":
		return Medium, nil
	case "high":
		return High, nil
	case "critical":
		return Critical, nil
	}
	return Low, fmt.Errorf("unknown memory priority %q", s)
}

// Memory is a stored observation. Values handed out by the Store are copies.
type Memory struct {
	ID           string                 `json:"id"`
	Content      interface{}            `json:"content"`
	Type         Type                   `json:"type"`
	Priority     Priority               `json:"priority"`
	Timestamp    time.Time              `json:"timestamp"`
	Tags         []string               `json:"tags"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	AccessCount  int                    `json:"access_count"`
	LastAccessed time.Time              `json:"last_accessed"`
	DecayRate    float64                `json:"decay_rate"`
}

// Text renders the content for prompts and indexing.
func (m Memory) Text() string {
	switch c := m.Content.(type) {
	case string:
		return c
	case fmt.Stringer:
		return c.String()
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", m.Content)
}

func (m *Memory) clone() Memory {
	out := *m
	out.Tags = append([]string(nil), m.Tags...)
	if m.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(m.Metadata))
		for k, v := range m.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Stats summarizes the store.
type Stats struct {
	TotalMemories  int              `json:"total_memories"`
	ByType         map[Type]int     `json:"by_type"`
	ByPriority     map[string]int   `json:"by_priority"`
	AvgAccessCount map[Type]float64 `json:"avg_access_count"`
	TotalTags      int              `json:"total_tags"`
}
