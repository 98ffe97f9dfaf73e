// Package context keeps the agent's situational awareness: one current,
// typed snapshot per context type plus a bounded history.
package context

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultPriority = 0.5

// Context is one observation held by the Manager.
type Context struct {
	Type      Type                   `json:"type"`
	Payload   Payload                `json:"-"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Expires   time.Time              `json:"expires,omitempty"`
	Priority  float64                `json:"priority"`
}

// Expired reports whether the context is no longer visible at now.
func (c Context) Expired(now time.Time) bool {
	return !c.Expires.IsZero() && !now.Before(c.Expires)
}

// clone copies the payload's maps and slices so callers cannot reach the
// stored context. Data is rebuilt from the copied payload.
func (c Context) clone() Context {
	out := c
	if c.Payload != nil {
		out.Payload = copyPayload(c.Payload)
		out.Data = out.Payload.Fields()
		return out
	}
	out.Data = make(map[string]interface{}, len(c.Data))
	for k, v := range c.Data {
		out.Data[k] = v
	}
	return out
}

// Config holds context manager settings.
type Config struct {
	// DefaultTTL applies when Add is called without WithTTL.
	// Negative disables the default expiry.
	DefaultTTL   time.Duration `json:"default_ttl"`
	HistoryLimit int           `json:"history_limit"`
}

// DefaultConfig returns a one hour TTL and a 1000 entry history.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:   time.Hour,
		HistoryLimit: 1000,
	}
}

// AddOption customizes a single Add call.
type AddOption func(*addOptions)

type addOptions struct {
	priority float64
	ttl      time.Duration
	noExpiry bool
}

// WithPriority sets the context priority, clamped to [0,1].
func WithPriority(p float64) AddOption {
	return func(o *addOptions) { o.priority = p }
}

// WithTTL overrides the default time to live. Zero keeps the default.
func WithTTL(ttl time.Duration) AddOption {
	return func(o *addOptions) { o.ttl = ttl }
}

// NoExpiry keeps the context until it is replaced or cleared.
func NoExpiry() AddOption {
	return func(o *addOptions) { o.noExpiry = true }
}

// Manager holds the current context per type.
type Manager struct {
	config  Config
	current map[Type]Context
	history []Context
	now     func() time.Time
	mu      sync.Mutex
	logger  *zap.Logger
}

// NewManager creates a context manager.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = DefaultConfig().DefaultTTL
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultConfig().HistoryLimit
	}
	return &Manager{
		config:  cfg,
		current: make(map[Type]Context),
		now:     time.Now,
		logger:  logger,
	}
}

// SetClock replaces time.Now, mainly for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// Add makes p the current context of its type and appends it to history.
func (m *Manager) Add(p Payload, opts ...AddOption) Context {
	o := addOptions{priority: defaultPriority}
	for _, fn := range opts {
		fn(&o)
	}
	if o.priority < 0 {
		o.priority = 0
	}
	if o.priority > 1 {
		o.priority = 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	p = copyPayload(p)
	c := Context{
		Type:      p.Type(),
		Payload:   p,
		Data:      p.Fields(),
		Timestamp: now,
		Priority:  o.priority,
	}
	ttl := o.ttl
	if ttl <= 0 {
		ttl = m.config.DefaultTTL
	}
	if !o.noExpiry && ttl > 0 {
		c.Expires = now.Add(ttl)
	}

	m.current[c.Type] = c
	m.history = append(m.history, c)
	if over := len(m.history) - m.config.HistoryLimit; over > 0 {
		m.history = append([]Context(nil), m.history[over:]...)
	}
	m.cleanExpired(now)

	return c.clone()
}

// Get returns the current context of typ. An expired context is removed
// and reported absent.
func (m *Manager) Get(typ Type) (Context, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.get(typ, m.now())
	if !ok {
		return Context{}, false
	}
	return c.clone(), true
}

func (m *Manager) get(typ Type, now time.Time) (Context, bool) {
	c, ok := m.current[typ]
	if !ok {
		return Context{}, false
	}
	if c.Expired(now) {
		delete(m.current, typ)
		m.logger.Debug("context expired", zap.String("type", string(typ)))
		return Context{}, false
	}
	return c, true
}

// Merge combines the data of the live contexts of types. Later types
// override keys of earlier ones. No types means every type, in Types order.
func (m *Manager) Merge(types ...Type) map[string]interface{} {
	if len(types) == 0 {
		types = Types
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	merged := make(map[string]interface{})
	for _, typ := range types {
		c, ok := m.get(typ, now)
		if !ok {
			continue
		}
		for k, v := range c.clone().Data {
			merged[k] = v
		}
	}
	return merged
}

// History returns up to limit of the most recent contexts, oldest first.
// An empty typ matches every type; limit <= 0 returns everything.
func (m *Manager) History(typ Type, limit int) []Context {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Context
	for _, c := range m.history {
		if typ == "" || c.Type == typ {
			out = append(out, c.clone())
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Clear removes the current context of typ. It reports whether one existed.
func (m *Manager) Clear(typ Type) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.current[typ]
	delete(m.current, typ)
	return ok
}

// Snapshot returns every live context.
func (m *Manager) Snapshot() map[Type]Context {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cleanExpired(m.now())
	out := make(map[Type]Context, len(m.current))
	for typ, c := range m.current {
		out[typ] = c.clone()
	}
	return out
}

// Summary describes the manager and, optionally, one context type.
type Summary struct {
	Active   int                    `json:"active"`
	Type     Type                   `json:"type,omitempty"`
	Found    bool                   `json:"found"`
	Data     map[string]interface{} `json:"data,omitempty"`
	Age      time.Duration          `json:"age,omitempty"`
	Priority float64                `json:"priority,omitempty"`
}

// Summarize counts live contexts and reports details of typ when given.
func (m *Manager) Summarize(typ Type) Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.cleanExpired(now)
	s := Summary{Active: len(m.current), Type: typ}
	if typ == "" {
		return s
	}
	if c, ok := m.current[typ]; ok {
		c = c.clone()
		s.Found = true
		s.Data = c.Data
		s.Age = now.Sub(c.Timestamp)
		s.Priority = c.Priority
	}
	return s
}

func (m *Manager) cleanExpired(now time.Time) {
	for typ, c := range m.current {
		if c.Expired(now) {
			delete(m.current, typ)
		}
	}
}
