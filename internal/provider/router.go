package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Router holds the registered providers and picks one per caller, trying a
// fallback chain when the chosen provider fails.
type Router struct {
	providers map[string]Provider
	bindings  map[string]string // caller -> provider ID
	fallbacks []string
	defaults  string
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRouter creates an empty router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		providers: make(map[string]Provider),
		bindings:  make(map[string]string),
		logger:    logger,
	}
}

// Register adds a provider. The first one registered becomes the default.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
	if r.defaults == "" {
		r.defaults = p.ID()
	}
	r.logger.Info("registered provider", zap.String("id", p.ID()), zap.String("name", p.Name()))
}

// SetDefault sets the default provider.
func (r *Router) SetDefault(providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = providerID
}

// DefaultID returns the current default provider ID.
func (r *Router) DefaultID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaults
}

// Bind routes a caller, such as a loop name, to a specific provider.
func (r *Router) Bind(caller, providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[caller] = providerID
}

// SetFallbacks sets the providers tried, in order, after the primary fails.
func (r *Router) SetFallbacks(providerIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks = append([]string(nil), providerIDs...)
}

// Route sends req to the caller's provider, then to each fallback.
func (r *Router) Route(ctx context.Context, caller string, req *ChatRequest) (*ChatResponse, error) {
	r.mu.RLock()
	primary := r.pick(caller)
	chain := append([]string(nil), r.fallbacks...)
	providers := r.providers
	r.mu.RUnlock()

	if primary == nil {
		return nil, fmt.Errorf("no provider available for %s", caller)
	}

	resp, err := primary.Chat(ctx, req)
	if err == nil {
		return resp, nil
	}
	r.logger.Warn("primary provider failed, trying fallbacks",
		zap.String("caller", caller), zap.String("provider", primary.ID()), zap.Error(err))

	for _, id := range chain {
		fb, ok := providers[id]
		if !ok || id == primary.ID() {
			continue
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err = fb.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		r.logger.Warn("fallback provider failed", zap.String("provider", id), zap.Error(err))
	}
	return nil, fmt.Errorf("all providers failed for %s: %w", caller, err)
}

func (r *Router) pick(caller string) Provider {
	if id, ok := r.bindings[caller]; ok {
		if p, ok := r.providers[id]; ok {
			return p
		}
	}
	return r.providers[r.defaults]
}

// GetProvider returns a provider by ID.
func (r *Router) GetProvider(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// ListProviders returns the registered providers ordered by ID.
func (r *Router) ListProviders() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Health checks every provider and returns the error per provider ID.
func (r *Router) Health(ctx context.Context) map[string]error {
	out := make(map[string]error)
	for _, p := range r.ListProviders() {
		out[p.ID()] = p.HealthCheck(ctx)
	}
	return out
}
