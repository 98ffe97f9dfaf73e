// Package embedding turns text into vectors for semantic recall.
package embedding

import (
	"context"
	"fmt"
	"time"
)

// Provider generates vector embeddings from text.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Config holds embedding provider configuration.
type Config struct {
	Provider  string        `json:"provider"` // "openai" or "local"
	Endpoint  string        `json:"endpoint"`
	Model     string        `json:"model"`
	APIKey    string        `json:"api_key"`
	Dimension int           `json:"dimension"`
	Timeout   time.Duration `json:"timeout"`
}

// New builds the provider cfg names.
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "openai", "api":
		return NewOpenAIProvider(cfg), nil
	case "local", "ollama":
		return NewLocalProvider(cfg), nil
	}
	return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
}

// dimensionCache remembers the vector size seen in the first response.
type dimensionCache struct {
	configured int
	seen       int
}

func (d *dimensionCache) observe(vectors [][]float32) {
	if d.seen == 0 && len(vectors) > 0 && len(vectors[0]) > 0 {
		d.seen = len(vectors[0])
	}
}

func (d *dimensionCache) get() int {
	if d.seen > 0 {
		return d.seen
	}
	return d.configured
}
