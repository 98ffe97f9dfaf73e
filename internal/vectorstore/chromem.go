package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/philippgille/chromem-go"
)

// Chromem is an in-process index used when no Qdrant is configured.
type Chromem struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection
	mu          sync.Mutex
}

// NewChromem creates an empty in-memory index.
func NewChromem() *Chromem {
	return &Chromem{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
	}
}

// EnsureCollection creates the collection if needed. Chromem sizes vectors
// from the data, so dimension is unused.
func (c *Chromem) EnsureCollection(_ context.Context, name string, _ uint64) error {
	_, err := c.collection(name)
	return err
}

func (c *Chromem) collection(name string) (*chromem.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if col, ok := c.collections[name]; ok {
		return col, nil
	}
	col, err := c.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", name, err)
	}
	c.collections[name] = col
	return col, nil
}

func (c *Chromem) Upsert(ctx context.Context, collection string, p Point) error {
	col, err := c.collection(collection)
	if err != nil {
		return err
	}
	err = col.AddDocument(ctx, chromem.Document{
		ID:        p.ID,
		Content:   p.Payload["content"],
		Embedding: p.Vector,
		Metadata:  p.Payload,
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", collection, err)
	}
	return nil
}

// Search returns up to topK hits. Chromem rejects queries for more results
// than the collection holds, so the limit is clamped.
func (c *Chromem) Search(ctx context.Context, collection string, vector []float32, topK uint64) ([]SearchResult, error) {
	col, err := c.collection(collection)
	if err != nil {
		return nil, err
	}
	n := int(topK)
	if count := col.Count(); n > count {
		n = count
	}
	if n == 0 {
		return nil, nil
	}
	hits, err := col.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}
	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, SearchResult{ID: h.ID, Score: h.Similarity, Payload: h.Metadata})
	}
	return results, nil
}

func (c *Chromem) Close() error { return nil }
