// Package vectorstore stores embedded text for nearest-neighbor recall.
// Qdrant is the networked backend; Chromem keeps everything in process.
package vectorstore

import "context"

// Point is one embedded document.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]string
}

// SearchResult holds a single vector search hit.
type SearchResult struct {
	ID      string
	Score   float32
	Payload map[string]string
}

// Index is implemented by every backend.
type Index interface {
	EnsureCollection(ctx context.Context, name string, dimension uint64) error
	Upsert(ctx context.Context, collection string, p Point) error
	Search(ctx context.Context, collection string, vector []float32, topK uint64) ([]SearchResult, error)
	Close() error
}
