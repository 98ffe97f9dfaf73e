// Package rag indexes consolidated memories and research reports and recalls
// them by meaning for the cognition prompt.
package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redskulldevv/omni-agi/internal/embedding"
	"github.com/redskulldevv/omni-agi/internal/memory"
	"github.com/redskulldevv/omni-agi/internal/vectorstore"
	"go.uber.org/zap"
)

const (
	CollMemories = "memories"
	CollResearch = "research"

	defaultDimension = 1536
)

var collections = []string{CollMemories, CollResearch}

// Result is a single recalled snippet.
type Result struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float32 `json:"score"`
}

// Index couples an embedder with a vector store.
type Index struct {
	embedder embedding.Provider
	store    vectorstore.Index
	logger   *zap.Logger
}

// New creates a recall index.
func New(embedder embedding.Provider, store vectorstore.Index, logger *zap.Logger) *Index {
	return &Index{embedder: embedder, store: store, logger: logger}
}

// Init ensures every collection exists.
func (x *Index) Init(ctx context.Context) error {
	dim := uint64(x.embedder.Dimension())
	if dim == 0 {
		dim = defaultDimension
	}
	for _, name := range collections {
		if err := x.store.EnsureCollection(ctx, name, dim); err != nil {
			return fmt.Errorf("init collection %s: %w", name, err)
		}
	}
	return nil
}

// Remember indexes a memory under its own id.
func (x *Index) Remember(ctx context.Context, m memory.Memory) error {
	text := m.Text()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return x.put(ctx, CollMemories, m.ID, text, map[string]string{
		"memory_type": string(m.Type),
		"priority":    m.Priority.String(),
		"tags":        strings.Join(m.Tags, ","),
	})
}

// RememberReport indexes a research report on topic.
func (x *Index) RememberReport(ctx context.Context, topic, report string) error {
	if strings.TrimSpace(report) == "" {
		return nil
	}
	return x.put(ctx, CollResearch, uuid.New().String(), report, map[string]string{"topic": topic})
}

func (x *Index) put(ctx context.Context, collection, id, content string, meta map[string]string) error {
	vectors, err := x.embedder.Embed(ctx, []string{content})
	if err != nil {
		return fmt.Errorf("embed content: %w", err)
	}
	if len(vectors) == 0 {
		return fmt.Errorf("empty embedding result")
	}
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
	}

	payload := make(map[string]string, len(meta)+2)
	for k, v := range meta {
		payload[k] = v
	}
	payload["content"] = content
	payload["indexed_at"] = time.Now().UTC().Format(time.RFC3339)

	return x.store.Upsert(ctx, collection, vectorstore.Point{ID: id, Vector: vectors[0], Payload: payload})
}

// Recall embeds query and returns the k best snippets across collections.
// A collection that fails to answer is logged and skipped.
func (x *Index) Recall(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 {
		k = 5
	}
	vectors, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	var all []Result
	for _, coll := range collections {
		hits, err := x.store.Search(ctx, coll, vectors[0], uint64(k))
		if err != nil {
			x.logger.Warn("recall search failed", zap.String("collection", coll), zap.Error(err))
			continue
		}
		for _, h := range hits {
			all = append(all, Result{
				Content: h.Payload["content"],
				Source:  coll + ":" + h.ID,
				Score:   h.Score,
			})
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if len(all) > k {
		all = all[:k]
	}
	return all, nil
}

// Close releases the vector store.
func (x *Index) Close() error { return x.store.Close() }

// FormatContext renders results for a prompt.
func FormatContext(results []Result) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Recalled context\n\n")
	for i, r := range results {
		fmt.Fprintf(&b, "%d. [%s] (score: %.2f)\n%s\n\n", i+1, r.Source, r.Score, r.Content)
	}
	return b.String()
}
