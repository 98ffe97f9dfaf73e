package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/redskulldevv/omni-agi/internal/memory"
	"github.com/redskulldevv/omni-agi/internal/vectorstore"
	"go.uber.org/zap"
)

// keywordEmbedder maps text onto fixed axes so similarity is predictable.
type keywordEmbedder struct{}

var axes = []string{"bitcoin", "ethereum", "solana"}

func (keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, len(axes)+1)
		v[len(axes)] = 0.01
		for j, a := range axes {
			if strings.Contains(strings.ToLower(t), a) {
				v[j] = 1
			}
		}
		out[i] = v
	}
	return out, nil
}

func (keywordEmbedder) Dimension() int { return len(axes) + 1 }

func TestRememberAndRecall(t *testing.T) {
	ctx := context.Background()
	idx := New(keywordEmbedder{}, vectorstore.NewChromem(), zap.NewNop())
	if err := idx.Init(ctx); err != nil {
		t.Fatal(err)
	}

	store := memory.NewStore(memory.Config{}, zap.NewNop())
	m := store.Store("Bitcoin broke resistance", memory.LongTerm, memory.High, []string{"btc"}, nil)
	if err := idx.Remember(ctx, m); err != nil {
		t.Fatal(err)
	}
	if err := idx.RememberReport(ctx, "l2", "Ethereum rollups keep growing"); err != nil {
		t.Fatal(err)
	}

	got, err := idx.Recall(ctx, "what is bitcoin doing", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	if got[0].Content != "Bitcoin broke resistance" {
		t.Errorf("got %q", got[0].Content)
	}
	if !strings.HasPrefix(got[0].Source, CollMemories+":") {
		t.Errorf("source = %q", got[0].Source)
	}

	got, err = idx.Recall(ctx, "ethereum", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Content != "Ethereum rollups keep growing" {
		t.Errorf("got %+v", got)
	}
}

func TestRememberSkipsEmpty(t *testing.T) {
	idx := New(keywordEmbedder{}, vectorstore.NewChromem(), zap.NewNop())
	if err := idx.RememberReport(context.Background(), "x", "   "); err != nil {
		t.Fatal(err)
	}
	got, _ := idx.Recall(context.Background(), "x", 3)
	if len(got) != 0 {
		t.Errorf("expected nothing indexed, got %v", got)
	}
}

func TestFormatContext(t *testing.T) {
	if FormatContext(nil) != "" {
		t.Error("expected empty string for no results")
	}
	out := FormatContext([]Result{{Content: "c", Source: "memories:1", Score: 0.5}})
	if !strings.Contains(out, "1. [memories:1] (score: 0.50)\nc") {
		t.Errorf("got %q", out)
	}
}
