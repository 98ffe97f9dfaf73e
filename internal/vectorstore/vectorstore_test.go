package vectorstore

import (
	"context"
	"testing"
)

func TestChromemSearchOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	idx := NewChromem()
	if err := idx.EnsureCollection(ctx, "memories", 3); err != nil {
		t.Fatal(err)
	}

	points := []Point{
		{ID: "btc", Vector: []float32{1, 0, 0}, Payload: map[string]string{"content": "bitcoin"}},
		{ID: "eth", Vector: []float32{0, 1, 0}, Payload: map[string]string{"content": "ether"}},
		{ID: "mix", Vector: []float32{0.7, 0.7, 0}, Payload: map[string]string{"content": "both"}},
	}
	for _, p := range points {
		if err := idx.Upsert(ctx, "memories", p); err != nil {
			t.Fatal(err)
		}
	}

	got, err := idx.Search(ctx, "memories", []float32{1, 0.1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].ID != "btc" || got[1].ID != "mix" {
		t.Errorf("order = %s, %s; want btc, mix", got[0].ID, got[1].ID)
	}
	if got[0].Payload["content"] != "bitcoin" {
		t.Errorf("payload = %v", got[0].Payload)
	}
}

func TestChromemSearchClampsLimit(t *testing.T) {
	ctx := context.Background()
	idx := NewChromem()

	got, err := idx.Search(ctx, "empty", []float32{1, 0}, 5)
	if err != nil || got != nil {
		t.Fatalf("empty collection: got %v, %v", got, err)
	}

	_ = idx.Upsert(ctx, "one", Point{ID: "a", Vector: []float32{1, 0}, Payload: map[string]string{"content": "a"}})
	got, err = idx.Search(ctx, "one", []float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("got %d results, want 1", len(got))
	}
}
