package hashing

import (
	"context"
	"math"
	"testing"
)

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestEmbedder_Deterministic(t *testing.T) {
	e := NewEmbedder(64)
	v1, _ := e.EmbedQuery(context.Background(), "Go is great for AI.")
	v2, _ := e.EmbedQuery(context.Background(), "Go is great for AI.")
	if len(v1) != 64 || len(v2) != 64 {
		t.Fatalf("unexpected dimension %d/%d", len(v1), len(v2))
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("embeddings not deterministic at index %d: %v vs %v", i, v1[i], v2[i])
		}
	}
	if n := dot(v1, v1); math.Abs(n-1) > 1e-5 {
		t.Fatalf("expected unit vector, got squared norm %v", n)
	}
}

func TestEmbedder_SharedTermsRankHigher(t *testing.T) {
	e := NewEmbedder(0)
	docs, err := e.EmbedDocuments(context.Background(), []string{"The sky is blue.", "Paris is the capital of France."})
	if err != nil {
		t.Fatalf("EmbedDocuments: %v", err)
	}
	q, _ := e.EmbedQuery(context.Background(), "What color is the sky?")
	if dot(q, docs[0]) <= dot(q, docs[1]) {
		t.Fatalf("expected sky document to score higher: %v vs %v", dot(q, docs[0]), dot(q, docs[1]))
	}
}

func TestEmbedder_StopwordsOnlyIsZero(t *testing.T) {
	e := NewEmbedder(32)
	v, _ := e.EmbedQuery(context.Background(), "what is the")
	for _, x := range v {
		if x != 0 {
			t.Fatalf("expected zero vector for stopword-only text")
		}
	}
	if toks := e.Tokens("What is THE sky"); len(toks) != 1 || toks[0] != "sky" {
		t.Fatalf("unexpected tokens %v", toks)
	}
}

func TestEmbedder_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewEmbedder(8).EmbedDocuments(ctx, []string{"x"}); err == nil {
		t.Fatalf("expected context error")
	}
}
