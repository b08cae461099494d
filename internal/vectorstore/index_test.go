package vectorstore

import (
	"context"
	"errors"
	"testing"

	"paperpal/internal/domain"
	"paperpal/internal/embedding/hashing"
)

type fakeEmbedder struct {
	name    string
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Name() string { return f.name }

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vectors[t]
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[text], nil
}

func chunks(texts ...string) []domain.Chunk {
	out := make([]domain.Chunk, len(texts))
	for i, t := range texts {
		out[i] = domain.Chunk{ID: "d:" + string(rune('0'+i)), DocumentID: "d", Index: i, Text: t}
	}
	return out
}

func TestBuild_EmptyInput(t *testing.T) {
	_, err := Build(context.Background(), &fakeEmbedder{name: "f"}, nil)
	if !errors.Is(err, domain.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestBuild_EmbedderFailure(t *testing.T) {
	boom := errors.New("boom")
	_, err := Build(context.Background(), &fakeEmbedder{name: "f", err: boom}, chunks("a"))
	if !errors.Is(err, boom) || !domain.IsCollaborator(err) {
		t.Fatalf("expected collaborator error, got %v", err)
	}
}

func TestBuild_DimensionMismatch(t *testing.T) {
	emb := &fakeEmbedder{name: "f", vectors: map[string][]float32{"a": {1, 0}, "b": {1, 0, 0}}}
	if _, err := Build(context.Background(), emb, chunks("a", "b")); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}

func TestSearchVector_OrderAndTies(t *testing.T) {
	emb := &fakeEmbedder{name: "f", vectors: map[string][]float32{
		"a": {1, 0}, "b": {0, 1}, "c": {1, 0}, "d": {1, 1},
	}}
	ix, err := Build(context.Background(), emb, chunks("a", "b", "c", "d"))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	res, err := ix.SearchVector([]float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("SearchVector: %v", err)
	}
	got := res.Texts()
	if len(got) != 3 || got[0] != "a" || got[1] != "c" || got[2] != "d" {
		t.Fatalf("unexpected order %v", got)
	}
	for i := 1; i < len(res); i++ {
		if res[i].Score > res[i-1].Score {
			t.Fatalf("scores not non-increasing: %v", res)
		}
	}
	if res, _ := ix.SearchVector([]float32{1, 0}, 10); len(res) != 4 {
		t.Fatalf("expected all 4 records when k exceeds size, got %d", len(res))
	}
	if res, _ := ix.SearchVector([]float32{1, 0}, 0); len(res) != DefaultTopK {
		t.Fatalf("expected default k, got %d", len(res))
	}
	if _, err := ix.SearchVector([]float32{1}, 1); err == nil {
		t.Fatalf("expected query dimension error")
	}
}

func TestSearch_HashingEmbedder(t *testing.T) {
	emb := hashing.NewEmbedder(0)
	ix, err := Build(context.Background(), emb, chunks("Paris is the capital of France.", "The sky is blue.", "Cats sleep a lot."))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	res, err := ix.Search(context.Background(), emb, "What color is the sky?", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 1 || res[0].Record.Text != "The sky is blue." {
		t.Fatalf("unexpected result %v", res)
	}
}

func TestSearch_LexicalFallbackOnZeroQuery(t *testing.T) {
	emb := &fakeEmbedder{name: "f", vectors: map[string][]float32{
		"blue sky today": {1, 0}, "green grass": {0, 1}, "sky?": {0, 0},
	}}
	ix, _ := Build(context.Background(), emb, chunks("green grass", "blue sky today"))
	res, err := ix.Search(context.Background(), emb, "sky?", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res[0].Record.Text != "blue sky today" || res[0].Score <= 0 {
		t.Fatalf("expected lexical match, got %v", res)
	}
}

func TestSearch_EmbedderMismatch(t *testing.T) {
	emb := &fakeEmbedder{name: "f", vectors: map[string][]float32{"a": {1}}}
	ix, _ := Build(context.Background(), emb, chunks("a"))
	_, err := ix.Search(context.Background(), &fakeEmbedder{name: "other"}, "a", 1)
	if !errors.Is(err, ErrEmbedderMismatch) {
		t.Fatalf("expected ErrEmbedderMismatch, got %v", err)
	}
}

func TestValidateLocation(t *testing.T) {
	for _, bad := range []string{"", "  ", "a/b", `a\b`, "..", "."} {
		if ValidateLocation(bad) == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
	if err := ValidateLocation(DefaultLocation); err != nil {
		t.Fatalf("default location rejected: %v", err)
	}
}
