// Package storetest checks that a vectorstore.Store backend round-trips
// indexes faithfully.
package storetest

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"paperpal/internal/domain"
	"paperpal/internal/vectorstore"
)

// Sample returns a small index with distinct vectors.
func Sample() *vectorstore.Index {
	return &vectorstore.Index{
		Embedder:  "fake-3",
		Dimension: 3,
		Records: []domain.VectorRecord{
			{ID: "doc:0", DocumentID: "doc", Position: 0, Text: "The sky is blue.", Embedding: []float32{1, 0, 0}},
			{ID: "doc:1", DocumentID: "doc", Position: 1, Text: "Grass is green.", Embedding: []float32{0, 1, 0}},
			{ID: "doc:2", DocumentID: "doc", Position: 2, Text: "Snow is white.", Embedding: []float32{0.5, 0.5, 0.70710677}},
		},
	}
}

// Run exercises Save, Load and Exists against s.
func Run(t *testing.T, s vectorstore.Store) {
	t.Helper()
	ctx := context.Background()

	ok, err := s.Exists(ctx, "missing")
	if err != nil || ok {
		t.Fatalf("Exists(missing) = %v, %v", ok, err)
	}
	if _, err := s.Load(ctx, "missing"); !errors.Is(err, domain.ErrIndexNotFound) {
		t.Fatalf("Load(missing) err = %v, want ErrIndexNotFound", err)
	}

	want := Sample()
	if err := s.Save(ctx, "faiss_index", want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ok, err := s.Exists(ctx, "faiss_index"); err != nil || !ok {
		t.Fatalf("Exists after save = %v, %v", ok, err)
	}
	got, err := s.Load(ctx, "faiss_index")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}

	q := []float32{0.9, 0.1, 0}
	r1, _ := want.SearchVector(q, 2)
	r2, _ := got.SearchVector(q, 2)
	if !reflect.DeepEqual(r1, r2) {
		t.Fatalf("search results differ after reload: %v vs %v", r1, r2)
	}

	// saving again replaces, never appends
	smaller := Sample()
	smaller.Records = smaller.Records[:1]
	if err := s.Save(ctx, "faiss_index", smaller); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	got, err = s.Load(ctx, "faiss_index")
	if err != nil || got.Len() != 1 {
		t.Fatalf("expected replaced index with 1 record, got %v, %v", got, err)
	}

	if err := s.Save(ctx, "faiss_index", &vectorstore.Index{}); err == nil {
		t.Fatalf("expected empty index to be rejected")
	}
	if err := s.Save(ctx, "../escape", want); err == nil {
		t.Fatalf("expected invalid location to be rejected")
	}
}
