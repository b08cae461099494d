// Package vectorstore builds, searches and persists embedding indexes.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"paperpal/internal/domain"
	"paperpal/internal/embedding"
	"paperpal/internal/tokenize"
)

const DefaultTopK = 4

// ErrEmbedderMismatch is returned when an index is searched with a different
// embedder than the one that built it.
var ErrEmbedderMismatch = errors.New("index was built with a different embedder")

// Index is an immutable set of embedded chunks kept in insertion order.
type Index struct {
	Embedder  string
	Dimension int
	Records   []domain.VectorRecord
}

// Build embeds chunks in one EmbedDocuments call and returns the index.
func Build(ctx context.Context, emb domain.Embedder, chunks []domain.Chunk) (*Index, error) {
	if len(chunks) == 0 {
		return nil, domain.ErrEmptyInput
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := emb.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, domain.Collaborate("embedder", "embed documents", err)
	}
	if err := embedding.CheckCount(len(chunks), vectors); err != nil {
		return nil, err
	}
	ix := &Index{Embedder: emb.Name(), Dimension: len(vectors[0]), Records: make([]domain.VectorRecord, len(chunks))}
	for i, c := range chunks {
		if len(vectors[i]) != ix.Dimension {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(vectors[i]), ix.Dimension)
		}
		ix.Records[i] = domain.VectorRecord{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			Position:   i,
			Text:       c.Text,
			Embedding:  vectors[i],
		}
	}
	return ix, nil
}

func (ix *Index) Len() int { return len(ix.Records) }

// Validate checks the invariants every backend relies on after a load.
func (ix *Index) Validate() error {
	if ix == nil || len(ix.Records) == 0 {
		return domain.ErrEmptyInput
	}
	for i, r := range ix.Records {
		if len(r.Embedding) != ix.Dimension {
			return fmt.Errorf("record %d has dimension %d, want %d", i, len(r.Embedding), ix.Dimension)
		}
	}
	return nil
}

// Search embeds query and returns the k closest records. When the query
// vector carries no signal it falls back to LexicalSearch.
func (ix *Index) Search(ctx context.Context, emb domain.Embedder, query string, k int) (domain.QueryResult, error) {
	if ix.Embedder != "" && emb.Name() != ix.Embedder {
		return nil, fmt.Errorf("%w: index %q, query %q", ErrEmbedderMismatch, ix.Embedder, emb.Name())
	}
	vec, err := emb.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.Collaborate("embedder", "embed query", err)
	}
	if embedding.IsZero(vec) {
		return ix.LexicalSearch(query, k), nil
	}
	res, err := ix.SearchVector(vec, k)
	if err != nil {
		return nil, err
	}
	for _, r := range res {
		if r.Score > 1e-9 {
			return res, nil
		}
	}
	return ix.LexicalSearch(query, k), nil
}

// SearchVector ranks records by cosine similarity to vec, best first, ties
// in insertion order. A non-positive k means DefaultTopK.
func (ix *Index) SearchVector(vec []float32, k int) (domain.QueryResult, error) {
	if len(vec) != ix.Dimension {
		return nil, fmt.Errorf("query dimension %d, index dimension %d", len(vec), ix.Dimension)
	}
	scores := make([]float64, len(ix.Records))
	for i := range ix.Records {
		scores[i] = cosine(ix.Records[i].Embedding, vec)
	}
	return ix.top(scores, k), nil
}

// LexicalSearch ranks records by the Ochiai coefficient between the
// content words of query and of each record.
func (ix *Index) LexicalSearch(query string, k int) domain.QueryResult {
	qset := tokenize.Set(query)
	scores := make([]float64, len(ix.Records))
	for i, r := range ix.Records {
		scores[i] = overlapOchiai(qset, tokenize.Set(r.Text))
	}
	return ix.top(scores, k)
}

func (ix *Index) top(scores []float64, k int) domain.QueryResult {
	if k <= 0 {
		k = DefaultTopK
	}
	idxs := make([]int, len(scores))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return scores[idxs[a]] > scores[idxs[b]] })
	if k > len(idxs) {
		k = len(idxs)
	}
	out := make(domain.QueryResult, 0, k)
	for _, j := range idxs[:k] {
		out = append(out, domain.SearchResult{Record: ix.Records[j], Score: scores[j]})
	}
	return out
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// overlapOchiai is |A∩B| / sqrt(|A||B|).
func overlapOchiai(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range b {
		if _, ok := a[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(a))*float64(len(b)))
}
