package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"strconv"

	"paperpal/internal/embedding"
	"paperpal/internal/tokenize"
)

const DefaultDimension = 512

// Embedder implements a deterministic bag-of-words embedder using feature
// hashing. It needs no corpus preparation, so vectors written at ingest time
// stay comparable with query vectors computed in later sessions.
type Embedder struct {
	dimension int
}

// NewEmbedder creates a hashing embedder producing vectors of the given
// dimension, or DefaultDimension when dimension is not positive.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hashing-" + strconv.Itoa(e.dimension) }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// EmbedDocuments embeds every text independently.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(t)
	}
	return out, nil
}

// EmbedQuery embeds a single query text.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.embed(text), nil
}

func (e *Embedder) embed(text string) []float32 {
	vec := make([]float32, e.dimension)
	tf := make(map[int]int)
	for _, tok := range e.Tokens(text) {
		tf[e.bucket(tok)]++
	}
	for idx, count := range tf {
		// sublinear term frequency
		vec[idx] = float32(1 + math.Log(float64(count)))
	}
	embedding.L2Normalize(vec)
	return vec
}

func (e *Embedder) bucket(tok string) int {
	h := fnv.New32a()
	h.Write([]byte(tok))
	return int(h.Sum32() % uint32(e.dimension))
}

// Tokens returns the content tokens that contribute to a vector.
func (e *Embedder) Tokens(text string) []string { return tokenize.Words(text) }
