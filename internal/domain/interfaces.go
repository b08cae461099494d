package domain

import "context"

// Source is a raw uploaded document before text extraction.
type Source struct {
	Name string
	Data []byte
}

// Document represents a single uploaded document after text extraction.
type Document struct {
	ID    string
	Name  string
	Text  string
	Pages int
}

// Chunk is a bounded segment of a document's normalized text.
// Start is the rune offset of Text inside that normalized text.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Start      int
	Text       string
}

// VectorRecord pairs a chunk's embedding with the chunk text.
type VectorRecord struct {
	ID         string
	DocumentID string
	Position   int
	Text       string
	Embedding  []float32
}

// SearchResult represents a matching record with a relevance score.
type SearchResult struct {
	Record VectorRecord
	Score  float64
}

// QueryResult is ordered most relevant first.
type QueryResult []SearchResult

// Texts returns the record texts in rank order.
func (r QueryResult) Texts() []string {
	out := make([]string, len(r))
	for i := range r {
		out[i] = r[i].Record.Text
	}
	return out
}

// Extractor turns raw document bytes into plain text.
type Extractor interface {
	Extract(ctx context.Context, src Source) (Document, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Embedder converts free text into fixed-dimension vectors.
// Repeated calls on identical text must rank consistently.
type Embedder interface {
	Name() string
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Synthesizer answers a question using only the supplied context passages.
type Synthesizer interface {
	Name() string
	Answer(ctx context.Context, contexts []string, question string) (string, error)
}
