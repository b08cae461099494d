package chunker

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"paperpal/internal/domain"
)

const (
	DefaultChunkSize    = 10000
	DefaultChunkOverlap = 1000
)

// Span is a piece of normalized text starting at rune offset Start.
type Span struct {
	Start int
	Text  string
}

// RecursiveChunker splits text into overlapping chunks of at most size runes.
// Cuts prefer paragraph breaks, then line breaks, sentence ends and word
// boundaries before falling back to a hard cut.
type RecursiveChunker struct {
	size    int
	overlap int
}

// New validates the parameters and returns a chunker.
func New(size, overlap int) (*RecursiveChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunker: size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunker: overlap %d must be in [0, %d)", overlap, size)
	}
	return &RecursiveChunker{size: size, overlap: overlap}, nil
}

// Size returns the maximum chunk length in runes.
func (c *RecursiveChunker) Size() int { return c.size }

// Overlap returns the maximum overlap between consecutive chunks in runes.
func (c *RecursiveChunker) Overlap() int { return c.overlap }

// Normalize unifies line endings, drops NUL bytes and trims outer whitespace.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\x00", "")
	return strings.TrimSpace(text)
}

// Chunk splits the document text and stamps ids and positions.
func (c *RecursiveChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	spans := c.Split(document.Text)
	if len(spans) == 0 {
		return nil, nil
	}
	chunks := make([]domain.Chunk, len(spans))
	for i, s := range spans {
		chunks[i] = domain.Chunk{
			ID:         document.ID + ":" + strconv.Itoa(i),
			DocumentID: document.ID,
			Index:      i,
			Start:      s.Start,
			Text:       s.Text,
		}
	}
	return chunks, nil
}

// Split returns the ordered spans of the normalized text. Blank input
// yields no spans.
func (c *RecursiveChunker) Split(text string) []Span {
	runes := []rune(Normalize(text))
	n := len(runes)
	if n == 0 {
		return nil
	}
	var spans []Span
	pos := 0
	for {
		if n-pos <= c.size {
			return append(spans, Span{Start: pos, Text: string(runes[pos:])})
		}
		end := c.cut(runes, pos)
		spans = append(spans, Span{Start: pos, Text: string(runes[pos:end])})
		pos = c.next(runes, pos, end)
	}
}

// boundary reports whether a cut right before runes[e] lands on the boundary.
type boundary func(runes []rune, pos, e int) bool

var boundaries = []boundary{
	// paragraph
	func(r []rune, pos, e int) bool { return e-2 >= pos && r[e-1] == '\n' && r[e-2] == '\n' },
	// line
	func(r []rune, _, e int) bool { return r[e-1] == '\n' },
	// sentence
	func(r []rune, pos, e int) bool {
		return e-2 >= pos && unicode.IsSpace(r[e-1]) && strings.ContainsRune(".!?", r[e-2])
	},
	// word
	func(r []rune, _, e int) bool { return unicode.IsSpace(r[e-1]) },
}

// cut picks the end of the chunk starting at pos. The chunk always grows
// past the overlap so the next chunk starts strictly after pos.
func (c *RecursiveChunker) cut(runes []rune, pos int) int {
	limit := pos + c.size
	minEnd := pos + c.overlap + 1
	if half := pos + c.size/2; half > minEnd {
		minEnd = half
	}
	for _, at := range boundaries {
		for e := limit; e >= minEnd; e-- {
			if at(runes, pos, e) {
				return e
			}
		}
	}
	return limit
}

// next returns the start of the chunk following [pos, end). The overlap is
// moved forward to the nearest word start so that no word is split at the
// seam; without one inside the window the raw overlap is kept.
func (c *RecursiveChunker) next(runes []rune, pos, end int) int {
	if c.overlap == 0 {
		return end
	}
	start := end - c.overlap
	if start <= pos {
		start = pos + 1
	}
	for s := start; s < end; s++ {
		if !unicode.IsSpace(runes[s]) && unicode.IsSpace(runes[s-1]) {
			return s
		}
	}
	return start
}

// Reassemble joins chunks of one document back into its normalized text,
// dropping the overlapping prefix of every chunk.
func Reassemble(chunks []domain.Chunk) string {
	var b strings.Builder
	covered := 0
	for _, ch := range chunks {
		r := []rune(ch.Text)
		skip := covered - ch.Start
		if skip < 0 {
			skip = 0
		}
		if skip >= len(r) {
			continue
		}
		b.WriteString(string(r[skip:]))
		covered = ch.Start + len(r)
	}
	return b.String()
}
