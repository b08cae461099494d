package extract

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"paperpal/internal/domain"
)

var pdfMagic = []byte("%PDF-")

// Extractor turns PDF and plain-text uploads into documents.
type Extractor struct {
	log *slog.Logger
}

// New creates an extractor. A nil logger discards output.
func New(log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Extractor{log: log}
}

// Extract returns the plain text of a single source. PDF pages are
// concatenated in page order; a page without extractable text contributes
// an empty string.
func (e *Extractor) Extract(ctx context.Context, src domain.Source) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}
	doc := domain.Document{ID: documentID(src), Name: src.Name}
	if isPDF(src) {
		text, pages, err := e.pdfText(src)
		if err != nil {
			return domain.Document{}, err
		}
		doc.Text, doc.Pages = text, pages
		return doc, nil
	}
	if !utf8.Valid(src.Data) {
		return domain.Document{}, fmt.Errorf("extract %s: unsupported binary document", src.Name)
	}
	doc.Text, doc.Pages = string(src.Data), 1
	return doc, nil
}

// ExtractAll extracts every source in input order.
func (e *Extractor) ExtractAll(ctx context.Context, srcs []domain.Source) ([]domain.Document, error) {
	docs := make([]domain.Document, 0, len(srcs))
	for _, src := range srcs {
		doc, err := e.Extract(ctx, src)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Concat joins the document texts in input order.
func Concat(docs []domain.Document) string {
	var b strings.Builder
	for _, d := range docs {
		b.WriteString(d.Text)
	}
	return b.String()
}

func (e *Extractor) pdfText(src domain.Source) (string, int, error) {
	r, err := openPDF(src.Data)
	if err != nil {
		return "", 0, fmt.Errorf("extract %s: failed to open pdf: %w", src.Name, err)
	}
	var b strings.Builder
	pages := r.NumPage()
	for i := 1; i <= pages; i++ {
		text, err := pageText(r, i)
		if err != nil {
			e.log.Debug("page has no extractable text", "document", src.Name, "page", i, "error", err)
			continue
		}
		b.WriteString(text)
	}
	return b.String(), pages, nil
}

// openPDF guards against parser panics on malformed files.
func openPDF(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			r, err = nil, fmt.Errorf("malformed pdf: %v", p)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

func pageText(r *pdf.Reader, n int) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("page %d: %v", n, p)
		}
	}()
	page := r.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(make(map[string]*pdf.Font))
}

func isPDF(src domain.Source) bool {
	if bytes.HasPrefix(src.Data, pdfMagic) {
		return true
	}
	return strings.EqualFold(filepath.Ext(src.Name), ".pdf")
}

func documentID(src domain.Source) string {
	h := sha1.New()
	h.Write([]byte(src.Name))
	h.Write([]byte{0})
	h.Write(src.Data)
	return hex.EncodeToString(h.Sum(nil)[:8])
}
