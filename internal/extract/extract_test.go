package extract

import (
	"context"
	"strings"
	"testing"

	"paperpal/internal/domain"
	"paperpal/internal/extract/pdftest"
)

func TestExtract_PDF(t *testing.T) {
	e := New(nil)
	doc, err := e.Extract(context.Background(), domain.Source{Name: "sky.pdf", Data: pdftest.Build("The sky is blue.")})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(doc.Text, "The sky is blue.") {
		t.Fatalf("unexpected text %q", doc.Text)
	}
	if doc.Pages != 1 {
		t.Fatalf("expected 1 page, got %d", doc.Pages)
	}
	if doc.ID == "" || doc.Name != "sky.pdf" {
		t.Fatalf("unexpected document metadata %+v", doc)
	}
}

func TestExtract_PDFEmptyPageContributesNothing(t *testing.T) {
	e := New(nil)
	doc, err := e.Extract(context.Background(), domain.Source{Name: "two.pdf", Data: pdftest.Build("First page.", "")})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if doc.Pages != 2 {
		t.Fatalf("expected 2 pages, got %d", doc.Pages)
	}
	if strings.TrimSpace(doc.Text) != "First page." {
		t.Fatalf("unexpected text %q", doc.Text)
	}
}

func TestExtract_PDFWithoutText(t *testing.T) {
	e := New(nil)
	doc, err := e.Extract(context.Background(), domain.Source{Name: "blank.pdf", Data: pdftest.Build("")})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if strings.TrimSpace(doc.Text) != "" {
		t.Fatalf("expected empty text, got %q", doc.Text)
	}
}

func TestExtract_MalformedPDF(t *testing.T) {
	e := New(nil)
	if _, err := e.Extract(context.Background(), domain.Source{Name: "broken.pdf", Data: []byte("not really a pdf")}); err == nil {
		t.Fatalf("expected error for malformed pdf")
	}
	if _, err := e.Extract(context.Background(), domain.Source{Name: "x", Data: []byte("%PDF-1.4\ngarbage")}); err == nil {
		t.Fatalf("expected error for truncated pdf")
	}
}

func TestExtract_PlainText(t *testing.T) {
	e := New(nil)
	doc, err := e.Extract(context.Background(), domain.Source{Name: "notes.txt", Data: []byte("plain notes")})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if doc.Text != "plain notes" {
		t.Fatalf("unexpected text %q", doc.Text)
	}
	if _, err := e.Extract(context.Background(), domain.Source{Name: "blob.bin", Data: []byte{0xff, 0xfe, 0x00}}); err == nil {
		t.Fatalf("expected error for binary data")
	}
}

func TestExtractAll_KeepsInputOrder(t *testing.T) {
	e := New(nil)
	docs, err := e.ExtractAll(context.Background(), []domain.Source{
		{Name: "b.txt", Data: []byte("second ")},
		{Name: "a.pdf", Data: pdftest.Build("first")},
		{Name: "c.txt", Data: []byte("")},
	})
	if err != nil {
		t.Fatalf("ExtractAll: %v", err)
	}
	if len(docs) != 3 || docs[0].Name != "b.txt" || docs[1].Name != "a.pdf" {
		t.Fatalf("unexpected order %+v", docs)
	}
	all := Concat(docs)
	if !strings.HasPrefix(all, "second ") || !strings.Contains(all, "first") {
		t.Fatalf("unexpected concatenation %q", all)
	}
}

func TestExtractAll_NoSources(t *testing.T) {
	docs, err := New(nil).ExtractAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("ExtractAll: %v", err)
	}
	if Concat(docs) != "" {
		t.Fatalf("expected empty text")
	}
}

func TestDocumentID_StableAndDistinct(t *testing.T) {
	a := documentID(domain.Source{Name: "a", Data: []byte("x")})
	b := documentID(domain.Source{Name: "a", Data: []byte("x")})
	c := documentID(domain.Source{Name: "b", Data: []byte("x")})
	if a != b || a == c {
		t.Fatalf("ids: %s %s %s", a, b, c)
	}
}
