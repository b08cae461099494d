package tui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"paperpal/internal/domain"
	"paperpal/internal/service"
)

type fakePipeline struct {
	state     service.State
	ingested  []domain.Source
	questions []string
	answer    service.Outcome
}

func (f *fakePipeline) Ingest(_ context.Context, srcs []domain.Source) service.Outcome {
	f.ingested = srcs
	f.state = service.Ready
	return service.Outcome{Level: service.Success, Message: service.MsgDone, Documents: len(srcs), Chunks: 2}
}

func (f *fakePipeline) Query(_ context.Context, q string) service.Outcome {
	f.questions = append(f.questions, q)
	return f.answer
}

func (f *fakePipeline) State() service.State { return f.state }

// submit types line, presses enter and feeds the command result back.
func submit(t *testing.T, m Model, line string) Model {
	t.Helper()
	m.input.SetValue(line)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if !m.busy || cmd == nil {
		t.Fatalf("expected pending command after enter")
	}
	next, _ = m.Update(cmd())
	return next.(Model)
}

func TestModel_QueryShowsAnswerAndPassages(t *testing.T) {
	p := &fakePipeline{state: service.Ready, answer: service.Outcome{
		Level:  service.Success,
		Answer: "The sky is blue.",
		Passages: domain.QueryResult{
			{Record: domain.VectorRecord{Text: "Grass is green. The sky is blue."}, Score: 0.9},
			{Record: domain.VectorRecord{Text: "Roses are red."}, Score: 0.1},
		},
	}}
	m := New(context.Background(), p)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = submit(t, next.(Model), "What color is the sky?")

	if len(p.questions) != 1 || p.questions[0] != "What color is the sky?" {
		t.Fatalf("unexpected questions %v", p.questions)
	}
	body := m.renderCurrentResult()
	if !strings.Contains(body, "The sky is blue.") || !strings.Contains(body, "Passage 1/2") {
		t.Fatalf("unexpected body %q", body)
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	if m.cursor != 1 || !strings.Contains(m.renderCurrentResult(), "Roses are red.") {
		t.Fatalf("down should move to the next passage")
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if next.(Model).cursor != 0 {
		t.Fatalf("cursor should wrap around")
	}
	if !strings.Contains(m.View(), "Chat with PDF") {
		t.Fatalf("missing header")
	}
}

func TestModel_IngestCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("The sky is blue."), 0o644); err != nil {
		t.Fatal(err)
	}
	p := &fakePipeline{state: service.Idle}
	m := submit(t, New(context.Background(), p), "/ingest "+path)
	if len(p.ingested) != 1 || p.ingested[0].Name != "notes.txt" {
		t.Fatalf("unexpected ingested sources %+v", p.ingested)
	}
	if m.level != service.Success || !strings.Contains(m.status, "indexed 1 documents") {
		t.Fatalf("unexpected status %q", m.status)
	}

	m = submit(t, m, "/ingest "+filepath.Join(dir, "missing.pdf"))
	if m.level != service.Error || !strings.HasPrefix(m.status, "An error occurred") {
		t.Fatalf("expected error status, got %q", m.status)
	}
	m = submit(t, m, "/ingest")
	if m.level != service.Warning {
		t.Fatalf("expected warning for bare /ingest, got %v", m.level)
	}
}

func TestModel_WarningStatus(t *testing.T) {
	p := &fakePipeline{answer: service.Outcome{Level: service.Warning, Message: service.MsgNoIndex}}
	m := submit(t, New(context.Background(), p), "anything?")
	if m.status != service.MsgNoIndex || m.level != service.Warning {
		t.Fatalf("unexpected status %q level %v", m.status, m.level)
	}
	if m.renderCurrentResult() != "No answer yet." {
		t.Fatalf("unexpected body %q", m.renderCurrentResult())
	}
}

func TestHighlightBestSentence(t *testing.T) {
	text := "Cats purr. Dogs bark."
	if got := highlightBestSentence(text, "do dogs bark"); !strings.Contains(got, "Dogs bark.") || !strings.HasPrefix(got, "Cats purr. ") {
		t.Fatalf("unexpected highlight %q", got)
	}
	if got := highlightBestSentence(text, "what"); got != text {
		t.Fatalf("text without a match should be unchanged, got %q", got)
	}
}
