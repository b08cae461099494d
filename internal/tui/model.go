package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"paperpal/internal/domain"
	"paperpal/internal/extract"
	"paperpal/internal/service"
	"paperpal/internal/synth/extractive"
)

// Pipeline is the TUI-facing subset of the controller.
type Pipeline interface {
	Ingest(ctx context.Context, srcs []domain.Source) service.Outcome
	Query(ctx context.Context, question string) service.Outcome
	State() service.State
}

const ingestCommand = "/ingest"

type outcomeMsg struct {
	op       string
	question string
	outcome  service.Outcome
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx       context.Context
	pipeline  Pipeline
	input     textinput.Model
	viewport  viewport.Model
	outcome   service.Outcome
	status    string
	level     service.Level
	cursor    int
	ready     bool
	busy      bool
	lastQuery string
}

// New creates a new TUI model instance.
func New(ctx context.Context, pipeline Pipeline) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or /ingest file.pdf ..."
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	status := "Upload PDFs with /ingest, then ask a question."
	if pipeline.State() == service.Ready {
		status = "Index loaded. Ask a question."
	}
	return Model{ctx: ctx, pipeline: pipeline, input: ti, viewport: vp, status: status, level: service.Success}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 1                                    // header
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case outcomeMsg:
		m.busy = false
		m.outcome = msg.outcome
		m.level = msg.outcome.Level
		m.status = msg.outcome.Message
		if msg.op == "query" {
			m.status = statusForQuery(msg.outcome)
			m.lastQuery = msg.question
		} else if msg.outcome.Level == service.Success {
			m.status = fmt.Sprintf("%s: indexed %d documents into %d chunks", msg.outcome.Message, msg.outcome.Documents, msg.outcome.Chunks)
		}
		m.cursor = 0
		m.viewport.SetContent(m.renderCurrentResult())
		m.viewport.GotoTop()
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			if line == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			m.busy = true
			m.level = service.Success
			m.status = "Processing..."
			if strings.HasPrefix(line, ingestCommand) {
				return m, m.ingest(strings.Fields(strings.TrimPrefix(line, ingestCommand)))
			}
			return m, m.query(line)
		case "down":
			if n := len(m.outcome.Passages); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "up":
			if n := len(m.outcome.Passages); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "pgdown", "pgup":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ingest(paths []string) tea.Cmd {
	return func() tea.Msg {
		if len(paths) == 0 {
			return outcomeMsg{op: "ingest", outcome: service.Outcome{Level: service.Warning, Message: service.MsgNoSources}}
		}
		srcs, err := extract.ReadSources(paths)
		if err != nil {
			return outcomeMsg{op: "ingest", outcome: service.Outcome{Level: service.Error, Message: "An error occurred: " + err.Error(), Err: err}}
		}
		return outcomeMsg{op: "ingest", outcome: m.pipeline.Ingest(m.ctx, srcs)}
	}
}

func (m Model) query(question string) tea.Cmd {
	return func() tea.Msg {
		return outcomeMsg{op: "query", question: question, outcome: m.pipeline.Query(m.ctx, question)}
	}
}

func statusForQuery(out service.Outcome) string {
	switch {
	case out.Level != service.Success:
		return out.Message
	case out.NotFound:
		return "The answer is not available in the uploaded documents."
	}
	return fmt.Sprintf("Answered from %d passages in %s", len(out.Passages), out.Elapsed.Round(time.Millisecond))
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Chat with PDF") +
		lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("  "+m.pipeline.State().String())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle(m.level).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrentResult() string {
	out := m.outcome
	if out.Answer == "" && len(out.Passages) == 0 {
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(answerStyle.Render("Reply: "))
	b.WriteString(out.Answer)
	if len(out.Passages) == 0 {
		return b.String()
	}
	r := out.Passages[m.cursor]
	fmt.Fprintf(&b, "\n\n%s\n\n", titleStyle.Render(fmt.Sprintf("Passage %d/%d  score=%.3f", m.cursor+1, len(out.Passages), r.Score)))
	b.WriteString(highlightBestSentence(r.Record.Text, m.lastQuery))
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	answerStyle    = lipgloss.NewStyle().Bold(true)
	titleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func statusStyle(l service.Level) lipgloss.Style {
	switch l {
	case service.Warning:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	case service.Error:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
}

func highlightBestSentence(text, query string) string {
	best := extractive.BestSentence(text, query)
	if best == "" {
		return text
	}
	return strings.Replace(text, best, highlightStyle.Render(best), 1)
}
