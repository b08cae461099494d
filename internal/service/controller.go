// Package service sequences extraction, chunking, indexing and answering
// behind a small state machine.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"paperpal/internal/domain"
	"paperpal/internal/extract"
	"paperpal/internal/prompt"
	"paperpal/internal/vectorstore"
)

type State int

const (
	Idle State = iota
	Ingesting
	Ready
	Querying
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ingesting:
		return "ingesting"
	case Ready:
		return "ready"
	case Querying:
		return "querying"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Level int

const (
	Success Level = iota
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Warning:
		return "warning"
	}
	return "error"
}

const (
	MsgNoSources  = "Please upload at least one PDF file."
	MsgNoText     = "No text chunks to process!"
	MsgNoIndex    = "Please upload and process PDF files first!"
	MsgNoQuestion = "Please enter a question."
	MsgDone       = "Done"
)

// Outcome is the user-visible result of one interaction.
type Outcome struct {
	Level   Level
	Message string
	Err     error

	// ingest
	Documents int
	Chunks    int

	// query
	Answer   string
	Passages domain.QueryResult
	NotFound bool

	Elapsed time.Duration
}

type Deps struct {
	Extractor   domain.Extractor
	Chunker     domain.Chunker
	Embedder    domain.Embedder
	Store       vectorstore.Store
	Synthesizer domain.Synthesizer
	Log         *slog.Logger
}

type Options struct {
	// Location names the persisted index; defaults to vectorstore.DefaultLocation.
	Location string
	TopK     int
}

// Status is a snapshot for status displays.
type Status struct {
	State       string `json:"state"`
	Location    string `json:"location"`
	Embedder    string `json:"embedder"`
	Synthesizer string `json:"synthesizer"`
	TopK        int    `json:"top_k"`
	Records     int    `json:"records"`
}

// Controller runs one interaction at a time; concurrent callers wait.
// State and Status never wait on a running interaction.
type Controller struct {
	mu sync.Mutex // held for a whole Ingest or Query

	snap    sync.Mutex // guards state and records
	state   State
	records int

	deps     Deps
	location string
	topK     int
	log      *slog.Logger
}

// New starts in Ready when the store already holds an index at the
// configured location, otherwise in Idle.
func New(ctx context.Context, deps Deps, opts Options) (*Controller, error) {
	switch {
	case deps.Extractor == nil:
		return nil, errors.New("service: extractor is required")
	case deps.Chunker == nil:
		return nil, errors.New("service: chunker is required")
	case deps.Embedder == nil:
		return nil, errors.New("service: embedder is required")
	case deps.Store == nil:
		return nil, errors.New("service: store is required")
	case deps.Synthesizer == nil:
		return nil, errors.New("service: synthesizer is required")
	}
	if opts.Location == "" {
		opts.Location = vectorstore.DefaultLocation
	}
	if opts.TopK <= 0 {
		opts.TopK = vectorstore.DefaultTopK
	}
	log := deps.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Controller{state: Idle, deps: deps, location: opts.Location, topK: opts.TopK, log: log}
	ok, err := deps.Store.Exists(ctx, opts.Location)
	if err != nil {
		log.Warn("index probe failed", "location", opts.Location, "error", err)
	}
	if ok {
		c.state = Ready
	}
	return c, nil
}

func (c *Controller) State() State {
	c.snap.Lock()
	defer c.snap.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.snap.Lock()
	c.state = s
	c.snap.Unlock()
}

func (c *Controller) setRecords(n int) {
	c.snap.Lock()
	c.records = n
	c.snap.Unlock()
}

func (c *Controller) TopK() int { return c.topK }

func (c *Controller) Status() Status {
	c.snap.Lock()
	defer c.snap.Unlock()
	return Status{
		State:       c.state.String(),
		Location:    c.location,
		Embedder:    c.deps.Embedder.Name(),
		Synthesizer: c.deps.Synthesizer.Name(),
		TopK:        c.topK,
		Records:     c.records,
	}
}

// Ingest extracts, chunks and embeds srcs and replaces the persisted index.
// Empty input leaves both the state and the store untouched.
func (c *Controller) Ingest(ctx context.Context, srcs []domain.Source) (out Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prior := c.State()
	c.setState(Ingesting)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = failure(fmt.Errorf("panic during ingest: %v", r))
		}
		out.Elapsed = time.Since(start)
		if out.Level == Success {
			c.setState(Ready)
		} else {
			c.setState(prior)
		}
		c.report("ingest", out)
	}()

	if len(srcs) == 0 {
		return warning(MsgNoSources, nil)
	}
	c.log.Info("ingest started", "sources", len(srcs), "location", c.location)
	docs := make([]domain.Document, 0, len(srcs))
	seen := make(map[string]bool, len(srcs))
	for _, src := range srcs {
		doc, err := c.deps.Extractor.Extract(ctx, src)
		if err != nil {
			return failure(fmt.Errorf("extract %s: %w", src.Name, err))
		}
		// identical uploads share a document id; index them once
		if seen[doc.ID] {
			c.log.Info("skipping duplicate source", "name", src.Name, "document_id", doc.ID)
			continue
		}
		seen[doc.ID] = true
		docs = append(docs, doc)
	}
	if strings.TrimSpace(extract.Concat(docs)) == "" {
		return warning(MsgNoText, domain.ErrEmptyInput)
	}
	var chunks []domain.Chunk
	for _, doc := range docs {
		cs, err := c.deps.Chunker.Chunk(doc)
		if err != nil {
			return failure(fmt.Errorf("chunk %s: %w", doc.Name, err))
		}
		chunks = append(chunks, cs...)
	}
	ix, err := vectorstore.Build(ctx, c.deps.Embedder, chunks)
	if errors.Is(err, domain.ErrEmptyInput) {
		return warning(MsgNoText, err)
	}
	if err != nil {
		return failure(err)
	}
	if err := c.deps.Store.Save(ctx, c.location, ix); err != nil {
		return failure(fmt.Errorf("save index: %w", err))
	}
	c.setRecords(ix.Len())
	return Outcome{Level: Success, Message: MsgDone, Documents: len(docs), Chunks: len(chunks)}
}

// Query answers question from the persisted index. Collaborator failures
// and panics become error outcomes and the prior state is restored.
func (c *Controller) Query(ctx context.Context, question string) (out Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prior := c.State()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = failure(fmt.Errorf("panic during query: %v", r))
		}
		out.Elapsed = time.Since(start)
		if out.Level == Success {
			c.setState(Ready)
		} else {
			c.setState(prior)
		}
		c.report("query", out)
	}()

	question = strings.TrimSpace(question)
	if question == "" {
		return warning(MsgNoQuestion, nil)
	}
	c.setState(Querying)
	ix, err := c.deps.Store.Load(ctx, c.location)
	if errors.Is(err, domain.ErrIndexNotFound) {
		return warning(MsgNoIndex, err)
	}
	if err != nil {
		return failure(fmt.Errorf("load index: %w", err))
	}
	c.setRecords(ix.Len())
	res, err := ix.Search(ctx, c.deps.Embedder, question, c.topK)
	if err != nil {
		return failure(err)
	}
	answer, err := c.deps.Synthesizer.Answer(ctx, res.Texts(), question)
	if err != nil {
		return failure(domain.Collaborate("synthesizer", "answer", err))
	}
	return Outcome{
		Level:    Success,
		Message:  "Reply: " + answer,
		Answer:   answer,
		Passages: res,
		NotFound: prompt.IsNotAvailable(answer),
	}
}

func warning(msg string, err error) Outcome {
	return Outcome{Level: Warning, Message: msg, Err: err}
}

func failure(err error) Outcome {
	return Outcome{Level: Error, Message: "An error occurred: " + err.Error(), Err: err}
}

func (c *Controller) report(op string, out Outcome) {
	attrs := []any{"op", op, "level", out.Level.String(), "elapsed", out.Elapsed}
	switch out.Level {
	case Success:
		c.log.Info(op+" finished", append(attrs, "documents", out.Documents, "chunks", out.Chunks, "passages", len(out.Passages), "not_found", out.NotFound)...)
	case Warning:
		c.log.Warn(op+" skipped", append(attrs, "message", out.Message)...)
	default:
		c.log.Error(op+" failed", append(attrs, "error", out.Err, "collaborator", domain.IsCollaborator(out.Err))...)
	}
}
