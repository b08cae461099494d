// Package gemini embeds text with Google's Generative AI embedding models.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"paperpal/internal/domain"
	"paperpal/internal/embedding"
	"paperpal/internal/guard"
)

const (
	DefaultModel = "models/embedding-001"
	// MaxBatch is the largest batch the embedding endpoint accepts.
	MaxBatch = 100
)

type Config struct {
	APIKey    string
	Model     string
	BatchSize int
	Guard     *guard.Guard
}

// embedFunc embeds one batch for the given retrieval task.
type embedFunc func(ctx context.Context, task genai.TaskType, texts []string) ([][]float32, error)

type Embedder struct {
	model     string
	batchSize int
	guard     *guard.Guard
	embed     embedFunc
	client    *genai.Client
}

// New dials the Generative AI API. Call Close when done.
func New(ctx context.Context, cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini embeddings: missing API key")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	e := newEmbedder(cfg, sdkEmbed(client, cfg.Model))
	e.client = client
	return e, nil
}

func newEmbedder(cfg Config, fn embedFunc) *Embedder {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatch {
		cfg.BatchSize = MaxBatch
	}
	return &Embedder{model: cfg.Model, batchSize: cfg.BatchSize, guard: cfg.Guard, embed: fn}
}

func sdkEmbed(client *genai.Client, model string) embedFunc {
	return func(ctx context.Context, task genai.TaskType, texts []string) ([][]float32, error) {
		em := client.EmbeddingModel(model)
		em.TaskType = task
		if len(texts) == 1 {
			resp, err := em.EmbedContent(ctx, genai.Text(texts[0]))
			if err != nil {
				return nil, err
			}
			if resp.Embedding == nil {
				return nil, errors.New("no embedding returned")
			}
			return [][]float32{resp.Embedding.Values}, nil
		}
		b := em.NewBatch()
		for _, t := range texts {
			b.AddContent(genai.Text(t))
		}
		resp, err := em.BatchEmbedContents(ctx, b)
		if err != nil {
			return nil, err
		}
		out := make([][]float32, len(resp.Embeddings))
		for i, e := range resp.Embeddings {
			if e != nil {
				out[i] = e.Values
			}
		}
		return out, nil
	}
}

func (e *Embedder) Name() string { return "gemini/" + e.model }

// EmbedDocuments embeds chunk texts with the retrieval-document task type.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	err := embedding.Batches(len(texts), e.batchSize, func(lo, hi int) error {
		vecs, err := e.call(ctx, genai.TaskTypeRetrievalDocument, texts[lo:hi])
		if err != nil {
			return err
		}
		if err := embedding.CheckCount(hi-lo, vecs); err != nil {
			return err
		}
		out = append(out, vecs...)
		return nil
	})
	if err != nil {
		return nil, domain.Collaborate("embedder", "embed documents", err)
	}
	return out, nil
}

// EmbedQuery embeds a question with the retrieval-query task type.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.call(ctx, genai.TaskTypeRetrievalQuery, []string{text})
	if err == nil {
		err = embedding.CheckCount(1, vecs)
	}
	if err != nil {
		return nil, domain.Collaborate("embedder", "embed query", err)
	}
	return vecs[0], nil
}

func (e *Embedder) call(ctx context.Context, task genai.TaskType, texts []string) ([][]float32, error) {
	return guard.Call(ctx, e.guard, func(ctx context.Context) ([][]float32, error) {
		return e.embed(ctx, task, texts)
	})
}

func (e *Embedder) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}
