package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"paperpal/internal/domain"
	"paperpal/internal/embedding"
	"paperpal/internal/guard"
)

const (
	defaultModel     = "text-embedding-3-small"
	defaultBatchSize = 100
)

// Client is an OpenAI-compatible embeddings client implementing domain.Embedder.
type Client struct {
	api        *goopenai.Client
	model      string
	batchSize  int
	maxRetries int
	guard      *guard.Guard
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	BatchSize  int
	MaxRetries int
	// Timeout bounds each HTTP request; zero means none.
	Timeout    time.Duration
	Guard      *guard.Guard
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai embeddings: missing API key")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	oc := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Client{
		api:        goopenai.NewClientWithConfig(oc),
		model:      cfg.Model,
		batchSize:  cfg.BatchSize,
		maxRetries: cfg.MaxRetries,
		guard:      cfg.Guard,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai/" + c.model }

// EmbedDocuments embeds texts in batches, preserving order.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	err := embedding.Batches(len(texts), c.batchSize, func(lo, hi int) error {
		vecs, err := c.embed(ctx, texts[lo:hi])
		if err != nil {
			return err
		}
		out = append(out, vecs...)
		return nil
	})
	if err != nil {
		return nil, domain.Collaborate("embedder", "embed documents", err)
	}
	if err := embedding.CheckCount(len(texts), out); err != nil {
		return nil, domain.Collaborate("embedder", "embed documents", err)
	}
	return out, nil
}

// EmbedQuery embeds a single question.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embed(ctx, []string{text})
	if err == nil {
		err = embedding.CheckCount(1, vecs)
	}
	if err != nil {
		return nil, domain.Collaborate("embedder", "embed query", err)
	}
	return vecs[0], nil
}

func (c *Client) embed(ctx context.Context, batch []string) ([][]float32, error) {
	return guard.Call(ctx, c.guard, func(ctx context.Context) ([][]float32, error) {
		resp, err := guard.Retry(ctx, c.maxRetries, Retryable, func() (goopenai.EmbeddingResponse, error) {
			return c.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
				Model: goopenai.EmbeddingModel(c.model),
				Input: batch,
			})
		})
		if err != nil {
			return nil, err
		}
		vecs := make([][]float32, len(batch))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(vecs) {
				return nil, fmt.Errorf("embedding index %d out of range", d.Index)
			}
			v := append([]float32(nil), d.Embedding...)
			embedding.L2Normalize(v)
			vecs[d.Index] = v
		}
		return vecs, nil
	})
}

// Retryable reports whether err is a rate limit or server-side failure
// returned by an OpenAI-compatible endpoint.
func Retryable(err error) bool {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return guard.RetryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return guard.RetryableStatus(reqErr.HTTPStatusCode)
	}
	return false
}
