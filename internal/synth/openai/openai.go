// Package openai answers questions with an OpenAI-compatible chat model.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"paperpal/internal/domain"
	embedopenai "paperpal/internal/embedding/openai"
	"paperpal/internal/guard"
	"paperpal/internal/prompt"
)

const DefaultModel = "gpt-4o-mini"

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxRetries  int
	Timeout     time.Duration // zero means no timeout
	Guard       *guard.Guard
}

type Synthesizer struct {
	api         *goopenai.Client
	model       string
	temperature float32
	maxRetries  int
	guard       *guard.Guard
}

func New(cfg Config) (*Synthesizer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai synthesizer: missing API key")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	oc := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Synthesizer{
		api:         goopenai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		guard:       cfg.Guard,
	}, nil
}

func (s *Synthesizer) Name() string { return "openai/" + s.model }

// Answer sends the rendered prompt as a single user message.
func (s *Synthesizer) Answer(ctx context.Context, contexts []string, question string) (string, error) {
	p, err := prompt.Render(contexts, question)
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	answer, err := guard.Call(ctx, s.guard, func(ctx context.Context) (string, error) {
		resp, err := guard.Retry(ctx, s.maxRetries, embedopenai.Retryable, func() (goopenai.ChatCompletionResponse, error) {
			return s.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
				Model:       s.model,
				Temperature: s.temperature,
				Messages: []goopenai.ChatCompletionMessage{
					{Role: goopenai.ChatMessageRoleUser, Content: p},
				},
			})
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("no choices returned")
		}
		text := strings.TrimSpace(resp.Choices[0].Message.Content)
		if text == "" {
			return "", errors.New("empty response")
		}
		return text, nil
	})
	if err != nil {
		return "", domain.Collaborate("synthesizer", "answer", err)
	}
	return answer, nil
}
