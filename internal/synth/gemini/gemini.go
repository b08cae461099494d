// Package gemini answers questions with a Gemini chat model.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"paperpal/internal/domain"
	"paperpal/internal/guard"
	"paperpal/internal/prompt"
)

const (
	DefaultModel       = "gemini-1.5-flash"
	DefaultTemperature = 0.3
)

type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	Guard       *guard.Guard
}

type generateFunc func(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error)

type Synthesizer struct {
	model    string
	guard    *guard.Guard
	generate generateFunc
	client   *genai.Client
}

func New(ctx context.Context, cfg Config) (*Synthesizer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini synthesizer: missing API key")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(cfg.Temperature)
	s := &Synthesizer{
		model: cfg.Model,
		guard: cfg.Guard,
		generate: func(ctx context.Context, p string) (*genai.GenerateContentResponse, error) {
			return model.GenerateContent(ctx, genai.Text(p))
		},
		client: client,
	}
	return s, nil
}

func (s *Synthesizer) Name() string { return "gemini/" + s.model }

// Answer renders the context-only prompt and returns the model's text.
func (s *Synthesizer) Answer(ctx context.Context, contexts []string, question string) (string, error) {
	p, err := prompt.Render(contexts, question)
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	answer, err := guard.Call(ctx, s.guard, func(ctx context.Context) (string, error) {
		resp, err := s.generate(ctx, p)
		if err != nil {
			return "", err
		}
		return responseText(resp)
	})
	if err != nil {
		return "", domain.Collaborate("synthesizer", "answer", err)
	}
	return answer, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no candidates returned")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", errors.New("empty response")
	}
	return strings.TrimSpace(b.String()), nil
}

func (s *Synthesizer) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
