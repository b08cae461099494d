package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"paperpal/internal/chunker"
	"paperpal/internal/config"
	"paperpal/internal/domain"
	"paperpal/internal/embedding/gemini"
	"paperpal/internal/embedding/hashing"
	"paperpal/internal/embedding/openai"
	"paperpal/internal/extract"
	"paperpal/internal/guard"
	"paperpal/internal/service"
	"paperpal/internal/synth/extractive"
	synthgemini "paperpal/internal/synth/gemini"
	synthopenai "paperpal/internal/synth/openai"
	"paperpal/internal/vectorstore"
	"paperpal/internal/vectorstore/file"
	"paperpal/internal/vectorstore/memory"
	"paperpal/internal/vectorstore/qdrant"
	"paperpal/internal/vectorstore/sqlite"
)

// app owns the assembled controller and everything that needs closing.
type app struct {
	ctrl    *service.Controller
	closers []io.Closer
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

func newGuard(cfg *config.AppConfig, name string, log *slog.Logger) *guard.Guard {
	return guard.New(guard.Settings{
		Name:              name,
		RequestsPerMinute: cfg.Guard.RequestsPerMinute,
		FailureRatio:      cfg.Guard.FailureRatio,
	}, log)
}

func assemble(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()
	creds := cfg.Credentials()

	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "gemini":
		if creds.GeminiEmbedder == "" {
			return nil, fmt.Errorf("gemini embedder: set %s", cfg.Embedder.Gemini.APIKeyEnv)
		}
		e, err := gemini.New(ctx, gemini.Config{
			APIKey:    creds.GeminiEmbedder,
			Model:     cfg.Embedder.Gemini.Model,
			BatchSize: cfg.Embedder.Gemini.BatchSize,
			Guard:     newGuard(cfg, "gemini-embeddings", log),
		})
		if err != nil {
			return nil, fmt.Errorf("gemini embedder init failed: %w", err)
		}
		a.closers = append(a.closers, e)
		emb = e
	case "openai":
		if creds.OpenAIEmbedder == "" {
			return nil, fmt.Errorf("openai embedder: set %s", cfg.Embedder.OpenAI.APIKeyEnv)
		}
		c, err := openai.NewClient(openai.Config{
			BaseURL:    cfg.Embedder.OpenAI.BaseURL,
			APIKey:     creds.OpenAIEmbedder,
			Model:      cfg.Embedder.OpenAI.Model,
			BatchSize:  cfg.Embedder.OpenAI.BatchSize,
			MaxRetries: cfg.Embedder.OpenAI.MaxRetries,
			Timeout:    time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
			Guard:      newGuard(cfg, "openai-embeddings", log),
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = c
	case "hashing":
		emb = hashing.NewEmbedder(cfg.Embedder.Hashing.Dimension)
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}

	var ch domain.Chunker
	switch cfg.Chunker.Type {
	case "recursive", "":
		rc, err := chunker.New(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
		if err != nil {
			return nil, err
		}
		ch = rc
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Chunker.Type)
	}

	var st vectorstore.Store
	switch vs := cfg.VectorStore; vs.Type {
	case "file":
		st = file.NewStorage(vs.File.Dir)
	case "sqlite":
		db, err := sqlite.Open(vs.SQLite.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		st = db
	case "qdrant":
		st = qdrant.NewStorage(qdrant.Config{
			URL:     vs.Qdrant.URL,
			APIKey:  vs.Qdrant.APIKey,
			Prefix:  vs.Qdrant.CollectionPrefix,
			Timeout: time.Duration(vs.Qdrant.TimeoutSecs) * time.Second,
		})
	case "memory":
		st = memory.NewStorage()
	default:
		return nil, fmt.Errorf("unknown vector store: %s", vs.Type)
	}

	var syn domain.Synthesizer
	switch cfg.Synthesizer.Type {
	case "gemini":
		if creds.GeminiSynth == "" {
			return nil, fmt.Errorf("gemini synthesizer: set %s", cfg.Synthesizer.Gemini.APIKeyEnv)
		}
		s, err := synthgemini.New(ctx, synthgemini.Config{
			APIKey:      creds.GeminiSynth,
			Model:       cfg.Synthesizer.Gemini.Model,
			Temperature: cfg.Synthesizer.Gemini.Temperature,
			Guard:       newGuard(cfg, "gemini-chat", log),
		})
		if err != nil {
			return nil, fmt.Errorf("gemini synthesizer init failed: %w", err)
		}
		a.closers = append(a.closers, s)
		syn = s
	case "openai":
		if creds.OpenAISynth == "" {
			return nil, fmt.Errorf("openai synthesizer: set %s", cfg.Synthesizer.OpenAI.APIKeyEnv)
		}
		s, err := synthopenai.New(synthopenai.Config{
			BaseURL:     cfg.Synthesizer.OpenAI.BaseURL,
			APIKey:      creds.OpenAISynth,
			Model:       cfg.Synthesizer.OpenAI.Model,
			Temperature: cfg.Synthesizer.OpenAI.Temperature,
			MaxRetries:  cfg.Synthesizer.OpenAI.MaxRetries,
			Timeout:     time.Duration(cfg.Synthesizer.OpenAI.TimeoutSecs) * time.Second,
			Guard:       newGuard(cfg, "openai-chat", log),
		})
		if err != nil {
			return nil, fmt.Errorf("openai synthesizer init failed: %w", err)
		}
		syn = s
	case "extractive":
		syn = extractive.New(cfg.Synthesizer.Extractive.MaxSentences)
	default:
		return nil, fmt.Errorf("unknown synthesizer: %s", cfg.Synthesizer.Type)
	}

	ctrl, err := service.New(ctx, service.Deps{
		Extractor:   extract.New(log),
		Chunker:     ch,
		Embedder:    emb,
		Store:       st,
		Synthesizer: syn,
		Log:         log,
	}, service.Options{Location: cfg.VectorStore.Location, TopK: cfg.Retrieval.TopK})
	if err != nil {
		return nil, err
	}
	a.ctrl = ctrl
	log.Info("pipeline assembled",
		"embedder", emb.Name(),
		"store", cfg.VectorStore.Type,
		"synthesizer", syn.Name(),
		"state", ctrl.State().String(),
	)
	return a, nil
}
