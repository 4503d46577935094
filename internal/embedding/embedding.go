package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"devops-rag/internal/config"
	"devops-rag/internal/models"
)

// NewEmbedder creates the embedder for the configured provider. Every call
// made through it is bounded by cfg.Timeout.
func NewEmbedder(cfg *config.LLMConfig) (embeddings.Embedder, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        cfg.Provider,
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Creating embedder")

	var client embeddings.EmbedderClient
	switch cfg.Provider {
	case config.ProviderOllama, "":
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama embedder: %w", err)
		}
		client = llm
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
			openai.WithEmbeddingModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai embedder: %w", err)
		}
		client = llm
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", cfg.Provider)
	}

	var opts []embeddings.Option
	if cfg.BatchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	embedder, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return WithTimeout(embedder, cfg.Timeout), nil
}

type timeoutEmbedder struct {
	next    embeddings.Embedder
	timeout time.Duration
}

// WithTimeout bounds each call of e by d. A non-positive d returns e as is.
func WithTimeout(e embeddings.Embedder, d time.Duration) embeddings.Embedder {
	if d <= 0 {
		return e
	}
	return &timeoutEmbedder{next: e, timeout: d}
}

func (t *timeoutEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.EmbedDocuments(ctx, texts)
}

func (t *timeoutEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.EmbedQuery(ctx, text)
}

// EmbedChunks embeds the text of every chunk. It either returns one vector
// per chunk, all of the same dimension, or an EmbeddingServiceError.
func EmbedChunks(ctx context.Context, e embeddings.Embedder, chunks []models.Chunk) ([][]float32, error) {
	const op = "embed chunks"
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	start := time.Now()
	vectors, err := e.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, models.NewError(models.KindEmbeddingService, op, err)
	}
	if len(vectors) != len(chunks) {
		return nil, models.Errorf(models.KindEmbeddingService, op,
			"got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if err := ValidateVector(v, dim); err != nil {
			return nil, models.Errorf(models.KindEmbeddingService, op, "chunk %d: %v", chunks[i].Seq, err)
		}
	}

	log.Ctx(ctx).Debug().
		Int("chunks", len(chunks)).
		Int("dimension", dim).
		Dur("took", time.Since(start)).
		Msg("Embedded chunks")
	return vectors, nil
}

// EmbedQuery embeds a single query text.
func EmbedQuery(ctx context.Context, e embeddings.Embedder, text string) ([]float32, error) {
	const op = "embed query"
	v, err := e.EmbedQuery(ctx, text)
	if err != nil {
		return nil, models.NewError(models.KindEmbeddingService, op, err)
	}
	if err := ValidateVector(v, len(v)); err != nil {
		return nil, models.NewError(models.KindEmbeddingService, op, err)
	}
	return v, nil
}

// ValidateVector rejects empty, zero-norm and non-finite vectors, and vectors
// whose length differs from dim.
func ValidateVector(v []float32, dim int) error {
	if len(v) == 0 {
		return fmt.Errorf("empty vector")
	}
	if len(v) != dim {
		return fmt.Errorf("vector dimension %d, want %d", len(v), dim)
	}
	var norm float64
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("vector has non-finite component")
		}
		norm += f * f
	}
	if norm == 0 {
		return fmt.Errorf("zero-norm vector")
	}
	return nil
}
