package llmservice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"devops-rag/internal/config"
)

// Generator turns a prompt into a completion.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFactory builds a Generator for a named chat model.
type GeneratorFactory func(model string) (Generator, error)

// LLMGenerator sends single-prompt requests to a langchaingo model.
type LLMGenerator struct {
	model   llms.Model
	name    string
	timeout time.Duration
}

func NewLLMGenerator(model llms.Model, name string, timeout time.Duration) *LLMGenerator {
	return &LLMGenerator{model: model, name: name, timeout: timeout}
}

func (g *LLMGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt)
	if err != nil {
		return "", fmt.Errorf("model %s: %w", g.name, err)
	}
	log.Ctx(ctx).Debug().
		Str("model", g.name).
		Int("prompt_chars", len(prompt)).
		Dur("took", time.Since(start)).
		Msg("Generated content")
	return out, nil
}

// NewGenerator creates the chat model named model for the configured
// provider. An empty model falls back to cfg.Model.
func NewGenerator(cfg *config.LLMConfig, model string) (Generator, error) {
	if model == "" {
		model = cfg.Model
	}
	if model == "" {
		return nil, fmt.Errorf("no chat model given")
	}

	var llm llms.Model
	switch cfg.Provider {
	case config.ProviderOllama, "":
		m, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama model: %w", err)
		}
		llm = m
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		m, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai model: %w", err)
		}
		llm = m
	default:
		return nil, fmt.Errorf("unsupported chat provider: %q", cfg.Provider)
	}
	return NewLLMGenerator(llm, model, cfg.Timeout), nil
}

// Factory binds NewGenerator to cfg.
func Factory(cfg *config.LLMConfig) GeneratorFactory {
	return func(model string) (Generator, error) {
		return NewGenerator(cfg, model)
	}
}
