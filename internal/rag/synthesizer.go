package rag

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/prompts"

	"devops-rag/internal/llmservice"
	"devops-rag/internal/models"
)

// Synthesizer writes the answer to a question from retrieved chunks.
type Synthesizer interface {
	Synthesize(ctx context.Context, chunks []models.Chunk, question string) (string, error)
}

// PromptSynthesizer fills the answer prompt with the chunk texts and returns
// the generator output unchanged.
type PromptSynthesizer struct {
	Generator llmservice.Generator
	// MaxContextChars caps the context length in runes. Zero means no cap.
	MaxContextChars int

	prompt prompts.PromptTemplate
}

func NewPromptSynthesizer(g llmservice.Generator, maxContextChars int) *PromptSynthesizer {
	return &PromptSynthesizer{
		Generator:       g,
		MaxContextChars: maxContextChars,
		prompt: prompts.PromptTemplate{
			Template:       models.AnswerPromptTemplate,
			InputVariables: []string{"context", "question"},
			TemplateFormat: prompts.TemplateFormatFString,
		},
	}
}

// Prompt renders the answer prompt.
func (s *PromptSynthesizer) Prompt(chunks []models.Chunk, question string) (string, error) {
	return s.prompt.Format(map[string]any{
		"context":  s.Context(chunks),
		"question": question,
	})
}

// Context joins chunk texts in order. With a cap, trailing chunks that do
// not fit are dropped whole; the first chunk is always kept.
func (s *PromptSynthesizer) Context(chunks []models.Chunk) string {
	texts := make([]string, 0, len(chunks))
	size := 0
	for i, c := range chunks {
		n := utf8.RuneCountInString(c.Text)
		if i > 0 {
			n += utf8.RuneCountInString(models.ContextSeparator)
		}
		if s.MaxContextChars > 0 && i > 0 && size+n > s.MaxContextChars {
			break
		}
		size += n
		texts = append(texts, c.Text)
	}
	return strings.Join(texts, models.ContextSeparator)
}

func (s *PromptSynthesizer) Synthesize(ctx context.Context, chunks []models.Chunk, question string) (string, error) {
	const op = "generate answer"
	prompt, err := s.Prompt(chunks, question)
	if err != nil {
		return "", models.NewError(models.KindGeneration, op, err)
	}

	start := time.Now()
	answer, err := s.Generator.Generate(ctx, prompt)
	if err != nil {
		return "", models.NewError(models.KindGeneration, op, err)
	}
	log.Ctx(ctx).Info().
		Int("chunks", len(chunks)).
		Int("answer_chars", len(answer)).
		Dur("took", time.Since(start)).
		Msg("Generated answer")
	return answer, nil
}
