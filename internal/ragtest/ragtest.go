// Package ragtest provides deterministic stand-ins for the model backends
// and the document loader.
package ragtest

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/tmc/langchaingo/llms"

	"devops-rag/internal/models"
)

// ErrUnreachable mimics a backend that refuses connections.
var ErrUnreachable = errors.New("dial tcp 127.0.0.1:11434: connect: connection refused")

// HashEmbedder maps text to a bag-of-words vector by hashing each lowercased
// word into one of Dim buckets. The last bucket is always 1 so no vector is
// zero.
type HashEmbedder struct {
	Dim int
	Err error

	mu      sync.Mutex
	queries []string
	docs    int
}

func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{Dim: dim}
}

func (e *HashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.Err != nil {
		return nil, e.Err
	}
	e.mu.Lock()
	e.docs += len(texts)
	e.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *HashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.Err != nil {
		return nil, e.Err
	}
	e.mu.Lock()
	e.queries = append(e.queries, text)
	e.mu.Unlock()
	return e.vector(text), nil
}

// Queries returns the query texts embedded so far, in call order.
func (e *HashEmbedder) Queries() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.queries...)
}

// Documents returns how many document texts were embedded.
func (e *HashEmbedder) Documents() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docs
}

func (e *HashEmbedder) vector(text string) []float32 {
	dim := e.Dim
	if dim < 2 {
		dim = 2
	}
	v := make([]float32, dim)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[int(h.Sum32()%uint32(dim-1))]++
	}
	v[dim-1] = 1
	return v
}

// Generator answers prompts with Respond and records every prompt it saw.
// A nil Respond echoes the prompt.
type Generator struct {
	Respond func(prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.Respond == nil {
		return prompt, nil
	}
	return g.Respond(prompt)
}

func (g *Generator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

// RewriteThenAnswer returns a Respond func that answers the query rewrite
// prompt with rewrites and every other prompt with answer.
func RewriteThenAnswer(rewrites, answer string) func(string) (string, error) {
	return func(prompt string) (string, error) {
		if strings.Contains(prompt, "different versions of the given user question") {
			return rewrites, nil
		}
		return answer, nil
	}
}

// LLM is a langchaingo llms.Model backed by a Generator.
type LLM struct {
	Generator
}

var _ llms.Model = (*LLM)(nil)

func (m *LLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	var prompt strings.Builder
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if t, ok := part.(llms.TextContent); ok {
				prompt.WriteString(t.Text)
			}
		}
	}
	out, err := m.Generate(ctx, prompt.String())
	if err != nil {
		return nil, err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: out}}}, nil
}

func (m *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// Loader returns Pages for any path, or Err.
type Loader struct {
	Pages []models.PageRecord
	Err   error

	mu    sync.Mutex
	calls int
}

func (l *Loader) Load(ctx context.Context, path string) ([]models.PageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}
	pages := make([]models.PageRecord, len(l.Pages))
	for i, p := range l.Pages {
		p.SourcePath = path
		pages[i] = p
	}
	return pages, nil
}

func (l *Loader) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// Pages builds one PageRecord per text with 1-based page indexes.
func Pages(texts ...string) []models.PageRecord {
	pages := make([]models.PageRecord, len(texts))
	for i, t := range texts {
		pages[i] = models.PageRecord{Text: t, PageIndex: i + 1}
	}
	return pages
}
