package rag

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/prompts"

	"devops-rag/internal/embedding"
	"devops-rag/internal/index"
	"devops-rag/internal/llmservice"
	"devops-rag/internal/models"
)

var (
	thinkRe      = regexp.MustCompile(models.ThinkTag)
	listMarkerRe = regexp.MustCompile(`^(?:[-*•]+|\(?\d+[.):]|[a-zA-Z][.)])\s+`)
)

// Retriever finds the chunks relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]models.Chunk, error)
}

// MultiQueryRetriever searches the index with the question and with
// alternative phrasings of it written by Generator, and merges the hits.
// With a Pool the queries are searched concurrently.
type MultiQueryRetriever struct {
	Index      index.Index
	Embedder   embeddings.Embedder
	Generator  llmservice.Generator
	NumQueries int
	TopK       int
	Pool       *ants.Pool

	prompt prompts.PromptTemplate
}

func NewMultiQueryRetriever(idx index.Index, e embeddings.Embedder, g llmservice.Generator, numQueries, topK int) *MultiQueryRetriever {
	return &MultiQueryRetriever{
		Index:      idx,
		Embedder:   e,
		Generator:  g,
		NumQueries: numQueries,
		TopK:       topK,
		prompt: prompts.PromptTemplate{
			Template:       models.MultiQueryPromptTemplate,
			InputVariables: []string{"count", "question"},
			TemplateFormat: prompts.TemplateFormatFString,
		},
	}
}

// Retrieve returns the union of the top-k hits of every query, without
// duplicates, in the order they were first found.
func (r *MultiQueryRetriever) Retrieve(ctx context.Context, question string) ([]models.Chunk, error) {
	start := time.Now()
	queries := r.Queries(ctx, question)

	results, err := r.searchAll(ctx, queries)
	if err != nil {
		return nil, err
	}

	seen := make(map[models.ChunkKey]struct{})
	var out []models.Chunk
	for _, hits := range results {
		for _, h := range hits {
			key := h.Chunk.Key()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, h.Chunk)
		}
	}

	log.Ctx(ctx).Info().
		Int("queries", len(queries)).
		Int("chunks", len(out)).
		Dur("took", time.Since(start)).
		Msg("Retrieved chunks")
	return out, nil
}

// searchAll returns the hits of every query in query order. The first
// failing query, in query order, decides the error.
func (r *MultiQueryRetriever) searchAll(ctx context.Context, queries []string) ([][]models.ScoredChunk, error) {
	results := make([][]models.ScoredChunk, len(queries))
	errs := make([]error, len(queries))
	search := func(i int) {
		vec, err := embedding.EmbedQuery(ctx, r.Embedder, queries[i])
		if err != nil {
			errs[i] = err
			return
		}
		hits, err := r.Index.Search(ctx, vec, r.TopK)
		if err != nil {
			errs[i] = models.Classify(err, models.KindRetrieval, "search")
			return
		}
		results[i] = hits
	}

	if r.Pool == nil || len(queries) == 1 {
		for i := range queries {
			search(i)
			if errs[i] != nil {
				return nil, errs[i]
			}
		}
		return results, nil
	}

	var wg sync.WaitGroup
	for i := range queries {
		wg.Add(1)
		if err := r.Pool.Submit(func() {
			defer wg.Done()
			search(i)
		}); err != nil {
			// pool released: run inline
			search(i)
			wg.Done()
		}
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// Queries returns the question followed by up to NumQueries rewrites. Any
// rewrite failure leaves just the question.
func (r *MultiQueryRetriever) Queries(ctx context.Context, question string) []string {
	queries := []string{question}
	if r.NumQueries <= 0 || r.Generator == nil {
		return queries
	}

	prompt, err := r.prompt.Format(map[string]any{
		"count":    r.NumQueries,
		"question": question,
	})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Failed to format query rewrite prompt, using original question")
		return queries
	}
	out, err := r.Generator.Generate(ctx, prompt)
	if err != nil {
		if ctx.Err() == nil {
			log.Ctx(ctx).Warn().Err(err).Msg("Query rewrite failed, using original question")
		}
		return queries
	}

	alternatives := ParseQueries(out, question, r.NumQueries)
	if len(alternatives) == 0 {
		log.Ctx(ctx).Warn().Msg("Query rewrite returned nothing usable, using original question")
		return queries
	}
	log.Ctx(ctx).Debug().Strs("queries", alternatives).Msg("Rewrote question")
	return append(queries, alternatives...)
}

// ParseQueries extracts up to n distinct queries from model output, one per
// line. Reasoning blocks, list markers and quotes are removed, and lines
// equal to question are dropped.
func ParseQueries(output, question string, n int) []string {
	output = thinkRe.ReplaceAllString(output, "")
	seen := map[string]bool{normalizeQuery(question): true}

	var out []string
	for _, line := range strings.Split(output, "\n") {
		if len(out) >= n {
			break
		}
		q := cleanQuery(line)
		if q == "" || strings.HasSuffix(q, ":") {
			continue
		}
		key := normalizeQuery(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}

func cleanQuery(line string) string {
	q := strings.TrimSpace(line)
	q = listMarkerRe.ReplaceAllString(q, "")
	q = strings.TrimSpace(q)
	q = strings.Trim(q, "\"'`“”‘’*")
	return strings.TrimSpace(q)
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
