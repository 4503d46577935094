package rag

import (
	"context"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"devops-rag/internal/chunker"
	"devops-rag/internal/index"
	"devops-rag/internal/llmservice"
	"devops-rag/internal/models"
	"devops-rag/internal/parser"
)

// Pipeline holds the stages that turn the knowledge document and a question
// into an answer.
type Pipeline struct {
	DocumentPath string
	Loader       parser.Loader
	Chunker      chunker.Chunker
	Indexer      index.Indexer
	Embedder     embeddings.Embedder
	// Pool runs the searches of one question concurrently. Nil searches
	// sequentially.
	Pool *ants.Pool

	NumQueries      int
	TopK            int
	MaxContextChars int
}

// BuildIndex loads, chunks and indexes the document, recording each stage
// on tr.
func (p *Pipeline) BuildIndex(ctx context.Context, tr *Trace) (index.Index, error) {
	start := time.Now()
	logger := log.Ctx(ctx).With().Str("document", p.DocumentPath).Logger()

	if err := tr.Advance(ctx, StateLoading); err != nil {
		return nil, tr.Fail(ctx, err)
	}
	pages, err := p.Loader.Load(ctx, p.DocumentPath)
	if err != nil {
		return nil, tr.Fail(ctx, err)
	}

	if err := tr.Advance(ctx, StateChunking); err != nil {
		return nil, tr.Fail(ctx, err)
	}
	chunks, err := p.Chunker.Split(pages)
	if err != nil {
		return nil, tr.Fail(ctx, err)
	}
	if len(chunks) == 0 {
		return nil, tr.Fail(ctx, models.Errorf(models.KindParse, "chunk", "document %s produced no chunks", p.DocumentPath))
	}

	if err := tr.Advance(ctx, StateIndexing); err != nil {
		return nil, tr.Fail(ctx, err)
	}
	idx, err := p.Indexer.Build(ctx, chunks)
	if err != nil {
		return nil, tr.Fail(ctx, err)
	}

	logger.Info().
		Int("pages", len(pages)).
		Int("chunks", len(chunks)).
		Dur("took", time.Since(start)).
		Msg("Knowledge base indexed")
	return idx, nil
}

// Answer retrieves context from idx and generates the answer with g. The
// same generator rewrites the question and writes the answer.
func (p *Pipeline) Answer(ctx context.Context, tr *Trace, idx index.Index, g llmservice.Generator, question string) (string, error) {
	if err := tr.Advance(ctx, StateRetrieving); err != nil {
		return "", tr.Fail(ctx, err)
	}
	retriever := NewMultiQueryRetriever(idx, p.Embedder, g, p.NumQueries, p.TopK)
	retriever.Pool = p.Pool
	chunks, err := retriever.Retrieve(ctx, question)
	if err != nil {
		return "", tr.Fail(ctx, err)
	}

	if err := tr.Advance(ctx, StateGenerating); err != nil {
		return "", tr.Fail(ctx, err)
	}
	answer, err := NewPromptSynthesizer(g, p.MaxContextChars).Synthesize(ctx, chunks, question)
	if err != nil {
		return "", tr.Fail(ctx, err)
	}

	if err := tr.Advance(ctx, StateDone); err != nil {
		return "", tr.Fail(ctx, err)
	}
	return answer, nil
}

// Run answers one question from scratch: the document is loaded, chunked
// and indexed for this call alone.
func (p *Pipeline) Run(ctx context.Context, g llmservice.Generator, question string) (string, *Trace, error) {
	tr := NewTrace()
	idx, err := p.BuildIndex(ctx, tr)
	if err != nil {
		return "", tr, err
	}
	answer, err := p.Answer(ctx, tr, idx, g, question)
	return answer, tr, err
}
