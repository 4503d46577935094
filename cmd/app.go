package main

import (
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"

	"devops-rag/internal/chromemdb"
	"devops-rag/internal/chunker"
	"devops-rag/internal/config"
	"devops-rag/internal/db"
	"devops-rag/internal/embedding"
	"devops-rag/internal/index"
	"devops-rag/internal/llmservice"
	"devops-rag/internal/parser"
	"devops-rag/internal/rag"
)

const adminTimeout = 30 * time.Second

// app wires the configured components into a rag.Service.
type app struct {
	service *rag.Service
	closers []func() error
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, err
	}
	split, err := chunker.New(cfg.RAG)
	if err != nil {
		return nil, err
	}
	store, err := a.newStore(cfg)
	if err != nil {
		return nil, err
	}
	admin, err := llmservice.NewOllamaAdmin(cfg.Ollama.BaseURL, adminTimeout)
	if err != nil {
		a.Close()
		return nil, err
	}

	var pool *ants.Pool
	if cfg.RAG.SearchWorkers > 0 {
		pool, err = ants.NewPool(cfg.RAG.SearchWorkers)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create search pool: %w", err)
		}
		a.closers = append(a.closers, func() error {
			pool.Release()
			return nil
		})
	}

	pipeline := &rag.Pipeline{
		DocumentPath:    cfg.Document.Path,
		Loader:          parser.NewFileLoader(),
		Chunker:         split,
		Indexer:         index.NewEmbeddingIndexer(embedder, store),
		Embedder:        embedder,
		Pool:            pool,
		NumQueries:      cfg.RAG.NumQueries,
		TopK:            cfg.RAG.TopK,
		MaxContextChars: cfg.RAG.MaxContextChars,
	}
	a.service = rag.NewService(pipeline, llmservice.Factory(&cfg.ChatLLM), admin, cfg.RAG.RebuildPerRequest)
	return a, nil
}

func (a *app) newStore(cfg *config.Config) (index.Store, error) {
	switch cfg.Index.Backend {
	case config.BackendPGVector:
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		bunDB := db.NewDB(sqldb, cfg.Database.Debug)
		a.closers = append(a.closers, bunDB.Close)
		return db.NewStore(bunDB), nil
	case config.BackendChromem, "":
		return chromemdb.NewStore(cfg.Index.Collection), nil
	default:
		return nil, fmt.Errorf("unsupported index backend: %q", cfg.Index.Backend)
	}
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("Error closing resource")
		}
	}
}
