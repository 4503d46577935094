// Package index defines the vector index used for retrieval and the build
// step shared by its backends.
package index

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"devops-rag/internal/embedding"
	"devops-rag/internal/models"
)

// Index answers nearest-neighbour queries over embedded chunks.
type Index interface {
	// Search returns the k chunks most similar to query by cosine
	// similarity, best first. Equal scores keep chunk order.
	Search(ctx context.Context, query []float32, k int) ([]models.ScoredChunk, error)
	// Len is the number of indexed chunks.
	Len() int
}

// Indexer turns chunks into a searchable Index.
type Indexer interface {
	Build(ctx context.Context, chunks []models.Chunk) (Index, error)
}

// Store loads embedded chunks into a fresh backend index.
type Store interface {
	Put(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (Index, error)
}

// EmbeddingIndexer embeds chunks with Embedder and hands them to Store.
type EmbeddingIndexer struct {
	Embedder embeddings.Embedder
	Store    Store
}

func NewEmbeddingIndexer(e embeddings.Embedder, s Store) *EmbeddingIndexer {
	return &EmbeddingIndexer{Embedder: e, Store: s}
}

func (b *EmbeddingIndexer) Build(ctx context.Context, chunks []models.Chunk) (Index, error) {
	start := time.Now()
	vectors, err := embedding.EmbedChunks(ctx, b.Embedder, chunks)
	if err != nil {
		return nil, err
	}
	idx, err := b.Store.Put(ctx, chunks, vectors)
	if err != nil {
		return nil, models.Classify(err, models.KindRetrieval, "store chunks")
	}
	log.Ctx(ctx).Info().
		Int("chunks", idx.Len()).
		Dur("took", time.Since(start)).
		Msg("Index built")
	return idx, nil
}

// CheckQuery validates the arguments of a Search call against an index
// holding vectors of dimension dim. A dim of 0 skips the dimension check.
func CheckQuery(query []float32, k, dim int) error {
	const op = "search"
	if k <= 0 {
		return models.Errorf(models.KindRetrieval, op, "k must be > 0, got %d", k)
	}
	if dim > 0 && len(query) != dim {
		return models.Errorf(models.KindRetrieval, op, "query dimension %d, index dimension %d", len(query), dim)
	}
	if err := embedding.ValidateVector(query, len(query)); err != nil {
		return models.NewError(models.KindRetrieval, op, err)
	}
	return nil
}

// SortHits orders hits by score, best first, then by chunk order.
func SortHits(hits []models.ScoredChunk) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.Seq < hits[j].Chunk.Seq
	})
}

// Top returns the first k hits after sorting.
func Top(hits []models.ScoredChunk, k int) []models.ScoredChunk {
	SortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
