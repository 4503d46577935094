package index

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devops-rag/internal/models"
	"devops-rag/internal/ragtest"
)

type memIndex struct {
	chunks  []models.Chunk
	vectors [][]float32
}

func (m *memIndex) Search(context.Context, []float32, int) ([]models.ScoredChunk, error) {
	return nil, nil
}

func (m *memIndex) Len() int { return len(m.chunks) }

type memStore struct {
	err error
	got *memIndex
}

func (s *memStore) Put(_ context.Context, chunks []models.Chunk, vectors [][]float32) (Index, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.got = &memIndex{chunks: chunks, vectors: vectors}
	return s.got, nil
}

func TestEmbeddingIndexerBuild(t *testing.T) {
	store := &memStore{}
	b := NewEmbeddingIndexer(ragtest.NewHashEmbedder(8), store)

	idx, err := b.Build(context.Background(), []models.Chunk{{Text: "a", Seq: 0}, {Text: "b", Seq: 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())
	assert.Len(t, store.got.vectors, 2)
}

func TestEmbeddingIndexerBuildErrors(t *testing.T) {
	e := ragtest.NewHashEmbedder(8)
	e.Err = ragtest.ErrUnreachable
	_, err := NewEmbeddingIndexer(e, &memStore{}).Build(context.Background(), []models.Chunk{{Text: "a"}})
	assert.Equal(t, models.KindEmbeddingService, models.KindOf(err))

	_, err = NewEmbeddingIndexer(ragtest.NewHashEmbedder(8), &memStore{err: errors.New("disk full")}).
		Build(context.Background(), []models.Chunk{{Text: "a"}})
	assert.Equal(t, models.KindRetrieval, models.KindOf(err))
}

func TestCheckQuery(t *testing.T) {
	assert.NoError(t, CheckQuery([]float32{1, 0}, 1, 2))
	assert.NoError(t, CheckQuery([]float32{1, 0}, 1, 0))

	for name, err := range map[string]error{
		"zero k":             CheckQuery([]float32{1, 0}, 0, 2),
		"dimension mismatch": CheckQuery([]float32{1, 0, 0}, 1, 2),
		"zero vector":        CheckQuery([]float32{0, 0}, 1, 2),
		"empty vector":       CheckQuery(nil, 1, 0),
	} {
		assert.Equal(t, models.KindRetrieval, models.KindOf(err), name)
	}
}

func TestTopBreaksTiesByChunkOrder(t *testing.T) {
	hits := []models.ScoredChunk{
		{Chunk: models.Chunk{Seq: 3}, Score: 0.5},
		{Chunk: models.Chunk{Seq: 1}, Score: 0.9},
		{Chunk: models.Chunk{Seq: 2}, Score: 0.5},
		{Chunk: models.Chunk{Seq: 0}, Score: 0.5},
	}
	top := Top(hits, 3)
	require.Len(t, top, 3)
	assert.Equal(t, 1, top[0].Chunk.Seq)
	assert.Equal(t, 0, top[1].Chunk.Seq)
	assert.Equal(t, 2, top[2].Chunk.Seq)

	assert.Len(t, Top(hits, 10), 4)
}
