package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"devops-rag/internal/index"
	"devops-rag/internal/models"
)

// metadata keys stored with every document
const (
	metaSource = "source"
	metaPage   = "page"
	metaSeq    = "seq"
	metaOffset = "offset"
)

var errNoEmbeddingFunc = errors.New("documents must be embedded before they are added")

// Store creates a new in-memory chromem collection for every Put.
type Store struct {
	collectionName string
}

func NewStore(collectionName string) *Store {
	return &Store{collectionName: collectionName}
}

func (s *Store) Put(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (index.Index, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	m, err := NewVectorDBManager(s.collectionName)
	if err != nil {
		return nil, err
	}
	if err := m.CreateDocs(ctx, chunks, vectors); err != nil {
		return nil, err
	}
	return m, nil
}

// VectorDBManager is a chromem collection of embedded chunks. It is read-only
// once CreateDocs returns.
type VectorDBManager struct {
	db         *chromem.DB
	collection *chromem.Collection
	chunks     map[string]models.Chunk
	dim        int
}

// NewVectorDBManager initializes an empty in-memory collection.
func NewVectorDBManager(collectionName string) (*VectorDBManager, error) {
	db := chromem.NewDB()
	c, err := db.CreateCollection(collectionName, nil, func(context.Context, string) ([]float32, error) {
		return nil, errNoEmbeddingFunc
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &VectorDBManager{
		db:         db,
		collection: c,
		chunks:     make(map[string]models.Chunk),
	}, nil
}

// CreateDocs adds chunks with their precomputed embeddings.
func (m *VectorDBManager) CreateDocs(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:      c.ID(),
			Content: c.Text,
			Metadata: map[string]string{
				metaSource: c.Metadata.SourcePath,
				metaPage:   strconv.Itoa(c.Metadata.PageIndex),
				metaSeq:    strconv.Itoa(c.Seq),
				metaOffset: strconv.Itoa(c.Offset),
			},
			Embedding: vectors[i],
		}
	}

	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	for _, c := range chunks {
		m.chunks[c.ID()] = c
	}
	m.dim = len(vectors[0])
	log.Ctx(ctx).Debug().
		Str("collection", m.collection.Name).
		Int("documents", m.collection.Count()).
		Msg("Added documents to collection")
	return nil
}

// Search ranks every document and keeps the best k, so ties are broken by
// chunk order rather than by chromem's concurrent scoring.
func (m *VectorDBManager) Search(ctx context.Context, query []float32, k int) ([]models.ScoredChunk, error) {
	if err := index.CheckQuery(query, k, m.dim); err != nil {
		return nil, err
	}
	n := m.collection.Count()
	if n == 0 {
		return nil, nil
	}

	results, err := m.collection.QueryEmbedding(ctx, query, n, nil, nil)
	if err != nil {
		return nil, models.NewError(models.KindRetrieval, "search", fmt.Errorf("failed to query by similarity: %w", err))
	}

	hits := make([]models.ScoredChunk, 0, len(results))
	for _, r := range results {
		c, err := m.chunk(r)
		if err != nil {
			return nil, models.NewError(models.KindRetrieval, "search", err)
		}
		hits = append(hits, models.ScoredChunk{Chunk: c, Score: r.Similarity})
	}
	return index.Top(hits, k), nil
}

func (m *VectorDBManager) Len() int {
	return m.collection.Count()
}

func (m *VectorDBManager) chunk(r chromem.Result) (models.Chunk, error) {
	if c, ok := m.chunks[r.ID]; ok {
		return c, nil
	}
	return chunkFromMetadata(r.Content, r.Metadata)
}

func chunkFromMetadata(content string, meta map[string]string) (models.Chunk, error) {
	ints := make(map[string]int, 3)
	for _, key := range []string{metaPage, metaSeq, metaOffset} {
		v, err := strconv.Atoi(meta[key])
		if err != nil {
			return models.Chunk{}, fmt.Errorf("bad %s metadata %q: %w", key, meta[key], err)
		}
		ints[key] = v
	}
	return models.Chunk{
		Text: content,
		Metadata: models.ChunkMetadata{
			SourcePath: meta[metaSource],
			PageIndex:  ints[metaPage],
		},
		Seq:    ints[metaSeq],
		Offset: ints[metaOffset],
	}, nil
}
