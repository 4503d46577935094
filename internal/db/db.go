package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"devops-rag/internal/config"
	"devops-rag/internal/index"
	"devops-rag/internal/models"
)

// ChunkRow is one embedded chunk. The table is refilled at every build.
type ChunkRow struct {
	bun.BaseModel `bun:"table:rag_chunks,alias:c"`
	ID            int64           `bun:"id,pk,autoincrement"`
	Seq           int             `bun:"seq,notnull"`
	SourcePath    string          `bun:"source_path,notnull"`
	PageIndex     int             `bun:"page_index,notnull"`
	Offset        int             `bun:"char_offset,notnull"`
	Content       string          `bun:"content,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
}

func (r *ChunkRow) Chunk() models.Chunk {
	return models.Chunk{
		Text: r.Content,
		Metadata: models.ChunkMetadata{
			SourcePath: r.SourcePath,
			PageIndex:  r.PageIndex,
		},
		Seq:    r.Seq,
		Offset: r.Offset,
	}
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens a pool with the configured driver. No connection is made
// until the first query.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case config.DriverPGDriver, "":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	case config.DriverPQ:
		connector, err := pq.NewConnector(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to parse dsn: %w", err)
		}
		return sql.OpenDB(connector), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
}

// Store keeps chunks in the rag_chunks table.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// Put replaces the table contents with chunks in a single transaction, so
// concurrent readers see either the old rows or the new ones.
func (s *Store) Put(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (index.Index, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	rows := make([]ChunkRow, len(chunks))
	for i, c := range chunks {
		rows[i] = ChunkRow{
			Seq:        c.Seq,
			SourcePath: c.Metadata.SourcePath,
			PageIndex:  c.Metadata.PageIndex,
			Offset:     c.Offset,
			Content:    c.Text,
			Embedding:  pgvector.NewVector(vectors[i]),
		}
	}

	if err := InitDB(ctx, s.db); err != nil {
		return nil, err
	}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := DeleteChunks(ctx, tx); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	log.Ctx(ctx).Debug().Int("rows", len(rows)).Msg("Stored chunks")
	return &PGIndex{db: s.db, n: len(rows), dim: dim}, nil
}

// InitDB creates the vector extension and the chunk table if missing.
func InitDB(ctx context.Context, db bun.IDB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*ChunkRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create chunk table: %w", err)
	}
	return nil
}

func DeleteChunks(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewDelete().Model((*ChunkRow)(nil)).Where("TRUE").Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	return nil
}

// PGIndex searches the rows written by the Put that created it.
type PGIndex struct {
	db  *bun.DB
	n   int
	dim int
}

type chunkHit struct {
	ChunkRow `bun:",extend"`
	Distance float64 `bun:"distance"`
}

func (p *PGIndex) Search(ctx context.Context, query []float32, k int) ([]models.ScoredChunk, error) {
	if err := index.CheckQuery(query, k, p.dim); err != nil {
		return nil, err
	}
	if p.n == 0 {
		return nil, nil
	}

	var hits []chunkHit
	if err := searchQuery(p.db, &hits, query, k).Scan(ctx); err != nil {
		return nil, models.NewError(models.KindRetrieval, "search", fmt.Errorf("failed to search chunks: %w", err))
	}

	out := make([]models.ScoredChunk, len(hits))
	for i := range hits {
		out[i] = models.ScoredChunk{
			Chunk: hits[i].Chunk(),
			Score: float32(1 - hits[i].Distance),
		}
	}
	return index.Top(out, k), nil
}

func (p *PGIndex) Len() int { return p.n }

// searchQuery orders by cosine distance and breaks ties by chunk order.
func searchQuery(db bun.IDB, hits *[]chunkHit, query []float32, k int) *bun.SelectQuery {
	return db.NewSelect().
		Model(hits).
		Column("seq", "source_path", "page_index", "char_offset", "content").
		ColumnExpr("embedding <=> ? AS distance", pgvector.NewVector(query)).
		OrderExpr("distance ASC, seq ASC").
		Limit(k)
}
