package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/taleweaver/internal/models"
)

type VectorStoreConfig struct {
	ConnString  string
	TableName   string
	VectorDim   int
	BatchSize   int
	SearchLimit int
	Metric      Metric
}

// PGVectorStore keeps story chunks in a Postgres table with a pgvector
// column.
type PGVectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
	table  string
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*PGVectorStore, error) {
	if config.TableName == "" {
		config.TableName = "stories"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 384 // all-MiniLM-L6-v2
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if config.SearchLimit <= 0 {
		config.SearchLimit = 1
	}
	if config.Metric == "" {
		config.Metric = MetricCosine
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &PGVectorStore{
		config: config,
		pool:   pool,
		table:  pgx.Identifier{config.TableName}.Sanitize(),
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *PGVectorStore) initialize(ctx context.Context) error {
	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL DEFAULT '',
			title TEXT,
			content TEXT NOT NULL,
			chunk_index INTEGER,
			embedding vector(%d),
			metadata JSONB
		)`, vs.table, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s
		ON %s
		USING ivfflat (embedding %s)
		WITH (lists = 100)`,
		pgx.Identifier{vs.config.TableName + "_embedding_idx"}.Sanitize(),
		vs.table, vs.config.Metric.pgOps())

	_, err = vs.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Store upserts every chunk of docs with its precomputed embedding, batching
// inserts by BatchSize.
func (vs *PGVectorStore) Store(ctx context.Context, docs []models.ProcessedDocument) error {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, url, title, content, chunk_index, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		vs.table)

	rows, err := flattenChunks(docs, vs.config.VectorDim)
	if err != nil {
		return err
	}

	for start := 0; start < len(rows); start += vs.config.BatchSize {
		end := min(start+vs.config.BatchSize, len(rows))

		batch := &pgx.Batch{}
		for _, r := range rows[start:end] {
			batch.Queue(stmt,
				r.id,
				r.url,
				r.title,
				r.content,
				r.chunkIndex,
				pgvector.NewVector(r.embedding),
				r.metadata,
			)
		}

		if err := vs.pool.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}
	}

	return nil
}

// Query returns the limit nearest chunks, best first.
func (vs *PGVectorStore) Query(ctx context.Context, queryEmbedding []float32, limit int) ([]models.Match, error) {
	limit = queryLimit(limit, vs.config.SearchLimit)
	if len(queryEmbedding) != vs.config.VectorDim {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, vs.config.VectorDim, len(queryEmbedding))
	}

	op := vs.config.Metric.pgOperator()
	query := fmt.Sprintf(`
		SELECT id, url, COALESCE(title, ''), content, metadata, embedding %s $1 AS distance
		FROM %s
		ORDER BY embedding %s $1
		LIMIT $2`,
		op, vs.table, op)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(queryEmbedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var matches []models.Match
	for rows.Next() {
		var m models.Match
		var distance float64
		err := rows.Scan(
			&m.ID,
			&m.URL,
			&m.Title,
			&m.Content,
			&m.Metadata,
			&distance,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		m.Score = vs.config.Metric.scoreFromDistance(distance)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return matches, nil
}

func (vs *PGVectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}
