// Package store holds the vector index backends stories are read from and
// written to.
package store

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/xhad/taleweaver/internal/models"
	"github.com/xhad/taleweaver/internal/types"
)

var (
	ErrInvalidDimension = errors.New("invalid vector dimension")
	ErrMissingEmbedding = errors.New("chunk has no embedding")
	ErrUnknownBackend   = errors.New("unknown vector store backend")
)

const (
	BackendPGVector = "pgvector"
	BackendMilvus   = "milvus"
)

// Metric is the distance the index orders by.
type Metric string

const (
	MetricCosine       Metric = "cosine"
	MetricInnerProduct Metric = "ip"
)

func (m Metric) pgOperator() string {
	if m == MetricInnerProduct {
		return "<#>"
	}
	return "<=>"
}

func (m Metric) pgOps() string {
	if m == MetricInnerProduct {
		return "vector_ip_ops"
	}
	return "vector_cosine_ops"
}

// scoreFromDistance turns a pgvector distance into a higher-is-closer score.
// <#> yields the negated inner product, <=> yields 1 - cosine.
func (m Metric) scoreFromDistance(d float64) float32 {
	if m == MetricInnerProduct {
		return float32(-d)
	}
	return float32(1 - d)
}

// Config selects and configures one backend.
type Config struct {
	Backend string
	PG      VectorStoreConfig
	Milvus  MilvusConfig
}

// Open connects to the configured backend.
func Open(ctx context.Context, config Config) (types.VectorStore, error) {
	switch config.Backend {
	case "", BackendPGVector:
		return NewWithConfig(ctx, config.PG)
	case BackendMilvus:
		return NewMilvusStore(ctx, config.Milvus)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, config.Backend)
}

// chunkRow is one chunk of a document, ready to be written.
type chunkRow struct {
	id         string
	docID      string
	url        string
	title      string
	content    string
	chunkIndex int
	embedding  []float32
	metadata   map[string]interface{}
}

// flattenChunks expands documents into one row per chunk. Every chunk must
// carry an embedding of the given dimension.
func flattenChunks(docs []models.ProcessedDocument, dim int) ([]chunkRow, error) {
	var rows []chunkRow
	for _, doc := range docs {
		if len(doc.Embedding) != len(doc.Chunks) {
			return nil, fmt.Errorf("%w: document %s has %d chunks and %d embeddings",
				ErrMissingEmbedding, doc.ID, len(doc.Chunks), len(doc.Embedding))
		}

		title := sanitizeUTF8(doc.Title)
		for i, chunk := range doc.Chunks {
			if dim > 0 && len(doc.Embedding[i]) != dim {
				return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, dim, len(doc.Embedding[i]))
			}
			rows = append(rows, chunkRow{
				id:         ChunkID(doc.ID, i),
				docID:      doc.ID,
				url:        doc.URL,
				title:      title,
				content:    sanitizeUTF8(chunk),
				chunkIndex: i,
				embedding:  doc.Embedding[i],
				metadata:   doc.Metadata,
			})
		}
	}
	return rows, nil
}

// queryLimit returns limit, or fallback when limit is not positive.
func queryLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return limit
}

// ChunkID is the primary key of chunk i of a document.
func ChunkID(docID string, i int) string {
	return fmt.Sprintf("%s_%d", docID, i)
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
