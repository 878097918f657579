package types

import (
	"context"

	"github.com/xhad/taleweaver/internal/models"
)

// Core interfaces

// Embedder maps text to fixed-length vectors. Stories in the index and
// queries must go through the same Embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Generator turns a prompt into model text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// VectorIndex answers nearest-neighbour queries.
type VectorIndex interface {
	Query(ctx context.Context, embedding []float32, limit int) ([]models.Match, error)
	Close()
}

// VectorStore is a VectorIndex that can also be written to.
type VectorStore interface {
	VectorIndex
	Store(ctx context.Context, docs []models.ProcessedDocument) error
}

// Retriever picks a sentence window for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (models.SentenceWindow, error)
}
