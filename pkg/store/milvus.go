package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/xhad/taleweaver/internal/models"
)

// MilvusConfig holds configuration for Milvus connection and collection
type MilvusConfig struct {
	Address        string // e.g. "localhost:19530"
	CollectionName string
	Dimension      int
	Metric         Metric

	// HNSW index parameters
	M              int
	EfConstruction int
	Ef             int
}

func (c *MilvusConfig) applyDefaults() {
	if c.Address == "" {
		c.Address = "localhost:19530"
	}
	if c.CollectionName == "" {
		c.CollectionName = "stories"
	}
	if c.Dimension == 0 {
		c.Dimension = 384
	}
	if c.Metric == "" {
		c.Metric = MetricCosine
	}
	if c.M == 0 {
		c.M = 16
	}
	if c.EfConstruction == 0 {
		c.EfConstruction = 256
	}
	if c.Ef == 0 {
		c.Ef = 64
	}
}

func (c MilvusConfig) metricType() entity.MetricType {
	if c.Metric == MetricInnerProduct {
		return entity.IP
	}
	return entity.COSINE
}

// MilvusStore keeps story chunks in a Milvus collection.
type MilvusStore struct {
	client client.Client
	config MilvusConfig
}

// NewMilvusStore connects to Milvus and creates the collection if needed.
func NewMilvusStore(ctx context.Context, config MilvusConfig) (*MilvusStore, error) {
	config.applyDefaults()
	if config.Dimension < 0 {
		return nil, ErrInvalidDimension
	}

	c, err := client.NewGrpcClient(ctx, config.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Milvus: %w", err)
	}

	store := &MilvusStore{
		client: c,
		config: config,
	}

	if err := store.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}

	return store, nil
}

func (m *MilvusStore) ensureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.config.CollectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !has {
		log.Printf("[store] creating Milvus collection %s (dim %d)", m.config.CollectionName, m.config.Dimension)

		if err := m.client.CreateCollection(ctx, m.schema(), entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx, err := entity.NewIndexHNSW(m.config.metricType(), m.config.M, m.config.EfConstruction)
		if err != nil {
			return fmt.Errorf("failed to create index config: %w", err)
		}

		if err := m.client.CreateIndex(ctx, m.config.CollectionName, "embedding", idx, false); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if err := m.client.LoadCollection(ctx, m.config.CollectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	return nil
}

func (m *MilvusStore) schema() *entity.Schema {
	varchar := func(name, maxLen string) *entity.Field {
		return &entity.Field{
			Name:       name,
			DataType:   entity.FieldTypeVarChar,
			TypeParams: map[string]string{"max_length": maxLen},
		}
	}

	id := varchar("id", "256")
	id.PrimaryKey = true

	return &entity.Schema{
		CollectionName: m.config.CollectionName,
		Fields: []*entity.Field{
			id,
			varchar("url", "2048"),
			varchar("title", "1024"),
			varchar("text", "65535"),
			varchar("metadata", "65535"),
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.config.Dimension),
				},
			},
		},
	}
}

// Store upserts every chunk of docs with its precomputed embedding.
func (m *MilvusStore) Store(ctx context.Context, docs []models.ProcessedDocument) error {
	rows, err := flattenChunks(docs, m.config.Dimension)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	ids := make([]string, len(rows))
	urls := make([]string, len(rows))
	titles := make([]string, len(rows))
	texts := make([]string, len(rows))
	metadata := make([]string, len(rows))
	embeddings := make([][]float32, len(rows))

	for i, r := range rows {
		ids[i] = r.id
		urls[i] = r.url
		titles[i] = r.title
		texts[i] = r.content
		embeddings[i] = r.embedding

		meta, err := json.Marshal(r.metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", r.id, err)
		}
		metadata[i] = string(meta)
	}

	columns := []entity.Column{
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("url", urls),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("metadata", metadata),
		entity.NewColumnFloatVector("embedding", m.config.Dimension, embeddings),
	}

	if _, err := m.client.Upsert(ctx, m.config.CollectionName, "", columns...); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := m.client.Flush(ctx, m.config.CollectionName, false); err != nil {
		return fmt.Errorf("failed to flush data: %w", err)
	}

	return nil
}

// Query returns the limit nearest chunks, best first.
func (m *MilvusStore) Query(ctx context.Context, queryEmbedding []float32, limit int) ([]models.Match, error) {
	if len(queryEmbedding) != m.config.Dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, m.config.Dimension, len(queryEmbedding))
	}
	limit = queryLimit(limit, 1)

	sp, err := entity.NewIndexHNSWSearchParam(m.config.Ef)
	if err != nil {
		return nil, fmt.Errorf("failed to create search params: %w", err)
	}

	results, err := m.client.Search(
		ctx,
		m.config.CollectionName,
		nil, // partition names
		"",
		[]string{"url", "title", "text", "metadata"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		m.config.metricType(),
		limit,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}

	if len(results) == 0 {
		return nil, nil
	}

	return matchesFromResult(results[0])
}

func matchesFromResult(res client.SearchResult) ([]models.Match, error) {
	matches := make([]models.Match, 0, res.ResultCount)

	for i := 0; i < res.ResultCount; i++ {
		match := models.Match{Score: res.Scores[i]}

		if res.IDs != nil {
			if id, err := res.IDs.GetAsString(i); err == nil {
				match.ID = id
			}
		}

		for _, field := range res.Fields {
			col, ok := field.(*entity.ColumnVarChar)
			if !ok {
				continue
			}
			value := col.Data()[i]
			switch field.Name() {
			case "url":
				match.URL = value
			case "title":
				match.Title = value
			case "text":
				match.Content = value
			case "metadata":
				if value != "" {
					if err := json.Unmarshal([]byte(value), &match.Metadata); err != nil {
						return nil, fmt.Errorf("failed to decode metadata for %s: %w", match.ID, err)
					}
				}
			}
		}

		matches = append(matches, match)
	}

	return matches, nil
}

func (m *MilvusStore) Close() {
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			log.Printf("[store] error closing Milvus client: %v", err)
		}
	}
}
