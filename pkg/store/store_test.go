package store

import (
	"context"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/taleweaver/internal/models"
)

func TestFlattenChunks(t *testing.T) {
	docs := []models.ProcessedDocument{
		{
			Document: models.Document{ID: "a", URL: "file://a.txt", Title: "A", Metadata: map[string]interface{}{"k": "v"}},
			Chunks:   []string{"one", "two"},
			Embedding: [][]float32{
				{1, 0},
				{0, 1},
			},
		},
		{
			Document:  models.Document{ID: "b"},
			Chunks:    []string{"three"},
			Embedding: [][]float32{{1, 1}},
		},
	}

	rows, err := flattenChunks(docs, 2)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "a_0", rows[0].id)
	assert.Equal(t, "a_1", rows[1].id)
	assert.Equal(t, 1, rows[1].chunkIndex)
	assert.Equal(t, "two", rows[1].content)
	assert.Equal(t, "A", rows[1].title)
	assert.Equal(t, "b_0", rows[2].id)
}

func TestFlattenChunks_Errors(t *testing.T) {
	missing := []models.ProcessedDocument{{
		Document: models.Document{ID: "a"},
		Chunks:   []string{"one", "two"},
	}}
	_, err := flattenChunks(missing, 2)
	assert.ErrorIs(t, err, ErrMissingEmbedding)

	wrongDim := []models.ProcessedDocument{{
		Document:  models.Document{ID: "a"},
		Chunks:    []string{"one"},
		Embedding: [][]float32{{1, 2, 3}},
	}}
	_, err = flattenChunks(wrongDim, 2)
	assert.ErrorIs(t, err, ErrInvalidDimension)
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "plain", sanitizeUTF8("plain"))
	assert.Equal(t, "café", sanitizeUTF8("café"))
	assert.Equal(t, "ab", sanitizeUTF8("a\xffb"))
}

func TestMetric(t *testing.T) {
	assert.Equal(t, "<=>", MetricCosine.pgOperator())
	assert.Equal(t, "<#>", MetricInnerProduct.pgOperator())
	assert.Equal(t, "vector_cosine_ops", MetricCosine.pgOps())
	assert.Equal(t, "vector_ip_ops", MetricInnerProduct.pgOps())

	assert.InDelta(t, 0.75, MetricCosine.scoreFromDistance(0.25), 1e-6)
	assert.InDelta(t, 2.5, MetricInnerProduct.scoreFromDistance(-2.5), 1e-6)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Config{Backend: "pinecone"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestMilvusConfigDefaults(t *testing.T) {
	var c MilvusConfig
	c.applyDefaults()

	assert.Equal(t, "localhost:19530", c.Address)
	assert.Equal(t, "stories", c.CollectionName)
	assert.Equal(t, 384, c.Dimension)
	assert.Equal(t, entity.COSINE, c.metricType())

	c.Metric = MetricInnerProduct
	assert.Equal(t, entity.IP, c.metricType())
}

func TestMilvusStore_QueryDimension(t *testing.T) {
	// No connection is needed to reject a malformed query vector.
	s := &MilvusStore{config: MilvusConfig{Dimension: 384}}

	_, err := s.Query(context.Background(), []float32{1, 2, 3}, 1)
	assert.ErrorIs(t, err, ErrInvalidDimension)
}

func TestMilvusSchema(t *testing.T) {
	s := &MilvusStore{config: MilvusConfig{CollectionName: "stories", Dimension: 384}}
	schema := s.schema()

	require.Len(t, schema.Fields, 6)
	assert.Equal(t, "id", schema.Fields[0].Name)
	assert.True(t, schema.Fields[0].PrimaryKey)
	assert.Equal(t, entity.FieldTypeFloatVector, schema.Fields[5].DataType)
	assert.Equal(t, "384", schema.Fields[5].TypeParams["dim"])
}

func TestQueryLimit(t *testing.T) {
	assert.Equal(t, 5, queryLimit(5, 1))
	assert.Equal(t, 1, queryLimit(0, 1))
	assert.Equal(t, 3, queryLimit(-2, 3))
}
