// Package app builds the long-lived clients both binaries share from a
// loaded configuration.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/xhad/taleweaver/internal/types"
	"github.com/xhad/taleweaver/pkg/config"
	"github.com/xhad/taleweaver/pkg/ingest"
	"github.com/xhad/taleweaver/pkg/llm"
	"github.com/xhad/taleweaver/pkg/processor"
	"github.com/xhad/taleweaver/pkg/retriever"
	"github.com/xhad/taleweaver/pkg/store"
	"github.com/xhad/taleweaver/pkg/story"
)

// App owns the clients built at startup. They are safe for concurrent use
// and are released by Close.
type App struct {
	Config      *config.Config
	Embedder    *llm.Embedder
	Store       types.VectorStore
	Storyteller *story.Storyteller
}

// New connects the embedder, the vector index and the generators.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	embedder, err := NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	vectorStore, err := store.Open(ctx, StoreConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	storyteller, err := NewStoryteller(ctx, cfg, embedder, vectorStore)
	if err != nil {
		vectorStore.Close()
		return nil, err
	}

	return &App{
		Config:      cfg,
		Embedder:    embedder,
		Store:       vectorStore,
		Storyteller: storyteller,
	}, nil
}

func (a *App) Close() {
	if a.Store != nil {
		a.Store.Close()
	}
}

func NewEmbedder(cfg *config.Config) (*llm.Embedder, error) {
	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider:  cfg.Embedder.Provider,
		Model:     cfg.Embedder.Model,
		BaseURL:   cfg.Embedder.BaseURL,
		APIKey:    cfg.Embedder.APIKey,
		Dimension: cfg.Embedder.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return embedder, nil
}

// NewStoryteller wires the retriever and generators around an open index.
func NewStoryteller(ctx context.Context, cfg *config.Config, embedder types.Embedder, index types.VectorIndex) (*story.Storyteller, error) {
	similarity, err := retriever.ParseSimilarity(cfg.Retrieval.Similarity)
	if err != nil {
		return nil, err
	}
	r := retriever.NewWithConfig(retriever.RetrieverConfig{Similarity: similarity}, embedder, index)

	writerConfig, editorConfig := GeneratorConfigs(cfg)

	writer, err := llm.NewGeneratorWithConfig(ctx, writerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}

	var editor types.Generator = writer
	if editorConfig.Model != writerConfig.Model {
		formatter, err := llm.NewGeneratorWithConfig(ctx, editorConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize format generator: %w", err)
		}
		editor = formatter
	}

	log.Printf("[app] generator %s/%s, similarity %s", writerConfig.Provider, writer.Model(), similarity)
	return story.New(r, writer, editor), nil
}

// NewIngestPipeline builds the pipeline storyctl uses to fill the index.
func NewIngestPipeline(cfg *config.Config, embedder types.Embedder, writer ingest.Writer, progress func(stage string, done, total int)) *ingest.Pipeline {
	proc := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:      cfg.Processor.ChunkSize,
		ChunkOverlap:   cfg.Processor.ChunkOverlap,
		MinChunkLength: cfg.Processor.MinChunkLength,
	})
	return ingest.New(ingest.Config{
		BatchSize: cfg.Index.BatchSize,
		Progress:  progress,
	}, proc, embedder, writer)
}

// StoreConfig maps the index section onto the backend configs.
func StoreConfig(cfg *config.Config) store.Config {
	metric := store.Metric(cfg.Index.Metric)
	return store.Config{
		Backend: cfg.Index.Backend,
		PG: store.VectorStoreConfig{
			ConnString: cfg.Index.URL,
			TableName:  cfg.Index.Name,
			VectorDim:  cfg.Embedder.Dimension,
			BatchSize:  cfg.Index.BatchSize,
			Metric:     metric,
		},
		Milvus: store.MilvusConfig{
			Address:        cfg.Index.MilvusAddress,
			CollectionName: cfg.Index.Name,
			Dimension:      cfg.Embedder.Dimension,
			Metric:         metric,
			M:              cfg.Index.HNSWM,
			EfConstruction: cfg.Index.EfConstruction,
		},
	}
}

// GeneratorConfigs returns the continuation and the format/title generator
// configs. They differ only in model.
func GeneratorConfigs(cfg *config.Config) (writer, editor llm.GeneratorConfig) {
	writer = llm.GeneratorConfig{
		Provider:    cfg.Generator.Provider,
		Model:       cfg.Generator.Model,
		APIKey:      cfg.Generator.APIKey,
		BaseURL:     cfg.Generator.BaseURL,
		Temperature: cfg.Generator.Temperature,
		MaxTokens:   cfg.Generator.MaxTokens,
	}
	editor = writer
	if cfg.Generator.FormatModel != "" {
		editor.Model = cfg.Generator.FormatModel
	}
	return writer, editor
}
