package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tmc/langchaingo/llms/ollama"
)

var (
	ErrEmptyInput        = errors.New("empty input")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrInvalidConfig     = errors.New("invalid llm configuration")
)

const (
	ProviderOllama   = "ollama"
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"
)

// EmbedderConfig represents the configuration for an embedder.
type EmbedderConfig struct {
	Provider  string
	Model     string
	BaseURL   string // Ollama server URL
	APIKey    string // OpenAI only
	Dimension int
}

// embeddingClient is the slice of a provider SDK the embedder needs.
// langchaingo's ollama.LLM satisfies it directly.
type embeddingClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder maps text to vectors with a single model. It is safe for
// concurrent use once built.
type Embedder struct {
	Config EmbedderConfig
	client embeddingClient
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Provider == "" {
		config.Provider = ProviderOllama
	}
	if config.Dimension < 0 {
		return nil, fmt.Errorf("%w: dimension cannot be negative", ErrInvalidConfig)
	}

	var client embeddingClient
	switch config.Provider {
	case ProviderOllama:
		if config.Model == "" {
			config.Model = "all-minilm"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		emb, err := ollama.New(ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		client = emb
	case ProviderOpenAI:
		if config.APIKey == "" {
			return nil, fmt.Errorf("%w: missing OpenAI API key", ErrInvalidConfig)
		}
		if config.Model == "" {
			config.Model = "text-embedding-3-small"
		}
		client = &openAIEmbeddings{
			client:    openai.NewClient(option.WithAPIKey(config.APIKey)),
			model:     config.Model,
			dimension: config.Dimension,
		}
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidConfig, config.Provider)
	}

	return NewEmbedderWithClient(config, client), nil
}

// NewEmbedderWithClient wraps an already built provider client.
func NewEmbedderWithClient(config EmbedderConfig, client embeddingClient) *Embedder {
	return &Embedder{
		Config: config,
		client: client,
	}
}

func (e *Embedder) Dimension() int {
	return e.Config.Dimension
}

// Embed returns the vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in one provider call, one vector per text in the
// same order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	for _, t := range texts {
		if t == "" {
			return nil, ErrEmptyInput
		}
	}

	vectors, err := e.client.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("failed to create embeddings: got %d vectors for %d texts", len(vectors), len(texts))
	}

	for _, v := range vectors {
		if e.Config.Dimension > 0 && len(v) != e.Config.Dimension {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, e.Config.Dimension, len(v))
		}
	}

	return vectors, nil
}

type openAIEmbeddings struct {
	client    openai.Client
	model     string
	dimension int
}

func (o *openAIEmbeddings) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model:          o.model,
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if o.dimension > 0 {
		params.Dimensions = openai.Int(int64(o.dimension))
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if int(data.Index) >= len(vectors) {
			continue
		}
		embedding := make([]float32, len(data.Embedding))
		for j, val := range data.Embedding {
			embedding[j] = float32(val)
		}
		vectors[int(data.Index)] = embedding
	}

	return vectors, nil
}
