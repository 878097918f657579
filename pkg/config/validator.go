package config

import (
	"fmt"
	"net/url"
	"regexp"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var indexNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate server config
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	// Validate embedder config
	switch c.Embedder.Provider {
	case "ollama":
		if _, err := url.ParseRequestURI(c.Embedder.BaseURL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "embedder.base_url",
				Message: "invalid Ollama base URL",
			})
		}
	case "openai":
		if c.Embedder.APIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "embedder.api_key",
				Message: "OpenAI API key is required",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "embedder.provider",
			Message: fmt.Sprintf("unknown provider: %s", c.Embedder.Provider),
		})
	}

	if c.Embedder.Dimension < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedder.dimension",
			Message: "dimension must be positive",
		})
	}

	// Validate generator config
	switch c.Generator.Provider {
	case "googleai", "openai":
		if c.Generator.APIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "generator.api_key",
				Message: "API key is required",
			})
		}
	case "ollama":
	default:
		errors = append(errors, ValidationError{
			Field:   "generator.provider",
			Message: fmt.Sprintf("unknown provider: %s", c.Generator.Provider),
		})
	}

	if c.Generator.MaxTokens < 1 || c.Generator.MaxTokens > 8192 {
		errors = append(errors, ValidationError{
			Field:   "generator.max_tokens",
			Message: "max_tokens must be between 1 and 8192",
		})
	}

	if t := c.Generator.Temperature; t != nil && (*t < 0 || *t > 2) {
		errors = append(errors, ValidationError{
			Field:   "generator.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	// Validate index config
	switch c.Index.Backend {
	case "pgvector":
		if c.Index.URL == "" {
			errors = append(errors, ValidationError{
				Field:   "index.url",
				Message: "database URL is required",
			})
		} else if _, err := url.Parse(c.Index.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "index.url",
				Message: "invalid database URL",
			})
		}
	case "milvus":
		if c.Index.MilvusAddress == "" {
			errors = append(errors, ValidationError{
				Field:   "index.milvus_address",
				Message: "Milvus address is required",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "index.backend",
			Message: fmt.Sprintf("unknown backend: %s", c.Index.Backend),
		})
	}

	if !indexNamePattern.MatchString(c.Index.Name) {
		errors = append(errors, ValidationError{
			Field:   "index.name",
			Message: "name must be letters, digits and underscores",
		})
	}

	if c.Index.Metric != "cosine" && c.Index.Metric != "ip" {
		errors = append(errors, ValidationError{
			Field:   "index.metric",
			Message: "metric must be cosine or ip",
		})
	}

	if c.Index.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "index.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate retrieval config
	if c.Retrieval.Similarity != "dot" && c.Retrieval.Similarity != "cosine" {
		errors = append(errors, ValidationError{
			Field:   "retrieval.similarity",
			Message: "similarity must be dot or cosine",
		})
	}

	return errors
}

// ValidateIngest checks the settings only the ingestion tool reads.
func (c *Config) ValidateIngest() []ValidationError {
	var errors []ValidationError

	if c.Scraper.MaxDepth < 0 {
		errors = append(errors, ValidationError{
			Field:   "scraper.max_depth",
			Message: "max_depth cannot be negative",
		})
	}

	if c.Scraper.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "scraper.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Processor.ChunkOverlap < 0 || c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	return errors
}
