package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadConfig(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_URL", "INDEX_NAME", "CORS_ORIGINS"} {
		t.Setenv(key, "")
	}

	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
server:
  port: 8081
  cors_origins:
    - "http://localhost:5173"

embedder:
  provider: "ollama"
  model: "all-minilm"
  base_url: "http://localhost:11434"
  dimension: 384

generator:
  provider: "googleai"
  model: "gemini-2.0-flash"
  api_key: "file-key"
  max_tokens: 512
  temperature: 0.5

index:
  backend: "pgvector"
  url: "postgres://localhost:5432/stories"
  name: "test_stories"
  metric: "cosine"

retrieval:
  similarity: "cosine"

processor:
  chunk_size: 500
  chunk_overlap: 100
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8081, config.Server.Port)
	assert.Equal(t, []string{"http://localhost:5173"}, config.Server.CORSOrigins)
	assert.Equal(t, "all-minilm", config.Embedder.Model)
	assert.Equal(t, 384, config.Embedder.Dimension)
	assert.Equal(t, "gemini-2.0-flash", config.Generator.Model)
	assert.Equal(t, "gemini-1.5-flash-latest", config.Generator.FormatModel)
	assert.Equal(t, 512, config.Generator.MaxTokens)
	require.NotNil(t, config.Generator.Temperature)
	assert.Equal(t, 0.5, *config.Generator.Temperature)
	assert.Equal(t, "postgres://localhost:5432/stories", config.Index.URL)
	assert.Equal(t, "test_stories", config.Index.Name)
	assert.Equal(t, "cosine", config.Retrieval.Similarity)
	assert.Equal(t, 500, config.Processor.ChunkSize)
	assert.Empty(t, config.Validate())
}

func TestLoadConfig_BadFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [unclosed"), 0644))

	_, err := LoadConfig(configPath)
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(tmpDir, "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	config := &Config{}
	applyDefaults(config)

	assert.Equal(t, 5000, config.Server.Port)
	assert.Equal(t, "ollama", config.Embedder.Provider)
	assert.Equal(t, 384, config.Embedder.Dimension)
	assert.Equal(t, "googleai", config.Generator.Provider)
	assert.Equal(t, "pgvector", config.Index.Backend)
	assert.Equal(t, "stories", config.Index.Name)
	assert.Equal(t, "dot", config.Retrieval.Similarity)
	assert.Empty(t, config.ValidateIngest())
}

func TestTemperature_ZeroIsKept(t *testing.T) {
	var config Config
	require.NoError(t, yaml.Unmarshal([]byte("generator:\n  temperature: 0\n"), &config))
	applyDefaults(&config)

	require.NotNil(t, config.Generator.Temperature)
	assert.Equal(t, 0.0, *config.Generator.Temperature)

	config = Config{}
	applyDefaults(&config)
	require.NotNil(t, config.Generator.Temperature)
	assert.Equal(t, 0.9, *config.Generator.Temperature)
}

func TestConfigValidation(t *testing.T) {
	valid := func() Config {
		c := Config{}
		applyDefaults(&c)
		c.Generator.APIKey = "key"
		c.Index.URL = "postgres://localhost:5432/stories"
		return c
	}

	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantField string
	}{
		{"valid config", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"unknown embedder", func(c *Config) { c.Embedder.Provider = "word2vec" }, "embedder.provider"},
		{"openai embedder without key", func(c *Config) { c.Embedder.Provider = "openai" }, "embedder.api_key"},
		{"missing generator key", func(c *Config) { c.Generator.APIKey = "" }, "generator.api_key"},
		{"temperature", func(c *Config) { hot := 3.0; c.Generator.Temperature = &hot }, "generator.temperature"},
		{"missing database url", func(c *Config) { c.Index.URL = "" }, "index.url"},
		{"unknown backend", func(c *Config) { c.Index.Backend = "pinecone" }, "index.backend"},
		{"unsafe index name", func(c *Config) { c.Index.Name = "stories; drop" }, "index.name"},
		{"bad similarity", func(c *Config) { c.Retrieval.Similarity = "l2" }, "retrieval.similarity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			errs := c.Validate()

			if tt.wantField == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Equal(t, tt.wantField, errs[0].Field)
		})
	}
}

func TestValidateIngest(t *testing.T) {
	c := Config{}
	applyDefaults(&c)
	c.Processor.ChunkOverlap = c.Processor.ChunkSize

	errs := c.ValidateIngest()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "processor.chunk_overlap")
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	t.Setenv("GENAI_API_KEY", "env-key")
	t.Setenv("INDEX_NAME", "env_stories")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	config := &Config{}
	config.Generator.APIKey = "file-key"
	mergeWithEnv(config)

	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "http://env-ollama:11434", config.Embedder.BaseURL)
	assert.Equal(t, "http://env-ollama:11434", config.Generator.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/test", config.Index.URL)
	assert.Equal(t, "env-key", config.Generator.APIKey)
	assert.Equal(t, "env_stories", config.Index.Name)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, config.Server.CORSOrigins)
}
