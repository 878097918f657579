package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         int      `yaml:"port"`
		CORSOrigins  []string `yaml:"cors_origins"`
		ReadTimeout  int      `yaml:"read_timeout_seconds"`
		WriteTimeout int      `yaml:"write_timeout_seconds"`
	} `yaml:"server"`

	Embedder struct {
		Provider  string `yaml:"provider"`
		Model     string `yaml:"model"`
		BaseURL   string `yaml:"base_url"`
		APIKey    string `yaml:"api_key"`
		Dimension int    `yaml:"dimension"`
	} `yaml:"embedder"`

	Generator struct {
		Provider    string   `yaml:"provider"`
		Model       string   `yaml:"model"`
		FormatModel string   `yaml:"format_model"`
		BaseURL     string   `yaml:"base_url"`
		APIKey      string   `yaml:"api_key"`
		MaxTokens   int      `yaml:"max_tokens"`
		Temperature *float64 `yaml:"temperature"` // unset means 0.9; 0 is kept
	} `yaml:"generator"`

	Index struct {
		Backend        string `yaml:"backend"`
		URL            string `yaml:"url"`
		Name           string `yaml:"name"`
		Metric         string `yaml:"metric"`
		BatchSize      int    `yaml:"batch_size"`
		MilvusAddress  string `yaml:"milvus_address"`
		HNSWM          int    `yaml:"hnsw_m"`
		EfConstruction int    `yaml:"ef_construction"`
	} `yaml:"index"`

	Retrieval struct {
		Similarity string `yaml:"similarity"`
	} `yaml:"retrieval"`

	Scraper struct {
		MaxDepth          int      `yaml:"max_depth"`
		RateLimit         float64  `yaml:"rate_limit"`
		IgnorePatterns    []string `yaml:"ignore_patterns"`
		AllowedExtensions []string `yaml:"allowed_extensions"`
	} `yaml:"scraper"`

	Processor struct {
		ChunkSize      int `yaml:"chunk_size"`
		ChunkOverlap   int `yaml:"chunk_overlap"`
		MinChunkLength int `yaml:"min_chunk_length"`
	} `yaml:"processor"`
}

// LoadConfig reads path (or the first config file found in the default
// locations), overlays environment variables and fills defaults. A .env file
// in the working directory is loaded into the environment first.
func LoadConfig(path string) (*Config, error) {
	// Missing .env is fine in production.
	_ = godotenv.Load()

	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/taleweaver/config.yaml"),
			"/etc/taleweaver/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Port == 0 {
		config.Server.Port = 5000
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 30
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 120
	}

	if config.Embedder.Provider == "" {
		config.Embedder.Provider = "ollama"
	}
	if config.Embedder.Model == "" && config.Embedder.Provider == "ollama" {
		config.Embedder.Model = "all-minilm"
	}
	if config.Embedder.BaseURL == "" {
		config.Embedder.BaseURL = "http://localhost:11434"
	}
	if config.Embedder.Dimension == 0 {
		config.Embedder.Dimension = 384
	}

	if config.Generator.Provider == "" {
		config.Generator.Provider = "googleai"
	}
	if config.Generator.Provider == "googleai" {
		if config.Generator.Model == "" {
			config.Generator.Model = "gemini-2.0-flash"
		}
		if config.Generator.FormatModel == "" {
			config.Generator.FormatModel = "gemini-1.5-flash-latest"
		}
	}
	if config.Generator.BaseURL == "" {
		config.Generator.BaseURL = "http://localhost:11434"
	}
	if config.Generator.MaxTokens == 0 {
		config.Generator.MaxTokens = 1024
	}
	if config.Generator.Temperature == nil {
		temperature := 0.9
		config.Generator.Temperature = &temperature
	}

	if config.Index.Backend == "" {
		config.Index.Backend = "pgvector"
	}
	if config.Index.Name == "" {
		config.Index.Name = "stories"
	}
	if config.Index.Metric == "" {
		config.Index.Metric = "cosine"
	}
	if config.Index.BatchSize == 0 {
		config.Index.BatchSize = 100
	}
	if config.Index.MilvusAddress == "" {
		config.Index.MilvusAddress = "localhost:19530"
	}

	if config.Retrieval.Similarity == "" {
		config.Retrieval.Similarity = "dot"
	}

	if config.Scraper.MaxDepth == 0 {
		config.Scraper.MaxDepth = 2
	}
	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
	if len(config.Scraper.AllowedExtensions) == 0 {
		config.Scraper.AllowedExtensions = []string{".html", ".htm", ".txt", "/", ""}
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = 200
	}
	if config.Processor.MinChunkLength == 0 {
		config.Processor.MinChunkLength = 100
	}
}

func mergeWithEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		config.Server.CORSOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				config.Server.CORSOrigins = append(config.Server.CORSOrigins, o)
			}
		}
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedder.BaseURL = baseURL
		config.Generator.BaseURL = baseURL
	}
	switch config.Generator.Provider {
	case "", "googleai":
		if key := os.Getenv("GENAI_API_KEY"); key != "" {
			config.Generator.APIKey = key
		}
	case "openai":
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			config.Generator.APIKey = key
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && config.Embedder.Provider == "openai" {
		config.Embedder.APIKey = key
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Index.URL = dbURL
	}
	if name := os.Getenv("INDEX_NAME"); name != "" {
		config.Index.Name = name
	}
	if addr := os.Getenv("MILVUS_ADDRESS"); addr != "" {
		config.Index.MilvusAddress = addr
	}
}
