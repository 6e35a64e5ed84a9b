package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	// EmbeddingProviderHash selects the local feature-hashing embedder.
	EmbeddingProviderHash = "hash"
	// EmbeddingProviderHTTP selects the OpenAI-compatible embeddings server.
	EmbeddingProviderHTTP = "http"

	// VectorBackendMemory keeps the vector index in process memory.
	VectorBackendMemory = "memory"
	// VectorBackendQdrant persists the vector index in a Qdrant collection.
	VectorBackendQdrant = "qdrant"
)

// Config holds all configuration for the application.
type Config struct {
	APIPort   string     `env:"PORT" envDefault:"10000"`
	DBPath    string     `env:"DB_PATH" envDefault:"./data/documents.db"`
	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text"`

	EmbeddingProvider  string  `env:"EMBEDDING_PROVIDER" envDefault:"hash"`
	EmbeddingBaseURL   string  `env:"EMBEDDING_BASE_URL" envDefault:"http://localhost:8081"`
	EmbeddingModelName string  `env:"EMBEDDING_MODEL_NAME" envDefault:"all-MiniLM-L6-v2"`
	EmbeddingAPIKey    string  `env:"EMBEDDING_API_KEY" envDefault:"dummy-key"`
	EmbeddingDimension int     `env:"EMBEDDING_DIMENSION" envDefault:"384"`
	EmbeddingRPS       float64 `env:"EMBEDDING_RPS" envDefault:"0"`
	EmbeddingBurst     int     `env:"EMBEDDING_BURST" envDefault:"1"`
	EmbeddingCacheSize int     `env:"EMBEDDING_CACHE_SIZE" envDefault:"1024"`

	VectorBackend    string `env:"VECTOR_BACKEND" envDefault:"memory"`
	QdrantURL        string `env:"QDRANT_URL" envDefault:"http://localhost:6333"`
	QdrantCollection string `env:"QDRANT_COLLECTION" envDefault:"chunks"`

	ChunkSize    int `env:"CHUNK_SIZE" envDefault:"500"`
	ChunkOverlap int `env:"CHUNK_OVERLAP" envDefault:"50"`

	MaxUploadFiles    int   `env:"MAX_UPLOAD_FILES" envDefault:"20"`
	MaxFileBytes      int64 `env:"MAX_FILE_BYTES" envDefault:"10000000"`
	MaxDocumentChunks int   `env:"MAX_DOCUMENT_CHUNKS" envDefault:"1000"`
	DefaultTopK       int   `env:"DEFAULT_TOP_K" envDefault:"5"`
}

// Load reads configuration from environment variables and returns a Config struct.
// If a .env file exists in the current directory or one of its parents, it is loaded first.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	// Walk up a few levels so the binary also works when started from cmd/api.
	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	cfg.EmbeddingProvider = strings.ToLower(strings.TrimSpace(cfg.EmbeddingProvider))
	cfg.VectorBackend = strings.ToLower(strings.TrimSpace(cfg.VectorBackend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// Validate checks field ranges and enumerations.
func (c *Config) Validate() error {
	if c.APIPort == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	switch c.EmbeddingProvider {
	case EmbeddingProviderHash, EmbeddingProviderHTTP:
	default:
		return fmt.Errorf("EMBEDDING_PROVIDER must be %s or %s, got %q", EmbeddingProviderHash, EmbeddingProviderHTTP, c.EmbeddingProvider)
	}
	if c.EmbeddingProvider == EmbeddingProviderHTTP && c.EmbeddingBaseURL == "" {
		return fmt.Errorf("EMBEDDING_BASE_URL is required when EMBEDDING_PROVIDER=%s", EmbeddingProviderHTTP)
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSION must be greater than 0")
	}
	if c.EmbeddingRPS < 0 {
		return fmt.Errorf("EMBEDDING_RPS must not be negative")
	}
	if c.EmbeddingBurst <= 0 {
		return fmt.Errorf("EMBEDDING_BURST must be greater than 0")
	}
	if c.EmbeddingCacheSize < 0 {
		return fmt.Errorf("EMBEDDING_CACHE_SIZE must not be negative")
	}
	switch c.VectorBackend {
	case VectorBackendMemory:
	case VectorBackendQdrant:
		if c.QdrantURL == "" {
			return fmt.Errorf("QDRANT_URL is required when VECTOR_BACKEND=%s", VectorBackendQdrant)
		}
		if c.QdrantCollection == "" {
			return fmt.Errorf("QDRANT_COLLECTION is required when VECTOR_BACKEND=%s", VectorBackendQdrant)
		}
	default:
		return fmt.Errorf("VECTOR_BACKEND must be %s or %s, got %q", VectorBackendMemory, VectorBackendQdrant, c.VectorBackend)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be greater than 0")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE)")
	}
	if c.MaxUploadFiles <= 0 {
		return fmt.Errorf("MAX_UPLOAD_FILES must be greater than 0")
	}
	if c.MaxFileBytes <= 0 {
		return fmt.Errorf("MAX_FILE_BYTES must be greater than 0")
	}
	if c.MaxDocumentChunks <= 0 {
		return fmt.Errorf("MAX_DOCUMENT_CHUNKS must be greater than 0")
	}
	if c.DefaultTopK <= 0 {
		return fmt.Errorf("DEFAULT_TOP_K must be greater than 0")
	}
	return nil
}
