// Package config assembles the pipeline configuration from defaults and
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hellasdata/indexpipe/pkg/blobstore"
	"github.com/hellasdata/indexpipe/pkg/chunking"
	"github.com/hellasdata/indexpipe/pkg/embeddings"
	"github.com/hellasdata/indexpipe/pkg/search"
)

// Config holds all configuration for the indexing pipeline.
type Config struct {
	// OpenAI configuration
	OpenAIAPIKey         string
	OpenAIEndpoint       string // Azure endpoint; empty means the public API
	OpenAIModel          string
	OpenAIEmbeddingModel string

	// Index configuration
	CoreIndex          string
	DetailIndex        string
	ProcessCoreIndex   string
	ProcessDetailIndex string
	Dimensions         int

	// Component configuration
	Weaviate    *search.WeaviateConfig
	Redis       *embeddings.RedisCacheConfig
	Blob        *blobstore.S3Config
	Chunker     *chunking.ChunkerConfig
	Gateway     *embeddings.GatewayConfig
	Batch       *search.BatchConfig
	Retriever   *search.RetrieverConfig
	EnableRedis bool
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		OpenAIModel:          "gpt-4o-mini",
		OpenAIEmbeddingModel: "text-embedding-3-large",

		CoreIndex:          "Sections",
		DetailIndex:        "SectionChunks",
		ProcessCoreIndex:   "Processes",
		ProcessDetailIndex: "ProcessSteps",
		Dimensions:         3072,

		Weaviate:  search.DefaultWeaviateConfig(),
		Redis:     embeddings.DefaultRedisCacheConfig(),
		Blob:      blobstore.DefaultS3Config(),
		Chunker:   chunking.DefaultChunkerConfig(),
		Gateway:   embeddings.DefaultGatewayConfig(),
		Batch:     search.DefaultBatchConfig(),
		Retriever: search.DefaultRetrieverConfig(),
	}
}

// LoadFromEnv loads configuration from environment variables on top of the
// defaults.
func LoadFromEnv() (*Config, error) {
	cfg := DefaultConfig()

	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		cfg.OpenAIAPIKey = val
	}
	if val := os.Getenv("OPENAI_ENDPOINT"); val != "" {
		cfg.OpenAIEndpoint = val
	}
	if val := os.Getenv("OPENAI_MODEL"); val != "" {
		cfg.OpenAIModel = val
	}
	if val := os.Getenv("OPENAI_EMBEDDING_MODEL"); val != "" {
		cfg.OpenAIEmbeddingModel = val
	}

	if val := os.Getenv("CORE_INDEX"); val != "" {
		cfg.CoreIndex = val
	}
	if val := os.Getenv("DETAIL_INDEX"); val != "" {
		cfg.DetailIndex = val
	}
	if val := os.Getenv("PROCESS_CORE_INDEX"); val != "" {
		cfg.ProcessCoreIndex = val
	}
	if val := os.Getenv("PROCESS_DETAIL_INDEX"); val != "" {
		cfg.ProcessDetailIndex = val
	}
	if val := os.Getenv("EMBEDDING_DIMENSIONS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Dimensions = n
		}
	}

	if val := os.Getenv("WEAVIATE_HOST"); val != "" {
		cfg.Weaviate.Host = val
	}
	if val := os.Getenv("WEAVIATE_SCHEME"); val != "" {
		cfg.Weaviate.Scheme = val
	}
	if val := os.Getenv("WEAVIATE_API_KEY"); val != "" {
		cfg.Weaviate.APIKey = val
	}

	if val := os.Getenv("REDIS_ADDRESS"); val != "" {
		cfg.Redis.Address = val
		cfg.EnableRedis = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}

	if val := os.Getenv("S3_BUCKET"); val != "" {
		cfg.Blob.Bucket = val
	}
	if val := os.Getenv("S3_REGION"); val != "" {
		cfg.Blob.Region = val
	}
	if val := os.Getenv("S3_PREFIX"); val != "" {
		cfg.Blob.Prefix = val
	}

	if val := os.Getenv("CHUNK_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Chunker.ChunkSize = n
		}
	}
	if val := os.Getenv("CHUNK_OVERLAP"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Chunker.Overlap = n
		}
	}

	if val := os.Getenv("BATCH_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Batch.BatchSize = n
		}
	}
	if val := os.Getenv("CONTEXT_WINDOW"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Retriever.WindowSize = n
		}
	}
	if val := os.Getenv("CACHE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Redis.TTL = d
		}
	}

	cfg.Gateway.Model = cfg.OpenAIEmbeddingModel
	return cfg, nil
}

// Validate checks that the configuration is complete enough to run.
func (c *Config) Validate() error {
	var errors []string

	if c.OpenAIAPIKey == "" {
		errors = append(errors, "OPENAI_API_KEY is required")
	}
	if c.Weaviate.Host == "" {
		errors = append(errors, "WEAVIATE_HOST is required")
	}
	if c.CoreIndex == "" || c.DetailIndex == "" {
		errors = append(errors, "CORE_INDEX and DETAIL_INDEX must be set")
	}
	if c.Chunker.Overlap >= c.Chunker.ChunkSize {
		errors = append(errors, "CHUNK_OVERLAP must be smaller than CHUNK_SIZE")
	}
	if c.Dimensions <= 0 {
		errors = append(errors, "EMBEDDING_DIMENSIONS must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}
	return nil
}

// ValidateForIngest adds the requirements of a full ingest run on top of
// Validate.
func (c *Config) ValidateForIngest() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Blob.Bucket == "" {
		return fmt.Errorf("configuration validation failed: S3_BUCKET is required for ingest")
	}
	return nil
}
