package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/hellasdata/indexpipe/pkg/blobstore"
	"github.com/hellasdata/indexpipe/pkg/chunking"
	"github.com/hellasdata/indexpipe/pkg/config"
	"github.com/hellasdata/indexpipe/pkg/embeddings"
	"github.com/hellasdata/indexpipe/pkg/pipeline"
	"github.com/hellasdata/indexpipe/pkg/records"
	"github.com/hellasdata/indexpipe/pkg/search"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
)

// dependencies bundles the clients every command shares.
type dependencies struct {
	gateway     *embeddings.Gateway
	client      *weaviate.Client
	coreIndex   *search.WeaviateIndex
	detailIndex *search.WeaviateIndex
	counter     chunking.TokenCounter
	chunker     *chunking.Chunker
}

func buildDependencies(_ context.Context, cfg *config.Config, logger *slog.Logger) *dependencies {
	var provider *embeddings.OpenAIProvider
	if cfg.OpenAIEndpoint != "" {
		provider = embeddings.NewAzureOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIEndpoint)
	} else {
		provider = embeddings.NewOpenAIProvider(cfg.OpenAIAPIKey)
	}

	var cache embeddings.Cache
	if cfg.EnableRedis {
		redisCache, err := embeddings.NewRedisCache(cfg.Redis, logger)
		if err != nil {
			logger.Warn("redis unavailable, running without embedding cache", "error", err)
		} else {
			cache = redisCache
		}
	}
	gateway := embeddings.NewGateway(provider, provider, cache, cfg.Gateway, logger)

	client, err := search.NewWeaviateClient(cfg.Weaviate)
	if err != nil {
		log.Fatalf("failed to connect to weaviate: %v", err)
	}
	sectionFields := records.SectionFields()
	coreIndex := search.NewWeaviateIndex(client,
		pipeline.CoreSchema(cfg.CoreIndex, sectionFields, cfg.Dimensions, pipeline.SectionExtraFields()...), logger)
	detailIndex := search.NewWeaviateIndex(client,
		pipeline.DetailSchema(cfg.DetailIndex, sectionFields, cfg.Dimensions), logger)

	var counter chunking.TokenCounter
	if exact, err := chunking.NewTiktokenCounter(cfg.OpenAIEmbeddingModel); err != nil {
		logger.Warn("tokenizer unavailable, falling back to estimation", "error", err)
		counter = chunking.EstimatingCounter{}
	} else {
		counter = exact
	}

	return &dependencies{
		gateway:     gateway,
		client:      client,
		coreIndex:   coreIndex,
		detailIndex: detailIndex,
		counter:     counter,
		chunker:     chunking.NewChunker(cfg.Chunker, counter, logger),
	}
}

// processIndexes builds the process-family index pair on the shared client.
func (d *dependencies) processIndexes(cfg *config.Config, logger *slog.Logger) (*search.WeaviateIndex, *search.WeaviateIndex) {
	processFields := records.ProcessFields()
	core := search.NewWeaviateIndex(d.client,
		pipeline.CoreSchema(cfg.ProcessCoreIndex, processFields, cfg.Dimensions, pipeline.ProcessExtraFields()...), logger)
	detail := search.NewWeaviateIndex(d.client,
		pipeline.DetailSchema(cfg.ProcessDetailIndex, processFields, cfg.Dimensions), logger)
	return core, detail
}

func (d *dependencies) store(ctx context.Context, cfg *config.Config, logger *slog.Logger) blobstore.Store {
	store, err := blobstore.NewS3Store(ctx, cfg.Blob, logger)
	if err != nil {
		log.Fatalf("failed to open blob store: %v", err)
	}
	return store
}
