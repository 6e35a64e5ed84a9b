package main

import (
	"context"
	_ "embed"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rag-pipeline/internal/config"
	"rag-pipeline/internal/extract"
	"rag-pipeline/internal/handlers"
	"rag-pipeline/internal/http"
	"rag-pipeline/internal/indexer"
	"rag-pipeline/internal/llm"
	"rag-pipeline/internal/rag"
	"rag-pipeline/internal/service"
	"rag-pipeline/internal/storage"
	"rag-pipeline/internal/vectorstore"
)

//go:generate swagger generate spec -o swagger.json

//go:embed swagger.json
var apiDocs []byte

// General API information
//
// This API indexes uploaded documents and answers questions from their content.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: RAG Pipeline API
//   description: |
//     Upload PDF, DOCX, Markdown or text documents, then query them. Answers are
//     extracted from the stored chunks closest to the question.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
//   - multipart/form-data
// produces:
//   - application/json

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	documentRepo := storage.NewDocumentRepo(db)
	chunkRepo := storage.NewChunkRepo(db)

	embedder, modelName, err := newEmbedder(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize embedder: %v", err)
	}

	healthChecks := map[string]handlers.Pinger{
		"database": db,
	}

	var index vectorstore.VectorIndex
	switch cfg.VectorBackend {
	case config.VectorBackendQdrant:
		qdrantIndex, err := vectorstore.NewQdrantIndex(ctx, cfg.QdrantURL, cfg.QdrantCollection, cfg.EmbeddingDimension)
		if err != nil {
			log.Fatalf("Failed to initialize Qdrant index: %v", err)
		}
		defer func() {
			_ = qdrantIndex.Close()
		}()
		index = qdrantIndex
		slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.EmbeddingDimension, "points", qdrantIndex.Len())
	default:
		flatIndex, err := vectorstore.NewFlatIndex(cfg.EmbeddingDimension)
		if err != nil {
			log.Fatalf("Failed to create in-memory index: %v", err)
		}
		index = flatIndex
		slog.Info("In-memory vector index ready", "vector_size", cfg.EmbeddingDimension)
	}
	if pinger, ok := index.(vectorstore.Pinger); ok {
		healthChecks["vector_index"] = handlers.PingerFunc(pinger.Ping)
	}

	chunker, err := indexer.NewWordChunkerWithSize(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		log.Fatalf("Invalid chunker configuration: %v", err)
	}
	indexVersion := indexer.IndexVersion(chunker, modelName)

	engine := rag.NewEngine(embedder, index)
	slog.Info("Retrieval engine initialized", "index_version", indexVersion)

	limits := service.Limits{
		MaxFiles:          cfg.MaxUploadFiles,
		MaxFileBytes:      cfg.MaxFileBytes,
		MaxDocumentChunks: cfg.MaxDocumentChunks,
		DefaultTopK:       cfg.DefaultTopK,
	}
	documents := service.NewDocumentService(service.DocumentServiceConfig{
		Engine:       engine,
		Documents:    documentRepo,
		Chunks:       chunkRepo,
		Extractor:    extract.New(),
		Chunker:      chunker,
		Limits:       limits,
		IndexVersion: indexVersion,
		Cache:        cacheReporter(embedder),
	})

	// Rebuild the registry before serving so the first query sees every stored document.
	if err := documents.Rehydrate(ctx); err != nil {
		log.Fatalf("Failed to rehydrate documents: %v", err)
	}

	router := http.NewRouter(&http.Deps{
		Documents:    documents,
		Limits:       limits,
		HealthChecks: healthChecks,
		APIDocs:      apiDocs,
	})

	addr := ":" + cfg.APIPort
	server := &nethttp.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
		}
	}()

	slog.Info("Starting API server", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		log.Fatalf("API server failed to start: %v", err)
	}
}

// newEmbedder builds the configured embedding provider behind an LRU cache.
// The HTTP provider is probed once so a wrong dimension fails at startup.
func newEmbedder(ctx context.Context, cfg *config.Config) (rag.Embedder, string, error) {
	var (
		inner llm.Embedder
		model string
	)
	switch cfg.EmbeddingProvider {
	case config.EmbeddingProviderHTTP:
		client := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModelName,
			cfg.EmbeddingDimension, cfg.EmbeddingRPS, cfg.EmbeddingBurst)
		if _, err := client.EmbedTexts(ctx, []string{"test"}); err != nil {
			return nil, "", err
		}
		slog.Info("Embedding client validated", "base_url", cfg.EmbeddingBaseURL, "model", cfg.EmbeddingModelName, "vector_size", cfg.EmbeddingDimension)
		inner, model = client, client.ModelName()
	default:
		hash, err := llm.NewHashEmbedder(cfg.EmbeddingDimension)
		if err != nil {
			return nil, "", err
		}
		slog.Info("Using local hashing embedder", "vector_size", cfg.EmbeddingDimension)
		inner, model = hash, hash.ModelName()
	}

	if cfg.EmbeddingCacheSize == 0 {
		return inner, model, nil
	}
	cached, err := llm.NewCachingEmbedder(inner, model, cfg.EmbeddingCacheSize)
	if err != nil {
		return nil, "", err
	}
	return cached, model, nil
}

// cacheReporter returns the embedding cache, or nil when caching is disabled.
func cacheReporter(embedder rag.Embedder) service.CacheReporter {
	if cached, ok := embedder.(*llm.CachingEmbedder); ok {
		return cached
	}
	return nil
}
