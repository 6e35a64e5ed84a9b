package rag

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"rag-pipeline/internal/contextutil"
	"rag-pipeline/internal/vectorstore"
)

// Engine indexes document chunks and retrieves the closest ones for a query.
type Engine interface {
	// AddDocument embeds chunks in one batch, appends them to the index and registers them
	// under a fresh document id. Nothing is registered if any step fails.
	AddDocument(ctx context.Context, filename string, chunks []string) (Document, error)

	// Restore re-embeds previously stored chunks of one document and registers them at new positions.
	Restore(ctx context.Context, chunks []Chunk) (start int, err error)

	// LoadRegistry registers stored chunks at positions that already hold their vectors.
	LoadRegistry(ctx context.Context, placements []Placement) error

	// Search returns up to topK registered chunks closest to query, closest first.
	Search(ctx context.Context, query string, topK int) ([]Result, error)

	// DeleteDocument unregisters every chunk of documentID and returns how many were removed.
	// Index vectors are not reclaimed. Unknown ids remove nothing.
	DeleteDocument(ctx context.Context, documentID string) int

	// Stats reports index and registry sizes.
	Stats() Stats
}

// retrievalEngine implements Engine.
// mu covers index and registry as one unit: writers append and register under the
// exclusive lock, searches run under the shared lock. Embedding happens outside it.
type retrievalEngine struct {
	embedder Embedder
	index    vectorstore.VectorIndex
	registry *Registry
	mu       sync.RWMutex
	now      func() time.Time
}

// NewEngine creates a retrieval engine over an embedder and a vector index.
// If the index already holds vectors the registry starts with that many holes.
func NewEngine(embedder Embedder, index vectorstore.VectorIndex) Engine {
	registry := NewRegistry()
	registry.Grow(index.Len())
	return &retrievalEngine{
		embedder: embedder,
		index:    index,
		registry: registry,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AddDocument ingests the chunk texts of one document.
func (e *retrievalEngine) AddDocument(ctx context.Context, filename string, chunks []string) (Document, error) {
	logger := contextutil.LoggerFromContext(ctx)

	doc := Document{
		DocumentID: uuid.NewString(),
		Filename:   filename,
		ChunkCount: len(chunks),
		Start:      -1,
		Chunks:     make([]Chunk, len(chunks)),
	}
	if len(chunks) == 0 {
		return doc, nil
	}

	createdAt := e.now()
	for i, text := range chunks {
		doc.Chunks[i] = Chunk{
			Text:       text,
			ChunkID:    i,
			Filename:   filename,
			DocumentID: doc.DocumentID,
			CreatedAt:  createdAt,
		}
	}

	start, err := e.insert(ctx, doc.Chunks)
	if err != nil {
		logger.ErrorContext(ctx, "failed to add document", "filename", filename, "chunks", len(chunks), "error", err)
		return Document{}, err
	}
	doc.Start = start

	logger.InfoContext(ctx, "document added",
		"document_id", doc.DocumentID,
		"filename", filename,
		"chunks", len(chunks),
		"start", start,
	)
	return doc, nil
}

// Restore ingests chunks that already carry their identity.
func (e *retrievalEngine) Restore(ctx context.Context, chunks []Chunk) (int, error) {
	if len(chunks) == 0 {
		return -1, nil
	}
	return e.insert(ctx, chunks)
}

// insert embeds chunks outside the lock, then appends and registers them atomically.
func (e *retrievalEngine) insert(ctx context.Context, chunks []Chunk) (int, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := e.embed(ctx, texts)
	if err != nil {
		return -1, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	start, err := e.index.Append(ctx, vectors)
	if err != nil {
		return -1, fmt.Errorf("%w: %w", ErrIndex, err)
	}

	placed := make([]int, 0, len(chunks))
	for i, c := range chunks {
		pos := start + i
		if !e.registry.Put(pos, c) {
			e.registry.Clear(placed...)
			return -1, fmt.Errorf("%w: position %d already registered", ErrIndex, pos)
		}
		placed = append(placed, pos)
	}
	return start, nil
}

// embed runs one batch through the embedder and checks count and dimension.
func (e *retrievalEngine) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrEmbedding, len(texts), len(vectors))
	}
	dim := e.index.Dimension()
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: embedding %d has size %d, expected %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return vectors, nil
}

// LoadRegistry registers chunks whose vectors are already in the index.
// Every position must be within the index and not yet registered; on error nothing is registered.
func (e *retrievalEngine) LoadRegistry(ctx context.Context, placements []Placement) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	size := e.index.Len()
	e.registry.Grow(size)

	placed := make([]int, 0, len(placements))
	for _, p := range placements {
		if p.Position < 0 || p.Position >= size {
			e.registry.Clear(placed...)
			return fmt.Errorf("position %d outside index of size %d", p.Position, size)
		}
		if !e.registry.Put(p.Position, p.Chunk) {
			e.registry.Clear(placed...)
			return fmt.Errorf("position %d already registered", p.Position)
		}
		placed = append(placed, p.Position)
	}

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "registry loaded", "chunks", len(placements), "index_size", size)
	return nil
}

// Search embeds the query and looks up its nearest neighbors.
// Positions without a registry entry are dropped, so fewer than topK results may come back.
func (e *retrievalEngine) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if topK < 1 {
		return nil, fmt.Errorf("top_k must be at least 1, got %d", topK)
	}

	e.mu.RLock()
	empty := e.index.Len() == 0
	e.mu.RUnlock()
	if empty {
		return []Result{}, nil
	}

	vectors, err := e.embed(ctx, []string{query})
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed query", "error", err)
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	k := min(topK, e.index.Len())
	hits, err := e.index.Search(ctx, vectors[0], k)
	if err != nil {
		logger.ErrorContext(ctx, "failed to search index", "k", k, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrIndex, err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		chunk, ok := e.registry.Get(hit.Position)
		if !ok {
			continue
		}
		results = append(results, Result{
			Chunk:    chunk,
			Position: hit.Position,
			Score:    hit.Distance,
		})
	}

	logger.DebugContext(ctx, "search completed", "k", k, "hits", len(hits), "results", len(results))
	return results, nil
}

// DeleteDocument removes the registry entries of a document.
func (e *retrievalEngine) DeleteDocument(ctx context.Context, documentID string) int {
	e.mu.Lock()
	removed := e.registry.RemoveDocument(documentID)
	e.mu.Unlock()

	if removed > 0 {
		contextutil.LoggerFromContext(ctx).InfoContext(ctx, "document removed from registry",
			"document_id", documentID,
			"chunks", removed,
		)
	}
	return removed
}

// Stats reports index and registry sizes.
func (e *retrievalEngine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		IndexSize:  e.index.Len(),
		LiveChunks: e.registry.Len(),
		Documents:  e.registry.Documents(),
	}
}
