package rag

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrEmbedding is returned when the embedding provider fails or returns an unusable batch.
	ErrEmbedding = errors.New("embedding failed")
	// ErrDimensionMismatch is returned when embeddings do not match the index dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrIndex is returned when the vector index rejects an operation.
	ErrIndex = errors.New("vector index operation failed")
)

// Embedder maps a batch of texts to fixed-dimension vectors, preserving order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunk is one retrievable word window of a document. Chunks are immutable once created.
type Chunk struct {
	// Text is the chunk text.
	Text string `json:"text"`
	// ChunkID is the 0-based index of the chunk within its document.
	ChunkID int `json:"chunk_id"`
	// Filename is the name of the uploaded file the chunk came from.
	Filename string `json:"filename"`
	// DocumentID is the id of the owning document.
	DocumentID string `json:"document_id"`
	// CreatedAt is when the chunk was ingested.
	CreatedAt time.Time `json:"created_at"`
}

// Document describes an ingested document.
type Document struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
	// Start is the index position of chunk 0, or -1 for a document without chunks.
	// Chunk i occupies position Start+i.
	Start int `json:"-"`
	// Chunks are the registered chunks in chunk id order.
	Chunks []Chunk `json:"-"`
}

// Result is a single search hit.
type Result struct {
	Chunk Chunk `json:"chunk"`
	// Position is the vector index slot of the chunk.
	Position int `json:"position"`
	// Score is the raw squared Euclidean distance; lower is more relevant.
	Score float32 `json:"score"`
}

// Placement binds a stored chunk to its known index position.
type Placement struct {
	Position int
	Chunk    Chunk
}

// Stats describes the engine state.
type Stats struct {
	// IndexSize is the number of vectors ever appended, including unreachable ones.
	IndexSize int `json:"index_size"`
	// LiveChunks is the number of registry entries.
	LiveChunks int `json:"live_chunks"`
	// Documents is the number of distinct documents with at least one live chunk.
	Documents int `json:"documents"`
}
