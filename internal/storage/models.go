package storage

import (
	"encoding/json"
	"time"

	"rag-pipeline/internal/indexer"
)

// DocumentRecord is a row of the documents table.
type DocumentRecord struct {
	ID         string          // UUID generated at ingestion
	Filename   string          // Original upload filename
	UploadDate time.Time       // Stored as ISO-8601 UTC
	ChunkCount int             // Number of chunks produced at ingestion
	Metadata   json.RawMessage // Serialized DocumentMetadata or any JSON object
}

// DocumentMetadata is the structured blob stored with each document.
type DocumentMetadata struct {
	Format            string              `json:"format"`
	SizeBytes         int64               `json:"size_bytes"`
	ExtractorFallback bool                `json:"extractor_fallback"`
	Words             int                 `json:"words"`
	ChunkWords        *indexer.ChunkStats `json:"chunk_words,omitempty"`
}

// ChunkRecord is a row of the chunks table.
type ChunkRecord struct {
	DocumentID string    // Owning document
	ChunkIndex int       // Index within the document (starts at 0)
	Position   int       // Vector index position
	Filename   string    // Denormalized from the document
	Text       string    // Chunk text content
	CreatedAt  time.Time // Ingestion time
}

// Totals aggregates the documents table.
type Totals struct {
	Documents int `json:"total_documents"`
	Chunks    int `json:"total_chunks"`
}
