package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chunk_store.go -package=mocks rag-pipeline/internal/storage ChunkStore

import (
	"context"
	"database/sql"
	"fmt"
)

// ChunkStore defines the interface for chunk storage operations.
// Chunk rows let the in-memory registry and a volatile index be rebuilt after a restart.
type ChunkStore interface {
	// InsertBatch inserts all chunks in a single transaction.
	InsertBatch(ctx context.Context, chunks []ChunkRecord) error
	// ListAll returns every chunk ordered by position.
	ListAll(ctx context.Context) ([]ChunkRecord, error)
	// DeleteByDocument deletes all chunks for a given document ID.
	DeleteByDocument(ctx context.Context, documentID string) error
	// ReplacePositions moves a document's chunks to start, start+1, ... in chunk_index order.
	ReplacePositions(ctx context.Context, documentID string, start int) error
}

// ChunkRepo provides methods for chunk operations.
// It implements the ChunkStore interface.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// InsertBatch inserts chunks atomically: either every row is written or none.
// The owning document row must exist.
func (r *ChunkRepo) InsertBatch(ctx context.Context, chunks []ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (document_id, chunk_index, position, filename, text, created_at) VALUES (?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.DocumentID, c.ChunkIndex, c.Position, c.Filename, c.Text, formatTime(c.CreatedAt)); err != nil {
			return fmt.Errorf("failed to insert chunk %d of %s: %w", c.ChunkIndex, c.DocumentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

// ListAll returns every chunk ordered by position.
// Returns an empty slice if no chunks exist (not an error).
func (r *ChunkRepo) ListAll(ctx context.Context) ([]ChunkRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT document_id, chunk_index, position, filename, text, created_at FROM chunks ORDER BY position, document_id, chunk_index",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	chunks := []ChunkRecord{}
	for rows.Next() {
		var (
			c         ChunkRecord
			createdAt string
		)
		if err := rows.Scan(&c.DocumentID, &c.ChunkIndex, &c.Position, &c.Filename, &c.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
		}
		c.CreatedAt = t
		chunks = append(chunks, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return chunks, nil
}

// DeleteByDocument deletes all chunks for a given document ID.
func (r *ChunkRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks by document: %w", err)
	}
	return nil
}

// ReplacePositions reassigns positions after the document was re-embedded into a fresh index.
func (r *ChunkRepo) ReplacePositions(ctx context.Context, documentID string, start int) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE chunks SET position = ? + chunk_index WHERE document_id = ?",
		start, documentID,
	)
	if err != nil {
		return fmt.Errorf("failed to update chunk positions: %w", err)
	}
	return nil
}
