package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_store.go -package=mocks rag-pipeline/internal/storage DocumentStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DocumentStore defines the interface for document metadata operations.
type DocumentStore interface {
	// Upsert inserts a document or replaces the record with the same ID.
	Upsert(ctx context.Context, doc *DocumentRecord) error
	// Get returns a document by ID. Returns ErrNotFound if not found.
	Get(ctx context.Context, id string) (*DocumentRecord, error)
	// List returns all documents, most recently uploaded first.
	List(ctx context.Context) ([]DocumentRecord, error)
	// Delete removes a document and its chunk rows. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) (bool, error)
	// Aggregate returns the document count and the sum of chunk counts.
	Aggregate(ctx context.Context) (Totals, error)
}

// DocumentRepo provides methods for document operations.
// It implements the DocumentStore interface.
type DocumentRepo struct {
	db *sql.DB
}

// NewDocumentRepo creates a new DocumentRepo.
func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Upsert inserts a document or replaces the record with the same ID.
// An empty Metadata is stored as an empty JSON object.
func (r *DocumentRepo) Upsert(ctx context.Context, doc *DocumentRecord) error {
	metadata := string(doc.Metadata)
	if metadata == "" {
		metadata = "{}"
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (doc_id, filename, upload_date, chunk_count, metadata)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			filename = excluded.filename,
			upload_date = excluded.upload_date,
			chunk_count = excluded.chunk_count,
			metadata = excluded.metadata`,
		doc.ID, doc.Filename, formatTime(doc.UploadDate), doc.ChunkCount, metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// Get returns a document by ID. Returns ErrNotFound if not found.
func (r *DocumentRepo) Get(ctx context.Context, id string) (*DocumentRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT doc_id, filename, upload_date, chunk_count, metadata FROM documents WHERE doc_id = ?",
		id,
	)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}
	return doc, nil
}

// List returns all documents ordered by upload date descending.
// Documents uploaded in the same instant come back newest insert first.
// Returns an empty slice if no documents exist (not an error).
func (r *DocumentRepo) List(ctx context.Context) ([]DocumentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT doc_id, filename, upload_date, chunk_count, metadata FROM documents ORDER BY upload_date DESC, rowid DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	docs := []DocumentRecord{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return docs, nil
}

// Delete removes a document. Its chunk rows go with it through the foreign key cascade.
func (r *DocumentRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE doc_id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// Aggregate returns the number of documents and the total chunk count.
func (r *DocumentRepo) Aggregate(ctx context.Context) (Totals, error) {
	var totals Totals
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(chunk_count), 0) FROM documents",
	).Scan(&totals.Documents, &totals.Chunks)
	if err != nil {
		return Totals{}, fmt.Errorf("failed to aggregate documents: %w", err)
	}
	return totals, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*DocumentRecord, error) {
	var (
		doc        DocumentRecord
		uploadDate string
		metadata   string
	)
	if err := row.Scan(&doc.ID, &doc.Filename, &uploadDate, &doc.ChunkCount, &metadata); err != nil {
		return nil, err
	}

	t, err := parseTime(uploadDate)
	if err != nil {
		return nil, fmt.Errorf("invalid upload_date %q: %w", uploadDate, err)
	}
	doc.UploadDate = t
	doc.Metadata = []byte(metadata)
	return &doc, nil
}
