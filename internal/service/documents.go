package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_service.go -package=mocks rag-pipeline/internal/service DocumentService

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"rag-pipeline/internal/contextutil"
	"rag-pipeline/internal/extract"
	"rag-pipeline/internal/indexer"
	"rag-pipeline/internal/llm"
	"rag-pipeline/internal/rag"
	"rag-pipeline/internal/storage"
)

// NoDocumentsAnswer is the answer returned when a query retrieves nothing.
const NoDocumentsAnswer = "No relevant documents found."

// Extractor turns uploaded bytes into text.
// This interface is defined from the service layer's perspective (consumer-first).
type Extractor interface {
	Extract(ctx context.Context, content []byte, filename string) extract.Result
}

// CacheReporter exposes the counters of an embedding cache.
type CacheReporter interface {
	Stats() llm.CacheStats
}

// Limits bounds a single upload and query.
type Limits struct {
	MaxFiles          int
	MaxFileBytes      int64
	MaxDocumentChunks int
	DefaultTopK       int
}

// DefaultLimits returns the limits of the public API: 20 files of 10MB, 1000 chunks each, top 5.
func DefaultLimits() Limits {
	return Limits{
		MaxFiles:          20,
		MaxFileBytes:      10_000_000,
		MaxDocumentChunks: 1000,
		DefaultTopK:       5,
	}
}

// UploadFile is one file of an upload request.
type UploadFile struct {
	Filename string
	Content  []byte
}

// UploadedDocument describes one ingested file.
type UploadedDocument struct {
	DocumentID string `json:"doc_id"`
	Filename   string `json:"filename"`
	Chunks     int    `json:"chunks"`
	Format     string `json:"format"`
}

// UploadResult is the outcome of an upload.
type UploadResult struct {
	Message     string             `json:"message"`
	Documents   []UploadedDocument `json:"documents"`
	TotalChunks int                `json:"total_chunks"`
}

// QueryRequest asks a question against the indexed documents.
type QueryRequest struct {
	Query string
	// TopK is the number of chunks to retrieve. Nil means Limits.DefaultTopK.
	TopK  *int
	Debug bool
}

// RetrievedChunk is a ranked search hit, returned in debug mode.
type RetrievedChunk struct {
	Rank       int     `json:"rank"`
	DocumentID string  `json:"doc_id"`
	Filename   string  `json:"filename"`
	ChunkID    int     `json:"chunk_id"`
	Position   int     `json:"position"`
	Score      float32 `json:"score"`
	Text       string  `json:"text"`
}

// QueryResult is the answer to a query.
type QueryResult struct {
	Query      string           `json:"query"`
	Answer     string           `json:"answer"`
	Sources    []string         `json:"sources"`
	ChunksUsed int              `json:"chunks_used"`
	Chunks     []RetrievedChunk `json:"chunks,omitempty"`
}

// DocumentInfo is a stored document as listed by Metadata.
type DocumentInfo struct {
	DocumentID string          `json:"doc_id"`
	Filename   string          `json:"filename"`
	UploadDate string          `json:"upload_date"`
	ChunkCount int             `json:"chunk_count"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// MetadataResult summarizes the stored documents and the index.
type MetadataResult struct {
	TotalDocuments int            `json:"total_documents"`
	TotalChunks    int            `json:"total_chunks"`
	Documents      []DocumentInfo `json:"documents"`
	Index          rag.Stats      `json:"index"`
	IndexVersion   string         `json:"index_version"`
	// EmbeddingCache is set when embeddings go through a cache.
	EmbeddingCache *llm.CacheStats `json:"embedding_cache,omitempty"`
}

// DeleteResult is the outcome of a delete. Unknown ids yield Deleted=false, not an error.
type DeleteResult struct {
	DocumentID    string `json:"doc_id"`
	Deleted       bool   `json:"deleted"`
	ChunksRemoved int    `json:"chunks_removed"`
}

// DocumentService ingests, queries and deletes documents.
type DocumentService interface {
	// Upload validates every file, then ingests them one document at a time.
	Upload(ctx context.Context, files []UploadFile) (UploadResult, error)
	// Query retrieves the closest chunks and synthesizes an extractive answer.
	Query(ctx context.Context, req QueryRequest) (QueryResult, error)
	// Metadata lists stored documents with aggregate counts and index state.
	Metadata(ctx context.Context) (MetadataResult, error)
	// Document returns one stored document. Unknown ids yield ErrNotFound.
	Document(ctx context.Context, documentID string) (DocumentInfo, error)
	// Delete removes a document from search results and storage.
	Delete(ctx context.Context, documentID string) (DeleteResult, error)
	// Rehydrate rebuilds the engine state from stored chunks at startup.
	Rehydrate(ctx context.Context) error
}

// DocumentServiceConfig wires the collaborators of a DocumentService.
type DocumentServiceConfig struct {
	Engine       rag.Engine
	Documents    storage.DocumentStore
	Chunks       storage.ChunkStore
	Extractor    Extractor
	Chunker      indexer.Chunker
	Limits       Limits
	IndexVersion string
	// Cache is optional.
	Cache CacheReporter
}

// documentService implements DocumentService.
type documentService struct {
	engine       rag.Engine
	documents    storage.DocumentStore
	chunks       storage.ChunkStore
	extractor    Extractor
	chunker      indexer.Chunker
	limits       Limits
	indexVersion string
	cache        CacheReporter
	now          func() time.Time
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(cfg DocumentServiceConfig) DocumentService {
	return &documentService{
		engine:       cfg.Engine,
		documents:    cfg.Documents,
		chunks:       cfg.Chunks,
		extractor:    cfg.Extractor,
		chunker:      cfg.Chunker,
		limits:       cfg.Limits,
		indexVersion: cfg.IndexVersion,
		cache:        cfg.Cache,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// preparedDocument is a validated file, extracted and chunked but not yet ingested.
type preparedDocument struct {
	filename string
	size     int64
	result   extract.Result
	chunks   []string
}

// Upload validates the whole request before touching any state.
func (s *documentService) Upload(ctx context.Context, files []UploadFile) (UploadResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if len(files) == 0 {
		return UploadResult{}, invalid("files", "At least one file is required")
	}
	if len(files) > s.limits.MaxFiles {
		logger.WarnContext(ctx, "too many files in upload", "files", len(files), "max", s.limits.MaxFiles)
		return UploadResult{}, invalid("files", "Maximum %d documents allowed", s.limits.MaxFiles)
	}
	for _, f := range files {
		if int64(len(f.Content)) > s.limits.MaxFileBytes {
			logger.WarnContext(ctx, "file too large", "filename", f.Filename, "bytes", len(f.Content))
			return UploadResult{}, invalid("files", "File %s too large", f.Filename)
		}
	}

	prepared := make([]preparedDocument, 0, len(files))
	for _, f := range files {
		res := s.extractor.Extract(ctx, f.Content, f.Filename)
		chunks := s.chunker.Chunk(res.Text)
		if len(chunks) > s.limits.MaxDocumentChunks {
			logger.WarnContext(ctx, "document exceeds chunk limit", "filename", f.Filename, "chunks", len(chunks))
			return UploadResult{}, invalid("files", "Document %s exceeds %d chunk limit", f.Filename, s.limits.MaxDocumentChunks)
		}
		prepared = append(prepared, preparedDocument{
			filename: f.Filename,
			size:     int64(len(f.Content)),
			result:   res,
			chunks:   chunks,
		})
	}

	result := UploadResult{Documents: make([]UploadedDocument, 0, len(prepared))}
	for _, p := range prepared {
		uploaded, err := s.ingest(ctx, p)
		if err != nil {
			return UploadResult{}, err
		}
		result.Documents = append(result.Documents, uploaded)
		result.TotalChunks += uploaded.Chunks
	}
	result.Message = fmt.Sprintf("Successfully processed %d documents", len(result.Documents))

	logger.InfoContext(ctx, "upload processed", "documents", len(result.Documents), "total_chunks", result.TotalChunks)
	return result, nil
}

// ingest adds one document to the engine and persists it.
// A persistence failure unregisters the document again, so it is all-or-nothing.
func (s *documentService) ingest(ctx context.Context, p preparedDocument) (UploadedDocument, error) {
	logger := contextutil.LoggerFromContext(ctx)

	doc, err := s.engine.AddDocument(ctx, p.filename, p.chunks)
	if err != nil {
		return UploadedDocument{}, s.engineError(err, fmt.Sprintf("failed to index %s", p.filename))
	}

	meta := storage.DocumentMetadata{
		Format:            p.result.Format,
		SizeBytes:         p.size,
		ExtractorFallback: p.result.Fallback,
		Words:             len(strings.Fields(p.result.Text)),
	}
	if len(p.chunks) > 0 {
		stats := indexer.ComputeChunkStats(p.chunks)
		meta.ChunkWords = &stats
	}
	rawMeta, err := json.Marshal(meta)
	if err != nil {
		s.engine.DeleteDocument(ctx, doc.DocumentID)
		return UploadedDocument{}, WrapError(err, "failed to encode document metadata")
	}

	record := &storage.DocumentRecord{
		ID:         doc.DocumentID,
		Filename:   p.filename,
		UploadDate: s.now(),
		ChunkCount: doc.ChunkCount,
		Metadata:   rawMeta,
	}
	if err := s.documents.Upsert(ctx, record); err != nil {
		logger.ErrorContext(ctx, "failed to store document, rolling back", "document_id", doc.DocumentID, "error", err)
		s.engine.DeleteDocument(ctx, doc.DocumentID)
		return UploadedDocument{}, WrapError(err, "failed to store document metadata")
	}

	rows := make([]storage.ChunkRecord, len(doc.Chunks))
	for i, c := range doc.Chunks {
		rows[i] = storage.ChunkRecord{
			DocumentID: c.DocumentID,
			ChunkIndex: c.ChunkID,
			Position:   doc.Start + i,
			Filename:   c.Filename,
			Text:       c.Text,
			CreatedAt:  c.CreatedAt,
		}
	}
	if err := s.chunks.InsertBatch(ctx, rows); err != nil {
		logger.ErrorContext(ctx, "failed to store chunks, rolling back", "document_id", doc.DocumentID, "error", err)
		s.engine.DeleteDocument(ctx, doc.DocumentID)
		if _, delErr := s.documents.Delete(ctx, doc.DocumentID); delErr != nil {
			logger.ErrorContext(ctx, "failed to roll back document record", "document_id", doc.DocumentID, "error", delErr)
		}
		return UploadedDocument{}, WrapError(err, "failed to store chunks")
	}

	return UploadedDocument{
		DocumentID: doc.DocumentID,
		Filename:   p.filename,
		Chunks:     doc.ChunkCount,
		Format:     p.result.Format,
	}, nil
}

// engineError classifies engine failures: embedding problems come from the
// embedding provider, everything else is internal.
func (s *documentService) engineError(err error, msg string) error {
	if errors.Is(err, rag.ErrEmbedding) || errors.Is(err, rag.ErrDimensionMismatch) {
		return external(err, msg)
	}
	return WrapError(err, msg)
}

// Query answers a question from the closest chunks.
func (s *documentService) Query(ctx context.Context, req QueryRequest) (QueryResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(req.Query) == "" {
		return QueryResult{}, invalid("query", "cannot be empty")
	}
	topK := s.limits.DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	if topK < 1 {
		return QueryResult{}, invalid("top_k", "must be at least 1")
	}

	results, err := s.engine.Search(ctx, req.Query, topK)
	if err != nil {
		logger.ErrorContext(ctx, "search failed", "error", err)
		return QueryResult{}, s.engineError(err, "failed to search documents")
	}

	if len(results) == 0 {
		logger.InfoContext(ctx, "query matched no chunks", "top_k", topK)
		return QueryResult{
			Query:      req.Query,
			Answer:     NoDocumentsAnswer,
			Sources:    []string{},
			ChunksUsed: 0,
		}, nil
	}

	chunks := make([]rag.Chunk, len(results))
	sources := []string{}
	seen := make(map[string]struct{})
	for i, r := range results {
		chunks[i] = r.Chunk
		if _, ok := seen[r.Chunk.Filename]; !ok {
			seen[r.Chunk.Filename] = struct{}{}
			sources = append(sources, r.Chunk.Filename)
		}
	}

	out := QueryResult{
		Query:      req.Query,
		Answer:     rag.Synthesize(req.Query, chunks),
		Sources:    sources,
		ChunksUsed: len(results),
	}

	if req.Debug {
		out.Chunks = make([]RetrievedChunk, len(results))
		for i, r := range results {
			out.Chunks[i] = RetrievedChunk{
				Rank:       i + 1,
				DocumentID: r.Chunk.DocumentID,
				Filename:   r.Chunk.Filename,
				ChunkID:    r.Chunk.ChunkID,
				Position:   r.Position,
				Score:      r.Score,
				Text:       r.Chunk.Text,
			}
		}
	}

	logger.InfoContext(ctx, "query answered", "top_k", topK, "chunks_used", out.ChunksUsed, "sources", len(sources))
	return out, nil
}

// Metadata lists stored documents.
func (s *documentService) Metadata(ctx context.Context) (MetadataResult, error) {
	totals, err := s.documents.Aggregate(ctx)
	if err != nil {
		return MetadataResult{}, WrapError(err, "failed to aggregate documents")
	}

	records, err := s.documents.List(ctx)
	if err != nil {
		return MetadataResult{}, WrapError(err, "failed to list documents")
	}

	docs := make([]DocumentInfo, len(records))
	for i := range records {
		docs[i] = documentInfo(&records[i])
	}

	result := MetadataResult{
		TotalDocuments: totals.Documents,
		TotalChunks:    totals.Chunks,
		Documents:      docs,
		Index:          s.engine.Stats(),
		IndexVersion:   s.indexVersion,
	}
	if s.cache != nil {
		stats := s.cache.Stats()
		result.EmbeddingCache = &stats
	}
	return result, nil
}

// Document returns the stored record of one document.
func (s *documentService) Document(ctx context.Context, documentID string) (DocumentInfo, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return DocumentInfo{}, invalid("doc_id", "cannot be empty")
	}

	record, err := s.documents.Get(ctx, documentID)
	if errors.Is(err, storage.ErrNotFound) {
		return DocumentInfo{}, fmt.Errorf("document %s: %w", documentID, ErrNotFound)
	}
	if err != nil {
		return DocumentInfo{}, WrapError(err, "failed to get document")
	}
	return documentInfo(record), nil
}

func documentInfo(r *storage.DocumentRecord) DocumentInfo {
	return DocumentInfo{
		DocumentID: r.ID,
		Filename:   r.Filename,
		UploadDate: r.UploadDate.UTC().Format(storage.TimeLayout),
		ChunkCount: r.ChunkCount,
		Metadata:   r.Metadata,
	}
}

// Delete unregisters a document and removes its stored rows.
// The document's vectors stay in the index; they are no longer reachable.
func (s *documentService) Delete(ctx context.Context, documentID string) (DeleteResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return DeleteResult{}, invalid("doc_id", "cannot be empty")
	}

	removed := s.engine.DeleteDocument(ctx, documentID)

	if err := s.chunks.DeleteByDocument(ctx, documentID); err != nil {
		return DeleteResult{}, WrapError(err, "failed to delete chunks")
	}
	deleted, err := s.documents.Delete(ctx, documentID)
	if err != nil {
		return DeleteResult{}, WrapError(err, "failed to delete document")
	}

	logger.InfoContext(ctx, "document deleted", "document_id", documentID, "chunks_removed", removed, "found", deleted || removed > 0)
	return DeleteResult{
		DocumentID:    documentID,
		Deleted:       deleted || removed > 0,
		ChunksRemoved: removed,
	}, nil
}

// Rehydrate restores the registry from stored chunk rows.
//
// An empty index (in-memory backend, or a fresh collection) is rebuilt by
// re-embedding every document and recording the new positions. A non-empty
// index already holds the vectors, so only the registry is loaded.
func (s *documentService) Rehydrate(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	records, err := s.chunks.ListAll(ctx)
	if err != nil {
		return WrapError(err, "failed to load stored chunks")
	}
	if len(records) == 0 {
		logger.InfoContext(ctx, "no stored chunks to rehydrate")
		return nil
	}

	stats := s.engine.Stats()
	if stats.IndexSize == 0 {
		return s.reembed(ctx, records)
	}

	placements := make([]rag.Placement, 0, len(records))
	skipped := 0
	for _, r := range records {
		if r.Position >= stats.IndexSize {
			skipped++
			continue
		}
		placements = append(placements, rag.Placement{Position: r.Position, Chunk: chunkFromRecord(r)})
	}
	if skipped > 0 {
		logger.WarnContext(ctx, "stored chunks point past the end of the index", "skipped", skipped, "index_size", stats.IndexSize)
	}

	if err := s.engine.LoadRegistry(ctx, placements); err != nil {
		return WrapError(err, "failed to load registry")
	}
	logger.InfoContext(ctx, "registry rehydrated", "chunks", len(placements))
	return nil
}

func (s *documentService) reembed(ctx context.Context, records []storage.ChunkRecord) error {
	logger := contextutil.LoggerFromContext(ctx)

	// Group by document, keeping first-seen order so relative positions survive.
	var order []string
	byDoc := make(map[string][]rag.Chunk)
	for _, r := range records {
		if _, ok := byDoc[r.DocumentID]; !ok {
			order = append(order, r.DocumentID)
		}
		byDoc[r.DocumentID] = append(byDoc[r.DocumentID], chunkFromRecord(r))
	}

	for _, id := range order {
		start, err := s.engine.Restore(ctx, byDoc[id])
		if err != nil {
			return s.engineError(err, fmt.Sprintf("failed to restore document %s", id))
		}
		if err := s.chunks.ReplacePositions(ctx, id, start); err != nil {
			return WrapError(err, "failed to update chunk positions")
		}
	}

	logger.InfoContext(ctx, "index rebuilt from stored chunks", "documents", len(order), "chunks", len(records))
	return nil
}

func chunkFromRecord(r storage.ChunkRecord) rag.Chunk {
	return rag.Chunk{
		Text:       r.Text,
		ChunkID:    r.ChunkIndex,
		Filename:   r.Filename,
		DocumentID: r.DocumentID,
		CreatedAt:  r.CreatedAt,
	}
}
