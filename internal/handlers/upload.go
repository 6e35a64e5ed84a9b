package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"rag-pipeline/internal/contextutil"
	"rag-pipeline/internal/service"
)

const (
	// uploadField is the multipart field carrying the files.
	uploadField = "files"
	// bodySlack covers multipart boundaries and part headers on top of the file bytes.
	bodySlack = 1 << 20
)

// UploadHandler handles HTTP requests for document uploads.
type UploadHandler struct {
	documents    service.DocumentService
	maxFiles     int
	maxFileBytes int64
}

// NewUploadHandler creates a new UploadHandler. The request body is capped at
// maxFiles*maxFileBytes plus room for multipart framing.
func NewUploadHandler(documents service.DocumentService, limits service.Limits) *UploadHandler {
	return &UploadHandler{
		documents:    documents,
		maxFiles:     limits.MaxFiles,
		maxFileBytes: limits.MaxFileBytes,
	}
}

// ServeHTTP handles HTTP requests for document uploads.
//
// swagger:route POST /upload uploadDocuments
//
// # Upload documents
//
// Accepts one or more files in the multipart field `files`. Every file is
// validated before any is indexed.
//
// ---
// consumes:
// - multipart/form-data
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Documents were indexed
//	'400':
//	  description: Invalid upload (file count, size or chunk limit)
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'413':
//	  description: Request body too large
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'502':
//	  description: Embedding service unavailable
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(h.maxFiles)*h.maxFileBytes+bodySlack)
	files, err := h.readFiles(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			logger.WarnContext(ctx, "upload body too large", "limit", maxErr.Limit)
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		logger.WarnContext(ctx, "invalid multipart body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}

	resp, err := h.documents.Upload(ctx, files)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to process documents")
		return
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}

// readFiles streams the file parts of the body. Each file is read to at most
// one byte past the file limit, which is enough for the service to reject it.
// Reading stops at the first file over the count limit: the service rejects
// the batch on the count alone, so the rest of the body is never buffered.
func (h *UploadHandler) readFiles(r *http.Request) ([]service.UploadFile, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}

	var files []service.UploadFile
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return files, nil
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() != uploadField || part.FileName() == "" {
			continue
		}

		file := service.UploadFile{Filename: part.FileName()}
		if len(files) == h.maxFiles {
			return append(files, file), nil
		}
		file.Content, err = io.ReadAll(io.LimitReader(part, h.maxFileBytes+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", file.Filename, err)
		}
		files = append(files, file)
	}
}
