package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"rag-pipeline/internal/contextutil"
	"rag-pipeline/internal/service"
)

// MetadataHandler lists stored documents.
type MetadataHandler struct {
	documents service.DocumentService
}

// NewMetadataHandler creates a new MetadataHandler.
func NewMetadataHandler(documents service.DocumentService) *MetadataHandler {
	return &MetadataHandler{documents: documents}
}

// ServeHTTP handles HTTP requests for document metadata.
//
// swagger:route GET /metadata listDocuments
//
// # List documents
//
// Returns every stored document, newest first, with aggregate counts and index state.
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Document metadata
//	'500':
//	  description: Internal server error
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *MetadataHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	resp, err := h.documents.Metadata(ctx)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to load metadata")
		return
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}

// DocumentHandler returns one stored document.
type DocumentHandler struct {
	documents service.DocumentService
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(documents service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// ServeHTTP handles HTTP requests for a single document.
//
// swagger:route GET /documents/{id} getDocument
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Stored document
//	'404':
//	  description: Unknown document id
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *DocumentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	resp, err := h.documents.Document(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to load document")
		return
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}

// DeleteHandler removes a document.
type DeleteHandler struct {
	documents service.DocumentService
}

// NewDeleteHandler creates a new DeleteHandler.
func NewDeleteHandler(documents service.DocumentService) *DeleteHandler {
	return &DeleteHandler{documents: documents}
}

// ServeHTTP handles HTTP requests for document deletion.
// Deleting an unknown id succeeds with deleted=false.
//
// swagger:route DELETE /documents/{id} deleteDocument
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Deletion result
//	'400':
//	  description: Missing document id
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *DeleteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodDelete {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	resp, err := h.documents.Delete(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to delete document")
		return
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}
