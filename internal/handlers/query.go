package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"rag-pipeline/internal/contextutil"
	"rag-pipeline/internal/service"
)

// QueryHandler handles HTTP requests for questions against the indexed documents.
type QueryHandler struct {
	documents service.DocumentService
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(documents service.DocumentService) *QueryHandler {
	return &QueryHandler{documents: documents}
}

// QueryRequest represents the HTTP request payload for queries.
//
// swagger:model QueryRequest
type QueryRequest struct {
	Query string `json:"query"`
	// TopK defaults to 5 when omitted.
	TopK  *int `json:"top_k,omitempty"`
	Debug bool `json:"debug,omitempty"`
}

// ServeHTTP handles HTTP requests for queries.
//
// swagger:route POST /query queryDocuments
//
// # Query documents
//
// Retrieves the chunks closest to the query and builds an extractive answer.
// Use `debug=true` (body field or query parameter) to include the ranked chunks.
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Answer with its sources
//	'400':
//	  description: Empty query or invalid top_k
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'502':
//	  description: Embedding service unavailable
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	debug := req.Debug
	if debugParam := r.URL.Query().Get("debug"); debugParam != "" {
		debug = strings.ToLower(debugParam) == "true" || debugParam == "1"
	}

	resp, err := h.documents.Query(ctx, service.QueryRequest{
		Query: req.Query,
		TopK:  req.TopK,
		Debug: debug,
	})
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to process query")
		return
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}
