package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"rag-pipeline/internal/handlers"
	"rag-pipeline/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Documents service.DocumentService
	Limits    service.Limits
	// HealthChecks are pinged by GET /health, keyed by the name reported in the response.
	HealthChecks map[string]handlers.Pinger
	// APIDocs is the swagger document served at /docs. The root redirects there when set.
	APIDocs []byte
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(CORS)

	r.Method(http.MethodPost, "/upload", handlers.NewUploadHandler(deps.Documents, deps.Limits))
	r.Method(http.MethodPost, "/query", handlers.NewQueryHandler(deps.Documents))
	r.Method(http.MethodGet, "/metadata", handlers.NewMetadataHandler(deps.Documents))
	r.Method(http.MethodGet, "/documents/{id}", handlers.NewDocumentHandler(deps.Documents))
	r.Method(http.MethodDelete, "/documents/{id}", handlers.NewDeleteHandler(deps.Documents))
	r.Method(http.MethodGet, "/health", handlers.NewHealthHandler(deps.HealthChecks))

	root := "/metadata"
	if len(deps.APIDocs) > 0 {
		root = "/docs"
		r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(deps.APIDocs)
		})
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, root, http.StatusTemporaryRedirect)
	})

	return r
}
