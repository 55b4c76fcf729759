package http

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"docrag/internal/handlers"
	"docrag/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	IngestService service.IngestService
	VectorStore   handlers.CollectionChecker
	DB            handlers.Pinger
	Collection    string
	// PassContext and Passes bound passes triggered through the API. Both
	// are optional.
	PassContext context.Context
	Passes      *sync.WaitGroup
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	// Add chi middleware
	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	// Add CORS middleware
	r.Use(CORS)

	healthHandler := handlers.NewHealthHandler(deps.VectorStore, deps.DB, deps.Collection)
	var ingestOpts []handlers.IngestHandlerOption
	if deps.PassContext != nil {
		ingestOpts = append(ingestOpts, handlers.WithPassContext(deps.PassContext))
	}
	if deps.Passes != nil {
		ingestOpts = append(ingestOpts, handlers.WithPassGroup(deps.Passes))
	}
	ingestHandler := handlers.NewIngestHandler(deps.IngestService, ingestOpts...)
	statsHandler := handlers.NewStatsHandler(deps.IngestService)

	// Register API routes
	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)
		r.Method(http.MethodPost, "/ingest", ingestHandler)
		r.Method(http.MethodGet, "/stats", statsHandler)
	})

	return r
}
