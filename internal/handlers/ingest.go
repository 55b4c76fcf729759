package handlers

import (
	"context"
	"net/http"
	"sync"

	"docrag/internal/contextutil"
	"docrag/internal/service"
)

// IngestHandler handles HTTP requests for triggering ingestion passes.
type IngestHandler struct {
	ingestService service.IngestService
	baseCtx       context.Context
	passes        *sync.WaitGroup
}

// IngestHandlerOption configures an IngestHandler.
type IngestHandlerOption func(*IngestHandler)

// WithPassContext sets the context triggered passes run under. Cancelling
// it cancels passes that are still running. Defaults to context.Background.
func WithPassContext(ctx context.Context) IngestHandlerOption {
	return func(h *IngestHandler) {
		h.baseCtx = ctx
	}
}

// WithPassGroup registers every triggered pass in wg so the caller can wait
// for them before releasing the store.
func WithPassGroup(wg *sync.WaitGroup) IngestHandlerOption {
	return func(h *IngestHandler) {
		h.passes = wg
	}
}

// NewIngestHandler creates a new IngestHandler.
func NewIngestHandler(ingestService service.IngestService, opts ...IngestHandlerOption) *IngestHandler {
	h := &IngestHandler{
		ingestService: ingestService,
		baseCtx:       context.Background(),
		passes:        &sync.WaitGroup{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Wait blocks until every pass triggered through h has returned.
func (h *IngestHandler) Wait() {
	h.passes.Wait()
}

// IngestResponse represents the response from the ingest endpoint.
type IngestResponse struct {
	Message string   `json:"message"`
	Status  string   `json:"status"`
	Sources []string `json:"sources"`
}

// ServeHTTP triggers an ingestion pass of every source, or of the source
// named by the "source" query parameter, and returns before it completes.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(ctx, w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	sourceID := r.URL.Query().Get("source")
	var targets []string
	for _, info := range h.ingestService.Sources() {
		if sourceID == "" || info.ID == sourceID {
			targets = append(targets, info.ID)
		}
	}
	if sourceID != "" && len(targets) == 0 {
		logger.WarnContext(ctx, "unknown source", "source_id", sourceID)
		writeError(ctx, w, http.StatusNotFound, "Unknown source")
		return
	}

	logger.InfoContext(ctx, "ingestion triggered via API", "sources", targets)

	// The pass outlives the request, so it runs under the handler's context
	passCtx := contextutil.WithLogger(h.baseCtx, logger)
	h.passes.Add(1)
	go func() {
		defer h.passes.Done()
		var err error
		if sourceID != "" {
			_, err = h.ingestService.IngestSource(passCtx, sourceID)
		} else {
			_, err = h.ingestService.IngestAll(passCtx)
		}
		if err != nil {
			logger.ErrorContext(passCtx, "triggered ingestion failed", "error", err)
		}
	}()

	writeJSON(ctx, w, http.StatusAccepted, IngestResponse{
		Message: "Ingestion started. Check server logs or /api/stats for progress.",
		Status:  "accepted",
		Sources: targets,
	})
}
