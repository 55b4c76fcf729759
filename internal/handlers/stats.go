package handlers

import (
	"net/http"
	"time"

	"docrag/internal/contextutil"
	"docrag/internal/indexer"
	"docrag/internal/service"
)

// StatsHandler reports chunk store coverage and the latest pass of each source.
type StatsHandler struct {
	ingestService service.IngestService
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(ingestService service.IngestService) *StatsHandler {
	return &StatsHandler{ingestService: ingestService}
}

// PassSummary is a PassResult as reported over HTTP.
type PassSummary struct {
	SourceID       string   `json:"source_id"`
	NoOp           bool     `json:"no_op"`
	Added          int      `json:"added"`
	Updated        int      `json:"updated"`
	Deleted        int      `json:"deleted"`
	ChunksWritten  int      `json:"chunks_written"`
	ChunksEmbedded int      `json:"chunks_embedded"`
	ChunksRetried  int      `json:"chunks_retried"`
	Errors         []string `json:"errors,omitempty"`
	DurationMS     int64    `json:"duration_ms"`
}

// StatsResponse represents the stats endpoint payload.
type StatsResponse struct {
	Sources    []service.SourceInfo   `json:"sources"`
	Coverage   *indexer.CoverageStats `json:"coverage"`
	LastPasses []PassSummary          `json:"last_passes"`
}

// ServeHTTP handles GET /api/stats.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(ctx, w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	coverage, err := h.ingestService.Stats(ctx)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to compute stats")
		return
	}

	last := h.ingestService.LastResults()
	passes := make([]PassSummary, len(last))
	for i, res := range last {
		passes[i] = PassSummary{
			SourceID:       res.SourceID,
			NoOp:           res.NoOp,
			Added:          res.Added,
			Updated:        res.Updated,
			Deleted:        res.Deleted,
			ChunksWritten:  res.ChunksWritten,
			ChunksEmbedded: res.ChunksEmbedded,
			ChunksRetried:  res.ChunksRetried,
			Errors:         res.ErrorMessages(),
			DurationMS:     res.Duration.Round(time.Millisecond).Milliseconds(),
		}
	}

	writeJSON(ctx, w, http.StatusOK, StatsResponse{
		Sources:    h.ingestService.Sources(),
		Coverage:   coverage,
		LastPasses: passes,
	})
}
