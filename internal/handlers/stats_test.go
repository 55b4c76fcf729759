package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"docrag/internal/errs"
	"docrag/internal/indexer"
	"docrag/internal/service"
	"docrag/internal/service/mocks"
)

func TestStatsHandler_ServeHTTP(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockIngestService(ctrl)

	svc.EXPECT().Stats(gomock.Any()).Return(&indexer.CoverageStats{Documents: 3, Chunks: 7, ChunksPending: 2}, nil)
	svc.EXPECT().LastResults().Return([]*indexer.PassResult{{
		SourceID: "pdf:/docs",
		Added:    2,
		Errors: []*errs.DocumentError{
			errs.NewDocumentError(errs.ErrExtraction, "pdf:/docs", "broken.pdf", errors.New("bad xref")),
		},
		Duration: 1500 * time.Millisecond,
	}})
	svc.EXPECT().Sources().Return(testSources)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()
	NewStatsHandler(svc).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("ServeHTTP() status = %d, want 200", w.Code)
	}

	var resp StatsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Coverage == nil || resp.Coverage.Documents != 3 || resp.Coverage.ChunksPending != 2 {
		t.Errorf("Coverage = %+v", resp.Coverage)
	}
	if len(resp.Sources) != 2 {
		t.Errorf("Sources = %v, want 2", resp.Sources)
	}
	if len(resp.LastPasses) != 1 {
		t.Fatalf("LastPasses = %v, want 1", resp.LastPasses)
	}
	pass := resp.LastPasses[0]
	if pass.Added != 2 || pass.DurationMS != 1500 {
		t.Errorf("LastPasses[0] = %+v", pass)
	}
	if len(pass.Errors) != 1 {
		t.Errorf("LastPasses[0].Errors = %v, want 1", pass.Errors)
	}
}

func TestStatsHandler_ServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "unexpected", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
		{name: "store unavailable", err: fmt.Errorf("compute coverage stats: %w", service.ErrStoreUnavailable), wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			svc := mocks.NewMockIngestService(ctrl)
			svc.EXPECT().Stats(gomock.Any()).Return(nil, tt.err)

			req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
			w := httptest.NewRecorder()
			NewStatsHandler(svc).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("ServeHTTP() status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestStatsHandler_MethodNotAllowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockIngestService(ctrl)

	req := httptest.NewRequest(http.MethodPost, "/api/stats", nil)
	w := httptest.NewRecorder()
	NewStatsHandler(svc).ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("ServeHTTP() status = %d, want 405", w.Code)
	}
}
