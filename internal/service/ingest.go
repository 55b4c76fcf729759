package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_ingest_service.go -package=mocks docrag/internal/service IngestService

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"docrag/internal/contextutil"
	"docrag/internal/indexer"
	"docrag/internal/source"
	"docrag/internal/storage"
)

// Ingester runs ingestion passes. *indexer.Pipeline implements it.
type Ingester interface {
	Ingest(ctx context.Context, store storage.Store, src source.Source) (*indexer.PassResult, error)
	IngestAll(ctx context.Context, store storage.Store, sources []source.Source) ([]*indexer.PassResult, error)
}

// SourceInfo describes a configured source.
type SourceInfo struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Root string `json:"root"`
}

// IngestService runs ingestion passes over the configured sources and
// reports on the chunk store.
type IngestService interface {
	// Sources lists the configured sources.
	Sources() []SourceInfo
	// IngestAll runs one pass for every source.
	IngestAll(ctx context.Context) ([]*indexer.PassResult, error)
	// IngestSource runs one pass for a single source. Returns ErrNotFound
	// for an unknown source ID.
	IngestSource(ctx context.Context, sourceID string) (*indexer.PassResult, error)
	// LastResults returns the most recent pass result of each source that
	// completed one, ordered by source ID.
	LastResults() []*indexer.PassResult
	// Stats returns coverage statistics of the chunk store. Returns
	// ErrStoreUnavailable when the store cannot be read.
	Stats(ctx context.Context) (*indexer.CoverageStats, error)
}

// ingestService implements IngestService.
type ingestService struct {
	ingester  Ingester
	store     storage.Store
	sources   []source.Source
	byID      map[string]source.Source
	modelName string
	params    []string

	mu   sync.Mutex
	last map[string]*indexer.PassResult
}

// NewIngestService creates a new IngestService. modelName and params
// identify the index build in Stats.
func NewIngestService(ingester Ingester, store storage.Store, sources []source.Source, modelName string, params ...string) IngestService {
	byID := make(map[string]source.Source, len(sources))
	for _, src := range sources {
		byID[src.ID()] = src
	}
	return &ingestService{
		ingester:  ingester,
		store:     store,
		sources:   sources,
		byID:      byID,
		modelName: modelName,
		params:    params,
		last:      make(map[string]*indexer.PassResult),
	}
}

func (s *ingestService) Sources() []SourceInfo {
	out := make([]SourceInfo, len(s.sources))
	for i, src := range s.sources {
		out[i] = SourceInfo{ID: src.ID(), Kind: string(src.Kind()), Root: src.Root()}
	}
	return out
}

func (s *ingestService) IngestAll(ctx context.Context) ([]*indexer.PassResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	results, err := s.ingester.IngestAll(ctx, s.store, s.sources)
	for _, res := range results {
		s.record(res)
	}
	if err != nil {
		logger.ErrorContext(ctx, "ingestion completed with failed sources", "error", err)
		return results, err
	}

	var failed int
	for _, res := range results {
		if res != nil && res.Failed() {
			failed += len(res.Errors)
		}
	}
	logger.InfoContext(ctx, "ingestion completed", "sources", len(results), "document_errors", failed)
	return results, nil
}

func (s *ingestService) IngestSource(ctx context.Context, sourceID string) (*indexer.PassResult, error) {
	if strings.TrimSpace(sourceID) == "" {
		return nil, fmt.Errorf("source id is required: %w", ErrInvalidInput)
	}
	src, ok := s.byID[sourceID]
	if !ok {
		return nil, fmt.Errorf("source %s: %w", sourceID, ErrNotFound)
	}

	res, err := s.ingester.Ingest(ctx, s.store, src)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", sourceID, err)
	}
	s.record(res)
	return res, nil
}

func (s *ingestService) LastResults() []*indexer.PassResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*indexer.PassResult, 0, len(s.last))
	for _, res := range s.last {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}

func (s *ingestService) Stats(ctx context.Context) (*indexer.CoverageStats, error) {
	stats, err := indexer.GetCoverageStats(ctx, s.store, s.modelName, s.params...)
	if err != nil {
		return nil, storeError("compute coverage stats", err)
	}
	return stats, nil
}

func (s *ingestService) record(res *indexer.PassResult) {
	if res == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[res.SourceID] = res
}
