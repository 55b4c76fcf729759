package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"

	"docrag/internal/config"
	"docrag/internal/indexer"
	"docrag/internal/llm"
	"docrag/internal/service"
	"docrag/internal/source"
	"docrag/internal/storage"
	"docrag/internal/vectorstore"
)

// app holds the wired components shared by the subcommands.
type app struct {
	db      *sql.DB
	store   *storage.SQLStore
	vectors *vectorstore.QdrantStore
	sources []source.Source
	ingest  service.IngestService
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	sources, err := cfg.BuildSources()
	if err != nil {
		return nil, err
	}
	for _, src := range sources {
		slog.Info("Source configured", "source", src.ID())
	}

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := storage.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	vectors, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}
	a := &app{db: db, store: storage.NewSQLStore(db), vectors: vectors, sources: sources}

	// Vector size must match the embedding model; a mismatch needs a new collection.
	if err := vectors.EnsureCollection(ctx, cfg.QdrantCollection, cfg.QdrantVectorSize); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to ensure Qdrant collection: %w", err)
	}
	slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize)

	embedder := llm.NewEmbeddingsClient(
		cfg.EmbeddingBaseURL,
		cfg.EmbeddingAPIKey,
		cfg.EmbeddingModelName,
		cfg.QdrantVectorSize,
		llm.WithBatchSize(cfg.EmbeddingBatchSize),
		llm.WithRateLimit(cfg.EmbeddingRateLimit),
	)

	pipeline := indexer.NewPipeline(
		embedder,
		vectors,
		cfg.QdrantCollection,
		indexer.WithParallelism(cfg.IngestParallelism),
		indexer.WithPassTimeout(cfg.IngestTimeout),
	)

	a.ingest = service.NewIngestService(pipeline, a.store, sources, cfg.EmbeddingModelName, indexParams(cfg)...)
	return a, nil
}

// indexParams lists the chunking settings that identify an index build.
func indexParams(cfg *config.Config) []string {
	return []string{
		"chunk_size=" + strconv.Itoa(cfg.ChunkSize),
		"chunk_overlap=" + strconv.Itoa(cfg.ChunkOverlap),
		"paragraph_size=" + strconv.Itoa(cfg.PDFParagraphSize),
		"code_strategy=" + cfg.CodeStrategy,
		"line_window=" + strconv.Itoa(cfg.CodeLineWindow),
	}
}

func (a *app) Close() {
	if err := a.vectors.Close(); err != nil {
		slog.Warn("Failed to close Qdrant client", "error", err)
	}
	if err := a.db.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}
