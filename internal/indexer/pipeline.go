package indexer

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks docrag/internal/indexer Embedder

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"docrag/internal/contextutil"
	"docrag/internal/errs"
	"docrag/internal/source"
	"docrag/internal/storage"
	"docrag/internal/vectorstore"
)

// Embedder turns chunk texts into vectors, one per text in input order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Pipeline reconciles the chunk store with the current state of document
// sources. The store is passed to every call; the pipeline holds no
// document state of its own.
type Pipeline struct {
	embedder    Embedder
	vectorStore vectorstore.VectorStore
	collection  string
	parallelism int
	passTimeout time.Duration
	passes      singleflight.Group
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithParallelism bounds how many sources IngestAll processes at once.
func WithParallelism(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.parallelism = n
		}
	}
}

// WithPassTimeout bounds a full ingestion pass of one source. Documents
// not reached before the deadline are left for the next pass.
func WithPassTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.passTimeout = d
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(embedder Embedder, vectorStore vectorstore.VectorStore, collection string, opts ...Option) *Pipeline {
	p := &Pipeline{
		embedder:    embedder,
		vectorStore: vectorStore,
		collection:  collection,
		parallelism: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest runs one ingestion pass for src against store. Concurrent calls
// for the same source ID and store share a single pass: a caller that
// joins a running pass gets that pass's result or error, including the
// cancellation of the context the pass was started with.
//
// The returned error is pass-level (unreadable source root, storage
// failure while loading state, cancellation). Failures of single documents
// are reported in PassResult.Errors and never stop the pass.
func (p *Pipeline) Ingest(ctx context.Context, store storage.Store, src source.Source) (*PassResult, error) {
	v, err, _ := p.passes.Do(passKey(store, src), func() (any, error) {
		return p.ingest(ctx, store, src)
	})
	res, _ := v.(*PassResult)
	return res, err
}

// IngestAll runs a pass for every source, different sources in parallel.
// Results are returned in source order; a source whose pass failed has a
// nil result and its error is joined into the returned error.
func (p *Pipeline) IngestAll(ctx context.Context, store storage.Store, sources []source.Source) ([]*PassResult, error) {
	results := make([]*PassResult, len(sources))
	passErrs := make([]error, len(sources))

	var g errgroup.Group
	g.SetLimit(p.parallelism)
	for i, src := range sources {
		g.Go(func() error {
			res, err := p.Ingest(ctx, store, src)
			results[i] = res
			if err != nil {
				passErrs[i] = fmt.Errorf("source %s: %w", src.ID(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(passErrs...)
}

// passKey identifies a pass by the store it writes to and the source ID.
func passKey(store storage.Store, src source.Source) string {
	return fmt.Sprintf("%p|%s", store, src.ID())
}

func (p *Pipeline) ingest(ctx context.Context, store storage.Store, src source.Source) (*PassResult, error) {
	if p.passTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.passTimeout)
		defer cancel()
	}

	logger := contextutil.LoggerFromContext(ctx).With("source_id", src.ID())
	ctx = contextutil.WithLogger(ctx, logger)

	started := time.Now()
	result := &PassResult{SourceID: src.ID()}
	defer func() {
		result.Duration = time.Since(started)
	}()

	if err := store.Sources().Register(ctx, storage.SourceRecord{
		ID:       src.ID(),
		Kind:     string(src.Kind()),
		RootPath: src.Root(),
	}); err != nil {
		return nil, fmt.Errorf("failed to register source: %w", err)
	}

	records, err := store.Documents().ListBySource(ctx, src.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	existing := make([]source.Descriptor, len(records))
	byID := make(map[string]storage.DocumentRecord, len(records))
	for i, rec := range records {
		existing[i] = source.Descriptor{
			DocumentID: rec.DocumentID,
			Path:       filepath.Join(src.Root(), filepath.FromSlash(rec.DocumentID)),
			Version:    rec.Version,
		}
		byID[rec.DocumentID] = rec
	}

	changed, err := src.ListChangedOrNew(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("failed to list changed documents: %w", err)
	}
	deleted, err := src.ListDeleted(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("failed to list deleted documents: %w", err)
	}

	touched := make(map[string]struct{}, len(changed)+len(deleted))
	for _, d := range changed {
		touched[d.DocumentID] = struct{}{}
	}
	for _, d := range deleted {
		touched[d.DocumentID] = struct{}{}
	}
	if err := p.retryUnembedded(ctx, store, src, touched, result); err != nil {
		return nil, err
	}

	if len(changed) == 0 && len(deleted) == 0 {
		result.NoOp = true
		logger.DebugContext(ctx, "source unchanged", "documents", len(records))
		return result, nil
	}

	logger.InfoContext(ctx, "starting ingestion pass",
		"documents", len(records),
		"changed", len(changed),
		"deleted", len(deleted),
	)

	for _, d := range deleted {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := p.deleteDocument(ctx, store, byID[d.DocumentID]); err != nil {
			p.fail(ctx, result, errs.NewDocumentError(errs.ErrStorage, src.ID(), d.DocumentID, err))
			continue
		}
		result.Deleted++
	}

	for _, d := range changed {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if d.Err != nil {
			p.fail(ctx, result, documentError(d.Err, errs.ErrSourceUnreadable, src.ID(), d.DocumentID))
			continue
		}

		prev, existed := byID[d.DocumentID]
		var prevPtr *storage.DocumentRecord
		if existed {
			prevPtr = &prev
		}
		if docErr := p.ingestDocument(ctx, store, src, d, prevPtr, result); docErr != nil {
			p.fail(ctx, result, docErr)
			continue
		}
		if existed {
			result.Updated++
		} else {
			result.Added++
		}
	}

	logger.InfoContext(ctx, "ingestion pass completed",
		"added", result.Added,
		"updated", result.Updated,
		"deleted", result.Deleted,
		"chunks", result.ChunksWritten,
		"embedded", result.ChunksEmbedded,
		"errors", len(result.Errors),
	)
	return result, nil
}

// deleteDocument removes a document and its chunks in one transaction and
// then drops their vectors.
func (p *Pipeline) deleteDocument(ctx context.Context, store storage.Store, doc storage.DocumentRecord) error {
	err := store.InTx(ctx, func(tx storage.Store) error {
		if err := tx.Chunks().DeleteByDocument(ctx, doc.Key); err != nil {
			return err
		}
		return tx.Documents().Delete(ctx, doc.Key)
	})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	p.deleteVectors(ctx, doc.DocumentID, doc.Key)
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "deleted document", "document_id", doc.DocumentID)
	return nil
}

// ingestDocument extracts a new or changed document and replaces its
// record and chunks in one transaction. Extraction happens first so a
// document that cannot be read keeps its previous version and is retried
// by the next pass.
func (p *Pipeline) ingestDocument(ctx context.Context, store storage.Store, src source.Source, d source.Descriptor, prev *storage.DocumentRecord, result *PassResult) *errs.DocumentError {
	logger := contextutil.LoggerFromContext(ctx)

	drafts, err := src.ExtractChunks(ctx, d)
	if err != nil {
		return documentError(err, errs.ErrExtraction, src.ID(), d.DocumentID)
	}

	chunks := make([]storage.ChunkRecord, len(drafts))
	for i, draft := range drafts {
		key, err := uuid.NewV7()
		if err != nil {
			return errs.NewDocumentError(errs.ErrStorage, src.ID(), d.DocumentID, fmt.Errorf("failed to generate chunk key: %w", err))
		}
		chunks[i] = storage.ChunkRecord{
			Key:        key.String(),
			DocumentID: d.DocumentID,
			Index:      i,
			Text:       draft.Text,
		}
	}

	doc := &storage.DocumentRecord{
		SourceID:   src.ID(),
		DocumentID: d.DocumentID,
		Version:    d.Version,
	}
	err = store.InTx(ctx, func(tx storage.Store) error {
		if prev != nil {
			if err := tx.Chunks().DeleteByDocument(ctx, prev.Key); err != nil {
				return err
			}
		}
		if err := tx.Documents().Upsert(ctx, doc); err != nil {
			return err
		}
		for i := range chunks {
			chunks[i].DocumentKey = doc.Key
			if err := tx.Chunks().Insert(ctx, &chunks[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errs.NewDocumentError(errs.ErrStorage, src.ID(), d.DocumentID, err)
	}
	result.ChunksWritten += len(chunks)

	// The document key survives the new version, so old points must be gone
	// before the new chunks are upserted.
	if prev != nil {
		p.deleteVectors(ctx, d.DocumentID, prev.Key)
	}

	if err := p.embed(ctx, store, src.ID(), chunks); err != nil {
		// Chunks stay persisted and unembedded; the next pass retries them.
		p.fail(ctx, result, errs.NewDocumentError(errs.ErrEmbedding, src.ID(), d.DocumentID, err))
	} else {
		result.ChunksEmbedded += len(chunks)
	}

	logger.InfoContext(ctx, "ingested document",
		"document_id", d.DocumentID,
		"version", d.Version,
		"chunks", len(chunks),
	)
	return nil
}

// retryUnembedded embeds chunks left unembedded by an earlier pass.
// Documents that this pass re-chunks or deletes are skipped.
func (p *Pipeline) retryUnembedded(ctx context.Context, store storage.Store, src source.Source, skip map[string]struct{}, result *PassResult) error {
	pending, err := store.Chunks().ListUnembedded(ctx, src.ID())
	if err != nil {
		return fmt.Errorf("failed to list unembedded chunks: %w", err)
	}

	var order []string
	groups := make(map[string][]storage.ChunkRecord)
	for _, c := range pending {
		if _, ok := skip[c.DocumentID]; ok {
			continue
		}
		if _, ok := groups[c.DocumentKey]; !ok {
			order = append(order, c.DocumentKey)
		}
		groups[c.DocumentKey] = append(groups[c.DocumentKey], c)
	}

	logger := contextutil.LoggerFromContext(ctx)
	for _, key := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunks := groups[key]
		documentID := chunks[0].DocumentID
		if err := p.embed(ctx, store, src.ID(), chunks); err != nil {
			p.fail(ctx, result, errs.NewDocumentError(errs.ErrEmbedding, src.ID(), documentID, err))
			continue
		}
		result.ChunksRetried += len(chunks)
		logger.InfoContext(ctx, "embedded pending chunks", "document_id", documentID, "chunks", len(chunks))
	}
	return nil
}

// embed generates vectors for chunks, stores them and marks the chunks
// embedded.
func (p *Pipeline) embed(ctx context.Context, store storage.Store, sourceID string, chunks []storage.ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(vectors))
	}

	points := make([]vectorstore.ChunkPoint, len(chunks))
	keys := make([]string, len(chunks))
	for i, c := range chunks {
		keys[i] = c.Key
		points[i] = vectorstore.ChunkPoint{
			ChunkKey:    c.Key,
			SourceID:    sourceID,
			DocumentID:  c.DocumentID,
			DocumentKey: c.DocumentKey,
			Index:       c.Index,
			Vector:      vectors[i],
		}
	}

	if err := p.vectorStore.UpsertChunks(ctx, p.collection, points); err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}
	err = store.InTx(ctx, func(tx storage.Store) error {
		return tx.Chunks().MarkEmbedded(ctx, keys)
	})
	if err != nil {
		return fmt.Errorf("failed to mark chunks embedded: %w", err)
	}
	return nil
}

// deleteVectors removes the vector points of a document best-effort;
// orphaned points are logged and otherwise ignored.
func (p *Pipeline) deleteVectors(ctx context.Context, documentID, documentKey string) {
	if err := p.vectorStore.DeleteDocument(ctx, p.collection, documentKey); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to delete vectors",
			"document_id", documentID,
			"error", err,
		)
	}
}

// fail records a document failure on the pass result. Embedding failures
// are warnings since the chunks are already stored.
func (p *Pipeline) fail(ctx context.Context, result *PassResult, err *errs.DocumentError) {
	result.Errors = append(result.Errors, err)

	logger := contextutil.LoggerFromContext(ctx)
	if errors.Is(err, errs.ErrEmbedding) {
		logger.WarnContext(ctx, "document left unembedded", "document_id", err.DocumentID, "error", err.Err)
		return
	}
	logger.ErrorContext(ctx, "document skipped", "document_id", err.DocumentID, "kind", err.Kind, "error", err.Err)
}

// documentError attributes err to a document, keeping an existing
// DocumentError as is and classifying anything else as kind.
func documentError(err, kind error, sourceID, documentID string) *errs.DocumentError {
	var docErr *errs.DocumentError
	if errors.As(err, &docErr) {
		return docErr
	}
	return errs.NewDocumentError(kind, sourceID, documentID, err)
}
