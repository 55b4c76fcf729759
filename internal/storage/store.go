package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// SourceStore defines the interface for source registration.
type SourceStore interface {
	// Register inserts the source if it is not present. It does not write
	// when a source with the same ID already exists.
	Register(ctx context.Context, source SourceRecord) error
	// ListAll returns all sources ordered by ID.
	ListAll(ctx context.Context) ([]SourceRecord, error)
}

// DocumentStore defines the interface for document storage operations.
type DocumentStore interface {
	// ListBySource returns all documents of a source ordered by document ID.
	ListBySource(ctx context.Context, sourceID string) ([]DocumentRecord, error)
	// GetBySourceAndID gets a document by source and document ID.
	// Returns nil and ErrNotFound if not found.
	GetBySourceAndID(ctx context.Context, sourceID, documentID string) (*DocumentRecord, error)
	// Upsert inserts a new document or replaces the version of an existing one.
	// The key of an existing document is preserved and written back to doc.
	Upsert(ctx context.Context, doc *DocumentRecord) error
	// Delete removes a document and, through the foreign key, its chunks.
	Delete(ctx context.Context, key string) error
}

// ChunkStore defines the interface for chunk storage operations.
type ChunkStore interface {
	// Insert inserts a single chunk. chunk.Key must be set before calling.
	Insert(ctx context.Context, chunk *ChunkRecord) error
	// DeleteByDocument deletes all chunks of a document.
	DeleteByDocument(ctx context.Context, documentKey string) error
	// ListByDocument returns the chunks of a document ordered by index.
	ListByDocument(ctx context.Context, documentKey string) ([]ChunkRecord, error)
	// ListUnembedded returns chunks of a source that have no embedding yet,
	// ordered by document key and index.
	ListUnembedded(ctx context.Context, sourceID string) ([]ChunkRecord, error)
	// MarkEmbedded flags the given chunks as embedded.
	MarkEmbedded(ctx context.Context, keys []string) error
	// GetByKey gets a chunk by its key. Returns ErrNotFound if not found.
	GetByKey(ctx context.Context, key string) (*ChunkRecord, error)
}

// Store is the storage handle the ingestion pipeline works against.
type Store interface {
	Sources() SourceStore
	Documents() DocumentStore
	Chunks() ChunkStore
	// InTx runs fn against a Store whose writes are committed together when
	// fn returns nil and discarded otherwise.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements Store on top of a SQLite database.
type SQLStore struct {
	db   *sql.DB
	conn dbtx
}

// NewSQLStore creates a Store backed by db. Migrate must have been run.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, conn: db}
}

// DB returns the underlying database.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Sources returns the source repository.
func (s *SQLStore) Sources() SourceStore {
	return &SourceRepo{db: s.conn}
}

// Documents returns the document repository.
func (s *SQLStore) Documents() DocumentStore {
	return &DocumentRepo{db: s.conn}
}

// Chunks returns the chunk repository.
func (s *SQLStore) Chunks() ChunkStore {
	return &ChunkRepo{db: s.conn}
}

// InTx runs fn inside a database transaction.
// Nested calls reuse the outer transaction.
func (s *SQLStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if _, nested := s.conn.(*sql.Tx); nested {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&SQLStore{db: s.db, conn: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
