package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DocumentRepo provides methods for document operations.
// It implements the DocumentStore interface.
type DocumentRepo struct {
	db dbtx
}

// ListBySource returns all documents of a source ordered by document ID.
// Returns an empty slice if the source has no documents.
func (r *DocumentRepo) ListBySource(ctx context.Context, sourceID string) ([]DocumentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT key, source_id, document_id, version, updated_at FROM documents WHERE source_id = ? ORDER BY document_id",
		sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	docs := []DocumentRecord{}
	for rows.Next() {
		var doc DocumentRecord
		var updatedAtStr string
		if err := rows.Scan(&doc.Key, &doc.SourceID, &doc.DocumentID, &doc.Version, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.UpdatedAt, err = parseTimestamp(updatedAtStr)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return docs, nil
}

// GetBySourceAndID gets a document by source and document ID.
// Returns nil and ErrNotFound if not found.
func (r *DocumentRepo) GetBySourceAndID(ctx context.Context, sourceID, documentID string) (*DocumentRecord, error) {
	var doc DocumentRecord
	var updatedAtStr string

	err := r.db.QueryRowContext(ctx,
		"SELECT key, source_id, document_id, version, updated_at FROM documents WHERE source_id = ? AND document_id = ?",
		sourceID, documentID,
	).Scan(&doc.Key, &doc.SourceID, &doc.DocumentID, &doc.Version, &updatedAtStr)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	doc.UpdatedAt, err = parseTimestamp(updatedAtStr)
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

// Upsert inserts a new document or updates the version of an existing one.
// New documents get a UUIDv7 key unless doc.Key is already set; existing
// documents keep their key.
func (r *DocumentRepo) Upsert(ctx context.Context, doc *DocumentRecord) error {
	existing, err := r.GetBySourceAndID(ctx, doc.SourceID, doc.DocumentID)
	if err != nil && err != ErrNotFound {
		return fmt.Errorf("failed to check existing document: %w", err)
	}

	if existing != nil {
		doc.Key = existing.Key
	} else if doc.Key == "" {
		key, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate document key: %w", err)
		}
		doc.Key = key.String()
	}
	doc.UpdatedAt = time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO documents (key, source_id, document_id, version, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (source_id, document_id) DO UPDATE SET
		 version = excluded.version, updated_at = excluded.updated_at`,
		doc.Key, doc.SourceID, doc.DocumentID, doc.Version, doc.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	return nil
}

// Delete removes a document by key. Its chunks are removed by the
// ON DELETE CASCADE foreign key. Deleting a missing key is not an error.
func (r *DocumentRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
