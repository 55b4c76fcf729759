package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ChunkRepo provides methods for chunk operations.
// It implements the ChunkStore interface.
type ChunkRepo struct {
	db dbtx
}

// Insert inserts a single chunk into the database.
// The chunk.Key must be set (UUID) before calling this method.
func (r *ChunkRepo) Insert(ctx context.Context, chunk *ChunkRecord) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO chunks (key, document_key, document_id, chunk_index, text, embedded) VALUES (?, ?, ?, ?, ?, ?)",
		chunk.Key, chunk.DocumentKey, chunk.DocumentID, chunk.Index, chunk.Text, chunk.Embedded,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	return nil
}

// DeleteByDocument deletes all chunks for a given document key.
// Used when re-chunking a document to remove old chunks before inserting new ones.
func (r *ChunkRepo) DeleteByDocument(ctx context.Context, documentKey string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_key = ?", documentKey)
	if err != nil {
		return fmt.Errorf("failed to delete chunks by document: %w", err)
	}
	return nil
}

// ListByDocument returns all chunks for a given document, ordered by chunk_index.
func (r *ChunkRepo) ListByDocument(ctx context.Context, documentKey string) ([]ChunkRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT key, document_key, document_id, chunk_index, text, embedded FROM chunks WHERE document_key = ? ORDER BY chunk_index",
		documentKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	return scanChunks(rows)
}

// ListUnembedded returns the chunks of a source whose embedding has not
// been stored yet.
func (r *ChunkRepo) ListUnembedded(ctx context.Context, sourceID string) ([]ChunkRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.key, c.document_key, c.document_id, c.chunk_index, c.text, c.embedded
		 FROM chunks c JOIN documents d ON d.key = c.document_key
		 WHERE d.source_id = ? AND c.embedded = 0
		 ORDER BY c.document_key, c.chunk_index`,
		sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query unembedded chunks: %w", err)
	}
	return scanChunks(rows)
}

// markEmbeddedBatch bounds the number of keys bound to one UPDATE, below
// SQLite's limit on host parameters.
const markEmbeddedBatch = 500

// MarkEmbedded flags the given chunks as embedded, markEmbeddedBatch keys
// per statement. Run it inside InTx to apply all batches atomically.
func (r *ChunkRepo) MarkEmbedded(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += markEmbeddedBatch {
		batch := keys[start:min(start+markEmbeddedBatch, len(keys))]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		args := make([]any, len(batch))
		for i, key := range batch {
			args[i] = key
		}

		_, err := r.db.ExecContext(ctx,
			"UPDATE chunks SET embedded = 1 WHERE key IN ("+placeholders+")",
			args...,
		)
		if err != nil {
			return fmt.Errorf("failed to mark chunks embedded: %w", err)
		}
	}
	return nil
}

// GetByKey gets a chunk by its key. Returns ErrNotFound if not found.
func (r *ChunkRepo) GetByKey(ctx context.Context, key string) (*ChunkRecord, error) {
	var chunk ChunkRecord
	err := r.db.QueryRowContext(ctx,
		"SELECT key, document_key, document_id, chunk_index, text, embedded FROM chunks WHERE key = ?",
		key,
	).Scan(&chunk.Key, &chunk.DocumentKey, &chunk.DocumentID, &chunk.Index, &chunk.Text, &chunk.Embedded)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk: %w", err)
	}

	return &chunk, nil
}

func scanChunks(rows *sql.Rows) ([]ChunkRecord, error) {
	defer func() {
		_ = rows.Close()
	}()

	chunks := []ChunkRecord{}
	for rows.Next() {
		var chunk ChunkRecord
		if err := rows.Scan(&chunk.Key, &chunk.DocumentKey, &chunk.DocumentID, &chunk.Index, &chunk.Text, &chunk.Embedded); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return chunks, nil
}
