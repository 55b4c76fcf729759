package storage

import (
	"context"
	"fmt"
)

// SourceRepo provides methods for source operations.
// It implements the SourceStore interface.
type SourceRepo struct {
	db dbtx
}

// Register inserts the source if no source with the same ID exists.
// Existing rows are left untouched so repeated passes do not write.
func (r *SourceRepo) Register(ctx context.Context, source SourceRecord) error {
	var exists int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sources WHERE id = ?",
		source.ID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to query source: %w", err)
	}
	if exists > 0 {
		return nil
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO sources (id, kind, root_path) VALUES (?, ?, ?) ON CONFLICT (id) DO NOTHING",
		source.ID, source.Kind, source.RootPath,
	)
	if err != nil {
		return fmt.Errorf("failed to insert source: %w", err)
	}
	return nil
}

// ListAll returns all sources ordered by ID.
func (r *SourceRepo) ListAll(ctx context.Context) ([]SourceRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, kind, root_path, created_at FROM sources ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var sources []SourceRecord
	for rows.Next() {
		var source SourceRecord
		var createdAtStr string
		if err := rows.Scan(&source.ID, &source.Kind, &source.RootPath, &createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		source.CreatedAt, err = parseTimestamp(createdAtStr)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return sources, nil
}
