package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

// newTestStore opens a migrated SQLite store in a temp directory.
func newTestStore(t *testing.T) *SQLStore {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLStore(db)
}

// seedDocument registers a source and inserts one document into it.
func seedDocument(t *testing.T, store Store, sourceID, documentID string) *DocumentRecord {
	t.Helper()
	ctx := context.Background()

	if err := store.Sources().Register(ctx, SourceRecord{ID: sourceID, Kind: "code", RootPath: "/tmp/src"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	doc := &DocumentRecord{SourceID: sourceID, DocumentID: documentID, Version: "v1"}
	if err := store.Documents().Upsert(ctx, doc); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	return doc
}

func TestChunkRepo_Insert(t *testing.T) {
	store := newTestStore(t)
	doc := seedDocument(t, store, "code:/tmp/src", "main.cs")
	repo := store.Chunks()

	tests := []struct {
		name    string
		chunk   *ChunkRecord
		wantErr bool
	}{
		{
			name: "valid chunk",
			chunk: &ChunkRecord{
				Key:         "chunk-1",
				DocumentKey: doc.Key,
				DocumentID:  doc.DocumentID,
				Index:       0,
				Text:        "Chunk text",
			},
			wantErr: false,
		},
		{
			name: "chunk with empty text",
			chunk: &ChunkRecord{
				Key:         "chunk-2",
				DocumentKey: doc.Key,
				DocumentID:  doc.DocumentID,
				Index:       1,
				Text:        "",
			},
			wantErr: false, // Empty text is allowed
		},
		{
			name: "unknown document violates foreign key",
			chunk: &ChunkRecord{
				Key:         "chunk-3",
				DocumentKey: "missing",
				DocumentID:  "missing.cs",
				Index:       0,
				Text:        "orphan",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clean up
			_, _ = store.DB().Exec("DELETE FROM chunks")

			err := repo.Insert(context.Background(), tt.chunk)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Insert() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("Insert() unexpected error: %v", err)
			}

			got, err := repo.GetByKey(context.Background(), tt.chunk.Key)
			if err != nil {
				t.Fatalf("GetByKey() error = %v", err)
			}
			if got.Text != tt.chunk.Text || got.Embedded {
				t.Errorf("GetByKey() = %+v, want text %q and not embedded", got, tt.chunk.Text)
			}
		})
	}
}

func TestChunkRepo_DeleteByDocument(t *testing.T) {
	store := newTestStore(t)
	doc := seedDocument(t, store, "code:/tmp/src", "main.cs")
	other := seedDocument(t, store, "code:/tmp/src", "other.cs")
	repo := store.Chunks()
	ctx := context.Background()

	chunks := []*ChunkRecord{
		{Key: "chunk-1", DocumentKey: doc.Key, DocumentID: doc.DocumentID, Index: 0, Text: "Text 1"},
		{Key: "chunk-2", DocumentKey: doc.Key, DocumentID: doc.DocumentID, Index: 1, Text: "Text 2"},
		{Key: "chunk-3", DocumentKey: other.Key, DocumentID: other.DocumentID, Index: 0, Text: "Text 3"},
	}
	for _, chunk := range chunks {
		if err := repo.Insert(ctx, chunk); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	if err := repo.DeleteByDocument(ctx, doc.Key); err != nil {
		t.Fatalf("DeleteByDocument() error = %v", err)
	}

	remaining, err := repo.ListByDocument(ctx, doc.Key)
	if err != nil {
		t.Fatalf("ListByDocument() error = %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("DeleteByDocument() should delete all chunks, got %d remaining", len(remaining))
	}

	remaining, err = repo.ListByDocument(ctx, other.Key)
	if err != nil {
		t.Fatalf("ListByDocument() error = %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("DeleteByDocument() should not touch other documents, got %d chunks", len(remaining))
	}

	// Deleting chunks of an unknown document is not an error
	if err := repo.DeleteByDocument(ctx, "non-existent"); err != nil {
		t.Errorf("DeleteByDocument() with unknown document should not error, got: %v", err)
	}
}

func TestChunkRepo_ListByDocument_OrderedByIndex(t *testing.T) {
	store := newTestStore(t)
	doc := seedDocument(t, store, "code:/tmp/src", "main.cs")
	repo := store.Chunks()
	ctx := context.Background()

	// Insert chunks in non-sequential order
	chunks := []*ChunkRecord{
		{Key: "chunk-3", DocumentKey: doc.Key, DocumentID: doc.DocumentID, Index: 2, Text: "Text 3"},
		{Key: "chunk-1", DocumentKey: doc.Key, DocumentID: doc.DocumentID, Index: 0, Text: "Text 1"},
		{Key: "chunk-2", DocumentKey: doc.Key, DocumentID: doc.DocumentID, Index: 1, Text: "Text 2"},
	}
	for _, chunk := range chunks {
		if err := repo.Insert(ctx, chunk); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	records, err := repo.ListByDocument(ctx, doc.Key)
	if err != nil {
		t.Fatalf("ListByDocument() error = %v", err)
	}
	want := []string{"chunk-1", "chunk-2", "chunk-3"}
	if len(records) != len(want) {
		t.Fatalf("ListByDocument() returned %d chunks, want %d", len(records), len(want))
	}
	for i, r := range records {
		if r.Key != want[i] || r.Index != i {
			t.Errorf("ListByDocument() record[%d] = %s/%d, want %s/%d", i, r.Key, r.Index, want[i], i)
		}
	}
}

func TestChunkRepo_UnembeddedAndMarkEmbedded(t *testing.T) {
	store := newTestStore(t)
	doc := seedDocument(t, store, "code:/tmp/src", "main.cs")
	otherSource := seedDocument(t, store, "pdf:/tmp/docs", "manual.pdf")
	repo := store.Chunks()
	ctx := context.Background()

	for i, key := range []string{"a", "b", "c"} {
		if err := repo.Insert(ctx, &ChunkRecord{Key: key, DocumentKey: doc.Key, DocumentID: doc.DocumentID, Index: i, Text: key}); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	if err := repo.Insert(ctx, &ChunkRecord{Key: "p", DocumentKey: otherSource.Key, DocumentID: otherSource.DocumentID, Text: "p"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	pending, err := repo.ListUnembedded(ctx, "code:/tmp/src")
	if err != nil {
		t.Fatalf("ListUnembedded() error = %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("ListUnembedded() = %d chunks, want 3", len(pending))
	}

	if err := repo.MarkEmbedded(ctx, []string{"a", "c"}); err != nil {
		t.Fatalf("MarkEmbedded() error = %v", err)
	}
	if err := repo.MarkEmbedded(ctx, nil); err != nil {
		t.Fatalf("MarkEmbedded(nil) error = %v", err)
	}

	pending, err = repo.ListUnembedded(ctx, "code:/tmp/src")
	if err != nil {
		t.Fatalf("ListUnembedded() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Key != "b" {
		t.Errorf("ListUnembedded() = %+v, want only chunk b", pending)
	}

	got, err := repo.GetByKey(ctx, "a")
	if err != nil {
		t.Fatalf("GetByKey() error = %v", err)
	}
	if !got.Embedded {
		t.Error("GetByKey() chunk a should be embedded")
	}
}

func TestChunkRepo_MarkEmbedded_ManyKeys(t *testing.T) {
	store := newTestStore(t)
	doc := seedDocument(t, store, "pdf:/tmp/docs", "handbook.pdf")
	ctx := context.Background()

	// More keys than SQLite accepts as parameters of a single statement
	const n = 40000
	keys := make([]string, n)
	err := store.InTx(ctx, func(tx Store) error {
		for i := range keys {
			keys[i] = fmt.Sprintf("chunk-%05d", i)
			if err := tx.Chunks().Insert(ctx, &ChunkRecord{Key: keys[i], DocumentKey: doc.Key, DocumentID: doc.DocumentID, Index: i, Text: "t"}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	err = store.InTx(ctx, func(tx Store) error {
		return tx.Chunks().MarkEmbedded(ctx, keys)
	})
	if err != nil {
		t.Fatalf("MarkEmbedded() error = %v", err)
	}

	pending, err := store.Chunks().ListUnembedded(ctx, "pdf:/tmp/docs")
	if err != nil {
		t.Fatalf("ListUnembedded() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("ListUnembedded() = %d chunks, want 0", len(pending))
	}
}

func TestChunkRepo_GetByKey_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Chunks().GetByKey(context.Background(), "missing")
	if err != ErrNotFound {
		t.Errorf("GetByKey() error = %v, want ErrNotFound", err)
	}
}
