package storage

import "time"

// SourceRecord represents a registered document source.
type SourceRecord struct {
	ID        string // Source kind + ":" + absolute root, e.g. "pdf:/data/docs"
	Kind      string
	RootPath  string
	CreatedAt time.Time
}

// DocumentRecord represents an ingested document of a source.
type DocumentRecord struct {
	Key        string // UUIDv7, assigned at creation and kept across versions
	SourceID   string // Foreign key to sources.id
	DocumentID string // Slash-separated path relative to the source root
	Version    string // Opaque fingerprint used for change detection
	UpdatedAt  time.Time
}

// ChunkRecord represents a chunk of document text, indexed for vector search.
type ChunkRecord struct {
	Key         string // UUIDv7 (same as the vector point ID)
	DocumentKey string // Foreign key to documents.key
	DocumentID  string
	Index       int // Position within the document (starts at 0)
	Text        string
	Embedded    bool
}
