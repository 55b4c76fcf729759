package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks docrag/internal/vectorstore VectorStore

import "context"

// Payload fields stored with every chunk point.
const (
	FieldSourceID    = "source_id"
	FieldDocumentID  = "document_id"
	FieldDocumentKey = "document_key"
	FieldChunkIndex  = "chunk_index"
)

// ChunkPoint is the embedding of one stored chunk. Its point ID is the
// chunk key.
type ChunkPoint struct {
	ChunkKey    string
	SourceID    string
	DocumentID  string
	DocumentKey string
	Index       int
	Vector      []float32
}

// VectorStore is the vector index of the chunk store.
type VectorStore interface {
	// UpsertChunks inserts or replaces the points of the given chunks.
	UpsertChunks(ctx context.Context, collection string, chunks []ChunkPoint) error

	// DeleteDocument removes every point of the document with the given
	// key, whatever version of the document wrote it.
	DeleteDocument(ctx context.Context, collection, documentKey string) error
}
