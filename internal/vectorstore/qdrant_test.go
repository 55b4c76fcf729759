package vectorstore

import (
	"context"
	"testing"

	"github.com/qdrant/go-client/qdrant"
)

func TestGRPCEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		urlStr   string
		wantErr  bool
		wantHost string
		wantPort int
	}{
		{
			name:     "valid URL",
			urlStr:   "http://localhost:6333",
			wantHost: "localhost",
			wantPort: 6334, // gRPC port is HTTP port + 1
		},
		{
			name:     "URL with custom port",
			urlStr:   "http://qdrant.internal:9000",
			wantHost: "qdrant.internal",
			wantPort: 9001,
		},
		{
			name:    "invalid URL",
			urlStr:  "://invalid",
			wantErr: true,
		},
		{
			name:     "URL without port",
			urlStr:   "http://localhost",
			wantHost: "localhost",
			wantPort: 6334, // Default
		},
		{
			name:     "URL without hostname",
			urlStr:   "http://:6333",
			wantHost: "localhost", // Defaults to localhost
			wantPort: 6334,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, err := grpcEndpoint(tt.urlStr)
			if tt.wantErr {
				if err == nil {
					t.Error("grpcEndpoint() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("grpcEndpoint() error = %v", err)
			}
			if host != tt.wantHost {
				t.Errorf("Host = %v, want %v", host, tt.wantHost)
			}
			if port != tt.wantPort {
				t.Errorf("Port = %v, want %v", port, tt.wantPort)
			}
		})
	}
}

// TestNewQdrantStore_InvalidURL tests that invalid URLs return errors.
func TestNewQdrantStore_InvalidURL(t *testing.T) {
	_, err := NewQdrantStore("://invalid")
	if err == nil {
		t.Error("NewQdrantStore() with invalid URL should return error")
	}
}

func TestQdrantStore_UpsertChunks_Empty(t *testing.T) {
	// Returns before touching the client
	store := &QdrantStore{}

	if err := store.UpsertChunks(context.Background(), "test-collection", nil); err != nil {
		t.Errorf("UpsertChunks() with no chunks should not fail, got: %v", err)
	}
}

func TestQdrantStore_DeleteDocument_EmptyKey(t *testing.T) {
	store := &QdrantStore{}

	if err := store.DeleteDocument(context.Background(), "test-collection", ""); err != nil {
		t.Errorf("DeleteDocument() with empty key should not fail, got: %v", err)
	}
}

func TestQdrantStore_CloseWithoutClient(t *testing.T) {
	store := &QdrantStore{}
	if err := store.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestBatches(t *testing.T) {
	tests := []struct {
		name string
		n    int
		size int
		want []span
	}{
		{name: "empty", n: 0, size: 256, want: nil},
		{name: "single partial batch", n: 3, size: 256, want: []span{{0, 3}}},
		{name: "exact multiple", n: 512, size: 256, want: []span{{0, 256}, {256, 512}}},
		{name: "remainder", n: 600, size: 256, want: []span{{0, 256}, {256, 512}, {512, 600}}},
		{name: "non-positive size", n: 5, size: 0, want: []span{{0, 5}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := batches(tt.n, tt.size)
			if len(got) != len(tt.want) {
				t.Fatalf("batches(%d, %d) = %v, want %v", tt.n, tt.size, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("batches(%d, %d)[%d] = %v, want %v", tt.n, tt.size, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestChunkPoint(t *testing.T) {
	p := chunkPoint(ChunkPoint{
		ChunkKey:    "0190c3a4-0000-7000-8000-000000000001",
		SourceID:    "pdf:/docs",
		DocumentID:  "manual.pdf",
		DocumentKey: "0190c3a4-0000-7000-8000-0000000000aa",
		Index:       3,
		Vector:      []float32{0.1, 0.2},
	})

	if got := p.GetId().GetUuid(); got != "0190c3a4-0000-7000-8000-000000000001" {
		t.Errorf("point ID = %v, want chunk key", got)
	}
	if got := p.Payload[FieldSourceID].GetStringValue(); got != "pdf:/docs" {
		t.Errorf("source_id = %v", got)
	}
	if got := p.Payload[FieldDocumentID].GetStringValue(); got != "manual.pdf" {
		t.Errorf("document_id = %v", got)
	}
	if got := p.Payload[FieldDocumentKey].GetStringValue(); got != "0190c3a4-0000-7000-8000-0000000000aa" {
		t.Errorf("document_key = %v", got)
	}
	if got := p.Payload[FieldChunkIndex].GetIntegerValue(); got != 3 {
		t.Errorf("chunk_index = %v, want 3", got)
	}
}

func TestDocumentFilter(t *testing.T) {
	f := documentFilter("doc-key")

	if len(f.Must) != 1 {
		t.Fatalf("filter has %d conditions, want 1", len(f.Must))
	}
	field := f.Must[0].GetField()
	if field.GetKey() != FieldDocumentKey {
		t.Errorf("filter key = %v, want %v", field.GetKey(), FieldDocumentKey)
	}
	if field.GetMatch().GetKeyword() != "doc-key" {
		t.Errorf("filter keyword = %v, want doc-key", field.GetMatch().GetKeyword())
	}
}

func TestCollectionVectorSize(t *testing.T) {
	if got := collectionVectorSize(nil); got != 0 {
		t.Errorf("collectionVectorSize(nil) = %d, want 0", got)
	}
	if got := collectionVectorSize(&qdrant.CollectionInfo{}); got != 0 {
		t.Errorf("collectionVectorSize(empty) = %d, want 0", got)
	}

	info := &qdrant.CollectionInfo{
		Config: &qdrant.CollectionConfig{
			Params: &qdrant.CollectionParams{
				VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{Size: 768, Distance: qdrant.Distance_Cosine}),
			},
		},
	}
	if got := collectionVectorSize(info); got != 768 {
		t.Errorf("collectionVectorSize() = %d, want 768", got)
	}
}
