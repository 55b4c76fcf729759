package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"docrag/internal/contextutil"
)

// UpsertBatchSize is the maximum number of points sent per upsert request.
const UpsertBatchSize = 256

// indexedFields get a keyword payload index so that per-document deletes
// and per-source filters do not scan the collection.
var indexedFields = []string{FieldSourceID, FieldDocumentID, FieldDocumentKey}

// QdrantStore implements VectorStore using Qdrant.
type QdrantStore struct {
	client *qdrant.Client
}

// NewQdrantStore creates a new Qdrant vector store client.
// urlStr should be in the format "http://host:port" (e.g., "http://localhost:6333").
// The gRPC port (typically 6334) will be derived from the HTTP port.
func NewQdrantStore(urlStr string) (*QdrantStore, error) {
	host, port, err := grpcEndpoint(urlStr)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantStore{client: client}, nil
}

// grpcEndpoint derives the gRPC host and port from the Qdrant HTTP URL.
func grpcEndpoint(urlStr string) (string, int, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := 6334
	if parsedURL.Port() != "" {
		httpPort, err := strconv.Atoi(parsedURL.Port())
		if err != nil {
			return "", 0, fmt.Errorf("invalid Qdrant port %q: %w", parsedURL.Port(), err)
		}
		// gRPC listens next to the HTTP port
		port = httpPort + 1
	}
	return host, port, nil
}

// Close releases the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// UpsertChunks writes chunk points in batches of UpsertBatchSize and waits
// until Qdrant has applied each batch, so a chunk is only reported stored
// once its vector is searchable.
func (s *QdrantStore) UpsertChunks(ctx context.Context, collection string, chunks []ChunkPoint) error {
	logger := contextutil.LoggerFromContext(ctx)

	for _, b := range batches(len(chunks), UpsertBatchSize) {
		points := make([]*qdrant.PointStruct, 0, b.end-b.start)
		for _, c := range chunks[b.start:b.end] {
			points = append(points, chunkPoint(c))
		}

		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		if err != nil {
			logger.ErrorContext(ctx, "failed to upsert chunk points",
				"collection", collection,
				"document_id", chunks[b.start].DocumentID,
				"count", len(points),
				"error", err,
			)
			return fmt.Errorf("failed to upsert points %d-%d of %d: %w", b.start, b.end, len(chunks), err)
		}
	}

	if len(chunks) > 0 {
		logger.DebugContext(ctx, "upserted chunk points", "collection", collection, "count", len(chunks))
	}
	return nil
}

// DeleteDocument removes all points carrying documentKey in their payload.
func (s *QdrantStore) DeleteDocument(ctx context.Context, collection, documentKey string) error {
	if documentKey == "" {
		return nil
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(documentFilter(documentKey)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points of document %s: %w", documentKey, err)
	}

	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "deleted document points", "collection", collection, "document_key", documentKey)
	return nil
}

// CollectionExists checks if a collection exists.
func (s *QdrantStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	return exists, nil
}

// EnsureCollection creates the collection with cosine vectors of vectorSize
// when it is missing, or checks the vector size of an existing one. The
// payload indexes are created in both cases.
func (s *QdrantStore) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	logger := contextutil.LoggerFromContext(ctx)

	exists, err := s.CollectionExists(ctx, collection)
	if err != nil {
		return err
	}

	if !exists {
		logger.InfoContext(ctx, "creating collection", "collection", collection, "vector_size", vectorSize)
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(vectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	} else {
		info, err := s.client.GetCollectionInfo(ctx, collection)
		if err != nil {
			return fmt.Errorf("failed to get collection info: %w", err)
		}
		actual := collectionVectorSize(info)
		if actual == 0 {
			return fmt.Errorf("could not determine vector size of collection %s", collection)
		}
		if actual != vectorSize {
			return fmt.Errorf("collection vector size mismatch: expected %d, got %d", vectorSize, actual)
		}
	}

	for _, field := range indexedFields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: collection,
			Wait:           qdrant.PtrOf(true),
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create payload index on %s: %w", field, err)
		}
	}

	logger.InfoContext(ctx, "collection ready", "collection", collection, "vector_size", vectorSize, "indexed_fields", indexedFields)
	return nil
}

// collectionVectorSize returns the size of the unnamed vector of a
// collection, or 0 when the config does not carry one.
func collectionVectorSize(info *qdrant.CollectionInfo) int {
	if info == nil || info.GetConfig() == nil || info.GetConfig().GetParams() == nil {
		return 0
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return 0
	}
	return int(params.GetSize())
}

func chunkPoint(c ChunkPoint) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id:      qdrant.NewID(c.ChunkKey),
		Vectors: qdrant.NewVectors(c.Vector...),
		Payload: qdrant.NewValueMap(map[string]any{
			FieldSourceID:    c.SourceID,
			FieldDocumentID:  c.DocumentID,
			FieldDocumentKey: c.DocumentKey,
			FieldChunkIndex:  c.Index,
		}),
	}
}

func documentFilter(documentKey string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(FieldDocumentKey, documentKey)},
	}
}

type span struct {
	start, end int
}

// batches splits n items into consecutive spans of at most size items.
func batches(n, size int) []span {
	if size <= 0 {
		size = n
	}
	var out []span
	for start := 0; start < n; start += size {
		out = append(out, span{start: start, end: min(start+size, n)})
	}
	return out
}
