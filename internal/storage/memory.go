package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store. It is used to run ingestion passes in
// isolation and counts every write so tests can assert that a pass was a
// no-op.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	sources   map[string]SourceRecord
	documents map[string]DocumentRecord // by key
	chunks    map[string]ChunkRecord    // by key
	writes    int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

func newMemState() *memState {
	return &memState{
		sources:   make(map[string]SourceRecord),
		documents: make(map[string]DocumentRecord),
		chunks:    make(map[string]ChunkRecord),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.sources {
		c.sources[k] = v
	}
	for k, v := range s.documents {
		c.documents[k] = v
	}
	for k, v := range s.chunks {
		c.chunks[k] = v
	}
	c.writes = s.writes
	return c
}

// Writes returns the number of write operations applied so far.
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.writes
}

// Sources returns the source view of the store.
func (m *MemoryStore) Sources() SourceStore { return memSources{m} }

// Documents returns the document view of the store.
func (m *MemoryStore) Documents() DocumentStore { return memDocuments{m} }

// Chunks returns the chunk view of the store.
func (m *MemoryStore) Chunks() ChunkStore { return memChunks{m} }

// InTx runs fn against a copy of the state and swaps it in when fn succeeds.
// Other callers are blocked until fn returns.
func (m *MemoryStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &MemoryStore{state: m.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

type memSources struct{ m *MemoryStore }

func (v memSources) Register(ctx context.Context, source SourceRecord) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if _, ok := v.m.state.sources[source.ID]; ok {
		return nil
	}
	source.CreatedAt = time.Now().UTC()
	v.m.state.sources[source.ID] = source
	v.m.state.writes++
	return nil
}

func (v memSources) ListAll(ctx context.Context) ([]SourceRecord, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	out := make([]SourceRecord, 0, len(v.m.state.sources))
	for _, s := range v.m.state.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memDocuments struct{ m *MemoryStore }

func (v memDocuments) ListBySource(ctx context.Context, sourceID string) ([]DocumentRecord, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	out := []DocumentRecord{}
	for _, d := range v.m.state.documents {
		if d.SourceID == sourceID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out, nil
}

func (v memDocuments) GetBySourceAndID(ctx context.Context, sourceID, documentID string) (*DocumentRecord, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if d, ok := v.m.state.find(sourceID, documentID); ok {
		return &d, nil
	}
	return nil, ErrNotFound
}

func (s *memState) find(sourceID, documentID string) (DocumentRecord, bool) {
	for _, d := range s.documents {
		if d.SourceID == sourceID && d.DocumentID == documentID {
			return d, true
		}
	}
	return DocumentRecord{}, false
}

func (v memDocuments) Upsert(ctx context.Context, doc *DocumentRecord) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()

	if _, ok := v.m.state.sources[doc.SourceID]; !ok {
		return fmt.Errorf("failed to upsert document: unknown source %s", doc.SourceID)
	}

	if existing, ok := v.m.state.find(doc.SourceID, doc.DocumentID); ok {
		doc.Key = existing.Key
	} else if doc.Key == "" {
		key, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate document key: %w", err)
		}
		doc.Key = key.String()
	}
	doc.UpdatedAt = time.Now().UTC()
	v.m.state.documents[doc.Key] = *doc
	v.m.state.writes++
	return nil
}

func (v memDocuments) Delete(ctx context.Context, key string) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if _, ok := v.m.state.documents[key]; !ok {
		return nil
	}
	delete(v.m.state.documents, key)
	for k, c := range v.m.state.chunks {
		if c.DocumentKey == key {
			delete(v.m.state.chunks, k)
		}
	}
	v.m.state.writes++
	return nil
}

type memChunks struct{ m *MemoryStore }

func (v memChunks) Insert(ctx context.Context, chunk *ChunkRecord) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if _, ok := v.m.state.documents[chunk.DocumentKey]; !ok {
		return fmt.Errorf("failed to insert chunk: unknown document %s", chunk.DocumentKey)
	}
	if _, ok := v.m.state.chunks[chunk.Key]; ok {
		return fmt.Errorf("failed to insert chunk: duplicate key %s", chunk.Key)
	}
	v.m.state.chunks[chunk.Key] = *chunk
	v.m.state.writes++
	return nil
}

func (v memChunks) DeleteByDocument(ctx context.Context, documentKey string) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	deleted := false
	for k, c := range v.m.state.chunks {
		if c.DocumentKey == documentKey {
			delete(v.m.state.chunks, k)
			deleted = true
		}
	}
	if deleted {
		v.m.state.writes++
	}
	return nil
}

func (v memChunks) ListByDocument(ctx context.Context, documentKey string) ([]ChunkRecord, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	out := []ChunkRecord{}
	for _, c := range v.m.state.chunks {
		if c.DocumentKey == documentKey {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (v memChunks) ListUnembedded(ctx context.Context, sourceID string) ([]ChunkRecord, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	out := []ChunkRecord{}
	for _, c := range v.m.state.chunks {
		if c.Embedded {
			continue
		}
		if d, ok := v.m.state.documents[c.DocumentKey]; ok && d.SourceID == sourceID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DocumentKey != out[j].DocumentKey {
			return out[i].DocumentKey < out[j].DocumentKey
		}
		return out[i].Index < out[j].Index
	})
	return out, nil
}

func (v memChunks) MarkEmbedded(ctx context.Context, keys []string) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if len(keys) == 0 {
		return nil
	}
	for _, k := range keys {
		if c, ok := v.m.state.chunks[k]; ok {
			c.Embedded = true
			v.m.state.chunks[k] = c
		}
	}
	v.m.state.writes++
	return nil
}

func (v memChunks) GetByKey(ctx context.Context, key string) (*ChunkRecord, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if c, ok := v.m.state.chunks[key]; ok {
		return &c, nil
	}
	return nil, ErrNotFound
}
