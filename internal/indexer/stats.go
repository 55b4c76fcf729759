package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"docrag/internal/storage"
)

const (
	// ChunkerVersion is the version identifier for the chunker implementation.
	// Update this when chunking logic changes significantly.
	ChunkerVersion = "v2.0"
	// TokensPerRune is an approximation for token counting (4 chars per token).
	TokensPerRune = 4.0
)

// CoverageStats contains statistics about the current chunk store.
type CoverageStats struct {
	// Documents is the total number of recorded documents.
	Documents int `json:"documents"`
	// DocumentsWith0Chunks is the number of documents that produced 0 chunks.
	DocumentsWith0Chunks int `json:"documents_with_0_chunks"`
	// Chunks is the total number of stored chunks.
	Chunks int `json:"chunks"`
	// ChunksEmbedded is the number of chunks whose vectors are stored.
	ChunksEmbedded int `json:"chunks_embedded"`
	// ChunksPending is the number of chunks waiting for an embedding retry.
	ChunksPending int `json:"chunks_pending"`
	// Sources breaks the totals down per source.
	Sources []SourceStats `json:"sources"`
	// ChunkTokenStats contains statistics about token counts per chunk.
	ChunkTokenStats ChunkTokenStats `json:"chunk_token_stats"`
	// ChunkerVersion is the version of the chunker used.
	ChunkerVersion string `json:"chunker_version"`
	// IndexVersion is a hash identifying the index build (chunker + embedding model + params).
	IndexVersion string `json:"index_version"`
}

// SourceStats contains per-source totals.
type SourceStats struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	Documents     int    `json:"documents"`
	Chunks        int    `json:"chunks"`
	ChunksPending int    `json:"chunks_pending"`
}

// ChunkTokenStats contains statistics about token counts in chunks.
type ChunkTokenStats struct {
	// Min is the minimum token count across all chunks.
	Min int `json:"min"`
	// Max is the maximum token count across all chunks.
	Max int `json:"max"`
	// Mean is the mean token count across all chunks.
	Mean float64 `json:"mean"`
	// P95 is the 95th percentile token count.
	P95 int `json:"p95"`
}

// GetCoverageStats computes coverage statistics from the store.
// params are the chunking parameters folded into the index version.
func GetCoverageStats(ctx context.Context, store storage.Store, embeddingModelName string, params ...string) (*CoverageStats, error) {
	stats := &CoverageStats{
		ChunkerVersion: ChunkerVersion,
		Sources:        []SourceStats{},
	}

	sources, err := store.Sources().ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	var tokenCounts []int
	for _, src := range sources {
		docs, err := store.Documents().ListBySource(ctx, src.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list documents of %s: %w", src.ID, err)
		}

		ss := SourceStats{ID: src.ID, Kind: src.Kind, Documents: len(docs)}
		for _, doc := range docs {
			chunks, err := store.Chunks().ListByDocument(ctx, doc.Key)
			if err != nil {
				return nil, fmt.Errorf("failed to list chunks of %s: %w", doc.DocumentID, err)
			}
			if len(chunks) == 0 {
				stats.DocumentsWith0Chunks++
			}
			for _, chunk := range chunks {
				ss.Chunks++
				if chunk.Embedded {
					stats.ChunksEmbedded++
				} else {
					ss.ChunksPending++
				}
				tokenCounts = append(tokenCounts, estimateTokens(chunk.Text))
			}
		}

		stats.Documents += ss.Documents
		stats.Chunks += ss.Chunks
		stats.ChunksPending += ss.ChunksPending
		stats.Sources = append(stats.Sources, ss)
	}

	stats.ChunkTokenStats = computeTokenStats(tokenCounts)

	// Index version hash (chunker_version + embedding_model + chunking_params)
	indexVersionInput := strings.Join(append([]string{ChunkerVersion, embeddingModelName}, params...), "|")
	hash := sha256.Sum256([]byte(indexVersionInput))
	stats.IndexVersion = hex.EncodeToString(hash[:])[:16] // 16 hex chars = 64 bits

	return stats, nil
}

// estimateTokens approximates the token count of text from its rune count.
func estimateTokens(text string) int {
	tokens := int(math.Round(float64(utf8.RuneCountInString(text)) / TokensPerRune))
	if tokens < 1 {
		tokens = 1 // Minimum 1 token
	}
	return tokens
}

// computeTokenStats computes min, max, mean, and p95 from token counts.
func computeTokenStats(tokenCounts []int) ChunkTokenStats {
	if len(tokenCounts) == 0 {
		return ChunkTokenStats{}
	}

	// Sort for percentile calculation
	sorted := make([]int, len(tokenCounts))
	copy(sorted, tokenCounts)
	sort.Ints(sorted)

	minCount := sorted[0]
	maxCount := sorted[len(sorted)-1]

	// Compute mean
	sum := 0
	for _, count := range tokenCounts {
		sum += count
	}
	mean := float64(sum) / float64(len(tokenCounts))

	// Nearest rank: the smallest value with at least 95% of counts at or below it
	rank := (len(sorted)*95 + 99) / 100
	p95 := sorted[rank-1]

	return ChunkTokenStats{
		Min:  minCount,
		Max:  maxCount,
		Mean: math.Round(mean*100) / 100, // Round to 2 decimal places
		P95:  p95,
	}
}
