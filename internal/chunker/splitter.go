// Package chunker splits document text into bounded chunks for embedding.
//
// Two splitters live here. Splitter is the structural one: it prefers the
// given separators (code block and statement delimiters by default) and only
// falls back to fixed-size windows when no separator can bring a piece under
// the chunk size. SplitParagraphs is the prose splitter used for PDF and
// Markdown text. All sizes are measured in runes.
package chunker

import (
	"strings"
	"unicode/utf8"

	"docrag/internal/errs"
)

// CodeSeparators are the default separators for source code, in priority
// order: block open, block close, statement end.
var CodeSeparators = []string{"{", "}", ";"}

// Splitter splits text by an ordered list of separators with a fixed-window fallback.
// A Splitter holds no state between calls and is safe for concurrent use.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// NewSplitter validates the parameters and returns a Splitter.
// It returns an errs.ErrConfiguration error if chunkSize <= 0 or overlap < 0.
func NewSplitter(chunkSize, overlap int, separators []string) (*Splitter, error) {
	if err := Validate(chunkSize, overlap); err != nil {
		return nil, err
	}
	seps := make([]string, 0, len(separators))
	for _, s := range separators {
		// An empty separator would match everywhere and never advance.
		if s != "" {
			seps = append(seps, s)
		}
	}
	return &Splitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: seps,
	}, nil
}

// Validate checks chunk size and overlap.
func Validate(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return &errs.ValidationError{Field: "chunk_size", Message: "must be greater than 0"}
	}
	if overlap < 0 {
		return &errs.ValidationError{Field: "chunk_overlap", Message: "must not be negative"}
	}
	return nil
}

// Split is a convenience wrapper around NewSplitter and Splitter.Split.
func Split(text string, chunkSize, overlap int, separators []string) ([]string, error) {
	s, err := NewSplitter(chunkSize, overlap, separators)
	if err != nil {
		return nil, err
	}
	return s.Split(text), nil
}

// ChunkSize returns the configured maximum chunk length in runes.
func (s *Splitter) ChunkSize() int {
	return s.chunkSize
}

// Split returns the chunks of text in left-to-right order.
// After the fallback pass no chunk is longer than the chunk size.
func (s *Splitter) Split(text string) []string {
	if text == "" {
		return []string{}
	}

	pieces := s.splitBy(text, s.separators)

	chunks := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		if runeLen(piece) > s.chunkSize {
			chunks = append(chunks, s.window(piece)...)
			continue
		}
		chunks = append(chunks, piece)
	}
	return chunks
}

// splitBy splits on seps[0] and recurses with seps[1:] into pieces that are
// still too large. Depth is bounded by len(seps).
func (s *Splitter) splitBy(text string, seps []string) []string {
	if len(seps) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	sep := seps[0]
	rest := seps[1:]

	var result []string
	for _, piece := range splitKeepingSeparator(text, sep) {
		if runeLen(piece) > s.chunkSize && len(rest) > 0 {
			result = append(result, s.splitBy(piece, rest)...)
			continue
		}
		result = append(result, piece)
	}
	return result
}

// splitKeepingSeparator splits text on every literal occurrence of sep.
// The separator stays attached to the piece before it. Whitespace-only
// pieces are dropped; without any occurrence the trimmed text is returned.
func splitKeepingSeparator(text, sep string) []string {
	var pieces []string
	remaining := text
	for {
		idx := strings.Index(remaining, sep)
		if idx < 0 {
			break
		}
		piece := strings.TrimSpace(remaining[:idx]) + sep
		if strings.TrimSpace(piece) != "" {
			pieces = append(pieces, piece)
		}
		remaining = remaining[idx+len(sep):]
	}
	if tail := strings.TrimSpace(remaining); tail != "" {
		pieces = append(pieces, tail)
	}
	return pieces
}

// window breaks text into windows of chunkSize runes advancing by
// max(1, chunkSize-overlap). The last window is truncated.
func (s *Splitter) window(text string) []string {
	runes := []rune(text)
	step := s.chunkSize - s.overlap
	if step < 1 {
		step = 1
	}

	var windows []string
	for offset := 0; offset < len(runes); offset += step {
		end := offset + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		windows = append(windows, string(runes[offset:end]))
	}
	return windows
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
