package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"docrag/internal/chunker"
	"docrag/internal/errs"
)

// CodeStrategy selects how a code file is cut into chunks.
type CodeStrategy string

const (
	// StrategyLines cuts files into fixed windows of whole lines.
	StrategyLines CodeStrategy = "lines"
	// StrategyStructural runs the whole file through the separator-driven splitter.
	StrategyStructural CodeStrategy = "structural"
)

// DefaultLineWindow is the number of lines per chunk for StrategyLines.
const DefaultLineWindow = 200

// DefaultCodeExtensions is used when CodeOptions.Extensions is empty.
var DefaultCodeExtensions = []string{".cs"}

// CodeOptions configures a CodeSource.
type CodeOptions struct {
	Extensions   []string
	Strategy     CodeStrategy // Defaults to StrategyLines
	LineWindow   int          // Defaults to DefaultLineWindow
	ChunkSize    int          // Used by StrategyStructural
	ChunkOverlap int          // Used by StrategyStructural
}

// CodeSource ingests source-code files. Versions are modification times,
// so touching a file re-chunks it.
type CodeSource struct {
	base
	strategy   CodeStrategy
	lineWindow int
	splitter   *chunker.Splitter
}

// NewCodeSource creates a code-file source rooted at root.
func NewCodeSource(root string, opts CodeOptions) (*CodeSource, error) {
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultCodeExtensions
	}

	b, err := newBase(KindCode, root, exts, modTimeFingerprint)
	if err != nil {
		return nil, err
	}
	if len(b.extensions) == 0 {
		return nil, &errs.ValidationError{Field: "extensions", Message: "at least one code extension is required"}
	}

	s := &CodeSource{
		base:       b,
		strategy:   opts.Strategy,
		lineWindow: opts.LineWindow,
	}
	if s.strategy == "" {
		s.strategy = StrategyLines
	}
	if s.lineWindow == 0 {
		s.lineWindow = DefaultLineWindow
	}
	if s.lineWindow < 0 {
		return nil, &errs.ValidationError{Field: "line_window", Message: "must be positive"}
	}

	switch s.strategy {
	case StrategyLines:
	case StrategyStructural:
		s.splitter, err = chunker.NewSplitter(opts.ChunkSize, opts.ChunkOverlap, chunker.CodeSeparators)
		if err != nil {
			return nil, err
		}
	default:
		return nil, &errs.ValidationError{Field: "strategy", Message: fmt.Sprintf("unknown code chunk strategy %q", s.strategy)}
	}

	return s, nil
}

// Strategy returns the chunking strategy of the source.
func (s *CodeSource) Strategy() CodeStrategy {
	return s.strategy
}

// ExtractChunks reads the file and cuts it according to the source strategy.
func (s *CodeSource) ExtractChunks(ctx context.Context, doc Descriptor) ([]Draft, error) {
	content, err := os.ReadFile(doc.Path)
	if err != nil {
		return nil, errs.NewDocumentError(errs.ErrSourceUnreadable, s.id, doc.DocumentID, err)
	}

	var pieces []string
	if s.strategy == StrategyStructural {
		pieces = s.splitter.Split(string(content))
	} else {
		pieces = WindowLines(string(content), s.lineWindow)
	}
	return drafts(pieces), nil
}

// WindowLines groups text into consecutive windows of size lines joined by
// newlines. Windows holding only whitespace are dropped.
func WindowLines(text string, size int) []string {
	if text == "" {
		return []string{}
	}
	if size <= 0 {
		size = DefaultLineWindow
	}

	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}

	windows := []string{}
	for start := 0; start < len(lines); start += size {
		end := min(start+size, len(lines))
		w := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(w) == "" {
			continue
		}
		windows = append(windows, w)
	}
	return windows
}

func modTimeFingerprint(path string, info fs.FileInfo) (string, error) {
	if info == nil {
		st, err := os.Stat(path)
		if err != nil {
			return "", err
		}
		info = st
	}
	return info.ModTime().UTC().Format(time.RFC3339Nano), nil
}

// drafts numbers pieces in order.
func drafts(pieces []string) []Draft {
	out := make([]Draft, 0, len(pieces))
	for _, p := range pieces {
		out = append(out, Draft{Index: len(out), Text: p})
	}
	return out
}
