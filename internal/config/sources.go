package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"docrag/internal/errs"
	"docrag/internal/source"
)

// SourceConfig describes one document source. Zero-valued chunking fields
// fall back to the global settings.
type SourceConfig struct {
	Kind          string   `yaml:"kind"`
	Root          string   `yaml:"root"`
	Extensions    []string `yaml:"extensions,omitempty"`
	Strategy      string   `yaml:"strategy,omitempty"`
	LineWindow    int      `yaml:"line_window,omitempty"`
	ChunkSize     int      `yaml:"chunk_size,omitempty"`
	ChunkOverlap  int      `yaml:"chunk_overlap,omitempty"`
	ParagraphSize int      `yaml:"paragraph_size,omitempty"`
}

// sourcesFile is the layout of SOURCES_FILE.
type sourcesFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

// LoadSourcesFile reads a YAML source registry:
//
//	sources:
//	  - kind: code
//	    root: ./src
//	    extensions: [.cs, .go]
//	  - kind: pdf
//	    root: /data/manuals
func LoadSourcesFile(path string) ([]SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &errs.ValidationError{Field: "SOURCES_FILE", Message: fmt.Sprintf("%s does not exist", path)}
		}
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &errs.ValidationError{Field: "SOURCES_FILE", Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	return f.Sources, nil
}

func validateSources(sources []SourceConfig) error {
	for i, s := range sources {
		switch source.Kind(s.Kind) {
		case source.KindPDF, source.KindCode, source.KindMarkdown:
		default:
			return &errs.ValidationError{Field: fmt.Sprintf("sources[%d].kind", i), Message: fmt.Sprintf("unknown source kind %q", s.Kind)}
		}
		if s.Root == "" {
			return &errs.ValidationError{Field: fmt.Sprintf("sources[%d].root", i), Message: "is required"}
		}
	}
	return nil
}

// BuildSources creates the configured sources. Two entries resolving to
// the same source ID are rejected.
func (c *Config) BuildSources() ([]source.Source, error) {
	out := make([]source.Source, 0, len(c.Sources))
	seen := make(map[string]struct{}, len(c.Sources))

	for _, sc := range c.Sources {
		src, err := c.buildSource(sc)
		if err != nil {
			return nil, fmt.Errorf("source %s %s: %w", sc.Kind, sc.Root, err)
		}
		if _, dup := seen[src.ID()]; dup {
			return nil, &errs.ValidationError{Field: "sources", Message: fmt.Sprintf("duplicate source %s", src.ID())}
		}
		seen[src.ID()] = struct{}{}
		out = append(out, src)
	}
	return out, nil
}

func (c *Config) buildSource(sc SourceConfig) (source.Source, error) {
	paragraphSize := orDefault(sc.ParagraphSize, c.PDFParagraphSize)

	switch source.Kind(sc.Kind) {
	case source.KindPDF:
		return source.NewPDFSource(sc.Root, source.PDFOptions{ParagraphSize: paragraphSize})
	case source.KindMarkdown:
		return source.NewMarkdownSource(sc.Root, source.MarkdownOptions{ParagraphSize: paragraphSize})
	case source.KindCode:
		exts := sc.Extensions
		if len(exts) == 0 {
			exts = c.CodeExtensions
		}
		strategy := sc.Strategy
		if strategy == "" {
			strategy = c.CodeStrategy
		}
		return source.NewCodeSource(sc.Root, source.CodeOptions{
			Extensions:   exts,
			Strategy:     source.CodeStrategy(strategy),
			LineWindow:   orDefault(sc.LineWindow, c.CodeLineWindow),
			ChunkSize:    orDefault(sc.ChunkSize, c.ChunkSize),
			ChunkOverlap: orDefault(sc.ChunkOverlap, c.ChunkOverlap),
		})
	default:
		return nil, &errs.ValidationError{Field: "kind", Message: fmt.Sprintf("unknown source kind %q", sc.Kind)}
	}
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
