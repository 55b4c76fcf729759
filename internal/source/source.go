package source

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"docrag/internal/errs"
)

// Kind names a source variant. It is the prefix of every source ID.
type Kind string

const (
	KindPDF      Kind = "pdf"
	KindCode     Kind = "code"
	KindMarkdown Kind = "markdown"
)

// Descriptor identifies one document of a source at a given version.
type Descriptor struct {
	DocumentID string // Slash-separated path relative to the source root
	Path       string // Absolute file path
	Version    string // Opaque fingerprint
	Err        error  // Set when the document could not be fingerprinted
}

// Draft is chunk text produced by a source before the coordinator assigns
// it an identity.
type Draft struct {
	Index int
	Text  string
}

// Source enumerates documents under a root and extracts their chunks.
// Listing is a pure diff against the descriptors the caller already holds;
// a Source never persists state.
type Source interface {
	ID() string
	Kind() Kind
	Root() string
	Identify(path string) (string, error)
	ListChangedOrNew(ctx context.Context, existing []Descriptor) ([]Descriptor, error)
	ListDeleted(ctx context.Context, existing []Descriptor) ([]Descriptor, error)
	ExtractChunks(ctx context.Context, doc Descriptor) ([]Draft, error)
}

// ID builds the source ID for a kind and root.
func ID(kind Kind, root string) string {
	return string(kind) + ":" + root
}

// fingerprintFunc computes the version of a file.
type fingerprintFunc func(path string, info fs.FileInfo) (string, error)

// base implements the listing half of Source for a filesystem root. Each
// variant embeds it with its own extensions and fingerprint.
type base struct {
	id          string
	kind        Kind
	root        string
	extensions  []string
	fingerprint fingerprintFunc
}

func newBase(kind Kind, root string, extensions []string, fingerprint fingerprintFunc) (base, error) {
	if strings.TrimSpace(root) == "" {
		return base{}, &errs.ValidationError{Field: "root", Message: "source root is required"}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return base{}, fmt.Errorf("failed to resolve source root %s: %w", root, err)
	}
	return base{
		id:          ID(kind, abs),
		kind:        kind,
		root:        abs,
		extensions:  normalizeExtensions(extensions),
		fingerprint: fingerprint,
	}, nil
}

func (b base) ID() string   { return b.id }
func (b base) Kind() Kind   { return b.kind }
func (b base) Root() string { return b.root }

// Identify maps an absolute path under the root to its document ID.
func (b base) Identify(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	rel, err := filepath.Rel(b.root, abs)
	if err != nil {
		return "", fmt.Errorf("failed to compute relative path for %s: %w", path, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside source root %s", path, b.root)
	}
	return filepath.ToSlash(rel), nil
}

// Matches reports whether path has one of the source's extensions.
func (b base) Matches(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range b.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ListChangedOrNew returns descriptors for files whose fingerprint differs
// from the one in existing, or that existing does not contain.
func (b base) ListChangedOrNew(ctx context.Context, existing []Descriptor) ([]Descriptor, error) {
	files, err := b.scan(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[string]string, len(existing))
	for _, d := range existing {
		known[d.DocumentID] = d.Version
	}

	changed := []Descriptor{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		version, err := b.fingerprint(f.path, f.info)
		if err != nil {
			changed = append(changed, Descriptor{
				DocumentID: f.documentID,
				Path:       f.path,
				Err:        errs.NewDocumentError(errs.ErrSourceUnreadable, b.id, f.documentID, err),
			})
			continue
		}

		if prev, ok := known[f.documentID]; ok && prev == version {
			continue
		}
		changed = append(changed, Descriptor{
			DocumentID: f.documentID,
			Path:       f.path,
			Version:    version,
		})
	}
	return changed, nil
}

// ListDeleted returns the descriptors of existing whose file is gone.
func (b base) ListDeleted(ctx context.Context, existing []Descriptor) ([]Descriptor, error) {
	files, err := b.scan(ctx)
	if err != nil {
		return nil, err
	}

	present := make(map[string]struct{}, len(files))
	for _, f := range files {
		present[f.documentID] = struct{}{}
	}

	deleted := []Descriptor{}
	for _, d := range existing {
		if _, ok := present[d.DocumentID]; !ok {
			deleted = append(deleted, d)
		}
	}
	return deleted, nil
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
