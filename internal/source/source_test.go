package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/errs"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func documentIDs(descs []Descriptor) []string {
	ids := make([]string, len(descs))
	for i, d := range descs {
		ids[i] = d.DocumentID
	}
	return ids
}

func TestID(t *testing.T) {
	assert.Equal(t, "pdf:/data/docs", ID(KindPDF, "/data/docs"))
}

func TestNewSource_RequiresRoot(t *testing.T) {
	_, err := NewCodeSource("  ", CodeOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestIdentify(t *testing.T) {
	root := t.TempDir()
	src, err := NewCodeSource(root, CodeOptions{})
	require.NoError(t, err)

	id, err := src.Identify(filepath.Join(root, "a", "b", "Main.cs"))
	require.NoError(t, err)
	assert.Equal(t, "a/b/Main.cs", id)

	again, err := src.Identify(filepath.Join(root, "a", "b", "Main.cs"))
	require.NoError(t, err)
	assert.Equal(t, id, again)

	_, err = src.Identify(filepath.Join(filepath.Dir(root), "elsewhere.cs"))
	assert.Error(t, err)

	_, err = src.Identify(root)
	assert.Error(t, err)
}

func TestSourceAccessors(t *testing.T) {
	root := t.TempDir()
	src, err := NewPDFSource(root, PDFOptions{})
	require.NoError(t, err)

	assert.Equal(t, KindPDF, src.Kind())
	assert.Equal(t, root, src.Root())
	assert.Equal(t, "pdf:"+root, src.ID())
}

func TestListChangedOrNew_Scanning(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Program.cs", "class Program {}")
	writeFile(t, root, "lib/Util.CS", "class Util {}")
	writeFile(t, root, "lib/notes.txt", "not code")
	writeFile(t, root, ".git/objects/Hidden.cs", "class Hidden {}")
	writeFile(t, root, "bin/.cache/Also.cs", "class Also {}")

	src, err := NewCodeSource(root, CodeOptions{})
	require.NoError(t, err)

	changed, err := src.ListChangedOrNew(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Program.cs", "lib/Util.CS"}, documentIDs(changed))
	for _, d := range changed {
		assert.NoError(t, d.Err)
		assert.NotEmpty(t, d.Version)
		assert.True(t, filepath.IsAbs(d.Path))
	}
}

func TestListChangedOrNew_Diff(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	a := writeFile(t, root, "A.cs", "a")
	b := writeFile(t, root, "B.cs", "b")
	writeFile(t, root, "C.cs", "c")
	touch(t, a, base)
	touch(t, b, base)

	src, err := NewCodeSource(root, CodeOptions{})
	require.NoError(t, err)
	ctx := context.Background()

	first, err := src.ListChangedOrNew(ctx, nil)
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, base.Format(time.RFC3339Nano), first[0].Version)

	// A unchanged, B touched, C new to the caller
	existing := []Descriptor{first[0], first[1]}
	touch(t, b, base.Add(time.Minute))

	changed, err := src.ListChangedOrNew(ctx, existing)
	require.NoError(t, err)
	assert.Equal(t, []string{"B.cs", "C.cs"}, documentIDs(changed))
	assert.Equal(t, base.Add(time.Minute).Format(time.RFC3339Nano), changed[0].Version)
}

func TestListDeleted(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.pdf", "%PDF-1.4 keep")
	gone := writeFile(t, root, "sub/gone.pdf", "%PDF-1.4 gone")

	src, err := NewPDFSource(root, PDFOptions{})
	require.NoError(t, err)
	ctx := context.Background()

	existing, err := src.ListChangedOrNew(ctx, nil)
	require.NoError(t, err)
	require.Len(t, existing, 2)

	deleted, err := src.ListDeleted(ctx, existing)
	require.NoError(t, err)
	assert.Empty(t, deleted)

	require.NoError(t, os.Remove(gone))

	deleted, err = src.ListDeleted(ctx, existing)
	require.NoError(t, err)
	assert.Equal(t, []string{"sub/gone.pdf"}, documentIDs(deleted))
}

func TestListing_MissingRootIsUnreadable(t *testing.T) {
	root := filepath.Join(t.TempDir(), "missing")
	src, err := NewPDFSource(root, PDFOptions{})
	require.NoError(t, err)

	existing := []Descriptor{{DocumentID: "a.pdf", Version: "x"}}

	_, err = src.ListChangedOrNew(context.Background(), existing)
	assert.ErrorIs(t, err, errs.ErrSourceUnreadable)

	_, err = src.ListDeleted(context.Background(), existing)
	assert.ErrorIs(t, err, errs.ErrSourceUnreadable)
}

func TestListing_RootIsFile(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "file.md", "# x")
	src, err := NewMarkdownSource(file, MarkdownOptions{})
	require.NoError(t, err)

	_, err = src.ListChangedOrNew(context.Background(), nil)
	assert.ErrorIs(t, err, errs.ErrSourceUnreadable)
}

func TestListing_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "# a")
	src, err := NewMarkdownSource(root, MarkdownOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = src.ListChangedOrNew(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
