package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/source"
)

func newCodeSource(t *testing.T, root string) *source.CodeSource {
	t.Helper()
	src, err := source.NewCodeSource(root, source.CodeOptions{Extensions: []string{".cs"}})
	require.NoError(t, err)
	return src
}

// startWatcher runs a watcher over sources and returns the channel its
// triggers are reported on.
func startWatcher(t *testing.T, sources ...source.Source) <-chan string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	triggered := make(chan string, 16)
	w, err := New(ctx, sources, func(_ context.Context, sourceID string) {
		triggered <- sourceID
	}, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return triggered
}

func waitTrigger(t *testing.T, triggered <-chan string) string {
	t.Helper()
	select {
	case id := <-triggered:
		return id
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for trigger")
		return ""
	}
}

func TestWatcher_TriggersOnWrite(t *testing.T) {
	root := t.TempDir()
	src := newCodeSource(t, root)
	triggered := startWatcher(t, src)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.cs"), []byte("class A {}"), 0o644))

	assert.Equal(t, src.ID(), waitTrigger(t, triggered))
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	src := newCodeSource(t, root)
	triggered := startWatcher(t, src)

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	assert.Equal(t, src.ID(), waitTrigger(t, triggered))

	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.cs"), []byte("class B {}"), 0o644))
	assert.Equal(t, src.ID(), waitTrigger(t, triggered))
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	root := t.TempDir()
	src := newCodeSource(t, root)
	triggered := startWatcher(t, src)

	path := filepath.Join(root, "a.cs")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte('a' + i)}, 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	assert.Equal(t, src.ID(), waitTrigger(t, triggered))
	select {
	case id := <-triggered:
		t.Errorf("unexpected second trigger for %s", id)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_Handle(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "vendor")
	require.NoError(t, os.Mkdir(nested, 0o755))

	outer := newCodeSource(t, root)
	inner := newCodeSource(t, nested)
	w := &Watcher{sources: []source.Source{outer, inner}}
	ctx := context.Background()

	tests := []struct {
		name   string
		event  fsnotify.Event
		want   string
		wantOK bool
	}{
		{
			name:   "matching write",
			event:  fsnotify.Event{Name: filepath.Join(root, "a.cs"), Op: fsnotify.Write},
			want:   outer.ID(),
			wantOK: true,
		},
		{
			name:  "other extension",
			event: fsnotify.Event{Name: filepath.Join(root, "a.txt"), Op: fsnotify.Write},
		},
		{
			name:  "chmod only",
			event: fsnotify.Event{Name: filepath.Join(root, "a.cs"), Op: fsnotify.Chmod},
		},
		{
			name:   "removed directory",
			event:  fsnotify.Event{Name: filepath.Join(root, "old"), Op: fsnotify.Remove},
			want:   outer.ID(),
			wantOK: true,
		},
		{
			name:   "deepest root wins",
			event:  fsnotify.Event{Name: filepath.Join(nested, "lib.cs"), Op: fsnotify.Create},
			want:   inner.ID(),
			wantOK: true,
		},
		{
			name:  "outside every root",
			event: fsnotify.Event{Name: filepath.Join(os.TempDir(), "elsewhere.cs"), Op: fsnotify.Write},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := w.handle(ctx, tt.event)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_MissingRootIsSkipped(t *testing.T) {
	src := newCodeSource(t, filepath.Join(t.TempDir(), "missing"))

	w, err := New(context.Background(), []source.Source{src}, func(context.Context, string) {})
	require.NoError(t, err)
	assert.Equal(t, DefaultDebounce, w.debounce)
	require.NoError(t, w.fsw.Close())
}
