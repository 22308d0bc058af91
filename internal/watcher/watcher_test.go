package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, root string) *Watcher {
	t.Helper()
	w, err := New(root, Options{Debounce: 50 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = w.Start(ctx) }()
	t.Cleanup(w.Stop)

	// Give the watch set time to establish.
	time.Sleep(100 * time.Millisecond)
	return w
}

func waitForBatch(t *testing.T, w *Watcher) []FileEvent {
	t.Helper()
	select {
	case batch := <-w.Events():
		return batch
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch events")
		return nil
	}
}

func TestWatcherReportsCreateAndModify(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "new.go"), []byte("package a\n"), 0o644))

	batch := waitForBatch(t, w)
	require.NotEmpty(t, batch)
	assert.Equal(t, "new.go", batch[0].Path)
}

func TestWatcherReportsDelete(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "gone.go")
	require.NoError(t, os.WriteFile(path, []byte("package a\n"), 0o644))

	w := startWatcher(t, root)
	require.NoError(t, os.Remove(path))

	batch := waitForBatch(t, w)
	require.NotEmpty(t, batch)
	assert.Equal(t, "gone.go", batch[0].Path)
	assert.Equal(t, OpDelete, batch[0].Op)
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	sub := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "inner.go"), []byte("package pkg\n"), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case batch := <-w.Events():
			for _, ev := range batch {
				if ev.Path == "pkg/inner.go" {
					return
				}
			}
		case <-deadline:
			t.Fatal("file in new directory never reported")
		}
	}
}

func TestWatcherIgnoresDataDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".codescope"), 0o755))
	w := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".codescope", "index.db"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "real.go"), []byte("package a\n"), 0o644))

	batch := waitForBatch(t, w)
	for _, ev := range batch {
		assert.NotContains(t, ev.Path, ".codescope")
	}
}
