package watch

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDebounce = 50 * time.Millisecond

func newTestWatcher(t *testing.T, pattern string, opts ...Option) *Watcher {
	t.Helper()
	w, err := NewWatcher(pattern, append([]Option{WithDebounce(testDebounce)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

// waitFor reads change batches until one contains path.
func waitFor(t *testing.T, w *Watcher, path string) Change {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case change := <-w.Changes():
			if slices.Contains(change.Paths, path) {
				return change
			}
		case <-deadline:
			t.Fatalf("no change reported for %s", path)
			return Change{}
		}
	}
}

// expectQuiet fails if any change arrives within a few debounce periods.
func expectQuiet(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case change := <-w.Changes():
		t.Fatalf("unexpected change: %v", change.Paths)
	case <-time.After(6 * testDebounce):
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestNewWatcher(t *testing.T) {
	root := t.TempDir()

	w := newTestWatcher(t, filepath.Join(root, "src", "*.txt"))
	assert.Equal(t, filepath.Join(root, "src"), w.RootDir())
	assert.Equal(t, filepath.Join(root, "src", "*.txt"), w.Pattern())

	_, err := NewWatcher(filepath.Join(root, "[unclosed"))
	assert.Error(t, err)
}

func TestWatcher_MatchingWrite(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	w := newTestWatcher(t, filepath.Join(root, "src", "*.txt"))

	writeFile(t, filepath.Join(root, "src", "notes.log"), "ignored")
	expectQuiet(t, w)

	target := filepath.Join(root, "src", "a.txt")
	writeFile(t, target, "hello")
	change := waitFor(t, w, target)
	assert.False(t, change.Timestamp.IsZero())
	assert.True(t, slices.IsSorted(change.Paths))
}

func TestWatcher_NewDirectory(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, filepath.Join(root, "**", "parser"))

	caseDir := filepath.Join(root, "case")
	require.NoError(t, os.Mkdir(caseDir, 0755))
	waitFor(t, w, caseDir)

	// The new directory is watched, so files created inside it are seen.
	target := filepath.Join(caseDir, "parser")
	writeFile(t, target, "p")
	waitFor(t, w, target)
}

func TestWatcher_IgnoredPathsDoNotFire(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "out")
	require.NoError(t, os.MkdirAll(out, 0755))
	ignore := func(path string) bool {
		return path == out || strings.HasPrefix(path, out+string(filepath.Separator))
	}
	w := newTestWatcher(t, filepath.Join(root, "**", "*"), WithIgnore(ignore))

	writeFile(t, filepath.Join(out, "1"), "staged")
	require.NoError(t, os.RemoveAll(out))
	require.NoError(t, os.Mkdir(out, 0755))
	writeFile(t, filepath.Join(out, "2"), "staged")
	expectQuiet(t, w)

	source := filepath.Join(root, "a")
	writeFile(t, source, "A")
	change := waitFor(t, w, source)
	for _, p := range change.Paths {
		assert.False(t, ignore(p), "ignored path reported: %s", p)
	}
}

func TestWatcher_RunStopsOnCancel(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, filepath.Join(root, "*"))

	ctx, cancel := context.WithCancel(context.Background())
	seen := make(chan Change, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, change Change) {
			seen <- change
		}, nil)
	}()

	writeFile(t, filepath.Join(root, "a"), "A")
	select {
	case change := <-seen:
		assert.Contains(t, change.Paths, filepath.Join(root, "a"))
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not deliver the change")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// Run closed the watcher; closing again is a no-op.
	assert.NoError(t, w.Close())
}

func TestWatcher_RunReturnsDeadlineExceeded(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, filepath.Join(root, "*"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := w.Run(ctx, func(context.Context, Change) {}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
