package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect runs w until every path in want has been delivered and returns
// everything that was delivered.
func collect(t *testing.T, w *Watcher, want ...string) map[string]bool {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	seen := map[string]bool{}
	done := make(chan struct{})
	var once sync.Once

	go func() {
		_ = w.Run(ctx, func(_ context.Context, changed []string) error {
			mu.Lock()
			defer mu.Unlock()
			for _, c := range changed {
				seen[c] = true
			}
			for _, p := range want {
				if !seen[p] {
					return nil
				}
			}
			once.Do(func() { close(done) })
			return nil
		})
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()
	out := make(map[string]bool, len(seen))
	for k, v := range seen {
		out[k] = v
	}
	for _, p := range want {
		if !out[p] {
			t.Fatalf("timed out waiting for %s; saw %v", p, out)
		}
	}
	return out
}

func TestNew_WatchesTwoLevels(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "c", "deep"), 0o755))

	w, err := New(root, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, []string{root, filepath.Join(root, "c")}, w.Watched())
}

func TestNew_Errors(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), 0)
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = New(file, 0)
	assert.Error(t, err)
}

func TestRun_DeliversDebouncedChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "c"), 0o755))

	w, err := New(root, 50*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	a := filepath.Join(root, "a.png")
	d := filepath.Join(root, "c", "d.js")
	ignored := filepath.Join(root, "manifest.xml")
	w.Ignore(ignored)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(ignored, []byte("x"), 0o644)
		_ = os.WriteFile(a, []byte("x"), 0o644)
		_ = os.WriteFile(d, []byte("x"), 0o644)
	}()

	seen := collect(t, w, a, d)
	assert.True(t, seen[a])
	assert.True(t, seen[d])
	assert.False(t, seen[ignored])
}

func TestRun_TracksNewSubdirectories(t *testing.T) {
	root := t.TempDir()

	w, err := New(root, 30*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	sub := filepath.Join(root, "new")
	nested := filepath.Join(sub, "x.css")

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.Mkdir(sub, 0o755)
		// Wait for the directory watch to be registered before writing into it.
		time.Sleep(300 * time.Millisecond)
		_ = os.WriteFile(nested, []byte("x"), 0o644)
	}()

	seen := collect(t, w, sub, nested)
	assert.True(t, seen[nested])
	assert.Contains(t, w.Watched(), sub)
}

func TestRun_StopsOnCancel(t *testing.T) {
	w, err := New(t.TempDir(), 0)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, w.Run(ctx, func(context.Context, []string) error { return nil }))
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
