package workspace

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newManager(t *testing.T) *Manager {
	m, err := NewManager(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return m
}

func TestAcquireRelease(t *testing.T) {
	m := newManager(t)
	w, err := m.Acquire("req-1")
	require.NoError(t, err)
	assert.DirExists(t, w.Path())
	assert.Equal(t, m.Root(), filepath.Dir(w.Path()))
	assert.Equal(t, 1, m.Live())

	require.NoError(t, w.WriteFile("Solution.java", []byte("class Solution {}")))
	require.NoError(t, w.WriteFile("pkg/A.class", []byte{0xca, 0xfe}))
	names, err := w.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"Solution.java", "pkg/A.class"}, names)

	require.NoError(t, w.Release())
	require.NoError(t, w.Release(), "release is idempotent")
	assert.NoDirExists(t, w.Path())
	assert.Equal(t, 0, m.Live())

	entries, err := os.ReadDir(m.Root())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteFileEscape(t *testing.T) {
	m := newManager(t)
	w, err := m.Acquire("")
	require.NoError(t, err)
	defer w.Release()

	for _, name := range []string{"../x", "/etc/passwd", ""} {
		assert.Error(t, w.WriteFile(name, nil), name)
	}
}

func TestAcquireUnique(t *testing.T) {
	m := newManager(t)
	const n = 64
	var (
		mu  sync.Mutex
		ids = make(map[string]bool)
		wg  sync.WaitGroup
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := m.Acquire("")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[w.Path()] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, ids, n)
	assert.Equal(t, n, m.Live())

	require.NoError(t, m.Shutdown())
	assert.Equal(t, 0, m.Live())
	entries, err := os.ReadDir(m.Root())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
