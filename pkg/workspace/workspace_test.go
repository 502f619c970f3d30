package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspace(t *testing.T) {
	fs := afero.NewMemMapFs()
	ws, err := New(fs, "/tmp/work")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ws.Dir(), "/tmp/work/fcosinstall-"))

	p1, err := ws.WriteFile([]byte(`{"ignition":{}}`), ".ign")
	require.NoError(t, err)
	p2, err := ws.WriteFile([]byte("other"), ".ign")
	require.NoError(t, err)

	assert.NotEqual(t, p1, p2)
	assert.Equal(t, ws.Dir(), filepath.Dir(p1))
	assert.Equal(t, ".ign", filepath.Ext(p1))

	content, err := afero.ReadFile(fs, p1)
	require.NoError(t, err)
	assert.Equal(t, `{"ignition":{}}`, string(content))

	require.NoError(t, ws.Remove(p2))
	exists, _ := afero.Exists(fs, p2)
	assert.False(t, exists)

	require.NoError(t, ws.Cleanup())
	exists, _ = afero.DirExists(fs, ws.Dir())
	assert.False(t, exists)

	require.NoError(t, ws.Cleanup(), "second cleanup is a no-op")

	_, err = ws.WriteFile([]byte("late"), ".ign")
	assert.Error(t, err)
}

func TestWorkspace_ConcurrentWrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	ws, err := New(fs, "/tmp")
	require.NoError(t, err)
	defer func() { _ = ws.Cleanup() }()

	var wg sync.WaitGroup
	paths := make([]string, 16)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := ws.WriteFile([]byte("x"), ".bu")
			assert.NoError(t, err)
			paths[i] = p
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, p := range paths {
		assert.False(t, seen[p])
		seen[p] = true
	}
}

type failingRemoveFs struct {
	afero.Fs
}

func (f failingRemoveFs) Remove(name string) error {
	return errors.New("device busy")
}

func (f failingRemoveFs) RemoveAll(path string) error {
	return errors.New("device busy")
}

func TestWorkspace_CleanupAggregatesErrors(t *testing.T) {
	fs := failingRemoveFs{Fs: afero.NewMemMapFs()}
	ws, err := New(fs, "/tmp")
	require.NoError(t, err)

	_, err = ws.WriteFile([]byte("a"), ".ign")
	require.NoError(t, err)
	_, err = ws.WriteFile([]byte("b"), ".ign")
	require.NoError(t, err)

	err = ws.Cleanup()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 errors occurred")
}

func TestNew_DefaultBase(t *testing.T) {
	ws, err := New(afero.NewOsFs(), "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ws.Dir(), os.TempDir()))
	require.NoError(t, ws.Cleanup())
}
