package archive_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/appdraft/appdraft/internal/archive"
	"github.com/appdraft/appdraft/internal/archive/archivemock"
	"github.com/appdraft/appdraft/internal/archive/local"
)

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		full := filepath.Join(dir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func readTree(t *testing.T, dir string) map[string]string {
	t.Helper()
	files := map[string]string{}
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[rel] = string(b)
		return nil
	})
	require.NoError(t, err)
	return files
}

func testArchiver(t *testing.T) *archive.Archiver {
	t.Helper()
	store, err := local.NewStore(local.StoreConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	a, err := archive.NewArchiver(archive.ArchiverConfig{Store: store})
	require.NoError(t, err)
	return a
}

func TestArchiverRoundTrip(t *testing.T) {
	a := testArchiver(t)
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"App.tsx":                  "export default function App() {}",
		"package.json":             `{"name":"myapp"}`,
		"components/Counter.tsx":   "export const Counter = () => null",
		"node_modules/react/x.js":  "should not survive",
		".expo/settings.json":      "should not survive",
		".git/HEAD":                "should not survive",
		"dist/bundle.js":           "should not survive",
		"web-build/index.html":     "should not survive",
		"assets/deep/logo.png.txt": "logo",
	})

	rec, err := a.Archive(context.Background(), "prj1", src)
	require.NoError(t, err)
	assert.Equal(t, "projects/prj1.zip", rec.Key)
	assert.Equal(t, "prj1", rec.ProjectID)
	assert.Greater(t, rec.SizeBytes, int64(0))

	dest := t.TempDir()
	require.NoError(t, a.Restore(context.Background(), "prj1", dest))

	assert.Equal(t, map[string]string{
		"App.tsx":                  "export default function App() {}",
		"package.json":             `{"name":"myapp"}`,
		filepath.Join("components", "Counter.tsx"):   "export const Counter = () => null",
		filepath.Join("assets", "deep", "logo.png.txt"): "logo",
	}, readTree(t, dest))
}

func TestArchiverUploadError(t *testing.T) {
	store := &archivemock.MockStore{}
	store.On("Upload", mock.Anything, "projects/prj1.zip", mock.Anything, mock.Anything).Once().Return(fmt.Errorf("wanted error"))

	a, err := archive.NewArchiver(archive.ArchiverConfig{Store: store})
	require.NoError(t, err)

	src := t.TempDir()
	writeTree(t, src, map[string]string{"App.tsx": "x"})

	_, err = a.Archive(context.Background(), "prj1", src)
	assert.Error(t, err)
	store.AssertExpectations(t)
}

func TestArchiverRestoreMissing(t *testing.T) {
	a := testArchiver(t)

	err := a.Restore(context.Background(), "nope", t.TempDir())
	assert.Error(t, err)
}

func TestArchiverDelete(t *testing.T) {
	a := testArchiver(t)
	src := t.TempDir()
	writeTree(t, src, map[string]string{"App.tsx": "x"})

	_, err := a.Archive(context.Background(), "prj1", src)
	require.NoError(t, err)

	require.NoError(t, a.Delete(context.Background(), "prj1"))
	assert.Error(t, a.Restore(context.Background(), "prj1", t.TempDir()))

	// Deleting a missing bundle is a no-op.
	assert.NoError(t, a.Delete(context.Background(), "prj1"))
}

func TestArchiverList(t *testing.T) {
	a := testArchiver(t)

	ids, err := a.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)

	src := t.TempDir()
	writeTree(t, src, map[string]string{"App.tsx": "x"})
	for _, id := range []string{"prj2", "prj1"} {
		_, err := a.Archive(context.Background(), id, src)
		require.NoError(t, err)
	}

	ids, err = a.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"prj1", "prj2"}, ids)
}
