package registry_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appdraft/appdraft/internal/archive"
	"github.com/appdraft/appdraft/internal/archive/local"
	"github.com/appdraft/appdraft/internal/model"
	"github.com/appdraft/appdraft/internal/registry"
)

func testRegistry(t *testing.T) (*registry.Registry, *archive.Archiver, string) {
	t.Helper()

	store, err := local.NewStore(local.StoreConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	archiver, err := archive.NewArchiver(archive.ArchiverConfig{Store: store})
	require.NoError(t, err)

	projectsDir := t.TempDir()
	r, err := registry.NewRegistry(registry.RegistryConfig{
		Archiver:    archiver,
		ProjectsDir: projectsDir,
	})
	require.NoError(t, err)
	return r, archiver, projectsDir
}

func TestRegistryLifecycle(t *testing.T) {
	r, _, _ := testRegistry(t)

	released := false
	lease := model.NewLease("prj1")
	lease.Add(func() { released = true })

	r.Register("prj1", lease)
	assert.Equal(t, 1, r.Active())

	e, ok := r.Lookup("prj1")
	require.True(t, ok)
	assert.Equal(t, "prj1", e.ProjectID)

	r.Evict("prj1")
	assert.True(t, released)
	assert.Equal(t, 0, r.Active())

	_, ok = r.Lookup("prj1")
	assert.False(t, ok)

	// Evicting an unknown project is a no-op.
	r.Evict("prj1")
}

func TestRegistryIdleSince(t *testing.T) {
	r, _, _ := testRegistry(t)

	r.Register("old", model.NewLease("old"))
	time.Sleep(20 * time.Millisecond)
	cutoff := time.Now()
	fresh := r.Register("fresh", model.NewLease("fresh"))
	fresh.Touch()

	idle := r.IdleSince(cutoff)
	assert.Equal(t, []string{"old"}, idle)
}

func TestRegistryWorkspace(t *testing.T) {
	t.Run("A project with a local tree should use it directly.", func(t *testing.T) {
		r, _, _ := testRegistry(t)
		dir := t.TempDir()

		got, err := r.Workspace(context.Background(), &model.Project{ID: "prj1", Dir: dir})
		require.NoError(t, err)
		assert.Equal(t, dir, got)
	})

	t.Run("An archived project should be rehydrated from its bundle.", func(t *testing.T) {
		r, archiver, projectsDir := testRegistry(t)

		src := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(src, "package.json"), []byte(`{"name":"x"}`), 0o644))
		rec, err := archiver.Archive(context.Background(), "prj1", src)
		require.NoError(t, err)

		p := &model.Project{ID: "prj1", Status: model.ProjectStatusArchived, Archive: rec}
		got, err := r.Workspace(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(projectsDir, "prj1"), got)
		assert.FileExists(t, filepath.Join(got, "package.json"))
	})

	t.Run("A project without tree or archive should not be found.", func(t *testing.T) {
		r, _, _ := testRegistry(t)

		_, err := r.Workspace(context.Background(), &model.Project{ID: "prj1"})
		assert.Error(t, err)
	})
}

func TestRegistryWorkspaceSingleRestore(t *testing.T) {
	r, archiver, _ := testRegistry(t)

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "package.json"), []byte(`{"name":"x"}`), 0o644))
	rec, err := archiver.Archive(context.Background(), "prj1", src)
	require.NoError(t, err)

	p := &model.Project{ID: "prj1", Status: model.ProjectStatusArchived, Archive: rec}

	var wg sync.WaitGroup
	var errs atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Workspace(context.Background(), p); err != nil {
				errs.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, errs.Load())
}
