package stopproject_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appdraft/appdraft/internal/app/stopproject"
	"github.com/appdraft/appdraft/internal/archive"
	"github.com/appdraft/appdraft/internal/archive/local"
	"github.com/appdraft/appdraft/internal/model"
	"github.com/appdraft/appdraft/internal/registry"
	"github.com/appdraft/appdraft/internal/storage/memory"
)

type fixture struct {
	svc  *stopproject.Service
	repo *memory.Repository
	reg  *registry.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := local.NewStore(local.StoreConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	archiver, err := archive.NewArchiver(archive.ArchiverConfig{Store: store})
	require.NoError(t, err)
	reg, err := registry.NewRegistry(registry.RegistryConfig{Archiver: archiver, ProjectsDir: t.TempDir()})
	require.NoError(t, err)

	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)

	svc, err := stopproject.NewService(stopproject.ServiceConfig{Repository: repo, Registry: reg})
	require.NoError(t, err)

	return &fixture{svc: svc, repo: repo, reg: reg}
}

func TestServiceRun(t *testing.T) {
	t.Run("Stopping a live project should release its resources.", func(t *testing.T) {
		f := newFixture(t)

		dir := t.TempDir()
		require.NoError(t, f.repo.CreateProject(context.Background(), model.Project{
			ID:         "prj1",
			Status:     model.ProjectStatusReady,
			Dir:        dir,
			Port:       19006,
			PreviewURL: "https://x.trycloudflare.com",
		}))

		released := false
		lease := model.NewLease("prj1")
		lease.Add(func() { released = true })
		f.reg.Register("prj1", lease)

		p, err := f.svc.Run(context.Background(), stopproject.Request{ID: "prj1"})
		require.NoError(t, err)

		assert.True(t, released)
		assert.Zero(t, p.Port)
		assert.Empty(t, p.PreviewURL)
		// Without an archive the local tree stays and so does ready.
		assert.Equal(t, model.ProjectStatusReady, p.Status)
		assert.DirExists(t, dir)
	})

	t.Run("Stopping an archived-backed project should evict the tree.", func(t *testing.T) {
		f := newFixture(t)

		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte("{}"), 0o644))
		require.NoError(t, f.repo.CreateProject(context.Background(), model.Project{
			ID:      "prj1",
			Status:  model.ProjectStatusReady,
			Dir:     dir,
			Port:    19006,
			Archive: &model.ArchiveRecord{ProjectID: "prj1", Key: "projects/prj1.zip"},
		}))

		p, err := f.svc.Run(context.Background(), stopproject.Request{ID: "prj1"})
		require.NoError(t, err)

		assert.Equal(t, model.ProjectStatusArchived, p.Status)
		assert.Empty(t, p.Dir)
		assert.NoDirExists(t, dir)
	})

	t.Run("Stopping a missing project should not be found.", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Run(context.Background(), stopproject.Request{ID: "missing"})
		assert.True(t, errors.Is(err, model.ErrNotFound))
	})

	t.Run("An empty id should be rejected.", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Run(context.Background(), stopproject.Request{})
		assert.True(t, errors.Is(err, model.ErrNotValid))
	})
}
