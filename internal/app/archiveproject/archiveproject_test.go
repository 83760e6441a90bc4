package archiveproject_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appdraft/appdraft/internal/app/archiveproject"
	"github.com/appdraft/appdraft/internal/archive"
	"github.com/appdraft/appdraft/internal/archive/local"
	"github.com/appdraft/appdraft/internal/model"
	"github.com/appdraft/appdraft/internal/registry"
	"github.com/appdraft/appdraft/internal/storage/memory"
)

type fixture struct {
	svc      *archiveproject.Service
	repo     *memory.Repository
	reg      *registry.Registry
	archiver *archive.Archiver
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

	svc, err := archiveproject.NewService(archiveproject.ServiceConfig{
		Repository: repo,
		Registry:   reg,
		Archiver:   archiver,
	})
	require.NoError(t, err)

	return &fixture{svc: svc, repo: repo, reg: reg, archiver: archiver}
}

func TestServiceRun(t *testing.T) {
	t.Run("Archiving a ready project should upload and evict it.", func(t *testing.T) {
		f := newFixture(t)

		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte("{}"), 0o644))
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

		p, err := f.svc.Run(context.Background(), archiveproject.Request{ID: "prj1"})
		require.NoError(t, err)

		assert.Equal(t, model.ProjectStatusArchived, p.Status)
		require.NotNil(t, p.Archive)
		assert.Equal(t, "projects/prj1.zip", p.Archive.Key)
		assert.True(t, released)
		assert.Empty(t, p.Dir)
		assert.Zero(t, p.Port)
		assert.Empty(t, p.PreviewURL)
		assert.NoDirExists(t, dir)

		// The archived tree can be restored.
		dest := t.TempDir()
		require.NoError(t, f.archiver.Restore(context.Background(), "prj1", dest))
		assert.FileExists(t, filepath.Join(dest, "package.json"))
	})

	t.Run("Archiving a non-ready project should be rejected.", func(t *testing.T) {
		f := newFixture(t)

		require.NoError(t, f.repo.CreateProject(context.Background(), model.Project{
			ID:     "prj1",
			Status: model.ProjectStatusAnalyzing,
		}))

		_, err := f.svc.Run(context.Background(), archiveproject.Request{ID: "prj1"})
		assert.True(t, errors.Is(err, model.ErrNotValid))
	})

	t.Run("Archiving a missing project should not be found.", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Run(context.Background(), archiveproject.Request{ID: "missing"})
		assert.True(t, errors.Is(err, model.ErrNotFound))
	})
}
