package files_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/appdraft/appdraft/internal/app/files"
	"github.com/appdraft/appdraft/internal/archive"
	"github.com/appdraft/appdraft/internal/archive/local"
	"github.com/appdraft/appdraft/internal/model"
	"github.com/appdraft/appdraft/internal/registry"
	"github.com/appdraft/appdraft/internal/storage/storagemock"
)

type fixture struct {
	svc      *files.Service
	repo     *storagemock.MockRepository
	archiver *archive.Archiver
	projects string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := local.NewStore(local.StoreConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	archiver, err := archive.NewArchiver(archive.ArchiverConfig{Store: store})
	require.NoError(t, err)

	projects := t.TempDir()
	reg, err := registry.NewRegistry(registry.RegistryConfig{Archiver: archiver, ProjectsDir: projects})
	require.NoError(t, err)

	repo := &storagemock.MockRepository{}
	svc, err := files.NewService(files.ServiceConfig{Repository: repo, Registry: reg})
	require.NoError(t, err)

	return &fixture{svc: svc, repo: repo, archiver: archiver, projects: projects}
}

func writeTree(t *testing.T, dir string, tree map[string]string) {
	t.Helper()
	for path, content := range tree {
		full := filepath.Join(dir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func TestServiceList(t *testing.T) {
	f := newFixture(t)

	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"App.tsx":                 "x",
		"package.json":            "{}",
		"components/List.tsx":     "x",
		"node_modules/react/i.js": "hidden",
		".expo/settings.json":     "hidden",
	})
	f.repo.On("GetProject", mock.Anything, "prj1").Once().Return(&model.Project{ID: "prj1", Dir: dir}, nil)

	got, err := f.svc.List(context.Background(), files.ListRequest{ID: "prj1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"App.tsx", "components/List.tsx", "package.json"}, got)
}

func TestServiceListArchived(t *testing.T) {
	f := newFixture(t)

	src := t.TempDir()
	writeTree(t, src, map[string]string{"package.json": "{}", "App.tsx": "x"})
	rec, err := f.archiver.Archive(context.Background(), "prj1", src)
	require.NoError(t, err)

	p := &model.Project{ID: "prj1", Status: model.ProjectStatusArchived, Archive: rec}
	f.repo.On("GetProject", mock.Anything, "prj1").Once().Return(p, nil)

	got, err := f.svc.List(context.Background(), files.ListRequest{ID: "prj1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"App.tsx", "package.json"}, got)
	assert.FileExists(t, filepath.Join(f.projects, "prj1", "App.tsx"))
}

func TestServiceRead(t *testing.T) {
	f := newFixture(t)

	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"App.tsx": "export default 1"})
	f.repo.On("GetProject", mock.Anything, "prj1").Return(&model.Project{ID: "prj1", Dir: dir}, nil)

	content, err := f.svc.Read(context.Background(), files.ReadRequest{ID: "prj1", Path: "App.tsx"})
	require.NoError(t, err)
	assert.Equal(t, "export default 1", string(content))

	_, err = f.svc.Read(context.Background(), files.ReadRequest{ID: "prj1", Path: "missing.tsx"})
	assert.True(t, errors.Is(err, model.ErrNotFound))

	_, err = f.svc.Read(context.Background(), files.ReadRequest{ID: "prj1", Path: "../../etc/passwd"})
	assert.True(t, errors.Is(err, model.ErrNotValid))
}

func TestServiceWrite(t *testing.T) {
	f := newFixture(t)

	dir := t.TempDir()
	f.repo.On("GetProject", mock.Anything, "prj1").Return(&model.Project{ID: "prj1", Dir: dir}, nil)
	f.repo.On("UpdateProject", mock.Anything, mock.Anything).Return(nil)

	err := f.svc.Write(context.Background(), files.WriteRequest{ID: "prj1", Path: "components/New.tsx", Content: []byte("export const New = () => null")})
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "components", "New.tsx"))
	require.NoError(t, err)
	assert.Equal(t, "export const New = () => null", string(content))

	// Overwriting is allowed.
	err = f.svc.Write(context.Background(), files.WriteRequest{ID: "prj1", Path: "components/New.tsx", Content: []byte("v2")})
	require.NoError(t, err)
	content, err = os.ReadFile(filepath.Join(dir, "components", "New.tsx"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(content))

	// Traversal is rejected before anything touches disk.
	err = f.svc.Write(context.Background(), files.WriteRequest{ID: "prj1", Path: "../outside.txt", Content: []byte("x")})
	assert.True(t, errors.Is(err, model.ErrNotValid))
}

func TestServiceRename(t *testing.T) {
	f := newFixture(t)

	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"App.tsx": "export default 1"})
	f.repo.On("GetProject", mock.Anything, "prj1").Return(&model.Project{ID: "prj1", Dir: dir}, nil)
	f.repo.On("UpdateProject", mock.Anything, mock.Anything).Return(nil)

	err := f.svc.Rename(context.Background(), files.RenameRequest{ID: "prj1", OldPath: "App.tsx", NewPath: "screens/Home.tsx"})
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "App.tsx"))
	assert.FileExists(t, filepath.Join(dir, "screens", "Home.tsx"))

	err = f.svc.Rename(context.Background(), files.RenameRequest{ID: "prj1", OldPath: "missing.tsx", NewPath: "other.tsx"})
	assert.True(t, errors.Is(err, model.ErrNotFound))

	err = f.svc.Rename(context.Background(), files.RenameRequest{ID: "prj1", OldPath: "screens/Home.tsx", NewPath: "../escape.tsx"})
	assert.True(t, errors.Is(err, model.ErrNotValid))
}

func TestServiceDelete(t *testing.T) {
	f := newFixture(t)

	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"notes.md": "x"})
	f.repo.On("GetProject", mock.Anything, "prj1").Return(&model.Project{ID: "prj1", Dir: dir}, nil)
	f.repo.On("UpdateProject", mock.Anything, mock.Anything).Return(nil)

	err := f.svc.Delete(context.Background(), files.DeleteRequest{ID: "prj1", Path: "notes.md"})
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "notes.md"))

	err = f.svc.Delete(context.Background(), files.DeleteRequest{ID: "prj1", Path: "notes.md"})
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestServiceEmptyID(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.List(context.Background(), files.ListRequest{})
	assert.True(t, errors.Is(err, model.ErrNotValid))

	_, err = f.svc.Read(context.Background(), files.ReadRequest{Path: "App.tsx"})
	assert.True(t, errors.Is(err, model.ErrNotValid))
}
