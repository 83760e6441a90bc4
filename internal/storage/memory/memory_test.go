package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appdraft/appdraft/internal/model"
	"github.com/appdraft/appdraft/internal/storage/memory"
)

func testProject(id, owner string, createdAt time.Time) model.Project {
	return model.Project{
		ID:           id,
		OwnerID:      owner,
		Prompt:       "a todo app",
		AppName:      "todo",
		Status:       model.ProjectStatusQueued,
		CreatedAt:    createdAt,
		LastActiveAt: createdAt,
	}
}

func TestRepositoryCreateProject(t *testing.T) {
	tests := map[string]struct {
		setup  func(r *memory.Repository) error
		expErr error
	}{
		"Creating a new project should succeed.": {
			setup: func(r *memory.Repository) error { return nil },
		},

		"Creating a project with a duplicate id should fail.": {
			setup: func(r *memory.Repository) error {
				return r.CreateProject(context.Background(), testProject("prj1", "o1", time.Now()))
			},
			expErr: model.ErrAlreadyExists,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			r, err := memory.NewRepository(memory.RepositoryConfig{})
			require.NoError(t, err)
			require.NoError(t, test.setup(r))

			err = r.CreateProject(context.Background(), testProject("prj1", "o1", time.Now()))

			if test.expErr != nil {
				assert.True(t, errors.Is(err, test.expErr))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRepositoryGetProject(t *testing.T) {
	r, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)

	_, err = r.GetProject(context.Background(), "missing")
	assert.True(t, errors.Is(err, model.ErrNotFound))

	p := testProject("prj1", "o1", time.Now())
	require.NoError(t, r.CreateProject(context.Background(), p))

	got, err := r.GetProject(context.Background(), "prj1")
	require.NoError(t, err)
	assert.Equal(t, p, *got)

	// The returned copy must not alias the stored project.
	got.Status = model.ProjectStatusError
	got2, err := r.GetProject(context.Background(), "prj1")
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStatusQueued, got2.Status)
}

func TestRepositoryListProjects(t *testing.T) {
	r, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)

	base := time.Now()
	require.NoError(t, r.CreateProject(context.Background(), testProject("prj1", "o1", base.Add(-2*time.Hour))))
	require.NoError(t, r.CreateProject(context.Background(), testProject("prj2", "o2", base.Add(-time.Hour))))
	require.NoError(t, r.CreateProject(context.Background(), testProject("prj3", "o1", base)))

	all, err := r.ListProjects(context.Background())
	require.NoError(t, err)
	ids := []string{}
	for _, p := range all {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"prj3", "prj2", "prj1"}, ids)

	owned, err := r.ListProjectsByOwner(context.Background(), "o1")
	require.NoError(t, err)
	ids = []string{}
	for _, p := range owned {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"prj3", "prj1"}, ids)
}

func TestRepositoryUpdateProject(t *testing.T) {
	r, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)

	p := testProject("prj1", "o1", time.Now())
	err = r.UpdateProject(context.Background(), p)
	assert.True(t, errors.Is(err, model.ErrNotFound))

	require.NoError(t, r.CreateProject(context.Background(), p))

	p.Status = model.ProjectStatusReady
	p.PreviewURL = "https://x.trycloudflare.com"
	require.NoError(t, r.UpdateProject(context.Background(), p))

	got, err := r.GetProject(context.Background(), "prj1")
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStatusReady, got.Status)
	assert.Equal(t, "https://x.trycloudflare.com", got.PreviewURL)
}

func TestRepositoryDeleteProject(t *testing.T) {
	r, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)

	err = r.DeleteProject(context.Background(), "missing")
	assert.True(t, errors.Is(err, model.ErrNotFound))

	require.NoError(t, r.CreateProject(context.Background(), testProject("prj1", "o1", time.Now())))
	require.NoError(t, r.DeleteProject(context.Background(), "prj1"))

	_, err = r.GetProject(context.Background(), "prj1")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}
