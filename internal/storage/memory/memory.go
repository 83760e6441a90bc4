package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/appdraft/appdraft/internal/log"
	"github.com/appdraft/appdraft/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.Repository.
type Repository struct {
	projects map[string]model.Project
	mu       sync.RWMutex
	logger   log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		projects: make(map[string]model.Project),
		logger:   cfg.Logger,
	}, nil
}

// CreateProject creates a new project in the repository.
func (r *Repository) CreateProject(ctx context.Context, p model.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[p.ID]; ok {
		return fmt.Errorf("project with id %s: %w", p.ID, model.ErrAlreadyExists)
	}

	r.projects[p.ID] = p
	r.logger.Debugf("Created project in repository: %s", p.ID)

	return nil
}

// GetProject retrieves a project by ID.
func (r *Repository) GetProject(ctx context.Context, id string) (*model.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	project, ok := r.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, model.ErrNotFound)
	}

	// Return a copy
	projectCopy := project
	return &projectCopy, nil
}

// ListProjects returns all projects, newest first.
func (r *Repository) ListProjects(ctx context.Context) ([]model.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	projects := make([]model.Project, 0, len(r.projects))
	for _, project := range r.projects {
		projects = append(projects, project)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].CreatedAt.After(projects[j].CreatedAt) })

	return projects, nil
}

// ListProjectsByOwner returns the projects of one owner, newest first.
func (r *Repository) ListProjectsByOwner(ctx context.Context, ownerID string) ([]model.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var projects []model.Project
	for _, project := range r.projects {
		if project.OwnerID == ownerID {
			projects = append(projects, project)
		}
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].CreatedAt.After(projects[j].CreatedAt) })

	return projects, nil
}

// UpdateProject updates an existing project.
func (r *Repository) UpdateProject(ctx context.Context, p model.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[p.ID]; !ok {
		return fmt.Errorf("project %s: %w", p.ID, model.ErrNotFound)
	}

	r.projects[p.ID] = p
	r.logger.Debugf("Updated project in repository: %s", p.ID)

	return nil
}

// DeleteProject deletes a project.
func (r *Repository) DeleteProject(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[id]; !ok {
		return fmt.Errorf("project %s: %w", id, model.ErrNotFound)
	}

	delete(r.projects, id)
	r.logger.Debugf("Deleted project from repository: %s", id)

	return nil
}
