package status

import (
	"context"
	"fmt"

	"github.com/appdraft/appdraft/internal/log"
	"github.com/appdraft/appdraft/internal/model"
	"github.com/appdraft/appdraft/internal/registry"
	"github.com/appdraft/appdraft/internal/storage"
)

// ServiceConfig is the configuration for the status service.
type ServiceConfig struct {
	Repository storage.Repository
	Registry   *registry.Registry
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Registry == nil {
		return fmt.Errorf("registry is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service reports project state.
type Service struct {
	repo     storage.Repository
	registry *registry.Registry
	logger   log.Logger
}

// NewService creates a new status service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:     cfg.Repository,
		registry: cfg.Registry,
		logger:   cfg.Logger,
	}, nil
}

// Request represents the status request parameters.
type Request struct {
	ID string
}

// Run returns a project's current state. Looking a live project up also
// refreshes its idle clock, and a project whose tree was evicted is
// rehydrated from its archive so follow-up reads find it on disk.
func (s *Service) Run(ctx context.Context, req Request) (*model.Project, error) {
	if req.ID == "" {
		return nil, fmt.Errorf("project id is required: %w", model.ErrNotValid)
	}

	p, err := s.repo.GetProject(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("could not get project: %w", err)
	}

	if e, ok := s.registry.Lookup(p.ID); ok {
		e.Touch()
	}

	if p.Archive != nil {
		dir, err := s.registry.Workspace(ctx, p)
		if err != nil {
			s.logger.Warningf("Could not rehydrate project %s: %s", p.ID, err)
		} else if dir != p.Dir {
			p.Dir = dir
			if err := s.repo.UpdateProject(ctx, *p); err != nil {
				return nil, fmt.Errorf("could not update project: %w", err)
			}
		}
	}

	return p, nil
}

// ListRequest represents the list request parameters.
type ListRequest struct {
	// OwnerID limits the listing to one owner when set.
	OwnerID string
}

// List returns projects newest first.
func (s *Service) List(ctx context.Context, req ListRequest) ([]model.Project, error) {
	if req.OwnerID != "" {
		projects, err := s.repo.ListProjectsByOwner(ctx, req.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("could not list projects: %w", err)
		}
		return projects, nil
	}

	projects, err := s.repo.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list projects: %w", err)
	}
	return projects, nil
}
