package stopproject

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/appdraft/appdraft/internal/log"
	"github.com/appdraft/appdraft/internal/model"
	"github.com/appdraft/appdraft/internal/registry"
	"github.com/appdraft/appdraft/internal/storage"
)

// ServiceConfig is the configuration for the stop service.
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

// Service stops a running project: dev server, tunnel and port are released.
// When the project already has a blob archive its local tree is evicted too.
type Service struct {
	repo     storage.Repository
	registry *registry.Registry
	logger   log.Logger
}

// NewService creates a new stop service.
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

// Request represents the stop request parameters.
type Request struct {
	ID string
}

// Run stops a project's runtime. Idempotent: stopping an already stopped
// project only revalidates its stored state.
func (s *Service) Run(ctx context.Context, req Request) (*model.Project, error) {
	if req.ID == "" {
		return nil, fmt.Errorf("project id is required: %w", model.ErrNotValid)
	}

	p, err := s.repo.GetProject(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("could not get project: %w", err)
	}

	s.registry.Evict(p.ID)

	p.Port = 0
	p.PreviewURL = ""
	p.LastActiveAt = time.Now().UTC()

	if p.Status == model.ProjectStatusReady && p.Archive != nil {
		if err := os.RemoveAll(p.Dir); err != nil {
			s.logger.Warningf("Could not remove project directory: %s", err)
		} else {
			p.Dir = ""
			p.Status = model.ProjectStatusArchived
		}
	}

	if err := s.repo.UpdateProject(ctx, *p); err != nil {
		return nil, fmt.Errorf("could not update project: %w", err)
	}

	s.logger.Infof("Stopped project %s (status %s)", p.ID, p.Status)
	return p, nil
}
