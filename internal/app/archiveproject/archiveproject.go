package archiveproject

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/appdraft/appdraft/internal/archive"
	"github.com/appdraft/appdraft/internal/log"
	"github.com/appdraft/appdraft/internal/model"
	"github.com/appdraft/appdraft/internal/registry"
	"github.com/appdraft/appdraft/internal/storage"
)

// ServiceConfig is the configuration for the archive service.
type ServiceConfig struct {
	Repository storage.Repository
	Registry   *registry.Registry
	Archiver   *archive.Archiver
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Registry == nil {
		return fmt.Errorf("registry is required")
	}
	if c.Archiver == nil {
		return fmt.Errorf("archiver is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service archives a ready project: the tree is bundled into the blob store,
// the runtime is torn down and the local tree removed.
type Service struct {
	repo     storage.Repository
	registry *registry.Registry
	archiver *archive.Archiver
	logger   log.Logger
}

// NewService creates a new archive service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:     cfg.Repository,
		registry: cfg.Registry,
		archiver: cfg.Archiver,
		logger:   cfg.Logger,
	}, nil
}

// Request represents the archive request parameters.
type Request struct {
	ID string
}

// Run archives a project. Only ready projects can be archived; the upload
// must succeed before the local tree is touched.
func (s *Service) Run(ctx context.Context, req Request) (*model.Project, error) {
	if req.ID == "" {
		return nil, fmt.Errorf("project id is required: %w", model.ErrNotValid)
	}

	p, err := s.repo.GetProject(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("could not get project: %w", err)
	}

	if p.Status != model.ProjectStatusReady {
		return nil, fmt.Errorf("cannot archive project in status %s: %w", p.Status, model.ErrNotValid)
	}

	rec, err := s.archiver.Archive(ctx, p.ID, p.Dir)
	if err != nil {
		return nil, fmt.Errorf("could not archive project: %w", err)
	}

	s.registry.Evict(p.ID)

	if err := os.RemoveAll(p.Dir); err != nil {
		s.logger.Warningf("Could not remove project directory: %s", err)
	}

	p.Archive = rec
	p.Status = model.ProjectStatusArchived
	p.Dir = ""
	p.Port = 0
	p.PreviewURL = ""
	p.LastActiveAt = time.Now().UTC()

	if err := s.repo.UpdateProject(ctx, *p); err != nil {
		return nil, fmt.Errorf("could not update project: %w", err)
	}

	s.logger.Infof("Archived project %s to %s", p.ID, rec.Key)
	return p, nil
}
