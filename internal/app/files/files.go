package files

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/appdraft/appdraft/internal/log"
	"github.com/appdraft/appdraft/internal/model"
	"github.com/appdraft/appdraft/internal/registry"
	"github.com/appdraft/appdraft/internal/storage"
)

// skippedDirs are never listed or read: build byproducts and VCS metadata.
var skippedDirs = map[string]bool{
	"node_modules": true,
	".expo":        true,
	".git":         true,
	"dist":         true,
	"web-build":    true,
}

// ServiceConfig is the configuration for the files service.
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

// Service exposes a project's source tree, rehydrating archived projects on
// demand.
type Service struct {
	repo     storage.Repository
	registry *registry.Registry
	logger   log.Logger
}

// NewService creates a new files service.
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

// ListRequest represents the file listing request parameters.
type ListRequest struct {
	ID string
}

// List returns the project's source file paths, sorted.
func (s *Service) List(ctx context.Context, req ListRequest) ([]string, error) {
	dir, err := s.workspace(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not walk project tree: %w", err)
	}

	sort.Strings(paths)
	return paths, nil
}

// ReadRequest represents the file read request parameters.
type ReadRequest struct {
	ID   string
	Path string
}

// Read returns one project file's contents.
func (s *Service) Read(ctx context.Context, req ReadRequest) ([]byte, error) {
	dir, err := s.workspace(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	full, err := model.SafeJoin(dir, req.Path)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file %s: %w", req.Path, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not read file: %w", err)
	}

	return content, nil
}

// WriteRequest represents the file write request parameters.
type WriteRequest struct {
	ID      string
	Path    string
	Content []byte
}

// Write creates or overwrites one project file.
func (s *Service) Write(ctx context.Context, req WriteRequest) error {
	dir, err := s.workspace(ctx, req.ID)
	if err != nil {
		return err
	}

	full, err := model.SafeJoin(dir, req.Path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("could not create directory for %s: %w", req.Path, err)
	}
	if err := os.WriteFile(full, req.Content, 0o644); err != nil {
		return fmt.Errorf("could not write file: %w", err)
	}

	s.logger.Debugf("Wrote %d bytes to %s in project %s", len(req.Content), req.Path, req.ID)
	return s.touch(ctx, req.ID)
}

// RenameRequest represents the file rename request parameters.
type RenameRequest struct {
	ID      string
	OldPath string
	NewPath string
}

// Rename moves one project file. Both paths must stay inside the project.
func (s *Service) Rename(ctx context.Context, req RenameRequest) error {
	dir, err := s.workspace(ctx, req.ID)
	if err != nil {
		return err
	}

	oldFull, err := model.SafeJoin(dir, req.OldPath)
	if err != nil {
		return err
	}
	newFull, err := model.SafeJoin(dir, req.NewPath)
	if err != nil {
		return err
	}

	if _, err := os.Stat(oldFull); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file %s: %w", req.OldPath, model.ErrNotFound)
		}
		return fmt.Errorf("could not stat file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(newFull), 0o755); err != nil {
		return fmt.Errorf("could not create directory for %s: %w", req.NewPath, err)
	}
	if err := os.Rename(oldFull, newFull); err != nil {
		return fmt.Errorf("could not rename file: %w", err)
	}

	s.logger.Debugf("Renamed %s to %s in project %s", req.OldPath, req.NewPath, req.ID)
	return s.touch(ctx, req.ID)
}

// DeleteRequest represents the file delete request parameters.
type DeleteRequest struct {
	ID   string
	Path string
}

// Delete removes one project file.
func (s *Service) Delete(ctx context.Context, req DeleteRequest) error {
	dir, err := s.workspace(ctx, req.ID)
	if err != nil {
		return err
	}

	full, err := model.SafeJoin(dir, req.Path)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file %s: %w", req.Path, model.ErrNotFound)
		}
		return fmt.Errorf("could not delete file: %w", err)
	}

	s.logger.Debugf("Deleted %s from project %s", req.Path, req.ID)
	return s.touch(ctx, req.ID)
}

// touch refreshes the project's activity timestamp after a mutation.
func (s *Service) touch(ctx context.Context, id string) error {
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return fmt.Errorf("could not get project: %w", err)
	}
	p.LastActiveAt = time.Now().UTC()
	if err := s.repo.UpdateProject(ctx, *p); err != nil {
		return fmt.Errorf("could not update project: %w", err)
	}
	return nil
}

func (s *Service) workspace(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("project id is required: %w", model.ErrNotValid)
	}

	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return "", fmt.Errorf("could not get project: %w", err)
	}

	dir, err := s.registry.Workspace(ctx, p)
	if err != nil {
		return "", err
	}
	return dir, nil
}
