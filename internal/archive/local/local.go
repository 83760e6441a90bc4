package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/appdraft/appdraft/internal/archive"
	"github.com/appdraft/appdraft/internal/log"
	"github.com/appdraft/appdraft/internal/model"
)

// StoreConfig is the configuration for the filesystem archive store.
type StoreConfig struct {
	// Dir is the root directory holding the bundles.
	Dir    string
	Logger log.Logger
}

func (c *StoreConfig) defaults() error {
	if c.Dir == "" {
		return fmt.Errorf("directory is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "local.Store"})
	return nil
}

// Store keeps project bundles on the local filesystem. It is the fallback
// when no object storage is configured or reachable.
type Store struct {
	cfg StoreConfig
}

// NewStore creates a new filesystem archive store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create archive directory: %w", err)
	}

	return &Store{cfg: cfg}, nil
}

var _ archive.Store = &Store{}

func (s *Store) path(key string) (string, error) {
	return model.SafeJoin(s.cfg.Dir, key)
}

func (s *Store) Upload(_ context.Context, key string, r io.Reader, _ int64) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("could not create key directory: %w", err)
	}

	// Write to a sibling temp file so a crashed upload never leaves a
	// truncated bundle under the final key.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("could not write bundle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("could not move bundle into place: %w", err)
	}

	s.cfg.Logger.Debugf("Stored bundle %s", key)
	return nil
}

func (s *Store) Download(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("bundle %s: %w", key, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not open bundle: %w", err)
	}
	return f, nil
}

func (s *Store) List(_ context.Context) ([]string, error) {
	keys := []string{}
	err := filepath.WalkDir(s.cfg.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(s.cfg.Dir, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not list bundles: %w", err)
	}
	return keys, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("could not delete bundle: %w", err)
	}
	return nil
}
