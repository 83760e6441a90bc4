package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/appdraft/appdraft/internal/conventions"
	"github.com/appdraft/appdraft/internal/log"
	"github.com/appdraft/appdraft/internal/model"
)

// Store persists and retrieves project bundles by key.
type Store interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]string, error)
}

// Key returns the store key for a project bundle.
func Key(projectID string) string {
	return conventions.ArchiveKeyPrefix + projectID + conventions.ArchiveKeySuffix
}

// ArchiverConfig is the configuration for the archiver.
type ArchiverConfig struct {
	Store  Store
	Logger log.Logger
}

func (c *ArchiverConfig) defaults() error {
	if c.Store == nil {
		return fmt.Errorf("store is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "archive.Archiver"})
	return nil
}

// Archiver bundles project directories into zip archives and moves them in
// and out of the configured store.
type Archiver struct {
	cfg ArchiverConfig
}

// NewArchiver creates a new archiver.
func NewArchiver(cfg ArchiverConfig) (*Archiver, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Archiver{cfg: cfg}, nil
}

// Archive packs the project directory and uploads the bundle. Build byproducts
// (node_modules, caches, VCS metadata) are excluded.
func (a *Archiver) Archive(ctx context.Context, projectID, dir string) (*model.ArchiveRecord, error) {
	tmp, err := os.CreateTemp("", "appdraft-archive-*.zip")
	if err != nil {
		return nil, fmt.Errorf("could not create temp bundle: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if err := Pack(dir, tmp); err != nil {
		return nil, fmt.Errorf("could not pack project %s: %w", projectID, err)
	}

	info, err := tmp.Stat()
	if err != nil {
		return nil, fmt.Errorf("could not stat bundle: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("could not rewind bundle: %w", err)
	}

	key := Key(projectID)
	if err := a.cfg.Store.Upload(ctx, key, tmp, info.Size()); err != nil {
		return nil, fmt.Errorf("could not upload bundle: %w", err)
	}

	a.cfg.Logger.WithValues(log.Kv{"project": projectID}).Infof("Archived project to %s (%d bytes)", key, info.Size())
	return &model.ArchiveRecord{
		ProjectID: projectID,
		Key:       key,
		SizeBytes: info.Size(),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Restore downloads the project bundle and unpacks it into dir.
func (a *Archiver) Restore(ctx context.Context, projectID, dir string) error {
	key := Key(projectID)
	rc, err := a.cfg.Store.Download(ctx, key)
	if err != nil {
		return fmt.Errorf("could not download bundle %s: %w", key, err)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "appdraft-restore-*.zip")
	if err != nil {
		return fmt.Errorf("could not create temp bundle: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	size, err := io.Copy(tmp, rc)
	if err != nil {
		return fmt.Errorf("could not spool bundle: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create project directory: %w", err)
	}
	if err := Unpack(tmp, size, dir); err != nil {
		return fmt.Errorf("could not unpack bundle %s: %w", key, err)
	}

	a.cfg.Logger.WithValues(log.Kv{"project": projectID}).Infof("Restored project from %s into %s", key, filepath.Clean(dir))
	return nil
}

// Delete removes the project bundle from the store.
func (a *Archiver) Delete(ctx context.Context, projectID string) error {
	if err := a.cfg.Store.Delete(ctx, Key(projectID)); err != nil {
		return fmt.Errorf("could not delete bundle: %w", err)
	}
	return nil
}

// List returns the project IDs that have a bundle in the store, sorted.
func (a *Archiver) List(ctx context.Context) ([]string, error) {
	keys, err := a.cfg.Store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list bundles: %w", err)
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		if !strings.HasPrefix(key, conventions.ArchiveKeyPrefix) || !strings.HasSuffix(key, conventions.ArchiveKeySuffix) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(key, conventions.ArchiveKeyPrefix), conventions.ArchiveKeySuffix)
		if id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
