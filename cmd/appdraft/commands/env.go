package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/appdraft/appdraft/internal/archive"
	"github.com/appdraft/appdraft/internal/archive/local"
	archives3 "github.com/appdraft/appdraft/internal/archive/s3"
	"github.com/appdraft/appdraft/internal/conventions"
	"github.com/appdraft/appdraft/internal/registry"
	"github.com/appdraft/appdraft/internal/storage/sqlite"
)

// environment is the shared wiring every command starts from: persistence,
// the archive store and the live registry.
type environment struct {
	repo        *sqlite.Repository
	archiver    *archive.Archiver
	registry    *registry.Registry
	projectsDir string
	depCacheDir string
}

func newEnvironment(ctx context.Context, c *RootCommand) (*environment, error) {
	logger := c.Logger

	dbPath := c.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(c.DataDir, conventions.DBFile)
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: dbPath,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}

	store, err := newArchiveStore(ctx, c)
	if err != nil {
		repo.Close()
		return nil, err
	}

	archiver, err := archive.NewArchiver(archive.ArchiverConfig{
		Store:  store,
		Logger: logger,
	})
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("could not create archiver: %w", err)
	}

	projectsDir := filepath.Join(c.DataDir, conventions.ProjectsDir)
	reg, err := registry.NewRegistry(registry.RegistryConfig{
		Archiver:    archiver,
		ProjectsDir: projectsDir,
		Logger:      logger,
	})
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("could not create registry: %w", err)
	}

	return &environment{
		repo:        repo,
		archiver:    archiver,
		registry:    reg,
		projectsDir: projectsDir,
		depCacheDir: filepath.Join(c.DataDir, conventions.DepCacheDir),
	}, nil
}

// newArchiveStore picks S3 when a bucket is configured and reachable, and the
// local filesystem store otherwise.
func newArchiveStore(ctx context.Context, c *RootCommand) (archive.Store, error) {
	if c.S3Bucket != "" {
		client, err := archives3.NewClient(ctx, c.S3Region)
		if err != nil {
			return nil, fmt.Errorf("could not create S3 client: %w", err)
		}
		store, err := archives3.NewStore(archives3.StoreConfig{
			Client: client,
			Bucket: c.S3Bucket,
			Logger: c.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create S3 store: %w", err)
		}
		if err := store.Ping(ctx); err != nil {
			c.Logger.Warningf("Archive bucket not reachable, falling back to local store: %s", err)
		} else {
			return store, nil
		}
	}

	store, err := local.NewStore(local.StoreConfig{
		Dir:    filepath.Join(c.DataDir, conventions.ArchivesDir),
		Logger: c.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create local archive store: %w", err)
	}
	return store, nil
}

func (e *environment) Close() {
	e.repo.Close()
}
