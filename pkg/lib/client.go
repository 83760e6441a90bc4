package lib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/appdraft/appdraft/internal/archive"
	"github.com/appdraft/appdraft/internal/archive/local"
	archives3 "github.com/appdraft/appdraft/internal/archive/s3"
	"github.com/appdraft/appdraft/internal/conventions"
	"github.com/appdraft/appdraft/internal/doctor"
	"github.com/appdraft/appdraft/internal/log"
	"github.com/appdraft/appdraft/internal/registry"
	"github.com/appdraft/appdraft/internal/storage"
	"github.com/appdraft/appdraft/internal/storage/sqlite"
)

// Config configures the SDK client.
//
// All fields are optional and have sensible defaults. At minimum, an empty
// Config{} will use ~/.appdraft for data and SQLite storage, with project
// archives kept on the local filesystem.
type Config struct {
	// DataDir is the base directory for appdraft data (projects, dependency
	// cache, local archives).
	// Default: ~/.appdraft.
	DataDir string

	// DBPath is the SQLite database path.
	// Default: <DataDir>/appdraft.db.
	DBPath string

	// S3Bucket enables the S3 archive store. When empty (default) or when
	// the bucket is unreachable, archives stay on the local filesystem.
	S3Bucket string

	// S3Region is the AWS region of the archive bucket.
	// Default: "us-east-1".
	S3Region string

	// TunnelBinary is the tunnel client used to expose previews.
	// Default: "cloudflared".
	TunnelBinary string

	// BlueprintPath points at a custom project blueprint YAML. When empty
	// the embedded Expo blueprint is used.
	BlueprintPath string

	// MaxProjects caps the number of concurrently active builds.
	// Default: 20.
	MaxProjects int

	// StartPort is the first port of the dev server port range.
	// Default: 19006.
	StartPort int

	// Logger receives structured log output from the SDK.
	// Default: noop (silent).
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not get user home dir: %w", err)
		}
		c.DataDir = filepath.Join(home, conventions.DefaultDataDir)
	}

	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, conventions.DBFile)
	}

	if c.S3Region == "" {
		c.S3Region = "us-east-1"
	}

	if c.TunnelBinary == "" {
		c.TunnelBinary = "cloudflared"
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point for managing appdraft projects
// programmatically.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use.
type Client struct {
	repo          storage.Repository
	archiver      *archive.Archiver
	registry      *registry.Registry
	pinger        doctor.Pinger
	logger        log.Logger
	dataDir       string
	projectsDir   string
	depCacheDir   string
	tunnelBinary  string
	blueprintPath string
	maxProjects   int
	startPort     int
	closeFn       func() error
}

// New creates a new SDK client backed by a SQLite database.
//
// The caller must call [Client.Close] when done to release the database
// connection. Typically used with defer:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: cfg.DBPath,
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}

	store, pinger, err := newArchiveStore(ctx, cfg)
	if err != nil {
		repo.Close()
		return nil, err
	}

	archiver, err := archive.NewArchiver(archive.ArchiverConfig{
		Store:  store,
		Logger: cfg.Logger,
	})
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("could not create archiver: %w", err)
	}

	projectsDir := filepath.Join(cfg.DataDir, conventions.ProjectsDir)
	reg, err := registry.NewRegistry(registry.RegistryConfig{
		Archiver:    archiver,
		ProjectsDir: projectsDir,
		Logger:      cfg.Logger,
	})
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("could not create registry: %w", err)
	}

	return &Client{
		repo:          repo,
		archiver:      archiver,
		registry:      reg,
		pinger:        pinger,
		logger:        cfg.Logger,
		dataDir:       cfg.DataDir,
		projectsDir:   projectsDir,
		depCacheDir:   filepath.Join(cfg.DataDir, conventions.DepCacheDir),
		tunnelBinary:  cfg.TunnelBinary,
		blueprintPath: cfg.BlueprintPath,
		maxProjects:   cfg.MaxProjects,
		startPort:     cfg.StartPort,
		closeFn:       repo.Close,
	}, nil
}

// newArchiveStore picks S3 when a bucket is configured and reachable, and the
// local filesystem store otherwise.
func newArchiveStore(ctx context.Context, cfg Config) (archive.Store, doctor.Pinger, error) {
	if cfg.S3Bucket != "" {
		client, err := archives3.NewClient(ctx, cfg.S3Region)
		if err != nil {
			return nil, nil, fmt.Errorf("could not create S3 client: %w", err)
		}
		store, err := archives3.NewStore(archives3.StoreConfig{
			Client: client,
			Bucket: cfg.S3Bucket,
			Logger: cfg.Logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("could not create S3 store: %w", err)
		}
		if err := store.Ping(ctx); err != nil {
			cfg.Logger.Warningf("Archive bucket not reachable, falling back to local store: %s", err)
		} else {
			return store, store, nil
		}
	}

	store, err := local.NewStore(local.StoreConfig{
		Dir:    filepath.Join(cfg.DataDir, conventions.ArchivesDir),
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create local archive store: %w", err)
	}
	return store, nil, nil
}

// Close releases resources held by the client, including the database
// connection. After Close returns, the client must not be used.
func (c *Client) Close() error {
	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}

// Doctor runs preflight health checks for the generation host: required
// binaries on PATH, data directory writability, and archive store
// reachability when S3 is configured.
//
// Returns a slice of [CheckResult] describing each check's outcome.
func (c *Client) Doctor(ctx context.Context) ([]CheckResult, error) {
	d, err := doctor.NewDoctor(doctor.DoctorConfig{
		Binaries:     []string{"node", "npm", "npx", c.tunnelBinary},
		DataDir:      c.dataDir,
		ArchiveStore: c.pinger,
		Logger:       c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create doctor: %w", err)
	}

	return fromInternalCheckResults(d.Check(ctx)), nil
}
