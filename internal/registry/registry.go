package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/appdraft/appdraft/internal/archive"
	"github.com/appdraft/appdraft/internal/log"
	"github.com/appdraft/appdraft/internal/model"
)

// Entry is a live project: its runtime handles and the lease that releases
// them.
type Entry struct {
	ProjectID string
	Lease     *model.Lease

	mu       sync.Mutex
	lastUsed time.Time
}

// Touch refreshes the entry's idle clock.
func (e *Entry) Touch() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastUsed = time.Now()
}

// LastUsed returns the last time the entry was touched.
func (e *Entry) LastUsed() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastUsed
}

// RegistryConfig is the configuration for the registry.
type RegistryConfig struct {
	Archiver *archive.Archiver
	// ProjectsDir is where rehydrated project trees are unpacked.
	ProjectsDir string
	Logger      log.Logger
}

func (c *RegistryConfig) defaults() error {
	if c.Archiver == nil {
		return fmt.Errorf("archiver is required")
	}
	if c.ProjectsDir == "" {
		return fmt.Errorf("projects directory is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "registry.Registry"})
	return nil
}

// Registry tracks the projects that currently hold runtime resources on this
// host, and rehydrates archived project trees on demand.
type Registry struct {
	cfg RegistryConfig

	mu   sync.Mutex
	live map[string]*Entry

	// rehydrate collapses concurrent restores of the same project into one
	// archive download.
	rehydrate singleflight.Group
}

// NewRegistry creates a new registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Registry{
		cfg:  cfg,
		live: map[string]*Entry{},
	}, nil
}

// Register adds a live project with the lease holding its resources.
func (r *Registry) Register(projectID string, lease *model.Lease) *Entry {
	e := &Entry{ProjectID: projectID, Lease: lease, lastUsed: time.Now()}

	r.mu.Lock()
	r.live[projectID] = e
	r.mu.Unlock()

	r.cfg.Logger.Debugf("Registered live project %s", projectID)
	return e
}

// Lookup returns the live entry for a project, if any.
func (r *Registry) Lookup(projectID string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.live[projectID]
	return e, ok
}

// Evict releases the project's resources and removes it from the live set.
func (r *Registry) Evict(projectID string) {
	r.mu.Lock()
	e, ok := r.live[projectID]
	delete(r.live, projectID)
	r.mu.Unlock()

	if !ok {
		return
	}
	e.Lease.Release()
	r.cfg.Logger.Infof("Evicted live project %s", projectID)
}

// Active returns the number of live projects.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// IdleSince returns the live projects not touched since the cutoff.
func (r *Registry) IdleSince(cutoff time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for id, e := range r.live {
		if e.LastUsed().Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Workspace returns the on-disk directory of a project, rehydrating it from
// the archive when the tree is not present. Concurrent callers for the same
// project share a single restore.
func (r *Registry) Workspace(ctx context.Context, p *model.Project) (string, error) {
	if e, ok := r.Lookup(p.ID); ok {
		e.Touch()
	}

	if p.Dir != "" {
		if _, err := os.Stat(p.Dir); err == nil {
			return p.Dir, nil
		}
	}

	if p.Archive == nil {
		return "", fmt.Errorf("project %s has no local tree and no archive: %w", p.ID, model.ErrNotFound)
	}

	dir := filepath.Join(r.cfg.ProjectsDir, p.ID)
	_, err, _ := r.rehydrate.Do(p.ID, func() (any, error) {
		if _, serr := os.Stat(filepath.Join(dir, "package.json")); serr == nil {
			return nil, nil
		}
		r.cfg.Logger.Infof("Rehydrating project %s from archive", p.ID)
		return nil, r.cfg.Archiver.Restore(ctx, p.ID, dir)
	})
	if err != nil {
		return "", fmt.Errorf("could not rehydrate project %s: %w", p.ID, err)
	}

	return dir, nil
}
