package depcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/appdraft/appdraft/internal/command"
	"github.com/appdraft/appdraft/internal/conventions"
	"github.com/appdraft/appdraft/internal/log"
	"github.com/appdraft/appdraft/internal/model"
)

// CacheConfig is the configuration for the dependency cache.
type CacheConfig struct {
	// Dir is the root directory holding one installed tree per manifest hash.
	Dir            string
	Runner         *command.Runner
	InstallTimeout time.Duration
	Logger         log.Logger
}

func (c *CacheConfig) defaults() error {
	if c.Dir == "" {
		return fmt.Errorf("cache directory is required")
	}
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}
	if c.InstallTimeout == 0 {
		c.InstallTimeout = 10 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "depcache.Cache"})
	return nil
}

// Cache installs JavaScript dependency trees once per unique manifest and
// links them into project directories, so identical manifests share one
// npm install.
type Cache struct {
	cfg CacheConfig

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCache creates a new dependency cache.
func NewCache(cfg CacheConfig) (*Cache, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create cache directory: %w", err)
	}

	return &Cache{
		cfg:   cfg,
		locks: map[string]*sync.Mutex{},
	}, nil
}

// Key hashes a dependency manifest into a cache key. Insensitive to map
// ordering: only the sorted name/version pairs matter.
func Key(deps map[string]string) string {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([][2]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, [2]string{name, deps[name]})
	}
	b, _ := json.Marshal(pairs)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (c *Cache) keyLock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	return l
}

// Link ensures the dependency tree for projectDir's manifest is installed in
// the cache and symlinks it as the project's node_modules. Returns true on a
// cache hit.
func (c *Cache) Link(ctx context.Context, projectDir string, deps map[string]string) (hit bool, err error) {
	if len(deps) == 0 {
		return false, fmt.Errorf("dependency manifest is empty: %w", model.ErrNotValid)
	}

	key := Key(deps)
	lock := c.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	entryDir := filepath.Join(c.cfg.Dir, key)
	modulesDir := filepath.Join(entryDir, "node_modules")

	if _, serr := os.Stat(modulesDir); serr == nil {
		hit = true
		c.cfg.Logger.Debugf("Dependency cache hit for %s", key[:12])
	} else {
		if err := c.install(ctx, entryDir, deps); err != nil {
			return false, err
		}
	}

	link := filepath.Join(projectDir, "node_modules")
	_ = os.Remove(link)
	if err := os.Symlink(modulesDir, link); err != nil {
		return hit, fmt.Errorf("could not link node_modules: %w", err)
	}

	return hit, nil
}

func (c *Cache) install(ctx context.Context, entryDir string, deps map[string]string) error {
	c.cfg.Logger.Infof("Installing %d dependencies into cache", len(deps))

	if err := os.MkdirAll(entryDir, 0o755); err != nil {
		return fmt.Errorf("could not create cache entry: %w", err)
	}

	manifest := map[string]any{
		"name":         "appdraft-dep-cache",
		"version":      "1.0.0",
		"private":      true,
		"dependencies": deps,
	}
	b, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(entryDir, conventions.ManifestFile), b, 0o644); err != nil {
		return fmt.Errorf("could not write manifest: %w", err)
	}

	_, err = c.cfg.Runner.Run(ctx, command.Spec{
		Binary:  "npm",
		Args:    []string{"install", "--no-audit", "--no-fund"},
		Dir:     entryDir,
		Env:     map[string]string{"CI": "1"},
		Timeout: c.cfg.InstallTimeout,
	})
	if err != nil {
		// Half-installed trees must never be reused.
		if rmErr := os.RemoveAll(entryDir); rmErr != nil {
			c.cfg.Logger.Warningf("Could not clean up failed cache entry: %s", rmErr)
		}
		return fmt.Errorf("could not install dependencies: %w", err)
	}

	return nil
}

// Invalidate removes a cache entry.
func (c *Cache) Invalidate(deps map[string]string) error {
	key := Key(deps)
	lock := c.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	if err := os.RemoveAll(filepath.Join(c.cfg.Dir, key)); err != nil {
		return fmt.Errorf("could not remove cache entry: %w", err)
	}
	return nil
}

// Entries returns the number of installed trees in the cache.
func (c *Cache) Entries() (int, error) {
	dirs, err := os.ReadDir(c.cfg.Dir)
	if err != nil {
		return 0, fmt.Errorf("could not read cache directory: %w", err)
	}
	n := 0
	for _, d := range dirs {
		if d.IsDir() {
			n++
		}
	}
	return n, nil
}
