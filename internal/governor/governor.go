package governor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/appdraft/appdraft/internal/log"
	"github.com/appdraft/appdraft/internal/model"
)

// GovernorConfig is the configuration for the admission governor.
type GovernorConfig struct {
	// MaxProjects caps the number of concurrently active builds.
	MaxProjects int
	// MemoryPercent blocks admission when used memory is above it.
	MemoryPercent float64
	// DiskPercent blocks admission when the data disk is above it.
	DiskPercent float64
	// CPUPercent only logs a warning when exceeded, it never blocks.
	CPUPercent float64
	// DataPath is the mount whose disk usage is checked.
	DataPath string
	Logger   log.Logger

	// Probe hooks for tests.
	MemoryUsage func(ctx context.Context) (float64, error)
	DiskUsage   func(ctx context.Context, path string) (float64, error)
	CPUUsage    func(ctx context.Context) (float64, error)
}

func (c *GovernorConfig) defaults() error {
	if c.MaxProjects == 0 {
		c.MaxProjects = 20
	}
	if c.MaxProjects < 0 {
		return fmt.Errorf("max projects must be positive")
	}
	if c.MemoryPercent == 0 {
		c.MemoryPercent = 90
	}
	if c.DiskPercent == 0 {
		c.DiskPercent = 90
	}
	if c.CPUPercent == 0 {
		c.CPUPercent = 95
	}
	if c.DataPath == "" {
		c.DataPath = "/"
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "governor.Governor"})

	if c.MemoryUsage == nil {
		c.MemoryUsage = func(ctx context.Context) (float64, error) {
			v, err := mem.VirtualMemoryWithContext(ctx)
			if err != nil {
				return 0, err
			}
			return v.UsedPercent, nil
		}
	}
	if c.DiskUsage == nil {
		c.DiskUsage = func(ctx context.Context, path string) (float64, error) {
			u, err := disk.UsageWithContext(ctx, path)
			if err != nil {
				return 0, err
			}
			return u.UsedPercent, nil
		}
	}
	if c.CPUUsage == nil {
		c.CPUUsage = func(ctx context.Context) (float64, error) {
			percents, err := cpu.PercentWithContext(ctx, 0, false)
			if err != nil || len(percents) == 0 {
				return 0, err
			}
			return percents[0], nil
		}
	}
	return nil
}

// CapacityError is returned when admission is denied, with a hint on when to
// retry.
type CapacityError struct {
	Reason     string
	RetryAfter time.Duration
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("at capacity: %s: %s", e.Reason, model.ErrCapacity)
}

func (e *CapacityError) Unwrap() error { return model.ErrCapacity }

// Governor gates new builds on a concurrency cap and host pressure. Resource
// probes fail open: an unreadable metric never blocks admission.
type Governor struct {
	cfg GovernorConfig

	mu     sync.Mutex
	active int
}

// NewGovernor creates a new admission governor.
func NewGovernor(cfg GovernorConfig) (*Governor, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Governor{cfg: cfg}, nil
}

// TryAdmit reserves an active slot. The caller must call Release exactly once
// when the build leaves the active set.
func (g *Governor) TryAdmit(ctx context.Context) error {
	g.mu.Lock()
	if g.active >= g.cfg.MaxProjects {
		active := g.active
		g.mu.Unlock()
		return &CapacityError{
			Reason:     fmt.Sprintf("%d active projects (max %d)", active, g.cfg.MaxProjects),
			RetryAfter: 30 * time.Second,
		}
	}
	g.active++
	g.mu.Unlock()

	if err := g.checkPressure(ctx); err != nil {
		g.Release()
		return err
	}

	return nil
}

func (g *Governor) checkPressure(ctx context.Context) error {
	if used, err := g.cfg.MemoryUsage(ctx); err != nil {
		g.cfg.Logger.Warningf("Could not read memory usage, admitting anyway: %s", err)
	} else if used > g.cfg.MemoryPercent {
		return &CapacityError{
			Reason:     fmt.Sprintf("memory at %.1f%% (max %.0f%%)", used, g.cfg.MemoryPercent),
			RetryAfter: time.Minute,
		}
	}

	if used, err := g.cfg.DiskUsage(ctx, g.cfg.DataPath); err != nil {
		g.cfg.Logger.Warningf("Could not read disk usage, admitting anyway: %s", err)
	} else if used > g.cfg.DiskPercent {
		return &CapacityError{
			Reason:     fmt.Sprintf("disk at %.1f%% (max %.0f%%)", used, g.cfg.DiskPercent),
			RetryAfter: 5 * time.Minute,
		}
	}

	if used, err := g.cfg.CPUUsage(ctx); err != nil {
		g.cfg.Logger.Warningf("Could not read CPU usage: %s", err)
	} else if used > g.cfg.CPUPercent {
		g.cfg.Logger.Warningf("CPU at %.1f%%, above %.0f%%, admitting anyway", used, g.cfg.CPUPercent)
	}

	return nil
}

// Release frees an active slot.
func (g *Governor) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active > 0 {
		g.active--
	}
}

// Active returns the number of admitted builds.
func (g *Governor) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}
