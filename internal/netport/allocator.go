package netport

import (
	"fmt"
	"net"
	"sync"

	"github.com/appdraft/appdraft/internal/conventions"
	"github.com/appdraft/appdraft/internal/log"
	"github.com/appdraft/appdraft/internal/model"
)

// AllocatorConfig is the configuration for the port allocator.
type AllocatorConfig struct {
	StartPort int
	MaxPorts  int
	// Probe checks whether a port can actually be bound. Defaults to a real
	// TCP bind on localhost.
	Probe  func(port int) bool
	Logger log.Logger
}

func (c *AllocatorConfig) defaults() error {
	if c.StartPort == 0 {
		c.StartPort = conventions.DefaultStartPort
	}
	if c.MaxPorts == 0 {
		c.MaxPorts = conventions.DefaultMaxPorts
	}
	if c.StartPort < 1 || c.StartPort > 65535-c.MaxPorts {
		return fmt.Errorf("port range %d+%d is out of bounds", c.StartPort, c.MaxPorts)
	}
	if c.Probe == nil {
		c.Probe = bindProbe
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "netport.Allocator"})
	return nil
}

// Allocator hands out unique free ports from a bounded pool. Bookkeeping alone
// is not trusted: crashed processes can still hold a port the map considers
// free, so every candidate is probed before being handed out.
type Allocator struct {
	startPort int
	maxPorts  int
	probe     func(port int) bool

	mu        sync.Mutex
	allocated map[int]bool
	logger    log.Logger
}

// NewAllocator creates a new port allocator.
func NewAllocator(cfg AllocatorConfig) (*Allocator, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Allocator{
		startPort: cfg.StartPort,
		maxPorts:  cfg.MaxPorts,
		probe:     cfg.Probe,
		allocated: make(map[int]bool),
		logger:    cfg.Logger,
	}, nil
}

// Acquire returns a free, bindable port from the pool.
func (a *Allocator) Acquire() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.allocated) >= a.maxPorts {
		return 0, fmt.Errorf("all %d ports are leased: %w", a.maxPorts, model.ErrPortExhausted)
	}

	for offset := 0; offset < a.maxPorts; offset++ {
		port := a.startPort + offset
		if a.allocated[port] {
			continue
		}
		if !a.probe(port) {
			a.logger.Debugf("Port %d is marked free but not bindable, skipping", port)
			continue
		}
		a.allocated[port] = true
		a.logger.Debugf("Allocated port %d (%d leased)", port, len(a.allocated))
		return port, nil
	}

	return 0, fmt.Errorf("no bindable port in range %d-%d: %w", a.startPort, a.startPort+a.maxPorts-1, model.ErrPortExhausted)
}

// Release returns a port to the pool. Releasing an unallocated port is a no-op.
func (a *Allocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.allocated[port] {
		a.logger.Warningf("Release of unallocated port %d ignored", port)
		return
	}
	delete(a.allocated, port)
	a.logger.Debugf("Released port %d (%d leased)", port, len(a.allocated))
}

// Allocated returns the number of currently leased ports.
func (a *Allocator) Allocated() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.allocated)
}

func bindProbe(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}
