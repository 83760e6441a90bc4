package tunnel

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/appdraft/appdraft/internal/command"
	"github.com/appdraft/appdraft/internal/log"
	"github.com/appdraft/appdraft/internal/model"
	"github.com/appdraft/appdraft/internal/retry"
)

var defaultURLRegexp = regexp.MustCompile(`https://[a-zA-Z0-9-]+\.trycloudflare\.com`)

// ManagerConfig is the configuration for the tunnel manager.
type ManagerConfig struct {
	Runner *command.Runner
	// Binary is the tunnel client binary.
	Binary string
	// Args builds the client argv for a given local port.
	Args func(port int) []string
	// URLRegexp extracts the public URL from the client output.
	URLRegexp    *regexp.Regexp
	MaxAttempts  int
	OpenTimeout  time.Duration
	PollInterval time.Duration
	Logger       log.Logger
}

func (c *ManagerConfig) defaults() error {
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}
	if c.Binary == "" {
		c.Binary = "cloudflared"
	}
	if c.Args == nil {
		c.Args = func(port int) []string {
			return []string{"tunnel", "--url", fmt.Sprintf("http://127.0.0.1:%d", port)}
		}
	}
	if c.URLRegexp == nil {
		c.URLRegexp = defaultURLRegexp
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.OpenTimeout == 0 {
		c.OpenTimeout = 45 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "tunnel.Manager"})
	return nil
}

// Manager opens public tunnels to local ports by driving an external tunnel
// client and scraping the assigned URL from its output.
type Manager struct {
	cfg ManagerConfig

	mu     sync.Mutex
	active map[int]*Tunnel
}

// NewManager creates a new tunnel manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Manager{
		cfg:    cfg,
		active: map[int]*Tunnel{},
	}, nil
}

// Tunnel is an open public tunnel. Close is idempotent.
type Tunnel struct {
	URL  string
	Port int

	proc      *command.Proc
	closeOnce sync.Once
	onClose   func()
}

// Close tears the tunnel down.
func (t *Tunnel) Close() {
	t.closeOnce.Do(func() {
		t.proc.Stop()
		if t.onClose != nil {
			t.onClose()
		}
	})
}

// Open opens a tunnel to a local port, retrying transient client failures.
func (m *Manager) Open(ctx context.Context, port int) (*Tunnel, error) {
	var tun *Tunnel
	err := retry.Do(ctx, retry.Config{
		MaxAttempts:     m.cfg.MaxAttempts,
		InitialInterval: time.Second,
		Logger:          m.cfg.Logger,
	}, "tunnel open", func() error {
		var err error
		tun, err = m.open(ctx, port)
		return err
	}, func(error) bool { return true })
	if err != nil {
		return nil, fmt.Errorf("could not open tunnel for port %d: %w (%s)", port, model.ErrTunnel, err)
	}

	m.mu.Lock()
	m.active[port] = tun
	m.mu.Unlock()
	tun.onClose = func() {
		m.mu.Lock()
		delete(m.active, port)
		m.mu.Unlock()
		m.cfg.Logger.Infof("Tunnel for port %d closed", port)
	}

	m.cfg.Logger.Infof("Tunnel ready: %s -> 127.0.0.1:%d", tun.URL, port)
	return tun, nil
}

func (m *Manager) open(ctx context.Context, port int) (*Tunnel, error) {
	proc, err := m.cfg.Runner.Start(ctx, command.Spec{
		Binary: m.cfg.Binary,
		Args:   m.cfg.Args(port),
	})
	if err != nil {
		return nil, fmt.Errorf("could not start tunnel client: %w", err)
	}

	deadline := time.NewTimer(m.cfg.OpenTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(m.cfg.PollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			proc.Stop()
			return nil, ctx.Err()
		case <-deadline.C:
			proc.Stop()
			return nil, fmt.Errorf("tunnel client did not report a URL within %s", m.cfg.OpenTimeout)
		case <-tick.C:
			if !proc.Running() {
				return nil, fmt.Errorf("tunnel client exited: %s", proc.Output())
			}
			if url := m.cfg.URLRegexp.FindString(proc.Output()); url != "" {
				return &Tunnel{URL: url, Port: port, proc: proc}, nil
			}
		}
	}
}

// Active returns the number of open tunnels.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// CloseAll tears down every open tunnel.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	tunnels := make([]*Tunnel, 0, len(m.active))
	for _, t := range m.active {
		tunnels = append(tunnels, t)
	}
	m.mu.Unlock()

	for _, t := range tunnels {
		t.Close()
	}
}
