package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/appdraft/appdraft/internal/log"
	"github.com/appdraft/appdraft/internal/model"
)

// RunnerConfig is the configuration for the command runner.
type RunnerConfig struct {
	// AllowedBinaries is the closed set of binaries the runner will spawn.
	AllowedBinaries []string
	DefaultTimeout  time.Duration
	Logger          log.Logger
}

func (c *RunnerConfig) defaults() error {
	if len(c.AllowedBinaries) == 0 {
		c.AllowedBinaries = []string{"npm", "npx", "node", "cloudflared"}
	}
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = 5 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "command.Runner"})
	return nil
}

// Runner executes external processes with hard timeouts and captured output.
// Commands are argv style only, there is no shell interpolation anywhere.
type Runner struct {
	allowed        map[string]bool
	defaultTimeout time.Duration
	logger         log.Logger
}

// NewRunner creates a new command runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	allowed := make(map[string]bool, len(cfg.AllowedBinaries))
	for _, b := range cfg.AllowedBinaries {
		allowed[b] = true
	}

	return &Runner{
		allowed:        allowed,
		defaultTimeout: cfg.DefaultTimeout,
		logger:         cfg.Logger,
	}, nil
}

// Spec describes one process invocation.
type Spec struct {
	Binary  string
	Args    []string
	Dir     string
	Env     map[string]string
	Timeout time.Duration
}

// Result is the outcome of a finished process.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

func (r *Runner) validate(spec Spec) error {
	if !r.allowed[filepath.Base(spec.Binary)] {
		return fmt.Errorf("binary %q is not allowed: %w", spec.Binary, model.ErrNotValid)
	}
	if spec.Dir != "" {
		info, err := os.Stat(spec.Dir)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("working directory %q does not exist: %w", spec.Dir, model.ErrNotValid)
		}
	}
	return nil
}

func mergedEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

// Run executes the command and waits for it, bounded by the spec timeout.
// Non-zero exits and timeouts return a *model.CommandError.
func (r *Runner) Run(ctx context.Context, spec Spec) (*Result, error) {
	if err := r.validate(spec); err != nil {
		return nil, err
	}

	timeout := spec.Timeout
	if timeout == 0 {
		timeout = r.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, spec.Binary, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = mergedEnv(spec.Env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debugf("Running %s %v in %s (timeout %s)", spec.Binary, spec.Args, spec.Dir, timeout)
	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if ctx.Err() == context.DeadlineExceeded {
		r.logger.Errorf("Command %s timed out after %s", spec.Binary, timeout)
		return res, &model.CommandError{Cmd: spec.Binary, ExitCode: -1, TimedOut: true, Stderr: res.Stderr}
	}

	if err != nil {
		var exitErr *exec.ExitError
		code := -1
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		res.ExitCode = code
		r.logger.Errorf("Command %s failed with code %d after %s", spec.Binary, code, res.Duration)
		return res, &model.CommandError{Cmd: spec.Binary, ExitCode: code, Stderr: res.Stderr}
	}

	r.logger.Debugf("Command %s completed in %s", spec.Binary, res.Duration)
	return res, nil
}

// Proc is a handle on a long-running background process with one owner
// responsible for stopping it.
type Proc struct {
	cmd    *exec.Cmd
	done   chan struct{}
	waitMu sync.Mutex
	werr   error

	outMu  sync.Mutex
	output bytes.Buffer

	stopOnce sync.Once
	logger   log.Logger
}

// Running reports whether the process has not exited yet.
func (p *Proc) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Output returns the combined stdout/stderr captured so far.
func (p *Proc) Output() string {
	p.outMu.Lock()
	defer p.outMu.Unlock()
	return p.output.String()
}

// PID returns the OS process id.
func (p *Proc) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Stop terminates the process: graceful signal first, kill after a short
// grace period. Idempotent.
func (p *Proc) Stop() {
	p.stopOnce.Do(func() {
		if p.cmd.Process == nil {
			return
		}
		if !p.Running() {
			return
		}
		p.logger.Debugf("Stopping process %d", p.PID())
		_ = p.cmd.Process.Signal(os.Interrupt)
		select {
		case <-p.done:
		case <-time.After(5 * time.Second):
			p.logger.Warningf("Process %d did not exit, killing", p.PID())
			_ = p.cmd.Process.Kill()
			<-p.done
		}
	})
}

type procWriter struct {
	p *Proc
}

func (w procWriter) Write(b []byte) (int, error) {
	w.p.outMu.Lock()
	defer w.p.outMu.Unlock()
	return w.p.output.Write(b)
}

// Start spawns a long-running process without waiting for it. The caller owns
// the returned handle and must Stop it on every exit path.
func (r *Runner) Start(ctx context.Context, spec Spec) (*Proc, error) {
	if err := r.validate(spec); err != nil {
		return nil, err
	}

	cmd := exec.Command(spec.Binary, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = mergedEnv(spec.Env)

	p := &Proc{cmd: cmd, done: make(chan struct{}), logger: r.logger}
	cmd.Stdout = procWriter{p}
	cmd.Stderr = procWriter{p}

	if err := cmd.Start(); err != nil {
		return nil, &model.CommandError{Cmd: spec.Binary, ExitCode: -1, Stderr: err.Error()}
	}
	r.logger.Debugf("Started process %s (PID %d)", spec.Binary, cmd.Process.Pid)

	go func() {
		err := cmd.Wait()
		p.waitMu.Lock()
		p.werr = err
		p.waitMu.Unlock()
		close(p.done)
	}()

	return p, nil
}
