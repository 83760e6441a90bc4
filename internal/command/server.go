package command

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/appdraft/appdraft/internal/model"
)

// ServerSpec describes a dev server launch: the process spec plus the port it
// must come up on.
type ServerSpec struct {
	Spec
	Port         int
	ReadyTimeout time.Duration
	PollInterval time.Duration
	// Probe overrides the readiness check. Test hook.
	Probe func(port int) bool
}

func dialProbe(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// StartServer spawns the dev server process and waits until it accepts
// connections on the given port. The process is killed if it exits early or
// the readiness deadline passes.
func (r *Runner) StartServer(ctx context.Context, spec ServerSpec) (*Proc, error) {
	if spec.Port <= 0 {
		return nil, fmt.Errorf("server port is required: %w", model.ErrNotValid)
	}
	if spec.ReadyTimeout == 0 {
		spec.ReadyTimeout = 2 * time.Minute
	}
	if spec.PollInterval == 0 {
		spec.PollInterval = 2 * time.Second
	}
	if spec.Probe == nil {
		spec.Probe = dialProbe
	}

	p, err := r.Start(ctx, spec.Spec)
	if err != nil {
		return nil, fmt.Errorf("could not start server process: %w", err)
	}

	deadline := time.NewTimer(spec.ReadyTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(spec.PollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			p.Stop()
			return nil, ctx.Err()
		case <-p.done:
			return nil, &model.CommandError{Cmd: spec.Binary, ExitCode: exitCode(p), Stderr: tail(p.Output(), 2048)}
		case <-deadline.C:
			r.logger.Errorf("Server did not become ready on port %d within %s", spec.Port, spec.ReadyTimeout)
			p.Stop()
			return nil, &model.CommandError{Cmd: spec.Binary, ExitCode: -1, TimedOut: true, Stderr: tail(p.Output(), 2048)}
		case <-tick.C:
			if spec.Probe(spec.Port) {
				r.logger.Infof("Server ready on port %d (PID %d)", spec.Port, p.PID())
				return p, nil
			}
		}
	}
}

func exitCode(p *Proc) int {
	if p.cmd.ProcessState == nil {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
