package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrCapacity is returned when admission control rejects new work. Callers
	// should retry with backoff.
	ErrCapacity = errors.New("capacity exceeded")
	// ErrPortExhausted is returned when the port pool has no free ports.
	ErrPortExhausted = errors.New("no ports available")
	// ErrTunnel is returned when a public tunnel could not be established.
	ErrTunnel = errors.New("tunnel failed")
	// ErrArchiveUnavailable is returned when the blob store cannot be reached.
	ErrArchiveUnavailable = errors.New("archive unavailable")
)

// CommandError is the structured failure of an external process invocation:
// non-zero exit, timeout, or spawn failure.
type CommandError struct {
	Cmd      string
	ExitCode int
	TimedOut bool
	Stderr   string
}

func (e *CommandError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("command %q timed out", e.Cmd)
	}
	return fmt.Sprintf("command %q exited with code %d", e.Cmd, e.ExitCode)
}

// Retryable reports whether the failure is worth an in-stage retry. Timeouts
// and spawn/signal failures are transient, deterministic non-zero exits are not.
func (e *CommandError) Retryable() bool {
	return e.TimedOut || e.ExitCode < 0
}

// SanitizeErrorMessage strips local filesystem paths from user-visible error
// messages so server internals don't leak through the progress stream or the
// status API.
func SanitizeErrorMessage(msg string) string {
	fields := strings.Fields(msg)
	for i, f := range fields {
		trimmed := strings.TrimRight(f, ".,:;")
		if strings.HasPrefix(trimmed, "/") && strings.Count(trimmed, "/") > 1 {
			fields[i] = strings.Replace(f, trimmed, "<path>", 1)
		}
	}
	return strings.Join(fields, " ")
}
