package model

import "sync"

// Lease is a resource-guard value pairing a project with its scarce resources:
// an allocated port, a dev-server process, a tunnel handle. Each resource
// registers a releaser; Release runs them once, in reverse acquisition order,
// on every exit path (success, failure or explicit stop).
type Lease struct {
	ProjectID string

	mu        sync.Mutex
	released  bool
	releasers []func()
}

// NewLease returns an empty lease for a project.
func NewLease(projectID string) *Lease {
	return &Lease{ProjectID: projectID}
}

// Add registers a releaser. If the lease was already released the releaser
// runs immediately, so late registrations can't leak.
func (l *Lease) Add(release func()) {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		release()
		return
	}
	l.releasers = append(l.releasers, release)
	l.mu.Unlock()
}

// Release frees all held resources exactly once. Safe to call multiple times
// and from multiple goroutines.
func (l *Lease) Release() {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		return
	}
	l.released = true
	releasers := l.releasers
	l.releasers = nil
	l.mu.Unlock()

	for i := len(releasers) - 1; i >= 0; i-- {
		releasers[i]()
	}
}
