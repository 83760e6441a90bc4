package broadcast

import (
	"fmt"
	"sync"

	"github.com/appdraft/appdraft/internal/log"
	"github.com/appdraft/appdraft/internal/model"
)

// BrokerConfig is the configuration for the event broker.
type BrokerConfig struct {
	// Buffer is the per-subscriber channel capacity. Events to a full
	// subscriber are dropped, publishers never block.
	Buffer int
	Logger log.Logger
}

func (c *BrokerConfig) defaults() error {
	if c.Buffer == 0 {
		c.Buffer = 64
	}
	if c.Buffer < 0 {
		return fmt.Errorf("buffer must be positive")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "broadcast.Broker"})
	return nil
}

type subscriber struct {
	ch chan model.Envelope
}

// Broker fans build progress events out to the subscribers of each project.
// There is no replay: a subscriber only sees events published after it
// subscribed.
type Broker struct {
	cfg BrokerConfig

	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

// NewBroker creates a new event broker.
func NewBroker(cfg BrokerConfig) (*Broker, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Broker{
		cfg:  cfg,
		subs: map[string]map[*subscriber]struct{}{},
	}, nil
}

// Subscribe registers a listener for a project's events. The returned cancel
// func must be called when done, it closes the channel.
func (b *Broker) Subscribe(projectID string) (<-chan model.Envelope, func()) {
	s := &subscriber{ch: make(chan model.Envelope, b.cfg.Buffer)}

	b.mu.Lock()
	if b.subs[projectID] == nil {
		b.subs[projectID] = map[*subscriber]struct{}{}
	}
	b.subs[projectID][s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[projectID], s)
			if len(b.subs[projectID]) == 0 {
				delete(b.subs, projectID)
			}
			b.mu.Unlock()
			close(s.ch)
		})
	}

	return s.ch, cancel
}

// Publish delivers an event to every current subscriber of the project.
func (b *Broker) Publish(projectID string, ev model.Event) {
	env := ev.Envelope()

	b.mu.Lock()
	defer b.mu.Unlock()

	for s := range b.subs[projectID] {
		select {
		case s.ch <- env:
		default:
			b.cfg.Logger.Warningf("Dropping %s event for slow subscriber of project %s", env.Type, projectID)
		}
	}
}

// Subscribers returns the number of listeners on a project.
func (b *Broker) Subscribers(projectID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[projectID])
}
