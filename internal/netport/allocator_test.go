package netport_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appdraft/appdraft/internal/model"
	"github.com/appdraft/appdraft/internal/netport"
)

func alwaysBindable(int) bool { return true }

func TestAllocatorAcquireRelease(t *testing.T) {
	tests := map[string]struct {
		cfg    netport.AllocatorConfig
		run    func(t *testing.T, a *netport.Allocator)
	}{
		"Acquired ports are unique": {
			cfg: netport.AllocatorConfig{StartPort: 20000, MaxPorts: 5, Probe: alwaysBindable},
			run: func(t *testing.T, a *netport.Allocator) {
				seen := map[int]bool{}
				for i := 0; i < 5; i++ {
					port, err := a.Acquire()
					require.NoError(t, err)
					assert.False(t, seen[port], "port %d leased twice", port)
					seen[port] = true
				}
			},
		},
		"Exhaustion returns ErrPortExhausted": {
			cfg: netport.AllocatorConfig{StartPort: 20000, MaxPorts: 2, Probe: alwaysBindable},
			run: func(t *testing.T, a *netport.Allocator) {
				_, err := a.Acquire()
				require.NoError(t, err)
				_, err = a.Acquire()
				require.NoError(t, err)
				_, err = a.Acquire()
				assert.ErrorIs(t, err, model.ErrPortExhausted)
			},
		},
		"Released port is re-acquirable": {
			cfg: netport.AllocatorConfig{StartPort: 20000, MaxPorts: 1, Probe: alwaysBindable},
			run: func(t *testing.T, a *netport.Allocator) {
				port, err := a.Acquire()
				require.NoError(t, err)
				a.Release(port)
				again, err := a.Acquire()
				require.NoError(t, err)
				assert.Equal(t, port, again)
			},
		},
		"Release is idempotent": {
			cfg: netport.AllocatorConfig{StartPort: 20000, MaxPorts: 2, Probe: alwaysBindable},
			run: func(t *testing.T, a *netport.Allocator) {
				port, err := a.Acquire()
				require.NoError(t, err)
				a.Release(port)
				a.Release(port)
				assert.Equal(t, 0, a.Allocated())
			},
		},
		"Unbindable ports are skipped": {
			cfg: netport.AllocatorConfig{
				StartPort: 20000, MaxPorts: 3,
				Probe: func(port int) bool { return port != 20000 },
			},
			run: func(t *testing.T, a *netport.Allocator) {
				port, err := a.Acquire()
				require.NoError(t, err)
				assert.Equal(t, 20001, port)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			a, err := netport.NewAllocator(tt.cfg)
			require.NoError(t, err)
			tt.run(t, a)
		})
	}
}

func TestAllocatorConcurrent(t *testing.T) {
	a, err := netport.NewAllocator(netport.AllocatorConfig{StartPort: 21000, MaxPorts: 64, Probe: alwaysBindable})
	require.NoError(t, err)

	var mu sync.Mutex
	seen := map[int]bool{}
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			port, err := a.Acquire()
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, seen[port])
			seen[port] = true
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 64)
}

func TestAllocatorConfigValidation(t *testing.T) {
	_, err := netport.NewAllocator(netport.AllocatorConfig{StartPort: 65530, MaxPorts: 100})
	require.Error(t, err)
}
