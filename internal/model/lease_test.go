package model_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/appdraft/appdraft/internal/model"
)

func TestLeaseRelease(t *testing.T) {
	t.Run("Releasers run once in reverse order", func(t *testing.T) {
		l := model.NewLease("01ABC")
		var order []string
		l.Add(func() { order = append(order, "port") })
		l.Add(func() { order = append(order, "server") })
		l.Add(func() { order = append(order, "tunnel") })

		l.Release()
		l.Release()

		assert.Equal(t, []string{"tunnel", "server", "port"}, order)
	})

	t.Run("Adding after release runs the releaser immediately", func(t *testing.T) {
		l := model.NewLease("01ABC")
		l.Release()

		released := false
		l.Add(func() { released = true })

		assert.True(t, released)
	})

	t.Run("Concurrent release is safe and single-shot", func(t *testing.T) {
		l := model.NewLease("01ABC")
		count := 0
		l.Add(func() { count++ })

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				l.Release()
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, count)
	})
}
