package flight

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuard_Do_Runs(t *testing.T) {
	var g Guard
	ran := false
	assert.True(t, g.Do(func() { ran = true }))
	assert.True(t, ran)
	assert.False(t, g.Busy())
}

func TestGuard_Do_RejectsWhileHeld(t *testing.T) {
	var g Guard
	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		g.Do(func() {
			close(entered)
			<-release
		})
	}()

	<-entered
	assert.True(t, g.Busy())
	assert.False(t, g.Do(func() { t.Error("second run must not start") }))

	close(release)
	<-done
	assert.False(t, g.Busy())
	assert.True(t, g.Do(func() {}), "guard is reusable after release")
}

func TestGuard_Do_ReleasesOnPanic(t *testing.T) {
	var g Guard
	assert.Panics(t, func() {
		g.Do(func() { panic("boom") })
	})
	assert.False(t, g.Busy(), "a panic must not wedge the guard")
}

func TestGuard_AtMostOneConcurrent(t *testing.T) {
	var g Guard
	var active, maxActive, runs atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Do(func() {
				n := active.Add(1)
				for {
					m := maxActive.Load()
					if n <= m || maxActive.CompareAndSwap(m, n) {
						break
					}
				}
				runs.Add(1)
				active.Add(-1)
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
	assert.GreaterOrEqual(t, runs.Load(), int32(1))
}
