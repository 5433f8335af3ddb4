// Package flight provides an "at most one concurrent run" guard.
package flight

import "sync/atomic"

// Guard admits one holder at a time. A caller that finds the guard held
// is turned away instead of waiting.
//
// The zero value is ready to use. A Guard must not be copied after first use.
type Guard struct {
	busy atomic.Bool
}

// TryAcquire takes the guard if it is free. Callers that get true must
// call Release, normally with defer.
func (g *Guard) TryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Release frees the guard.
func (g *Guard) Release() {
	g.busy.Store(false)
}

// Busy reports whether a holder is currently running.
func (g *Guard) Busy() bool {
	return g.busy.Load()
}

// Do runs fn if the guard is free and reports whether it ran. The guard is
// released even if fn panics.
func (g *Guard) Do(fn func()) bool {
	if !g.TryAcquire() {
		return false
	}
	defer g.Release()
	fn()
	return true
}
