package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/duoplan/internal/clock"
	"github.com/roach88/duoplan/internal/plan"
)

// CheckForUpdates pulls a newer state from the shareable address.
//
// It reports true only when a decoded state with a strictly greater
// version replaced the local one. An absent token, an older or equal
// version, an unreadable address and an undecodable token all report
// false; an undecodable token is also cleared. A call made while another
// check is in flight returns false immediately.
func (e *Engine) CheckForUpdates(ctx context.Context) bool {
	var updated bool
	e.guard.Do(func() {
		updated, _ = e.check(ctx)
	})
	if updated {
		e.emit(Notice{Level: LevelInfo, Message: msgSynced})
	}
	return updated
}

// SyncNow is the user-initiated CheckForUpdates: failures are reported
// through the notifier and returned.
func (e *Engine) SyncNow(ctx context.Context) (bool, error) {
	if !e.guard.TryAcquire() {
		slog.Debug("sync already in flight")
		return false, nil
	}
	updated, err := func() (bool, error) {
		defer e.guard.Release()
		return e.check(ctx)
	}()

	switch {
	case err != nil && plan.IsDecodeError(err):
		e.emit(Notice{Level: LevelWarn, Message: msgTokenDiscarded})
	case err != nil:
		e.emit(Notice{Level: LevelError, Message: msgSyncFailed})
	case updated:
		e.emit(Notice{Level: LevelInfo, Message: msgSynced})
	}
	return updated, err
}

// check is the body of CheckForUpdates. Caller must hold the guard.
func (e *Engine) check(ctx context.Context) (bool, error) {
	token, ok, err := e.transport.ReadToken(ctx)
	if err != nil {
		slog.Warn("failed to read shared link", "error", err)
		return false, err
	}
	if !ok {
		return false, nil
	}

	decoded, err := e.codec.Decode(token)
	if err != nil {
		slog.Debug("clearing undecodable shared token", "code", plan.CodeOf(err), "error", err)
		e.clearToken(ctx)
		return false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if decoded.Version <= e.state.Version {
		slog.Debug("shared token not newer",
			"remote", decoded.Version,
			"local", e.state.Version,
		)
		return false, nil
	}

	now := e.clock.Now()
	decoded.Rollover(clock.MonthKey(now))
	previous := e.state.Version
	e.state = decoded
	e.lastSync = now
	if err := e.persistLocked(ctx); err != nil {
		// The newer state is accepted in memory regardless.
		slog.Warn("accepted update not saved", "version", decoded.Version, "error", err)
	}

	slog.Info("accepted newer shared state",
		"remote", decoded.Version,
		"local", previous,
	)
	return true, nil
}

// Run reconciles with the shareable address every poll interval, and
// whenever the optional trigger fires, until ctx is cancelled.
//
// Each tick starts its own check in a new goroutine; overlapping checks
// are turned away by the single-flight guard rather than queued behind
// the ticker. When ctx is cancelled no new checks start, and Run waits for
// in-flight checks to finish before returning ctx.Err().
func (e *Engine) Run(ctx context.Context) error {
	ticks := e.ticks
	if ticks == nil {
		ticker := time.NewTicker(e.pollInterval)
		defer ticker.Stop()
		ticks = ticker.C
	}
	trigger := e.trigger

	// In-flight checks finish against their adapters even after shutdown.
	checkCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	defer wg.Wait()

	launch := func(source string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if e.CheckForUpdates(checkCtx) {
				slog.Debug("update applied", "source", source)
			}
		}()
	}

	slog.Info("sync loop starting", "interval", e.pollInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync loop stopping: context cancelled")
			return ctx.Err()

		case _, ok := <-ticks:
			if !ok {
				ticks = nil
				continue
			}
			launch("tick")

		case _, ok := <-trigger:
			if !ok {
				trigger = nil
				continue
			}
			launch("trigger")
		}
	}
}
