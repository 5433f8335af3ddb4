package engine

import (
	"context"
	"encoding/base64"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/duoplan/internal/link"
	"github.com/roach88/duoplan/internal/plan"
)

// blockingTransport holds ReadToken until release is closed.
type blockingTransport struct {
	*link.Memory
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingTransport(m *link.Memory) *blockingTransport {
	return &blockingTransport{
		Memory:  m,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (b *blockingTransport) ReadToken(ctx context.Context) (string, bool, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.Memory.ReadToken(ctx)
}

func (f *fixture) setVersion(v int64) {
	f.eng.mu.Lock()
	defer f.eng.mu.Unlock()
	f.eng.state.Version = v
}

func TestCheckForUpdates_NoToken(t *testing.T) {
	f := newFixture(t)

	assert.False(t, f.eng.CheckForUpdates(context.Background()))
	assert.Equal(t, 0, f.tr.Clears())
	assert.Equal(t, 0, f.kv.Saves())
}

func TestCheckForUpdates_AcceptsNewerVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	remote := peerState(1)
	f.publish(t, remote)

	require.True(t, f.eng.CheckForUpdates(ctx))

	s := f.eng.Snapshot()
	assert.Equal(t, int64(1), s.Version)
	assert.Equal(t, "Ann", s.User1.Name)
	assert.Equal(t, "Ben", s.User2.Name)
	assert.Equal(t, 2, s.User2.Stars)
	assert.Equal(t, 1, s.User2.Suns)
	require.Len(t, s.User1.ShortTermPlans, 1)
	assert.Equal(t, plan.PlanItem{
		ID:        "peer-1",
		Content:   "from ann",
		Completed: true,
		CreatedAt: "2025-03-10T12:00:00.000Z",
	}, s.User1.ShortTermPlans[0])

	raw, ok := f.kv.Get(KeyShared)
	require.True(t, ok)
	assert.Contains(t, raw, `"version":1`)
	assert.True(t, f.hasNotice(LevelInfo, msgSynced))
}

func TestCheckForUpdates_VersionOrdering(t *testing.T) {
	tests := []struct {
		name    string
		remote  int64
		applied bool
	}{
		{"older", 4, false},
		{"equal", 5, false},
		{"newer", 6, true},
		{"much newer", 60, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.setVersion(5)
			f.publish(t, peerState(tt.remote))

			got := f.eng.CheckForUpdates(context.Background())
			assert.Equal(t, tt.applied, got)

			s := f.eng.Snapshot()
			if tt.applied {
				assert.Equal(t, tt.remote, s.Version)
				assert.Equal(t, "Ann", s.User1.Name)
			} else {
				assert.Equal(t, int64(5), s.Version)
				assert.Equal(t, plan.DefaultUser1Name, s.User1.Name, "local state untouched")
				assert.Equal(t, 0, f.tr.Clears(), "a valid old token stays")
			}
		})
	}
}

func TestCheckForUpdates_ReplacesWholesale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.AddPlanItem(ctx, plan.User1, plan.LongTerm, "local only")
	require.NoError(t, err)
	f.publish(t, peerState(1))

	require.True(t, f.eng.CheckForUpdates(ctx))

	u, _ := f.eng.User(plan.User1)
	assert.Empty(t, u.LongTermPlans, "no merge: the newer state wins entirely")
}

func TestCheckForUpdates_ClearsMalformedToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.setToken(t, "@@@ not base64 @@@")

	assert.False(t, f.eng.CheckForUpdates(ctx))
	assert.Equal(t, 1, f.tr.Clears())

	_, present, err := f.tr.ReadToken(ctx)
	require.NoError(t, err)
	assert.False(t, present)

	// The next poll finds nothing and does not clear again.
	assert.False(t, f.eng.CheckForUpdates(ctx))
	assert.Equal(t, 1, f.tr.Clears())
	assert.Empty(t, f.notes.Notices(), "passive polling is silent")
}

func TestCheckForUpdates_ClearsUnknownShape(t *testing.T) {
	f := newFixture(t)

	f.setToken(t, base64.RawURLEncoding.EncodeToString([]byte(`{"hello":"world"}`)))

	assert.False(t, f.eng.CheckForUpdates(context.Background()))
	assert.Equal(t, 1, f.tr.Clears())
}

func TestCheckForUpdates_ReadFailure(t *testing.T) {
	f := newFixture(t)
	f.publish(t, peerState(3))
	f.tr.ReadErr = plan.NewError(plan.ErrCodeTransportUnavailable, "gone", nil)

	assert.False(t, f.eng.CheckForUpdates(context.Background()))
	assert.False(t, f.eng.guard.Busy(), "guard is released after a failure")

	f.tr.ReadErr = nil
	assert.True(t, f.eng.CheckForUpdates(context.Background()))
}

func TestCheckForUpdates_RollsOverStaleRemote(t *testing.T) {
	f := newFixture(t)

	remote := peerState(2)
	remote.User2.LastResetMonth = "2025-02"
	f.publish(t, remote)

	require.True(t, f.eng.CheckForUpdates(context.Background()))

	u, _ := f.eng.User(plan.User2)
	assert.Equal(t, []plan.MonthlyAchievement{{Month: "2025-02", Stars: 2, Suns: 1}}, u.MonthlyAchievements)
	assert.Equal(t, 0, u.Suns)
}

func TestCheckForUpdates_SingleFlight(t *testing.T) {
	f := newFixture(t)
	f.publish(t, peerState(3))

	require.True(t, f.eng.guard.TryAcquire())
	assert.False(t, f.eng.CheckForUpdates(context.Background()), "rejected while another check is in flight")
	assert.Equal(t, int64(0), f.eng.Version())
	f.eng.guard.Release()

	assert.True(t, f.eng.CheckForUpdates(context.Background()))
}

func TestCheckForUpdates_OverlappingCallReturnsImmediately(t *testing.T) {
	f := newFixture(t)
	bt := newBlockingTransport(f.tr)
	f.rebuild(bt)
	f.publish(t, peerState(3))
	ctx := context.Background()

	first := make(chan bool, 1)
	go func() { first <- f.eng.CheckForUpdates(ctx) }()
	<-bt.started

	assert.False(t, f.eng.CheckForUpdates(ctx))
	updated, err := f.eng.SyncNow(ctx)
	assert.NoError(t, err)
	assert.False(t, updated)
	assert.True(t, f.eng.Status().Syncing)

	close(bt.release)
	assert.True(t, <-first)
	assert.False(t, f.eng.Status().Syncing)
}

func TestCheckForUpdates_Concurrent(t *testing.T) {
	f := newFixture(t)
	f.publish(t, peerState(7))

	var applied atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.eng.CheckForUpdates(context.Background()) {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), applied.Load())
	assert.Equal(t, int64(7), f.eng.Version())
}

func TestSyncNow(t *testing.T) {
	f := newFixture(t)
	f.publish(t, peerState(2))

	updated, err := f.eng.SyncNow(context.Background())
	require.NoError(t, err)
	assert.True(t, updated)
	assert.True(t, f.hasNotice(LevelInfo, msgSynced))

	updated, err = f.eng.SyncNow(context.Background())
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestSyncNow_DecodeFailureIsReported(t *testing.T) {
	f := newFixture(t)
	f.setToken(t, "!!!!")

	updated, err := f.eng.SyncNow(context.Background())
	require.Error(t, err)
	assert.False(t, updated)
	assert.True(t, plan.IsDecodeError(err))
	assert.Equal(t, 1, f.tr.Clears())
	assert.True(t, f.hasNotice(LevelWarn, msgTokenDiscarded))
}

func TestSyncNow_TransportFailureIsReported(t *testing.T) {
	f := newFixture(t)
	f.tr.ReadErr = plan.NewError(plan.ErrCodeTransportUnavailable, "gone", nil)

	_, err := f.eng.SyncNow(context.Background())
	require.Error(t, err)
	assert.True(t, plan.IsTransportUnavailable(err))
	assert.True(t, f.hasNotice(LevelError, msgSyncFailed))
	assert.False(t, f.eng.guard.Busy())
}

func TestRun_TickAppliesUpdate(t *testing.T) {
	ticks := make(chan time.Time)
	f := newFixture(t, WithTicks(ticks))
	f.publish(t, peerState(5))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.eng.Run(ctx) }()

	ticks <- time.Now()
	assert.Eventually(t, func() bool { return f.eng.Version() == 5 }, time.Second, 5*time.Millisecond)

	// Later ticks with nothing newer are no-ops.
	ticks <- time.Now()
	ticks <- time.Now()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
	assert.Equal(t, int64(5), f.eng.Version())
}

func TestRun_TriggerAppliesUpdate(t *testing.T) {
	ticks := make(chan time.Time) // never fires
	trigger := make(chan struct{})
	f := newFixture(t, WithTicks(ticks), WithTrigger(trigger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.eng.Run(ctx) }()

	f.publish(t, peerState(2))
	trigger <- struct{}{}
	assert.Eventually(t, func() bool { return f.eng.Version() == 2 }, time.Second, 5*time.Millisecond)

	// A closed trigger is ignored; Run keeps going until cancelled.
	close(trigger)
	f.publish(t, peerState(3))
	ticks <- time.Now()
	assert.Eventually(t, func() bool { return f.eng.Version() == 3 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRun_PollInterval(t *testing.T) {
	f := newFixture(t, WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.eng.Run(ctx) }()

	f.publish(t, peerState(1))
	assert.Eventually(t, func() bool { return f.eng.Version() == 1 }, 2*time.Second, 5*time.Millisecond)

	f.publish(t, peerState(4))
	assert.Eventually(t, func() bool { return f.eng.Version() == 4 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRun_WaitsForInFlightCheck(t *testing.T) {
	ticks := make(chan time.Time)
	f := newFixture(t)
	bt := newBlockingTransport(f.tr)
	f.rebuild(bt, WithTicks(ticks))
	f.publish(t, peerState(9))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.eng.Run(ctx) }()

	ticks <- time.Now()
	<-bt.started
	cancel()

	select {
	case <-done:
		t.Fatal("Run returned before the in-flight check finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(bt.release)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the check finished")
	}
	assert.Equal(t, int64(9), f.eng.Version(), "the in-flight check completed")
}

func TestRun_SlowCheckDoesNotBlockTicks(t *testing.T) {
	ticks := make(chan time.Time)
	f := newFixture(t)
	bt := newBlockingTransport(f.tr)
	f.rebuild(bt, WithTicks(ticks))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.eng.Run(ctx) }()

	ticks <- time.Now()
	<-bt.started

	// The ticker keeps being drained while the first check is stuck.
	for range 3 {
		select {
		case ticks <- time.Now():
		case <-time.After(time.Second):
			t.Fatal("tick blocked behind a slow check")
		}
	}

	close(bt.release)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWithPollInterval_NonPositiveKeepsDefault(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		f := newFixture(t, WithPollInterval(d))
		assert.Equal(t, DefaultPollInterval, f.eng.pollInterval)
	}

	f := newFixture(t, WithPollInterval(time.Second))
	assert.Equal(t, time.Second, f.eng.pollInterval)
}

func TestRun_ZeroPollIntervalDoesNotPanic(t *testing.T) {
	f := newFixture(t, WithPollInterval(0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NotPanics(t, func() {
		assert.ErrorIs(t, f.eng.Run(ctx), context.Canceled)
	})
}
