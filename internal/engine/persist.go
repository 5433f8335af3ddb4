package engine

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"github.com/zeebo/blake3"

	"github.com/roach88/duoplan/internal/clock"
	"github.com/roach88/duoplan/internal/plan"
)

// Persistence keys. The names match the records written by the browser
// app, so an exported local store can be read by either side.
const (
	KeyUser1  = "user1Data"
	KeyUser2  = "user2Data"
	KeyShared = "sharedPlanData"
)

// sharedRecord is the value stored under KeyShared.
type sharedRecord struct {
	User1     plan.UserData `json:"user1"`
	User2     plan.UserData `json:"user2"`
	Version   int64         `json:"version"`
	LastSaved int64         `json:"lastSaved"` // epoch millis
}

// fingerprint hashes the state so unchanged saves can be skipped.
func fingerprint(state plan.SharedState) ([32]byte, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return [32]byte{}, err
	}
	return blake3.Sum256(data), nil
}

func shortHash(sum [32]byte) string {
	return hex.EncodeToString(sum[:6])
}

// persistLocked writes the current state under all three keys unless it is
// unchanged since the last successful save. Caller must hold mu.
//
// A failed save is logged and returned; the in-memory state is kept.
func (e *Engine) persistLocked(ctx context.Context) error {
	sum, err := fingerprint(e.state)
	if err != nil {
		return err
	}
	if e.saved && sum == e.savedSum {
		slog.Debug("state unchanged, skipping save", "fingerprint", shortHash(sum))
		return nil
	}

	user1, err := json.Marshal(e.state.User1)
	if err != nil {
		return err
	}
	user2, err := json.Marshal(e.state.User2)
	if err != nil {
		return err
	}
	shared, err := json.Marshal(sharedRecord{
		User1:     e.state.User1,
		User2:     e.state.User2,
		Version:   e.state.Version,
		LastSaved: clock.EpochMillis(e.clock.Now()),
	})
	if err != nil {
		return err
	}

	records := []struct {
		key   string
		value []byte
	}{
		{KeyUser1, user1},
		{KeyUser2, user2},
		{KeyShared, shared},
	}
	for _, r := range records {
		if err := e.store.Save(ctx, r.key, string(r.value)); err != nil {
			slog.Warn("failed to save state",
				"key", r.key,
				"version", e.state.Version,
				"error", err,
			)
			return err
		}
	}

	e.saved = true
	e.savedSum = sum
	slog.Debug("state saved", "version", e.state.Version, "fingerprint", shortHash(sum))
	return nil
}

// loadStored reads the persisted state. sharedPlanData wins because it
// carries the version; otherwise the per-user records are used with
// version 0. Missing or unreadable records become fresh users.
//
// When the state came from sharedPlanData, sum is the fingerprint of the
// record as stored and fromStore is true, so an unchanged record is not
// written back.
func (e *Engine) loadStored(ctx context.Context, month string) (state plan.SharedState, sum [32]byte, fromStore bool) {
	if raw, ok := e.loadKey(ctx, KeyShared); ok {
		var rec sharedRecord
		err := json.Unmarshal([]byte(raw), &rec)
		if err == nil {
			state = plan.SharedState{User1: rec.User1, User2: rec.User2, Version: rec.Version}
			sum, err = fingerprint(state)
			fromStore = err == nil
			fillUser(&state.User1, e.user1Name)
			fillUser(&state.User2, e.user2Name)
			state.Normalize(month)
			return state, sum, fromStore
		}
		slog.Warn("discarding unreadable stored state", "key", KeyShared, "error", err)
	}

	state = plan.SharedState{
		User1: e.loadUser(ctx, KeyUser1, e.user1Name, month),
		User2: e.loadUser(ctx, KeyUser2, e.user2Name, month),
	}
	return state, sum, false
}

func (e *Engine) loadUser(ctx context.Context, key, name, month string) plan.UserData {
	raw, ok := e.loadKey(ctx, key)
	if !ok {
		return plan.NewUserData(name, month)
	}
	var u plan.UserData
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		slog.Warn("discarding unreadable stored user", "key", key, "error", err)
		return plan.NewUserData(name, month)
	}
	fillUser(&u, name)
	u.Normalize(month)
	return u
}

func (e *Engine) loadKey(ctx context.Context, key string) (string, bool) {
	raw, ok, err := e.store.Load(ctx, key)
	if err != nil {
		slog.Warn("failed to load stored state", "key", key, "error", err)
		return "", false
	}
	return raw, ok
}

// fillUser upgrades records written before monthly history existed: no
// cycle month means the history starts empty. A blank name gets the
// configured one.
func fillUser(u *plan.UserData, name string) {
	if u.LastResetMonth == "" {
		u.MonthlyAchievements = []plan.MonthlyAchievement{}
	}
	if u.Name == "" {
		u.Name = name
	}
}
