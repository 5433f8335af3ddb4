package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/duoplan/internal/clock"
	"github.com/roach88/duoplan/internal/plan"
)

// Load initializes the engine at startup and reports whether the link's
// token was imported.
//
// A token already present in the link is imported whatever its version,
// persisted, and announced. Otherwise the persisted state is loaded, and
// missing or corrupt records fall back to fresh users. Either way both
// users are rolled over into the current month and the result is saved
// unless it is identical to what storage already holds.
func (e *Engine) Load(ctx context.Context) bool {
	return e.load(ctx, true)
}

// Resume initializes the engine from storage only. The link is left for
// CheckForUpdates, so a token older than the stored state is never
// imported. Used by processes that restart often against the same link.
func (e *Engine) Resume(ctx context.Context) {
	e.load(ctx, false)
}

func (e *Engine) load(ctx context.Context, importLink bool) bool {
	now := e.clock.Now()
	month := clock.MonthKey(now)

	var (
		state     plan.SharedState
		imported  bool
		storedSum [32]byte
		fromStore bool
	)
	if importLink {
		state, imported = e.importToken(ctx)
	}
	if !imported {
		state, storedSum, fromStore = e.loadStored(ctx, month)
	}
	state.Rollover(month)

	docID, err := e.transport.DocumentID(ctx)
	if err != nil {
		slog.Warn("failed to read document handle", "error", err)
	}

	e.mu.Lock()
	e.state = state
	e.docID = docID
	e.lastSync = now
	e.saved = fromStore
	e.savedSum = storedSum
	saveErr := e.persistLocked(ctx)
	e.mu.Unlock()

	slog.Debug("state loaded",
		"version", state.Version,
		"imported", imported,
		"document", docID,
	)

	if imported {
		e.emit(Notice{Level: LevelInfo, Message: msgImported})
	}
	if saveErr != nil {
		e.emit(Notice{Level: LevelWarn, Message: msgSaveFailed})
	}
	return imported
}

// importToken decodes the token in the link, if any. An undecodable
// token is cleared so it is not retried forever.
func (e *Engine) importToken(ctx context.Context) (plan.SharedState, bool) {
	token, ok, err := e.transport.ReadToken(ctx)
	if err != nil {
		slog.Warn("failed to read shared link", "error", err)
		return plan.SharedState{}, false
	}
	if !ok {
		return plan.SharedState{}, false
	}
	state, err := e.codec.Decode(token)
	if err != nil {
		slog.Warn("discarding unreadable shared token", "error", err)
		e.clearToken(ctx)
		return plan.SharedState{}, false
	}
	return state, true
}

// mutate applies fn to the state under mu. Rollover runs first, and the
// result is persisted and auto-published when anything changed.
func (e *Engine) mutate(ctx context.Context, fn func(now time.Time, s *plan.SharedState) bool) bool {
	var notices []Notice

	e.mu.Lock()
	now := e.clock.Now()
	rolled := e.state.Rollover(clock.MonthKey(now))
	changed := fn(now, &e.state)
	if rolled || changed {
		if err := e.persistLocked(ctx); err != nil {
			notices = append(notices, Notice{Level: LevelWarn, Message: msgSaveFailed})
		} else {
			e.lastSync = now
		}
	}
	if changed && e.autoPublish && e.docID != "" {
		_, published, _ := e.publishLocked(ctx)
		notices = append(notices, published...)
	}
	e.mu.Unlock()

	e.emit(notices...)
	return changed
}

// AddPlanItem appends a new, uncompleted item to user's list. Content is
// trimmed and NFC-normalized; empty content is rejected without mutating.
func (e *Engine) AddPlanItem(ctx context.Context, user plan.UserID, kind plan.ListKind, content string) (plan.PlanItem, error) {
	if err := checkTarget(user, kind); err != nil {
		return plan.PlanItem{}, err
	}
	text, ok := plan.NormalizeContent(content)
	if !ok {
		return plan.PlanItem{}, ErrEmptyContent
	}

	var item plan.PlanItem
	e.mutate(ctx, func(now time.Time, s *plan.SharedState) bool {
		item = plan.PlanItem{
			ID:        e.ids.Generate(),
			Content:   text,
			Completed: false,
			CreatedAt: clock.FormatTimestamp(now),
		}
		return s.User(user).AppendItem(kind, item)
	})

	slog.Debug("plan item added", "user", user, "list", kind, "id", item.ID)
	return item, nil
}

// TogglePlanItem flips the completion of the item with id. Reports false
// when no such item exists, which is not an error.
func (e *Engine) TogglePlanItem(ctx context.Context, user plan.UserID, kind plan.ListKind, id string) (bool, error) {
	if err := checkTarget(user, kind); err != nil {
		return false, err
	}
	return e.mutate(ctx, func(_ time.Time, s *plan.SharedState) bool {
		return s.User(user).ToggleItem(kind, id)
	}), nil
}

// DeletePlanItem removes the item with id. Reports false when no such item
// exists, which is not an error.
func (e *Engine) DeletePlanItem(ctx context.Context, user plan.UserID, kind plan.ListKind, id string) (bool, error) {
	if err := checkTarget(user, kind); err != nil {
		return false, err
	}
	return e.mutate(ctx, func(_ time.Time, s *plan.SharedState) bool {
		return s.User(user).DeleteItem(kind, id)
	}), nil
}

// AddStar credits today's star to user, converting every five stars into a
// sun. Reports false without mutating when user already has today's star.
func (e *Engine) AddStar(ctx context.Context, user plan.UserID) (bool, error) {
	if !user.Valid() {
		return false, ErrUnknownUser
	}
	added := e.mutate(ctx, func(now time.Time, s *plan.SharedState) bool {
		return s.User(user).AddStar(now)
	})
	if added {
		slog.Debug("star added", "user", user)
	}
	return added, nil
}

func checkTarget(user plan.UserID, kind plan.ListKind) error {
	if !user.Valid() {
		return ErrUnknownUser
	}
	if !kind.Valid() {
		return ErrUnknownList
	}
	return nil
}
