package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/roach88/duoplan/internal/clock"
	"github.com/roach88/duoplan/internal/codec"
	"github.com/roach88/duoplan/internal/flight"
	"github.com/roach88/duoplan/internal/ident"
	"github.com/roach88/duoplan/internal/link"
	"github.com/roach88/duoplan/internal/plan"
	"github.com/roach88/duoplan/internal/store"
)

// DefaultPollInterval is how often Run checks the link for a newer state.
const DefaultPollInterval = 5 * time.Second

var (
	// ErrEmptyContent rejects plan items whose trimmed content is empty.
	ErrEmptyContent = errors.New("plan content is empty")

	// ErrUnknownUser rejects a user id or name that matches neither user.
	ErrUnknownUser = errors.New("unknown user")

	// ErrUnknownList rejects a list kind other than short or long term.
	ErrUnknownList = errors.New("unknown plan list")
)

// Engine is the sync engine for one local copy of the shared plan.
//
// Thread-safety model:
//   - All exported methods are safe from any goroutine
//   - Mutations serialize on mu and run to completion
//   - CheckForUpdates and SyncNow are single-flight via guard
//
// INVARIANTS:
//   - state is only replaced by a decoded state with a strictly greater version
//   - state.Version only advances when a share token was written
//   - every value leaving the engine is a deep copy
type Engine struct {
	store     store.KV
	transport link.Transport
	codec     *codec.Codec
	codecOpts []codec.Option
	clock     clock.Clock
	ids       ident.Generator
	notifier  Notifier
	clipboard link.Clipboard

	pollInterval time.Duration
	ticks        <-chan time.Time
	trigger      <-chan struct{}
	autoPublish  bool
	user1Name    string
	user2Name    string
	targetSuns   int

	guard flight.Guard

	mu       sync.Mutex
	state    plan.SharedState
	docID    string
	lastSync time.Time
	saved    bool
	savedSum [32]byte
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the wall clock used for stars, rollover and timestamps.
//
// Default: clock.System{} (local time).
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator sets the generator for plan item and document ids.
//
// Default: ident.UUIDv7Generator{}.
func WithIDGenerator(g ident.Generator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithCodec sets the token codec.
//
// Default: codec.New with the engine clock and default budget.
func WithCodec(c *codec.Codec) Option {
	return func(e *Engine) {
		e.codec = c
	}
}

// WithCodecOptions configures the default codec, which is built with the
// engine clock. Ignored when WithCodec is given.
func WithCodecOptions(opts ...codec.Option) Option {
	return func(e *Engine) {
		e.codecOpts = append(e.codecOpts, opts...)
	}
}

// WithNotifier sets the receiver of user-facing notices.
//
// Default: LogNotifier.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithClipboard sets where finished share links are copied.
//
// Default: link.NopClipboard.
func WithClipboard(c link.Clipboard) Option {
	return func(e *Engine) {
		e.clipboard = c
	}
}

// WithPollInterval sets the Run ticker period. Zero or negative values
// keep the default.
//
// Default: 5s (DefaultPollInterval).
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.pollInterval = d
	}
}

// WithTicks replaces the Run ticker with ch. Each value received starts
// one check. Used to drive Run deterministically in tests.
func WithTicks(ch <-chan time.Time) Option {
	return func(e *Engine) {
		e.ticks = ch
	}
}

// WithTrigger adds an extra wake-up source for Run, such as a file watcher.
// Each value received starts one check, exactly like a tick.
func WithTrigger(ch <-chan struct{}) Option {
	return func(e *Engine) {
		e.trigger = ch
	}
}

// WithAutoPublish re-encodes the state into the link after every
// successful mutation while a document handle is present.
func WithAutoPublish(on bool) Option {
	return func(e *Engine) {
		e.autoPublish = on
	}
}

// WithUserNames sets the names given to users created from scratch.
//
// Default: plan.DefaultUser1Name and plan.DefaultUser2Name.
func WithUserNames(user1, user2 string) Option {
	return func(e *Engine) {
		e.user1Name = user1
		e.user2Name = user2
	}
}

// WithTargetSuns sets the monthly sun target reported by Motivation.
//
// Default: 3 (plan.DefaultTargetSuns).
func WithTargetSuns(n int) Option {
	return func(e *Engine) {
		e.targetSuns = n
	}
}

// New creates an Engine over the given persistence adapter and link
// transport. The engine starts with fresh default users; call Load to pick
// up persisted or shared data.
func New(kv store.KV, transport link.Transport, opts ...Option) *Engine {
	e := &Engine{
		store:        kv,
		transport:    transport,
		clock:        clock.System{},
		ids:          ident.UUIDv7Generator{},
		notifier:     LogNotifier{},
		clipboard:    link.NopClipboard{},
		pollInterval: DefaultPollInterval,
		user1Name:    plan.DefaultUser1Name,
		user2Name:    plan.DefaultUser2Name,
		targetSuns:   plan.DefaultTargetSuns,
	}

	for _, opt := range opts {
		opt(e)
	}
	if e.pollInterval <= 0 {
		e.pollInterval = DefaultPollInterval
	}

	if e.codec == nil {
		e.codec = codec.New(e.clock, e.codecOpts...)
	}

	now := e.clock.Now()
	e.state = plan.NewSharedState(e.user1Name, e.user2Name, clock.MonthKey(now))
	e.lastSync = now
	return e
}

// ShareLink is the outcome of a successful GenerateShareLink.
type ShareLink struct {
	URL       string `json:"url"`
	Version   int64  `json:"version"`
	Truncated bool   `json:"truncated"`
}

// Status summarizes the engine for display.
type Status struct {
	Version    int64         `json:"version"`
	Syncing    bool          `json:"syncing"`
	LastSync   time.Time     `json:"lastSync"`
	DocumentID string        `json:"documentId,omitempty"`
	TotalSuns  int           `json:"totalSuns"`
	User1      plan.UserData `json:"user1"`
	User2      plan.UserData `json:"user2"`
}

// Snapshot returns a deep copy of the current state, rolled over into the
// current month.
func (e *Engine) Snapshot() plan.SharedState {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rolloverLocked()
	return e.state.Clone()
}

// User returns a deep copy of one user.
func (e *Engine) User(id plan.UserID) (plan.UserData, error) {
	if !id.Valid() {
		return plan.UserData{}, ErrUnknownUser
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rolloverLocked()
	return e.state.User(id).Clone(), nil
}

// Status returns the current version, sync state and both users.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rolloverLocked()
	return Status{
		Version:    e.state.Version,
		Syncing:    e.guard.Busy(),
		LastSync:   e.lastSync,
		DocumentID: e.docID,
		TotalSuns:  e.state.TotalSuns(),
		User1:      e.state.User1.Clone(),
		User2:      e.state.User2.Clone(),
	}
}

// Version returns the local version counter.
func (e *Engine) Version() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Version
}

// DocumentID returns the shared document handle, or "" if none exists.
func (e *Engine) DocumentID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docID
}

// TotalSuns returns the sum of both users' suns this month.
func (e *Engine) TotalSuns() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rolloverLocked()
	return e.state.TotalSuns()
}

// CanAddStarToday reports whether user has not yet earned today's star.
func (e *Engine) CanAddStarToday(id plan.UserID) bool {
	if !id.Valid() {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.User(id).CanAddStar(e.clock.Now())
}

// Motivation reports user's progress towards the monthly sun target.
func (e *Engine) Motivation(id plan.UserID) (plan.Motivation, error) {
	if !id.Valid() {
		return plan.Motivation{}, ErrUnknownUser
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rolloverLocked()
	return plan.Progress(e.state.User(id).Suns, e.targetSuns), nil
}

// LastMonth returns the most recent archived month of user, if any.
func (e *Engine) LastMonth(id plan.UserID) (plan.MonthlyAchievement, bool) {
	if !id.Valid() {
		return plan.MonthlyAchievement{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rolloverLocked()
	history := e.state.User(id).MonthlyAchievements
	if len(history) == 0 {
		return plan.MonthlyAchievement{}, false
	}
	return history[0], true
}

// ResolveUser maps "1", "2", "user1", "user2" or either user's name to a
// UserID. Names are compared after NFC normalization.
func (e *Engine) ResolveUser(s string) (plan.UserID, error) {
	key, _ := plan.NormalizeContent(s)
	switch strings.ToLower(key) {
	case "1", "user1":
		return plan.User1, nil
	case "2", "user2":
		return plan.User2, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range []plan.UserID{plan.User1, plan.User2} {
		name, _ := plan.NormalizeContent(e.state.User(id).Name)
		if name != "" && name == key {
			return id, nil
		}
	}
	if _, err := strconv.Atoi(key); err == nil {
		return 0, fmt.Errorf("%w: user number must be 1 or 2, got %s", ErrUnknownUser, key)
	}
	return 0, fmt.Errorf("%w: no user named %q", ErrUnknownUser, s)
}

// rolloverLocked moves both users into the current month in memory. The
// change is persisted with the next save. Caller must hold mu.
func (e *Engine) rolloverLocked() bool {
	return e.state.Rollover(clock.MonthKey(e.clock.Now()))
}

func (e *Engine) emit(notices ...Notice) {
	for _, n := range notices {
		e.notifier.Notify(n)
	}
}
