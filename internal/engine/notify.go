package engine

import (
	"log/slog"
	"sync"
)

// Level is the severity of a Notice.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notice is a short user-facing message about something the engine did.
type Notice struct {
	Level   Level
	Message string
}

// Notifier receives notices. Implementations must be safe for concurrent
// use; Run delivers notices from its tick goroutines.
type Notifier interface {
	Notify(n Notice)
}

// LogNotifier writes notices to the default slog logger.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(n Notice) {
	switch n.Level {
	case LevelError:
		slog.Error(n.Message)
	case LevelWarn:
		slog.Warn(n.Message)
	default:
		slog.Info(n.Message)
	}
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notice) { f(n) }

// RecordingNotifier keeps every notice it receives.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

// Notify implements Notifier.
func (r *RecordingNotifier) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of the received notices in order.
func (r *RecordingNotifier) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Last returns the most recent notice.
func (r *RecordingNotifier) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}

// Messages
const (
	msgImported       = "imported shared data"
	msgSynced         = "synced the latest data"
	msgLinkCopied     = "share link copied to clipboard; send it to the other person"
	msgCopyFailed     = "could not copy the link, copy it manually"
	msgTruncated      = "data was too large and has been trimmed; the link may contain only part of the plans"
	msgTooLarge       = "data is too large to share; delete some plans you no longer need"
	msgShareFailed    = "share link could not be written, try again"
	msgDocCreated     = "shared document created; share links now carry it"
	msgDocFailed      = "could not create a shared document, try again"
	msgSyncFailed     = "sync failed"
	msgSaveFailed     = "could not save changes locally"
	msgTokenDiscarded = "the shared link could not be read and was discarded"
)
