package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/duoplan/internal/plan"
)

// GenerateShareLink encodes the state with the next version, writes the
// token into the shareable address and copies the address to the
// clipboard.
//
// The local version advances only when the token was written. A clipboard
// failure is not an error; the user is told to copy the link manually.
func (e *Engine) GenerateShareLink(ctx context.Context) (ShareLink, error) {
	e.mu.Lock()
	e.rolloverLocked()
	link, notices, err := e.publishLocked(ctx)
	e.mu.Unlock()

	if err == nil {
		if copyErr := e.clipboard.Copy(link.URL); copyErr != nil {
			slog.Warn("failed to copy share link", "error", copyErr)
			notices = append(notices, Notice{Level: LevelWarn, Message: msgCopyFailed})
		} else {
			notices = append(notices, Notice{Level: LevelInfo, Message: msgLinkCopied})
		}
	}

	e.emit(notices...)
	return link, err
}

// publishLocked encodes and writes the state with version+1. Caller must
// hold mu. The returned notices are for the caller to emit after
// releasing mu.
func (e *Engine) publishLocked(ctx context.Context) (ShareLink, []Notice, error) {
	next := e.state.Clone()
	next.Version = e.state.Version + 1

	res, err := e.codec.Encode(next)
	if err != nil {
		if plan.IsPayloadTooLarge(err) {
			slog.Warn("state too large to share", "version", next.Version, "error", err)
			return ShareLink{}, []Notice{{Level: LevelError, Message: msgTooLarge}}, err
		}
		slog.Error("failed to encode state", "version", next.Version, "error", err)
		return ShareLink{}, []Notice{{Level: LevelError, Message: msgShareFailed}}, err
	}

	address, err := e.transport.WriteToken(ctx, res.Token)
	if err != nil {
		slog.Error("failed to write share token", "version", next.Version, "error", err)
		return ShareLink{}, []Notice{{Level: LevelError, Message: msgShareFailed}},
			fmt.Errorf("write share token: %w", err)
	}

	// The version only advances once the token is in the link, so a failed
	// share can be retried without skipping a version.
	e.state.Version = next.Version
	var notices []Notice
	if err := e.persistLocked(ctx); err != nil {
		notices = append(notices, Notice{Level: LevelWarn, Message: msgSaveFailed})
	}
	if res.Truncated {
		notices = append(notices, Notice{Level: LevelWarn, Message: msgTruncated})
	}

	slog.Info("share link written",
		"version", next.Version,
		"length", len(res.Token),
		"truncated", res.Truncated,
	)
	return ShareLink{URL: address, Version: next.Version, Truncated: res.Truncated}, notices, nil
}

// CreateDocument generates a document handle, stores it in the shareable
// address and immediately publishes a share link carrying it.
//
// A failed publish does not undo the handle; the failure is reported
// through the notifier like any other share.
func (e *Engine) CreateDocument(ctx context.Context) (string, error) {
	id := e.ids.Generate()
	if err := e.transport.SetDocumentID(ctx, id); err != nil {
		slog.Error("failed to store document handle", "error", err)
		e.emit(Notice{Level: LevelError, Message: msgDocFailed})
		return "", fmt.Errorf("store document handle: %w", err)
	}

	e.mu.Lock()
	e.docID = id
	e.mu.Unlock()

	slog.Info("shared document created", "document", id)
	if _, err := e.GenerateShareLink(ctx); err != nil {
		slog.Warn("document created without a share link", "document", id, "error", err)
	}
	e.emit(Notice{Level: LevelInfo, Message: msgDocCreated})
	return id, nil
}

func (e *Engine) clearToken(ctx context.Context) {
	if err := e.transport.ClearToken(ctx); err != nil {
		slog.Warn("failed to clear shared token", "error", err)
	}
}
