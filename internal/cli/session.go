package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/duoplan/internal/codec"
	"github.com/roach88/duoplan/internal/config"
	"github.com/roach88/duoplan/internal/engine"
	"github.com/roach88/duoplan/internal/link"
	"github.com/roach88/duoplan/internal/store"
)

// session is everything one command needs: the loaded config, the open
// store, the address file and an engine resumed from storage. Every
// invocation is a restart, so the link is only imported on request
// (open, sync, watch).
type session struct {
	cfg       config.Config
	store     *store.Store
	transport *link.FileTransport
	eng       *engine.Engine
}

// setupLogging installs the default slog handler on w. One-shot commands
// stay quiet unless something goes wrong; watch reports at info.
func setupLogging(w io.Writer, verbose bool, base slog.Level) {
	level := base
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

// openSession loads config, opens storage and the address file, builds the
// engine and loads state into it. The caller must Close the session.
func openSession(ctx context.Context, cmd *cobra.Command, opts *RootOptions, extra ...engine.Option) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o700); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create storage directory", err)
	}
	slog.Debug("opening storage", "path", cfg.Storage.Path)
	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open storage", err)
	}

	transport, err := link.NewFileTransport(cfg.Link.Path, cfg.Link.BaseURL)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "invalid link configuration", err)
	}

	var clip link.Clipboard = link.NopClipboard{}
	if cfg.Link.ClipboardEnabled() {
		clip = link.SystemClipboard{}
	}

	engOpts := []engine.Option{
		engine.WithCodecOptions(
			codec.WithSizeBudget(cfg.Codec.SizeBudget),
			codec.WithCompression(cfg.Codec.Compress),
		),
		engine.WithNotifier(noticePrinter(cmd.ErrOrStderr())),
		engine.WithClipboard(clip),
		engine.WithUserNames(cfg.Users.User1, cfg.Users.User2),
		engine.WithPollInterval(cfg.Sync.PollInterval),
		engine.WithAutoPublish(cfg.Sync.AutoPublish),
		engine.WithTargetSuns(cfg.TargetSuns),
	}
	engOpts = append(engOpts, extra...)
	engOpts = append(engOpts, opts.EngineOptions...)

	eng := engine.New(st, transport, engOpts...)
	eng.Resume(ctx)

	return &session{cfg: cfg, store: st, transport: transport, eng: eng}, nil
}

// loadConfig reads the config file named by --config, or the default one.
func loadConfig(opts *RootOptions) (config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	slog.Debug("loading config", "path", path)
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// Close releases the store.
func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		slog.Error("error closing storage", "error", err)
	}
}

// noticePrinter prints engine notices as one styled line each.
func noticePrinter(w io.Writer) engine.Notifier {
	return engine.NotifierFunc(func(n engine.Notice) {
		fmt.Fprintln(w, renderNotice(n))
	})
}

// commandContext returns the command's context, or Background when run
// outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
