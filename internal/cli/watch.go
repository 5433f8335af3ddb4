package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/duoplan/internal/engine"
	"github.com/roach88/duoplan/internal/link"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Interval time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the local state in step with the link",
		Long: `Check the link periodically and whenever the link file changes, and
import newer state as it arrives. Runs until interrupted.

Example:
  duoplan watch
  duoplan watch --interval 2s --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "poll interval (default from config, 5s)")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	setupLogging(cmd.ErrOrStderr(), opts.Verbose, slog.LevelInfo)

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	// The watcher needs the link path, which is only known after the config
	// is loaded, so the session is opened in two steps.
	path, err := linkPath(opts.RootOptions)
	if err != nil {
		return err
	}
	watcher, err := link.NewWatcher(path, link.DefaultDebounce, slog.Default())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to watch link file", err)
	}
	defer watcher.Close()

	extra := []engine.Option{engine.WithTrigger(watcher.Changes())}
	if opts.Interval > 0 {
		extra = append(extra, engine.WithPollInterval(opts.Interval))
	}
	s, err := openSession(ctx, cmd, opts.RootOptions, extra...)
	if err != nil {
		return err
	}
	defer s.Close()

	go func() {
		if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("link watcher stopped", "error", err)
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (version %d).\n", path, s.eng.Version())
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := s.eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "sync loop error", err)
	}

	slog.Info("watch stopped gracefully", "version", s.eng.Version())
	return nil
}

// linkPath returns the configured address file path.
func linkPath(opts *RootOptions) (string, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return "", err
	}
	return cfg.Link.Path, nil
}
