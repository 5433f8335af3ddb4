package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/duoplan/internal/link"
	"github.com/roach88/duoplan/internal/plan"
)

// NewShareCommand creates the share command.
func NewShareCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "share",
		Short: "Encode the state into the shareable link",
		Long: `Encode the current state into the shareable link, bump the version and
copy the link to the clipboard.

Send the printed link to the other person; they run "duoplan open <link>".
When the state is too big for a link the earliest items of each list are
kept and a warning is printed.

Example:
  duoplan share`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session, out *OutputFormatter) error {
				share, err := s.eng.GenerateShareLink(commandContext(cmd))
				if err != nil {
					return out.Fail(ExitFailure, "failed to generate share link", err)
				}
				return out.Result(share, share.URL)
			})
		},
	}
}

// syncResult is the JSON shape of sync and open.
type syncResult struct {
	Updated bool  `json:"updated"`
	Version int64 `json:"version"`
}

func (r syncResult) text() string {
	if r.Updated {
		return fmt.Sprintf("%s updated to version %d", successStyle.Render("✔"), r.Version)
	}
	return mutedStyle.Render(fmt.Sprintf("up to date (version %d)", r.Version))
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Import the link's state if it is newer",
		Long: `Check the current link once and import its state when its version is
higher than the local one. An undecodable token is removed from the link.

Example:
  duoplan sync`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session, out *OutputFormatter) error {
				return syncOnce(cmd, s, out)
			})
		},
	}
}

// NewOpenCommand creates the open command.
func NewOpenCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "open <url>",
		Short: "Use a link received from the other person",
		Long: `Make <url> the current link and import the state it carries. The
imported state replaces the local one whatever its version, the same as
opening the link in a browser.

Example:
  duoplan open 'http://localhost:5173/?data=eyJ2Ijo...'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session, out *OutputFormatter) error {
				if err := link.ValidateAddress(args[0]); err != nil {
					return out.Fail(ExitCommandError, "invalid link", err)
				}
				if err := s.transport.SetAddress(commandContext(cmd), args[0]); err != nil {
					return out.Fail(ExitFailure, "failed to store link", err)
				}
				out.VerboseLog("link stored in %s", s.transport.Path())

				// Opening a link imports it whatever its version.
				r := syncResult{Updated: s.eng.Load(commandContext(cmd)), Version: s.eng.Version()}
				return out.Result(r, r.text())
			})
		},
	}
}

func syncOnce(cmd *cobra.Command, s *session, out *OutputFormatter) error {
	updated, err := s.eng.SyncNow(commandContext(cmd))
	if err != nil {
		// A discarded token leaves the local state valid.
		if plan.IsDecodeError(err) {
			r := syncResult{Version: s.eng.Version()}
			return out.Result(r, r.text())
		}
		return out.Fail(ExitFailure, "sync failed", err)
	}
	r := syncResult{Updated: updated, Version: s.eng.Version()}
	return out.Result(r, r.text())
}

// docResult is the JSON shape of doc.
type docResult struct {
	DocumentID string `json:"documentId"`
	URL        string `json:"url"`
}

// NewDocCommand creates the doc command.
func NewDocCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doc",
		Short: "Create a shared document handle",
		Long: `Put a new document handle into the link and publish the state to it.
With sync.auto_publish enabled every later change is published to the
link automatically.

Example:
  duoplan doc`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session, out *OutputFormatter) error {
				ctx := commandContext(cmd)
				id, err := s.eng.CreateDocument(ctx)
				if err != nil {
					return out.Fail(ExitFailure, "failed to create document", err)
				}
				addr, err := s.transport.Address(ctx)
				if err != nil {
					return out.Fail(ExitFailure, "failed to read link", err)
				}
				return out.Result(docResult{DocumentID: id, URL: addr}, addr)
			})
		},
	}
}
