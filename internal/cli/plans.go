package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/duoplan/internal/engine"
	"github.com/roach88/duoplan/internal/plan"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show both users' plans, stars and suns",
		Long: `Show both users' plans, stars and suns, the local version and the
progress towards the monthly sun target.

Example:
  duoplan status
  duoplan status --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session, out *OutputFormatter) error {
				v := newStatusView(s.eng)
				return out.Result(v, renderStatus(v))
			})
		},
	}
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <user> <short|long> <content...>",
		Short: "Add a plan item",
		Long: `Add a plan item to one of a user's lists.

<user> is 1, 2, user1, user2 or a configured name. The content is
trimmed and must not be empty.

Example:
  duoplan add 1 short "run 5k"
  duoplan add Ann long learn the cello`,
		Args:          cobra.MinimumNArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session, out *OutputFormatter) error {
				user, kind, err := parseTarget(s.eng, args[0], args[1])
				if err != nil {
					return out.Fail(ExitCommandError, "invalid arguments", err)
				}
				item, err := s.eng.AddPlanItem(commandContext(cmd), user, kind, strings.Join(args[2:], " "))
				if err != nil {
					return out.Fail(ExitCommandError, "failed to add plan item", err)
				}
				return out.Result(item, fmt.Sprintf("%s added %s", successStyle.Render("✔"), mutedStyle.Render(shortID(item.ID))))
			})
		},
	}
}

// itemResult is the JSON shape of toggle and delete.
type itemResult struct {
	ID      string `json:"id"`
	Changed bool   `json:"changed"`
}

// NewToggleCommand creates the toggle command.
func NewToggleCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <user> <short|long> <id>",
		Short: "Flip a plan item between open and done",
		Long: `Flip a plan item between open and done.

<id> is the full item id or the unique tail shown by "status".

Example:
  duoplan toggle 1 short 7f3a9c21`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return itemCommand(cmd, rootOpts, args, "toggled", (*engine.Engine).TogglePlanItem)
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user> <short|long> <id>",
		Short: "Remove a plan item",
		Long: `Remove a plan item.

<id> is the full item id or the unique tail shown by "status".

Example:
  duoplan delete 2 long 7f3a9c21`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return itemCommand(cmd, rootOpts, args, "deleted", (*engine.Engine).DeletePlanItem)
		},
	}
}

type itemOp func(e *engine.Engine, ctx context.Context, user plan.UserID, kind plan.ListKind, id string) (bool, error)

func itemCommand(cmd *cobra.Command, rootOpts *RootOptions, args []string, verb string, op itemOp) error {
	return withSession(cmd, rootOpts, func(s *session, out *OutputFormatter) error {
		user, kind, err := parseTarget(s.eng, args[0], args[1])
		if err != nil {
			return out.Fail(ExitCommandError, "invalid arguments", err)
		}
		id, err := resolveItem(s.eng, user, kind, args[2])
		if err != nil {
			return out.Fail(ExitCommandError, "invalid arguments", err)
		}
		changed, err := op(s.eng, commandContext(cmd), user, kind, id)
		if err != nil {
			return out.Fail(ExitCommandError, "failed to update plan item", err)
		}
		return out.Result(itemResult{ID: id, Changed: changed},
			fmt.Sprintf("%s %s %s", successStyle.Render("✔"), verb, mutedStyle.Render(shortID(id))))
	})
}

// starResult is the JSON shape of star.
type starResult struct {
	Added bool `json:"added"`
	Stars int  `json:"stars"`
	Suns  int  `json:"suns"`
}

// NewStarCommand creates the star command.
func NewStarCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "star <user>",
		Short: "Award today's star",
		Long: `Award a user today's star. One star per calendar day; five stars
become a sun.

Exits 1 when the user already has today's star.

Example:
  duoplan star 1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session, out *OutputFormatter) error {
				user, err := s.eng.ResolveUser(args[0])
				if err != nil {
					return out.Fail(ExitCommandError, "invalid arguments", err)
				}
				added, err := s.eng.AddStar(commandContext(cmd), user)
				if err != nil {
					return out.Fail(ExitCommandError, "failed to add star", err)
				}
				u, _ := s.eng.User(user)
				if !added {
					_ = out.Error("ALREADY_STARRED", "already starred today", nil)
					return NewExitError(ExitFailure, "already starred today")
				}
				return out.Result(starResult{Added: added, Stars: u.Stars, Suns: u.Suns},
					fmt.Sprintf("%s %s  %s", successStyle.Render("✔"), u.Name, renderStars(u.Stars, false)))
			})
		},
	}
}

func parseTarget(eng *engine.Engine, userArg, kindArg string) (plan.UserID, plan.ListKind, error) {
	user, err := eng.ResolveUser(userArg)
	if err != nil {
		return 0, 0, err
	}
	kind, err := plan.ParseListKind(kindArg)
	if err != nil {
		return 0, 0, err
	}
	return user, kind, nil
}

// resolveItem accepts a full id or a tail that matches exactly one item.
// An unmatched ref is passed through so the engine reports a plain miss.
func resolveItem(eng *engine.Engine, user plan.UserID, kind plan.ListKind, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("item id must not be empty")
	}

	u, err := eng.User(user)
	if err != nil {
		return "", err
	}
	if it, ok := u.FindItem(kind, ref); ok {
		return it.ID, nil
	}

	var matches []string
	for _, it := range *u.List(kind) {
		if strings.HasSuffix(it.ID, ref) {
			matches = append(matches, it.ID)
		}
	}
	switch len(matches) {
	case 0:
		return ref, nil
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("item %q is ambiguous: %d items match", ref, len(matches))
	}
}

// withSession opens a one-shot session, runs fn and closes it.
func withSession(cmd *cobra.Command, rootOpts *RootOptions, fn func(*session, *OutputFormatter) error) error {
	setupLogging(cmd.ErrOrStderr(), rootOpts.Verbose, slog.LevelWarn)
	out := rootOpts.formatter(cmd)

	s, err := openSession(commandContext(cmd), cmd, rootOpts)
	if err != nil {
		_ = out.Error("COMMAND", err.Error(), nil)
		return err
	}
	defer s.Close()

	return fn(s, out)
}
