package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/ghtree/pkg/model"
	"github.com/vanderheijden86/ghtree/pkg/session"
)

func (a *app) newRateLimitCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "rate-limit",
		Short: "Show the GitHub API rate limit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client(cmd.Context(), a.manager.Get())
			if err != nil {
				return err
			}
			rl, err := c.FetchRateLimit(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), rl)
			}
			renderRateLimit(cmd.OutOrStdout(), rl)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	return cmd
}

// newEnableCmd builds `enable` or `disable`. The change cascades to the
// node's descendants and is persisted before the command exits.
func (a *app) newEnableCmd(on bool) *cobra.Command {
	name, verb := "enable", "Enabled"
	if !on {
		name, verb = "disable", "Disabled"
	}
	return &cobra.Command{
		Use:     name + " <node-id>",
		Short:   verb[:len(verb)-1] + " an organization or repository",
		Example: "  ghtree " + name + " " + model.RepoID("acme", "widgets"),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.client(ctx, a.manager.Get())
			if err != nil {
				return err
			}
			local := a.openLocal()
			if local != nil {
				defer local.Close()
			}
			sess := session.New(session.Config{
				Settings: a.sessionSettings(c, local, nil),
				Logger:   a.logger,
			})
			if err := sess.Load(ctx); err != nil {
				return err
			}

			id := args[0]
			if t := model.TypeOfID(id); !t.IsPersistable() {
				return fmt.Errorf("%s: only organizations and repositories can be %sd", id, name)
			}
			res, err := sess.Enabled.SetEnabled(ctx, id, on)
			if err != nil {
				return err
			}
			if err := sess.Close(); err != nil {
				return fmt.Errorf("saving enabled state: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", verb, id)
			if n := len(res.Pending); n > 0 {
				fmt.Fprintf(out, "%d repositories will load details when expanded\n", n)
			}
			return nil
		},
	}
}
