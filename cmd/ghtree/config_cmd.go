package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/ghtree/pkg/config"
)

func (a *app) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings",
		Long: `Show or change the settings file. Changes are saved immediately; a
running ghtree picks them up and reloads its tree.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective settings (token masked)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg := a.manager.Get()
				cfg.GitHub.Token = cfg.Settings().MaskedToken()
				data, err := yaml.Marshal(cfg)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print where settings and state live",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				p := a.manager.Paths()
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "config file: %s\n", p.ConfigFile)
				fmt.Fprintf(out, "config dir:  %s\n", p.ConfigDir)
				fmt.Fprintf(out, "state dir:   %s\n", p.StateDir)
			},
		},
		&cobra.Command{
			Use:   "set-token [token]",
			Short: "Save the GitHub token (prompts when omitted)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var token string
				if len(args) == 1 {
					token = args[0]
				} else {
					var err error
					if token, err = promptToken(cmd.InOrStdin()); err != nil {
						return err
					}
				}
				if token == "" {
					return fmt.Errorf("token is empty")
				}
				if err := a.manager.UpdateToken(token); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Token saved")
				return nil
			},
		},
		a.setterCmd("set-api-url <url>", "Save the GitHub API root", (*config.Manager).UpdateAPIURL),
		a.setterCmd("set-org <owners>", "Save the comma-separated owners to list (empty lists all)", (*config.Manager).UpdateOrganization),
		&cobra.Command{
			Use:   "reset",
			Short: "Restore the default settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := a.manager.Reset(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Settings reset to defaults")
				return nil
			},
		},
		&cobra.Command{
			Use:   "export <path>",
			Short: "Write the settings file to path",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.manager.Export(args[0])
			},
		},
		&cobra.Command{
			Use:   "import <path>",
			Short: "Replace the settings with the file at path",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.manager.Import(args[0])
			},
		},
	)
	return cmd
}

// setterCmd builds a command that saves its single argument with set. The
// manager only exists once setup has run, hence the method expression.
func (a *app) setterCmd(use, short string, set func(*config.Manager, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := set(a.manager, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Saved")
			return nil
		},
	}
}
