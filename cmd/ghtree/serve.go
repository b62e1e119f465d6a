package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/ghtree/internal/server"
	"github.com/vanderheijden86/ghtree/pkg/config"
	"github.com/vanderheijden86/ghtree/pkg/watcher"
)

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the companion API",
		Long: `Run the companion HTTP API on server.addr. It answers tree, repository
detail and rate limit requests from GitHub and exposes the settings file.
Edits to the settings file are picked up while it runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.manager.Get()
			srv, err := server.New(server.Config{
				Settings:       a.manager,
				MaxReposPerOrg: cfg.MaxReposPerOrg,
				Logger:         a.logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w, err := watcher.New(a.manager.Path(),
				watcher.WithLogger(a.logger),
				watcher.WithOnChange(func() {
					if changed, err := a.manager.Reload(); err != nil {
						a.logger.Warn("settings reload failed", "error", err)
					} else if changed {
						a.logger.Info("settings reloaded", "path", a.manager.Path())
					}
				}))
			if err == nil {
				err = w.Start(ctx)
			}
			if err != nil {
				a.logger.Warn("settings watcher disabled", "error", err)
			} else {
				defer w.Stop()
			}

			return srv.Serve(ctx, cfg.Server.Addr)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default "+config.DefaultConfig().Server.Addr+")")
	return cmd
}
