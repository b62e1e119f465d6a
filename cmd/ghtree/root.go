package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/ghtree/internal/client"
	"github.com/vanderheijden86/ghtree/internal/datasource"
	"github.com/vanderheijden86/ghtree/internal/server"
	"github.com/vanderheijden86/ghtree/pkg/config"
	"github.com/vanderheijden86/ghtree/pkg/enabled"
	"github.com/vanderheijden86/ghtree/pkg/session"
	"github.com/vanderheijden86/ghtree/pkg/ui"
	"github.com/vanderheijden86/ghtree/pkg/version"
	"github.com/vanderheijden86/ghtree/pkg/watcher"
)

// app is the state shared by every command.
type app struct {
	configPath string
	logLevel   string
	embedded   bool

	level   slog.Level
	logger  *slog.Logger
	manager *config.Manager

	companionOnce sync.Once
	companionURL  string
	companionErr  error
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "ghtree",
		Short: "Explore GitHub resources as a tree",
		Long: `ghtree shows GitHub organizations and repositories as a tree, with each
repository's workflows, recent runs, runners, branches, pull requests and
issues loaded on demand.

Without a subcommand it starts the terminal UI. The companion API runs
in-process unless --embedded=false, in which case server.url is used.`,
		Version:           version.String(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE:              a.runTUI,
	}
	root.SetVersionTemplate("ghtree {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default "+config.ConfigPath()+")")
	pf.StringVar(&a.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	pf.BoolVar(&a.embedded, "embedded", true, "run the companion API in this process")
	pf.String("token", "", "GitHub token (overrides github.token)")
	pf.String("api-url", "", "GitHub API root (overrides github.api_url)")
	pf.String("org", "", "comma-separated owners to list (overrides github.organization)")
	pf.String("server", "", "companion API URL used with --embedded=false (overrides server.url)")

	f := root.Flags()
	f.String("view", "", "initial view: tree or list")
	f.String("theme", "", "color theme: dark or light")
	f.Int("page-size", 0, "rows per page in the list view")

	root.AddCommand(
		a.newServeCmd(),
		a.newTreeCmd(),
		a.newRateLimitCmd(),
		a.newEnableCmd(true),
		a.newEnableCmd(false),
		a.newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

// setup parses the log level and loads the configuration.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	switch cmd.Name() {
	case "help", "version", "completion", "__complete":
		return nil
	}
	if cmd.Name() == "serve" && !cmd.Flags().Changed("log-level") {
		a.logLevel = "info"
	}
	if err := a.level.UnmarshalText([]byte(a.logLevel)); err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: a.level}))
	slog.SetDefault(a.logger)

	m, err := config.NewManager(a.configPath, cmd.Flags(), a.logger)
	if err != nil {
		return err
	}
	a.manager = m
	return nil
}

// companion returns the companion API base URL. With --embedded the API is
// started once on a loopback port and runs until ctx ends.
func (a *app) companion(ctx context.Context, cfg config.Config) (string, error) {
	if !a.embedded {
		return cfg.Server.URL, nil
	}
	a.companionOnce.Do(func() {
		srv, err := server.New(server.Config{
			Settings:       a.manager,
			MaxReposPerOrg: cfg.MaxReposPerOrg,
			Logger:         a.logger,
		})
		if err != nil {
			a.companionErr = err
			return
		}
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			a.companionErr = fmt.Errorf("starting embedded companion API: %w", err)
			return
		}
		go func() {
			if err := srv.ServeListener(ctx, ln); err != nil {
				a.logger.Error("embedded companion API stopped", "error", err)
			}
		}()
		a.companionURL = "http://" + ln.Addr().String()
	})
	return a.companionURL, a.companionErr
}

// client builds a companion API client for cfg. The token and API root are
// sent as headers so environment and flag overrides reach the API.
func (a *app) client(ctx context.Context, cfg config.Config) (*client.Client, error) {
	base, err := a.companion(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return client.New(client.Config{
		BaseURL: base,
		Token:   cfg.GitHub.Token,
		APIURL:  cfg.GitHub.APIURL,
		Logger:  a.logger,
	})
}

// openLocal opens the local enabled-state fallback. It is optional: when
// it cannot be opened the app runs without it.
func (a *app) openLocal() *datasource.SQLiteStore {
	dir := config.StateDir()
	if dir == "" {
		return nil
	}
	path := filepath.Join(dir, datasource.DefaultFileName)
	st, err := datasource.OpenSQLite(path)
	if err != nil {
		a.logger.Warn("local enabled-state store unavailable", "path", path, "error", err)
		return nil
	}
	return st
}

func (a *app) sessionSettings(c *client.Client, local *datasource.SQLiteStore, orgs []string) session.Settings {
	p := &enabled.FallbackPersister{Primary: c, Logger: a.logger}
	if local != nil {
		p.Local = local
	}
	return session.Settings{Source: c, Persister: p, Orgs: orgs}
}

// settingsChanged reports whether a config change affects what the tree
// shows. Enabled records are written by the app itself and do not count.
func settingsChanged(before, after config.Config) bool {
	return before.Settings() != after.Settings() ||
		before.MaxReposPerOrg != after.MaxReposPerOrg
}

func (a *app) runTUI(cmd *cobra.Command, _ []string) error {
	cfg := a.manager.Get()

	logger, restore, err := ui.RedirectLogs(config.StateDir(), a.level)
	if err != nil {
		return err
	}
	defer restore()
	a.logger = logger

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	c, err := a.client(ctx, cfg)
	if err != nil {
		return err
	}
	local := a.openLocal()
	if local != nil {
		defer local.Close()
	}

	bridge := ui.NewBridge()
	sess := session.New(session.Config{
		Settings: a.sessionSettings(c, local, nil),
		Confirm:  bridge.Confirm,
		Progress: bridge.Progress,
		Logger:   logger,
	})
	defer sess.Close()

	w, err := watcher.New(a.manager.Path(), watcher.WithLogger(logger))
	if err == nil {
		err = w.Start(ctx)
	}
	if err != nil {
		logger.Warn("settings watcher disabled", "error", err)
		w = nil
	} else {
		defer w.Stop()
	}

	reload := func() (session.Settings, bool, error) {
		before := a.manager.Get()
		if _, err := a.manager.Reload(); err != nil {
			return session.Settings{}, false, err
		}
		after := a.manager.Get()
		if !settingsChanged(before, after) {
			return session.Settings{}, false, nil
		}
		c, err := a.client(ctx, after)
		if err != nil {
			return session.Settings{}, false, err
		}
		return a.sessionSettings(c, local, nil), true, nil
	}

	m := ui.New(ui.Config{
		Session:         sess,
		Bridge:          bridge,
		Watcher:         w,
		Reload:          reload,
		PageSize:        cfg.UI.PageSize,
		DefaultView:     cfg.UI.DefaultView,
		Theme:           cfg.UI.Theme,
		RefreshInterval: time.Duration(cfg.AutoRefreshInterval) * time.Second,
	})
	defer m.Stop()

	return runTUIProgram(m)
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set GHTREE_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("GHTREE_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}
