// Package config handles loading and saving ghtree configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/ghtree/config.yaml
//   - State:   ~/.local/state/ghtree/ (log file, local enabled-state database)
//
// Values are layered, lowest first: built-in defaults, the config file,
// GHTREE_* environment variables (GHTREE_GITHUB__TOKEN sets github.token),
// then command-line flags. GITHUB_TOKEN is used when no token is set by any
// layer.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/vanderheijden86/ghtree/pkg/model"
)

const appName = "ghtree"

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "GHTREE_"

// GitHubConfig holds the GitHub connection settings.
type GitHubConfig struct {
	Token        string `yaml:"token,omitempty"`
	APIURL       string `yaml:"api_url"`
	Organization string `yaml:"organization,omitempty"` // comma-separated owners
}

// UIConfig holds UI preference settings.
type UIConfig struct {
	Theme       string `yaml:"theme"`        // dark, light
	DefaultView string `yaml:"default_view"` // tree, list
	PageSize    int    `yaml:"page_size"`
}

// ServerConfig locates the companion API.
type ServerConfig struct {
	Addr string `yaml:"addr"` // listen address for `ghtree serve`
	URL  string `yaml:"url"`  // base URL clients use
}

// Config is the top-level configuration for ghtree.
type Config struct {
	GitHub              GitHubConfig          `yaml:"github"`
	EnabledRepos        []model.EnabledRecord `yaml:"enabled_repos,omitempty"`
	UI                  UIConfig              `yaml:"ui"`
	AutoRefreshInterval int                   `yaml:"auto_refresh_interval"` // seconds, 0 disables
	MaxReposPerOrg      int                   `yaml:"max_repos_per_org"`
	Server              ServerConfig          `yaml:"server"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		GitHub: GitHubConfig{APIURL: "https://api.github.com"},
		UI: UIConfig{
			Theme:       "dark",
			DefaultView: "tree",
			PageSize:    50,
		},
		AutoRefreshInterval: 300,
		MaxReposPerOrg:      100,
		Server: ServerConfig{
			Addr: "127.0.0.1:8000",
			URL:  "http://127.0.0.1:8000",
		},
	}
}

// defaultMap is DefaultConfig flattened for koanf. Keep in sync.
func defaultMap() map[string]any {
	d := DefaultConfig()
	return map[string]any{
		"github.api_url":        d.GitHub.APIURL,
		"ui.theme":              d.UI.Theme,
		"ui.default_view":       d.UI.DefaultView,
		"ui.page_size":          d.UI.PageSize,
		"auto_refresh_interval": d.AutoRefreshInterval,
		"max_repos_per_org":     d.MaxReposPerOrg,
		"server.addr":           d.Server.Addr,
		"server.url":            d.Server.URL,
	}
}

// FlagKeys maps command-line flag names to config keys. Flags not listed
// are not configuration.
var FlagKeys = map[string]string{
	"token":     "github.token",
	"api-url":   "github.api_url",
	"org":       "github.organization",
	"addr":      "server.addr",
	"server":    "server.url",
	"page-size": "ui.page_size",
	"view":      "ui.default_view",
	"theme":     "ui.theme",
}

// Settings returns the GitHub settings in API form.
func (c Config) Settings() model.Settings {
	return model.Settings{
		Token:        c.GitHub.Token,
		APIURL:       c.GitHub.APIURL,
		Organization: c.GitHub.Organization,
	}
}

// Validate reports the first invalid value.
func (c Config) Validate() error {
	if c.GitHub.APIURL != "" {
		u, err := url.Parse(c.GitHub.APIURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return fmt.Errorf("github.api_url: invalid URL %q", c.GitHub.APIURL)
		}
	}
	switch c.UI.DefaultView {
	case "tree", "list":
	default:
		return fmt.Errorf("ui.default_view: must be tree or list, got %q", c.UI.DefaultView)
	}
	if c.UI.PageSize <= 0 {
		return fmt.Errorf("ui.page_size: must be positive, got %d", c.UI.PageSize)
	}
	if c.AutoRefreshInterval < 0 {
		return fmt.Errorf("auto_refresh_interval: must not be negative")
	}
	for _, r := range c.EnabledRepos {
		if r.NodeID == "" {
			return errors.New("enabled_repos: node_id is required")
		}
	}
	return nil
}

// ConfigDir returns the XDG config directory for ghtree.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// StateDir returns the XDG state directory for ghtree.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Paths describes the locations used for the config file at path.
func Paths(path string) model.ConfigPaths {
	return model.ConfigPaths{
		ConfigFile: path,
		ConfigDir:  filepath.Dir(path),
		StateDir:   StateDir(),
	}
}

// LoadFrom reads defaults and the file at path only, without environment
// or flags. A missing file yields DefaultConfig.
func LoadFrom(path string) (Config, error) {
	return load(path, nil, false)
}

// Load layers defaults, the file at path, the environment and the changed
// flags in flags (which may be nil).
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	return load(path, flags, true)
}

func load(path string, flags *pflag.FlagSet, overlay bool) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaultMap(), "."), nil); err != nil {
		return DefaultConfig(), fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return DefaultConfig(), fmt.Errorf("parsing config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return DefaultConfig(), fmt.Errorf("reading config: %w", err)
		}
	}

	if overlay {
		if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
			return DefaultConfig(), fmt.Errorf("loading environment: %w", err)
		}
		if flags != nil {
			if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, flagKey(flags)), nil); err != nil {
				return DefaultConfig(), fmt.Errorf("loading flags: %w", err)
			}
		}
		if k.String("github.token") == "" {
			if tok := os.Getenv("GITHUB_TOKEN"); tok != "" {
				_ = k.Set("github.token", tok)
			}
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return DefaultConfig(), fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// envKey turns GHTREE_GITHUB__API_URL into github.api_url.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func flagKey(flags *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		key, ok := FlagKeys[f.Name]
		if !ok || !f.Changed {
			return "", nil
		}
		return key, posflag.FlagVal(flags, f)
	}
}
