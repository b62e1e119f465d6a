package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sync"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/ghtree/pkg/model"
)

// Manager owns the config file. It keeps the file's own values apart from
// the effective (environment and flag overlaid) values so saving never
// writes an override back to disk. Every mutation saves. A Manager is safe
// for concurrent use.
type Manager struct {
	path   string
	flags  *pflag.FlagSet
	logger *slog.Logger

	mu        sync.RWMutex
	file      Config
	effective Config
}

// NewManager loads the config at path (ConfigPath() when empty). A corrupt
// or invalid file is logged and replaced by defaults in memory; it is only
// overwritten by the next mutation.
func NewManager(path string, flags *pflag.FlagSet, logger *slog.Logger) (*Manager, error) {
	if path == "" {
		path = ConfigPath()
	}
	if path == "" {
		return nil, fmt.Errorf("cannot determine config directory")
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{path: path, flags: flags, logger: logger}

	file, err := LoadFrom(path)
	if err != nil {
		logger.Warn("config unreadable, using defaults", "path", path, "error", err)
		file = DefaultConfig()
	}
	m.file = file
	m.effective = m.overlay()
	return m, nil
}

// overlay computes the effective config from the file. Callers hold mu or
// own m exclusively.
func (m *Manager) overlay() Config {
	cfg, err := Load(m.path, m.flags)
	if err != nil {
		// the file is broken; overlay onto what we have in memory
		cfg = m.file
		if tok := os.Getenv("GITHUB_TOKEN"); cfg.GitHub.Token == "" && tok != "" {
			cfg.GitHub.Token = tok
		}
	}
	return cfg
}

// Path returns the config file path.
func (m *Manager) Path() string { return m.path }

// Get returns the effective config.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := m.effective
	cfg.EnabledRepos = slices.Clone(cfg.EnabledRepos)
	return cfg
}

// Settings returns the effective GitHub settings.
func (m *Manager) Settings() model.Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.effective.Settings()
}

// Paths returns where configuration and state live.
func (m *Manager) Paths() model.ConfigPaths { return Paths(m.path) }

// update applies fn to a copy of the file config, validates, saves and
// refreshes the effective config.
func (m *Manager) update(fn func(*Config)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.file
	next.EnabledRepos = slices.Clone(next.EnabledRepos)
	fn(&next)
	if err := next.Validate(); err != nil {
		return err
	}
	if err := SaveTo(next, m.path); err != nil {
		return err
	}
	m.file = next
	m.effective = m.overlay()
	return nil
}

func (m *Manager) UpdateToken(token string) error {
	return m.update(func(c *Config) { c.GitHub.Token = token })
}

func (m *Manager) UpdateAPIURL(apiURL string) error {
	return m.update(func(c *Config) { c.GitHub.APIURL = apiURL })
}

func (m *Manager) UpdateOrganization(org string) error {
	return m.update(func(c *Config) { c.GitHub.Organization = org })
}

// UpdateSettings applies the non-nil fields of u.
func (m *Manager) UpdateSettings(u model.SettingsUpdate) error {
	return m.update(func(c *Config) {
		if u.Token != nil {
			c.GitHub.Token = *u.Token
		}
		if u.APIURL != nil {
			c.GitHub.APIURL = *u.APIURL
		}
		if u.Organization != nil {
			c.GitHub.Organization = *u.Organization
		}
	})
}

// EnabledRepos returns the persisted enabled records.
func (m *Manager) EnabledRepos() []model.EnabledRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.file.EnabledRepos)
}

// SetEnabledRepos replaces the persisted enabled records.
func (m *Manager) SetEnabledRepos(records []model.EnabledRecord) error {
	return m.update(func(c *Config) { c.EnabledRepos = slices.Clone(records) })
}

// Reset restores the defaults.
func (m *Manager) Reset() error {
	return m.update(func(c *Config) { *c = DefaultConfig() })
}

// Export writes the file config (without overrides) to path.
func (m *Manager) Export(path string) error {
	m.mu.RLock()
	cfg := m.file
	m.mu.RUnlock()
	return SaveTo(cfg, path)
}

// Import replaces the config with the file at path.
func (m *Manager) Import(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	imported, err := LoadFrom(path)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	return m.update(func(c *Config) { *c = imported })
}

// Reload re-reads the file after an outside change and reports whether the
// effective config changed.
func (m *Manager) Reload() (bool, error) {
	file, err := LoadFrom(m.path)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	before := m.effective
	m.file = file
	m.effective = m.overlay()
	return !reflect.DeepEqual(before, m.effective), nil
}

// SaveTo writes cfg to path atomically. The file may hold a token, so it is
// private to the user.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
