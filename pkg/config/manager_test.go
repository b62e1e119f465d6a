package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/ghtree/pkg/model"
)

func newManager(t *testing.T) (*Manager, string) {
	t.Helper()
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := NewManager(path, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return m, path
}

func TestManager_MutationsSave(t *testing.T) {
	m, path := newManager(t)

	if err := m.UpdateToken("ghp_1234"); err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateOrganization("acme"); err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateAPIURL("https://ghe.example.com/api/v3"); err != nil {
		t.Fatal(err)
	}
	on := model.EnabledRecord{NodeID: "repository:acme:widgets", Enabled: false}
	if err := m.SetEnabledRepos([]model.EnabledRecord{on}); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.GitHub.Token != "ghp_1234" || loaded.GitHub.Organization != "acme" || loaded.GitHub.APIURL != "https://ghe.example.com/api/v3" {
		t.Errorf("saved github = %+v", loaded.GitHub)
	}
	if got := m.EnabledRepos(); len(got) != 1 || got[0] != on {
		t.Errorf("enabled = %+v", got)
	}
	if s := m.Settings(); s.MaskedToken() != "***1234" {
		t.Errorf("settings = %+v", s)
	}
}

func TestManager_InvalidUpdateRejected(t *testing.T) {
	m, path := newManager(t)
	if err := m.UpdateAPIURL("::bad"); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("a rejected update should not write the file")
	}
	if m.Get().GitHub.APIURL != "https://api.github.com" {
		t.Error("a rejected update should not change memory")
	}
}

func TestManager_UpdateSettingsPartial(t *testing.T) {
	m, _ := newManager(t)
	tok, org := "t0k3n", "acme"
	if err := m.UpdateSettings(model.SettingsUpdate{Token: &tok, Organization: &org}); err != nil {
		t.Fatal(err)
	}
	empty := ""
	if err := m.UpdateSettings(model.SettingsUpdate{Organization: &empty}); err != nil {
		t.Fatal(err)
	}
	s := m.Settings()
	if s.Token != "t0k3n" || s.Organization != "" {
		t.Errorf("settings = %+v", s)
	}
}

func TestManager_EnvOverrideNotSaved(t *testing.T) {
	m, path := newManager(t)
	t.Setenv("GITHUB_TOKEN", "from-env")
	if _, err := m.Reload(); err != nil {
		t.Fatal(err)
	}
	if m.Settings().Token != "from-env" {
		t.Fatalf("effective token = %q", m.Settings().Token)
	}
	if err := m.UpdateOrganization("acme"); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "from-env") {
		t.Error("environment token written to the config file")
	}
}

func TestManager_ResetExportImport(t *testing.T) {
	m, _ := newManager(t)
	if err := m.UpdateToken("abc"); err != nil {
		t.Fatal(err)
	}
	export := filepath.Join(t.TempDir(), "backup.yaml")
	if err := m.Export(export); err != nil {
		t.Fatal(err)
	}
	if err := m.Reset(); err != nil {
		t.Fatal(err)
	}
	if m.Settings().Token != "" {
		t.Error("reset should clear the token")
	}
	if err := m.Import(export); err != nil {
		t.Fatal(err)
	}
	if m.Settings().Token != "abc" {
		t.Error("import should restore the token")
	}
	if err := m.Import(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("importing a missing file should fail")
	}
}

func TestManager_CorruptFileFallsBackToDefaults(t *testing.T) {
	isolate(t)
	path := writeFile(t, "github: [unclosed")
	m, err := NewManager(path, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.Get().UI.PageSize != 50 {
		t.Error("expected defaults")
	}
}

func TestManager_ReloadDetectsChange(t *testing.T) {
	m, path := newManager(t)
	if changed, err := m.Reload(); err != nil || changed {
		t.Errorf("reload without change = %v, %v", changed, err)
	}
	if err := os.WriteFile(path, []byte("github:\n  organization: globex\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	changed, err := m.Reload()
	if err != nil || !changed {
		t.Fatalf("reload after edit = %v, %v", changed, err)
	}
	if m.Settings().Organization != "globex" {
		t.Errorf("organization = %q", m.Settings().Organization)
	}
}
