package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}
	return m, path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	cfg := m.GetConfig()
	if cfg.APIURL != DefaultBaseURL {
		t.Errorf("APIURL = %q, want %q", cfg.APIURL, DefaultBaseURL)
	}
	if cfg.Model != DefaultModel {
		t.Errorf("Model = %q, want %q", cfg.Model, DefaultModel)
	}
	if cfg.MaxUnitSize != DefaultMaxUnitSize {
		t.Errorf("MaxUnitSize = %d, want %d", cfg.MaxUnitSize, DefaultMaxUnitSize)
	}
	if cfg.Concurrency != DefaultConcurrency {
		t.Errorf("Concurrency = %d, want %d", cfg.Concurrency, DefaultConcurrency)
	}
	if cfg.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", cfg.MaxRetries, DefaultMaxRetries)
	}
	if cfg.OutputFormat != DefaultOutputFormat {
		t.Errorf("OutputFormat = %q, want %q", cfg.OutputFormat, DefaultOutputFormat)
	}
}

func TestLoad_InvalidJSONFallsBackToDefaults(t *testing.T) {
	m, path := newTestManager(t)
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := m.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if m.GetConfig().Model != DefaultModel {
		t.Errorf("invalid file should fall back to defaults")
	}
}

func TestLoad_PartialFileGetsDefaultsFilledIn(t *testing.T) {
	m, path := newTestManager(t)
	content := `{"api_key":"sk-test","max_unit_size":1234}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	if err := m.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	cfg := m.GetConfig()
	if cfg.APIKey != "sk-test" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
	if cfg.MaxUnitSize != 1234 {
		t.Errorf("MaxUnitSize = %d, want 1234", cfg.MaxUnitSize)
	}
	if cfg.Concurrency != DefaultConcurrency {
		t.Errorf("Concurrency = %d, want default %d", cfg.Concurrency, DefaultConcurrency)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	m, path := newTestManager(t)
	if err := m.Load(); err != nil {
		t.Fatal(err)
	}
	m.GetConfig().APIKey = "sk-roundtrip"
	m.GetConfig().Concurrency = 7
	if err := m.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}

	m2, err := NewManager(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := m2.Load(); err != nil {
		t.Fatal(err)
	}
	if m2.GetConfig().APIKey != "sk-roundtrip" || m2.GetConfig().Concurrency != 7 {
		t.Errorf("round trip lost values: %+v", m2.GetConfig())
	}
}

func TestGetAPIKey_EnvFallback(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Load(); err != nil {
		t.Fatal(err)
	}

	t.Setenv(EnvAPIKey, "sk-from-env")
	if got := m.GetAPIKey(); got != "sk-from-env" {
		t.Errorf("GetAPIKey() = %q, want env value", got)
	}

	m.GetConfig().APIKey = "sk-from-file"
	if got := m.GetAPIKey(); got != "sk-from-file" {
		t.Errorf("GetAPIKey() = %q, file value must win", got)
	}
}

func TestGetBaseURL_EnvFallback(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Load(); err != nil {
		t.Fatal(err)
	}
	m.GetConfig().APIURL = ""

	t.Setenv(EnvBaseURL, "https://proxy.example.com/v1")
	if got := m.GetBaseURL(); got != "https://proxy.example.com/v1" {
		t.Errorf("GetBaseURL() = %q, want env value", got)
	}
}

func TestAddHistoryEntry_PrependsAndCaps(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Load(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < MaxHistoryEntries+10; i++ {
		m.AddHistoryEntry("input.pdf", "output.zip")
	}
	m.AddHistoryEntry("latest.pdf", "latest.zip")

	history := m.GetConfig().InputHistory
	if len(history) != MaxHistoryEntries {
		t.Errorf("history length = %d, want %d", len(history), MaxHistoryEntries)
	}
	if history[0].Input != "latest.pdf" {
		t.Errorf("newest entry not first: %q", history[0].Input)
	}
}

func TestNewSessionDir_UniquePerCall(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Load(); err != nil {
		t.Fatal(err)
	}

	d1, err := m.NewSessionDir()
	if err != nil {
		t.Fatalf("NewSessionDir() error: %v", err)
	}
	d2, err := m.NewSessionDir()
	if err != nil {
		t.Fatalf("NewSessionDir() error: %v", err)
	}
	if d1 == d2 {
		t.Errorf("session dirs not unique: %q", d1)
	}
	for _, d := range []string{d1, d2} {
		if info, err := os.Stat(d); err != nil || !info.IsDir() {
			t.Errorf("session dir %q not created", d)
		}
		if !strings.Contains(d, string(filepath.Separator)+"temp"+string(filepath.Separator)) {
			t.Errorf("session dir %q not under temp", d)
		}
	}
}
