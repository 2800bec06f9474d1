package paths

import (
	"os"
	"path/filepath"
	"testing"
)

// setupTestHome creates a temp directory, sets HOME to it, and resets the path cache.
func setupTestHome(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("XDG_STATE_HOME", "")
	Reset()
	t.Cleanup(Reset)
	return tmpDir
}

func TestFreshInstallNoXDG(t *testing.T) {
	home := setupTestHome(t)
	// No ~/.tandem/, no XDG vars → default to ~/.tandem/
	expected := filepath.Join(home, ".tandem")

	configDir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir: %v", err)
	}
	if configDir != expected {
		t.Errorf("ConfigDir = %q, want %q", configDir, expected)
	}

	stateDir, err := StateDir()
	if err != nil {
		t.Fatalf("StateDir: %v", err)
	}
	if stateDir != expected {
		t.Errorf("StateDir = %q, want %q", stateDir, expected)
	}

	if !IsLegacyLayout() {
		t.Error("IsLegacyLayout should be true for fresh install without XDG")
	}
}

func TestLegacyDirExists(t *testing.T) {
	home := setupTestHome(t)
	legacyDir := filepath.Join(home, ".tandem")
	if err := os.MkdirAll(legacyDir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	// Even with XDG vars set, an existing ~/.tandem/ wins
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "xdg-config"))
	Reset()

	configDir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir: %v", err)
	}
	if configDir != legacyDir {
		t.Errorf("ConfigDir = %q, want legacy %q", configDir, legacyDir)
	}
}

func TestXDGLayout(t *testing.T) {
	home := setupTestHome(t)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "cfg"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(home, "state"))
	Reset()

	configDir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir: %v", err)
	}
	if want := filepath.Join(home, "cfg", "tandem"); configDir != want {
		t.Errorf("ConfigDir = %q, want %q", configDir, want)
	}

	// Unset XDG_DATA_HOME falls back to ~/.local/share
	dataDir, err := DataDir()
	if err != nil {
		t.Fatalf("DataDir: %v", err)
	}
	if want := filepath.Join(home, ".local", "share", "tandem"); dataDir != want {
		t.Errorf("DataDir = %q, want %q", dataDir, want)
	}

	logsDir, err := LogsDir()
	if err != nil {
		t.Fatalf("LogsDir: %v", err)
	}
	if want := filepath.Join(home, "state", "tandem", "logs"); logsDir != want {
		t.Errorf("LogsDir = %q, want %q", logsDir, want)
	}

	if IsLegacyLayout() {
		t.Error("IsLegacyLayout should be false under XDG layout")
	}
}

func TestConfigFilePath(t *testing.T) {
	home := setupTestHome(t)

	path, err := ConfigFilePath()
	if err != nil {
		t.Fatalf("ConfigFilePath: %v", err)
	}
	if want := filepath.Join(home, ".tandem", "config.yaml"); path != want {
		t.Errorf("ConfigFilePath = %q, want %q", path, want)
	}
}
