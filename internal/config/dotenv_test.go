package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotEnv_LoadsValues(t *testing.T) {
	t.Setenv("PREPO_TEST_A", "")
	t.Setenv("PREPO_TEST_B", "")

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := []byte(`
# comment

PREPO_TEST_A=one
export PREPO_TEST_B="two"
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if got := os.Getenv("PREPO_TEST_A"); got != "one" {
		t.Fatalf("PREPO_TEST_A=%q, want %q", got, "one")
	}
	if got := os.Getenv("PREPO_TEST_B"); got != "two" {
		t.Fatalf("PREPO_TEST_B=%q, want %q", got, "two")
	}
}

func TestLoadDotEnv_DoesNotOverwriteExistingEnv(t *testing.T) {
	t.Setenv("PREPO_TEST_KEEP", "already")

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("PREPO_TEST_KEEP=fromfile\n"), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if got := os.Getenv("PREPO_TEST_KEEP"); got != "already" {
		t.Fatalf("PREPO_TEST_KEEP=%q, want %q", got, "already")
	}
}

func TestLoadDotEnv_MissingFileIsIgnored(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv on missing file: %v", err)
	}
}

func TestLoadDotEnv_FeedsConfiguration(t *testing.T) {
	t.Setenv("PREPO_GRID_STEP", "")

	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("PREPO_GRID_STEP=25\n"), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	if err := LoadDotEnv(envPath); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	conf, err := LoadConfiguration(writeConfig(t, "grid:\n  min: 0\n  max: 100\n  step: 10\n"))
	if err != nil {
		t.Fatalf("LoadConfiguration: %v", err)
	}
	if conf.Grid.Step != 25 {
		t.Fatalf("grid step = %d, want 25 from .env", conf.Grid.Step)
	}
}
