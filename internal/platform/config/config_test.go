package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	if err := os.WriteFile(p, []byte("HOOKCUT_TEST_FROM_FILE=file\nHOOKCUT_TEST_PRESET=file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HOOKCUT_TEST_PRESET", "env")
	t.Setenv("HOOKCUT_TEST_FROM_FILE", "")
	os.Unsetenv("HOOKCUT_TEST_FROM_FILE")

	if err := Load(p, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("HOOKCUT_TEST_FROM_FILE"); got != "file" {
		t.Fatalf("expected value from file, got %q", got)
	}
	if got := os.Getenv("HOOKCUT_TEST_PRESET"); got != "env" {
		t.Fatalf("expected existing env to win, got %q", got)
	}
}

func TestGetters(t *testing.T) {
	t.Setenv("HOOKCUT_TEST_INT", "7")
	t.Setenv("HOOKCUT_TEST_BAD_INT", "seven")
	t.Setenv("HOOKCUT_TEST_FLOAT", "1.5")
	t.Setenv("HOOKCUT_TEST_DUR", "90s")
	t.Setenv("HOOKCUT_TEST_LIST", " a, ,b ,")
	t.Setenv("HOOKCUT_TEST_BLANK", "  ")

	if got := GetEnv("HOOKCUT_TEST_BLANK", "fb"); got != "fb" {
		t.Fatalf("GetEnv blank = %q", got)
	}
	if got := GetEnvInt("HOOKCUT_TEST_INT", 1); got != 7 {
		t.Fatalf("GetEnvInt = %d", got)
	}
	if got := GetEnvInt("HOOKCUT_TEST_BAD_INT", 1); got != 1 {
		t.Fatalf("GetEnvInt fallback = %d", got)
	}
	if got := GetEnvFloat("HOOKCUT_TEST_FLOAT", 0); got != 1.5 {
		t.Fatalf("GetEnvFloat = %v", got)
	}
	if got := GetEnvDuration("HOOKCUT_TEST_DUR", 0); got != 90*time.Second {
		t.Fatalf("GetEnvDuration = %v", got)
	}
	got := GetEnvList("HOOKCUT_TEST_LIST")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("GetEnvList = %v", got)
	}
}
