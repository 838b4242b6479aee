package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStringFallsBackWhenUnset(t *testing.T) {
	t.Setenv("HUDDLE_TEST_EMPTY", "")
	if got := String("HUDDLE_TEST_EMPTY", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("HUDDLE_TEST_SET", " value ")
	if got := String("HUDDLE_TEST_SET", "fallback"); got != "value" {
		t.Fatalf("expected trimmed env value, got %q", got)
	}
}

func TestRequiredString(t *testing.T) {
	t.Setenv("HUDDLE_TEST_REQUIRED", "")
	if _, err := RequiredString("HUDDLE_TEST_REQUIRED"); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestPortValidation(t *testing.T) {
	t.Setenv("HUDDLE_TEST_PORT", "70000")
	if _, err := Port("HUDDLE_TEST_PORT", "8080"); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
	t.Setenv("HUDDLE_TEST_PORT", "")
	p, err := Port("HUDDLE_TEST_PORT", "8080")
	if err != nil || p != "8080" {
		t.Fatalf("expected fallback port, got %q err=%v", p, err)
	}
}

func TestDurationAndInt(t *testing.T) {
	t.Setenv("HUDDLE_TEST_TTL", "90s")
	d, err := Duration("HUDDLE_TEST_TTL", time.Minute)
	if err != nil || d != 90*time.Second {
		t.Fatalf("expected 90s, got %s err=%v", d, err)
	}
	t.Setenv("HUDDLE_TEST_TTL", "soon")
	if _, err := Duration("HUDDLE_TEST_TTL", time.Minute); err == nil {
		t.Fatal("expected parse error")
	}
	t.Setenv("HUDDLE_TEST_INT", "12")
	n, err := Int("HUDDLE_TEST_INT", 3)
	if err != nil || n != 12 {
		t.Fatalf("expected 12, got %d err=%v", n, err)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("HUDDLE_TEST_BOOL", "off")
	if Bool("HUDDLE_TEST_BOOL", true) {
		t.Fatal("expected false")
	}
	t.Setenv("HUDDLE_TEST_BOOL", "maybe")
	if !Bool("HUDDLE_TEST_BOOL", true) {
		t.Fatal("expected fallback true")
	}
}

func TestLoadFileIsOverriddenByEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "huddle.yaml")
	if err := os.WriteFile(path, []byte("huddle_test_file_key: from-file\nhuddle_test_file_env: from-file\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	t.Setenv("HUDDLE_TEST_FILE_ENV", "from-env")

	if got := String("HUDDLE_TEST_FILE_KEY", ""); got != "from-file" {
		t.Fatalf("expected file value, got %q", got)
	}
	if got := String("HUDDLE_TEST_FILE_ENV", ""); got != "from-env" {
		t.Fatalf("expected env to win, got %q", got)
	}
	if err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
