package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnv_fallbacks(t *testing.T) {
	t.Setenv("CFG_TEST_STR", "")
	if got := GetEnv("CFG_TEST_STR", "def"); got != "def" {
		t.Errorf("GetEnv empty = %q", got)
	}
	t.Setenv("CFG_TEST_INT", "nope")
	if got := GetEnvInt("CFG_TEST_INT", 7); got != 7 {
		t.Errorf("GetEnvInt invalid = %d", got)
	}
	t.Setenv("CFG_TEST_DUR", "250ms")
	if got := GetEnvDuration("CFG_TEST_DUR", time.Second); got != 250*time.Millisecond {
		t.Errorf("GetEnvDuration = %s", got)
	}
	t.Setenv("CFG_TEST_BOOL", "true")
	if !GetEnvBool("CFG_TEST_BOOL", false) {
		t.Error("GetEnvBool should parse true")
	}
	t.Setenv("CFG_TEST_FLOAT", "2.5")
	if got := GetEnvFloat("CFG_TEST_FLOAT", 1); got != 2.5 {
		t.Errorf("GetEnvFloat = %v", got)
	}
}

func TestLoad_dotenv(t *testing.T) {
	p := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(p, []byte("CFG_TEST_FROM_FILE=hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CFG_TEST_FROM_FILE", "")
	os.Unsetenv("CFG_TEST_FROM_FILE")
	if err := Load(p); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := os.Getenv("CFG_TEST_FROM_FILE"); got != "hello" {
		t.Errorf("expected value from .env, got %q", got)
	}
}

func TestLoadAcquire_env(t *testing.T) {
	t.Setenv("OUT_ROOT", "/tmp/out")
	t.Setenv("FETCH_CONCURRENCY", "3")
	t.Setenv("FETCH_RPS", "0")
	t.Setenv("AUDIO_EXT", "mka")

	cfg := LoadAcquire()
	if cfg.OutRoot != "/tmp/out" || cfg.FetchConcurrency != 3 || cfg.FetchRPS != 0 || cfg.Ext != "mka" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.FetchRetries != 3 {
		t.Errorf("default retries = %d", cfg.FetchRetries)
	}
}
