package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/esporadb/espora/internal/pager"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"ESPORA_CONFIG", "DB_DIR", "SYNC_WRITE", "FSYNC_INTERVAL", "PORT", "UNIX_SOCKET", "UPSTREAMS"} {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBDir != "." {
		t.Errorf("DBDir = %q, want \".\"", cfg.DBDir)
	}
	if cfg.SyncPolicy != pager.SyncNever {
		t.Errorf("SyncPolicy = %v, want SyncNever", cfg.SyncPolicy)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "espora.yaml")
	if err := os.WriteFile(yamlPath, []byte("db_dir: /from/file\naccounts:\n  - id: \"1\"\n    limit: 1000\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	os.Setenv("ESPORA_CONFIG", yamlPath)
	os.Setenv("DB_DIR", "/from/env")
	os.Setenv("SYNC_WRITE", "1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBDir != "/from/env" {
		t.Errorf("DBDir = %q, want /from/env (env must override file)", cfg.DBDir)
	}
	if cfg.SyncPolicy != pager.SyncAfterEveryAppend {
		t.Errorf("SyncPolicy = %v, want SyncAfterEveryAppend", cfg.SyncPolicy)
	}
	limit, ok := cfg.LimitFor("1")
	if !ok || limit != 1000 {
		t.Errorf("LimitFor(1) = (%d, %v), want (1000, true)", limit, ok)
	}
}

func TestLoad_FsyncIntervalSelectsIntervalPolicy(t *testing.T) {
	clearEnv(t)
	os.Setenv("FSYNC_INTERVAL", "10ms")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SyncPolicy != pager.SyncInterval {
		t.Errorf("SyncPolicy = %v, want SyncInterval", cfg.SyncPolicy)
	}
}

func TestLoad_Upstreams(t *testing.T) {
	clearEnv(t)
	os.Setenv("UPSTREAMS", "a:1, b:2 ,c:3")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"a:1", "b:2", "c:3"}
	if len(cfg.Upstreams) != len(want) {
		t.Fatalf("Upstreams = %v, want %v", cfg.Upstreams, want)
	}
	for i := range want {
		if cfg.Upstreams[i] != want[i] {
			t.Errorf("Upstreams[%d] = %q, want %q", i, cfg.Upstreams[i], want[i])
		}
	}
}

func TestAccountPath(t *testing.T) {
	cfg := Config{DBDir: "/data"}
	got := cfg.AccountPath("3")
	want := "/data" + string(os.PathSeparator) + "account-3.espora"
	if got != want {
		t.Errorf("AccountPath(3) = %q, want %q", got, want)
	}
}
