package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.DefaultSession != "main" {
		t.Errorf("DefaultSession = %q, want main", cfg.DefaultSession)
	}
	if cfg.Scan.MessageWindow != 10 {
		t.Errorf("MessageWindow = %d, want 10", cfg.Scan.MessageWindow)
	}
	if cfg.Scan.ScrollFraction != 0.3 {
		t.Errorf("ScrollFraction = %v, want 0.3", cfg.Scan.ScrollFraction)
	}
	if cfg.Scan.EmptyBatchLimit != 3 {
		t.Errorf("EmptyBatchLimit = %d, want 3", cfg.Scan.EmptyBatchLimit)
	}
	if cfg.Scan.MaxChatsPerScan != 20 {
		t.Errorf("MaxChatsPerScan = %d, want 20", cfg.Scan.MaxChatsPerScan)
	}
	if cfg.Scan.RescanInterval.Duration != 30*time.Second {
		t.Errorf("RescanInterval = %v, want 30s", cfg.Scan.RescanInterval)
	}
	if cfg.Store.MinPhoneLength != 12 {
		t.Errorf("MinPhoneLength = %d, want 12", cfg.Store.MinPhoneLength)
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultSession = "work"
	cfg.Verify.URL = "http://localhost:9000/verify"
	cfg.Scan.RescanInterval = Duration{time.Minute}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
	if loaded.Verify.URL != "http://localhost:9000/verify" {
		t.Errorf("Verify.URL = %q", loaded.Verify.URL)
	}
	if loaded.Scan.RescanInterval.Duration != time.Minute {
		t.Errorf("RescanInterval = %v, want 1m", loaded.Scan.RescanInterval)
	}
}

func TestLoadMissingYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Scan.MessageWindow != 10 {
		t.Errorf("MessageWindow = %d, want default 10", cfg.Scan.MessageWindow)
	}
}

func TestLoadPartialOverlay(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")
	data := "[scan]\nmessage_window = 5\nsettle_delay = \"500ms\"\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Scan.MessageWindow != 5 {
		t.Errorf("MessageWindow = %d, want 5", cfg.Scan.MessageWindow)
	}
	if cfg.Scan.SettleDelay.Duration != 500*time.Millisecond {
		t.Errorf("SettleDelay = %v, want 500ms", cfg.Scan.SettleDelay)
	}
	// Untouched sections keep their defaults.
	if cfg.Scan.MaxChatsPerScan != 20 {
		t.Errorf("MaxChatsPerScan = %d, want default 20", cfg.Scan.MaxChatsPerScan)
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
