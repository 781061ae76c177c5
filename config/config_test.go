package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.ServerAddr != ":8080" {
		t.Errorf("ServerAddr = %q", cfg.ServerAddr)
	}
	if cfg.MaxUploadSizeBytes != 50<<20 {
		t.Errorf("MaxUploadSizeBytes = %d, want 50MB", cfg.MaxUploadSizeBytes)
	}
	if cfg.SyncPollInterval != 100*time.Millisecond {
		t.Errorf("SyncPollInterval = %v, want 100ms", cfg.SyncPollInterval)
	}
	if cfg.DBName != "musichelper" {
		t.Errorf("DBName = %q", cfg.DBName)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAX_UPLOAD_MB", "10")
	t.Setenv("SYNC_POLL_INTERVAL_MS", "250")
	t.Setenv("SERVER_ADDR", ":9090")

	cfg := Load()
	if cfg.MaxUploadSizeBytes != 10<<20 {
		t.Errorf("MaxUploadSizeBytes = %d, want 10MB", cfg.MaxUploadSizeBytes)
	}
	if cfg.SyncPollInterval != 250*time.Millisecond {
		t.Errorf("SyncPollInterval = %v, want 250ms", cfg.SyncPollInterval)
	}
	if cfg.ServerAddr != ":9090" {
		t.Errorf("ServerAddr = %q, want :9090", cfg.ServerAddr)
	}
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("MAX_UPLOAD_MB", "not-a-number")

	cfg := Load()
	if cfg.MaxUploadSizeBytes != 50<<20 {
		t.Errorf("garbage env value should fall back to default, got %d", cfg.MaxUploadSizeBytes)
	}
}
