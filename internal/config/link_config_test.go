package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "link.toml")
	contents := `
source_dsn = "postgres://localhost/source"
local_path = "/var/lib/djlink/local"
remote_host = "warehouse.internal"
remote_schema = "mirror"
poll_interval = "10s"
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SourceDSN != "postgres://localhost/source" {
		t.Errorf("SourceDSN = %q", cfg.SourceDSN)
	}
	if cfg.PollInterval != 10*time.Second {
		t.Errorf("PollInterval = %v, want 10s", cfg.PollInterval)
	}
	if cfg.ReconcileInterval != time.Minute {
		t.Errorf("ReconcileInterval default = %v, want 1m", cfg.ReconcileInterval)
	}
	if cfg.CommitterName != "djlink" {
		t.Errorf("CommitterName default = %q, want djlink", cfg.CommitterName)
	}
}

func TestLoadMissingRequiredField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "link.toml")
	if err := os.WriteFile(path, []byte(`local_path = "/var/lib/djlink"`+"\n"), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("want error for missing source_dsn")
	}
}

func TestLoadBootstrapLocalMissingFileReturnsEmpty(t *testing.T) {
	cfg := LoadBootstrapLocal(filepath.Join(t.TempDir(), "absent.yaml"))
	if cfg.LocalPath != "" {
		t.Fatalf("want empty BootstrapLocal, got %+v", cfg)
	}
}

func TestLoadBootstrapLocal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bootstrap.yaml")
	if err := os.WriteFile(path, []byte("local_path: /tmp/djlink-local\n"), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cfg := LoadBootstrapLocal(path)
	if cfg.LocalPath != "/tmp/djlink-local" {
		t.Errorf("LocalPath = %q", cfg.LocalPath)
	}
}

func TestLoadEndpoints(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "endpoints.toml")
	contents := `
[links.warehouse]
remote_host = "warehouse.internal"
remote_schema = "mirror"
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	eps, err := LoadEndpoints(path)
	if err != nil {
		t.Fatalf("LoadEndpoints() error = %v", err)
	}
	got, ok := eps.Links["warehouse"]
	if !ok {
		t.Fatalf("want a \"warehouse\" link, got %+v", eps.Links)
	}
	if got.RemoteHost != "warehouse.internal" || got.RemoteSchema != "mirror" {
		t.Errorf("got %+v", got)
	}
}
