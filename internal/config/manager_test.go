package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testConfig = `
[store]
repo = "/var/lib/stackback/repo"
remote_repo = "s3:s3.example.com/backups"

[notify]
webhook_url = "https://hooks.example.com/stackback"
timeout = "10s"

[retention]
max_age_days = 14
min_keep = 5
safety_max_age = "24h"

[[group]]
name = "recipe-app"
kind = "simple"
members = ["recipe-app"]
data_paths = ["/srv/recipe-app"]

[[group]]
name = "registry-stack"
kind = "composite"
members = ["registry-worker", "registry-api", "registry-db"]
data_paths = ["/srv/registry/db", "/srv/registry/storage"]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("STACKBACK_REPO_PASSWORD", "hunter2")

	cm, err := NewConfigManager(writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("new config manager: %v", err)
	}
	cfg := cm.GetConfig()

	if cfg.Store.Repo != "/var/lib/stackback/repo" {
		t.Errorf("store repo: %q", cfg.Store.Repo)
	}
	if cfg.Store.RemoteRepo != "s3:s3.example.com/backups" {
		t.Errorf("remote repo: %q", cfg.Store.RemoteRepo)
	}
	if cfg.Notify.Timeout.Duration != 10*time.Second {
		t.Errorf("notify timeout: %v", cfg.Notify.Timeout.Duration)
	}
	if cfg.Retention.MaxAgeDays != 14 || cfg.Retention.MinKeep != 5 {
		t.Errorf("retention: %+v", cfg.Retention)
	}
	if cfg.Retention.SafetyMaxAge.Duration != 24*time.Hour {
		t.Errorf("safety max age: %v", cfg.Retention.SafetyMaxAge.Duration)
	}
	if len(cfg.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(cfg.Groups))
	}
	if cfg.Groups[1].Name != "registry-stack" || len(cfg.Groups[1].Members) != 3 {
		t.Errorf("second group: %+v", cfg.Groups[1])
	}

	if err := cm.ValidateStore(); err != nil {
		t.Errorf("validate store: %v", err)
	}
}

func TestDefaultsApplied(t *testing.T) {
	t.Setenv("STACKBACK_REPO_PASSWORD", "hunter2")

	cm, err := NewConfigManager(writeConfig(t, `
[store]
repo = "/var/lib/stackback/repo"
`))
	if err != nil {
		t.Fatalf("new config manager: %v", err)
	}
	cfg := cm.GetConfig()

	if cfg.Retention.MaxAgeDays != 30 || cfg.Retention.MinKeep != 3 {
		t.Errorf("retention defaults: %+v", cfg.Retention)
	}
	if cfg.Retention.SafetyMaxAge.Duration != 48*time.Hour {
		t.Errorf("safety default: %v", cfg.Retention.SafetyMaxAge.Duration)
	}
	if cfg.Notify.Timeout.Duration != 5*time.Second {
		t.Errorf("notify timeout default: %v", cfg.Notify.Timeout.Duration)
	}
}

func TestPasswordEnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	passwordFile := filepath.Join(dir, "repo.pass")
	if err := os.WriteFile(passwordFile, []byte("from-file\n"), 0600); err != nil {
		t.Fatalf("write password file: %v", err)
	}

	content := `
[store]
repo = "/var/lib/stackback/repo"
password_file = "` + passwordFile + `"
`

	t.Setenv("STACKBACK_REPO_PASSWORD", "from-env")
	cm, err := NewConfigManager(writeConfig(t, content))
	if err != nil {
		t.Fatalf("new config manager: %v", err)
	}
	if got := cm.GetConfig().Store.Password; got != "from-env" {
		t.Errorf("password: %q, env should win", got)
	}

	t.Setenv("STACKBACK_REPO_PASSWORD", "")
	cm, err = NewConfigManager(writeConfig(t, content))
	if err != nil {
		t.Fatalf("new config manager: %v", err)
	}
	if got := cm.GetConfig().Store.Password; got != "from-file" {
		t.Errorf("password: %q, expected trimmed file contents", got)
	}
}

func TestValidateStoreRejectsMissingPassword(t *testing.T) {
	t.Setenv("STACKBACK_REPO_PASSWORD", "")

	cm, err := NewConfigManager(writeConfig(t, `
[store]
repo = "/var/lib/stackback/repo"
`))
	if err != nil {
		t.Fatalf("new config manager: %v", err)
	}
	if err := cm.ValidateStore(); err == nil {
		t.Errorf("expected error for missing password")
	}
}

func TestStateDirIsConfigDir(t *testing.T) {
	t.Setenv("STACKBACK_REPO_PASSWORD", "hunter2")

	path := writeConfig(t, testConfig)
	cm, err := NewConfigManager(path)
	if err != nil {
		t.Fatalf("new config manager: %v", err)
	}
	if cm.StateDir() != filepath.Dir(path) {
		t.Errorf("state dir: %q", cm.StateDir())
	}
}
