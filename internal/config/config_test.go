package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Store.Backend != BackendPebble {
		t.Fatalf("default backend: %q", cfg.Store.Backend)
	}
	if cfg.Jobs.DefaultRetries != 3 {
		t.Fatalf("default retries: %d", cfg.Jobs.DefaultRetries)
	}
	if cfg.Jobs.DefaultRetryTimeout.Std() != 10*time.Second {
		t.Fatalf("default retry timeout: %s", cfg.Jobs.DefaultRetryTimeout)
	}
	if cfg.Jobs.DefaultLockDuration.Std() != 5*time.Minute {
		t.Fatalf("default lock duration: %s", cfg.Jobs.DefaultLockDuration)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	file := filepath.Join(t.TempDir(), "xwork.json")
	data := []byte(`{"jobs":{"defaultRetries":5,"defaultRetryTimeout":"1m"},"defaultTenantId":"acme"}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Jobs.DefaultRetries != 5 || cfg.Jobs.DefaultRetryTimeout.Std() != time.Minute {
		t.Fatalf("jobs not loaded: %+v", cfg.Jobs)
	}
	if cfg.DefaultTenantID != "acme" {
		t.Fatalf("tenant: %q", cfg.DefaultTenantID)
	}
	if cfg.Jobs.MaxJobsPerAcquire != 100 {
		t.Fatalf("unset fields keep defaults")
	}
}

func TestLoadYAML(t *testing.T) {
	file := filepath.Join(t.TempDir(), "xwork.yaml")
	data := []byte("store:\n  backend: postgres\n  postgresDsn: postgres://localhost/xwork\nacquire:\n  maxWait: 5s\n")
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Backend != BackendPostgres || cfg.Store.PostgresDSN == "" {
		t.Fatalf("store not loaded: %+v", cfg.Store)
	}
	if cfg.Acquire.MaxWait.Std() != 5*time.Second {
		t.Fatalf("max wait: %s", cfg.Acquire.MaxWait)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	file := filepath.Join(t.TempDir(), "xwork.json")
	if err := os.WriteFile(file, []byte(`{"store":{"backend":"postgres"}}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(file); err == nil {
		t.Fatalf("expected postgres without dsn to fail")
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	t.Setenv("XWORK_JOBS_DEFAULT_RETRIES", "7")
	t.Setenv("XWORK_JOBS_DEFAULT_LOCK_DURATION", "90s")
	t.Setenv("XWORK_NOTIFY_BACKEND", "redis")
	t.Setenv("XWORK_NOTIFY_REDIS_ADDR", "localhost:6379")
	t.Setenv("XWORK_DEFAULT_TENANT_ID", "staging")
	if err := FromEnv(&cfg); err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Jobs.DefaultRetries != 7 {
		t.Fatalf("env override retries")
	}
	if cfg.Jobs.DefaultLockDuration.Std() != 90*time.Second {
		t.Fatalf("env override lock duration: %s", cfg.Jobs.DefaultLockDuration)
	}
	if cfg.Notify.Backend != NotifyRedis || cfg.Notify.RedisAddr != "localhost:6379" {
		t.Fatalf("env override notify: %+v", cfg.Notify)
	}
	if cfg.DefaultTenantID != "staging" {
		t.Fatalf("env override tenant")
	}
}

func TestFromEnvBadDuration(t *testing.T) {
	cfg := Default()
	t.Setenv("XWORK_ACQUIRE_MAX_WAIT", "soon")
	if err := FromEnv(&cfg); err == nil {
		t.Fatalf("expected parse error")
	}
}
