package config

import (
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/lottery")
	t.Setenv("LOTTERY_SERVICE_TOKEN", "secret")
}

func TestParseEnvDefaults(t *testing.T) {
	setRequired(t)

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}

	if cfg.Port != "5200" {
		t.Errorf("Expected default port 5200, but got %s", cfg.Port)
	}
	if cfg.Redis.Enabled() {
		t.Error("Expected redis to be disabled without REDIS_ADDR")
	}
	if !cfg.Lock.Enabled {
		t.Error("Expected locks to be enabled by default")
	}
	if cfg.Lock.QuotaTTL != 5*time.Second || cfg.Lock.QuotaWait != 2*time.Second {
		t.Errorf("Expected quota lock 5s/2s, but got %s/%s", cfg.Lock.QuotaTTL, cfg.Lock.QuotaWait)
	}
	if cfg.Lock.InventoryTTL != 10*time.Second || cfg.Lock.InventoryWait != 3*time.Second {
		t.Errorf("Expected inventory lock 10s/3s, but got %s/%s", cfg.Lock.InventoryTTL, cfg.Lock.InventoryWait)
	}
	if cfg.Lock.RetryDelay != 100*time.Millisecond {
		t.Errorf("Expected retry delay 100ms, but got %s", cfg.Lock.RetryDelay)
	}
	if cfg.Draw.ConcurrencyPolicy != "skip" {
		t.Errorf("Expected skip policy, but got %s", cfg.Draw.ConcurrencyPolicy)
	}
	if cfg.R2.Enabled() {
		t.Error("Expected R2 to be disabled without credentials")
	}
	if cfg.Upload.Dir != "" || cfg.Upload.URLPrefix != "/uploads" {
		t.Errorf("Expected uploads disabled under /uploads, but got %q %q", cfg.Upload.Dir, cfg.Upload.URLPrefix)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("Expected default origin, but got %v", cfg.AllowedOrigins)
	}
}

func TestParseEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("LOCK_ENABLED", "false")
	t.Setenv("CONCURRENCY_POLICY", "reject")
	t.Setenv("LOCK_INVENTORY_WAIT", "750ms")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}

	if !cfg.Redis.Enabled() || cfg.Redis.DB != 2 {
		t.Errorf("Expected redis db 2 at localhost:6379, but got %+v", cfg.Redis)
	}
	if cfg.Lock.Enabled {
		t.Error("Expected locks to be disabled")
	}
	if cfg.Lock.InventoryWait != 750*time.Millisecond {
		t.Errorf("Expected 750ms, but got %s", cfg.Lock.InventoryWait)
	}
	if cfg.Draw.ConcurrencyPolicy != "reject" {
		t.Errorf("Expected reject, but got %s", cfg.Draw.ConcurrencyPolicy)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("Expected 2 origins, but got %v", cfg.AllowedOrigins)
	}
}

func TestParseEnvRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LOTTERY_SERVICE_TOKEN", "secret")

	var cfg Config
	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestParseEnvError(t *testing.T) {
	setRequired(t)
	t.Setenv("LOCK_QUOTA_TTL", "not-a-duration")

	var cfg Config
	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if cause := errors.Cause(err); cause == err || strings.HasPrefix(cause.Error(), "parse env") {
		t.Errorf("expected the env error as cause, got %v", cause)
	}
}

func TestR2Enabled(t *testing.T) {
	r2 := R2Config{AccountID: "acc", AccessKeyID: "id", AccessKeySecret: "secret", Bucket: "prizes"}
	if !r2.Enabled() {
		t.Error("Expected R2 to be enabled with all credentials")
	}
	r2.Bucket = ""
	if r2.Enabled() {
		t.Error("Expected R2 to be disabled without a bucket")
	}
}
