package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if cfg.WorkerPollInterval != time.Second {
		t.Fatalf("WorkerPollInterval = %v", cfg.WorkerPollInterval)
	}
	if cfg.JobMaxRetries != 2 {
		t.Fatalf("JobMaxRetries = %d", cfg.JobMaxRetries)
	}
	if cfg.IdempotencyWindow != 24*time.Hour {
		t.Fatalf("IdempotencyWindow = %v", cfg.IdempotencyWindow)
	}
	if cfg.HeartbeatTTL != 2*time.Minute {
		t.Fatalf("HeartbeatTTL = %v", cfg.HeartbeatTTL)
	}
	if cfg.TransientStubHTTPCode != 503 {
		t.Fatalf("TransientStubHTTPCode = %d", cfg.TransientStubHTTPCode)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "test-secret")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("missing DATABASE_URL accepted")
	}
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("missing JWT_SECRET accepted")
	}
}

func TestLoadConfigSanitizesOutOfRangeValues(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("WORKER_POLL_INTERVAL", "0s")
	t.Setenv("JOB_MAX_RETRIES", "-3")
	t.Setenv("IDEMPOTENCY_WINDOW", "0s")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.WorkerPollInterval != time.Second {
		t.Fatalf("WorkerPollInterval = %v", cfg.WorkerPollInterval)
	}
	if cfg.JobMaxRetries != 0 {
		t.Fatalf("JobMaxRetries = %d", cfg.JobMaxRetries)
	}
	if cfg.IdempotencyWindow != 24*time.Hour {
		t.Fatalf("IdempotencyWindow = %v", cfg.IdempotencyWindow)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "1919")
	t.Setenv("WORKER_POLL_INTERVAL", "250ms")
	t.Setenv("TRANSIENT_STUB_FAIL_FIRST_N", "2")
	t.Setenv("TRANSIENT_STUB_SCOPE", "both")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "1919" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if cfg.WorkerPollInterval != 250*time.Millisecond {
		t.Fatalf("WorkerPollInterval = %v", cfg.WorkerPollInterval)
	}
	if cfg.TransientStubFailFirstN != 2 || cfg.TransientStubScope != "both" {
		t.Fatalf("stub policy = %+v", cfg)
	}
}

// LoadConfig must not fail when optional integrations are unset; the stub
// provider and filesystem storage carry local development.
func TestLoadConfigOptionalIntegrations(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.GeminiAPIKey != "" || cfg.RedisURL != "" {
		t.Fatalf("optional integrations populated: %+v", cfg)
	}
	if cfg.GeminiBaseURL == "" || cfg.GeminiTextModel == "" {
		t.Fatal("gemini defaults missing")
	}
}
