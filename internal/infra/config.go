package infra

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

// Config is the application configuration, loaded from environment
// variables. One struct serves both the API and the worker; each binary
// reads the fields it needs.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"development"`
	Port   string `env:"PORT" envDefault:"8080"`

	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	RedisURL    string `env:"REDIS_URL"`

	StoragePath   string `env:"STORAGE_PATH" envDefault:"var/storage"`
	HeartbeatPath string `env:"WORKER_HEARTBEAT_PATH" envDefault:"var/worker_heartbeat.json"`

	GeminiAPIKey     string `env:"GEMINI_API_KEY"`
	GeminiBaseURL    string `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	GeminiTextModel  string `env:"GEMINI_TEXT_MODEL" envDefault:"gemini-2.5-flash"`
	GeminiImageModel string `env:"GEMINI_IMAGE_MODEL" envDefault:"gemini-2.5-flash-image"`

	WorkerPollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"1s"`
	JobMaxRetries      int           `env:"JOB_MAX_RETRIES" envDefault:"2"`
	IdempotencyWindow  time.Duration `env:"IDEMPOTENCY_WINDOW" envDefault:"24h"`
	HeartbeatTTL       time.Duration `env:"WORKER_HEARTBEAT_TTL" envDefault:"120s"`
	RunInprocessWorker bool          `env:"RUN_INPROCESS_WORKER" envDefault:"false"`

	// Transient failure injection for the stub provider, used to exercise
	// retry behavior without a flaky upstream.
	TransientStubScope      string `env:"TRANSIENT_STUB_SCOPE" envDefault:"spec"`
	TransientStubFailFirstN int    `env:"TRANSIENT_STUB_FAIL_FIRST_N" envDefault:"0"`
	TransientStubFailEveryN int    `env:"TRANSIENT_STUB_FAIL_EVERY_N" envDefault:"0"`
	TransientStubHTTPCode   int    `env:"TRANSIENT_STUB_HTTP_CODE" envDefault:"503"`

	HTTPReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPIdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
}

// LoadConfig parses configuration from the environment and applies
// guardrails to values that would break the pipeline.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.sanitize()
	return cfg, nil
}

func (c *Config) sanitize() {
	if c.WorkerPollInterval <= 0 {
		c.WorkerPollInterval = time.Second
	}
	if c.JobMaxRetries < 0 {
		c.JobMaxRetries = 0
	}
	if c.IdempotencyWindow <= 0 {
		c.IdempotencyWindow = 24 * time.Hour
	}
	if c.HeartbeatTTL <= 0 {
		c.HeartbeatTTL = 2 * time.Minute
	}
}
