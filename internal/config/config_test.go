package config

import (
	"strings"
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		setEnv       bool
		want         string
	}{
		{"returns default when not set", "PATHWAY_TEST_UNSET", "default", "", false, "default"},
		{"returns env value when set", "PATHWAY_TEST_SET", "default", "custom", true, "custom"},
		{"returns default for empty value", "PATHWAY_TEST_EMPTY", "default", "", true, "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv(tt.key, tt.envValue)
			}
			if got := getEnv(tt.key, tt.defaultValue); got != tt.want {
				t.Errorf("getEnv() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     int
	}{
		{"valid integer", "42", 42},
		{"invalid integer falls back", "abc", 7},
		{"negative integer", "-3", -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PATHWAY_TEST_INT", tt.envValue)
			if got := getEnvInt("PATHWAY_TEST_INT", 7); got != tt.want {
				t.Errorf("getEnvInt() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetEnvFloatAndBool(t *testing.T) {
	t.Setenv("PATHWAY_TEST_FLOAT", "0.25")
	if got := getEnvFloat("PATHWAY_TEST_FLOAT", 1); got != 0.25 {
		t.Errorf("getEnvFloat() = %v, want 0.25", got)
	}
	t.Setenv("PATHWAY_TEST_FLOAT", "nope")
	if got := getEnvFloat("PATHWAY_TEST_FLOAT", 1); got != 1 {
		t.Errorf("getEnvFloat() invalid = %v, want 1", got)
	}

	t.Setenv("PATHWAY_TEST_BOOL", "true")
	if !getEnvBool("PATHWAY_TEST_BOOL", false) {
		t.Error("getEnvBool() = false, want true")
	}
	t.Setenv("PATHWAY_TEST_BOOL", "maybe")
	if getEnvBool("PATHWAY_TEST_BOOL", false) {
		t.Error("getEnvBool() invalid = true, want default false")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Daemon.Addr() != "127.0.0.1:7432" {
		t.Errorf("Addr() = %q, want 127.0.0.1:7432", cfg.Daemon.Addr())
	}
	if cfg.Storage.Driver != DriverSQLite {
		t.Errorf("Storage.Driver = %q, want sqlite", cfg.Storage.Driver)
	}
	if cfg.Learning.FeedbackTimeout() != 10*time.Second {
		t.Errorf("FeedbackTimeout() = %v, want 10s", cfg.Learning.FeedbackTimeout())
	}
	if cfg.Learning.ProjectTaskMinutes != 30 || cfg.Learning.DiscoveryTaskMinutes != 20 {
		t.Errorf("task minutes = %d/%d, want 30/20", cfg.Learning.ProjectTaskMinutes, cfg.Learning.DiscoveryTaskMinutes)
	}
	if cfg.Redis.Enabled || cfg.RabbitMQ.Enabled {
		t.Error("redis and rabbitmq should be disabled by default")
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("PATHWAY_PORT", "9000")
	t.Setenv("PATHWAY_STORAGE_DRIVER", "postgres")
	t.Setenv("PATHWAY_DATABASE_URL", "postgres://localhost/pathway")
	t.Setenv("PATHWAY_REDIS_ADDR", "redis:6379")
	t.Setenv("PATHWAY_RABBITMQ_URL", "amqp://rabbit/")
	t.Setenv("PATHWAY_LLM_PROVIDER", "openai")
	t.Setenv("PATHWAY_LLM_API_KEY", "sk-test")
	t.Setenv("PATHWAY_CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("PATHWAY_FEEDBACK_TIMEOUT", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Daemon.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Daemon.Port)
	}
	if cfg.Storage.DSN != "postgres://localhost/pathway" {
		t.Errorf("DSN = %q", cfg.Storage.DSN)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis:6379" {
		t.Errorf("Redis = %+v, want enabled at redis:6379", cfg.Redis)
	}
	if !cfg.RabbitMQ.Enabled {
		t.Error("RabbitMQ should be enabled when a URL is set")
	}
	openai := cfg.LLM.Providers["openai"]
	if !openai.Enabled || openai.APIKey != "sk-test" {
		t.Errorf("openai provider = %+v", openai)
	}
	if cfg.LLM.DefaultProvider != "openai" {
		t.Errorf("DefaultProvider = %q, want openai", cfg.LLM.DefaultProvider)
	}
	if len(cfg.Daemon.CORSOrigins) != 2 {
		t.Errorf("CORSOrigins = %v, want 2 entries", cfg.Daemon.CORSOrigins)
	}
	if cfg.Learning.FeedbackTimeout() != 3*time.Second {
		t.Errorf("FeedbackTimeout() = %v, want 3s", cfg.Learning.FeedbackTimeout())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }, "unknown storage driver"},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = DriverPostgres }, "PATHWAY_DATABASE_URL"},
		{"sqlite without path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"bad port", func(c *Config) { c.Daemon.Port = 0 }, "invalid port"},
		{"zero feedback timeout", func(c *Config) { c.Learning.FeedbackTimeoutSeconds = 0 }, "feedback_timeout_seconds"},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, "redis.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
