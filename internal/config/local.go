package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SecretsConfig holds credentials loaded from secrets.yaml
type SecretsConfig struct {
	Providers map[string]struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"providers"`
	DatabaseURL   string `yaml:"database_url,omitempty"`
	RedisPassword string `yaml:"redis_password,omitempty"`
	RabbitMQURL   string `yaml:"rabbitmq_url,omitempty"`
}

// PathwayDir returns the path to ~/.pathway, or $PATHWAY_HOME when set
func PathwayDir() (string, error) {
	if dir := os.Getenv("PATHWAY_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".pathway"), nil
}

// EnsurePathwayDir creates ~/.pathway and subdirectories if they don't exist
func EnsurePathwayDir() (string, error) {
	dir, err := PathwayDir()
	if err != nil {
		return "", err
	}
	if err := ensureDirs(dir); err != nil {
		return "", err
	}
	return dir, nil
}

func ensureDirs(dir string) error {
	for _, subdir := range []string{"", "logs", "data", "scenarios"} {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("create dir %s: %w", path, err)
		}
	}
	return nil
}

// LoadLocalConfig loads configuration from ~/.pathway/config.yaml
func LoadLocalConfig() (*Config, error) {
	dir, err := PathwayDir()
	if err != nil {
		return nil, err
	}
	return LoadLocalConfigFrom(dir)
}

// LoadLocalConfigFrom loads dir/config.yaml and dir/secrets.yaml over the
// defaults, then PATHWAY_* environment overrides. Relative storage and
// scenario paths are resolved against dir.
func LoadLocalConfigFrom(dir string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// defaults
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadSecrets(dir, cfg); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}
	applyEnv(cfg)

	cfg.Storage.Path = resolve(dir, cfg.Storage.Path)
	cfg.Scenarios.Dir = resolve(dir, cfg.Scenarios.Dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// loadSecrets loads credentials from secrets.yaml
func loadSecrets(dir string, cfg *Config) error {
	data, err := os.ReadFile(filepath.Join(dir, "secrets.yaml"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}

	var secrets SecretsConfig
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}

	for name, secret := range secrets.Providers {
		if provider, ok := cfg.LLM.Providers[name]; ok {
			provider.APIKey = secret.APIKey
		}
	}
	if secrets.DatabaseURL != "" {
		cfg.Storage.DSN = secrets.DatabaseURL
	}
	if secrets.RedisPassword != "" {
		cfg.Redis.Password = secrets.RedisPassword
	}
	if secrets.RabbitMQURL != "" {
		cfg.RabbitMQ.URL = secrets.RabbitMQURL
	}
	return nil
}

// SaveLocalConfig saves configuration to ~/.pathway/config.yaml
func SaveLocalConfig(cfg *Config) error {
	dir, err := EnsurePathwayDir()
	if err != nil {
		return err
	}
	return SaveLocalConfigTo(dir, cfg)
}

// SaveLocalConfigTo writes dir/config.yaml. Secrets are never written here.
func SaveLocalConfigTo(dir string, cfg *Config) error {
	if err := ensureDirs(dir); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SaveSecrets merges provider API keys into dir/secrets.yaml, keeping any
// credentials already stored there.
func SaveSecrets(dir string, keys map[string]string) error {
	path := filepath.Join(dir, "secrets.yaml")

	var secretsCfg SecretsConfig
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &secretsCfg); err != nil {
			return fmt.Errorf("parse secrets: %w", err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("read secrets: %w", err)
	}
	if secretsCfg.Providers == nil {
		secretsCfg.Providers = make(map[string]struct {
			APIKey string `yaml:"api_key"`
		})
	}
	for name, key := range keys {
		secretsCfg.Providers[name] = struct {
			APIKey string `yaml:"api_key"`
		}{APIKey: key}
	}

	data, err = yaml.Marshal(secretsCfg)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}

	// Owner read/write only
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}
	return nil
}
