package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like SESSION_INACTIVITY_TIMEOUT_SECONDS
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, e.g. config.production.yaml
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from multiple possible locations so the binary and
// the test packages resolve the same environment.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up directories looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "session-sentinel"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}

	if cfg.Session.Store == "" {
		cfg.Session.Store = "memory"
	}
	if cfg.Session.InactivityTimeoutSeconds == 0 {
		cfg.Session.InactivityTimeoutSeconds = 1800
	}
	if cfg.Session.WarningThresholdSeconds == 0 {
		cfg.Session.WarningThresholdSeconds = 300
	}
	if cfg.Session.SweepIntervalSeconds == 0 {
		cfg.Session.SweepIntervalSeconds = 300
	}

	if cfg.Client.PollIntervalMS == 0 {
		cfg.Client.PollIntervalMS = 30000
	}
	if cfg.Client.LoginURL == "" {
		cfg.Client.LoginURL = "/login"
	}

	if cfg.Auth.Mode == "" {
		cfg.Auth.Mode = "static"
	}
	if cfg.Auth.Remote.Timeout == 0 {
		cfg.Auth.Remote.Timeout = 5000
	}

	if cfg.Audit.Index == "" {
		cfg.Audit.Index = "session-audit"
	}
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = 256
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg *Config) error {
	switch cfg.Session.Store {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("session.store must be memory, redis or postgres, got %q", cfg.Session.Store)
	}

	if cfg.Session.InactivityTimeoutSeconds <= 0 {
		return fmt.Errorf("session.inactivity_timeout_seconds must be positive")
	}
	if cfg.Session.WarningThresholdSeconds <= 0 {
		return fmt.Errorf("session.warning_threshold_seconds must be positive")
	}
	if cfg.Session.WarningThresholdSeconds >= cfg.Session.InactivityTimeoutSeconds {
		return fmt.Errorf("session.warning_threshold_seconds (%d) must be below session.inactivity_timeout_seconds (%d)",
			cfg.Session.WarningThresholdSeconds, cfg.Session.InactivityTimeoutSeconds)
	}

	if cfg.Client.PollIntervalMS <= 0 {
		return fmt.Errorf("client.poll_interval_ms must be positive")
	}

	if cfg.Session.Store == "redis" && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when session.store is redis")
	}
	if cfg.Session.Store == "postgres" && cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required when session.store is postgres")
	}

	switch cfg.Auth.Mode {
	case "static", "remote":
	default:
		return fmt.Errorf("auth.mode must be static or remote, got %q", cfg.Auth.Mode)
	}
	if cfg.Auth.Mode == "remote" && cfg.Auth.Remote.URL == "" {
		return fmt.Errorf("auth.remote.url is required when auth.mode is remote")
	}

	if cfg.Audit.Enabled && len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required when audit.enabled is true")
	}

	return nil
}
