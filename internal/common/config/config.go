package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Session  SessionConfig  `mapstructure:"session"`
	Client   ClientConfig   `mapstructure:"client"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

// SessionConfig drives the lifecycle core. Timeout and warning threshold are
// deployment-wide; there is no per-session override.
type SessionConfig struct {
	Store                    string `mapstructure:"store"` // memory | redis | postgres
	InactivityTimeoutSeconds int    `mapstructure:"inactivity_timeout_seconds"`
	WarningThresholdSeconds  int    `mapstructure:"warning_threshold_seconds"`
	SweepIntervalSeconds     int    `mapstructure:"sweep_interval_seconds"`
	PolicyFile               string `mapstructure:"policy_file"`
	CookieSecure             bool   `mapstructure:"cookie_secure"`
}

func (s SessionConfig) InactivityTimeout() time.Duration {
	return time.Duration(s.InactivityTimeoutSeconds) * time.Second
}

func (s SessionConfig) WarningThreshold() time.Duration {
	return time.Duration(s.WarningThresholdSeconds) * time.Second
}

func (s SessionConfig) SweepInterval() time.Duration {
	return time.Duration(s.SweepIntervalSeconds) * time.Second
}

// ClientConfig is handed to embedding clients; the server itself only uses
// it to surface the poll cadence for thin clients that ask.
type ClientConfig struct {
	PollIntervalMS int    `mapstructure:"poll_interval_ms"`
	LoginURL       string `mapstructure:"login_url"`
}

func (c ClientConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// AuthConfig wires the authentication collaborator. The service never
// verifies credentials itself beyond delegating to one of these.
type AuthConfig struct {
	Mode   string       `mapstructure:"mode"` // static | remote
	Users  []StaticUser `mapstructure:"users"`
	Remote struct {
		URL     string `mapstructure:"url"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"remote"`
}

type StaticUser struct {
	Username     string `mapstructure:"username"`
	PrincipalID  string `mapstructure:"principal_id"`
	PasswordHash string `mapstructure:"password_hash"` // bcrypt
}

type AuditConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Index      string `mapstructure:"index"`
	BufferSize int    `mapstructure:"buffer_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
