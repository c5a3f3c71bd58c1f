// Package config holds the sessiond configuration surface.
package config

import (
	"fmt"
	"time"

	"github.com/soleron/sessiond/pkg/errors"
)

// Config holds the application's configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Session  SessionConfig  `mapstructure:"session"`
	CSRF     CSRFConfig     `mapstructure:"csrf"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Vault    VaultConfig    `mapstructure:"vault"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	Production   bool   `mapstructure:"production"`
}

type DatabaseConfig struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	SSLMode           string `mapstructure:"ssl_mode"`
	MaxConns          int    `mapstructure:"max_conns"`
	MinConns          int    `mapstructure:"min_conns"`
	MaxConnLifetime   int    `mapstructure:"max_conn_lifetime"`   // in seconds
	MaxConnIdleTime   int    `mapstructure:"max_conn_idle_time"`  // in seconds
	HealthCheckPeriod int    `mapstructure:"health_check_period"` // in seconds
	ConnTimeout       int    `mapstructure:"conn_timeout"`        // in seconds
}

// DSN builds the pgx connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`

	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// Reconnection policy: each connect attempt backs off with an increasing,
	// capped delay; exceeding MaxConnectAttempts is fatal.
	MaxConnectAttempts int           `mapstructure:"max_connect_attempts"`
	ConnectBackoffMin  time.Duration `mapstructure:"connect_backoff_min"`
	ConnectBackoffMax  time.Duration `mapstructure:"connect_backoff_max"`
}

type SessionConfig struct {
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
	RefreshTokenTTL   time.Duration `mapstructure:"refresh_token_ttl"`
	StateTTL          time.Duration `mapstructure:"state_ttl"`
	InactiveRetention time.Duration `mapstructure:"inactive_retention"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
}

type CSRFConfig struct {
	SigningSecret string `mapstructure:"signing_secret"`
	CookieName    string `mapstructure:"cookie_name"`
	// VaultSecretPath, when set, overrides SigningSecret with a value read
	// from Vault at startup.
	VaultSecretPath string `mapstructure:"vault_secret_path"`
}

type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	AuditTopic   string        `mapstructure:"audit_topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

type VaultConfig struct {
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	MountPath string `mapstructure:"mount_path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// Validate checks for essential configuration values. Missing required
// configuration fails at startup, not at request time.
func (c *Config) Validate() error {
	if c.Redis.Addr == "" {
		return errors.ErrInvalidConfig.WithMessagef("redis.addr is required")
	}
	if c.Redis.MaxConnectAttempts <= 0 {
		return errors.ErrInvalidConfig.WithMessagef("redis.max_connect_attempts must be positive")
	}
	if c.CSRF.SigningSecret == "" && c.CSRF.VaultSecretPath == "" {
		return errors.ErrInvalidConfig.WithMessagef("csrf.signing_secret or csrf.vault_secret_path is required")
	}
	if c.Session.TokenTTL <= 0 {
		return errors.ErrInvalidConfig.WithMessagef("session.token_ttl must be positive")
	}
	if c.Session.RefreshTokenTTL <= 0 {
		return errors.ErrInvalidConfig.WithMessagef("session.refresh_token_ttl must be positive")
	}
	if c.Session.StateTTL <= 0 {
		return errors.ErrInvalidConfig.WithMessagef("session.state_ttl must be positive")
	}
	if c.Session.InactiveRetention <= 0 {
		return errors.ErrInvalidConfig.WithMessagef("session.inactive_retention must be positive")
	}
	// The sweeper jitters each cycle by a tenth of the interval; an interval
	// too small to jitter would make it panic at runtime.
	if c.Session.SweepInterval < time.Second {
		return errors.ErrInvalidConfig.WithMessagef("session.sweep_interval must be at least 1s")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.ErrInvalidConfig.WithMessagef("kafka.brokers is required when kafka is enabled")
	}
	return nil
}
