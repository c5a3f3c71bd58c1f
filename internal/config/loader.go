package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/soleron/sessiond/pkg/constants"
	"github.com/soleron/sessiond/pkg/errors"
)

// Load reads configuration from file and environment variables.
// File lookup order: /etc/sessiond/config.yaml, then ./config.yaml. Every key
// can be overridden through SESSIOND_-prefixed environment variables
// (e.g. SESSIOND_REDIS_ADDR).
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/sessiond/")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.ErrInvalidConfig.WithError(err)
		}
	}

	v.SetEnvPrefix("SESSIOND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.ErrInvalidConfig.WithError(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", 3600)
	v.SetDefault("database.max_conn_idle_time", 900)
	v.SetDefault("database.health_check_period", 60)
	v.SetDefault("database.conn_timeout", 10)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.max_connect_attempts", 5)
	v.SetDefault("redis.connect_backoff_min", "100ms")
	v.SetDefault("redis.connect_backoff_max", "3s")

	v.SetDefault("session.token_ttl", constants.SessionTokenDefaultTTL)
	v.SetDefault("session.refresh_token_ttl", constants.RefreshTokenDefaultTTL)
	v.SetDefault("session.state_ttl", constants.OAuthStateDefaultTTL)
	v.SetDefault("session.inactive_retention", constants.InactiveRetentionDefault)
	v.SetDefault("session.sweep_interval", "1h")

	v.SetDefault("csrf.cookie_name", constants.CSRFCookieName)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.audit_topic", "sessiond.audit")
	v.SetDefault("kafka.write_timeout", "10s")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "1s")

	v.SetDefault("vault.mount_path", "secret")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "sessiond")
	v.SetDefault("tracing.sampling_rate", 0.1)
}
