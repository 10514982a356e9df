// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"finflow-ledger/pkg/db" // Import db package for its Config struct
)

// Lock backends.
const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

// LockConfig controls per-account serialization.
type LockConfig struct {
	Backend       string
	Timeout       time.Duration
	TTL           time.Duration // redis only
	RetryInterval time.Duration // redis only
}

// RedisConfig holds the Redis connection used by the redis lock backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds access token settings.
type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// AMQPConfig holds the event publisher settings. An empty URI disables publishing.
type AMQPConfig struct {
	URI      string
	Exchange string
}

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort  string
	DB          db.Config
	AutoMigrate bool
	Log         LogConfig
	Lock        LockConfig
	Redis       RedisConfig
	RatesFile   string // empty means the built-in USD/THB table
	JWT         JWTConfig
	AMQP        AMQPConfig
	CORSOrigins []string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_port", "8080")

	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_user", "user")
	v.SetDefault("db_password", "password")
	v.SetDefault("db_name", "ledgerdb")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("db_max_open_conns", 25)
	v.SetDefault("db_max_idle_conns", 25)
	v.SetDefault("db_conn_max_lifetime", 5*time.Minute)
	v.SetDefault("db_lock_timeout", 5*time.Second)
	v.SetDefault("db_auto_migrate", false)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetDefault("lock_backend", LockBackendLocal)
	v.SetDefault("lock_timeout", 5*time.Second)
	v.SetDefault("lock_ttl", 10*time.Second)
	v.SetDefault("lock_retry_interval", 25*time.Millisecond)

	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("rates_file", "")

	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_ttl", 24*time.Hour)

	v.SetDefault("amqp_uri", "")
	v.SetDefault("amqp_exchange", "ledger.events")

	v.SetDefault("cors_allowed_origins", "*")
}

// LoadConfig loads configuration from environment variables and, when CONFIG_FILE is set,
// from that file. Environment variables take precedence over the file.
// It returns an AppConfig instance or an error if any variable is missing or invalid.
func LoadConfig() (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := &AppConfig{
		ServerPort: v.GetString("server_port"),
		DB: db.Config{
			Host:            v.GetString("db_host"),
			Port:            v.GetInt("db_port"),
			User:            v.GetString("db_user"),
			Password:        v.GetString("db_password"),
			DBName:          v.GetString("db_name"),
			SSLMode:         v.GetString("db_sslmode"),
			MaxOpenConns:    v.GetInt("db_max_open_conns"),
			MaxIdleConns:    v.GetInt("db_max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("db_conn_max_lifetime"),
			LockTimeout:     v.GetDuration("db_lock_timeout"),
		},
		AutoMigrate: v.GetBool("db_auto_migrate"),
		Log: LogConfig{
			Level:  v.GetString("log_level"),
			Format: v.GetString("log_format"),
		},
		Lock: LockConfig{
			Backend:       strings.ToLower(strings.TrimSpace(v.GetString("lock_backend"))),
			Timeout:       v.GetDuration("lock_timeout"),
			TTL:           v.GetDuration("lock_ttl"),
			RetryInterval: v.GetDuration("lock_retry_interval"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis_addr"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
		RatesFile: v.GetString("rates_file"),
		JWT: JWTConfig{
			Secret: v.GetString("jwt_secret"),
			TTL:    v.GetDuration("jwt_ttl"),
		},
		AMQP: AMQPConfig{
			URI:      v.GetString("amqp_uri"),
			Exchange: v.GetString("amqp_exchange"),
		},
		CORSOrigins: splitList(v.GetString("cors_allowed_origins")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	if c.DB.Port <= 0 {
		return fmt.Errorf("invalid DB_PORT: %d", c.DB.Port)
	}
	switch c.Lock.Backend {
	case LockBackendLocal:
	case LockBackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required when LOCK_BACKEND=%s", LockBackendRedis)
		}
		if c.Lock.TTL <= 0 || c.Lock.RetryInterval <= 0 {
			return fmt.Errorf("LOCK_TTL and LOCK_RETRY_INTERVAL must be positive")
		}
	default:
		return fmt.Errorf("invalid LOCK_BACKEND %q: want %s or %s", c.Lock.Backend, LockBackendLocal, LockBackendRedis)
	}
	if c.Lock.Timeout <= 0 {
		return fmt.Errorf("LOCK_TIMEOUT must be positive, got %s", c.Lock.Timeout)
	}
	if c.DB.LockTimeout < time.Millisecond {
		return fmt.Errorf("DB_LOCK_TIMEOUT must be at least 1ms, got %s", c.DB.LockTimeout)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWT.TTL)
	}
	return nil
}

// splitList parses a comma separated setting, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
