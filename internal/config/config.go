package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string        `yaml:"port" env:"SERVER_PORT"`
	Interface      string        `yaml:"interface" env:"SERVER_INTERFACE"`
	ReadTimeout    time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT"`
	FrontendOrigin string        `yaml:"frontend_origin" env:"FRONTEND_ORIGIN"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
}

// PostgresConfig holds PostgreSQL configuration
type PostgresConfig struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST"`
	Port     string `yaml:"port" env:"POSTGRES_PORT"`
	User     string `yaml:"user" env:"POSTGRES_USER"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	Database string `yaml:"database" env:"POSTGRES_DATABASE"`
	SSLMode  string `yaml:"sslmode" env:"POSTGRES_SSL_MODE"`
}

// DSN returns the PostgreSQL connection string
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST"`
	Port     string `yaml:"port" env:"REDIS_PORT"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

// Addr returns the Redis host:port address
func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWT   JWTConfig   `yaml:"jwt"`
	Share ShareConfig `yaml:"share"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret                   string `yaml:"secret" env:"JWT_SECRET"`
	ExpirationSeconds        int    `yaml:"expiration_seconds" env:"JWT_EXPIRATION_SECONDS"`
	RefreshSecret            string `yaml:"refresh_secret" env:"JWT_REFRESH_SECRET"`
	RefreshExpirationSeconds int    `yaml:"refresh_expiration_seconds" env:"JWT_REFRESH_EXPIRATION_SECONDS"`
}

// ShareConfig holds share-link token configuration
type ShareConfig struct {
	Secret          string `yaml:"secret" env:"SHARE_JWT_SECRET"`
	DefaultTTLHours int    `yaml:"default_ttl_hours" env:"SHARE_DEFAULT_TTL_HOURS"`
}

// WebSocketConfig holds realtime transport configuration
type WebSocketConfig struct {
	ReadLimitBytes  int64         `yaml:"read_limit_bytes" env:"WS_READ_LIMIT_BYTES"`
	WriteWait       time.Duration `yaml:"write_wait" env:"WS_WRITE_WAIT"`
	PongWait        time.Duration `yaml:"pong_wait" env:"WS_PONG_WAIT"`
	PingPeriod      time.Duration `yaml:"ping_period" env:"WS_PING_PERIOD"`
	SendBufferSize  int           `yaml:"send_buffer_size" env:"WS_SEND_BUFFER_SIZE"`
	AllowAllOrigins bool          `yaml:"allow_all_origins" env:"WS_ALLOW_ALL_ORIGINS"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `yaml:"level" env:"LOG_LEVEL"`
	IsDev            bool   `yaml:"is_dev" env:"LOG_IS_DEV"`
	LogDir           string `yaml:"log_dir" env:"LOG_DIR"`
	MaxAgeDays       int    `yaml:"max_age_days" env:"LOG_MAX_AGE_DAYS"`
	MaxSizeMB        int    `yaml:"max_size_mb" env:"LOG_MAX_SIZE_MB"`
	MaxBackups       int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS"`
	AlsoLogToConsole bool   `yaml:"also_log_to_console" env:"LOG_ALSO_CONSOLE"`
}

// Default returns a configuration with sensible development defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			Interface:    "0.0.0.0",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     "5432",
				User:     "postgres",
				Database: "umlhub",
				SSLMode:  "disable",
			},
			Redis: RedisConfig{
				Host: "localhost",
				Port: "6379",
			},
		},
		Auth: AuthConfig{
			JWT: JWTConfig{
				ExpirationSeconds:        3600,
				RefreshExpirationSeconds: 7 * 24 * 3600,
			},
			Share: ShareConfig{
				DefaultTTLHours: 168,
			},
		},
		WebSocket: WebSocketConfig{
			ReadLimitBytes: 1 << 20,
			WriteWait:      10 * time.Second,
			PongWait:       60 * time.Second,
			PingPeriod:     30 * time.Second,
			SendBufferSize: 256,
		},
		Logging: LoggingConfig{
			Level:            "info",
			LogDir:           "logs",
			AlsoLogToConsole: true,
		},
	}
}

// Load reads configuration from an optional YAML file, then applies
// environment variable overrides declared by `env` struct tags.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 - path comes from operator CLI
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

// Validate checks required configuration values
func (c *Config) Validate() error {
	if c.Auth.JWT.Secret == "" {
		return fmt.Errorf("auth.jwt.secret (JWT_SECRET) is required")
	}
	if c.Auth.JWT.RefreshSecret == "" {
		c.Auth.JWT.RefreshSecret = c.Auth.JWT.Secret
	}
	if c.Auth.Share.Secret == "" {
		c.Auth.Share.Secret = c.Auth.JWT.Secret
	}
	return nil
}

func applyEnvOverrides(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := applyEnvOverrides(field); err != nil {
				return err
			}
			continue
		}

		envName := t.Field(i).Tag.Get("env")
		if envName == "" {
			continue
		}
		raw, ok := os.LookupEnv(envName)
		if !ok {
			continue
		}

		switch field.Interface().(type) {
		case string:
			field.SetString(raw)
		case bool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return fmt.Errorf("invalid boolean for %s: %q", envName, raw)
			}
			field.SetBool(b)
		case int:
			n, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("invalid integer for %s: %q", envName, raw)
			}
			field.SetInt(int64(n))
		case int64:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer for %s: %q", envName, raw)
			}
			field.SetInt(n)
		case time.Duration:
			d, err := time.ParseDuration(raw)
			if err != nil {
				return fmt.Errorf("invalid duration for %s: %q", envName, raw)
			}
			field.SetInt(int64(d))
		default:
			return fmt.Errorf("unsupported config field type for %s", envName)
		}
	}
	return nil
}
