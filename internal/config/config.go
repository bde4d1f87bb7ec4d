package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar names the environment variable holding an optional YAML config file.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultAvatarURL is assigned to users who never uploaded an avatar.
const DefaultAvatarURL = "https://redcoraluniverse.com/img/default_profile_image.png"

// Config holds all service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Auth     AuthConfig     `koanf:"auth"`
	Postgres PostgresConfig `koanf:"postgres"`
	Mongo    MongoConfig    `koanf:"mongo"`
	Redis    RedisConfig    `koanf:"redis"`
	Minio    MinioConfig    `koanf:"minio"`
	NATS     NATSConfig     `koanf:"nats"`
}

type ServerConfig struct {
	Port         string        `koanf:"port"`
	Environment  string        `koanf:"environment"`
	CORSOrigins  []string      `koanf:"cors_origins"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// AuthConfig configures session tokens. JWTSecret is never logged.
type AuthConfig struct {
	JWTSecret       string        `koanf:"jwt_secret"`
	TokenTTL        time.Duration `koanf:"token_ttl"`
	CookieName      string        `koanf:"cookie_name"`
	DefaultAvatar   string        `koanf:"default_avatar"`
	RateLimitReqs   int           `koanf:"rate_limit_requests"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

type PostgresConfig struct {
	DSN string `koanf:"dsn"`
}

type MongoConfig struct {
	URI      string `koanf:"uri"`
	Database string `koanf:"database"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
}

type MinioConfig struct {
	Endpoint      string `koanf:"endpoint"`
	AccessKey     string `koanf:"access_key"`
	SecretKey     string `koanf:"secret_key"`
	Bucket        string `koanf:"bucket"`
	UseSSL        bool   `koanf:"use_ssl"`
	PublicBaseURL string `koanf:"public_base_url"`
}

// NATSConfig enables event publishing when URL is set.
type NATSConfig struct {
	URL string `koanf:"url"`
}

// IsProduction reports whether cookies must be marked Secure.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			Environment:  "development",
			CORSOrigins:  []string{"http://localhost:5173", "http://localhost:3000"},
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Auth: AuthConfig{
			TokenTTL:        7 * 24 * time.Hour,
			CookieName:      "access_token",
			DefaultAvatar:   DefaultAvatarURL,
			RateLimitReqs:   20,
			RateLimitWindow: time.Minute,
		},
		Mongo: MongoConfig{
			Database: "estate",
		},
		Redis: RedisConfig{
			Addr: "redis:6379",
		},
		Minio: MinioConfig{
			Endpoint:      "minio:9000",
			Bucket:        "listing-images",
			PublicBaseURL: "/api/images",
		},
	}
}

// envMappings maps the flat environment variable names used by the
// deployment to koanf paths.
var envMappings = map[string]string{
	"port":                     "server.port",
	"environment":              "server.environment",
	"cors_origins":             "server.cors_origins",
	"log_level":                "log.level",
	"log_format":               "log.format",
	"jwt_secret":               "auth.jwt_secret",
	"token_ttl":                "auth.token_ttl",
	"default_avatar_url":       "auth.default_avatar",
	"auth_rate_limit_requests": "auth.rate_limit_requests",
	"auth_rate_limit_window":   "auth.rate_limit_window",
	"postgres_dsn":             "postgres.dsn",
	"mongo_uri":                "mongo.uri",
	"mongo_db":                 "mongo.database",
	"redis_addr":               "redis.addr",
	"redis_password":           "redis.password",
	"minio_endpoint":           "minio.endpoint",
	"minio_access_key":         "minio.access_key",
	"minio_secret_key":         "minio.secret_key",
	"minio_bucket":             "minio.bucket",
	"minio_use_ssl":            "minio.use_ssl",
	"minio_public_base_url":    "minio.public_base_url",
	"nats_url":                 "nats.url",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unknown variables are dropped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. A .env file in the working
// directory is loaded into the environment first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// CORS_ORIGINS arrives as a comma separated string.
	if raw, ok := k.Get("server.cors_origins").(string); ok {
		if err := k.Set("server.cors_origins", splitList(raw)); err != nil {
			return nil, fmt.Errorf("parse cors origins: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.Postgres.DSN == "" {
		errs = append(errs, errors.New("POSTGRES_DSN is required"))
	}
	if c.Mongo.URI == "" {
		errs = append(errs, errors.New("MONGO_URI is required"))
	}
	if c.Auth.CookieName == "" {
		errs = append(errs, errors.New("cookie name must not be empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
