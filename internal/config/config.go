// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret                string `mapstructure:"JWT_SECRET"`
	Port                     string `mapstructure:"PORT"`
	DBDriver                 string `mapstructure:"DB_DRIVER"`
	DBHost                   string `mapstructure:"DB_HOST"`
	DBPort                   string `mapstructure:"DB_PORT"`
	DBUser                   string `mapstructure:"DB_USER"`
	DBPassword               string `mapstructure:"DB_PASSWORD"`
	DBName                   string `mapstructure:"DB_NAME"`
	DBSSLMode                string `mapstructure:"DB_SSLMODE"`
	SQLitePath               string `mapstructure:"SQLITE_PATH"`
	DBConnMaxLifetimeMinutes int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	RedisURL                 string `mapstructure:"REDIS_URL"`
	AllowedOrigins           string `mapstructure:"ALLOWED_ORIGINS"`
	Env                      string `mapstructure:"APP_ENV"`
	StorageDir               string `mapstructure:"STORAGE_DIR"`
	MediaBaseURL             string `mapstructure:"MEDIA_BASE_URL"`
	ImageMaxUploadSizeMB     int    `mapstructure:"IMAGE_MAX_UPLOAD_SIZE_MB"`
	ImageMaxDimension        int    `mapstructure:"IMAGE_MAX_DIMENSION"`
	GraphCacheSize           int    `mapstructure:"GRAPH_CACHE_SIZE"`
	TitleRefreshSchedule     string `mapstructure:"TITLE_REFRESH_SCHEDULE"`
	TitleRefreshBatchSize    int    `mapstructure:"TITLE_REFRESH_BATCH_SIZE"`
	TracingExporter          string `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint             string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	DevAdminEmail            string `mapstructure:"DEV_ADMIN_EMAIL"`
	DevAdminPassword         string `mapstructure:"DEV_ADMIN_PASSWORD"`
}

// IsProduction reports whether strict production checks apply.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// LoadConfig loads application configuration from .env, config files and
// environment variables, in increasing order of precedence.
func LoadConfig() (*Config, error) {
	// .env is optional; real environment variables are never overridden.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env != "" && env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		slog.Info("Loaded profile-specific configuration", slog.String("file", "config."+env+".yml"))
	}

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "mindlog")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("SQLITE_PATH", "mindlog.db")
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("STORAGE_DIR", "./data/media")
	viper.SetDefault("MEDIA_BASE_URL", "/media")
	viper.SetDefault("IMAGE_MAX_UPLOAD_SIZE_MB", 5)
	viper.SetDefault("IMAGE_MAX_DIMENSION", 2048)
	viper.SetDefault("GRAPH_CACHE_SIZE", 256)
	viper.SetDefault("TITLE_REFRESH_SCHEDULE", "@every 10m")
	viper.SetDefault("TITLE_REFRESH_BATCH_SIZE", 200)
	viper.SetDefault("TRACING_EXPORTER", "none")
	viper.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("DEV_ADMIN_EMAIL", "")
	viper.SetDefault("DEV_ADMIN_PASSWORD", "")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) normalize() {
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.MediaBaseURL = strings.TrimRight(c.MediaBaseURL, "/")
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	if c.ImageMaxUploadSizeMB <= 0 {
		return errors.New("IMAGE_MAX_UPLOAD_SIZE_MB must be positive")
	}
	if c.DBConnMaxLifetimeMinutes <= 0 {
		return errors.New("DB_CONN_MAX_LIFETIME_MINUTES must be positive")
	}
	if c.RedisURL == "" {
		return errors.New("REDIS_URL is required")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBDriver != "postgres" {
			return errors.New("DB_DRIVER must be postgres in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable SSL in production")
		}
		if c.AllowedOrigins == "*" {
			slog.Warn("ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		slog.Warn("JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
