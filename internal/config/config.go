package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm/logger"

	"storeops/internal/ratelimit"
	"storeops/internal/scheduler"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Search   SearchConfig   `yaml:"search"`
	Lock     LockConfig     `yaml:"lock"`
	Deletion DeletionConfig `yaml:"deletion"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig contains database settings.
// Type is one of mysql, postgres, sqlite or postgres-sql (raw lib/pq access).
type DatabaseConfig struct {
	Type     string         `yaml:"type"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Pool     PoolConfig     `yaml:"pool"`
	LogLevel string         `yaml:"log_level"`
}

// MySQLConfig contains MySQL connection settings
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// DSN returns the go-sql-driver connection string.
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// PostgresConfig contains PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the keyword/value connection string understood by pgx and lib/pq.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// SQLiteConfig contains SQLite settings
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PoolConfig contains connection pool settings
type PoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// StorageConfig contains object storage settings.
// Provider is one of s3, minio or none.
type StorageConfig struct {
	Provider        string `yaml:"provider"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
	UseSSL          bool   `yaml:"use_ssl"`
}

// SearchConfig contains search engine settings
type SearchConfig struct {
	Meilisearch MeilisearchConfig `yaml:"meilisearch"`
}

// MeilisearchConfig contains Meilisearch connection settings
type MeilisearchConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	APIKey  string `yaml:"api_key"`
	Index   string `yaml:"index"`
}

// LockConfig contains the per-store deletion lock settings.
// Provider is redis or local.
type LockConfig struct {
	Provider string        `yaml:"provider"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// DeletionConfig contains deletion engine settings
type DeletionConfig struct {
	PlanConcurrency  int              `yaml:"plan_concurrency"`
	SampleSize       int              `yaml:"sample_size"`
	WriteAuditLog    bool             `yaml:"write_audit_log"`
	DeleteFromSearch bool             `yaml:"delete_from_search"`
	RateLimit        RateLimitConfig  `yaml:"rate_limit"`
	Queue            scheduler.Config `yaml:"queue"`
}

// RateLimitConfig throttles real deletions accepted over HTTP
type RateLimitConfig struct {
	Enabled bool             `yaml:"enabled"`
	Limits  ratelimit.Limits `yaml:",inline"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Environment string `yaml:"environment"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8084",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			Type: "mysql",
			MySQL: MySQLConfig{
				Host:     "localhost",
				Port:     3306,
				User:     "storeops",
				Database: "storeops",
			},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "postgres",
				Database: "storeops",
				SSLMode:  "disable",
			},
			SQLite: SQLiteConfig{Path: "storeops.db"},
			Pool: PoolConfig{
				MaxIdleConns:    10,
				MaxOpenConns:    50,
				ConnMaxLifetime: time.Hour,
			},
			LogLevel: "warn",
		},
		Storage: StorageConfig{
			Provider:     "none",
			Region:       "us-east-1",
			UsePathStyle: true,
			UseSSL:       true,
		},
		Search: SearchConfig{
			Meilisearch: MeilisearchConfig{
				Host:  "http://localhost:7700",
				Index: "stores",
			},
		},
		Lock: LockConfig{
			Provider: "local",
			Addr:     "localhost:6379",
			TTL:      10 * time.Minute,
		},
		Deletion: DeletionConfig{
			PlanConcurrency:  4,
			SampleSize:       3,
			WriteAuditLog:    true,
			DeleteFromSearch: true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				Limits:  ratelimit.Limits{PerMinute: 5, PerHour: 30, PerDay: 100},
			},
			Queue: scheduler.DefaultConfig(),
		},
		Logging: LoggingConfig{
			Level:       "info",
			Environment: "development",
		},
	}
}

// LoadConfig loads configuration from a YAML file, then applies environment
// overrides. A missing file yields the defaults.
func LoadConfig(filepath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	config := DefaultConfig()

	data, err := os.ReadFile(filepath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		c.Server.AllowedOrigins = strings.Split(origins, ",")
	}

	c.Database.Type = getEnv("DB_TYPE", c.Database.Type)
	switch c.Database.Type {
	case "mysql":
		m := &c.Database.MySQL
		m.Host = getEnv("DB_HOST", m.Host)
		m.Port = getEnvAsInt("DB_PORT", m.Port)
		m.User = getEnv("DB_USER", m.User)
		m.Password = getEnv("DB_PASSWORD", m.Password)
		m.Database = getEnv("DB_NAME", m.Database)
	case "postgres", "postgres-sql":
		p := &c.Database.Postgres
		p.Host = getEnv("DB_HOST", p.Host)
		p.Port = getEnvAsInt("DB_PORT", p.Port)
		p.User = getEnv("DB_USER", p.User)
		p.Password = getEnv("DB_PASSWORD", p.Password)
		p.Database = getEnv("DB_NAME", p.Database)
		p.SSLMode = getEnv("DB_SSL_MODE", p.SSLMode)
	case "sqlite":
		c.Database.SQLite.Path = getEnv("DB_PATH", c.Database.SQLite.Path)
	}

	s := &c.Storage
	s.Provider = getEnv("STORAGE_PROVIDER", s.Provider)
	s.Endpoint = getEnv("STORAGE_ENDPOINT", s.Endpoint)
	s.Region = getEnv("STORAGE_REGION", s.Region)
	s.AccessKeyID = getEnv("STORAGE_ACCESS_KEY_ID", s.AccessKeyID)
	s.SecretAccessKey = getEnv("STORAGE_SECRET_ACCESS_KEY", s.SecretAccessKey)

	ms := &c.Search.Meilisearch
	ms.Host = getEnv("MEILI_HOST", ms.Host)
	ms.APIKey = getEnv("MEILI_MASTER_KEY", ms.APIKey)

	c.Lock.Provider = getEnv("LOCK_PROVIDER", c.Lock.Provider)
	c.Lock.Addr = getEnv("REDIS_ADDR", c.Lock.Addr)
	c.Lock.Password = getEnv("REDIS_PASSWORD", c.Lock.Password)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Environment = getEnv("APP_ENV", c.Logging.Environment)
}

// Validate rejects unknown providers.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "mysql", "postgres", "postgres-sql", "sqlite":
	default:
		return fmt.Errorf("config: unknown database type %q", c.Database.Type)
	}
	switch c.Storage.Provider {
	case "s3", "minio", "none", "":
	default:
		return fmt.Errorf("config: unknown storage provider %q", c.Storage.Provider)
	}
	switch c.Lock.Provider {
	case "redis", "local", "":
	default:
		return fmt.Errorf("config: unknown lock provider %q", c.Lock.Provider)
	}
	return nil
}

// GormLogLevel maps Database.LogLevel onto the gorm logger.
func (c DatabaseConfig) GormLogLevel() logger.LogLevel {
	switch c.LogLevel {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// LogFields returns the non-secret settings for startup logging.
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("environment", c.Logging.Environment),
		zap.String("db_type", c.Database.Type),
		zap.String("storage_provider", c.Storage.Provider),
		zap.Bool("search_enabled", c.Search.Meilisearch.Enabled),
		zap.String("lock_provider", c.Lock.Provider),
		zap.String("port", c.Server.Port),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
