package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Cache       CacheConfig
	Redis       RedisConfig
	Log         LogConfig
	Permissions PermissionsConfig
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host        string
	Port        int
	MetricsPort int // Port for Prometheus metrics HTTP server
}

// Cache backends
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// CacheConfig represents ability cache configuration
type CacheConfig struct {
	Enabled    bool
	Backend    string // memory or redis
	MaxEntries int    // Maximum number of cached abilities (memory backend)
	Metrics    bool
	TTLMinutes int // Time-to-live for cache entries in minutes
	// SnapshotRefreshSeconds is the fallback interval for re-reading the permission change log
	SnapshotRefreshSeconds int
}

// RedisConfig represents Redis configuration for the redis cache backend
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string // logrus level name (debug, info, warn, error)
	Format string // text or json
}

// PermissionsConfig represents permission engine configuration
type PermissionsConfig struct {
	SchemasDir     string // Directory of content-type schema files
	ConditionsFile string // YAML file of CEL conditions, optional
	FieldPolicy    string // include-all-when-unregistered or strict
	RunMigrations  bool
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// findProjectRoot finds the project root directory by looking for go.mod
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	// Walk up the directory tree until we find go.mod
	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached the root directory
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}

// InitConfig initializes viper configuration
// env: environment name (dev, test, prod)
func InitConfig(env string) error {
	if env == "" {
		env = "dev"
	}

	// Find project root
	projectRoot, err := findProjectRoot()
	if err != nil {
		return fmt.Errorf("failed to find project root: %w", err)
	}

	// Set config file name based on environment
	viper.SetConfigName(fmt.Sprintf(".env.%s", env))
	viper.SetConfigType("env")
	viper.AddConfigPath(projectRoot) // Project root

	// Read config file (optional, ignore error if not found)
	_ = viper.ReadInConfig()

	// Environment variables take precedence over config file
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", 50051)
	viper.SetDefault("METRICS_PORT", 9090)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 15432)
	viper.SetDefault("DB_USER", "kanmon")
	viper.SetDefault("DB_NAME", "kanmon_dev")
	viper.SetDefault("DB_SSLMODE", "disable")

	// Cache defaults
	viper.SetDefault("CACHE_ENABLED", true)
	viper.SetDefault("CACHE_BACKEND", CacheBackendMemory)
	viper.SetDefault("CACHE_MAX_ENTRIES", 10000)
	viper.SetDefault("CACHE_METRICS", true)
	viper.SetDefault("CACHE_TTL_MINUTES", 5) // 5 minutes TTL
	viper.SetDefault("CACHE_SNAPSHOT_REFRESH_SECONDS", 30)

	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_PREFIX", "kanmon")

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")

	viper.SetDefault("SCHEMAS_DIR", "schemas")
	viper.SetDefault("CONDITIONS_FILE", "")
	viper.SetDefault("FIELD_POLICY", "include-all-when-unregistered")
	viper.SetDefault("RUN_MIGRATIONS", false)

	return nil
}

// Load loads configuration from viper
func Load() (*Config, error) {
	// DB_PASSWORD is required for security
	dbPassword := viper.GetString("DB_PASSWORD")
	if dbPassword == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required (set via environment variable or .env file)")
	}

	config := &Config{
		Server: ServerConfig{
			Host:        viper.GetString("SERVER_HOST"),
			Port:        viper.GetInt("SERVER_PORT"),
			MetricsPort: viper.GetInt("METRICS_PORT"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetInt("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: dbPassword,
			Database: viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		Cache: CacheConfig{
			Enabled:                viper.GetBool("CACHE_ENABLED"),
			Backend:                viper.GetString("CACHE_BACKEND"),
			MaxEntries:             viper.GetInt("CACHE_MAX_ENTRIES"),
			Metrics:                viper.GetBool("CACHE_METRICS"),
			TTLMinutes:             viper.GetInt("CACHE_TTL_MINUTES"),
			SnapshotRefreshSeconds: viper.GetInt("CACHE_SNAPSHOT_REFRESH_SECONDS"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
			Prefix:   viper.GetString("REDIS_PREFIX"),
		},
		Log: LogConfig{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
		},
		Permissions: PermissionsConfig{
			SchemasDir:     viper.GetString("SCHEMAS_DIR"),
			ConditionsFile: viper.GetString("CONDITIONS_FILE"),
			FieldPolicy:    viper.GetString("FIELD_POLICY"),
			RunMigrations:  viper.GetBool("RUN_MIGRATIONS"),
		},
	}

	switch config.Cache.Backend {
	case "", CacheBackendMemory, CacheBackendRedis:
	default:
		return nil, fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q", CacheBackendMemory, CacheBackendRedis, config.Cache.Backend)
	}

	return config, nil
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Database,
		c.SSLMode,
	)
}
