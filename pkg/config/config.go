package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Typesense   TypesenseConfig
	Geolocation GeolocationConfig
	Catalog     CatalogConfig
	Storage     StorageConfig
	Search      SearchConfig
	Log         LogConfig
	OTEL        OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int
	Env  string
	// AllowedOrigins lists the CORS origins; "*" allows any
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
	// Namespace prefixes every cache key so several deployments can share a database
	Namespace string
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL        string
	APIKey     string
	Collection string
}

// GeolocationConfig holds place lookup configuration
type GeolocationConfig struct {
	Provider     string
	BaseURL      string
	ContactEmail string
	UserAgent    string
	Language     string
	ResultLimit  int
	Debounce     time.Duration
	CacheTTL     time.Duration
	Timeout      time.Duration
}

// CatalogConfig selects where listings come from
type CatalogConfig struct {
	Source       string
	Limit        int
	FallbackFile string
	FallbackURL  string
}

// StorageConfig selects the backend for per-user search history
type StorageConfig struct {
	Backend    string
	SQLitePath string
	KeyPrefix  string
	// HistoryTTL expires idle Redis entries; zero keeps them forever
	HistoryTTL time.Duration
}

// SearchConfig holds search session defaults
type SearchConfig struct {
	DefaultRadiusKm int
	MinRadiusKm     int
	MaxRadiusKm     int
	GatedWizard     bool
	SessionIdleTTL  time.Duration
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables, reading a .env file first when present
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Env:            getEnv("APP_ENV", "development"),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "delivevent"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:      getEnv("REDIS_HOST", "localhost"),
			Port:      getEnvAsInt("REDIS_PORT", 6379),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			PoolSize:  getEnvAsInt("REDIS_POOL_SIZE", 10),
			Timeout:   getEnvAsDuration("REDIS_TIMEOUT", 3*time.Second),
			Namespace: getEnv("REDIS_NAMESPACE", "delivevent:"),
		},
		Typesense: TypesenseConfig{
			URL:        getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey:     getEnv("TYPESENSE_API_KEY", "xyz"),
			Collection: getEnv("TYPESENSE_COLLECTION", "listings"),
		},
		Geolocation: GeolocationConfig{
			Provider:     getEnv("GEOLOCATION_PROVIDER", "nominatim"),
			BaseURL:      getEnv("GEOLOCATION_BASE_URL", "https://nominatim.openstreetmap.org"),
			ContactEmail: getEnv("GEOLOCATION_CONTACT_EMAIL", "contact@deliv-event.fr"),
			UserAgent:    getEnv("GEOLOCATION_USER_AGENT", "delivevent-search/1.0"),
			Language:     getEnv("GEOLOCATION_LANGUAGE", "fr-FR"),
			ResultLimit:  getEnvAsInt("GEOLOCATION_RESULT_LIMIT", 5),
			Debounce:     getEnvAsDuration("GEOLOCATION_DEBOUNCE", 350*time.Millisecond),
			CacheTTL:     getEnvAsDuration("GEOLOCATION_CACHE_TTL", 24*time.Hour),
			Timeout:      getEnvAsDuration("GEOLOCATION_TIMEOUT", 8*time.Second),
		},
		Catalog: CatalogConfig{
			Source:       getEnv("CATALOG_SOURCE", "postgres"),
			Limit:        getEnvAsInt("CATALOG_LIMIT", 50),
			FallbackFile: getEnv("CATALOG_FALLBACK_FILE", ""),
			FallbackURL:  getEnv("CATALOG_FALLBACK_URL", ""),
		},
		Storage: StorageConfig{
			Backend:    getEnv("STORAGE_BACKEND", "memory"),
			SQLitePath: getEnv("STORAGE_SQLITE_PATH", "data/search_history.db"),
			KeyPrefix:  getEnv("STORAGE_KEY_PREFIX", "search:"),
			HistoryTTL: getEnvAsDuration("STORAGE_HISTORY_TTL", 90*24*time.Hour),
		},
		Search: SearchConfig{
			DefaultRadiusKm: getEnvAsInt("SEARCH_DEFAULT_RADIUS_KM", 10),
			MinRadiusKm:     getEnvAsInt("SEARCH_MIN_RADIUS_KM", 1),
			MaxRadiusKm:     getEnvAsInt("SEARCH_MAX_RADIUS_KM", 100),
			GatedWizard:     getEnvAsBool("SEARCH_GATED_WIZARD", false),
			SessionIdleTTL:  getEnvAsDuration("SEARCH_SESSION_IDLE_TTL", 2*time.Hour),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 28),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "delivevent-search"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with
func (c *Config) Validate() error {
	if c.Search.MinRadiusKm < 0 || c.Search.MaxRadiusKm < c.Search.MinRadiusKm {
		return fmt.Errorf("invalid radius bounds: min=%d max=%d", c.Search.MinRadiusKm, c.Search.MaxRadiusKm)
	}
	if c.Search.DefaultRadiusKm < c.Search.MinRadiusKm || c.Search.DefaultRadiusKm > c.Search.MaxRadiusKm {
		return fmt.Errorf("default radius %d outside [%d, %d]", c.Search.DefaultRadiusKm, c.Search.MinRadiusKm, c.Search.MaxRadiusKm)
	}
	switch strings.ToLower(c.Catalog.Source) {
	case "postgres", "typesense", "static":
	default:
		return fmt.Errorf("unknown catalog source %q", c.Catalog.Source)
	}
	switch strings.ToLower(c.Storage.Backend) {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Geolocation.ResultLimit <= 0 {
		c.Geolocation.ResultLimit = 5
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the HTTP listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty items
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
