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
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Typesense TypesenseConfig
	Places    PlacesConfig
	Session   SessionConfig
	Batch     BatchConfig
	OTEL      OTELConfig
}

// AppConfig holds process-wide settings
type AppConfig struct {
	Name string
	Env  string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
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

// RedisConfig holds Redis configuration. An empty Host disables Redis.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration. An empty URL disables the index.
type TypesenseConfig struct {
	URL    string
	APIKey string
}

// PlacesConfig holds the Google Places API configuration used by the bulk crawler
type PlacesConfig struct {
	APIKey       string
	Language     string
	Region       string
	RequestDelay time.Duration
}

// SessionConfig holds cookie session settings
type SessionConfig struct {
	Secret            string
	AdminPasswordHash string
	AdminTTL          time.Duration
	EditWindow        time.Duration
	IPHashSalt        string
	SecureCookies     bool
}

// BatchConfig holds settings shared by the maintenance tools
type BatchConfig struct {
	PageSize       int
	DeleteDelay    time.Duration
	InsertDelay    time.Duration
	Countdown      time.Duration
	BackupDir      string
	CheckpointFile string
	ErrorLogFile   string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from a .env file (if present) and environment variables
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	return &Config{
		App: AppConfig{
			Name: getEnv("APP_NAME", "kuchikomi-cho"),
			Env:  getEnv("APP_ENV", "development"),
		},
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "kuchikomi"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			URL:    getEnv("TYPESENSE_URL", ""),
			APIKey: getEnv("TYPESENSE_API_KEY", ""),
		},
		Places: PlacesConfig{
			APIKey:       getEnv("GOOGLE_PLACES_API_KEY", ""),
			Language:     getEnv("GOOGLE_PLACES_LANGUAGE", "ja"),
			Region:       getEnv("GOOGLE_PLACES_REGION", "jp"),
			RequestDelay: getEnvAsDuration("GOOGLE_PLACES_REQUEST_DELAY", 200*time.Millisecond),
		},
		Session: SessionConfig{
			Secret:            getEnv("SESSION_SECRET", ""),
			AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
			AdminTTL:          getEnvAsDuration("ADMIN_SESSION_TTL", 12*time.Hour),
			EditWindow:        getEnvAsDuration("EDIT_WINDOW", 24*time.Hour),
			IPHashSalt:        getEnv("IP_HASH_SALT", ""),
			SecureCookies:     getEnvAsBool("SECURE_COOKIES", false),
		},
		Batch: BatchConfig{
			PageSize:       getEnvAsInt("BATCH_PAGE_SIZE", 1000),
			DeleteDelay:    getEnvAsDuration("DEDUP_DELETE_DELAY", 100*time.Millisecond),
			InsertDelay:    getEnvAsDuration("INGEST_INSERT_DELAY", 50*time.Millisecond),
			Countdown:      getEnvAsDuration("DEDUP_COUNTDOWN", 5*time.Second),
			BackupDir:      getEnv("BACKUP_DIR", "backups"),
			CheckpointFile: getEnv("INGEST_CHECKPOINT_FILE", "fetch-progress.json"),
			ErrorLogFile:   getEnv("INGEST_ERROR_LOG_FILE", "fetch-errors.json"),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "kuchikomi-cho"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}, nil
}

// ValidateDatabase reports a setup error when the store cannot be addressed
func (c *Config) ValidateDatabase() error {
	if strings.TrimSpace(c.Database.Host) == "" || strings.TrimSpace(c.Database.Database) == "" {
		return fmt.Errorf("DB_HOST and DB_NAME are required")
	}
	return nil
}

// ValidatePlaces reports a setup error when the Places API key is missing
func (c *Config) ValidatePlaces() error {
	if strings.TrimSpace(c.Places.APIKey) == "" {
		return fmt.Errorf("GOOGLE_PLACES_API_KEY is required")
	}
	return nil
}

// ValidateSession reports a setup error when cookies cannot be signed
func (c *Config) ValidateSession() error {
	if len(c.Session.Secret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 characters")
	}
	return nil
}

// IsDevelopment reports whether the app runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Enabled reports whether Redis is configured
func (c *RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Host) != ""
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Enabled reports whether a Typesense server is configured
func (c *TypesenseConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != ""
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

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
