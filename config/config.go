package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	RainforestAPIKey string
	PAAPIAccessKey   string
	PAAPISecretKey   string
	PAAPIPartnerTag  string

	CatalogPath    string
	DefaultCountry string
	PageSize       int
	MinQueryLength int

	MaxConcurrency  int
	SourceTimeoutMs int
	RateLimitMs     int
	MaxRetries      int
	UseBrowser      bool
	ChromeBin       string

	CSVOutputPath  string
	ArchiveEnabled bool

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	HTTPAddr string
	LogDebug bool
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		RainforestAPIKey: getEnv("RAINFOREST_API_KEY", ""),
		PAAPIAccessKey:   getEnv("PAAPI_ACCESS_KEY", ""),
		PAAPISecretKey:   getEnv("PAAPI_SECRET_KEY", ""),
		PAAPIPartnerTag:  getEnv("PAAPI_PARTNER_TAG", ""),

		CatalogPath:    getEnv("CATALOG_PATH", ""),
		DefaultCountry: strings.ToUpper(getEnv("DEFAULT_COUNTRY", "EG")),
		PageSize:       getEnvInt("PAGE_SIZE", 20),
		MinQueryLength: getEnvInt("MIN_QUERY_LENGTH", 2),

		MaxConcurrency:  getEnvInt("MAX_CONCURRENCY", 0),
		SourceTimeoutMs: getEnvInt("SOURCE_TIMEOUT_MS", 15000),
		RateLimitMs:     getEnvInt("RATE_LIMIT_MS", 1000),
		MaxRetries:      getEnvInt("MAX_RETRIES", 2),
		UseBrowser:      getEnvBool("USE_BROWSER", false),
		ChromeBin:       getEnv("CHROME_BIN", ""),

		CSVOutputPath:  getEnv("CSV_OUTPUT_PATH", ""),
		ArchiveEnabled: getEnvBool("ARCHIVE_ENABLED", false),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "shopscout"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "shopscout"),
		PostgresDB:       getEnv("POSTGRES_DB", "shopscout"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogDebug: getEnvBool("LOG_DEBUG", false),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// SourceTimeout is the per-source fetch deadline.
func (c *Config) SourceTimeout() time.Duration {
	return time.Duration(c.SourceTimeoutMs) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err == nil {
			return b
		}
	}
	return fallback
}
