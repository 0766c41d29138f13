package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Featured  FeaturedConfig
	Catalog   CatalogConfig
	Imports   ImportConfig
	Wikipedia WikipediaConfig
	Client    ClientConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// FeaturedConfig tunes the server-chosen sample shown before any filter is applied.
type FeaturedConfig struct {
	Limit    int
	CacheTTL time.Duration
}

// CatalogConfig tunes caching of the category catalog.
type CatalogConfig struct {
	CacheTTL time.Duration
}

// ImportConfig controls the "on this day" ingestion pipeline.
type ImportConfig struct {
	Enabled    bool
	Schedule   string
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
	Delay      time.Duration
	FastDelay  time.Duration
	Archivist  string
	Keywords   []string
}

// WikipediaConfig points at the upstream feed.
type WikipediaConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// ClientConfig is consumed by capsulectl when talking to a running API.
type ClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Featured = FeaturedConfig{
		Limit:    v.GetInt("FEATURED_LIMIT"),
		CacheTTL: parseDuration(v.GetString("FEATURED_CACHE_TTL"), time.Minute),
	}

	cfg.Catalog = CatalogConfig{
		CacheTTL: parseDuration(v.GetString("CATEGORY_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Imports = ImportConfig{
		Enabled:    v.GetBool("ENABLE_IMPORTS"),
		Schedule:   v.GetString("IMPORT_SCHEDULE"),
		Workers:    v.GetInt("IMPORT_WORKERS"),
		MaxRetries: v.GetInt("IMPORT_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("IMPORT_RETRY_DELAY"), 30*time.Second),
		Delay:      parseDuration(v.GetString("IMPORT_REQUEST_DELAY"), time.Second),
		FastDelay:  parseDuration(v.GetString("IMPORT_FAST_DELAY"), 100*time.Millisecond),
		Archivist:  v.GetString("IMPORT_ARCHIVIST"),
		Keywords:   splitAndTrim(v.GetString("IMPORT_KEYWORDS")),
	}

	cfg.Wikipedia = WikipediaConfig{
		BaseURL:   v.GetString("WIKIPEDIA_BASE_URL"),
		UserAgent: v.GetString("WIKIPEDIA_USER_AGENT"),
		Timeout:   parseDuration(v.GetString("WIKIPEDIA_TIMEOUT"), 10*time.Second),
	}

	cfg.Client = ClientConfig{
		BaseURL: v.GetString("CAPSULE_API_URL"),
		Token:   v.GetString("CAPSULE_API_TOKEN"),
		Timeout: parseDuration(v.GetString("CAPSULE_API_TIMEOUT"), 10*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 5555)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "time_capsule")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "tech-time-capsule")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("FEATURED_LIMIT", 20)
	v.SetDefault("FEATURED_CACHE_TTL", "1m")
	v.SetDefault("CATEGORY_CACHE_TTL", "10m")

	v.SetDefault("ENABLE_IMPORTS", false)
	v.SetDefault("IMPORT_SCHEDULE", "")
	v.SetDefault("IMPORT_WORKERS", 1)
	v.SetDefault("IMPORT_MAX_RETRIES", 3)
	v.SetDefault("IMPORT_RETRY_DELAY", "30s")
	v.SetDefault("IMPORT_REQUEST_DELAY", "1s")
	v.SetDefault("IMPORT_FAST_DELAY", "100ms")
	v.SetDefault("IMPORT_ARCHIVIST", "Archivist")
	v.SetDefault("IMPORT_KEYWORDS", "computer,internet,software,apple,microsoft,google,nasa,space,robot,web,semiconductor,chip")

	v.SetDefault("WIKIPEDIA_BASE_URL", "https://en.wikipedia.org/api/rest_v1")
	v.SetDefault("WIKIPEDIA_USER_AGENT", "TechTimeCapsule/1.0 (https://github.com/noah-isme/timecapsule-api)")
	v.SetDefault("WIKIPEDIA_TIMEOUT", "10s")

	v.SetDefault("CAPSULE_API_URL", "http://localhost:5555")
	v.SetDefault("CAPSULE_API_TOKEN", "")
	v.SetDefault("CAPSULE_API_TIMEOUT", "10s")
}

// SetConfigFile makes viper surface a plain fs error instead of ConfigFileNotFoundError.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
