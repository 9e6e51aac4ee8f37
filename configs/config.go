package configs

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	API      APIConfig
	Events   EventsConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// StoreConfig selects the persistent key-value store behind both cache tiers.
type StoreConfig struct {
	Backend  string // memory, bbolt, redis or postgres
	Path     string // bbolt file
	MaxBytes int64
	// KeyPrefix namespaces the redis backend
	KeyPrefix string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	DSN      string
	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	// Pool and timeout settings
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
	IdleTimeout  time.Duration
}

// CacheConfig holds the cache policy constants.
type CacheConfig struct {
	RecordPrefix     string
	AvatarPrefix     string
	CoverPrefix      string
	DefaultTTL       time.Duration
	ListTTL          time.Duration
	EntityTTL        time.Duration
	TaxonomyTTL      time.Duration
	AggregateTTL     time.Duration
	BlobTTL          time.Duration
	BlobMaxItemBytes int
	EvictCount       int
	BlobSoftKeyLimit int
}

type APIConfig struct {
	BaseURL         string
	Timeout         time.Duration
	DefaultAvatar   string
	DefaultCover    string
	MaxResponseSize int64
}

type EventsConfig struct {
	// Channel is the Redis pub/sub channel carrying push events; empty disables it.
	Channel string
}

type LogConfig struct {
	Level  string
	Format string // json or text
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	baseURL := getEnv("API_BASE_URL", "")
	if baseURL == "" {
		return nil, fmt.Errorf("required environment variable API_BASE_URL is not set")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "127.0.0.1"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Store: StoreConfig{
			Backend:   getEnv("STORE_BACKEND", "bbolt"),
			Path:      getEnv("STORE_PATH", "reader-cache.db"),
			MaxBytes:  getInt64Env("STORE_MAX_BYTES", 5<<20),
			KeyPrefix: getEnv("STORE_KEY_PREFIX", "reader"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "reader_cache"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDurationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDurationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolTimeout:  getDurationEnv("REDIS_POOL_TIMEOUT", 4*time.Second),
			IdleTimeout:  getDurationEnv("REDIS_IDLE_TIMEOUT", 5*time.Minute),
		},
		Cache: CacheConfig{
			RecordPrefix:     getEnv("CACHE_RECORD_PREFIX", "record:"),
			AvatarPrefix:     getEnv("CACHE_AVATAR_PREFIX", "avatar:"),
			CoverPrefix:      getEnv("CACHE_COVER_PREFIX", "cover:"),
			DefaultTTL:       getDurationEnv("CACHE_DEFAULT_TTL", 5*time.Minute),
			ListTTL:          getDurationEnv("CACHE_LIST_TTL", 5*time.Minute),
			EntityTTL:        getDurationEnv("CACHE_ENTITY_TTL", 10*time.Minute),
			TaxonomyTTL:      getDurationEnv("CACHE_TAXONOMY_TTL", time.Hour),
			AggregateTTL:     getDurationEnv("CACHE_AGGREGATE_TTL", 15*time.Minute),
			BlobTTL:          getDurationEnv("CACHE_BLOB_TTL", 24*time.Hour),
			BlobMaxItemBytes: getIntEnv("CACHE_BLOB_MAX_ITEM_BYTES", 1<<20),
			EvictCount:       getIntEnv("CACHE_EVICT_COUNT", 5),
			BlobSoftKeyLimit: getIntEnv("CACHE_BLOB_SOFT_KEY_LIMIT", 200),
		},
		API: APIConfig{
			BaseURL:         baseURL,
			Timeout:         getDurationEnv("API_TIMEOUT", 10*time.Second),
			DefaultAvatar:   getEnv("API_DEFAULT_AVATAR", "/static/default-avatar.png"),
			DefaultCover:    getEnv("API_DEFAULT_COVER", "/static/default-cover.png"),
			MaxResponseSize: getInt64Env("API_MAX_RESPONSE_BYTES", 16<<20),
		},
		Events: EventsConfig{
			Channel: getEnv("EVENTS_CHANNEL", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	switch cfg.Store.Backend {
	case "memory", "bbolt", "redis", "postgres":
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Store.Backend)
	}

	// Build database DSN
	cfg.Database.DSN = fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.SSLMode,
	)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
