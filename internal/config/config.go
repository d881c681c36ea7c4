package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	TelegramToken   string        `yaml:"telegramToken"`
	TelegramBaseURL string        `yaml:"telegramBaseURL"`
	PollTimeout     time.Duration `yaml:"-"`
	OffsetFile      string        `yaml:"offsetFile"`
	// BootstrapAdminID is provisioned as admin on first contact.
	BootstrapAdminID int64         `yaml:"bootstrapAdminID"`
	DatabaseDriver   string        `yaml:"databaseDriver"`
	DatabaseURL      string        `yaml:"databaseURL"`
	RedisURL         string        `yaml:"redisURL"`
	SessionTTL       time.Duration `yaml:"-"`
	MeiliURL         string        `yaml:"meiliURL"`
	MeiliMasterKey   string        `yaml:"meiliMasterKey"`
	// MinIO media archive, disabled when MinioEndpoint is empty
	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
	HealthAddr     string `yaml:"healthAddr"`
	LogLevel       string `yaml:"logLevel"`
	SearchLimit    int    `yaml:"searchLimit"`
	LatestLimit    int    `yaml:"latestLimit"`

	PollTimeoutSeconds int `yaml:"pollTimeoutSeconds"`
	SessionTTLSeconds  int `yaml:"sessionTTLSeconds"`
}

// Load reads MOVIEBOT_CONFIG (if set) and applies environment overrides on top.
func Load() (Config, error) {
	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("MOVIEBOT_CONFIG")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	cfg.PollTimeout = time.Duration(cfg.PollTimeoutSeconds) * time.Second
	cfg.SessionTTL = time.Duration(cfg.SessionTTLSeconds) * time.Second
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		TelegramBaseURL:    "https://api.telegram.org",
		DatabaseDriver:     "sqlite",
		DatabaseURL:        "file:movies.db?_pragma=foreign_keys(1)",
		MinioBucket:        "moviebot-media",
		HealthAddr:         ":8080",
		LogLevel:           "info",
		SearchLimit:        5,
		LatestLimit:        10,
		PollTimeoutSeconds: 30,
		SessionTTLSeconds:  6 * 60 * 60,
	}
}

func applyEnv(cfg *Config) {
	cfg.TelegramToken = getenv("TELEGRAM_BOT_TOKEN", cfg.TelegramToken)
	cfg.TelegramBaseURL = getenv("TELEGRAM_BASE_URL", cfg.TelegramBaseURL)
	cfg.OffsetFile = getenv("TELEGRAM_OFFSET_FILE", cfg.OffsetFile)
	cfg.PollTimeoutSeconds = getenvInt("TELEGRAM_POLL_TIMEOUT_SECONDS", cfg.PollTimeoutSeconds)
	cfg.BootstrapAdminID = getenvInt64("MOVIEBOT_ADMIN_ID", cfg.BootstrapAdminID)
	cfg.DatabaseDriver = strings.ToLower(getenv("DATABASE_DRIVER", cfg.DatabaseDriver))
	cfg.DatabaseURL = getenv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = getenv("REDIS_URL", cfg.RedisURL)
	cfg.SessionTTLSeconds = getenvInt("MOVIEBOT_SESSION_TTL_SECONDS", cfg.SessionTTLSeconds)
	cfg.MeiliURL = getenv("MEILI_URL", cfg.MeiliURL)
	cfg.MeiliMasterKey = getenv("MEILI_MASTER_KEY", cfg.MeiliMasterKey)
	cfg.MinioEndpoint = getenv("MINIO_ENDPOINT", cfg.MinioEndpoint)
	cfg.MinioAccessKey = getenv("MINIO_ACCESS_KEY", cfg.MinioAccessKey)
	cfg.MinioSecretKey = getenv("MINIO_SECRET_KEY", cfg.MinioSecretKey)
	cfg.MinioBucket = getenv("MINIO_BUCKET", cfg.MinioBucket)
	cfg.MinioUseSSL = getenvBool("MINIO_USE_SSL", cfg.MinioUseSSL)
	cfg.HealthAddr = getenv("HEALTH_ADDR", cfg.HealthAddr)
	cfg.LogLevel = strings.ToLower(getenv("LOG_LEVEL", cfg.LogLevel))
	cfg.SearchLimit = getenvInt("MOVIEBOT_SEARCH_LIMIT", cfg.SearchLimit)
	cfg.LatestLimit = getenvInt("MOVIEBOT_LATEST_LIMIT", cfg.LatestLimit)
}

func validate(cfg Config) error {
	switch cfg.DatabaseDriver {
	case "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("config: unsupported database driver %q", cfg.DatabaseDriver)
	}
	if cfg.DatabaseDriver != "memory" && strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("config: DATABASE_URL is required")
	}
	if cfg.SearchLimit < 5 || cfg.SearchLimit > 10 {
		return errors.New("config: search limit must be between 5 and 10")
	}
	if cfg.LatestLimit <= 0 {
		return errors.New("config: latest limit must be > 0")
	}
	if cfg.SessionTTLSeconds < 0 {
		return errors.New("config: session ttl must be >= 0")
	}
	return nil
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
