package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 进程级配置，全部来自环境变量（.env 由 godotenv 预先加载）
type Config struct {
	Port        string
	DatabaseURL string
	SiteURL     string
	LogLevel    string

	SessionSecret string

	NATSURL string

	StorageDir       string
	StoragePublicURL string

	GoogleClientID     string
	GoogleClientSecret string

	RSSHubInstanceURL string
	NewsFetchInterval time.Duration
	NewsRetentionDays int
	IngestMaxBytes    int64
	FeedPageSize      int
}

const defaultDSN = "host=localhost user=postgres password=postgres dbname=hearth port=5432 sslmode=disable TimeZone=UTC"

// Load 读取环境变量，非法值回退到默认值并打印警告
func Load() *Config {
	return &Config{
		Port:        getenv("PORT", "8080"),
		DatabaseURL: getenv("DATABASE_URL", defaultDSN),
		SiteURL:     strings.TrimSuffix(getenv("SITE_URL", "http://localhost:8080"), "/"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		SessionSecret: getenv("SESSION_SECRET", "secret_key_change_me"),

		NATSURL: os.Getenv("NATS_URL"),

		StorageDir:       getenv("STORAGE_DIR", "./data/uploads"),
		StoragePublicURL: strings.TrimSuffix(getenv("STORAGE_PUBLIC_URL", "/uploads"), "/"),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),

		RSSHubInstanceURL: strings.TrimSuffix(getenv("RSSHUB_INSTANCE_URL", "https://rsshub.app"), "/"),
		NewsFetchInterval: getDuration("NEWS_FETCH_INTERVAL", 30*time.Minute),
		NewsRetentionDays: getInt("NEWS_RETENTION_DAYS", 30),
		IngestMaxBytes:    int64(getInt("INGEST_MAX_BYTES", 5<<20)),
		FeedPageSize:      getInt("FEED_PAGE_SIZE", 20),
	}
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return v
}
