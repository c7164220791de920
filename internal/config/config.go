package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/edgestat/internal/logging"
)

// Config holds all runtime settings, loaded from environment variables.
type Config struct {
	LogPaths []string
	Follow   bool

	DBDriver string
	DBPath   string
	DBDSN    string

	MaxMindDBPath string
	HashSalt      string

	SessionTimeout time.Duration
	BatchSize      int
	ChunkTimeout   time.Duration
	FlushInterval  time.Duration

	ListenAddr string
	LogLevel   slog.Level
	LogFormat  string
}

func Load() Config {
	cfg := Config{
		LogPaths:       splitEnv("LOG_PATHS", []string{"./logs/*.log"}),
		Follow:         getEnvBool("FOLLOW", false),
		DBDriver:       getEnv("DB_DRIVER", "sqlite"),
		DBPath:         getEnv("DB_PATH", "./data/edgestat.db"),
		DBDSN:          os.Getenv("DB_DSN"),
		MaxMindDBPath:  os.Getenv("MAXMIND_DB_PATH"),
		HashSalt:       getEnv("PRIVACY_HASH_SALT", "edgestat"),
		SessionTimeout: time.Duration(getEnvInt("SESSION_TIMEOUT_MINUTES", 30)) * time.Minute,
		BatchSize:      getEnvInt("BATCH_SIZE", 1000),
		ChunkTimeout:   getEnvDuration("LOAD_CHUNK_TIMEOUT", 30*time.Second),
		FlushInterval:  getEnvDuration("FLUSH_INTERVAL", 10*time.Second),
		ListenAddr:     getEnv("LISTEN_ADDR", ":8406"),
		LogLevel:       logging.ParseLevel(getEnv("LOG_LEVEL", "INFO")),
		LogFormat:      logging.ParseFormat(getEnv("LOG_FORMAT", "text")),
	}

	return cfg
}

func splitEnv(key string, def []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parts := strings.Split(val, ",")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		slog.Warn("invalid bool environment variable", "key", key, "value", val, "error", err)
		return def
	}
	return parsed
}

func getEnvInt(key string, def int) int {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("invalid int environment variable", "key", key, "value", val, "error", err)
		return def
	}
	return parsed
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		slog.Warn("invalid duration environment variable", "key", key, "value", val, "error", err)
		return def
	}
	return parsed
}
