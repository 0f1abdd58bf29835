package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	AppEnv         string
	LogLevel       string
	HTTPListenAddr string

	SlotsDefinitionsPath string
	ModelsDir            string
	RequiredSlots        []string

	TomitaBinaryPath string
	TomitaConfigPath string
	TomitaWorkDir    string

	DatabaseURL string
	FAQDBPath   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool

	ChitChatBaseURL string
	ChitChatTimeout time.Duration

	MetricsNamespace string
	DialogPatience   int
	DialogDebug      bool
}

// Load returns configuration populated from environment variables with fallbacks.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:               getenvDefault("APP_ENV", "development"),
		LogLevel:             getenvDefault("LOG_LEVEL", "info"),
		HTTPListenAddr:       getenvDefault("HTTP_LISTEN_ADDR", ":8080"),
		SlotsDefinitionsPath: getenvDefault("SLOTS_DEFINITIONS_PATH", "slots_definitions.tsv"),
		ModelsDir:            trimmedEnv("MODELS_DIR"),
		RequiredSlots:        splitAndTrim(trimmedEnv("REQUIRED_SLOTS")),
		TomitaBinaryPath:     trimmedEnv("TOMITA_BINARY"),
		TomitaConfigPath:     trimmedEnv("TOMITA_CONFIG"),
		TomitaWorkDir:        getenvDefault("TOMITA_WORKDIR", "."),
		DatabaseURL:          trimmedEnv("DATABASE_URL"),
		FAQDBPath:            getenvDefault("FAQ_DB_PATH", "data/faq.db"),
		RedisAddr:            trimmedEnv("REDIS_ADDR"),
		RedisPassword:        trimmedEnv("REDIS_PASSWORD"),
		ChitChatBaseURL:      trimmedEnv("CHITCHAT_BASE_URL"),
		MetricsNamespace:     getenvDefault("METRICS_NAMESPACE", "bankbot"),
	}

	chatTimeoutStr := getenvDefault("CHITCHAT_TIMEOUT", "10s")
	dur, err := time.ParseDuration(chatTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid CHITCHAT_TIMEOUT duration: %w", err)
	}
	cfg.ChitChatTimeout = dur

	patienceStr := getenvDefault("DIALOG_PATIENCE", "3")
	if cfg.DialogPatience, err = strconv.Atoi(patienceStr); err != nil {
		return nil, fmt.Errorf("invalid DIALOG_PATIENCE value: %w", err)
	}
	if cfg.DialogPatience <= 0 {
		return nil, fmt.Errorf("DIALOG_PATIENCE must be positive")
	}

	cfg.DialogDebug = strings.EqualFold(getenvDefault("DIALOG_DEBUG", "false"), "true")

	if redisDBStr := getenvDefault("REDIS_DB", "0"); redisDBStr != "" {
		db, convErr := strconv.Atoi(redisDBStr)
		if convErr != nil {
			return nil, fmt.Errorf("invalid REDIS_DB value: %w", convErr)
		}
		cfg.RedisDB = db
	}

	cfg.RedisTLS = strings.EqualFold(getenvDefault("REDIS_TLS", "false"), "true")

	if cfg.SlotsDefinitionsPath == "" {
		return nil, fmt.Errorf("SLOTS_DEFINITIONS_PATH is required")
	}
	if (cfg.TomitaBinaryPath == "") != (cfg.TomitaConfigPath == "") {
		return nil, fmt.Errorf("TOMITA_BINARY and TOMITA_CONFIG must be set together")
	}

	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(val); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func splitAndTrim(val string) []string {
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			res = append(res, trimmed)
		}
	}
	return res
}

func trimmedEnv(key string) string {
	if val, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(val)
	}
	return ""
}
