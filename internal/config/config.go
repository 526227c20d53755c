package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Generator
	GeneratorBaseURL string
	GeneratorTimeout time.Duration

	// Refill
	RefillDebounce      time.Duration
	RefillPollInterval  time.Duration
	RefillMaxConcurrent int

	// Rate Limit
	RateLimitGeneral int
	RateLimitReorder int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GeneratorBaseURL = os.Getenv("GENERATOR_BASE_URL")
	if cfg.GeneratorBaseURL == "" {
		missing = append(missing, "GENERATOR_BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.GeneratorTimeout = getEnvDuration("GENERATOR_TIMEOUT", 30*time.Second)
	cfg.RefillDebounce = getEnvDuration("REFILL_DEBOUNCE", 2*time.Second)
	cfg.RefillPollInterval = getEnvDuration("REFILL_POLL_INTERVAL", time.Minute)
	cfg.RefillMaxConcurrent = getEnvInt("REFILL_MAX_CONCURRENT", 10)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitReorder = getEnvInt("RATE_LIMIT_REORDER", 30)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
