package main

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	APIURL         string
	HubURL         string
	Storage        string // file, postgres or memory
	StateDir       string
	DatabaseURL    string
	Profile        string
	ConsoleAddr    string
	PassphraseHash string
	RequestTimeout time.Duration
	ReconnectDelay time.Duration
	Debounce       time.Duration
	PageSize       int
	LogLevel       slog.Level
}

func getEnv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getDuration(k string, d time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(k))
	if err != nil || v <= 0 {
		return d
	}
	return v
}

func getInt(k string, d int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil || v <= 0 {
		return d
	}
	return v
}

func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func LoadConfig() Config {
	return Config{
		APIURL:         getEnv("SHOPFRONT_API_URL", "http://localhost:5000/api"),
		HubURL:         getEnv("SHOPFRONT_HUB_URL", ""),
		Storage:        getEnv("SHOPFRONT_STORAGE", "file"),
		StateDir:       getEnv("SHOPFRONT_STATE_DIR", ".shopfront"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		Profile:        getEnv("SHOPFRONT_PROFILE", ""),
		ConsoleAddr:    getEnv("SHOPFRONT_CONSOLE_ADDR", "127.0.0.1:8080"),
		PassphraseHash: getEnv("SHOPFRONT_CONSOLE_PASSPHRASE_HASH", ""),
		RequestTimeout: getDuration("SHOPFRONT_REQUEST_TIMEOUT", 15*time.Second),
		ReconnectDelay: getDuration("SHOPFRONT_RECONNECT_DELAY", 5*time.Second),
		Debounce:       getDuration("SHOPFRONT_DEBOUNCE", 500*time.Millisecond),
		PageSize:       getInt("SHOPFRONT_PAGE_SIZE", 12),
		LogLevel:       logLevel(getEnv("SHOPFRONT_LOG_LEVEL", "info")),
	}
}
